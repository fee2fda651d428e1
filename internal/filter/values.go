package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// parseValue coerces a raw query-string value into the most specific type it
// matches: int64, float64, bool, then timestamp, falling back to the raw
// string. Timestamps keep the original text so the builder can widen
// comparisons to the precision the caller wrote.
func parseValue(raw string) interface{} {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if t, err := ParseDateTime(raw); err == nil {
		return TimestampValue{
			Time:      t,
			Original:  raw,
			Precision: timestampPrecision(raw),
		}
	}
	return raw
}

// extractValueForSQL unwraps a TimestampValue into the time.Time the driver
// expects. Everything else passes through untouched.
func extractValueForSQL(v interface{}) interface{} {
	if ts, ok := v.(TimestampValue); ok {
		return ts.Time
	}
	return v
}

func isStringArray(values []interface{}) bool {
	for _, v := range values {
		if _, ok := v.(string); !ok {
			return false
		}
	}
	return true
}

func convertToStringArray(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprint(v)
	}
	return out
}

// buildContainmentJSON renders {key: value} for a jsonb @> containment match.
func buildContainmentJSON(key string, value interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{key: value})
}
