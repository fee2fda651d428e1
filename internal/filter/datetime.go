package filter

import (
	"fmt"
	"strings"
	"time"
)

// timestampFormats is ordered most specific first. Query values carry no
// format hint, so everything from RFC3339 down to a bare date has to be
// recognized.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05.999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
}

// ParseDateTime parses a timestamp in any of the accepted query formats.
func ParseDateTime(value string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", value)
}

// timestampPrecision infers how precise the caller's timestamp string was.
// An equality filter on "2024-06-01" should match the whole day while
// "2024-06-01T10:30" should match one minute, so the builder needs to know
// how much of the instant the caller actually wrote.
func timestampPrecision(dateStr string) string {
	if i := strings.IndexByte(dateStr, '.'); i != -1 {
		frac := strings.TrimSuffix(dateStr[i+1:], "Z")
		if j := strings.IndexAny(frac, "+-"); j != -1 {
			frac = frac[:j]
		}
		if len(frac) >= 6 {
			return "microseconds"
		}
		if len(frac) > 0 {
			return "milliseconds"
		}
	}

	switch strings.Count(dateStr, ":") {
	case 0:
		// no clock part; decided below
	case 1:
		return "minute"
	default:
		return "second"
	}

	if strings.ContainsAny(dateStr, "T ") {
		return "hour"
	}
	return "day"
}

// timePrecision reports the finest populated component of t. It mirrors
// timestampPrecision for values that arrive already parsed.
func timePrecision(t time.Time) string {
	switch {
	case t.Nanosecond()%int(time.Millisecond) != 0:
		return "microseconds"
	case t.Nanosecond() != 0:
		return "milliseconds"
	case t.Second() != 0:
		return "second"
	case t.Minute() != 0:
		return "minute"
	case t.Hour() != 0:
		return "hour"
	default:
		return "day"
	}
}

// computeTimestampRange widens a parsed timestamp into a [floor, ceiling)
// window matching its precision, so equality filters mean "within that
// day/minute/second" rather than demanding an exact instant.
func computeTimestampRange(ts TimestampValue) (floor, ceiling time.Time) {
	t := ts.Time
	var step time.Duration
	switch ts.Precision {
	case "microseconds":
		step = time.Microsecond
	case "milliseconds":
		step = time.Millisecond
	case "minute":
		step = time.Minute
	case "hour":
		step = time.Hour
	case "day":
		y, m, d := t.Date()
		floor = time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		return floor, floor.AddDate(0, 0, 1)
	default:
		step = time.Second
	}
	floor = t.Truncate(step)
	return floor, floor.Add(step)
}
