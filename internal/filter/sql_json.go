package filter

import (
	"fmt"
	"strings"
	"time"
)

// buildJSONPathCondition renders a condition against a key inside a jsonb
// column, addressed as column.key (meta_data.region_eq=emea and the like).
// Plain equality uses jsonb containment so a GIN index on the column can
// serve it; ordered comparisons cast the extracted text instead.
func buildJSONPathCondition(f QueryFilter, tableAlias string, argPosition int) (string, []interface{}, int) {
	parts := strings.SplitN(f.Field, ".", 2)
	if len(parts) != 2 {
		return "", nil, argPosition
	}

	// Both halves already passed Validate's regex, but they are interpolated
	// into SQL, so they are re-derived from literals here to keep the taint
	// chain broken for static analyzers.
	jsonCol := resolveJSONColumn(parts[0])
	jsonKey := sanitizeJSONKey(parts[1])
	if jsonCol == "" || jsonKey == "" {
		return "", nil, argPosition
	}
	if tableAlias != "" {
		jsonCol = tableAlias + "." + jsonCol
	}

	switch f.Operator {
	case OpEqual:
		if ts, ok := timestampOperand(f.Value); ok {
			floor, ceiling := computeTimestampRange(ts)
			cond := fmt.Sprintf("(%s->>'%s')::timestamp >= $%d AND (%s->>'%s')::timestamp < $%d",
				jsonCol, jsonKey, argPosition, jsonCol, jsonKey, argPosition+1)
			return cond, []interface{}{floor, ceiling}, argPosition + 2
		}
		payload, err := buildContainmentJSON(jsonKey, f.Value)
		if err != nil {
			return "", nil, argPosition
		}
		cond := fmt.Sprintf("%s @> $%d::jsonb", jsonCol, argPosition)
		return cond, []interface{}{string(payload)}, argPosition + 1

	case OpNotEqual:
		cond := fmt.Sprintf("%s->>'%s' != $%d", jsonCol, jsonKey, argPosition)
		return cond, []interface{}{jsonTextOperand(f.Value)}, argPosition + 1

	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		cond := fmt.Sprintf("(%s->>'%s')::numeric %s $%d", jsonCol, jsonKey, comparisonSQL[f.Operator], argPosition)
		return cond, []interface{}{extractValueForSQL(f.Value)}, argPosition + 1

	case OpLike, OpILike:
		cond := fmt.Sprintf("%s->>'%s' %s $%d", jsonCol, jsonKey, comparisonSQL[f.Operator], argPosition)
		return cond, []interface{}{extractValueForSQL(f.Value)}, argPosition + 1

	case OpIn:
		if len(f.Values) == 0 {
			return "", nil, argPosition
		}
		placeholders := make([]string, len(f.Values))
		args := make([]interface{}, len(f.Values))
		for i, val := range f.Values {
			placeholders[i] = fmt.Sprintf("$%d", argPosition+i)
			args[i] = jsonTextOperand(val)
		}
		cond := fmt.Sprintf("%s->>'%s' IN (%s)", jsonCol, jsonKey, strings.Join(placeholders, ", "))
		return cond, args, argPosition + len(f.Values)

	case OpBetween:
		if len(f.Values) != 2 {
			return "", nil, argPosition
		}
		cond := fmt.Sprintf("(%s->>'%s')::numeric BETWEEN $%d AND $%d", jsonCol, jsonKey, argPosition, argPosition+1)
		return cond, []interface{}{extractValueForSQL(f.Values[0]), extractValueForSQL(f.Values[1])}, argPosition + 2

	case OpIsNull:
		cond := fmt.Sprintf("(%s->>'%s' IS NULL OR %s ? '%s' = false)", jsonCol, jsonKey, jsonCol, jsonKey)
		return cond, []interface{}{}, argPosition

	case OpIsNotNull:
		cond := fmt.Sprintf("(%s->>'%s' IS NOT NULL AND %s ? '%s' = true)", jsonCol, jsonKey, jsonCol, jsonKey)
		return cond, []interface{}{}, argPosition

	default:
		return "", nil, argPosition
	}
}

// timestampOperand normalizes a filter value into a TimestampValue when it is
// one, accepting both parsed query values and native time.Time.
func timestampOperand(v interface{}) (TimestampValue, bool) {
	switch tv := v.(type) {
	case TimestampValue:
		return tv, true
	case time.Time:
		return TimestampValue{Time: tv, Precision: timePrecision(tv)}, true
	}
	return TimestampValue{}, false
}

// jsonTextOperand renders a value the way postgres' ->> operator renders it,
// so bools compare as "true"/"false" rather than driver-native booleans.
func jsonTextOperand(v interface{}) interface{} {
	if b, ok := v.(bool); ok {
		return fmt.Sprintf("%t", b)
	}
	return extractValueForSQL(v)
}

// resolveJSONColumn admits only the jsonb columns that exist on the filtered
// tables, returning the name as a fresh literal.
func resolveJSONColumn(col string) string {
	switch col {
	case "meta_data":
		return "meta_data"
	default:
		return ""
	}
}

// sanitizeJSONKey rebuilds the key byte by byte, admitting only letters,
// digits and underscores with a leading letter. Anything else yields "".
func sanitizeJSONKey(key string) string {
	if key == "" || !isLetter(key[0]) {
		return ""
	}
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if !isLetter(c) && !isDigit(c) && c != '_' {
			return ""
		}
		out = append(out, c)
	}
	return string(out)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
