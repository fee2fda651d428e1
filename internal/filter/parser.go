package filter

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	defaultMaxFilters  = 20
	defaultMaxInValues = 100
	defaultMaxCharLen  = 1000
)

// ParseFromQuery extracts filters from URL query parameters written as
// field_operator=value, e.g. endpoint_eq=crm-orders or
// created_at_gte=2024-06-01. Parameters that are not filter-shaped pass
// through silently; filter-shaped parameters that break a limit are reported
// in ParseResult.Errors instead of being dropped.
func ParseFromQuery(queryParams url.Values, opts *ParseOptions) *ParseResult {
	limits := parseLimits(opts)
	result := &ParseResult{
		Filters: &QueryFilterSet{Filters: make([]QueryFilter, 0)},
		Errors:  make([]ParseError, 0),
	}

	for key, values := range queryParams {
		if len(values) == 0 || isReservedParam(key) {
			continue
		}

		field, op := splitFilterKey(key)
		if op == "" {
			// a plain query param, not a filter
			continue
		}

		if len(result.Filters.Filters) >= limits.MaxFilters {
			result.Errors = append(result.Errors, ParseError{
				Param:   key,
				Message: fmt.Sprintf("exceeded maximum number of filters (%d)", limits.MaxFilters),
			})
			continue
		}

		f, msg := buildFilter(field, op, values[0], limits)
		if msg != "" {
			result.Errors = append(result.Errors, ParseError{Param: key, Message: msg})
			continue
		}
		result.Filters.Filters = append(result.Filters.Filters, f)
	}

	return result
}

func parseLimits(opts *ParseOptions) ParseOptions {
	limits := ParseOptions{
		MaxFilters:  defaultMaxFilters,
		MaxInValues: defaultMaxInValues,
		MaxCharLen:  defaultMaxCharLen,
	}
	if opts == nil {
		return limits
	}
	if opts.MaxFilters > 0 {
		limits.MaxFilters = opts.MaxFilters
	}
	if opts.MaxInValues > 0 {
		limits.MaxInValues = opts.MaxInValues
	}
	if opts.MaxCharLen > 0 {
		limits.MaxCharLen = opts.MaxCharLen
	}
	return limits
}

// splitFilterKey breaks "created_at_gte" into ("created_at", OpGreaterThanOrEqual).
// The operator is always the last underscore-separated token; the field keeps
// its own underscores.
func splitFilterKey(key string) (string, Operator) {
	i := strings.LastIndex(key, "_")
	if i < 0 {
		return "", ""
	}
	return key[:i], ResolveOperator(key[i+1:])
}

// buildFilter assembles one QueryFilter, splitting multi-value operators on
// their separators. A non-empty message means the value broke a parse limit.
func buildFilter(field string, op Operator, raw string, limits ParseOptions) (QueryFilter, string) {
	if len(raw) > limits.MaxCharLen {
		return QueryFilter{}, fmt.Sprintf("value exceeds maximum length (%d chars)", limits.MaxCharLen)
	}

	f := QueryFilter{Field: field, Operator: op}
	switch op {
	case OpBetween:
		bounds := strings.Split(raw, "|")
		if len(bounds) != 2 {
			return QueryFilter{}, "between operator requires exactly 2 pipe-separated values (value1|value2)"
		}
		f.Values = []interface{}{parseValue(bounds[0]), parseValue(bounds[1])}

	case OpIn:
		members := strings.Split(raw, ",")
		if len(members) > limits.MaxInValues {
			return QueryFilter{}, fmt.Sprintf("IN operator exceeds maximum values (%d)", limits.MaxInValues)
		}
		f.Values = make([]interface{}, len(members))
		for i, m := range members {
			f.Values[i] = parseValue(strings.TrimSpace(m))
		}

	case OpIsNull, OpIsNotNull:
		// the value is ignored for null checks

	default:
		f.Value = parseValue(raw)
	}
	return f, ""
}
