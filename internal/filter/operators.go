package filter

import "strings"

// operatorAliases maps query-string suffixes to canonical operators. The
// long-form spellings neq/gteq/lteq are accepted alongside the short ones.
var operatorAliases = map[string]Operator{
	"eq":        OpEqual,
	"ne":        OpNotEqual,
	"neq":       OpNotEqual,
	"gt":        OpGreaterThan,
	"gte":       OpGreaterThanOrEqual,
	"gteq":      OpGreaterThanOrEqual,
	"lt":        OpLessThan,
	"lte":       OpLessThanOrEqual,
	"lteq":      OpLessThanOrEqual,
	"in":        OpIn,
	"between":   OpBetween,
	"like":      OpLike,
	"ilike":     OpILike,
	"isnull":    OpIsNull,
	"isnotnull": OpIsNotNull,
}

// comparisonSQL holds the SQL spelling of the single-operand comparison
// operators shared by the plain-column and JSON-path builders.
var comparisonSQL = map[Operator]string{
	OpEqual:              "=",
	OpNotEqual:           "!=",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpLike:               "LIKE",
	OpILike:              "ILIKE",
}

// ResolveOperator maps an operator suffix such as "gte" to its Operator,
// returning "" when the suffix is not one.
func ResolveOperator(s string) Operator {
	return operatorAliases[strings.ToLower(s)]
}
