package filter

import "time"

// Operator represents supported filter operators.
type Operator string

const (
	OpEqual              Operator = "eq"
	OpNotEqual           Operator = "ne"
	OpGreaterThan        Operator = "gt"
	OpGreaterThanOrEqual Operator = "gte"
	OpLessThan           Operator = "lt"
	OpLessThanOrEqual    Operator = "lte"
	OpIn                 Operator = "in"
	OpBetween            Operator = "between"
	OpLike               Operator = "like"
	OpILike              Operator = "ilike"
	OpIsNull             Operator = "isnull"
	OpIsNotNull          Operator = "isnotnull"
)

// TimestampValue is a parsed timestamp that remembers the string it came from
// and how precise that string was ("day", "minute", "second", ...).
type TimestampValue struct {
	Time      time.Time
	Original  string
	Precision string
}

// QueryFilter is one parsed predicate, e.g. field "endpoint", operator eq,
// value "crm-orders". Multi-value operators (in, between) fill Values instead
// of Value.
type QueryFilter struct {
	Field    string        `json:"field"`
	Operator Operator      `json:"operator"`
	Value    interface{}   `json:"value,omitempty"`
	Values   []interface{} `json:"values,omitempty"`
}

type QueryFilterSet struct {
	Filters []QueryFilter `json:"filters"`
}

// SortOrder represents the sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// QueryOptions carries sorting and count options alongside a filter set.
type QueryOptions struct {
	SortBy       string    `json:"sort_by,omitempty"`
	SortOrder    SortOrder `json:"sort_order,omitempty"`
	IncludeCount bool      `json:"include_count,omitempty"`
}

// DefaultSortOrder normalizes the sort direction, falling back to descending
// for anything that is not exactly asc or desc.
func (o *QueryOptions) DefaultSortOrder() SortOrder {
	switch o.SortOrder {
	case SortAsc, SortDesc:
		return o.SortOrder
	default:
		return SortDesc
	}
}

// BuildResult is the SQL the builder produced: optional CTE prefixes, one
// WHERE fragment per filter, positional args, and the ORDER BY clause
// (without the "ORDER BY" keyword).
type BuildResult struct {
	CTEs       []string
	Conditions []string
	Args       []interface{}
	NextArgPos int
	OrderBy    string
}

// ParseOptions bounds what a single request may ask for. Zero values fall
// back to the package defaults (20 filters, 100 IN members, 1000 chars).
type ParseOptions struct {
	MaxFilters  int
	MaxInValues int
	MaxCharLen  int
}

type ParseError struct {
	Param   string
	Message string
}

type ParseResult struct {
	Filters *QueryFilterSet
	Errors  []ParseError
}
