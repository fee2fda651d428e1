package filter

import (
	"fmt"
	"regexp"
	"strings"
)

var jsonKeyRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

func Validate(filters *QueryFilterSet, table string) error {
	if filters == nil {
		return nil
	}

	validFields := GetValidFieldsForTable(table)
	if len(validFields) == 0 {
		return fmt.Errorf("unsupported table for advanced filtering: %s", table)
	}

	for _, f := range filters.Filters {
		if strings.HasPrefix(f.Field, "meta_data.") && validFields["meta_data"] {
			jsonKey := strings.TrimPrefix(f.Field, "meta_data.")
			if !jsonKeyRegex.MatchString(jsonKey) {
				return fmt.Errorf("invalid JSON key '%s' in field '%s': must match pattern ^[a-zA-Z][a-zA-Z0-9_]*$", jsonKey, f.Field)
			}
			continue
		}

		if !validFields[f.Field] {
			return fmt.Errorf("invalid field '%s' for table '%s'", f.Field, table)
		}
	}

	return nil
}

func GetValidFieldsForTable(table string) map[string]bool {
	switch table {
	case "mappings":
		return map[string]bool{
			"mapping_id":       true,
			"name":             true,
			"endpoint":         true,
			"source_type":      true,
			"destination_type": true,
			"destination_url":  true,
			"created_at":       true,
			"meta_data":        true,
		}
	case "captures":
		return map[string]bool{
			"capture_id":       true,
			"mapping":          true,
			"mapping_name":     true,
			"endpoint":         true,
			"source_type":      true,
			"destination_type": true,
			"is_success":       true,
			"error_message":    true,
			"duration_ms":      true,
			"created_at":       true,
			"meta_data":        true,
		}
	default:
		return map[string]bool{}
	}
}

// GetSortableFieldsForTable returns fields that can be sorted.
// All filterable fields are sortable.
func GetSortableFieldsForTable(table string) map[string]bool {
	return GetValidFieldsForTable(table)
}

// ValidateSortField validates that the sort field is allowed for the table.
func ValidateSortField(sortBy, table string) error {
	if sortBy == "" {
		return nil
	}

	sortableFields := GetSortableFieldsForTable(table)
	if len(sortableFields) == 0 {
		return fmt.Errorf("sorting not supported for table: %s", table)
	}

	if !sortableFields[sortBy] {
		return fmt.Errorf("cannot sort by '%s' for table '%s': field is not filterable", sortBy, table)
	}

	return nil
}

// ValidateSortByForTable validates opts.SortBy against the table's sortable
// fields and normalizes it to lowercase in place.
func ValidateSortByForTable(opts *QueryOptions, table string) error {
	if opts == nil || opts.SortBy == "" {
		return nil
	}

	normalized := strings.ToLower(strings.TrimSpace(opts.SortBy))
	if err := ValidateSortField(normalized, table); err != nil {
		return err
	}
	opts.SortBy = normalized
	return nil
}

// GetDefaultSortField returns the default sort field for a table.
func GetDefaultSortField(table string) string {
	return "created_at"
}
