package filter

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// buildMappingRefCondition handles the virtual "mapping" field on captures.
// Callers rarely know whether they hold a mapping's name or the endpoint it
// serves, so the filter matches either column.
func buildMappingRefCondition(f QueryFilter, tableAlias string, argPosition int) (condition string, args []interface{}, newArgPosition int, ctes []string) {
	nameField := "mapping_name"
	endpointField := "endpoint"
	if tableAlias != "" {
		nameField = tableAlias + ".mapping_name"
		endpointField = tableAlias + ".endpoint"
	}

	switch f.Operator {
	case OpEqual:
		condition = fmt.Sprintf("(%s = $%d OR %s = $%d)", nameField, argPosition, endpointField, argPosition)
		args = []interface{}{extractValueForSQL(f.Value)}
		newArgPosition = argPosition + 1

	case OpNotEqual:
		condition = fmt.Sprintf("(%s != $%d AND %s != $%d)", nameField, argPosition, endpointField, argPosition)
		args = []interface{}{extractValueForSQL(f.Value)}
		newArgPosition = argPosition + 1

	case OpIn:
		if len(f.Values) > 0 {
			if isStringArray(f.Values) {
				condition = fmt.Sprintf("(%s = ANY($%d) OR %s = ANY($%d))", nameField, argPosition, endpointField, argPosition)
				args = []interface{}{pq.Array(convertToStringArray(f.Values))}
				newArgPosition = argPosition + 1
			} else {
				placeholders := make([]string, len(f.Values))
				args = make([]interface{}, len(f.Values))
				for i, val := range f.Values {
					placeholders[i] = fmt.Sprintf("$%d", argPosition+i)
					args[i] = extractValueForSQL(val)
				}
				ph := strings.Join(placeholders, ", ")
				condition = fmt.Sprintf("(%s IN (%s) OR %s IN (%s))",
					nameField, ph, endpointField, ph)
				newArgPosition = argPosition + len(f.Values)
			}
		}

	case OpIsNull:
		condition = fmt.Sprintf("(%s IS NULL AND %s IS NULL)", nameField, endpointField)
		args = []interface{}{}
		newArgPosition = argPosition

	case OpIsNotNull:
		condition = fmt.Sprintf("(%s IS NOT NULL OR %s IS NOT NULL)", nameField, endpointField)
		args = []interface{}{}
		newArgPosition = argPosition

	default:
		return "", nil, argPosition, nil
	}

	return condition, args, newArgPosition, nil
}

// buildDestinationTypeCondition handles "destination_type" on captures. Captures
// record only the source side, so the destination type is resolved through the
// owning mapping via a CTE.
func buildDestinationTypeCondition(f QueryFilter, tableAlias string, argPosition int) (condition string, args []interface{}, newArgPosition int, ctes []string) {
	var subqueryCondition string
	var subqueryArgs []interface{}

	switch f.Operator {
	case OpEqual:
		subqueryCondition = fmt.Sprintf("m.destination_type = $%d", argPosition)
		subqueryArgs = []interface{}{extractValueForSQL(f.Value)}
		newArgPosition = argPosition + 1

	case OpNotEqual:
		subqueryCondition = fmt.Sprintf("m.destination_type != $%d", argPosition)
		subqueryArgs = []interface{}{extractValueForSQL(f.Value)}
		newArgPosition = argPosition + 1

	case OpLike:
		subqueryCondition = fmt.Sprintf("m.destination_type LIKE $%d", argPosition)
		subqueryArgs = []interface{}{extractValueForSQL(f.Value)}
		newArgPosition = argPosition + 1

	case OpILike:
		subqueryCondition = fmt.Sprintf("m.destination_type ILIKE $%d", argPosition)
		subqueryArgs = []interface{}{extractValueForSQL(f.Value)}
		newArgPosition = argPosition + 1

	case OpIn:
		if len(f.Values) > 0 {
			if isStringArray(f.Values) {
				subqueryCondition = fmt.Sprintf("m.destination_type = ANY($%d)", argPosition)
				subqueryArgs = []interface{}{pq.Array(convertToStringArray(f.Values))}
				newArgPosition = argPosition + 1
			} else {
				placeholders := make([]string, len(f.Values))
				subqueryArgs = make([]interface{}, len(f.Values))
				for i, val := range f.Values {
					placeholders[i] = fmt.Sprintf("$%d", argPosition+i)
					subqueryArgs[i] = extractValueForSQL(val)
				}
				subqueryCondition = fmt.Sprintf("m.destination_type IN (%s)", strings.Join(placeholders, ", "))
				newArgPosition = argPosition + len(f.Values)
			}
		} else {
			return "", nil, argPosition, nil
		}

	case OpIsNull:
		subqueryCondition = "m.destination_type IS NULL"
		subqueryArgs = []interface{}{}
		newArgPosition = argPosition

	case OpIsNotNull:
		subqueryCondition = "m.destination_type IS NOT NULL"
		subqueryArgs = []interface{}{}
		newArgPosition = argPosition

	default:
		return "", nil, argPosition, nil
	}

	cte := fmt.Sprintf("_destination_matches AS (SELECT m.name FROM qam.mappings m WHERE %s)", subqueryCondition)
	ctes = []string{cte}

	nameField := "mapping_name"
	if tableAlias != "" {
		nameField = tableAlias + ".mapping_name"
	}
	condition = fmt.Sprintf("%s IN (SELECT name FROM _destination_matches)", nameField)
	args = subqueryArgs

	return condition, args, newArgPosition, ctes
}
