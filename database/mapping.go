package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/apierror"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/filter"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
	"github.com/lib/pq"
)

const mappingColumns = "mapping_id, name, endpoint, source_type, destination_type, destination_url, static_values, field_mappings, soap_config, auth_config, created_at, meta_data"

func (d Datasource) CreateMapping(ctx context.Context, mapping *model.IntegrationMapping) (*model.IntegrationMapping, error) {
	staticJSON, err := json.Marshal(mapping.StaticValues)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal static values", err)
	}
	fieldsJSON, err := json.Marshal(mapping.FieldMappings)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal field mappings", err)
	}
	soapJSON, err := json.Marshal(mapping.SoapConfig)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal soap config", err)
	}
	authJSON, err := json.Marshal(mapping.Auth)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal auth config", err)
	}
	metaDataJSON, err := json.Marshal(mapping.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	mapping.MappingID = model.GenerateUUIDWithSuffix("map")
	mapping.CreatedAt = time.Now()

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO qam.mappings (mapping_id, name, endpoint, source_type, destination_type, destination_url, static_values, field_mappings, soap_config, auth_config, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, mapping.MappingID, mapping.Name, mapping.Endpoint, mapping.SourceType, mapping.DestinationType, mapping.DestinationURL, staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Mapping with this name, endpoint or ID already exists", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create mapping", err)
	}

	return mapping, nil
}

func (d Datasource) GetAllMappings(ctx context.Context, limit, offset int) ([]model.IntegrationMapping, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+mappingColumns+`
		FROM qam.mappings
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve mappings", err)
	}
	defer func() { _ = rows.Close() }()

	mappings := []model.IntegrationMapping{}

	for rows.Next() {
		mapping := model.IntegrationMapping{}
		var staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON []byte
		err = rows.Scan(
			&mapping.MappingID, &mapping.Name, &mapping.Endpoint,
			&mapping.SourceType, &mapping.DestinationType, &mapping.DestinationURL,
			&staticJSON, &fieldsJSON, &soapJSON, &authJSON,
			&mapping.CreatedAt, &metaDataJSON,
		)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan mapping data", err)
		}

		if err = unmarshalMappingJSON(&mapping, staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON); err != nil {
			return nil, err
		}

		mappings = append(mappings, mapping)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over mappings", err)
	}

	return mappings, nil
}

func (d Datasource) GetMappingByID(ctx context.Context, id string) (*model.IntegrationMapping, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+mappingColumns+`
		FROM qam.mappings
		WHERE mapping_id = $1
	`, id)
	return scanMappingRow(row)
}

func (d Datasource) GetMappingByName(ctx context.Context, name string) (*model.IntegrationMapping, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+mappingColumns+`
		FROM qam.mappings
		WHERE name = $1
	`, name)
	return scanMappingRow(row)
}

func (d Datasource) GetMappingByEndpoint(ctx context.Context, endpoint string) (*model.IntegrationMapping, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+mappingColumns+`
		FROM qam.mappings
		WHERE endpoint = $1
	`, endpoint)
	return scanMappingRow(row)
}

func (d Datasource) UpdateMapping(ctx context.Context, mapping *model.IntegrationMapping) error {
	staticJSON, err := json.Marshal(mapping.StaticValues)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal static values", err)
	}
	fieldsJSON, err := json.Marshal(mapping.FieldMappings)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal field mappings", err)
	}
	soapJSON, err := json.Marshal(mapping.SoapConfig)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal soap config", err)
	}
	authJSON, err := json.Marshal(mapping.Auth)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal auth config", err)
	}
	metaDataJSON, err := json.Marshal(mapping.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE qam.mappings
		SET name = $2, endpoint = $3, source_type = $4, destination_type = $5, destination_url = $6, static_values = $7, field_mappings = $8, soap_config = $9, auth_config = $10, meta_data = $11
		WHERE mapping_id = $1
	`, mapping.MappingID, mapping.Name, mapping.Endpoint, mapping.SourceType, mapping.DestinationType, mapping.DestinationURL, staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return apierror.NewAPIError(apierror.ErrConflict, "Mapping with this name or endpoint already exists", err)
			default:
				return apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update mapping", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update mapping", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Mapping not found", nil)
	}

	return nil
}

func (d Datasource) DeleteMapping(ctx context.Context, id string) error {
	result, err := d.Conn.ExecContext(ctx, `
		DELETE FROM qam.mappings
		WHERE mapping_id = $1
	`, id)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete mapping", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete mapping", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Mapping not found", nil)
	}

	return nil
}

func (d Datasource) GetGlobalStatics(ctx context.Context) (map[string]string, error) {
	return d.getGlobals(ctx, GlobalKindStatic)
}

func (d Datasource) GetNamespaces(ctx context.Context) (map[string]string, error) {
	return d.getGlobals(ctx, GlobalKindNamespace)
}

func (d Datasource) getGlobals(ctx context.Context, kind string) (map[string]string, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT key, value
		FROM qam.globals
		WHERE kind = $1
	`, kind)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve globals", err)
	}
	defer func() { _ = rows.Close() }()

	entries := map[string]string{}
	for rows.Next() {
		var key, value string
		if err = rows.Scan(&key, &value); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan global entry", err)
		}
		entries[key] = value
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over globals", err)
	}

	return entries, nil
}

func (d Datasource) SetGlobal(ctx context.Context, kind, key, value string) error {
	if kind != GlobalKindStatic && kind != GlobalKindNamespace {
		return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("Unknown global kind: %s", kind), nil)
	}
	if key == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "Global key is required", nil)
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO qam.globals (kind, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind, key) DO UPDATE SET value = EXCLUDED.value
	`, kind, key, value)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to set global entry", err)
	}

	return nil
}

// GetAllMappingsWithFilterAndOptions retrieves mappings with filtering, sorting, and optional count.
// It uses the filter package to build SQL WHERE and ORDER BY conditions.
func (d Datasource) GetAllMappingsWithFilterAndOptions(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]model.IntegrationMapping, *int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	if err := filter.ValidateSortByForTable(opts, "mappings"); err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid sort_by field", nil)
	}

	result, err := filter.BuildWithOptions(filters, "mappings", "", 1, opts)
	if err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Invalid filter: %s", err.Error()), err)
	}

	selectFields := mappingColumns
	if opts != nil && opts.IncludeCount {
		selectFields += ", COUNT(*) OVER() AS total_count"
	}

	baseQuery := fmt.Sprintf(`
		SELECT %s
		FROM qam.mappings
	`, selectFields)

	var args []interface{}
	args = append(args, result.Args...)
	argPos := result.NextArgPos

	if len(result.Conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(result.Conditions, " AND ")
	}

	baseQuery += " ORDER BY " + result.OrderBy
	baseQuery += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := d.Conn.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve mappings", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []model.IntegrationMapping
	var totalCount *int64

	for rows.Next() {
		mapping := model.IntegrationMapping{}
		var staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON []byte

		if opts != nil && opts.IncludeCount {
			var count int64
			err = rows.Scan(
				&mapping.MappingID, &mapping.Name, &mapping.Endpoint,
				&mapping.SourceType, &mapping.DestinationType, &mapping.DestinationURL,
				&staticJSON, &fieldsJSON, &soapJSON, &authJSON,
				&mapping.CreatedAt, &metaDataJSON,
				&count,
			)
			if totalCount == nil {
				totalCount = &count
			}
		} else {
			err = rows.Scan(
				&mapping.MappingID, &mapping.Name, &mapping.Endpoint,
				&mapping.SourceType, &mapping.DestinationType, &mapping.DestinationURL,
				&staticJSON, &fieldsJSON, &soapJSON, &authJSON,
				&mapping.CreatedAt, &metaDataJSON,
			)
		}
		if err != nil {
			return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan mapping data", err)
		}

		if err = unmarshalMappingJSON(&mapping, staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON); err != nil {
			return nil, nil, err
		}

		mappings = append(mappings, mapping)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over mappings", err)
	}

	return mappings, totalCount, nil
}

func scanMappingRow(row *sql.Row) (*model.IntegrationMapping, error) {
	mapping := model.IntegrationMapping{}
	var staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON []byte

	err := row.Scan(
		&mapping.MappingID, &mapping.Name, &mapping.Endpoint,
		&mapping.SourceType, &mapping.DestinationType, &mapping.DestinationURL,
		&staticJSON, &fieldsJSON, &soapJSON, &authJSON,
		&mapping.CreatedAt, &metaDataJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Mapping not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve mapping", err)
	}

	if err = unmarshalMappingJSON(&mapping, staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON); err != nil {
		return nil, err
	}

	return &mapping, nil
}

// unmarshalMappingJSON decodes the JSONB columns of a mappings row into the
// model. Columns written by this package are never SQL NULL; nil configs are
// stored as JSON null and round-trip back to nil pointers.
func unmarshalMappingJSON(mapping *model.IntegrationMapping, staticJSON, fieldsJSON, soapJSON, authJSON, metaDataJSON []byte) error {
	if err := json.Unmarshal(staticJSON, &mapping.StaticValues); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal static values", err)
	}
	if err := json.Unmarshal(fieldsJSON, &mapping.FieldMappings); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal field mappings", err)
	}
	if err := json.Unmarshal(soapJSON, &mapping.SoapConfig); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal soap config", err)
	}
	if err := json.Unmarshal(authJSON, &mapping.Auth); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal auth config", err)
	}
	if err := json.Unmarshal(metaDataJSON, &mapping.MetaData); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
	}
	return nil
}
