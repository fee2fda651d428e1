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

const captureColumns = "capture_id, mapping_name, endpoint, source_type, source_payload, mapped_payload, is_success, error_message, duration_ms, created_at, meta_data"

// RecordCapture persists one mapping-run capture. The capture behavior
// generates the capture ID up front so it can double as the request ID
// returned to callers; an empty ID is filled in here as a fallback.
func (d Datasource) RecordCapture(ctx context.Context, capture *model.MessageCapture) (*model.MessageCapture, error) {
	metaDataJSON, err := json.Marshal(capture.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	if capture.CaptureID == "" {
		capture.CaptureID = model.GenerateUUIDWithSuffix("cap")
	}
	if capture.CreatedAt.IsZero() {
		capture.CreatedAt = time.Now()
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO qam.captures (capture_id, mapping_name, endpoint, source_type, source_payload, mapped_payload, is_success, error_message, duration_ms, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, capture.CaptureID, capture.MappingName, capture.Endpoint, capture.SourceType, capture.SourcePayload, capture.MappedPayload, capture.IsSuccess, capture.ErrorMessage, capture.DurationMs, capture.CreatedAt, metaDataJSON)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Capture with this ID already exists", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record capture", err)
	}

	return capture, nil
}

func (d Datasource) GetCaptureByID(ctx context.Context, id string) (*model.MessageCapture, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+captureColumns+`
		FROM qam.captures
		WHERE capture_id = $1
	`, id)
	return scanCaptureRow(row)
}

func (d Datasource) GetAllCaptures(ctx context.Context, limit, offset int) ([]model.MessageCapture, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+captureColumns+`
		FROM qam.captures
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve captures", err)
	}
	defer func() { _ = rows.Close() }()

	return scanCaptureRows(rows)
}

func (d Datasource) GetCapturesByMapping(ctx context.Context, mappingName string, limit, offset int) ([]model.MessageCapture, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+captureColumns+`
		FROM qam.captures
		WHERE mapping_name = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, mappingName, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve captures", err)
	}
	defer func() { _ = rows.Close() }()

	return scanCaptureRows(rows)
}

// GetAllCapturesWithFilterAndOptions retrieves captures with filtering, sorting, and optional count.
// It uses the filter package to build SQL WHERE and ORDER BY conditions. Filters
// on destination_type resolve through the owning mapping and contribute a CTE.
func (d Datasource) GetAllCapturesWithFilterAndOptions(ctx context.Context, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]model.MessageCapture, *int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	if err := filter.ValidateSortByForTable(opts, "captures"); err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid sort_by field", nil)
	}

	result, err := filter.BuildWithOptions(filters, "captures", "", 1, opts)
	if err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Invalid filter: %s", err.Error()), err)
	}

	selectFields := captureColumns
	if opts != nil && opts.IncludeCount {
		selectFields += ", COUNT(*) OVER() AS total_count"
	}

	baseQuery := fmt.Sprintf(`
		SELECT %s
		FROM qam.captures
	`, selectFields)

	if len(result.CTEs) > 0 {
		baseQuery = "WITH " + strings.Join(result.CTEs, ", ") + baseQuery
	}

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
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve captures", err)
	}
	defer func() { _ = rows.Close() }()

	var captures []model.MessageCapture
	var totalCount *int64

	for rows.Next() {
		capture := model.MessageCapture{}
		var metaDataJSON []byte

		if opts != nil && opts.IncludeCount {
			var count int64
			err = rows.Scan(
				&capture.CaptureID, &capture.MappingName, &capture.Endpoint, &capture.SourceType,
				&capture.SourcePayload, &capture.MappedPayload, &capture.IsSuccess,
				&capture.ErrorMessage, &capture.DurationMs, &capture.CreatedAt, &metaDataJSON,
				&count,
			)
			if totalCount == nil {
				totalCount = &count
			}
		} else {
			err = rows.Scan(
				&capture.CaptureID, &capture.MappingName, &capture.Endpoint, &capture.SourceType,
				&capture.SourcePayload, &capture.MappedPayload, &capture.IsSuccess,
				&capture.ErrorMessage, &capture.DurationMs, &capture.CreatedAt, &metaDataJSON,
			)
		}
		if err != nil {
			return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan capture data", err)
		}

		err = json.Unmarshal(metaDataJSON, &capture.MetaData)
		if err != nil {
			return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}

		captures = append(captures, capture)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over captures", err)
	}

	return captures, totalCount, nil
}

// DeleteCapturesBefore removes captures created before the cutoff and reports
// how many rows were deleted. Used by the retention sweep.
func (d Datasource) DeleteCapturesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		DELETE FROM qam.captures
		WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete captures", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete captures", err)
	}

	return affected, nil
}

func scanCaptureRow(row *sql.Row) (*model.MessageCapture, error) {
	capture := model.MessageCapture{}
	var metaDataJSON []byte

	err := row.Scan(
		&capture.CaptureID, &capture.MappingName, &capture.Endpoint, &capture.SourceType,
		&capture.SourcePayload, &capture.MappedPayload, &capture.IsSuccess,
		&capture.ErrorMessage, &capture.DurationMs, &capture.CreatedAt, &metaDataJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Capture not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve capture", err)
	}

	err = json.Unmarshal(metaDataJSON, &capture.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
	}

	return &capture, nil
}

func scanCaptureRows(rows *sql.Rows) ([]model.MessageCapture, error) {
	captures := []model.MessageCapture{}

	for rows.Next() {
		capture := model.MessageCapture{}
		var metaDataJSON []byte
		err := rows.Scan(
			&capture.CaptureID, &capture.MappingName, &capture.Endpoint, &capture.SourceType,
			&capture.SourcePayload, &capture.MappedPayload, &capture.IsSuccess,
			&capture.ErrorMessage, &capture.DurationMs, &capture.CreatedAt, &metaDataJSON,
		)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan capture data", err)
		}

		err = json.Unmarshal(metaDataJSON, &capture.MetaData)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}

		captures = append(captures, capture)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over captures", err)
	}

	return captures, nil
}
