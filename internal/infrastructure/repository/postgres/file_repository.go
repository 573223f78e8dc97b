package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

const fileColumns = `id, file_name, file_path, file_type, file_size, client_id, status, n8n_response, created_at, processed_at`

type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Insert stores a new record. The id and created_at are assigned by the
// database and written back into record.
func (r *FileRepository) Insert(ctx context.Context, record *domain.FileRecord) error {
	var parsed []byte
	if record.ParsedPayload != nil {
		raw, err := json.Marshal(record.ParsedPayload)
		if err != nil {
			return fmt.Errorf("marshal parsed payload: %w", err)
		}
		parsed = raw
	}
	status := record.Status
	if status == "" {
		status = domain.FileStatusPending
	}

	row := r.db.QueryRowContext(ctx, `
INSERT INTO uploaded_files (file_name, file_path, file_type, file_size, client_id, status, parsed_data)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id, created_at
`, record.FileName, record.StoragePath, record.MediaType, record.ByteSize, record.OwnerID, string(status), parsed)

	if err := row.Scan(&record.ID, &record.CreatedAt); err != nil {
		return fmt.Errorf("insert uploaded file: %w", err)
	}
	record.Status = status
	return nil
}

// MarkStatus moves a pending record to a terminal status. Records that are
// already terminal are left untouched and reported as a conflict.
func (r *FileRepository) MarkStatus(
	ctx context.Context,
	id string,
	status domain.FileStatus,
	externalResponse json.RawMessage,
) (*domain.FileRecord, error) {
	if !domain.FileStatusPending.CanTransitionTo(status) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "mark file status", fmt.Errorf("status %q is not terminal", status))
	}
	var response []byte
	if len(externalResponse) > 0 {
		response = externalResponse
	}

	row := r.db.QueryRowContext(ctx, `
UPDATE uploaded_files
SET status = $2, n8n_response = COALESCE($3, n8n_response), processed_at = NOW(), updated_at = NOW()
WHERE id = $1 AND status = 'pending'
RETURNING `+fileColumns, id, string(status), response)

	record, err := scanFile(row)
	if err == nil {
		return &record, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update file status: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, domain.WrapError(
		domain.ErrConflict,
		"mark file status",
		fmt.Errorf("file %s is already %s", id, current.Status),
	)
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (*domain.FileRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+fileColumns+`, parsed_data
FROM uploaded_files
WHERE id = $1
`, id)

	var parsed []byte
	record, err := scanFile(row, &parsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get uploaded file", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan uploaded file: %w", err)
	}
	if len(parsed) > 0 {
		var payload domain.ParsedPayload
		if err := json.Unmarshal(parsed, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal parsed payload: %w", err)
		}
		record.ParsedPayload = &payload
	}
	return &record, nil
}

// ListRecent returns the newest records first, without parsed payloads.
func (r *FileRepository) ListRecent(ctx context.Context, limit int) ([]domain.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+fileColumns+`
FROM uploaded_files
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploaded files: %w", err)
	}
	defer rows.Close()

	out := make([]domain.FileRecord, 0)
	for rows.Next() {
		record, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan uploaded file: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploaded files: %w", err)
	}
	return out, nil
}

func scanFile(row rowScanner, extra ...any) (domain.FileRecord, error) {
	var record domain.FileRecord
	var status string
	var response []byte
	var processedAt sql.NullTime

	dest := []any{
		&record.ID,
		&record.FileName,
		&record.StoragePath,
		&record.MediaType,
		&record.ByteSize,
		&record.OwnerID,
		&status,
		&response,
		&record.CreatedAt,
		&processedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return domain.FileRecord{}, err
	}
	record.Status = domain.FileStatus(status)
	if len(response) > 0 {
		record.ExternalResponse = json.RawMessage(response)
	}
	if processedAt.Valid {
		at := processedAt.Time
		record.ProcessedAt = &at
	}
	return record, nil
}
