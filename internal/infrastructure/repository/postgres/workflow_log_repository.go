package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

type WorkflowLogRepository struct {
	db *sql.DB
}

func NewWorkflowLogRepository(db *sql.DB) *WorkflowLogRepository {
	return &WorkflowLogRepository{db: db}
}

func (r *WorkflowLogRepository) Append(ctx context.Context, log *domain.WorkflowLog) error {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO workflow_logs (workflow_name, status, execution_time, message, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, log.WorkflowName, string(log.Status), log.ExecutionTimeMS, log.Message, log.CreatedAt)
	if err := row.Scan(&log.ID); err != nil {
		return fmt.Errorf("insert workflow log: %w", err)
	}
	return nil
}

func (r *WorkflowLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.WorkflowLog, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, workflow_name, status, execution_time, message, created_at
FROM workflow_logs
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list workflow logs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.WorkflowLog, 0)
	for rows.Next() {
		var log domain.WorkflowLog
		var status string
		if err := rows.Scan(&log.ID, &log.WorkflowName, &status, &log.ExecutionTimeMS, &log.Message, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow log: %w", err)
		}
		log.Status = domain.LogStatus(status)
		out = append(out, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow logs: %w", err)
	}
	return out, nil
}
