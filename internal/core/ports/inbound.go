package ports

import (
	"context"
	"encoding/json"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

// ProgressFunc receives pipeline progress in monotonic percent order.
type ProgressFunc func(domain.Progress)

// FileUploader is the inbound contract for the upload pipeline.
type FileUploader interface {
	UploadAndProcess(ctx context.Context, candidate domain.UploadCandidate, ownerID string, progress ProgressFunc) (*domain.FileRecord, error)
}

// FileReader is the read model for uploaded files.
type FileReader interface {
	GetByID(ctx context.Context, id string) (*domain.FileRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.FileRecord, error)
}

// FileStatusApplier handles status callbacks from the automation tool.
type FileStatusApplier interface {
	Apply(ctx context.Context, fileID string, status domain.FileStatus, response json.RawMessage) (*domain.FileRecord, error)
}

// WorkflowLogService records and lists workflow log rows.
type WorkflowLogService interface {
	Record(ctx context.Context, log domain.WorkflowLog) (*domain.WorkflowLog, error)
	ListRecent(ctx context.Context, limit int) ([]domain.WorkflowLog, error)
}

// DashboardReader serves dashboard data to the UI.
type DashboardReader interface {
	Summary(ctx context.Context) (*domain.DashboardSummary, error)
	Executions(ctx context.Context, limit int) ([]domain.Execution, error)
	Sheet(ctx context.Context) (*domain.SheetValues, error)
}
