package ports

import (
	"context"
	"encoding/json"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

// ContentStore holds raw uploaded bytes.
type ContentStore interface {
	Put(ctx context.Context, path string, body []byte, contentType string) (string, error)
}

// FileRepository persists file metadata records.
type FileRepository interface {
	Insert(ctx context.Context, record *domain.FileRecord) error
	MarkStatus(ctx context.Context, id string, status domain.FileStatus, externalResponse json.RawMessage) (*domain.FileRecord, error)
	GetByID(ctx context.Context, id string) (*domain.FileRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.FileRecord, error)
}

// WorkflowLogRepository persists workflow log rows.
type WorkflowLogRepository interface {
	Append(ctx context.Context, log *domain.WorkflowLog) error
	ListRecent(ctx context.Context, limit int) ([]domain.WorkflowLog, error)
}

// ContentParser turns raw bytes into a parsed payload.
type ContentParser interface {
	Parse(ctx context.Context, body []byte, mediaType string) (domain.ParsedPayload, error)
}

// AutomationNotifier relays processed files to the automation endpoint.
type AutomationNotifier interface {
	Forward(ctx context.Context, record *domain.FileRecord, payload domain.ParsedPayload) domain.ForwardResult
}

// EventPublisher publishes file status events.
type EventPublisher interface {
	PublishFileStatus(ctx context.Context, event domain.FileStatusEvent) error
}

// EventSubscriber consumes file status events until ctx is done.
type EventSubscriber interface {
	SubscribeFileStatus(ctx context.Context, handler func(context.Context, domain.FileStatusEvent) error) error
}

// SheetReader reads a value range from a spreadsheet.
type SheetReader interface {
	GetValues(ctx context.Context, sheetID, valueRange string) (*domain.SheetValues, error)
}

// ExecutionSource lists automation executions.
type ExecutionSource interface {
	ListExecutions(ctx context.Context, limit int) ([]domain.Execution, error)
}
