package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
	"github.com/kirillkom/workflow-dashboard/internal/core/ports"
)

const (
	defaultLogLimit    = 50
	maxLogLimit        = 500
	fileUploadWorkflow = "File Upload Processing"
)

type WorkflowLogUseCase struct {
	repo ports.WorkflowLogRepository
	now  func() time.Time
}

func NewWorkflowLogUseCase(repo ports.WorkflowLogRepository) *WorkflowLogUseCase {
	return &WorkflowLogUseCase{repo: repo, now: time.Now}
}

func (uc *WorkflowLogUseCase) Record(ctx context.Context, log domain.WorkflowLog) (*domain.WorkflowLog, error) {
	log.WorkflowName = strings.TrimSpace(log.WorkflowName)
	if log.WorkflowName == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "record workflow log", fmt.Errorf("workflow name is required"))
	}
	switch domain.LogStatus(strings.ToLower(string(log.Status))) {
	case domain.LogStatusSuccess:
		log.Status = domain.LogStatusSuccess
	case domain.LogStatusFailed:
		log.Status = domain.LogStatusFailed
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "record workflow log", fmt.Errorf("unknown status %q", log.Status))
	}
	if log.ExecutionTimeMS < 0 {
		log.ExecutionTimeMS = 0
	}
	if strings.TrimSpace(log.Message) == "" {
		log.Message = fmt.Sprintf("Test %s log - %s", log.Status, uc.now().UTC().Format(time.TimeOnly))
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = uc.now().UTC()
	}

	if err := uc.repo.Append(ctx, &log); err != nil {
		return nil, fmt.Errorf("append workflow log: %w", err)
	}
	return &log, nil
}

func (uc *WorkflowLogUseCase) ListRecent(ctx context.Context, limit int) ([]domain.WorkflowLog, error) {
	logs, err := uc.repo.ListRecent(ctx, clampLimit(limit, defaultLogLimit, maxLogLimit))
	if err != nil {
		return nil, fmt.Errorf("list workflow logs: %w", err)
	}
	return logs, nil
}

// HandleFileStatus turns a file status event into a workflow log row.
func (uc *WorkflowLogUseCase) HandleFileStatus(ctx context.Context, event domain.FileStatusEvent) error {
	status := domain.LogStatusFailed
	if event.Status == domain.FileStatusProcessed {
		status = domain.LogStatusSuccess
	}
	message := event.Message
	if message == "" {
		message = statusMessage(event.FileName, event.Status)
	}
	_, err := uc.Record(ctx, domain.WorkflowLog{
		WorkflowName:    fileUploadWorkflow,
		Status:          status,
		ExecutionTimeMS: event.ElapsedMS,
		Message:         message,
		CreatedAt:       event.OccurredAt,
	})
	return err
}

// InProcessPublisher delivers file status events straight to the workflow
// log when no message broker is configured.
type InProcessPublisher struct {
	logs *WorkflowLogUseCase
}

func NewInProcessPublisher(logs *WorkflowLogUseCase) *InProcessPublisher {
	return &InProcessPublisher{logs: logs}
}

func (p *InProcessPublisher) PublishFileStatus(ctx context.Context, event domain.FileStatusEvent) error {
	return p.logs.HandleFileStatus(ctx, event)
}

func clampLimit(limit, fallback, ceiling int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > ceiling {
		return ceiling
	}
	return limit
}
