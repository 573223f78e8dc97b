package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
	"github.com/kirillkom/workflow-dashboard/internal/core/ports"
)

// FileStatusUseCase applies status callbacks sent by the automation tool
// after it has processed a forwarded file.
type FileStatusUseCase struct {
	repo   ports.FileRepository
	events ports.EventPublisher
	now    func() time.Time
}

func NewFileStatusUseCase(repo ports.FileRepository, events ports.EventPublisher) *FileStatusUseCase {
	return &FileStatusUseCase{
		repo:   repo,
		events: events,
		now:    time.Now,
	}
}

func (uc *FileStatusUseCase) Apply(
	ctx context.Context,
	fileID string,
	status domain.FileStatus,
	response json.RawMessage,
) (*domain.FileRecord, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "apply file status", fmt.Errorf("file id is required"))
	}
	if status == "" {
		status = domain.FileStatusProcessed
	}
	if !status.Terminal() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "apply file status", fmt.Errorf("status %q is not terminal", status))
	}
	if len(response) > 0 && !json.Valid(response) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "apply file status", fmt.Errorf("response is not valid json"))
	}

	record, err := uc.repo.MarkStatus(ctx, fileID, status, response)
	if err != nil {
		return nil, fmt.Errorf("mark file status: %w", err)
	}

	if uc.events != nil {
		var elapsed int64
		if record.ProcessedAt != nil {
			elapsed = record.ProcessedAt.Sub(record.CreatedAt).Milliseconds()
		}
		event := domain.FileStatusEvent{
			FileID:     record.ID,
			FileName:   record.FileName,
			Status:     record.Status,
			ElapsedMS:  elapsed,
			Message:    statusMessage(record.FileName, record.Status) + " by automation",
			OccurredAt: uc.now().UTC(),
		}
		if err := uc.events.PublishFileStatus(ctx, event); err != nil {
			slog.Warn("status_event_publish_failed", "file_id", record.ID, "error", err)
		}
	}
	return record, nil
}
