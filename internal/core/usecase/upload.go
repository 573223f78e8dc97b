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

const (
	defaultStepTimeout = 30 * time.Second
	defaultOwnerID     = "demo-client-123"
	defaultUploadName  = "upload.bin"
)

var stepPercent = map[domain.PipelineState]int{
	domain.StateIdle:       0,
	domain.StateValidating: 10,
	domain.StateParsing:    20,
	domain.StateSubmitting: 50,
	domain.StateForwarding: 80,
	domain.StateFinalizing: 90,
	domain.StateDone:       100,
}

var stepLabel = map[domain.PipelineState]string{
	domain.StateValidating: "Validating file",
	domain.StateParsing:    "Parsing content",
	domain.StateSubmitting: "Uploading to storage",
	domain.StateForwarding: "Notifying automation",
	domain.StateFinalizing: "Updating status",
	domain.StateDone:       "Upload complete",
	domain.StateFailed:     "Upload failed",
}

// PipelineObserver receives per-step timings and run outcomes.
type PipelineObserver interface {
	ObserveStep(step domain.PipelineState, duration time.Duration, err error)
	ObserveUpload(outcome domain.PipelineState, duration time.Duration)
	ObserveForwardWarning()
}

type noopObserver struct{}

func (noopObserver) ObserveStep(domain.PipelineState, time.Duration, error) {}
func (noopObserver) ObserveUpload(domain.PipelineState, time.Duration) {}
func (noopObserver) ObserveForwardWarning() {}

type PipelineOption func(*UploadPipeline)

func WithStepTimeout(timeout time.Duration) PipelineOption {
	return func(p *UploadPipeline) {
		if timeout > 0 {
			p.stepTimeout = timeout
		}
	}
}

func WithEventPublisher(events ports.EventPublisher) PipelineOption {
	return func(p *UploadPipeline) {
		p.events = events
	}
}

func WithObserver(observer PipelineObserver) PipelineOption {
	return func(p *UploadPipeline) {
		if observer != nil {
			p.observer = observer
		}
	}
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *UploadPipeline) {
		if now != nil {
			p.now = now
			p.submitter.now = now
		}
	}
}

// UploadPipeline runs validate, parse, submit, forward and finalize for one
// file. Steps run strictly in sequence.
type UploadPipeline struct {
	parser    ports.ContentParser
	submitter *submitter
	notifier  ports.AutomationNotifier
	repo      ports.FileRepository
	events    ports.EventPublisher
	observer  PipelineObserver

	stepTimeout time.Duration
	now         func() time.Time
}

func NewUploadPipeline(
	parser ports.ContentParser,
	store ports.ContentStore,
	repo ports.FileRepository,
	notifier ports.AutomationNotifier,
	opts ...PipelineOption,
) *UploadPipeline {
	p := &UploadPipeline{
		parser:      parser,
		submitter:   &submitter{store: store, repo: repo, now: time.Now},
		notifier:    notifier,
		repo:        repo,
		observer:    noopObserver{},
		stepTimeout: defaultStepTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type pipelineRun struct {
	pipeline *UploadPipeline
	progress ports.ProgressFunc
	state    domain.PipelineState
	started  time.Time
}

func (r *pipelineRun) enter(state domain.PipelineState, warning string) {
	r.state = state
	if r.progress == nil {
		return
	}
	percent, ok := stepPercent[state]
	if !ok {
		percent = -1
	}
	r.progress(domain.Progress{
		Percent: percent,
		Phase:   state,
		Label:   stepLabel[state],
		Warning: warning,
	})
}

func (r *pipelineRun) fail(err error) error {
	failedIn := r.state
	r.state = domain.StateFailed
	if r.progress != nil {
		r.progress(domain.Progress{
			Percent: stepPercent[failedIn],
			Phase:   domain.StateFailed,
			Label:   stepLabel[domain.StateFailed],
			Warning: err.Error(),
		})
	}
	r.pipeline.observer.ObserveUpload(domain.StateFailed, r.pipeline.now().Sub(r.started))
	return &domain.PipelineError{State: failedIn, Err: err}
}

// step runs fn under the per-step timeout and records its duration.
func (r *pipelineRun) step(ctx context.Context, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, r.pipeline.stepTimeout)
	defer cancel()

	start := time.Now()
	// A step that completed keeps its result even if the deadline passed
	// meanwhile; its side effects have already happened.
	err := fn(stepCtx)
	r.pipeline.observer.ObserveStep(r.state, time.Since(start), err)
	return err
}

func (p *UploadPipeline) UploadAndProcess(
	ctx context.Context,
	candidate domain.UploadCandidate,
	ownerID string,
	progress ports.ProgressFunc,
) (*domain.FileRecord, error) {
	run := &pipelineRun{pipeline: p, progress: progress, state: domain.StateIdle, started: p.now()}
	candidate = normalizeCandidate(candidate)
	if strings.TrimSpace(ownerID) == "" {
		ownerID = defaultOwnerID
	}

	run.enter(domain.StateValidating, "")
	if err := run.step(ctx, func(context.Context) error {
		return ValidateCandidate(candidate)
	}); err != nil {
		return nil, run.fail(err)
	}

	run.enter(domain.StateParsing, "")
	var payload domain.ParsedPayload
	if err := run.step(ctx, func(stepCtx context.Context) error {
		parsed, err := p.parser.Parse(stepCtx, candidate.Body, candidate.MediaType)
		if err != nil {
			if domain.IsKind(err, domain.ErrParse) {
				return err
			}
			return domain.WrapError(domain.ErrParse, "parse upload", err)
		}
		payload = parsed
		return nil
	}); err != nil {
		return nil, run.fail(err)
	}

	run.enter(domain.StateSubmitting, "")
	var record *domain.FileRecord
	if err := run.step(ctx, func(stepCtx context.Context) error {
		submitted, err := p.submitter.submit(stepCtx, candidate, payload, ownerID)
		if err != nil {
			return err
		}
		record = submitted
		return nil
	}); err != nil {
		if !domain.IsKind(err, domain.ErrStorage) {
			err = domain.WrapError(domain.ErrStorage, "submit upload", err)
		}
		return nil, run.fail(err)
	}

	run.enter(domain.StateForwarding, "")
	result := p.forward(ctx, run, record, payload)
	if result.Warning != "" {
		p.observer.ObserveForwardWarning()
		slog.Warn("forward_warning", "file_id", record.ID, "warning", result.Warning)
	}

	run.enter(domain.StateFinalizing, result.Warning)
	finalWarning := p.finalize(ctx, run, record, result)

	run.enter(domain.StateDone, joinWarnings(result.Warning, finalWarning))
	p.observer.ObserveUpload(domain.StateDone, p.now().Sub(run.started))
	return record, nil
}

func (p *UploadPipeline) forward(ctx context.Context, run *pipelineRun, record *domain.FileRecord, payload domain.ParsedPayload) domain.ForwardResult {
	var result domain.ForwardResult
	err := run.step(ctx, func(stepCtx context.Context) error {
		result = p.notifier.Forward(stepCtx, record, payload)
		return nil
	})
	if err != nil && result.Warning == "" {
		result.Warning = domain.WrapError(domain.ErrForward, "forward upload", err).Error()
	}
	return result
}

// finalize flips the record status and publishes the status event. Neither
// failure changes the pipeline outcome; the returned warning is reported
// with the final progress entry.
func (p *UploadPipeline) finalize(ctx context.Context, run *pipelineRun, record *domain.FileRecord, result domain.ForwardResult) string {
	status := domain.FileStatusProcessed
	if result.Warning != "" {
		status = domain.FileStatusFailed
	}

	var response json.RawMessage
	if len(result.Response) > 0 && json.Valid(result.Response) {
		response = json.RawMessage(result.Response)
	}

	err := run.step(ctx, func(stepCtx context.Context) error {
		updated, err := p.repo.MarkStatus(stepCtx, record.ID, status, response)
		if err != nil {
			return err
		}
		*record = mergeStatus(*record, updated)
		return nil
	})
	if err != nil {
		slog.Warn("status_update_failed", "file_id", record.ID, "status", status, "error", err)
		return fmt.Sprintf("status update failed: %v", err)
	}

	if p.events != nil {
		event := domain.FileStatusEvent{
			FileID:     record.ID,
			FileName:   record.FileName,
			Status:     record.Status,
			ElapsedMS:  p.now().Sub(run.started).Milliseconds(),
			Message:    statusMessage(record.FileName, record.Status),
			OccurredAt: p.now().UTC(),
		}
		if err := run.step(ctx, func(stepCtx context.Context) error {
			return p.events.PublishFileStatus(stepCtx, event)
		}); err != nil {
			slog.Warn("status_event_publish_failed", "file_id", record.ID, "error", err)
			return fmt.Sprintf("status event not published: %v", err)
		}
	}
	return ""
}

func mergeStatus(current domain.FileRecord, updated *domain.FileRecord) domain.FileRecord {
	if updated == nil {
		return current
	}
	current.Status = updated.Status
	current.ProcessedAt = updated.ProcessedAt
	current.ExternalResponse = updated.ExternalResponse
	return current
}

func normalizeCandidate(candidate domain.UploadCandidate) domain.UploadCandidate {
	if strings.TrimSpace(candidate.OriginalName) == "" {
		candidate.OriginalName = defaultUploadName
	}
	if candidate.Size == 0 {
		candidate.Size = int64(len(candidate.Body))
	}
	return candidate
}

func joinWarnings(warnings ...string) string {
	parts := make([]string, 0, len(warnings))
	for _, w := range warnings {
		if w != "" {
			parts = append(parts, w)
		}
	}
	return strings.Join(parts, "; ")
}

func statusMessage(fileName string, status domain.FileStatus) string {
	if status == domain.FileStatusProcessed {
		return fmt.Sprintf("File %q was successfully processed", fileName)
	}
	return fmt.Sprintf("File %q failed to process", fileName)
}
