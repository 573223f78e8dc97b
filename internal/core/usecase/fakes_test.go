package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

type fileRepoFake struct {
	mu        sync.Mutex
	records   map[string]*domain.FileRecord
	inserted  []domain.FileRecord
	insertErr error
	markErr   error
	listErr   error
	marks     int
}

func newFileRepoFake() *fileRepoFake {
	return &fileRepoFake{records: make(map[string]*domain.FileRecord)}
}

func (f *fileRepoFake) Insert(_ context.Context, record *domain.FileRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	record.ID = fmt.Sprintf("file-%d", len(f.inserted)+1)
	record.CreatedAt = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	stored := *record
	f.records[record.ID] = &stored
	f.inserted = append(f.inserted, stored)
	return nil
}

func (f *fileRepoFake) MarkStatus(_ context.Context, id string, status domain.FileStatus, response json.RawMessage) (*domain.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks++
	if f.markErr != nil {
		return nil, f.markErr
	}
	record, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "mark status", fmt.Errorf("id=%s", id))
	}
	if !record.Status.CanTransitionTo(status) {
		return nil, domain.WrapError(domain.ErrConflict, "mark status", fmt.Errorf("record is %s", record.Status))
	}
	processedAt := record.CreatedAt.Add(1500 * time.Millisecond)
	record.Status = status
	record.ExternalResponse = response
	record.ProcessedAt = &processedAt
	out := *record
	return &out, nil
}

func (f *fileRepoFake) GetByID(_ context.Context, id string) (*domain.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get file", fmt.Errorf("id=%s", id))
	}
	out := *record
	return &out, nil
}

func (f *fileRepoFake) ListRecent(context.Context, int) ([]domain.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.FileRecord, 0, len(f.inserted))
	for i := len(f.inserted) - 1; i >= 0; i-- {
		out = append(out, *f.records[f.inserted[i].ID])
	}
	return out, nil
}

type contentStoreFake struct {
	paths []string
	err   error
	block bool
	delay time.Duration
}

func (f *contentStoreFake) Put(ctx context.Context, path string, _ []byte, _ string) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	f.paths = append(f.paths, path)
	return path, nil
}

type parserFake struct {
	payload domain.ParsedPayload
	err     error
	calls   int
}

func (f *parserFake) Parse(context.Context, []byte, string) (domain.ParsedPayload, error) {
	f.calls++
	return f.payload, f.err
}

type notifierFake struct {
	result domain.ForwardResult
	calls  int
}

func (f *notifierFake) Forward(context.Context, *domain.FileRecord, domain.ParsedPayload) domain.ForwardResult {
	f.calls++
	return f.result
}

type eventsFake struct {
	events []domain.FileStatusEvent
	err    error
}

func (f *eventsFake) PublishFileStatus(_ context.Context, event domain.FileStatusEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type logRepoFake struct {
	mu        sync.Mutex
	logs      []domain.WorkflowLog
	err       error
	lastLimit int
	calls     int
}

func (f *logRepoFake) Append(_ context.Context, log *domain.WorkflowLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	log.ID = fmt.Sprintf("%d", len(f.logs)+1)
	f.logs = append(f.logs, *log)
	return nil
}

func (f *logRepoFake) ListRecent(_ context.Context, limit int) ([]domain.WorkflowLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.WorkflowLog(nil), f.logs...), nil
}

type sheetReaderFake struct {
	values *domain.SheetValues
	err    error
}

func (f *sheetReaderFake) GetValues(context.Context, string, string) (*domain.SheetValues, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *f.values
	return &out, nil
}

type executionSourceFake struct {
	executions []domain.Execution
	err        error
	lastLimit  int
}

func (f *executionSourceFake) ListExecutions(_ context.Context, limit int) ([]domain.Execution, error) {
	f.lastLimit = limit
	return f.executions, f.err
}

var errUnavailable = errors.New("connection refused")
