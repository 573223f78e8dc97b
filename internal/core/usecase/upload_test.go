package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
	"github.com/kirillkom/workflow-dashboard/internal/infrastructure/parser"
)

func csvCandidate(body string) domain.UploadCandidate {
	return domain.UploadCandidate{
		Body:         []byte(body),
		MediaType:    "text/csv",
		Size:         int64(len(body)),
		OriginalName: "people list.csv",
	}
}

func collectProgress(out *[]domain.Progress) func(domain.Progress) {
	return func(p domain.Progress) {
		*out = append(*out, p)
	}
}

func TestUploadAndProcessCSVEndsProcessed(t *testing.T) {
	repo := newFileRepoFake()
	store := &contentStoreFake{}
	events := &eventsFake{}
	notifier := &notifierFake{result: domain.ForwardResult{StatusCode: 200, Response: []byte(`{"accepted":true}`)}}
	pipeline := NewUploadPipeline(parser.New(), store, repo, notifier, WithEventPublisher(events))

	var progress []domain.Progress
	record, err := pipeline.UploadAndProcess(
		context.Background(),
		csvCandidate("name,age\nana,30\nbob,41\ncid,22\n"),
		"client-1",
		collectProgress(&progress),
	)
	if err != nil {
		t.Fatalf("UploadAndProcess() error = %v", err)
	}

	if record.Status != domain.FileStatusProcessed {
		t.Fatalf("expected processed, got %s", record.Status)
	}
	if string(record.ExternalResponse) != `{"accepted":true}` {
		t.Fatalf("expected automation response on record, got %s", record.ExternalResponse)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected one inserted record, got %d", len(repo.inserted))
	}
	inserted := repo.inserted[0]
	if inserted.Status != domain.FileStatusPending || inserted.OwnerID != "client-1" {
		t.Fatalf("unexpected inserted record: %+v", inserted)
	}
	if inserted.ParsedPayload == nil || inserted.ParsedPayload.RowCount() != 3 {
		t.Fatalf("expected 3 parsed rows")
	}
	if len(store.paths) != 1 || !strings.HasPrefix(store.paths[0], "uploads/") || !strings.HasSuffix(store.paths[0], "_people_list.csv") {
		t.Fatalf("unexpected storage path: %v", store.paths)
	}

	wantPhases := []domain.PipelineState{
		domain.StateValidating, domain.StateParsing, domain.StateSubmitting,
		domain.StateForwarding, domain.StateFinalizing, domain.StateDone,
	}
	if len(progress) != len(wantPhases) {
		t.Fatalf("expected %d progress entries, got %d", len(wantPhases), len(progress))
	}
	for i, p := range progress {
		if p.Phase != wantPhases[i] {
			t.Fatalf("progress[%d] phase = %s, want %s", i, p.Phase, wantPhases[i])
		}
		if i > 0 && p.Percent < progress[i-1].Percent {
			t.Fatalf("progress percent went backwards at %d: %d < %d", i, p.Percent, progress[i-1].Percent)
		}
	}
	if last := progress[len(progress)-1]; last.Percent != 100 || last.Warning != "" {
		t.Fatalf("unexpected final progress: %+v", last)
	}

	if len(events.events) != 1 || events.events[0].Status != domain.FileStatusProcessed {
		t.Fatalf("expected one processed status event, got %+v", events.events)
	}
}

func TestUploadAndProcessInvalidJSONWritesNothing(t *testing.T) {
	repo := newFileRepoFake()
	store := &contentStoreFake{}
	notifier := &notifierFake{}
	pipeline := NewUploadPipeline(parser.New(), store, repo, notifier)

	body := `{"name": "ana",`
	_, err := pipeline.UploadAndProcess(context.Background(), domain.UploadCandidate{
		Body:         []byte(body),
		MediaType:    "application/json",
		Size:         int64(len(body)),
		OriginalName: "broken.json",
	}, "", nil)
	if !domain.IsKind(err, domain.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	var pipelineErr *domain.PipelineError
	if !errors.As(err, &pipelineErr) || pipelineErr.State != domain.StateParsing {
		t.Fatalf("expected failure in parsing state, got %v", err)
	}
	if len(repo.inserted) != 0 || len(store.paths) != 0 || notifier.calls != 0 {
		t.Fatalf("nothing may be written after a parse failure")
	}
}

func TestUploadAndProcessInsertFailureIsStorageError(t *testing.T) {
	repo := newFileRepoFake()
	repo.insertErr = errUnavailable
	store := &contentStoreFake{}
	notifier := &notifierFake{}
	pipeline := NewUploadPipeline(&parserFake{payload: domain.ParsedPayload{Kind: domain.PayloadTabularCSV}}, store, repo, notifier)

	var progress []domain.Progress
	_, err := pipeline.UploadAndProcess(context.Background(), csvCandidate("a\n1\n"), "", collectProgress(&progress))
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	var pipelineErr *domain.PipelineError
	if !errors.As(err, &pipelineErr) || pipelineErr.State != domain.StateSubmitting {
		t.Fatalf("expected failure in submitting state, got %v", err)
	}
	if len(store.paths) != 1 {
		t.Fatalf("blob should have been written before the insert failed")
	}
	if notifier.calls != 0 {
		t.Fatalf("forward must not run after a submit failure")
	}
	if last := progress[len(progress)-1]; last.Phase != domain.StateFailed {
		t.Fatalf("expected failed final progress, got %+v", last)
	}
}

func TestUploadAndProcessForwardWarningMarksFailed(t *testing.T) {
	repo := newFileRepoFake()
	events := &eventsFake{}
	notifier := &notifierFake{result: domain.ForwardResult{Warning: "forward warning: dial tcp 127.0.0.1:5678: connection refused"}}
	pipeline := NewUploadPipeline(
		&parserFake{payload: domain.ParsedPayload{Kind: domain.PayloadTabularCSV, Rows: []domain.Row{{"a": "1"}}}},
		&contentStoreFake{},
		repo,
		notifier,
		WithEventPublisher(events),
	)

	var progress []domain.Progress
	record, err := pipeline.UploadAndProcess(context.Background(), csvCandidate("a\n1\n"), "", collectProgress(&progress))
	if err != nil {
		t.Fatalf("forward problems must not fail the pipeline: %v", err)
	}
	if record.Status != domain.FileStatusFailed {
		t.Fatalf("expected failed status, got %s", record.Status)
	}
	if record.OwnerID != defaultOwnerID {
		t.Fatalf("expected default owner id, got %q", record.OwnerID)
	}
	last := progress[len(progress)-1]
	if last.Phase != domain.StateDone || !strings.Contains(last.Warning, "connection refused") {
		t.Fatalf("expected done with forward warning, got %+v", last)
	}
	if len(events.events) != 1 || events.events[0].Status != domain.FileStatusFailed {
		t.Fatalf("expected failed status event, got %+v", events.events)
	}
}

func TestUploadAndProcessUnsupportedTypeSkipsParser(t *testing.T) {
	p := &parserFake{}
	pipeline := NewUploadPipeline(p, &contentStoreFake{}, newFileRepoFake(), &notifierFake{})

	_, err := pipeline.UploadAndProcess(context.Background(), domain.UploadCandidate{
		Body:         []byte("plain text"),
		MediaType:    "text/plain",
		OriginalName: "notes.txt",
	}, "", nil)
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("parser must not run for rejected uploads")
	}
}

func TestUploadAndProcessRejectsOversizedFile(t *testing.T) {
	body := strings.Repeat("a", int(domain.MaxUploadBytes)+1)
	pipeline := NewUploadPipeline(&parserFake{}, &contentStoreFake{}, newFileRepoFake(), &notifierFake{})

	_, err := pipeline.UploadAndProcess(context.Background(), csvCandidate(body), "", nil)
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUploadAndProcessStepTimeout(t *testing.T) {
	pipeline := NewUploadPipeline(
		&parserFake{payload: domain.ParsedPayload{Kind: domain.PayloadTabularCSV}},
		&contentStoreFake{block: true},
		newFileRepoFake(),
		&notifierFake{},
		WithStepTimeout(20*time.Millisecond),
	)

	_, err := pipeline.UploadAndProcess(context.Background(), csvCandidate("a\n1\n"), "", nil)
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected storage error after timeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestUploadAndProcessSlowStepThatSucceedsIsKept(t *testing.T) {
	repo := newFileRepoFake()
	store := &contentStoreFake{delay: 40 * time.Millisecond}
	pipeline := NewUploadPipeline(
		&parserFake{payload: domain.ParsedPayload{Kind: domain.PayloadTabularCSV}},
		store,
		repo,
		&notifierFake{result: domain.ForwardResult{StatusCode: 200}},
		WithStepTimeout(10*time.Millisecond),
	)

	record, err := pipeline.UploadAndProcess(context.Background(), csvCandidate("a\n1\n"), "", nil)
	if err != nil {
		t.Fatalf("completed step must not be reported as timed out: %v", err)
	}
	if record.Status != domain.FileStatusProcessed {
		t.Fatalf("expected processed, got %s", record.Status)
	}
	if len(store.paths) != 1 || len(repo.inserted) != 1 {
		t.Fatalf("expected blob and record to be written, got paths=%d inserted=%d", len(store.paths), len(repo.inserted))
	}
}

func TestUploadAndProcessEventFailureIsWarning(t *testing.T) {
	pipeline := NewUploadPipeline(
		&parserFake{payload: domain.ParsedPayload{Kind: domain.PayloadTabularCSV}},
		&contentStoreFake{},
		newFileRepoFake(),
		&notifierFake{result: domain.ForwardResult{Skipped: true}},
		WithEventPublisher(&eventsFake{err: errUnavailable}),
	)

	var progress []domain.Progress
	record, err := pipeline.UploadAndProcess(context.Background(), csvCandidate("a\n1\n"), "", collectProgress(&progress))
	if err != nil {
		t.Fatalf("UploadAndProcess() error = %v", err)
	}
	if record.Status != domain.FileStatusProcessed {
		t.Fatalf("skipped forward should still process, got %s", record.Status)
	}
	if last := progress[len(progress)-1]; !strings.Contains(last.Warning, "status event not published") {
		t.Fatalf("expected event warning, got %+v", last)
	}
}

func TestValidateCandidate(t *testing.T) {
	cases := []struct {
		name      string
		candidate domain.UploadCandidate
		ok        bool
	}{
		{"csv", domain.UploadCandidate{Body: []byte("a"), MediaType: "text/csv; charset=utf-8", Size: 1}, true},
		{"xlsx", domain.UploadCandidate{Body: []byte("a"), MediaType: domain.MediaTypeModernSpreadsheet, Size: 1}, true},
		{"empty", domain.UploadCandidate{MediaType: "text/csv"}, false},
		{"size mismatch", domain.UploadCandidate{Body: []byte("abc"), MediaType: "text/csv", Size: 5}, false},
		{"pdf", domain.UploadCandidate{Body: []byte("a"), MediaType: "application/pdf", Size: 1}, false},
	}
	for _, tc := range cases {
		err := ValidateCandidate(tc.candidate)
		if tc.name == "pdf" && (err == nil || !strings.Contains(err.Error(), domain.MediaTypeCSV)) {
			t.Fatalf("pdf: expected allowed types in error, got %v", err)
		}
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !domain.IsKind(err, domain.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}
