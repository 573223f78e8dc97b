package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

var dashboardNow = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func dashboardFixture() (*logRepoFake, *fileRepoFake, *executionSourceFake, *sheetReaderFake) {
	day := func(d int) time.Time { return time.Date(2026, 10, d, 9, 0, 0, 0, time.UTC) }
	logs := &logRepoFake{logs: []domain.WorkflowLog{
		{WorkflowName: "a", Status: domain.LogStatusSuccess, ExecutionTimeMS: 100, CreatedAt: day(15)},
		{WorkflowName: "b", Status: domain.LogStatusSuccess, ExecutionTimeMS: 200, CreatedAt: day(15)},
		{WorkflowName: "c", Status: "SUCCESS", ExecutionTimeMS: 300, CreatedAt: day(14)},
		{WorkflowName: "d", Status: domain.LogStatusFailed, ExecutionTimeMS: 401, CreatedAt: day(13)},
	}}
	files := newFileRepoFake()
	_ = files.Insert(context.Background(), &domain.FileRecord{FileName: "x.csv", Status: domain.FileStatusPending})

	executions := &executionSourceFake{executions: []domain.Execution{{ID: "1"}, {ID: "2"}}}
	sheet := &sheetReaderFake{values: &domain.SheetValues{
		Headers: []string{"ID", "Name", "State", "status"},
		Rows: [][]string{
			{"1", "Ana", "x", "Active"},
			{"2", "Bob", "x", "Pending"},
			{"3", "Cid", "x", "Active"},
			{"4", "Dee", "x"},
		},
		Source: domain.DataSourceMock,
	}}
	return logs, files, executions, sheet
}

func TestDashboardSummaryAggregates(t *testing.T) {
	logs, files, executions, sheet := dashboardFixture()
	uc := NewDashboardUseCase(logs, files, executions, sheet, DashboardConfig{})
	uc.now = func() time.Time { return dashboardNow }

	summary, err := uc.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}

	stats := summary.Stats
	if stats.TotalWorkflows != 2 || stats.TotalExecutions != 4 || stats.SheetRowCount != 4 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.SuccessRate != 75 {
		t.Fatalf("expected success rate 75, got %d", stats.SuccessRate)
	}
	if stats.AvgResponseTimeMS != 250 {
		t.Fatalf("expected avg 250, got %d", stats.AvgResponseTimeMS)
	}

	perDay := summary.Charts.ExecutionsPerDay
	if len(perDay) != 3 || perDay[0].Date != "2026-10-13" || perDay[2].Executions != 2 {
		t.Fatalf("unexpected executions per day: %+v", perDay)
	}
	if sv := summary.Charts.SuccessVsFailed; sv[0].Count != 3 || sv[1].Count != 1 {
		t.Fatalf("unexpected success vs failed: %+v", sv)
	}

	wantSheet := map[string]int{"Active": 2, "Pending": 1, unknownSheetStatus: 1}
	if len(summary.Charts.SheetStatus) != len(wantSheet) {
		t.Fatalf("unexpected sheet status: %+v", summary.Charts.SheetStatus)
	}
	for _, entry := range summary.Charts.SheetStatus {
		if wantSheet[entry.Name] != entry.Count {
			t.Fatalf("sheet status %s: expected %d, got %d", entry.Name, wantSheet[entry.Name], entry.Count)
		}
	}

	if len(summary.UploadedFiles) != 1 || len(summary.RecentActivity.SheetEntries) != 4 {
		t.Fatalf("unexpected recent activity: files=%d sheet=%d", len(summary.UploadedFiles), len(summary.RecentActivity.SheetEntries))
	}
	if len(summary.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", summary.Warnings)
	}
	if !summary.GeneratedAt.Equal(dashboardNow) {
		t.Fatalf("unexpected generated at: %s", summary.GeneratedAt)
	}
}

func TestDashboardSummaryDegradesFailingSources(t *testing.T) {
	logs, files, executions, sheet := dashboardFixture()
	sheet.err = domain.WrapError(domain.ErrTemporary, "read sheet", errUnavailable)
	executions.err = errUnavailable
	uc := NewDashboardUseCase(logs, files, executions, sheet, DashboardConfig{})

	summary, err := uc.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(summary.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", summary.Warnings)
	}
	if !strings.HasPrefix(summary.Warnings[0], "executions:") || !strings.HasPrefix(summary.Warnings[1], "sheet:") {
		t.Fatalf("unexpected warnings order: %v", summary.Warnings)
	}
	if summary.Stats.TotalExecutions != 4 || summary.Stats.TotalWorkflows != 0 || summary.Stats.SheetRowCount != 0 {
		t.Fatalf("unexpected degraded stats: %+v", summary.Stats)
	}
	if summary.RecentActivity.SheetEntries == nil || summary.Charts.SheetStatus == nil {
		t.Fatalf("degraded sections must be empty, not nil")
	}
}

func TestDashboardSummaryEmptyLogs(t *testing.T) {
	_, files, executions, sheet := dashboardFixture()
	uc := NewDashboardUseCase(&logRepoFake{}, files, executions, sheet, DashboardConfig{})

	summary, err := uc.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.Stats.SuccessRate != 0 || summary.Stats.AvgResponseTimeMS != 0 {
		t.Fatalf("expected zero rates without logs, got %+v", summary.Stats)
	}
	if summary.RecentActivity.WorkflowLogs == nil {
		t.Fatalf("workflow logs must be an empty list")
	}
}

func TestDashboardExecutionsClampLimit(t *testing.T) {
	_, files, executions, sheet := dashboardFixture()
	uc := NewDashboardUseCase(&logRepoFake{}, files, executions, sheet, DashboardConfig{})

	if _, err := uc.Executions(context.Background(), 0); err != nil {
		t.Fatalf("Executions() error = %v", err)
	}
	if executions.lastLimit != defaultExecLimit {
		t.Fatalf("expected default limit, got %d", executions.lastLimit)
	}
	if _, err := uc.Executions(context.Background(), 9999); err != nil {
		t.Fatalf("Executions() error = %v", err)
	}
	if executions.lastLimit != maxExecLimit {
		t.Fatalf("expected max limit, got %d", executions.lastLimit)
	}
}

func TestCachedDashboardServesSnapshot(t *testing.T) {
	logs, files, executions, sheet := dashboardFixture()
	uc := NewDashboardUseCase(logs, files, executions, sheet, DashboardConfig{})
	clock := dashboardNow
	uc.now = func() time.Time { return clock }
	cached := NewCachedDashboard(uc, time.Minute)

	first, err := cached.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	second, err := cached.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if first != second || logs.calls != 1 {
		t.Fatalf("expected cached snapshot, got %d source calls", logs.calls)
	}

	clock = clock.Add(2 * time.Minute)
	third, err := cached.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if third == first || logs.calls != 2 {
		t.Fatalf("expected stale snapshot to be recomputed, got %d source calls", logs.calls)
	}

	if err := cached.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if logs.calls != 3 {
		t.Fatalf("expected refresh to hit sources, got %d calls", logs.calls)
	}
}
