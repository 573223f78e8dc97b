package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
	"github.com/kirillkom/workflow-dashboard/internal/core/ports"
)

const (
	statsLogWindow     = 500
	chartLogWindow     = 30
	recentLogWindow    = 10
	recentFileWindow   = 10
	recentSheetEntries = 5
	executionsPerDays  = 7
	defaultExecLimit   = 50
	maxExecLimit       = 250
	unknownSheetStatus = "Unknown"
)

type DashboardConfig struct {
	SheetID    string
	SheetRange string
}

// DashboardUseCase aggregates workflow logs, automation executions, sheet
// values and recent uploads into the dashboard summary.
type DashboardUseCase struct {
	logs       ports.WorkflowLogRepository
	files      ports.FileRepository
	executions ports.ExecutionSource
	sheets     ports.SheetReader
	cfg        DashboardConfig
	now        func() time.Time
}

func NewDashboardUseCase(
	logs ports.WorkflowLogRepository,
	files ports.FileRepository,
	executions ports.ExecutionSource,
	sheets ports.SheetReader,
	cfg DashboardConfig,
) *DashboardUseCase {
	return &DashboardUseCase{
		logs:       logs,
		files:      files,
		executions: executions,
		sheets:     sheets,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (uc *DashboardUseCase) Executions(ctx context.Context, limit int) ([]domain.Execution, error) {
	executions, err := uc.executions.ListExecutions(ctx, clampLimit(limit, defaultExecLimit, maxExecLimit))
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	return executions, nil
}

func (uc *DashboardUseCase) Sheet(ctx context.Context) (*domain.SheetValues, error) {
	values, err := uc.sheets.GetValues(ctx, uc.cfg.SheetID, uc.cfg.SheetRange)
	if err != nil {
		return nil, fmt.Errorf("read sheet values: %w", err)
	}
	return values, nil
}

// Summary fetches every source concurrently. A failing source leaves its
// section empty and adds a warning; the summary itself only fails when ctx
// is done.
func (uc *DashboardUseCase) Summary(ctx context.Context) (*domain.DashboardSummary, error) {
	var (
		mu         sync.Mutex
		warnings   []string
		logs       []domain.WorkflowLog
		executions []domain.Execution
		sheet      *domain.SheetValues
		files      []domain.FileRecord
	)
	degrade := func(source string, err error) {
		slog.Warn("dashboard_source_failed", "source", source, "error", err)
		mu.Lock()
		warnings = append(warnings, fmt.Sprintf("%s: %v", source, err))
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := uc.logs.ListRecent(gctx, statsLogWindow)
		if err != nil {
			degrade("workflow_logs", err)
			return nil
		}
		logs = out
		return nil
	})
	g.Go(func() error {
		out, err := uc.executions.ListExecutions(gctx, defaultExecLimit)
		if err != nil {
			degrade("executions", err)
			return nil
		}
		executions = out
		return nil
	})
	g.Go(func() error {
		out, err := uc.sheets.GetValues(gctx, uc.cfg.SheetID, uc.cfg.SheetRange)
		if err != nil {
			degrade("sheet", err)
			return nil
		}
		sheet = out
		return nil
	})
	g.Go(func() error {
		out, err := uc.files.ListRecent(gctx, recentFileWindow)
		if err != nil {
			degrade("uploaded_files", err)
			return nil
		}
		files = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if sheet == nil {
		sheet = &domain.SheetValues{}
	}
	sort.Strings(warnings)

	return &domain.DashboardSummary{
		Stats: buildStats(logs, executions, sheet),
		Charts: domain.DashboardCharts{
			ExecutionsPerDay: executionsPerDay(head(logs, chartLogWindow)),
			SuccessVsFailed:  successVsFailed(head(logs, chartLogWindow)),
			SheetStatus:      sheetStatusCounts(sheet),
		},
		RecentActivity: domain.RecentActivity{
			WorkflowLogs: nonNil(head(logs, recentLogWindow)),
			SheetEntries: nonNil(head(sheet.Rows, recentSheetEntries)),
		},
		UploadedFiles: nonNil(files),
		Warnings:      warnings,
		GeneratedAt:   uc.now().UTC(),
	}, nil
}

func buildStats(logs []domain.WorkflowLog, executions []domain.Execution, sheet *domain.SheetValues) domain.DashboardStats {
	stats := domain.DashboardStats{
		TotalWorkflows:  len(executions),
		TotalExecutions: len(logs),
		SheetRowCount:   sheet.TotalRows(),
	}
	if len(logs) == 0 {
		return stats
	}

	var succeeded int
	var totalTime int64
	for _, log := range logs {
		if isSuccess(log.Status) {
			succeeded++
		}
		totalTime += log.ExecutionTimeMS
	}
	stats.SuccessRate = int(math.Round(float64(succeeded) / float64(len(logs)) * 100))
	stats.AvgResponseTimeMS = int(math.Round(float64(totalTime) / float64(len(logs))))
	return stats
}

// executionsPerDay counts logs per calendar day (UTC), oldest first, keeping
// the most recent days only.
func executionsPerDay(logs []domain.WorkflowLog) []domain.DayCount {
	counts := make(map[string]int)
	for _, log := range logs {
		counts[log.CreatedAt.UTC().Format(time.DateOnly)]++
	}
	days := make([]string, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Strings(days)
	if len(days) > executionsPerDays {
		days = days[len(days)-executionsPerDays:]
	}

	out := make([]domain.DayCount, 0, len(days))
	for _, day := range days {
		out = append(out, domain.DayCount{Date: day, Executions: counts[day]})
	}
	return out
}

func successVsFailed(logs []domain.WorkflowLog) []domain.StatusCount {
	var succeeded, failed int
	for _, log := range logs {
		if isSuccess(log.Status) {
			succeeded++
		} else {
			failed++
		}
	}
	return []domain.StatusCount{
		{Name: "Success", Count: succeeded},
		{Name: "Failed", Count: failed},
	}
}

// sheetStatusCounts groups sheet rows by their "Status" column, falling back
// to the fourth column when no such header exists.
func sheetStatusCounts(sheet *domain.SheetValues) []domain.StatusCount {
	column := 3
	for idx, header := range sheet.Headers {
		if strings.EqualFold(strings.TrimSpace(header), "status") {
			column = idx
			break
		}
	}

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, row := range sheet.Rows {
		status := unknownSheetStatus
		if column < len(row) && strings.TrimSpace(row[column]) != "" {
			status = strings.TrimSpace(row[column])
		}
		if _, seen := counts[status]; !seen {
			order = append(order, status)
		}
		counts[status]++
	}

	out := make([]domain.StatusCount, 0, len(order))
	for _, status := range order {
		out = append(out, domain.StatusCount{Name: status, Count: counts[status]})
	}
	return out
}

func isSuccess(status domain.LogStatus) bool {
	return strings.EqualFold(string(status), string(domain.LogStatusSuccess))
}

func head[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// CachedDashboard serves the last computed summary so that UI polling does
// not fan out to every backend on each request. Executions and Sheet pass
// through to the embedded use case.
type CachedDashboard struct {
	*DashboardUseCase
	maxAge time.Duration

	mu      sync.RWMutex
	current *domain.DashboardSummary
}

func NewCachedDashboard(uc *DashboardUseCase, maxAge time.Duration) *CachedDashboard {
	return &CachedDashboard{DashboardUseCase: uc, maxAge: maxAge}
}

// Refresh recomputes the snapshot. It is the scheduled task body.
func (c *CachedDashboard) Refresh(ctx context.Context) error {
	summary, err := c.DashboardUseCase.Summary(ctx)
	if err != nil {
		return fmt.Errorf("refresh dashboard snapshot: %w", err)
	}
	c.mu.Lock()
	c.current = summary
	c.mu.Unlock()
	return nil
}

// Summary returns the cached snapshot, recomputing it when missing or older
// than maxAge.
func (c *CachedDashboard) Summary(ctx context.Context) (*domain.DashboardSummary, error) {
	c.mu.RLock()
	current := c.current
	c.mu.RUnlock()

	if current != nil && (c.maxAge <= 0 || c.now().Sub(current.GeneratedAt) <= c.maxAge) {
		return current, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, nil
}
