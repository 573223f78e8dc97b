package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/workflow-dashboard/internal/config"
	"github.com/kirillkom/workflow-dashboard/internal/core/ports"
	"github.com/kirillkom/workflow-dashboard/internal/core/usecase"
	"github.com/kirillkom/workflow-dashboard/internal/infrastructure/executions"
	"github.com/kirillkom/workflow-dashboard/internal/infrastructure/notifier/webhook"
	"github.com/kirillkom/workflow-dashboard/internal/infrastructure/parser"
	"github.com/kirillkom/workflow-dashboard/internal/infrastructure/queue/nats"
	"github.com/kirillkom/workflow-dashboard/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/workflow-dashboard/internal/infrastructure/resilience"
	"github.com/kirillkom/workflow-dashboard/internal/infrastructure/sheets"
	"github.com/kirillkom/workflow-dashboard/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/workflow-dashboard/internal/infrastructure/storage/s3store"
	"github.com/kirillkom/workflow-dashboard/internal/observability/metrics"
	"github.com/kirillkom/workflow-dashboard/internal/scheduler"
)

const dashboardRefreshTask = "dashboard_refresh"

type App struct {
	Config  config.Config
	Metrics *metrics.HTTPServerMetrics

	// Bus is nil when NATS_URL is empty; status events are then written to
	// the workflow log in-process.
	Bus *nats.Bus

	Uploads   *usecase.UploadPipeline
	Files     ports.FileReader
	Statuses  *usecase.FileStatusUseCase
	Logs      *usecase.WorkflowLogUseCase
	Dashboard *usecase.CachedDashboard
	Scheduler *scheduler.Scheduler

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	files := postgres.NewFileRepository(db)
	logRepo := postgres.NewWorkflowLogRepository(db)

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: cfg.RetryInitialBackoff,
		BreakerEnabled:      cfg.BreakerEnabled,
	})

	store, err := newContentStore(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var bus *nats.Bus
	if cfg.NATSURL != "" {
		bus, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init event bus: %w", err)
		}
	}

	sheetReader, executionSource, err := newDashboardSources(ctx, cfg, executor)
	if err != nil {
		if bus != nil {
			bus.Close()
		}
		_ = db.Close()
		return nil, err
	}

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	logs := usecase.NewWorkflowLogUseCase(logRepo)

	var events ports.EventPublisher = usecase.NewInProcessPublisher(logs)
	if bus != nil {
		events = bus
	}

	notifier := webhook.New(cfg.AutomationWebhookURL, webhook.Options{
		Timeout:            cfg.AutomationTimeout,
		ResilienceExecutor: executor,
	})
	uploads := usecase.NewUploadPipeline(
		parser.New(),
		resilience.WrapContentStore(store, executor),
		files,
		notifier,
		usecase.WithStepTimeout(cfg.PipelineStepTimeout),
		usecase.WithEventPublisher(events),
		usecase.WithObserver(httpMetrics),
	)

	dashboard := usecase.NewCachedDashboard(
		usecase.NewDashboardUseCase(logRepo, files, executionSource, sheetReader, usecase.DashboardConfig{
			SheetID:    cfg.GoogleSheetID,
			SheetRange: cfg.GoogleSheetRange,
		}),
		2*cfg.DashboardRefreshInterval,
	)

	sched := scheduler.New()
	if err := sched.Register(scheduler.Task{
		Name:       dashboardRefreshTask,
		Interval:   cfg.DashboardRefreshInterval,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			err := dashboard.Refresh(ctx)
			httpMetrics.ObserveDashboardRefresh(err)
			return err
		},
	}); err != nil {
		if bus != nil {
			bus.Close()
		}
		_ = db.Close()
		return nil, fmt.Errorf("register scheduled tasks: %w", err)
	}

	slog.Info("bootstrap_ready",
		"service", service,
		"content_store", cfg.ContentStore,
		"data_source", cfg.DataSource,
		"event_bus", bus != nil,
		"automation_webhook", cfg.AutomationWebhookURL != "",
	)

	return &App{
		Config:  cfg,
		Metrics: httpMetrics,
		Bus:     bus,

		Uploads:   uploads,
		Files:     files,
		Statuses:  usecase.NewFileStatusUseCase(files, events),
		Logs:      logs,
		Dashboard: dashboard,
		Scheduler: sched,

		closeFn: closeAll(sched, bus, db),
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func closeAll(sched *scheduler.Scheduler, bus *nats.Bus, db *sql.DB) func() {
	return func() {
		sched.Stop()
		if bus != nil {
			bus.Close()
		}
		_ = db.Close()
	}
}

func newContentStore(ctx context.Context, cfg config.Config) (ports.ContentStore, error) {
	switch cfg.ContentStore {
	case config.ContentStoreS3:
		store, err := s3store.New(ctx, s3store.Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			UsePathStyle:    cfg.S3PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 content store: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure s3 bucket: %w", err)
		}
		return store, nil
	default:
		store, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init local content store: %w", err)
		}
		return store, nil
	}
}

func newDashboardSources(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.SheetReader, ports.ExecutionSource, error) {
	if cfg.DataSource != config.DataSourceLive {
		sheetReader, err := sheets.NewMockReader()
		if err != nil {
			return nil, nil, fmt.Errorf("load sheet fixture: %w", err)
		}
		executionSource, err := executions.NewMockSource()
		if err != nil {
			return nil, nil, fmt.Errorf("load execution fixture: %w", err)
		}
		return sheetReader, executionSource, nil
	}

	sheetReader, err := sheets.NewGoogleReader(ctx, sheets.Credentials{
		ClientEmail: cfg.GoogleClientEmail,
		PrivateKey:  cfg.GooglePrivateKey,
	}, executor)
	if err != nil {
		return nil, nil, fmt.Errorf("init google sheets reader: %w", err)
	}
	return sheetReader, executions.NewN8NClient(cfg.N8NBaseURL, cfg.N8NAPIKey, cfg.AutomationTimeout, executor), nil
}
