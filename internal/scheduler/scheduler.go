package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is a named job run on a fixed interval.
type Task struct {
	Name     string
	Interval time.Duration
	// Timeout bounds one run. Zero means the interval.
	Timeout    time.Duration
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Scheduler runs registered tasks with robfig/cron. A run that is still in
// progress when the next tick fires is skipped; the start-up run counts.
type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	tasks   []scheduledTask
	entries map[string]cron.EntryID
	started bool

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
}

func (s *Scheduler) Register(task Task) error {
	task.Name = strings.TrimSpace(task.Name)
	if task.Name == "" {
		return errors.New("scheduler: task name is required")
	}
	if task.Run == nil {
		return fmt.Errorf("scheduler: task %q has no run func", task.Name)
	}
	if task.Interval < time.Second {
		return fmt.Errorf("scheduler: task %q interval %s is below 1s", task.Name, task.Interval)
	}
	if task.Timeout <= 0 {
		task.Timeout = task.Interval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[task.Name]; exists {
		return fmt.Errorf("scheduler: task %q already registered", task.Name)
	}

	// One guard per task, shared by ticks and the start-up run.
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.run(task)
	}))
	id, err := s.cron.AddJob("@every "+task.Interval.String(), job)
	if err != nil {
		return fmt.Errorf("scheduler: register %q: %w", task.Name, err)
	}
	s.entries[task.Name] = id
	scheduled := scheduledTask{task: task, job: job}
	s.tasks = append(s.tasks, scheduled)
	if s.started && task.RunOnStart {
		s.runAsync(scheduled)
	}
	return nil
}

// Start begins ticking and stops automatically once ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	for _, scheduled := range s.tasks {
		if scheduled.task.RunOnStart {
			s.runAsync(scheduled)
		}
	}
	s.mu.Unlock()

	s.cron.Start()
	slog.Info("scheduler_started", "tasks", len(s.entries))

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopped:
		}
	}()
}

// Stop cancels running tasks and waits for them to return. Safe to call more
// than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
		s.inflight.Wait()
		close(s.stopped)
		slog.Info("scheduler_stopped")
	})
}

func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

type scheduledTask struct {
	task Task
	job  cron.Job
}

func (s *Scheduler) runAsync(scheduled scheduledTask) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		scheduled.job.Run()
	}()
}

func (s *Scheduler) run(task Task) {
	if s.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, task.Timeout)
	defer cancel()

	start := time.Now()
	err := task.Run(ctx)
	duration := time.Since(start)
	if err != nil {
		if errors.Is(err, context.Canceled) && s.ctx.Err() != nil {
			return
		}
		slog.Warn("scheduled_task_failed", "task", task.Name, "duration_ms", duration.Milliseconds(), "error", err)
		return
	}
	slog.Debug("scheduled_task_done", "task", task.Name, "duration_ms", duration.Milliseconds())
}
