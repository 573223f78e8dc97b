package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegisterValidatesTask(t *testing.T) {
	s := New()
	defer s.Stop()

	noop := func(context.Context) error { return nil }
	cases := []Task{
		{Name: "", Interval: time.Second, Run: noop},
		{Name: "no-run", Interval: time.Second},
		{Name: "too-fast", Interval: 100 * time.Millisecond, Run: noop},
	}
	for _, task := range cases {
		if err := s.Register(task); err == nil {
			t.Fatalf("expected error for task %+v", task)
		}
	}

	if err := s.Register(Task{Name: "refresh", Interval: time.Second, Run: noop}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := s.Register(Task{Name: "refresh", Interval: time.Second, Run: noop}); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}
}

func TestRunOnStartExecutesImmediately(t *testing.T) {
	s := New()
	ran := make(chan struct{}, 1)
	if err := s.Register(Task{
		Name:       "refresh",
		Interval:   time.Hour,
		RunOnStart: true,
		Run: func(context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("task did not run on start")
	}
}

func TestTickSkippedWhileStartupRunInProgress(t *testing.T) {
	s := New()
	var runs atomic.Int32
	release := make(chan struct{})
	if err := s.Register(Task{
		Name:       "refresh",
		Interval:   time.Second,
		Timeout:    10 * time.Second,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(2500 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		close(release)
		t.Fatalf("expected ticks to be skipped while the start-up run is blocked, got %d runs", got)
	}
	close(release)
}

func TestTaskRunsOnInterval(t *testing.T) {
	s := New()
	var runs int32
	if err := s.Register(Task{
		Name:     "tick",
		Interval: time.Second,
		Run: func(context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&runs) == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if atomic.LoadInt32(&runs) == 0 {
		t.Fatalf("expected at least one scheduled run")
	}
}

func TestContextCancelStopsRunningTasks(t *testing.T) {
	s := New()
	started := make(chan struct{})
	var cancelled int32
	if err := s.Register(Task{
		Name:       "slow",
		Interval:   time.Hour,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			atomic.StoreInt32(&cancelled, 1)
			return ctx.Err()
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	<-started
	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop after context cancel")
	}
	if atomic.LoadInt32(&cancelled) != 1 {
		t.Fatalf("expected running task to observe cancellation")
	}
	s.Stop()
}
