// Package schedule starts unattended renders on a cron expression.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"rendercue/internal/logger"
	"rendercue/internal/supervisor"
)

// RenderFunc runs one complete render and returns its summary.
type RenderFunc func(ctx context.Context) (supervisor.Summary, error)

type Options struct {
	// Expr is a standard five field cron expression or a descriptor such as
	// "@hourly" or "@every 30m".
	Expr   string
	Render RenderFunc
	// MaxRuns stops the scheduler after that many finished renders. Zero
	// means run until the context is cancelled.
	MaxRuns int
	Logger  *logger.Logger
}

// Result is one triggered render.
type Result struct {
	StartedAt time.Time
	Summary   supervisor.Summary
	Err       error
}

type Scheduler struct {
	opts     Options
	log      *logger.Logger
	schedule cron.Schedule

	busy    atomic.Bool
	skipped atomic.Int64

	mu      sync.Mutex
	results []Result
	done    chan struct{}
	once    sync.Once
}

// Parse validates expr the same way the scheduler will.
func Parse(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("schedule expression is required")
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return sched, nil
}

func New(opts Options) (*Scheduler, error) {
	if opts.Render == nil {
		return nil, errors.New("render function is required")
	}
	sched, err := Parse(opts.Expr)
	if err != nil {
		return nil, err
	}
	if opts.MaxRuns < 0 {
		opts.MaxRuns = 0
	}
	return &Scheduler{
		opts:     opts,
		log:      logger.OrNop(opts.Logger).WithComponent("schedule"),
		schedule: sched,
		done:     make(chan struct{}),
	}, nil
}

// Next reports when the scheduler would fire after from.
func (s *Scheduler) Next(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Run fires renders until ctx is cancelled or MaxRuns renders finished.
// A tick that arrives while a render is still running is skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithLogger(cronLogger{log: s.log}))
	c.Schedule(s.schedule, cron.FuncJob(func() { s.trigger(ctx) }))
	c.Start()
	s.log.Info("schedule started", "expr", s.opts.Expr, "next", s.Next(time.Now()).Format(time.RFC3339))

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-s.done:
	}
	<-c.Stop().Done()
	s.log.Info("schedule stopped", "runs", len(s.Results()), "skipped", s.Skipped())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Scheduler) trigger(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.log.Warn("previous render still running, skipping tick")
		return
	}
	defer s.busy.Store(false)

	started := time.Now()
	s.log.Info("scheduled render starting")
	summary, err := s.opts.Render(ctx)
	if err != nil {
		s.log.Error("scheduled render failed", "error", err)
	} else {
		s.log.Info("scheduled render finished", "run_id", summary.RunID, "success", summary.Success)
	}

	s.mu.Lock()
	s.results = append(s.results, Result{StartedAt: started, Summary: summary, Err: err})
	reached := s.opts.MaxRuns > 0 && len(s.results) >= s.opts.MaxRuns
	s.mu.Unlock()
	if reached {
		s.once.Do(func() { close(s.done) })
	}
}

func (s *Scheduler) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.results...)
}

func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// cronLogger routes cron's own diagnostics into the process logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
