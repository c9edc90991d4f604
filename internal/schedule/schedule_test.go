package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"rendercue/internal/supervisor"
)

func TestParseRejectsBadExpressions(t *testing.T) {
	for _, expr := range []string{"", "   ", "* * *", "61 * * * *", "@sometimes"} {
		if _, err := Parse(expr); err == nil {
			t.Fatalf("expected error for %q", expr)
		}
	}
	for _, expr := range []string{"0 2 * * *", "*/15 * * * 1-5", "@hourly", "@every 90s"} {
		if _, err := Parse(expr); err != nil {
			t.Fatalf("Parse(%q): %v", expr, err)
		}
	}
}

func TestNextFollowsExpression(t *testing.T) {
	s, err := New(Options{Expr: "30 2 * * *", Render: noopRender})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	from := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	want := time.Date(2026, 3, 2, 2, 30, 0, 0, time.UTC)
	if got := s.Next(from); !got.Equal(want) {
		t.Fatalf("next = %s, want %s", got, want)
	}
}

func TestNewRequiresRender(t *testing.T) {
	if _, err := New(Options{Expr: "@hourly"}); err == nil {
		t.Fatal("expected error without render func")
	}
}

func TestTriggerSkipsWhileBusy(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	s, err := New(Options{
		Expr: "@hourly",
		Render: func(ctx context.Context) (supervisor.Summary, error) {
			calls.Add(1)
			<-release
			return supervisor.Summary{RunID: "r1", Success: true}, nil
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	first := make(chan struct{})
	go func() {
		s.trigger(context.Background())
		close(first)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first render never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.trigger(context.Background())
	if s.Skipped() != 1 {
		t.Fatalf("expected one skipped tick, got %d", s.Skipped())
	}
	close(release)
	<-first

	results := s.Results()
	if len(results) != 1 || results[0].Summary.RunID != "r1" {
		t.Fatalf("unexpected results %+v", results)
	}
	if calls.Load() != 1 {
		t.Fatalf("render called %d times", calls.Load())
	}
}

func TestTriggerRecordsErrors(t *testing.T) {
	boom := errors.New("boom")
	s, err := New(Options{
		Expr: "@hourly",
		Render: func(ctx context.Context) (supervisor.Summary, error) {
			return supervisor.Summary{}, boom
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.trigger(context.Background())
	results := s.Results()
	if len(results) != 1 || !errors.Is(results[0].Err, boom) {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestRunStopsAfterMaxRuns(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on the cron clock")
	}
	var calls atomic.Int32
	s, err := New(Options{
		Expr:    "@every 1s",
		MaxRuns: 1,
		Render: func(ctx context.Context) (supervisor.Summary, error) {
			calls.Add(1)
			return supervisor.Summary{Success: true}, nil
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls.Load() < 1 {
		t.Fatal("render never fired")
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	s, err := New(Options{Expr: "@yearly", Render: noopRender})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("cancelled run should return nil, got %v", err)
	}
	if len(s.Results()) != 0 {
		t.Fatal("no render expected")
	}
}

func noopRender(context.Context) (supervisor.Summary, error) {
	return supervisor.Summary{}, nil
}
