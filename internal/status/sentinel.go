package status

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

const DefaultPausePoll = time.Second

// Sentinel is the pause file. The supervisor creates and removes it; the
// worker only checks for it.
type Sentinel struct {
	path     string
	interval time.Duration
}

func NewSentinel(path string, interval time.Duration) *Sentinel {
	if interval <= 0 {
		interval = DefaultPausePoll
	}
	return &Sentinel{path: path, interval: interval}
}

func (s *Sentinel) RequestPause() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create pause sentinel %s: %w", s.path, err)
	}
	return f.Close()
}

// Resume removes the sentinel. Resuming a run that is not paused is a no-op.
func (s *Sentinel) Resume() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pause sentinel %s: %w", s.path, err)
	}
	return nil
}

// Clear drops a sentinel left behind by an earlier run.
func (s *Sentinel) Clear() error {
	return s.Resume()
}

func (s *Sentinel) Paused() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Wait blocks while the sentinel exists, polling at the configured
// interval. onPause runs once before blocking and onResume once after;
// neither runs when there is no pause. The returned duration is the time
// spent blocked.
func (s *Sentinel) Wait(ctx context.Context, onPause, onResume func()) (time.Duration, error) {
	if !s.Paused() {
		return 0, nil
	}
	start := time.Now()
	if onPause != nil {
		onPause()
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for s.Paused() {
		select {
		case <-ctx.Done():
			return time.Since(start), ctx.Err()
		case <-ticker.C:
		}
	}
	paused := time.Since(start)
	if onResume != nil {
		onResume()
	}
	return paused, nil
}
