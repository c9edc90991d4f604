package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"rendercue/internal/logger"
	"rendercue/internal/schedule"
	"rendercue/internal/supervisor"
)

// runSchedule renders the workspace queue every time expr fires. The queue
// is re-read on each run, so edits made between runs are picked up.
func runSchedule(ctx context.Context, args []string) error {
	fs := newFlagSet("schedule")
	f := addRenderFlags(fs)
	expr := fs.String("cron", "", "cron expression, e.g. \"0 2 * * *\" or \"@every 6h\"")
	maxRuns := fs.Int("max-runs", 0, "stop after this many renders (0 = until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := schedule.Parse(*expr); err != nil {
		return err
	}

	log := logger.New(logger.DefaultConfig()).WithComponent("cli")
	render := func(ctx context.Context) (supervisor.Summary, error) {
		sess, err := prepareRender(f, false, os.Stderr)
		if err != nil {
			return supervisor.Summary{}, err
		}
		defer sess.Close()
		for _, w := range sess.warnings {
			sess.log.Warn("queue warning", "warning", w)
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		serveStatusAPI(ctx, *f.httpAddr, sess.ctrl, sess.log)

		summary, err := runPlain(ctx, sess.ctrl, sess.queue, sess.runtime.Tick, true)
		if err != nil {
			return summary, err
		}
		printSummary(summary)
		return summary, summaryError(summary)
	}

	s, err := schedule.New(schedule.Options{
		Expr:    *expr,
		Render:  render,
		MaxRuns: *maxRuns,
		Logger:  log,
	})
	if err != nil {
		return err
	}
	fmt.Printf("scheduled %q; next render at %s (ctrl+c to stop)\n", *expr, s.Next(time.Now()).Format(time.RFC3339))
	if err := s.Run(ctx); err != nil {
		return err
	}

	results := s.Results()
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	fmt.Printf("schedule finished: %d render(s), %d failed, %d skipped\n", len(results), failed, s.Skipped())
	if failed > 0 {
		return fmt.Errorf("%d scheduled render(s) failed", failed)
	}
	return nil
}
