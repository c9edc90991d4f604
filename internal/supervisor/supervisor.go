package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"rendercue/internal/logger"
	"rendercue/internal/manifest"
	"rendercue/internal/model"
	"rendercue/internal/outputpath"
	"rendercue/internal/runstore"
	"rendercue/internal/status"
)

const DefaultTick = 500 * time.Millisecond

var (
	ErrBusy    = errors.New("a render is already running")
	ErrNotBusy = errors.New("no render is running")
)

type Options struct {
	RunsDir      string
	Launcher     Launcher
	Notifier     Notifier
	Tick         time.Duration
	DocumentName string
	Paths        outputpath.PathResolver
	Logger       *logger.Logger
	Now          func() time.Time
}

// Controller launches a worker for a queue snapshot and follows it through
// the status file until it exits. All file traffic with the worker goes
// through the run directory; the controller never shares memory with it.
type Controller struct {
	opts Options
	log  *logger.Logger
	now  func() time.Time

	mu       sync.Mutex
	state    State
	mirror   Mirror
	proc     Process
	stop     bool
	runDir   string
	lock     runstore.RunLock
	reader   *status.Reader
	sentinel *status.Sentinel
	output   string
	summary  *Summary
	done     chan struct{}
}

func New(opts Options) (*Controller, error) {
	if strings.TrimSpace(opts.RunsDir) == "" {
		return nil, errors.New("runs directory is required")
	}
	if opts.Launcher == nil {
		return nil, errors.New("launcher is required")
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		opts:   opts,
		log:    logger.OrNop(opts.Logger).WithComponent("supervisor"),
		now:    now,
		state:  StateIdle,
		mirror: Mirror{State: StateIdle, ETR: status.ETRUnknown, Jobs: []JobView{}},
	}, nil
}

// Start moves Idle -> Launching -> Running: it writes the manifest for a
// snapshot of q into a fresh run directory and spawns the worker.
func (c *Controller) Start(ctx context.Context, q model.Queue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrBusy
	}
	if len(q.Jobs) == 0 {
		return errors.New("render queue is empty")
	}

	snapshot := q.Clone()
	startedAt := c.now()
	runID, runDir, err := runstore.NewRunDir(c.opts.RunsDir, startedAt)
	if err != nil {
		return err
	}
	lock, err := runstore.AcquireRunLock(c.opts.RunsDir, runID)
	if err != nil {
		_ = os.Remove(runDir)
		return err
	}

	c.state = StateLaunching
	c.stop = false
	c.summary = nil
	c.runDir = runDir
	c.lock = lock
	c.mirror = newMirror(snapshot)
	c.mirror.RunID = runID
	c.mirror.StartedAt = startedAt
	c.done = make(chan struct{})

	statusPath := runstore.StatusPath(runDir)
	manifestPath := runstore.ManifestPath(runDir)
	c.reader = status.NewReader(statusPath)
	c.sentinel = status.NewSentinel(runstore.PausePath(statusPath), 0)
	c.output = outputpath.NewResolver(outputpath.Settings{
		GlobalOutputPath: snapshot.GlobalOutputPath,
		Location:         snapshot.OutputLocation,
		DocumentName:     c.opts.DocumentName,
	}, c.opts.Paths, snapshot.Jobs).OutputLocation()

	fail := func(err error) error {
		c.state = StateIdle
		c.mirror.State = StateIdle
		_ = c.lock.Release()
		close(c.done)
		return err
	}

	if err := manifest.WriteFile(manifestPath, snapshot, startedAt); err != nil {
		return fail(err)
	}
	if err := c.sentinel.Clear(); err != nil {
		return fail(err)
	}
	if err := c.reader.Remove(); err != nil {
		return fail(err)
	}
	if err := runstore.SaveRunRecord(runDir, runstore.RunRecord{
		RunID:          runID,
		CreatedAt:      startedAt.UTC().Format(time.RFC3339),
		ManifestPath:   manifestPath,
		StatusPath:     statusPath,
		OutputLocation: c.output,
		TotalJobs:      len(snapshot.Jobs),
	}); err != nil {
		return fail(err)
	}

	proc, err := c.opts.Launcher.Launch(ctx, LaunchSpec{RunID: runID, ManifestPath: manifestPath, StatusPath: statusPath})
	if err != nil {
		return fail(err)
	}
	c.proc = proc
	c.state = StateRunning
	c.mirror.State = StateRunning
	c.mirror.Message = "Worker started"
	c.log.Info("worker launched", "run_id", runID, "jobs", len(snapshot.Jobs), "run_dir", runDir)
	return nil
}

// Tick advances the state machine once. It never blocks on the worker.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return
	}

	if c.stop {
		if err := c.proc.Kill(); err != nil {
			c.log.Warn("kill worker failed", "error", err)
		}
		c.finish(ctx, nil)
		return
	}

	exited, exitErr := c.proc.Exited()
	if st, ok := c.reader.Poll(); ok {
		c.mirror.apply(st)
	}
	c.mirror.PauseRequested = c.sentinel.Paused()
	if exited {
		c.finish(ctx, exitErr)
	}
}

// finish is the Finishing state. It runs with c.mu held.
func (c *Controller) finish(ctx context.Context, exitErr error) {
	c.state = StateFinishing
	c.mirror.State = StateFinishing

	if st, ok := c.reader.Poll(); ok {
		c.mirror.apply(st)
	}
	finishedAt := c.now()
	if c.stop {
		c.mirror.cancelUnfinished(float64(finishedAt.UnixNano()) / float64(time.Second))
		c.mirror.Message = status.MessageCancelled
		if c.mirror.Error == "" {
			c.mirror.Error = "stopped by user"
		}
	} else if !c.mirror.Finished {
		msg := "worker exited before finishing"
		if exitErr != nil {
			msg = fmt.Sprintf("%s: %v", msg, exitErr)
		}
		c.mirror.cancelUnfinished(float64(finishedAt.UnixNano()) / float64(time.Second))
		if c.mirror.Error == "" {
			c.mirror.Error = msg
		}
	}
	c.mirror.HasError = c.mirror.HasError || c.mirror.Error != ""
	c.mirror.PauseRequested = false

	summary := summarize(c.mirror, finishedAt, c.output)
	summary.Stopped = c.stop
	c.summary = &summary

	if err := c.sentinel.Clear(); err != nil {
		c.log.Warn("remove pause sentinel failed", "error", err)
	}
	c.saveRecord(summary)
	if err := c.lock.Release(); err != nil {
		c.log.Warn("release run lock failed", "error", err)
	}
	if c.opts.Notifier != nil {
		if err := c.opts.Notifier.Notify(ctx, summary); err != nil {
			c.log.Warn("notify failed", "error", err)
		}
	}

	c.log.Info("render finished", "run_id", summary.RunID, "success", summary.Success,
		"completed", summary.Completed, "failed", summary.Failed, "cancelled", summary.Cancelled)
	c.proc = nil
	c.state = StateIdle
	c.mirror.State = StateIdle
	close(c.done)
}

func (c *Controller) saveRecord(s Summary) {
	rec, err := runstore.LoadRunRecord(c.runDir)
	if err != nil {
		c.log.Warn("load run record failed", "error", err)
		rec = runstore.RunRecord{RunID: s.RunID}
	}
	rec.FinishedAt = s.FinishedAt.UTC().Format(time.RFC3339)
	rec.Completed = s.Completed
	rec.Failed = s.Failed
	rec.Cancelled = s.Cancelled
	rec.TotalFrames = s.TotalFrames
	rec.DurationSec = int64(s.Duration / time.Second)
	rec.Success = s.Success
	rec.Error = s.Error
	if err := runstore.SaveRunRecord(c.runDir, rec); err != nil {
		c.log.Warn("save run record failed", "error", err)
	}
}

// Run starts a render and ticks until it is over. Cancelling ctx stops the
// worker the same way Stop does.
func (c *Controller) Run(ctx context.Context, q model.Queue) (Summary, error) {
	if err := c.Start(ctx, q); err != nil {
		return Summary{}, err
	}
	done := c.Done()

	ticker := time.NewTicker(c.opts.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			s, _ := c.Summary()
			return s, nil
		case <-ctx.Done():
			c.Stop()
			c.Tick(context.WithoutCancel(ctx))
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Done is closed when the current run reaches Idle again.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return ErrNotBusy
	}
	if err := c.sentinel.RequestPause(); err != nil {
		return err
	}
	c.mirror.PauseRequested = true
	c.log.Info("pause requested")
	return nil
}

func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return ErrNotBusy
	}
	if err := c.sentinel.Resume(); err != nil {
		return err
	}
	c.mirror.PauseRequested = false
	c.log.Info("resume requested")
	return nil
}

// Stop asks the next tick to kill the worker. There is no graceful
// shutdown: the frame in flight is abandoned.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning && !c.stop {
		c.stop = true
		c.log.Warn("stop requested")
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() Mirror {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirror.clone()
}

func (c *Controller) Summary() (Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary == nil {
		return Summary{}, false
	}
	return *c.summary, true
}

func (c *Controller) RunDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runDir
}
