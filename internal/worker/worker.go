package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rendercue/internal/logger"
	"rendercue/internal/manifest"
	"rendercue/internal/model"
	"rendercue/internal/outputpath"
	"rendercue/internal/render"
	"rendercue/internal/runstore"
	"rendercue/internal/status"
)

var ErrSceneNotFound = errors.New("scene not found")

// FramePolicy decides what a failed frame does to the rest of its job.
type FramePolicy string

const (
	// FramePolicyContinue marks the job failed and keeps rendering its
	// remaining frames.
	FramePolicyContinue FramePolicy = "continue"
	// FramePolicyAbortJob stops the job at its first failed frame.
	FramePolicyAbortJob FramePolicy = "abort-job"
)

func ParseFramePolicy(raw string) (FramePolicy, error) {
	switch FramePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FramePolicyContinue:
		return FramePolicyContinue, nil
	case FramePolicyAbortJob:
		return FramePolicyAbortJob, nil
	default:
		return "", fmt.Errorf("invalid frame policy %q (expected continue or abort-job)", raw)
	}
}

// Document is everything the worker needs from the file being rendered.
type Document interface {
	model.SceneCatalog
	outputpath.PathResolver
	DocumentPath() string
}

type Options struct {
	ManifestPath string
	StatusPath   string
	Document     Document
	DocumentName string
	Renderer     render.Renderer
	Policy       FramePolicy
	PausePoll    time.Duration
	Logger       *logger.Logger
	// Now is replaced in tests.
	Now func() time.Time
}

// Worker executes one manifest from start to finish. It is single use.
type Worker struct {
	opts     Options
	log      *logger.Logger
	writer   *status.Writer
	sentinel *status.Sentinel
	now      func() time.Time

	queue  model.Queue
	state  model.WorkerStatus
	start  time.Time
	paused time.Duration
}

func New(opts Options) (*Worker, error) {
	if strings.TrimSpace(opts.ManifestPath) == "" {
		return nil, errors.New("manifest path is required")
	}
	if strings.TrimSpace(opts.StatusPath) == "" {
		return nil, errors.New("status path is required")
	}
	if opts.Document == nil {
		return nil, errors.New("document is required")
	}
	if opts.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if opts.Policy == "" {
		opts.Policy = FramePolicyContinue
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Worker{
		opts:     opts,
		log:      logger.OrNop(opts.Logger).WithComponent("worker"),
		writer:   status.NewWriter(opts.StatusPath),
		sentinel: status.NewSentinel(runstore.PausePath(opts.StatusPath), opts.PausePoll),
		now:      now,
	}, nil
}

// Run renders every job of the manifest. Job failures are recorded in the
// status file and do not make Run fail; only an unreadable manifest,
// cancellation and status write errors on the terminal snapshot do.
func (w *Worker) Run(ctx context.Context) error {
	q, err := manifest.ReadFile(w.opts.ManifestPath)
	if err != nil {
		w.log.Error("manifest load failed", "path", w.opts.ManifestPath, "error", err)
		w.state = model.WorkerStatus{
			Message:  "Failed to load manifest",
			ETR:      status.ETRUnknown,
			Finished: true,
			Error:    err.Error(),
		}
		return errors.Join(err, w.publish())
	}
	w.queue = q
	w.prepare()
	w.start = w.now()
	w.log.Info("render started", "jobs", len(q.Jobs), "frames", w.state.TotalFrames)

	resolver := outputpath.NewResolver(outputpath.Settings{
		GlobalOutputPath: q.GlobalOutputPath,
		Location:         q.OutputLocation,
		DocumentName:     w.opts.DocumentName,
	}, w.opts.Document, q.Jobs)

	for i := range q.Jobs {
		if ctx.Err() != nil {
			return w.cancel(ctx.Err())
		}
		if err := w.runJob(ctx, resolver, i); err != nil {
			return w.cancel(err)
		}
	}

	w.state.Message = status.MessageCompleted
	w.state.ETR = status.ETRUnknown
	w.state.Finished = true
	w.log.Info("render finished", "frames", w.state.FinishedFrames, "elapsed", w.elapsed().Round(time.Second))
	return w.publish()
}

// prepare builds the initial snapshot: every job pending, with its frame
// total computed up front so the global ETR covers the whole run.
func (w *Worker) prepare() {
	n := len(w.queue.Jobs)
	w.state = model.WorkerStatus{
		JobIndex:    1,
		TotalJobs:   n,
		Message:     "Starting",
		ETR:         status.ETRUnknown,
		JobIDs:      make([]string, n),
		JobStatuses: make([]model.JobStatus, n),
		JobProgress: make([]model.JobProgress, n),
		JobTimings:  make([]model.JobTiming, n),
		JobErrors:   make([]string, n),
	}
	for i, job := range w.queue.Jobs {
		w.state.JobIDs[i] = job.ID
		w.state.JobStatuses[i] = model.StatusPending
		if sc, ok := w.opts.Document.Scene(job.Scene); ok {
			total := Span(sc, job.Overrides).Count()
			w.state.JobProgress[i].Total = total
			w.state.TotalFrames += total
		}
	}
}

// runJob returns an error only for cancellation. Everything else is
// recorded against the job.
func (w *Worker) runJob(ctx context.Context, resolver *outputpath.Resolver, i int) error {
	job := w.queue.Jobs[i]
	log := w.log
	if job.ID != "" {
		log = log.WithJobID(job.ID)
	}
	w.state.JobIndex = i + 1

	sc, ok := w.opts.Document.Scene(job.Scene)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrSceneNotFound, job.Scene)
		log.Warn("skipping job", "scene", job.Scene, "error", err)
		ts := w.unix()
		w.state.JobTimings[i] = model.JobTiming{Start: ts, End: ts}
		w.failJob(i, fmt.Sprintf("Scene %s not found", job.Scene), err)
		return nil
	}

	w.transition(i, model.StatusRendering)
	w.state.JobTimings[i].Start = w.unix()

	settings := Effective(sc, job.Overrides)
	span := Span(sc, job.Overrides)
	target := resolver.Resolve(job, i, settings.Format)
	if err := outputpath.Prepare(target); err != nil {
		log.Error("output directory unavailable", "dir", target.Dir, "error", err)
		w.failJob(i, fmt.Sprintf("Cannot create output for %s", job.Scene), err)
		w.state.JobTimings[i].End = w.unix()
		w.writeStatus()
		return nil
	}

	log.Info("job started", "scene", job.Scene, "frames", span.Count(), "output", target.Dir, "engine", settings.Engine)
	w.state.Message = fmt.Sprintf("Starting %s...", job.Scene)
	w.state.ETR = status.ETRCalculating
	w.writeStatus()

	frames := span.Frames()
	if target.Video && len(frames) > 0 {
		// a container is written by one call covering the whole span
		frames = frames[:1]
	}
	for _, frame := range frames {
		if err := w.checkPause(ctx); err != nil {
			return err
		}
		req := render.Frame{
			Document:      w.opts.Document.DocumentPath(),
			Scene:         job.Scene,
			Number:        frame,
			Output:        target.FramePath(frame),
			OutputPattern: target.RenderPattern(),
			Settings:      settings,
		}
		rendered := 1
		if target.Video {
			req.End, req.Animation = span.End, true
			rendered = span.Count()
		}
		res, err := w.opts.Renderer.RenderFrame(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("frame failed", "scene", job.Scene, "frame", req.Frames(), "error", err)
			w.failJob(i, fmt.Sprintf("Error rendering %s frame %s", job.Scene, req.Frames()), err)
			if w.opts.Policy == FramePolicyAbortJob {
				break
			}
			continue
		}

		w.state.FinishedFrames += rendered
		w.state.JobProgress[i].Done += rendered
		if res.Preview != "" {
			w.state.LastFrame = res.Preview
		}
		w.state.ETR = FormatETR(w.elapsed(), w.state.FinishedFrames, w.state.TotalFrames)
		w.state.Message = fmt.Sprintf("Rendering %d/%d: %s (Frame %s)", i+1, len(w.queue.Jobs), job.Scene, req.Frames())
		w.writeStatus()
	}

	if w.state.JobStatuses[i] != model.StatusFailed {
		w.transition(i, model.StatusCompleted)
	}
	w.state.JobTimings[i].End = w.unix()
	log.Info("job finished", "scene", job.Scene, "status", w.state.JobStatuses[i], "frames", w.state.JobProgress[i].Done)
	w.writeStatus()
	return nil
}

func (w *Worker) checkPause(ctx context.Context) error {
	d, err := w.sentinel.Wait(ctx,
		func() {
			w.log.Info("render paused")
			w.state.Message = status.MessagePaused
			w.state.ETR = status.ETRPaused
			w.writeStatus()
		},
		func() {
			w.log.Info("render resumed")
			w.state.Message = status.MessageResuming
			w.state.ETR = status.ETRCalculating
		},
	)
	w.paused += d
	w.state.PausedDuration = w.paused.Seconds()
	if err != nil {
		return err
	}
	if d > 0 {
		w.writeStatus()
	}
	return nil
}

func (w *Worker) failJob(i int, message string, err error) {
	w.transition(i, model.StatusFailed)
	w.state.JobErrors[i] = err.Error()
	w.state.Message = message
	w.writeStatus()
}

func (w *Worker) cancel(cause error) error {
	for i, st := range w.state.JobStatuses {
		if st == model.StatusPending || st == model.StatusRendering {
			w.transition(i, model.StatusCancelled)
			if w.state.JobTimings[i].Start > 0 {
				w.state.JobTimings[i].End = w.unix()
			}
		}
	}
	w.state.Message = status.MessageCancelled
	w.state.ETR = status.ETRUnknown
	w.state.Finished = true
	w.state.Error = "cancelled"
	w.log.Warn("render cancelled", "cause", cause)
	return errors.Join(cause, w.publish())
}

func (w *Worker) transition(i int, to model.JobStatus) {
	if err := model.TransitionStatus(w.state.JobStatuses, i, to); err != nil {
		w.log.Warn("ignoring status change", "error", err)
	}
}

// writeStatus publishes a snapshot mid-run. A failed write only costs the
// supervisor one update, so it is logged and the render goes on.
func (w *Worker) writeStatus() {
	if err := w.publish(); err != nil {
		w.log.Warn("status write failed", "error", err)
	}
}

func (w *Worker) publish() error {
	w.state.Timestamp = w.unix()
	return w.writer.Write(w.state)
}

func (w *Worker) elapsed() time.Duration {
	return w.now().Sub(w.start) - w.paused
}

func (w *Worker) unix() float64 {
	return float64(w.now().UnixNano()) / float64(time.Second)
}

// Status returns the last snapshot the worker built.
func (w *Worker) Status() model.WorkerStatus {
	return w.state
}
