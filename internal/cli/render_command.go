package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"rendercue/internal/logger"
	"rendercue/internal/model"
	"rendercue/internal/render"
	"rendercue/internal/runstore"
	"rendercue/internal/scene"
	"rendercue/internal/statusapi"
	"rendercue/internal/supervisor"
	"rendercue/internal/workspace"
)

const supervisorLogFileName = "rendercue.log"

type renderFlags struct {
	config      *string
	document    *string
	renderCmd   *string
	workerCmd   *string
	runsDir     *string
	framePolicy *string
	tickMS      *int
	pausePollMS *int
	httpAddr    *string
	logFile     *string
	skipChecks  *bool
}

func addRenderFlags(fs *flag.FlagSet) renderFlags {
	return renderFlags{
		config:      fs.String("config", "", "workspace config path"),
		document:    fs.String("document", "", "scene table JSON (default from config)"),
		renderCmd:   fs.String("render-cmd", "", "per-frame render command template (default from config)"),
		workerCmd:   fs.String("worker-cmd", "", "command that starts a worker (default: this binary's worker subcommand)"),
		runsDir:     fs.String("runs-dir", "", "runs directory (default from config)"),
		framePolicy: fs.String("frame-policy", "", "what a failed frame does: continue|abort-job"),
		tickMS:      fs.Int("tick-ms", 0, "supervisor poll interval in milliseconds"),
		pausePollMS: fs.Int("pause-poll-ms", 0, "worker pause poll interval in milliseconds"),
		httpAddr:    fs.String("http", "", "serve the status API on this address, e.g. 127.0.0.1:8787"),
		logFile:     fs.String("log-file", "", "supervisor log file (- for stderr)"),
		skipChecks:  fs.Bool("skip-checks", false, "render even if the renderer binary is not on PATH"),
	}
}

// renderSession is everything a render needs, resolved from flags and the
// workspace file.
type renderSession struct {
	queue    model.Queue
	runtime  workspace.Runtime
	ctrl     *supervisor.Controller
	log      *logger.Logger
	warnings []string
	closeLog func()
}

func (s *renderSession) Close() {
	if s.closeLog != nil {
		s.closeLog()
	}
}

// prepareRender validates the queue and builds the supervisor. quiet routes
// logs to a file so they do not tear through a full screen dashboard.
func prepareRender(f renderFlags, quiet bool, workerStderr io.Writer) (*renderSession, error) {
	cfg, err := workspace.Read(workspace.ResolvePath(*f.config))
	if err != nil {
		return nil, err
	}
	rt, err := workspace.ResolveRuntime(cfg.Settings, workspace.Settings{
		RenderCommand:  *f.renderCmd,
		TickIntervalMS: *f.tickMS,
		PausePollMS:    *f.pausePollMS,
		FramePolicy:    *f.framePolicy,
		Document:       *f.document,
		RunsDir:        *f.runsDir,
	})
	if err != nil {
		return nil, err
	}
	if rt.Document == "" {
		return nil, workspace.ErrNoDocument
	}
	doc, err := scene.Load(rt.Document)
	if err != nil {
		return nil, err
	}

	report := cfg.Queue.Validate(doc)
	if !report.OK() {
		printValidation(report)
		return nil, fmt.Errorf("queue has %d error(s); fix them or run rendercue validate", len(report.Errors))
	}
	if !*f.skipChecks {
		if err := render.CheckDependencies(rt.RenderCommand); err != nil {
			return nil, err
		}
	}

	workerCmd, err := resolveWorkerCommand(*f.workerCmd)
	if err != nil {
		return nil, err
	}

	if err := runstore.Mkdir(rt.RunsDir); err != nil {
		return nil, err
	}
	logPath := *f.logFile
	if logPath == "" && !quiet {
		logPath = "-"
	}
	logOut, closeLog, err := openLogOutput(logPath, filepath.Join(rt.RunsDir, supervisorLogFileName))
	if err != nil {
		return nil, err
	}
	logCfg := logger.DefaultConfig()
	logCfg.Output = logOut
	log := logger.New(logCfg)

	ctrl, err := supervisor.New(supervisor.Options{
		RunsDir: rt.RunsDir,
		Launcher: supervisor.ExecLauncher{
			Command:  workerCmd,
			Document: rt.Document,
			ExtraArgs: []string{
				"--render-cmd", rt.RenderCommand,
				"--frame-policy", string(rt.FramePolicy),
				"--pause-poll-ms", strconv.FormatInt(rt.PausePoll.Milliseconds(), 10),
			},
			Stderr: workerStderr,
		},
		Notifier:     supervisor.LogNotifier{Logger: log},
		Tick:         rt.Tick,
		DocumentName: doc.Name,
		Paths:        doc,
		Logger:       log,
	})
	if err != nil {
		closeLog()
		return nil, err
	}
	return &renderSession{
		queue:    cfg.Queue,
		runtime:  rt,
		ctrl:     ctrl,
		log:      log,
		warnings: report.Warnings,
		closeLog: closeLog,
	}, nil
}

// resolveWorkerCommand defaults to re-running this executable as a worker.
func resolveWorkerCommand(flagValue string) ([]string, error) {
	if fields := strings.Fields(flagValue); len(fields) > 0 {
		return fields, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate rendercue executable: %w", err)
	}
	return []string{exe, "worker"}, nil
}

// serveStatusAPI runs the HTTP API until ctx ends. Errors are logged; a
// failing API never stops a render.
func serveStatusAPI(ctx context.Context, addr string, ctrl statusapi.Controller, log *logger.Logger) {
	if strings.TrimSpace(addr) == "" {
		return
	}
	go func() {
		if err := statusapi.Serve(ctx, addr, statusapi.NewRouter(statusapi.Deps{Controller: ctrl, Logger: log}), log); err != nil {
			log.WithError(err).Error("status api stopped")
		}
	}()
}

func runRender(ctx context.Context, args []string) error {
	fs := newFlagSet("render")
	f := addRenderFlags(fs)
	plain := fs.Bool("plain", false, "print progress lines instead of the live dashboard")
	jsonOut := fs.Bool("json", false, "print the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	interactive := !*plain && !*jsonOut && stdinIsTTY() && stdoutIsTTY()
	var workerStderr io.Writer = os.Stderr
	if interactive {
		workerStderr = nil
	}
	sess, err := prepareRender(f, interactive, workerStderr)
	if err != nil {
		return err
	}
	defer sess.Close()
	if !*jsonOut {
		for _, w := range sess.warnings {
			fmt.Printf("warning: %s\n", w)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	serveStatusAPI(ctx, *f.httpAddr, sess.ctrl, sess.log)

	var summary supervisor.Summary
	if interactive {
		summary, err = runDashboard(ctx, sess.ctrl, sess.queue, sess.runtime.Tick)
	} else {
		summary, err = runPlain(ctx, sess.ctrl, sess.queue, sess.runtime.Tick, !*jsonOut)
	}
	if err != nil {
		return err
	}
	if *jsonOut {
		if err := printJSON(summary); err != nil {
			return err
		}
	} else {
		printSummary(summary)
	}
	return summaryError(summary)
}

// runPlain drives the supervisor and prints a line whenever the worker's
// message changes.
func runPlain(ctx context.Context, ctrl *supervisor.Controller, q model.Queue, tick time.Duration, verbose bool) (supervisor.Summary, error) {
	stopPrinter := make(chan struct{})
	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		if !verbose {
			return
		}
		t := time.NewTicker(tick)
		defer t.Stop()
		last := ""
		for {
			select {
			case <-stopPrinter:
				return
			case <-t.C:
				m := ctrl.Snapshot()
				if m.State != supervisor.StateRunning {
					continue
				}
				line := progressLine(m)
				if line != last {
					fmt.Println(line)
					last = line
				}
			}
		}
	}()

	summary, err := ctrl.Run(ctx, q)
	close(stopPrinter)
	<-printerDone
	return summary, err
}

func progressLine(m supervisor.Mirror) string {
	pct := int(m.Progress*100 + 0.5)
	return fmt.Sprintf("[%d/%d frames %3d%%] job %d/%d | etr %s | %s",
		m.FinishedFrames, m.TotalFrames, pct, m.JobIndex, m.TotalJobs, m.ETR, m.Message)
}

func printSummary(s supervisor.Summary) {
	state := "success"
	switch {
	case s.Stopped:
		state = "stopped"
	case !s.Success:
		state = "finished with problems"
	}
	fmt.Printf("render %s: %s\n", s.RunID, state)
	fmt.Printf("  completed/failed/cancelled: %d/%d/%d of %d\n", s.Completed, s.Failed, s.Cancelled, s.TotalJobs)
	fmt.Printf("  frames: %d\n", s.TotalFrames)
	fmt.Printf("  duration: %s\n", s.Duration.Round(time.Second))
	fmt.Printf("  output: %s\n", s.OutputLocation)
	if s.Error != "" {
		fmt.Printf("  error: %s\n", s.Error)
	}
}

func summaryError(s supervisor.Summary) error {
	switch {
	case s.Success:
		return nil
	case s.Stopped:
		return errors.New("render stopped before all jobs finished")
	case s.Error != "":
		return fmt.Errorf("render failed: %s", s.Error)
	default:
		return fmt.Errorf("render finished with %d failed job(s)", s.Failed)
	}
}
