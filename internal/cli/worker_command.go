package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rendercue/internal/logger"
	"rendercue/internal/render"
	"rendercue/internal/scene"
	"rendercue/internal/status"
	"rendercue/internal/worker"
)

const (
	workerLogFileName = "worker.log"
	renderLogFileName = "render.log"
)

// runWorker is the background half of render. The supervisor starts it with
// --manifest and --status pointing into a fresh run directory.
func runWorker(ctx context.Context, args []string) error {
	fs := newFlagSet("worker")
	manifestPath := fs.String("manifest", "", "manifest written by the supervisor")
	statusPath := fs.String("status", "", "status file to publish progress to")
	document := fs.String("document", "", "scene table JSON")
	renderCmd := fs.String("render-cmd", render.DefaultCommand, "per-frame render command template")
	framePolicy := fs.String("frame-policy", string(worker.FramePolicyContinue), "continue|abort-job")
	pausePollMS := fs.Int("pause-poll-ms", int(status.DefaultPausePoll/time.Millisecond), "pause sentinel poll interval")
	logFile := fs.String("log-file", "", "worker log file (default: worker.log next to the status file, - for stderr)")
	logLevel := fs.String("log-level", "", "debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*manifestPath) == "" || strings.TrimSpace(*statusPath) == "" {
		return errors.New("--manifest and --status are required")
	}
	if strings.TrimSpace(*document) == "" {
		return errors.New("--document is required")
	}
	policy, err := worker.ParseFramePolicy(*framePolicy)
	if err != nil {
		return err
	}

	runDir := filepath.Dir(*statusPath)
	logOut, closeLog, err := openLogOutput(*logFile, filepath.Join(runDir, workerLogFileName))
	if err != nil {
		return err
	}
	defer closeLog()
	cfg := logger.DefaultConfig()
	cfg.Format = "json"
	cfg.Output = logOut
	cfg.ServiceName = "rendercue-worker"
	if lvl := strings.TrimSpace(*logLevel); lvl != "" {
		cfg.Level = lvl
	}
	log := logger.New(cfg)

	doc, err := scene.Load(*document)
	if err != nil {
		log.Error("document load failed", "error", err)
		return err
	}

	renderer, err := render.NewCommandRenderer(*renderCmd)
	if err != nil {
		return err
	}
	renderLog, err := os.OpenFile(filepath.Join(runDir, renderLogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open render log: %w", err)
	}
	defer renderLog.Close()
	renderer.LogWriter = renderLog

	w, err := worker.New(worker.Options{
		ManifestPath: *manifestPath,
		StatusPath:   *statusPath,
		Document:     doc,
		DocumentName: doc.Name,
		Renderer:     renderer,
		Policy:       policy,
		PausePoll:    time.Duration(*pausePollMS) * time.Millisecond,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// openLogOutput resolves a --log-file value: "-" is stderr, empty is
// fallback, anything else is a file opened for append.
func openLogOutput(flagValue, fallback string) (io.Writer, func(), error) {
	path := strings.TrimSpace(flagValue)
	if path == "-" {
		return os.Stderr, func() {}, nil
	}
	if path == "" {
		path = fallback
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
