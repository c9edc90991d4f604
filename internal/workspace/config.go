package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"rendercue/internal/model"
	"rendercue/internal/render"
	"rendercue/internal/runstore"
	"rendercue/internal/worker"
)

const (
	DefaultConfigPath     = "rendercue.json"
	DefaultRunsDir        = ".rendercue/runs"
	DefaultTickIntervalMS = 500
	DefaultPausePollMS    = 1000

	ConfigEnv           = "RENDERCUE_CONFIG"
	configSchemaVersion = 1
)

var ErrNoDocument = errors.New("no document configured (use --document or rendercue init --document)")

type Settings struct {
	RenderCommand  string `json:"render_command,omitempty"`
	TickIntervalMS int    `json:"tick_interval_ms,omitempty"`
	PausePollMS    int    `json:"pause_poll_ms,omitempty"`
	FramePolicy    string `json:"frame_policy,omitempty"`
	Document       string `json:"document,omitempty"`
	RunsDir        string `json:"runs_dir,omitempty"`
}

// Config is the workspace file: runtime settings plus the queue being edited.
type Config struct {
	SchemaVersion int         `json:"schema_version"`
	UpdatedAt     string      `json:"updated_at"`
	Settings      Settings    `json:"settings"`
	Queue         model.Queue `json:"queue"`
}

// Runtime is Settings after flags and defaults have been folded in.
type Runtime struct {
	RenderCommand string
	Tick          time.Duration
	PausePoll     time.Duration
	FramePolicy   worker.FramePolicy
	Document      string
	RunsDir       string
}

// ResolvePath picks the config file: explicit flag, then RENDERCUE_CONFIG,
// then ./rendercue.json.
func ResolvePath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(ConfigEnv)); p != "" {
		return p
	}
	return DefaultConfigPath
}

func defaultSettings() Settings {
	return Settings{
		RenderCommand:  render.DefaultCommand,
		TickIntervalMS: DefaultTickIntervalMS,
		PausePollMS:    DefaultPausePollMS,
		FramePolicy:    string(worker.FramePolicyContinue),
		RunsDir:        DefaultRunsDir,
	}
}

func normalizeSettings(raw Settings) Settings {
	norm := raw
	norm.RenderCommand = strings.TrimSpace(norm.RenderCommand)
	if norm.RenderCommand == "" {
		norm.RenderCommand = render.DefaultCommand
	}
	if norm.TickIntervalMS <= 0 {
		norm.TickIntervalMS = DefaultTickIntervalMS
	}
	if norm.PausePollMS <= 0 {
		norm.PausePollMS = DefaultPausePollMS
	}
	if policy, err := worker.ParseFramePolicy(norm.FramePolicy); err == nil {
		norm.FramePolicy = string(policy)
	} else {
		norm.FramePolicy = string(worker.FramePolicyContinue)
	}
	norm.Document = strings.TrimSpace(norm.Document)
	norm.RunsDir = strings.TrimSpace(norm.RunsDir)
	if norm.RunsDir == "" {
		norm.RunsDir = DefaultRunsDir
	}
	return norm
}

// normalizeQueue repairs hand-edited queues: missing ids are assigned,
// frame ranges are re-clamped and unknown locations fall back to DEFAULT.
func normalizeQueue(q model.Queue) model.Queue {
	if q.Jobs == nil {
		q.Jobs = []model.RenderJob{}
	}
	for i := range q.Jobs {
		job := &q.Jobs[i]
		job.Scene = strings.TrimSpace(job.Scene)
		if strings.TrimSpace(job.ID) == "" {
			job.ID = uuid.NewString()
		}
		fr := job.Overrides.FrameRange.Value
		job.Overrides.SetFrameRange(fr.Start, fr.End)
	}
	if q.OutputLocation != model.OutputCustom {
		q.OutputLocation = model.OutputDefault
	}
	if strings.TrimSpace(q.GlobalOutputPath) == "" {
		q.GlobalOutputPath = model.DefaultOutputDir
	}
	return q
}

func Load(path string) (Config, error) {
	var cfg Config
	if err := runstore.ReadJSON(path, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = configSchemaVersion
	}
	if cfg.SchemaVersion > configSchemaVersion {
		return Config{}, fmt.Errorf("%s: unsupported schema_version %d", path, cfg.SchemaVersion)
	}
	cfg.Settings = normalizeSettings(cfg.Settings)
	cfg.Queue = normalizeQueue(cfg.Queue)
	return cfg, nil
}

// Read is Load that treats a missing file as an empty workspace.
func Read(path string) (Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return emptyConfig(), nil
	}
	return Config{}, err
}

func Save(path string, cfg Config) error {
	cfg.SchemaVersion = configSchemaVersion
	if strings.TrimSpace(cfg.UpdatedAt) == "" {
		cfg.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	cfg.Settings = normalizeSettings(cfg.Settings)
	cfg.Queue = normalizeQueue(cfg.Queue)
	if dir := filepath.Dir(path); dir != "" {
		if err := runstore.Mkdir(dir); err != nil {
			return err
		}
	}
	return runstore.WriteJSON(path, cfg)
}

// Ensure loads the workspace, creating it with defaults when missing.
func Ensure(path string) (Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Config{}, false, err
	}
	cfg = emptyConfig()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}

// Update loads (or creates) the workspace, applies fn and saves the result.
// Nothing is written when fn fails.
func Update(path string, fn func(*Config) error) (Config, error) {
	cfg, _, err := Ensure(path)
	if err != nil {
		return Config{}, err
	}
	if err := fn(&cfg); err != nil {
		return Config{}, err
	}
	cfg.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := Save(path, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func emptyConfig() Config {
	return Config{
		SchemaVersion: configSchemaVersion,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339),
		Settings:      defaultSettings(),
		Queue: model.Queue{
			Jobs:             []model.RenderJob{},
			GlobalOutputPath: model.DefaultOutputDir,
			OutputLocation:   model.OutputDefault,
		},
	}
}

// ResolveRuntime folds flag values over the stored settings. Zero values in
// flags mean "not given".
func ResolveRuntime(stored Settings, flags Settings) (Runtime, error) {
	if flags.TickIntervalMS < 0 || flags.PausePollMS < 0 {
		return Runtime{}, fmt.Errorf("intervals must be >= 0")
	}
	base := normalizeSettings(stored)
	policy, err := worker.ParseFramePolicy(firstNonEmpty(flags.FramePolicy, base.FramePolicy))
	if err != nil {
		return Runtime{}, err
	}
	return Runtime{
		RenderCommand: firstNonEmpty(flags.RenderCommand, base.RenderCommand, render.DefaultCommand),
		Tick:          time.Duration(firstPositive(flags.TickIntervalMS, base.TickIntervalMS, DefaultTickIntervalMS)) * time.Millisecond,
		PausePoll:     time.Duration(firstPositive(flags.PausePollMS, base.PausePollMS, DefaultPausePollMS)) * time.Millisecond,
		FramePolicy:   policy,
		Document:      firstNonEmpty(flags.Document, base.Document),
		RunsDir:       firstNonEmpty(flags.RunsDir, base.RunsDir, DefaultRunsDir),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
