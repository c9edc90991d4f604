package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rendercue/internal/render"
	"rendercue/internal/runstore"
	"rendercue/internal/scene"
	"rendercue/internal/worker"
)

type DoctorOptions struct {
	ConfigPath    string
	RunsDir       string
	RenderCommand string
	Document      string
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type InitOptions struct {
	ConfigPath string
	Settings   Settings
}

type InitResult struct {
	ConfigPath     string       `json:"config_path"`
	RunsDir        string       `json:"runs_dir"`
	CreatedRunsDir bool         `json:"created_runs_dir"`
	CreatedConfig  bool         `json:"created_config"`
	DoctorResult   DoctorResult `json:"doctor"`
}

func Doctor(opts DoctorOptions) (DoctorResult, error) {
	configPath := ResolvePath(opts.ConfigPath)
	runsDir := firstNonEmpty(opts.RunsDir, DefaultRunsDir)
	command := firstNonEmpty(opts.RenderCommand, render.DefaultCommand)

	checks := make([]DoctorCheck, 0, 4)
	dep := render.DependencyStatus(command)
	checks = append(checks, DoctorCheck{
		Name:    "dependency:renderer",
		OK:      dep.BinaryFound,
		Message: dependencyMessage(dep.BinaryFound, dep.BinaryPath, dep.Binary),
	})

	if doc := strings.TrimSpace(opts.Document); doc != "" {
		check := DoctorCheck{Name: "document"}
		if d, err := scene.Load(doc); err != nil {
			check.Message = err.Error()
		} else {
			check.OK = true
			check.Message = fmt.Sprintf("%s: %d scene(s)", d.Name, len(d.Scenes()))
		}
		checks = append(checks, check)
	} else {
		checks = append(checks, DoctorCheck{Name: "document", Message: ErrNoDocument.Error()})
	}

	runsOK, runsMessage := ensureWritableDir(runsDir)
	checks = append(checks, DoctorCheck{
		Name:    "directory:runs",
		OK:      runsOK,
		Message: runsMessage,
	})

	cfgOK, cfgMessage := ensureWritableDir(filepath.Dir(configPath))
	checks = append(checks, DoctorCheck{
		Name:    "directory:config",
		OK:      cfgOK,
		Message: cfgMessage,
	})

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return DoctorResult{OK: ok, Checks: checks}, nil
}

// Init creates the workspace file and runs directory, storing any settings
// given, then runs Doctor against the result.
func Init(opts InitOptions) (InitResult, error) {
	configPath := ResolvePath(opts.ConfigPath)
	if opts.Settings.FramePolicy != "" {
		if _, err := worker.ParseFramePolicy(opts.Settings.FramePolicy); err != nil {
			return InitResult{}, err
		}
	}
	cfg, createdConfig, err := Ensure(configPath)
	if err != nil {
		return InitResult{}, err
	}

	merged := mergeSettings(cfg.Settings, opts.Settings)
	if merged != cfg.Settings {
		cfg, err = Update(configPath, func(c *Config) error {
			c.Settings = merged
			return nil
		})
		if err != nil {
			return InitResult{}, err
		}
	}

	runsDir := cfg.Settings.RunsDir
	createdRunsDir := false
	if _, err := os.Stat(runsDir); os.IsNotExist(err) {
		createdRunsDir = true
	}
	if err := runstore.Mkdir(runsDir); err != nil {
		return InitResult{}, err
	}

	doc, err := Doctor(DoctorOptions{
		ConfigPath:    configPath,
		RunsDir:       runsDir,
		RenderCommand: cfg.Settings.RenderCommand,
		Document:      cfg.Settings.Document,
	})
	if err != nil {
		return InitResult{}, err
	}
	return InitResult{
		ConfigPath:     configPath,
		RunsDir:        runsDir,
		CreatedRunsDir: createdRunsDir,
		CreatedConfig:  createdConfig,
		DoctorResult:   doc,
	}, nil
}

func mergeSettings(base, in Settings) Settings {
	out := base
	out.RenderCommand = firstNonEmpty(in.RenderCommand, base.RenderCommand)
	out.TickIntervalMS = firstPositive(in.TickIntervalMS, base.TickIntervalMS)
	out.PausePollMS = firstPositive(in.PausePollMS, base.PausePollMS)
	out.FramePolicy = firstNonEmpty(in.FramePolicy, base.FramePolicy)
	out.Document = firstNonEmpty(in.Document, base.Document)
	out.RunsDir = firstNonEmpty(in.RunsDir, base.RunsDir)
	return normalizeSettings(out)
}

func dependencyMessage(ok bool, path, name string) string {
	if name == "" {
		return render.ErrEmptyCommand.Error()
	}
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "rendercue-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
