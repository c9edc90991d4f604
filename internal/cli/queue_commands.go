package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"rendercue/internal/model"
	"rendercue/internal/workspace"
)

func runInit(args []string) error {
	fs := newFlagSet("init")
	config := fs.String("config", "", "workspace config path (default ./rendercue.json or $RENDERCUE_CONFIG)")
	document := fs.String("document", "", "scene table JSON exported from the host application")
	renderCmd := fs.String("render-cmd", "", "per-frame render command template")
	runsDir := fs.String("runs-dir", "", "runs directory")
	framePolicy := fs.String("frame-policy", "", "what a failed frame does: continue|abort-job")
	jsonOut := fs.Bool("json", false, "print JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := workspace.Init(workspace.InitOptions{
		ConfigPath: *config,
		Settings: workspace.Settings{
			Document:      strings.TrimSpace(*document),
			RenderCommand: strings.TrimSpace(*renderCmd),
			RunsDir:       strings.TrimSpace(*runsDir),
			FramePolicy:   strings.TrimSpace(*framePolicy),
		},
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}

	fmt.Println("workspace initialized")
	fmt.Printf("config: %s\n", res.ConfigPath)
	fmt.Printf("runs_dir: %s\n", res.RunsDir)
	fmt.Printf("created_config: %t\n", res.CreatedConfig)
	fmt.Printf("created_runs_dir: %t\n", res.CreatedRunsDir)
	fmt.Println("checks:")
	printChecks("  ", res.DoctorResult)
	if !res.DoctorResult.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Println("next: rendercue populate  (or rendercue add <scene>)")
	return nil
}

func runDoctor(args []string) error {
	fs := newFlagSet("doctor")
	config := fs.String("config", "", "workspace config path")
	document := fs.String("document", "", "scene table JSON (default from config)")
	renderCmd := fs.String("render-cmd", "", "render command template (default from config)")
	runsDir := fs.String("runs-dir", "", "runs directory (default from config)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	configPath := workspace.ResolvePath(*config)
	cfg, err := workspace.Read(configPath)
	if err != nil {
		return err
	}
	rt, err := workspace.ResolveRuntime(cfg.Settings, workspace.Settings{
		Document:      *document,
		RenderCommand: *renderCmd,
		RunsDir:       *runsDir,
	})
	if err != nil {
		return err
	}

	res, err := workspace.Doctor(workspace.DoctorOptions{
		ConfigPath:    configPath,
		RunsDir:       rt.RunsDir,
		RenderCommand: rt.RenderCommand,
		Document:      rt.Document,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}
	printChecks("", res)
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Println("doctor: all checks passed")
	return nil
}

func printChecks(indent string, res workspace.DoctorResult) {
	for _, c := range res.Checks {
		status := "ok"
		if !c.OK {
			status = "fail"
		}
		fmt.Printf("%s%s: %s (%s)\n", indent, c.Name, status, c.Message)
	}
}

func runAdd(args []string) error {
	fs := newFlagSet("add")
	config := fs.String("config", "", "workspace config path")
	document := fs.String("document", "", "scene table JSON used to check scene names")
	sceneName := fs.String("scene", "", "scene to queue (positional arguments are queued too)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	scenes := fs.Args()
	if s := strings.TrimSpace(*sceneName); s != "" {
		scenes = append([]string{s}, scenes...)
	}
	if len(scenes) == 0 {
		s, err := promptRequired("scene")
		if err != nil {
			return err
		}
		scenes = []string{s}
	}

	configPath := workspace.ResolvePath(*config)
	var added []model.RenderJob
	var warnings []string
	_, err := workspace.Update(configPath, func(c *workspace.Config) error {
		catalog, err := optionalCatalog(*document, c.Settings)
		if err != nil {
			return err
		}
		for _, name := range scenes {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if catalog != nil {
				if _, ok := catalog.Scene(name); !ok {
					warnings = append(warnings, fmt.Sprintf("scene %q is not in the document", name))
				}
			}
			idx := c.Queue.AddJob(name)
			added = append(added, c.Queue.Jobs[idx])
		}
		return nil
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{"added": added, "warnings": warnings})
	}
	for _, job := range added {
		fmt.Printf("queued: %s (%s)\n", job.Scene, job.ID)
	}
	for _, w := range warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}

func runPopulate(args []string) error {
	fs := newFlagSet("populate")
	config := fs.String("config", "", "workspace config path")
	document := fs.String("document", "", "scene table JSON (default from config)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var added int
	cfg, err := workspace.Update(workspace.ResolvePath(*config), func(c *workspace.Config) error {
		doc, err := openDocument(*document, c.Settings)
		if err != nil {
			return err
		}
		added = c.Queue.PopulateAll(doc)
		return nil
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]int{"added": added, "total": len(cfg.Queue.Jobs)})
	}
	fmt.Printf("added %d job(s); queue has %d\n", added, len(cfg.Queue.Jobs))
	return nil
}

func runRemove(args []string) error {
	fs := newFlagSet("remove")
	config := fs.String("config", "", "workspace config path")
	index := fs.Int("index", 0, "job index (1-based)")
	yes := fs.Bool("yes", false, "skip confirmation")
	jsonOut := fs.Bool("json", false, "print JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	configPath := workspace.ResolvePath(*config)
	cfg, err := workspace.Read(configPath)
	if err != nil {
		return err
	}
	i, err := jobIndex(cfg.Queue, *index)
	if err != nil {
		return err
	}
	target := cfg.Queue.Jobs[i]
	if !*yes {
		ok, err := promptConfirm(fmt.Sprintf("remove job %d (%s)? [y/N] ", i+1, target.Scene))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}
	}

	_, err = workspace.Update(configPath, func(c *workspace.Config) error {
		// locate by id in case the file changed since it was read
		j, ok := c.Queue.Find(target.ID)
		if !ok {
			return fmt.Errorf("job %s is no longer queued", target.ID)
		}
		return c.Queue.RemoveJob(j)
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{"removed": target})
	}
	fmt.Printf("removed job: %s (%s)\n", target.Scene, target.ID)
	return nil
}

func runMove(args []string) error {
	fs := newFlagSet("move")
	config := fs.String("config", "", "workspace config path")
	index := fs.Int("index", 0, "job index (1-based)")
	direction := fs.String("dir", "", "up|down")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir, err := model.ParseDirection(*direction)
	if err != nil {
		return err
	}

	var moved bool
	var scene string
	_, err = workspace.Update(workspace.ResolvePath(*config), func(c *workspace.Config) error {
		i, err := jobIndex(c.Queue, *index)
		if err != nil {
			return err
		}
		scene = c.Queue.Jobs[i].Scene
		moved, err = c.Queue.MoveJob(i, dir)
		return err
	})
	if err != nil {
		return err
	}
	if !moved {
		edge := "top"
		if dir == model.Down {
			edge = "bottom"
		}
		fmt.Printf("%s is already at the %s of the queue\n", scene, edge)
		return nil
	}
	fmt.Printf("moved %s %s\n", scene, strings.ToLower(strings.TrimSpace(*direction)))
	return nil
}

func runSet(args []string) error {
	fs := newFlagSet("set")
	config := fs.String("config", "", "workspace config path")
	index := fs.Int("index", 0, "job index (1-based)")
	keyName := fs.String("key", "", "override name, e.g. samples, frame_range, camera")
	value := fs.String("value", "", "new value; enables the override")
	off := fs.Bool("off", false, "disable the override instead")
	jsonOut := fs.Bool("json", false, "print JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := model.ParseOverrideKey(*keyName)
	if err != nil {
		return fmt.Errorf("%w (known: %s)", err, overrideNames())
	}
	if !*off && strings.TrimSpace(*value) == "" {
		return errors.New("--value is required unless --off is given")
	}

	var job model.RenderJob
	_, err = workspace.Update(workspace.ResolvePath(*config), func(c *workspace.Config) error {
		i, err := jobIndex(c.Queue, *index)
		if err != nil {
			return err
		}
		if *off {
			err = model.RemoveOverride(&c.Queue, i, key)
		} else {
			err = c.Queue.Jobs[i].Overrides.Set(key, *value)
		}
		job = c.Queue.Jobs[i]
		return err
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(job)
	}
	if *off {
		fmt.Printf("%s: %s override disabled\n", job.Scene, key)
		return nil
	}
	fmt.Printf("%s: %s = %s\n", job.Scene, key, job.Overrides.ValueString(key))
	return nil
}

func runApplyAll(args []string) error {
	fs := newFlagSet("apply-all")
	config := fs.String("config", "", "workspace config path")
	document := fs.String("document", "", "scene table JSON used to skip incompatible cameras/view layers")
	index := fs.Int("index", 0, "source job index (1-based)")
	keyName := fs.String("key", "", "override to copy")
	jsonOut := fs.Bool("json", false, "print JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := model.ParseOverrideKey(*keyName)
	if err != nil {
		return fmt.Errorf("%w (known: %s)", err, overrideNames())
	}

	var res model.ApplyResult
	_, err = workspace.Update(workspace.ResolvePath(*config), func(c *workspace.Config) error {
		i, err := jobIndex(c.Queue, *index)
		if err != nil {
			return err
		}
		catalog, err := optionalCatalog(*document, c.Settings)
		if err != nil {
			return err
		}
		res, err = model.ApplyOverrideToAll(&c.Queue, i, key, catalog)
		return err
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}
	fmt.Printf("applied %s to %d job(s)", key.Label(), res.Applied)
	if res.Skipped > 0 {
		fmt.Printf(", skipped %d incompatible", res.Skipped)
	}
	fmt.Println()
	return nil
}

func runOutput(args []string) error {
	fs := newFlagSet("output")
	config := fs.String("config", "", "workspace config path")
	location := fs.String("location", "", "default|custom")
	path := fs.String("path", "", "global output directory used by the custom location")
	jsonOut := fs.Bool("json", false, "print JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := workspace.Update(workspace.ResolvePath(*config), func(c *workspace.Config) error {
		switch strings.ToUpper(strings.TrimSpace(*location)) {
		case "":
		case string(model.OutputDefault):
			c.Queue.OutputLocation = model.OutputDefault
		case string(model.OutputCustom):
			c.Queue.OutputLocation = model.OutputCustom
		default:
			return fmt.Errorf("invalid location %q (expected default or custom)", *location)
		}
		if p := strings.TrimSpace(*path); p != "" {
			c.Queue.GlobalOutputPath = p
		}
		return nil
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"output_location":    cfg.Queue.OutputLocation,
			"global_output_path": cfg.Queue.GlobalOutputPath,
		})
	}
	fmt.Printf("output_location: %s\n", cfg.Queue.OutputLocation)
	fmt.Printf("global_output_path: %s\n", cfg.Queue.GlobalOutputPath)
	return nil
}

func runPreset(args []string) error {
	fs := newFlagSet("preset")
	config := fs.String("config", "", "workspace config path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: rendercue preset draft|production")
	}
	preset, err := model.ParsePreset(fs.Arg(0))
	if err != nil {
		return err
	}
	cfg, err := workspace.Update(workspace.ResolvePath(*config), func(c *workspace.Config) error {
		if len(c.Queue.Jobs) == 0 {
			return errors.New("the queue is empty")
		}
		return c.Queue.ApplyPreset(preset)
	})
	if err != nil {
		return err
	}
	fmt.Printf("applied %s preset to %d job(s)\n", strings.ToLower(string(preset)), len(cfg.Queue.Jobs))
	return nil
}

func runSavePreset(args []string) error {
	fs := newFlagSet("save-preset")
	config := fs.String("config", "", "workspace config path")
	file := fs.String("file", "", "preset file to write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	target := strings.TrimSpace(*file)
	if target == "" {
		return errors.New("--file is required")
	}
	cfg, err := workspace.Read(workspace.ResolvePath(*config))
	if err != nil {
		return err
	}
	path, err := workspace.SavePreset(target, cfg.Queue, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("saved %d job(s) to %s\n", len(cfg.Queue.Jobs), path)
	return nil
}

func runLoadPreset(args []string) error {
	fs := newFlagSet("load-preset")
	config := fs.String("config", "", "workspace config path")
	file := fs.String("file", "", "preset file to load")
	yes := fs.Bool("yes", false, "replace the current queue without asking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	source := strings.TrimSpace(*file)
	if source == "" {
		return errors.New("--file is required")
	}
	q, err := workspace.LoadPreset(source)
	if err != nil {
		return err
	}

	configPath := workspace.ResolvePath(*config)
	if !*yes {
		current, err := workspace.Read(configPath)
		if err != nil {
			return err
		}
		if len(current.Queue.Jobs) > 0 {
			ok, err := promptConfirm(fmt.Sprintf("replace %d queued job(s)? [y/N] ", len(current.Queue.Jobs)))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("aborted")
				return nil
			}
		}
	}
	if _, err := workspace.Update(configPath, func(c *workspace.Config) error {
		c.Queue = q
		return nil
	}); err != nil {
		return err
	}
	fmt.Printf("loaded %d job(s) from %s\n", len(q.Jobs), source)
	return nil
}

func runValidate(args []string) error {
	fs := newFlagSet("validate")
	config := fs.String("config", "", "workspace config path")
	document := fs.String("document", "", "scene table JSON (default from config)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := workspace.Read(workspace.ResolvePath(*config))
	if err != nil {
		return err
	}
	doc, err := openDocument(*document, cfg.Settings)
	if err != nil {
		return err
	}
	report := cfg.Queue.Validate(doc)
	if *jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printValidation(report)
	}
	if !report.OK() {
		return fmt.Errorf("queue has %d error(s)", len(report.Errors))
	}
	if !*jsonOut {
		fmt.Printf("queue ok: %d job(s)\n", len(cfg.Queue.Jobs))
	}
	return nil
}

func printValidation(report model.ValidationReport) {
	for _, e := range report.Errors {
		fmt.Printf("error: %s\n", e)
	}
	for _, w := range report.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
}

func overrideNames() string {
	keys := model.OverrideKeys()
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.String())
	}
	return strings.Join(names, ", ")
}
