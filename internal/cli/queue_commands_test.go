package cli

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"rendercue/internal/model"
	"rendercue/internal/scene"
	"rendercue/internal/workspace"
)

func readQueue(t *testing.T, ws testWorkspace) model.Queue {
	t.Helper()
	cfg, err := workspace.Load(ws.config)
	if err != nil {
		t.Fatal(err)
	}
	return cfg.Queue
}

func scenesOf(q model.Queue) string {
	names := make([]string, 0, len(q.Jobs))
	for _, job := range q.Jobs {
		names = append(names, job.Scene)
	}
	return strings.Join(names, ",")
}

func TestHarnessQueueEditing(t *testing.T) {
	ws := newTestWorkspace(t)

	ws.run(t, "add", "Intro", "Outro")
	ws.run(t, "add", "--scene", "Credits")
	q := readQueue(t, ws)
	if got := scenesOf(q); got != "Intro,Outro,Credits" {
		t.Fatalf("unexpected queue order %q", got)
	}
	for _, job := range q.Jobs {
		if job.ID == "" {
			t.Fatalf("job %s has no id", job.Scene)
		}
	}

	ws.run(t, "move", "--index", "3", "--dir", "up")
	if got := scenesOf(readQueue(t, ws)); got != "Intro,Credits,Outro" {
		t.Fatalf("after move up: %q", got)
	}
	// moving past the edge is a no-op, not an error
	ws.run(t, "move", "--index", "1", "--dir", "up")
	if got := scenesOf(readQueue(t, ws)); got != "Intro,Credits,Outro" {
		t.Fatalf("after edge move: %q", got)
	}

	ws.run(t, "remove", "--index", "2", "--yes")
	if got := scenesOf(readQueue(t, ws)); got != "Intro,Outro" {
		t.Fatalf("after remove: %q", got)
	}

	err := ws.runErr("remove", "--index", "9", "--yes")
	if !errors.Is(err, model.ErrIndexOutOfRange) {
		t.Fatalf("expected index error, got %v", err)
	}
}

func TestHarnessPopulateSkipsQueuedScenes(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.run(t, "add", "Outro")
	ws.run(t, "populate")

	q := readQueue(t, ws)
	if len(q.Jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d (%s)", len(q.Jobs), scenesOf(q))
	}
	ws.run(t, "populate")
	if n := len(readQueue(t, ws).Jobs); n != 3 {
		t.Fatalf("second populate added jobs: %d", n)
	}
}

func TestHarnessOverridesAndApplyAll(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.run(t, "add", "Intro", "Outro", "Credits")

	ws.run(t, "set", "--index", "1", "--key", "samples", "--value", "64")
	ws.run(t, "set", "--index", "1", "--key", "frame-range", "--value", "2-3")
	q := readQueue(t, ws)
	o := q.Jobs[0].Overrides
	if !o.Samples.Enabled || o.Samples.Value != 64 {
		t.Fatalf("samples override not stored: %+v", o.Samples)
	}
	if !o.FrameRange.Enabled || o.FrameRange.Value.Start != 2 || o.FrameRange.Value.End != 3 {
		t.Fatalf("frame range override not stored: %+v", o.FrameRange)
	}

	if err := ws.runErr("set", "--index", "1", "--key", "samples", "--value", "0"); !errors.Is(err, model.ErrInvalidValue) {
		t.Fatalf("expected invalid value error, got %v", err)
	}
	if err := ws.runErr("set", "--index", "1", "--key", "bogus", "--value", "1"); !errors.Is(err, model.ErrUnknownOverride) {
		t.Fatalf("expected unknown override error, got %v", err)
	}
	if err := ws.runErr("set", "--index", "1", "--key", "samples"); err == nil {
		t.Fatal("expected missing value error")
	}

	ws.run(t, "apply-all", "--index", "1", "--key", "samples")
	for _, job := range readQueue(t, ws).Jobs {
		if !job.Overrides.Samples.Enabled || job.Overrides.Samples.Value != 64 {
			t.Fatalf("%s did not receive samples: %+v", job.Scene, job.Overrides.Samples)
		}
	}

	// Wide only exists on Intro, so the other jobs are skipped
	ws.run(t, "set", "--index", "1", "--key", "camera", "--value", "Wide")
	ws.run(t, "apply-all", "--index", "1", "--key", "camera")
	q = readQueue(t, ws)
	if q.Jobs[1].Overrides.Camera.Enabled || q.Jobs[2].Overrides.Camera.Enabled {
		t.Fatal("camera override copied to scenes without that camera")
	}

	ws.run(t, "set", "--index", "1", "--key", "samples", "--off")
	q = readQueue(t, ws)
	if q.Jobs[0].Overrides.Samples.Enabled {
		t.Fatal("samples override still enabled after --off")
	}
	if q.Jobs[0].Overrides.Samples.Value != 64 {
		t.Fatalf("disabled override should keep its value, got %d", q.Jobs[0].Overrides.Samples.Value)
	}
}

func TestHarnessPresetsAndOutput(t *testing.T) {
	ws := newTestWorkspace(t)
	if err := ws.runErr("preset", "draft"); err == nil {
		t.Fatal("expected preset on an empty queue to fail")
	}
	ws.run(t, "add", "Intro", "Outro")
	ws.run(t, "preset", "draft")
	for _, job := range readQueue(t, ws).Jobs {
		if job.Overrides.ResolutionScale.Value != 50 || job.Overrides.Samples.Value != 32 {
			t.Fatalf("draft preset not applied to %s", job.Scene)
		}
	}
	if err := ws.runErr("preset", "ultra"); err == nil {
		t.Fatal("expected unknown preset error")
	}

	ws.run(t, "output", "--location", "custom", "--path", "/tmp/renders")
	q := readQueue(t, ws)
	if q.OutputLocation != model.OutputCustom || q.GlobalOutputPath != "/tmp/renders" {
		t.Fatalf("unexpected output settings %s %s", q.OutputLocation, q.GlobalOutputPath)
	}
	if err := ws.runErr("output", "--location", "elsewhere"); err == nil {
		t.Fatal("expected invalid location error")
	}

	presetFile := filepath.Join(ws.dir, "nightly")
	ws.run(t, "save-preset", "--file", presetFile)
	ws.run(t, "remove", "--index", "1", "--yes")
	ws.run(t, "load-preset", "--file", presetFile+".json", "--yes")

	q = readQueue(t, ws)
	if got := scenesOf(q); got != "Intro,Outro" {
		t.Fatalf("preset round trip lost jobs: %q", got)
	}
	if q.OutputLocation != model.OutputCustom {
		t.Fatalf("preset did not carry output location: %s", q.OutputLocation)
	}
}

func TestHarnessValidate(t *testing.T) {
	ws := newTestWorkspace(t)
	if err := ws.runErr("validate"); err == nil {
		t.Fatal("expected empty queue to fail validation")
	}

	ws.run(t, "add", "Intro")
	ws.run(t, "validate")

	ws.run(t, "add", "Ghost")
	if err := ws.runErr("validate"); err == nil {
		t.Fatal("expected unknown scene to fail validation")
	}
	ws.run(t, "remove", "--index", "2", "--yes")

	ws.run(t, "set", "--index", "1", "--key", "view_layer", "--value", "Fx")
	if err := ws.runErr("validate"); err == nil {
		t.Fatal("expected missing view layer to fail validation")
	}
}

func TestBuildListResultFlagsUnknownScenes(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.run(t, "add", "Intro", "Ghost")
	ws.run(t, "set", "--index", "1", "--key", "samples", "--value", "16")

	doc, err := scene.Load(ws.document)
	if err != nil {
		t.Fatal(err)
	}
	res := buildListResult(ws.config, readQueue(t, ws), doc)
	if len(res.Jobs) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Jobs))
	}
	if res.Jobs[0].Known == nil || !*res.Jobs[0].Known {
		t.Fatal("Intro should be known")
	}
	if res.Jobs[1].Known == nil || *res.Jobs[1].Known {
		t.Fatal("Ghost should be flagged")
	}
	if res.Jobs[0].Overrides["samples"] != "16" {
		t.Fatalf("unexpected overrides %+v", res.Jobs[0].Overrides)
	}

	out := renderList(res)
	if !strings.Contains(out, "not in document") || !strings.Contains(out, "Samples") {
		t.Fatalf("list output missing markers:\n%s", out)
	}

	noDoc := buildListResult(ws.config, readQueue(t, ws), nil)
	if noDoc.Jobs[1].Known != nil {
		t.Fatal("without a document scenes are neither known nor unknown")
	}
}
