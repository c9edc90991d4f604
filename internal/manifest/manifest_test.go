package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rendercue/internal/model"
)

func TestSerializeDeserializePreservesQueue(t *testing.T) {
	var q model.Queue
	q.GlobalOutputPath = "/renders"
	q.OutputLocation = model.OutputCustom
	q.AddJob("Shot_A")
	q.AddJob("Shot B")
	q.Jobs[0].Overrides.FrameRange.Enabled = true
	q.Jobs[0].Overrides.SetFrameRange(10, 20)
	q.Jobs[1].Overrides.Camera = model.Override[string]{Enabled: true, Value: "Cam2"}
	q.Jobs[1].Overrides.TimeLimit = model.Override[float64]{Enabled: true, Value: 30.5}

	data, err := Serialize(q, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, ts, err := Deserialize(data)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if ts != 1700000000 {
		t.Fatalf("timestamp = %v", ts)
	}
	if got.GlobalOutputPath != "/renders" || got.OutputLocation != model.OutputCustom {
		t.Fatalf("unexpected queue settings %+v", got)
	}
	if len(got.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(got.Jobs))
	}
	for i := range q.Jobs {
		if got.Jobs[i] != q.Jobs[i] {
			t.Fatalf("job %d differs:\n got %+v\nwant %+v", i, got.Jobs[i], q.Jobs[i])
		}
	}
}

func TestDeserializeAppliesDefaultsForMissingFields(t *testing.T) {
	raw := `{"jobs":[{"scene_name":"Only"}]}`
	q, _, err := Deserialize([]byte(raw))
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if q.OutputLocation != model.OutputDefault || q.GlobalOutputPath != "//" {
		t.Fatalf("unexpected defaults %+v", q)
	}
	o := q.Jobs[0].Overrides
	if o.FrameRange.Value.Start != 1 || o.FrameRange.Value.End != 250 {
		t.Fatalf("frame range default = %+v", o.FrameRange.Value)
	}
	if o.Samples.Value != 128 || o.ResolutionScale.Value != 100 || o.RenderFormat.Value != "PNG" {
		t.Fatalf("unexpected defaults %+v", o)
	}
	if o.RenderEngine.Value != model.EngineCycles || o.Device.Value != model.DeviceCPU {
		t.Fatalf("unexpected engine/device defaults %+v", o)
	}
	if !o.UseCompositor.Value || !o.UseDenoising.Value || o.FilmTransparent.Value {
		t.Fatalf("unexpected flag defaults %+v", o)
	}
	if len(o.ActiveOverrides()) != 0 {
		t.Fatalf("no override should be enabled, got %v", o.ActiveOverrides())
	}
}

func TestDeserializeOutputLocationFallbacks(t *testing.T) {
	cases := []struct {
		raw  string
		want model.OutputLocation
	}{
		{`{"output_location":"SOMEWHERE","jobs":[]}`, model.OutputDefault},
		{`{"use_custom_output_path":true,"jobs":[]}`, model.OutputCustom},
		{`{"output_location":"DEFAULT","use_custom_output_path":true,"jobs":[]}`, model.OutputDefault},
		{`{"output_location":"CUSTOM","jobs":[]}`, model.OutputCustom},
	}
	for _, tc := range cases {
		q, _, err := Deserialize([]byte(tc.raw))
		if err != nil {
			t.Fatalf("deserialize %s: %v", tc.raw, err)
		}
		if q.OutputLocation != tc.want {
			t.Fatalf("%s: location = %s, want %s", tc.raw, q.OutputLocation, tc.want)
		}
	}
}

func TestDeserializeClampsFrameRange(t *testing.T) {
	raw := `{"jobs":[{"scene_name":"A","override_frame_range":true,"frame_start":50,"frame_end":10}]}`
	q, _, err := Deserialize([]byte(raw))
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got := q.Jobs[0].Overrides.FrameRange.Value; got.End != 50 {
		t.Fatalf("expected clamped end 50, got %+v", got)
	}
}

func TestReadFileReportsManifestError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ReadFile(path)
	var me *ManifestError
	if !errors.As(err, &me) {
		t.Fatalf("expected ManifestError, got %v", err)
	}
	if me.Path != path {
		t.Fatalf("error path = %q", me.Path)
	}

	_, err = ReadFile(filepath.Join(dir, "missing.json"))
	if !errors.As(err, &me) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist ManifestError, got %v", err)
	}
}

func TestWriteFileThenReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rendercue_manifest.json")
	var q model.Queue
	q.AddJob("A")
	if err := WriteFile(path, q, time.Now()); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Jobs) != 1 || got.Jobs[0].ID != q.Jobs[0].ID {
		t.Fatalf("unexpected jobs %+v", got.Jobs)
	}
}
