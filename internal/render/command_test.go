package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeFakeRenderer(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script harness")
	}
	path := filepath.Join(t.TempDir(), "fake-render")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestArgsSubstitutesPlaceholders(t *testing.T) {
	r, err := NewCommandRenderer("render --scene {scene} -f {frame} -o {output} --cam {camera} --res {resolution}")
	if err != nil {
		t.Fatal(err)
	}
	args := r.Args(Frame{
		Scene:    "Shot A",
		Number:   12,
		Output:   "/out/Shot_A_0012.png",
		Settings: Settings{Camera: "Cam", ResolutionScale: 50},
	})
	want := []string{"render", "--scene", "Shot A", "-f", "12", "-o", "/out/Shot_A_0012.png", "--cam", "Cam", "--res", "50"}
	if strings.Join(args, "|") != strings.Join(want, "|") {
		t.Fatalf("args = %q", args)
	}
}

func TestArgsCarriesEveryOverride(t *testing.T) {
	r, err := NewCommandRenderer("x {transparent} {compositor} {denoising} {time_limit} {persistent_data} {frame_step} {engine} {samples} {device} {view_layer} {format}")
	if err != nil {
		t.Fatal(err)
	}
	args := r.Args(Frame{Number: 1, Settings: Settings{
		FilmTransparent:   true,
		UseCompositor:     false,
		UseDenoising:      true,
		TimeLimit:         2.5,
		UsePersistentData: true,
		FrameStep:         3,
		Engine:            "CYCLES",
		Samples:           64,
		Device:            "GPU",
		ViewLayer:         "Fx",
		Format:            "PNG",
	}})
	want := "x|1|0|1|2.5|1|3|CYCLES|64|GPU|Fx|PNG"
	if got := strings.Join(args, "|"); got != want {
		t.Fatalf("args = %q", got)
	}
	for _, a := range args {
		if strings.ContainsAny(a, "{}") {
			t.Fatalf("placeholder left unexpanded: %q", a)
		}
	}
}

func TestDefaultCommandUsesOutputPattern(t *testing.T) {
	r, err := NewCommandRenderer(DefaultCommand)
	if err != nil {
		t.Fatal(err)
	}
	args := r.Args(Frame{
		Document:      "/proj/film.blend",
		Scene:         "A",
		Number:        7,
		Output:        "/out/A_0007.png",
		OutputPattern: "/out/A_####",
		Settings:      Settings{Format: "PNG", FrameStep: 1},
	})
	want := "blender|-b|/proj/film.blend|-S|A|-o|/out/A_####|-F|PNG|-j|1|-f|7"
	if got := strings.Join(args, "|"); got != want {
		t.Fatalf("args = %q", got)
	}

	args = r.Args(Frame{
		Scene:         "A",
		Number:        1,
		End:           250,
		Animation:     true,
		Output:        "/out/A.mp4",
		OutputPattern: "/out/A",
		Settings:      Settings{Format: "FFMPEG", FrameStep: 2},
	})
	if got := strings.Join(args[len(args)-4:], "|"); got != "-j|2|-f|1..250" {
		t.Fatalf("animation args = %q", args)
	}
}

func TestFrameFrames(t *testing.T) {
	cases := []struct {
		frame Frame
		want  string
	}{
		{Frame{Number: 5}, "5"},
		{Frame{Number: 5, End: 9}, "5"},
		{Frame{Number: 5, End: 9, Animation: true}, "5..9"},
		{Frame{Number: 5, End: 5, Animation: true}, "5"},
	}
	for _, tc := range cases {
		if got := tc.frame.Frames(); got != tc.want {
			t.Fatalf("%+v: Frames() = %q, want %q", tc.frame, got, tc.want)
		}
	}
}

func TestNewCommandRendererRejectsEmpty(t *testing.T) {
	if _, err := NewCommandRenderer("   "); !errors.Is(err, ErrEmptyCommand) {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestRenderFrameWritesOutputAndReportsPreview(t *testing.T) {
	bin := writeFakeRenderer(t, `echo "rendering $2"; printf png > "$1"`)
	r, err := NewCommandRenderer(bin + " {output} {frame}")
	if err != nil {
		t.Fatal(err)
	}
	var lines []string
	r.Progress = func(stream OutputStream, line string) {
		if stream == StreamStdout {
			lines = append(lines, line)
		}
	}
	out := filepath.Join(t.TempDir(), "A_0003.png")
	res, err := r.RenderFrame(context.Background(), Frame{Scene: "A", Number: 3, Output: out})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.Preview != out {
		t.Fatalf("preview = %q", res.Preview)
	}
	if len(lines) != 1 || lines[0] != "rendering 3" {
		t.Fatalf("progress lines = %q", lines)
	}
}

func TestRenderFrameFailureCarriesStderr(t *testing.T) {
	bin := writeFakeRenderer(t, `echo "GPU out of memory" >&2; exit 3`)
	r, err := NewCommandRenderer(bin)
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.RenderFrame(context.Background(), Frame{Scene: "A", Number: 1, Output: "x.png"})
	if err == nil || !strings.Contains(err.Error(), "GPU out of memory") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestDependencyStatus(t *testing.T) {
	bin := writeFakeRenderer(t, "exit 0")
	report := DependencyStatus(bin + " {frame}")
	if !report.BinaryFound || report.BinaryPath != bin {
		t.Fatalf("report = %+v", report)
	}
	if err := CheckDependencies("definitely-not-a-real-renderer-binary {frame}"); err == nil {
		t.Fatal("expected missing dependency error")
	}
}
