package outputpath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rendercue/internal/model"
)

type rootResolver string

func (r rootResolver) AbsPath(p string) string {
	if strings.HasPrefix(p, "//") {
		return filepath.Join(string(r), strings.TrimPrefix(p, "//"))
	}
	return p
}

func TestDuplicateScenesGetDistinctDirs(t *testing.T) {
	var q model.Queue
	q.AddJob("A")
	q.AddJob("B")
	q.AddJob("A")
	q.AddJob("A")

	settings := Settings{Location: model.OutputCustom, GlobalOutputPath: "/out"}
	r := NewResolver(settings, nil, q.Jobs)

	// resolve out of order; names depend on queue position only
	order := []int{3, 0, 2, 1}
	dirs := map[int]string{}
	for _, i := range order {
		dirs[i] = r.Resolve(q.Jobs[i], i, "PNG").Dir
	}
	want := map[int]string{
		0: filepath.Join("/out", "A_Job1"),
		1: filepath.Join("/out", "B"),
		2: filepath.Join("/out", "A_Job3"),
		3: filepath.Join("/out", "A_Job4"),
	}
	for i, w := range want {
		if dirs[i] != w {
			t.Fatalf("job %d dir = %s, want %s", i, dirs[i], w)
		}
	}
}

func TestDefaultLocationIsDocumentRelative(t *testing.T) {
	var q model.Queue
	q.AddJob("Shot 1")
	settings := Settings{Location: model.OutputDefault, GlobalOutputPath: "/ignored", DocumentName: "film"}
	target := Resolve(q.Jobs[0], settings, rootResolver("/projects"), 0, q.Jobs, "")

	if target.Dir != filepath.Join("/projects", "film_RenderCue", "Shot 1") {
		t.Fatalf("dir = %s", target.Dir)
	}
	if got := target.FramePath(7); got != filepath.Join(target.Dir, "Shot_1_0007.png") {
		t.Fatalf("frame path = %s", got)
	}
	if target.Pattern() != "Shot_1_####.png" {
		t.Fatalf("pattern = %s", target.Pattern())
	}
}

func TestJobOverrideDirWins(t *testing.T) {
	var q model.Queue
	q.AddJob("A")
	q.AddJob("A")
	q.Jobs[1].Overrides.OutputPath = model.Override[string]{Enabled: true, Value: "//special"}

	target := Resolve(q.Jobs[1], Settings{Location: model.OutputCustom, GlobalOutputPath: "/out"}, rootResolver("/doc"), 1, q.Jobs, "PNG")
	if target.Dir != filepath.Join("/doc", "special") {
		t.Fatalf("dir = %s", target.Dir)
	}
}

func TestVideoFormatsUseSingleFile(t *testing.T) {
	cases := map[string]string{
		"FFMPEG":   "Intro.mp4",
		"AVI_JPEG": "Intro.avi",
		"AVI_RAW":  "Intro.avi",
	}
	var q model.Queue
	q.AddJob("Intro")
	for format, want := range cases {
		target := Resolve(q.Jobs[0], Settings{Location: model.OutputCustom, GlobalOutputPath: "/o"}, nil, 0, q.Jobs, format)
		if !target.Video {
			t.Fatalf("%s should be a video format", format)
		}
		if filepath.Base(target.FramePath(12)) != want {
			t.Fatalf("%s frame path = %s", format, target.FramePath(12))
		}
		if got := target.RenderPattern(); got != filepath.Join("/o", "Intro", "Intro") {
			t.Fatalf("%s render pattern = %s", format, got)
		}
	}
}

func TestImageRenderPatternMatchesFramePath(t *testing.T) {
	var q model.Queue
	q.AddJob("Shot")
	target := Resolve(q.Jobs[0], Settings{Location: model.OutputCustom, GlobalOutputPath: "/o"}, nil, 0, q.Jobs, "PNG")
	if got := target.RenderPattern(); got != filepath.Join("/o", "Shot", "Shot_####") {
		t.Fatalf("render pattern = %s", got)
	}
	// the pattern with its digits filled in plus the extension is the frame path
	filled := strings.Replace(target.RenderPattern(), "####", "0042", 1) + target.Ext
	if filled != target.FramePath(42) {
		t.Fatalf("pattern %s does not name frame path %s", filled, target.FramePath(42))
	}
}

func TestPrepareReportsCreateDirError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := Prepare(Target{Dir: filepath.Join(blocker, "sub")})
	if !errors.Is(err, ErrCreateDir) {
		t.Fatalf("expected ErrCreateDir, got %v", err)
	}
	if err := Prepare(Target{Dir: filepath.Join(dir, "a", "b")}); err != nil {
		t.Fatalf("prepare: %v", err)
	}
}
