package scene

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleDocument = `{
  "path": "/projects/film/shot.blend",
  "scenes": [
    {"name": "A", "camera": "Cam", "view_layers": ["ViewLayer"], "frame_start": 1, "frame_end": 24},
    {"name": "B", "cameras": ["Side"], "frame_start": 10, "frame_end": 5, "frame_step": 0}
  ]
}`

func writeDocument(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenes.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadNormalizesScenes(t *testing.T) {
	doc, err := Load(writeDocument(t, sampleDocument))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Name != "shot" {
		t.Fatalf("name = %q", doc.Name)
	}
	a, ok := doc.Scene("A")
	if !ok || !a.HasCamera("Cam") || len(a.Cameras) != 1 {
		t.Fatalf("scene A = %+v", a)
	}
	b, _ := doc.Scene("B")
	if b.FrameStep != 1 || b.FrameEnd != 10 {
		t.Fatalf("scene B not normalized: %+v", b)
	}
	if _, ok := doc.Scene("Ghost"); ok {
		t.Fatal("unexpected Ghost scene")
	}
	if len(doc.Scenes()) != 2 {
		t.Fatalf("scenes = %d", len(doc.Scenes()))
	}
}

func TestAbsPath(t *testing.T) {
	doc, err := Load(writeDocument(t, sampleDocument))
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.AbsPath("//renders/out"); got != filepath.Join("/projects/film", "renders", "out") {
		t.Fatalf("abs = %s", got)
	}
	if got := doc.AbsPath("/tmp/x"); got != "/tmp/x" {
		t.Fatalf("absolute paths pass through, got %s", got)
	}
}

func TestDocumentWithoutPathUsesTableLocation(t *testing.T) {
	path := writeDocument(t, `{"scenes":[{"name":"Solo","camera":"C","frame_start":1,"frame_end":1}]}`)
	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Name != "scenes" {
		t.Fatalf("name = %q", doc.Name)
	}
	if doc.Dir() != filepath.Dir(path) {
		t.Fatalf("dir = %s", doc.Dir())
	}
	if doc.DocumentPath() != path {
		t.Fatalf("document path = %s", doc.DocumentPath())
	}
}
