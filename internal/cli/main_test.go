package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

const helperWorkerEnv = "RENDERCUE_TEST_WORKER"

// TestMain lets the test binary stand in for the rendercue executable when a
// render launches its worker subprocess.
func TestMain(m *testing.M) {
	if os.Getenv(helperWorkerEnv) == "1" {
		if err := Run(context.Background(), os.Args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

const testDocument = `{
  "path": %q,
  "scenes": [
    {"name": "Intro", "camera": "Cam", "cameras": ["Wide"], "view_layers": ["ViewLayer"], "frame_start": 1, "frame_end": 3},
    {"name": "Outro", "camera": "Cam", "view_layers": ["ViewLayer", "Fx"], "frame_start": 1, "frame_end": 2},
    {"name": "Credits", "camera": "Roll", "view_layers": ["ViewLayer"], "frame_start": 1, "frame_end": 1}
  ]
}`

type testWorkspace struct {
	dir      string
	config   string
	document string
	runsDir  string
}

func newTestWorkspace(t *testing.T) testWorkspace {
	t.Helper()
	tmp := t.TempDir()
	ws := testWorkspace{
		dir:      tmp,
		config:   filepath.Join(tmp, "rendercue.json"),
		document: filepath.Join(tmp, "scenes.json"),
		runsDir:  filepath.Join(tmp, "runs"),
	}
	doc := fmt.Sprintf(testDocument, filepath.Join(tmp, "film.blend"))
	if err := os.WriteFile(ws.document, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Run(context.Background(), []string{
		"init",
		"--config", ws.config,
		"--document", ws.document,
		"--runs-dir", ws.runsDir,
		"--render-cmd", "true {scene} {frame}",
	}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return ws
}

func (ws testWorkspace) run(t *testing.T, args ...string) {
	t.Helper()
	full := append([]string{args[0], "--config", ws.config}, args[1:]...)
	if err := Run(context.Background(), full); err != nil {
		t.Fatalf("%s failed: %v", args[0], err)
	}
}

func (ws testWorkspace) runErr(args ...string) error {
	full := append([]string{args[0], "--config", ws.config}, args[1:]...)
	return Run(context.Background(), full)
}
