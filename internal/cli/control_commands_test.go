package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rendercue/internal/model"
	"rendercue/internal/runstore"
	"rendercue/internal/status"
)

// fakeActiveRun lays out a run directory the way a supervisor does while
// its worker is still rendering.
func fakeActiveRun(t *testing.T, runsDir string, at time.Time) string {
	t.Helper()
	runID, dir, err := runstore.NewRunDir(runsDir, at)
	if err != nil {
		t.Fatal(err)
	}
	if err := runstore.SaveRunRecord(dir, runstore.RunRecord{
		RunID:        runID,
		CreatedAt:    at.UTC().Format(time.RFC3339),
		ManifestPath: runstore.ManifestPath(dir),
		StatusPath:   runstore.StatusPath(dir),
		TotalJobs:    2,
	}); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestHarnessPauseResume(t *testing.T) {
	ws := newTestWorkspace(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := fakeActiveRun(t, ws.runsDir, base)
	latest := fakeActiveRun(t, ws.runsDir, base.Add(time.Minute))

	ws.run(t, "pause")
	sentinel := filepath.Join(latest, runstore.PauseFileName)
	if _, err := os.Stat(sentinel); err != nil {
		t.Fatalf("pause sentinel not created in latest run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(older, runstore.PauseFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("older run should not be paused")
	}
	// pausing twice is harmless
	ws.run(t, "pause")

	res, err := loadRunStatus(latest)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Active || !res.Paused || res.Status != nil {
		t.Fatalf("unexpected status %+v", res)
	}

	ws.run(t, "resume")
	if _, err := os.Stat(sentinel); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("resume did not remove the sentinel")
	}
	ws.run(t, "resume")

	ws.run(t, "pause", "--run", older)
	if _, err := os.Stat(filepath.Join(older, runstore.PauseFileName)); err != nil {
		t.Fatalf("--run did not target the older run: %v", err)
	}
}

func TestRunStatusReadsWorkerSnapshot(t *testing.T) {
	ws := newTestWorkspace(t)
	dir := fakeActiveRun(t, ws.runsDir, time.Now())
	snap := model.WorkerStatus{
		JobIndex:       2,
		TotalJobs:      2,
		Message:        status.MessagePaused,
		ETR:            status.ETRPaused,
		FinishedFrames: 4,
		TotalFrames:    6,
		JobStatuses:    []model.JobStatus{model.StatusCompleted, model.StatusRendering},
	}
	if err := status.NewWriter(runstore.StatusPath(dir)).Write(snap); err != nil {
		t.Fatal(err)
	}

	res, err := loadRunStatus(dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status == nil || res.Status.FinishedFrames != 4 || len(res.Status.JobStatuses) != 2 {
		t.Fatalf("unexpected snapshot %+v", res.Status)
	}
	if !res.Paused {
		t.Fatal("a worker reporting Paused should show as paused")
	}
	ws.run(t, "status", "--json")
	ws.run(t, "status")
}

func TestResolveRunDirWithoutRuns(t *testing.T) {
	ws := newTestWorkspace(t)
	_, err := resolveRunDir(ws.config, "", "")
	if !errors.Is(err, errNoRuns) {
		t.Fatalf("expected errNoRuns, got %v", err)
	}
	if _, err := resolveRunDir(ws.config, "", filepath.Join(ws.dir, "nowhere")); err == nil {
		t.Fatal("expected error for a directory without a run record")
	}
}
