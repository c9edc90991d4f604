package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	ManifestFileName = "rendercue_manifest.json"
	StatusFileName   = "rendercue_status.json"
	PauseFileName    = "rendercue_pause.signal"
	RecordFileName   = "run.json"
)

var ErrNoRuns = errors.New("no run directories")

// RunRecord is the per-run summary the supervisor leaves behind in each
// run directory once a render finishes.
type RunRecord struct {
	RunID          string `json:"run_id"`
	CreatedAt      string `json:"created_at"`
	FinishedAt     string `json:"finished_at,omitempty"`
	ManifestPath   string `json:"manifest_path"`
	StatusPath     string `json:"status_path"`
	OutputLocation string `json:"output_location,omitempty"`
	TotalJobs      int    `json:"total_jobs"`
	Completed      int    `json:"completed"`
	Failed         int    `json:"failed"`
	Cancelled      int    `json:"cancelled"`
	TotalFrames    int    `json:"total_frames"`
	DurationSec    int64  `json:"duration_sec"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// WriteBytes replaces path atomically: readers either see the previous
// content or the new content, never a partial write.
func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".rendercue-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return WriteBytes(path, data)
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}

// NewRunDir creates a fresh, lexically sortable run directory under runsDir.
func NewRunDir(runsDir string, now time.Time) (string, string, error) {
	base := strings.TrimSpace(runsDir)
	if base == "" {
		base = "runs"
	}
	runID := now.UTC().Format("20060102T150405.000Z")
	runID = strings.ReplaceAll(runID, ".", "")
	dir := filepath.Join(base, runID)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", "", fmt.Errorf("create runs directory %s: %w", base, err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create run directory %s: %w", dir, err)
	}
	return runID, dir, nil
}

func LatestRunDir(runsDir string) (string, error) {
	dirs, err := ListRunDirs(runsDir)
	if err != nil {
		return "", err
	}
	if len(dirs) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoRuns, runsDir)
	}
	return dirs[len(dirs)-1], nil
}

func ListRunDirs(runsDir string) ([]string, error) {
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read runs directory %s: %w", runsDir, err)
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			dirs = append(dirs, filepath.Join(runsDir, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func ManifestPath(runDir string) string {
	return filepath.Join(runDir, ManifestFileName)
}

func StatusPath(runDir string) string {
	return filepath.Join(runDir, StatusFileName)
}

// PausePath places the sentinel next to the status file, which is where the
// worker looks for it.
func PausePath(statusPath string) string {
	return filepath.Join(filepath.Dir(statusPath), PauseFileName)
}

func RecordPath(runDir string) string {
	return filepath.Join(runDir, RecordFileName)
}

func LoadRunRecord(runDir string) (RunRecord, error) {
	var rec RunRecord
	if err := ReadJSON(RecordPath(runDir), &rec); err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

func SaveRunRecord(runDir string, rec RunRecord) error {
	return WriteJSON(RecordPath(runDir), rec)
}
