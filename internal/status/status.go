package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"rendercue/internal/model"
	"rendercue/internal/runstore"
)

// Messages with protocol meaning; the supervisor derives its paused flag
// from MessagePaused.
const (
	MessagePaused    = "Paused"
	MessageResuming  = "Resuming..."
	MessageCompleted = "All Jobs Completed"
	MessageCancelled = "Cancelled"
	ETRUnknown       = "--:--"
	ETRPaused        = "Paused"
	ETRCalculating   = "Calculating..."
)

// Writer publishes complete status snapshots. Only the worker writes.
type Writer struct {
	path string
}

func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

func (w *Writer) Write(snapshot model.WorkerStatus) error {
	if err := runstore.WriteJSON(w.path, snapshot); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}

// Reader is the supervisor side of the status file.
type Reader struct {
	path string
}

func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Poll reads the latest snapshot. A missing, partial or unparsable file is
// reported as ok=false and the caller tries again on its next tick.
func (r *Reader) Poll() (model.WorkerStatus, bool) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return model.WorkerStatus{}, false
	}
	var s model.WorkerStatus
	if err := json.Unmarshal(data, &s); err != nil {
		return model.WorkerStatus{}, false
	}
	return s, true
}

// Remove deletes a stale status file left by an earlier run.
func (r *Reader) Remove() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale status %s: %w", r.path, err)
	}
	return nil
}
