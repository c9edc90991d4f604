package statusapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"rendercue/internal/model"
	"rendercue/internal/supervisor"
)

type fakeController struct {
	mirror  supervisor.Mirror
	summary *supervisor.Summary
	paused  bool
	stopped bool
	failErr error
}

func (f *fakeController) Snapshot() supervisor.Mirror { return f.mirror }

func (f *fakeController) Summary() (supervisor.Summary, bool) {
	if f.summary == nil {
		return supervisor.Summary{}, false
	}
	return *f.summary, true
}

func (f *fakeController) Pause() error {
	if f.failErr != nil {
		return f.failErr
	}
	f.paused = true
	return nil
}

func (f *fakeController) Resume() error {
	if f.failErr != nil {
		return f.failErr
	}
	f.paused = false
	return nil
}

func (f *fakeController) Stop() { f.stopped = true }

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestStatusReturnsMirror(t *testing.T) {
	ctl := &fakeController{mirror: supervisor.Mirror{
		State:          supervisor.StateRunning,
		FinishedFrames: 3,
		TotalFrames:    10,
		Jobs:           []supervisor.JobView{{ID: "j1", Scene: "A", Status: model.StatusRendering}},
	}}
	h := NewRouter(Deps{Controller: ctl})

	rec := do(t, h, http.MethodGet, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var got supervisor.Mirror
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.FinishedFrames != 3 || len(got.Jobs) != 1 || got.Jobs[0].Status != model.StatusRendering {
		t.Fatalf("unexpected mirror %+v", got)
	}
}

func TestHealth(t *testing.T) {
	h := NewRouter(Deps{Controller: &fakeController{mirror: supervisor.Mirror{State: supervisor.StateIdle}}})
	rec := do(t, h, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["state"] != "idle" {
		t.Fatalf("body = %v", body)
	}
}

func TestSummaryNotFoundUntilFinished(t *testing.T) {
	ctl := &fakeController{}
	h := NewRouter(Deps{Controller: ctl})
	if rec := do(t, h, http.MethodGet, "/summary"); rec.Code != http.StatusNotFound {
		t.Fatalf("status code = %d", rec.Code)
	}
	ctl.summary = &supervisor.Summary{RunID: "r1", Completed: 2, Success: true}
	rec := do(t, h, http.MethodGet, "/summary")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var s supervisor.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatal(err)
	}
	if s.RunID != "r1" || !s.Success {
		t.Fatalf("summary = %+v", s)
	}
}

func TestControlEndpoints(t *testing.T) {
	ctl := &fakeController{mirror: supervisor.Mirror{State: supervisor.StateRunning}}
	h := NewRouter(Deps{Controller: ctl})

	if rec := do(t, h, http.MethodPost, "/pause"); rec.Code != http.StatusAccepted || !ctl.paused {
		t.Fatalf("pause: code=%d paused=%v", rec.Code, ctl.paused)
	}
	if rec := do(t, h, http.MethodPost, "/resume"); rec.Code != http.StatusAccepted || ctl.paused {
		t.Fatalf("resume: code=%d paused=%v", rec.Code, ctl.paused)
	}
	if rec := do(t, h, http.MethodPost, "/stop"); rec.Code != http.StatusAccepted || !ctl.stopped {
		t.Fatalf("stop: code=%d stopped=%v", rec.Code, ctl.stopped)
	}
	if rec := do(t, h, http.MethodGet, "/pause"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /pause code = %d", rec.Code)
	}
}

func TestControlWhileIdleConflicts(t *testing.T) {
	ctl := &fakeController{mirror: supervisor.Mirror{State: supervisor.StateIdle}, failErr: supervisor.ErrNotBusy}
	h := NewRouter(Deps{Controller: ctl})
	for _, path := range []string{"/pause", "/resume", "/stop"} {
		if rec := do(t, h, http.MethodPost, path); rec.Code != http.StatusConflict {
			t.Fatalf("%s code = %d", path, rec.Code)
		}
	}

	ctl.failErr = errors.New("disk gone")
	if rec := do(t, h, http.MethodPost, "/pause"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("pause code = %d", rec.Code)
	}
}
