package supervisor

import (
	"time"

	"rendercue/internal/model"
	"rendercue/internal/status"
)

type State string

const (
	StateIdle      State = "idle"
	StateLaunching State = "launching"
	StateRunning   State = "running"
	StateFinishing State = "finishing"
)

// JobView is the supervisor's copy of one job's runtime state.
type JobView struct {
	ID              string          `json:"id"`
	Scene           string          `json:"scene"`
	Status          model.JobStatus `json:"status"`
	CompletedFrames int             `json:"completed_frames"`
	TotalFrames     int             `json:"total_frames"`
	StartTime       float64         `json:"start_time,omitempty"`
	EndTime         float64         `json:"end_time,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
}

// Mirror is what displays see. It is rebuilt from each status snapshot in
// full, never patched.
type Mirror struct {
	State          State     `json:"state"`
	RunID          string    `json:"run_id,omitempty"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	Paused         bool      `json:"paused"`
	PauseRequested bool      `json:"pause_requested"`
	JobIndex       int       `json:"job_index"`
	TotalJobs      int       `json:"total_jobs"`
	Message        string    `json:"message"`
	ETR            string    `json:"etr"`
	FinishedFrames int       `json:"finished_frames"`
	TotalFrames    int       `json:"total_frames"`
	Progress       float64   `json:"progress"`
	LastFrame      string    `json:"last_frame,omitempty"`
	PausedDuration float64   `json:"paused_duration"`
	Finished       bool      `json:"finished"`
	Error          string    `json:"error,omitempty"`
	HasError       bool      `json:"has_error"`
	Jobs           []JobView `json:"jobs"`
}

func (m Mirror) clone() Mirror {
	out := m
	out.Jobs = append([]JobView(nil), m.Jobs...)
	return out
}

func newMirror(q model.Queue) Mirror {
	m := Mirror{
		State:     StateLaunching,
		TotalJobs: len(q.Jobs),
		ETR:       status.ETRUnknown,
		Jobs:      make([]JobView, len(q.Jobs)),
	}
	for i, job := range q.Jobs {
		m.Jobs[i] = JobView{ID: job.ID, Scene: job.Scene, Status: model.StatusPending}
	}
	return m
}

// apply replaces everything the worker reports. Jobs are matched by id;
// snapshots without ids fall back to position.
func (m *Mirror) apply(st model.WorkerStatus) {
	m.JobIndex = st.JobIndex
	m.TotalJobs = st.TotalJobs
	m.Message = st.Message
	m.ETR = st.ETR
	m.FinishedFrames = st.FinishedFrames
	m.TotalFrames = st.TotalFrames
	m.Progress = 0
	if st.TotalFrames > 0 {
		m.Progress = float64(st.FinishedFrames) / float64(st.TotalFrames)
	}
	m.LastFrame = st.LastFrame
	m.PausedDuration = st.PausedDuration
	m.Finished = st.Finished
	m.Error = st.Error
	m.Paused = st.Message == status.MessagePaused

	byID := make(map[string]int, len(st.JobIDs))
	for i, id := range st.JobIDs {
		if id != "" {
			byID[id] = i
		}
	}

	hasError := st.Error != ""
	for j := range m.Jobs {
		view := &m.Jobs[j]
		idx, ok := byID[view.ID]
		if !ok {
			if len(st.JobIDs) > 0 {
				continue
			}
			idx = j
		}
		if idx < len(st.JobStatuses) && model.IsKnownStatus(st.JobStatuses[idx]) {
			view.Status = st.JobStatuses[idx]
		}
		if idx < len(st.JobProgress) {
			view.CompletedFrames = st.JobProgress[idx].Done
			view.TotalFrames = st.JobProgress[idx].Total
		}
		if idx < len(st.JobTimings) {
			view.StartTime = st.JobTimings[idx].Start
			view.EndTime = st.JobTimings[idx].End
		}
		if idx < len(st.JobErrors) {
			view.ErrorMessage = st.JobErrors[idx]
		}
		if view.Status == model.StatusFailed {
			hasError = true
		}
	}
	m.HasError = hasError
}

// cancelUnfinished marks every job the worker never got to finish.
func (m *Mirror) cancelUnfinished(now float64) {
	for j := range m.Jobs {
		view := &m.Jobs[j]
		if !model.IsTerminal(view.Status) {
			view.Status = model.StatusCancelled
			if view.StartTime > 0 && view.EndTime == 0 {
				view.EndTime = now
			}
		}
	}
	m.Paused = false
}

// Summary is the record of one finished run.
type Summary struct {
	RunID          string        `json:"run_id"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	TotalJobs      int           `json:"total_jobs"`
	Completed      int           `json:"completed"`
	Failed         int           `json:"failed"`
	Cancelled      int           `json:"cancelled"`
	TotalFrames    int           `json:"total_frames"`
	Duration       time.Duration `json:"duration"`
	OutputLocation string        `json:"output_location"`
	Stopped        bool          `json:"stopped"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
}

func summarize(m Mirror, finishedAt time.Time, output string) Summary {
	s := Summary{
		RunID:          m.RunID,
		StartedAt:      m.StartedAt,
		FinishedAt:     finishedAt,
		TotalJobs:      len(m.Jobs),
		TotalFrames:    m.FinishedFrames,
		Duration:       finishedAt.Sub(m.StartedAt),
		OutputLocation: output,
		Error:          m.Error,
	}
	for _, job := range m.Jobs {
		switch job.Status {
		case model.StatusCompleted:
			s.Completed++
		case model.StatusFailed:
			s.Failed++
		case model.StatusCancelled:
			s.Cancelled++
		}
	}
	s.Success = m.Finished && m.Error == "" && s.Failed == 0
	return s
}
