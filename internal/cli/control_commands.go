package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"rendercue/internal/runstore"
	"rendercue/internal/status"
	"rendercue/internal/workspace"
)

var errNoRuns = errors.New("no runs yet; start one with rendercue render")

type runStatusResult struct {
	RunDir string             `json:"run_dir"`
	Record runstore.RunRecord `json:"record"`
	Active bool               `json:"active"`
	Paused bool               `json:"paused"`
	Status *runStatusSnapshot `json:"status,omitempty"`
}

type runStatusSnapshot struct {
	JobIndex       int      `json:"job_index"`
	TotalJobs      int      `json:"total_jobs"`
	Message        string   `json:"message"`
	ETR            string   `json:"etr"`
	FinishedFrames int      `json:"finished_frames"`
	TotalFrames    int      `json:"total_frames"`
	LastFrame      string   `json:"last_frame,omitempty"`
	Finished       bool     `json:"finished"`
	Error          string   `json:"error,omitempty"`
	JobStatuses    []string `json:"job_statuses"`
}

type runDirFlags struct {
	config  *string
	runsDir *string
	run     *string
}

func (f runDirFlags) resolve() (string, error) {
	return resolveRunDir(*f.config, *f.runsDir, *f.run)
}

// resolveRunDir picks --run when given, otherwise the newest directory in
// the configured runs directory.
func resolveRunDir(configFlag, runsDirFlag, runFlag string) (string, error) {
	if dir := strings.TrimSpace(runFlag); dir != "" {
		if _, err := runstore.LoadRunRecord(dir); err != nil {
			return "", fmt.Errorf("%s is not a run directory: %w", dir, err)
		}
		return dir, nil
	}
	runsDir := strings.TrimSpace(runsDirFlag)
	if runsDir == "" {
		cfg, err := workspace.Read(workspace.ResolvePath(configFlag))
		if err != nil {
			return "", err
		}
		runsDir = cfg.Settings.RunsDir
		if runsDir == "" {
			runsDir = workspace.DefaultRunsDir
		}
	}
	dir, err := runstore.LatestRunDir(runsDir)
	if errors.Is(err, runstore.ErrNoRuns) {
		return "", errNoRuns
	}
	return dir, err
}

func addRunDirFlags(name string) (*flag.FlagSet, runDirFlags) {
	fs := newFlagSet(name)
	return fs, runDirFlags{
		config:  fs.String("config", "", "workspace config path"),
		runsDir: fs.String("runs-dir", "", "runs directory (default from config)"),
		run:     fs.String("run", "", "run directory (default: the latest run)"),
	}
}

func runPause(args []string) error {
	fs, f := addRunDirFlags("pause")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir, err := f.resolve()
	if err != nil {
		return err
	}
	rec, err := runstore.LoadRunRecord(dir)
	if err != nil {
		return err
	}
	if rec.FinishedAt != "" {
		return fmt.Errorf("run %s already finished", rec.RunID)
	}
	sentinel := status.NewSentinel(runstore.PausePath(runstore.StatusPath(dir)), 0)
	if sentinel.Paused() {
		fmt.Printf("run %s is already paused\n", rec.RunID)
		return nil
	}
	if err := sentinel.RequestPause(); err != nil {
		return err
	}
	fmt.Printf("pause requested for run %s; the current frame finishes first\n", rec.RunID)
	return nil
}

func runResume(args []string) error {
	fs, f := addRunDirFlags("resume")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir, err := f.resolve()
	if err != nil {
		return err
	}
	rec, err := runstore.LoadRunRecord(dir)
	if err != nil {
		return err
	}
	sentinel := status.NewSentinel(runstore.PausePath(runstore.StatusPath(dir)), 0)
	if !sentinel.Paused() {
		fmt.Printf("run %s is not paused\n", rec.RunID)
		return nil
	}
	if err := sentinel.Resume(); err != nil {
		return err
	}
	fmt.Printf("resumed run %s\n", rec.RunID)
	return nil
}

func runStatus(args []string) error {
	fs, f := addRunDirFlags("status")
	jsonOut := fs.Bool("json", false, "print JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir, err := f.resolve()
	if err != nil {
		return err
	}
	res, err := loadRunStatus(dir)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}
	printRunStatus(res)
	return nil
}

func loadRunStatus(dir string) (runStatusResult, error) {
	rec, err := runstore.LoadRunRecord(dir)
	if err != nil {
		return runStatusResult{}, err
	}
	statusPath := rec.StatusPath
	if statusPath == "" {
		statusPath = runstore.StatusPath(dir)
	}
	res := runStatusResult{
		RunDir: dir,
		Record: rec,
		Active: rec.FinishedAt == "",
		Paused: status.NewSentinel(runstore.PausePath(statusPath), 0).Paused(),
	}
	if st, ok := status.NewReader(statusPath).Poll(); ok {
		snap := &runStatusSnapshot{
			JobIndex:       st.JobIndex,
			TotalJobs:      st.TotalJobs,
			Message:        st.Message,
			ETR:            st.ETR,
			FinishedFrames: st.FinishedFrames,
			TotalFrames:    st.TotalFrames,
			LastFrame:      st.LastFrame,
			Finished:       st.Finished,
			Error:          st.Error,
			JobStatuses:    make([]string, 0, len(st.JobStatuses)),
		}
		for _, s := range st.JobStatuses {
			snap.JobStatuses = append(snap.JobStatuses, string(s))
		}
		res.Status = snap
		if st.Message == status.MessagePaused {
			res.Paused = true
		}
	}
	return res, nil
}

func printRunStatus(res runStatusResult) {
	rec := res.Record
	state := "finished"
	switch {
	case res.Active && res.Paused:
		state = "paused"
	case res.Active:
		state = "running"
	case !rec.Success:
		state = "finished with problems"
	}
	fmt.Printf("run %s: %s\n", rec.RunID, state)
	fmt.Printf("  dir: %s\n", res.RunDir)
	fmt.Printf("  started: %s\n", rec.CreatedAt)
	if rec.FinishedAt != "" {
		fmt.Printf("  finished: %s\n", rec.FinishedAt)
		fmt.Printf("  completed/failed/cancelled: %d/%d/%d of %d\n", rec.Completed, rec.Failed, rec.Cancelled, rec.TotalJobs)
	}
	if rec.OutputLocation != "" {
		fmt.Printf("  output: %s\n", rec.OutputLocation)
	}
	if st := res.Status; st != nil {
		fmt.Printf("  job %d/%d | frames %d/%d | etr %s\n", st.JobIndex, st.TotalJobs, st.FinishedFrames, st.TotalFrames, st.ETR)
		fmt.Printf("  message: %s\n", st.Message)
		if len(st.JobStatuses) > 0 {
			fmt.Printf("  jobs: %s\n", strings.Join(st.JobStatuses, " "))
		}
	} else if res.Active {
		fmt.Println("  no status published yet")
	}
	if rec.Error != "" {
		fmt.Printf("  error: %s\n", rec.Error)
	}
}
