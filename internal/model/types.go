package model

// Override is one toggleable render parameter. When Enabled is false the
// scene's own value is used and Value is only remembered for later.
type Override[T any] struct {
	Enabled bool `json:"enabled"`
	Value   T    `json:"value"`
}

type FrameRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Overrides struct {
	FrameRange        Override[FrameRange] `json:"frame_range"`
	FrameStep         Override[int]        `json:"frame_step"`
	OutputPath        Override[string]     `json:"output_path"`
	ResolutionScale   Override[int]        `json:"resolution_scale"`
	RenderFormat      Override[string]     `json:"render_format"`
	RenderEngine      Override[string]     `json:"render_engine"`
	ViewLayer         Override[string]     `json:"view_layer"`
	Camera            Override[string]     `json:"camera"`
	FilmTransparent   Override[bool]       `json:"film_transparent"`
	UseCompositor     Override[bool]       `json:"use_compositor"`
	Samples           Override[int]        `json:"samples"`
	UseDenoising      Override[bool]       `json:"use_denoising"`
	Device            Override[string]     `json:"device"`
	TimeLimit         Override[float64]    `json:"time_limit"`
	UsePersistentData Override[bool]       `json:"use_persistent_data"`
}

type RenderJob struct {
	ID        string    `json:"id"`
	Scene     string    `json:"scene"`
	Overrides Overrides `json:"overrides"`
}

type OutputLocation string

const (
	OutputDefault OutputLocation = "DEFAULT"
	OutputCustom  OutputLocation = "CUSTOM"
)

// Queue is the ordered job list plus the settings shared by every job.
// Slice order is execution order.
type Queue struct {
	Jobs             []RenderJob    `json:"jobs"`
	GlobalOutputPath string         `json:"global_output_path"`
	OutputLocation   OutputLocation `json:"output_location"`
}

// Scene is what the document knows about one renderable scene.
type Scene struct {
	Name        string   `json:"name"`
	Camera      string   `json:"camera,omitempty"`
	Cameras     []string `json:"cameras,omitempty"`
	ViewLayers  []string `json:"view_layers,omitempty"`
	FrameStart  int      `json:"frame_start"`
	FrameEnd    int      `json:"frame_end"`
	FrameStep   int      `json:"frame_step,omitempty"`
	Engine      string   `json:"engine,omitempty"`
	Format      string   `json:"format,omitempty"`
	ResolutionX int      `json:"resolution_x,omitempty"`
	ResolutionY int      `json:"resolution_y,omitempty"`
}

func (s Scene) HasCamera(name string) bool {
	if name == "" {
		return false
	}
	if s.Camera == name {
		return true
	}
	for _, c := range s.Cameras {
		if c == name {
			return true
		}
	}
	return false
}

func (s Scene) HasViewLayer(name string) bool {
	for _, vl := range s.ViewLayers {
		if vl == name {
			return true
		}
	}
	return false
}

// SceneCatalog enumerates the scenes of the document the queue renders.
type SceneCatalog interface {
	Scene(name string) (Scene, bool)
	Scenes() []Scene
}

type JobProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// JobTiming holds unix seconds; zero means "not yet".
type JobTiming struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// WorkerStatus is one complete status snapshot. The worker rewrites it
// wholesale on every event, so readers never merge deltas.
type WorkerStatus struct {
	JobIndex       int           `json:"job_index"`
	TotalJobs      int           `json:"total_jobs"`
	Message        string        `json:"message"`
	ETR            string        `json:"etr"`
	Finished       bool          `json:"finished"`
	Error          string        `json:"error,omitempty"`
	Timestamp      float64       `json:"timestamp"`
	FinishedFrames int           `json:"finished_frames"`
	TotalFrames    int           `json:"total_frames"`
	LastFrame      string        `json:"last_frame"`
	PausedDuration float64       `json:"paused_duration"`
	JobIDs         []string      `json:"job_ids"`
	JobStatuses    []JobStatus   `json:"job_statuses"`
	JobProgress    []JobProgress `json:"job_progress"`
	JobTimings     []JobTiming   `json:"job_timings"`
	JobErrors      []string      `json:"job_errors,omitempty"`
}
