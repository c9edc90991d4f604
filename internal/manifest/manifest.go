package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"rendercue/internal/model"
	"rendercue/internal/runstore"
)

// ManifestError reports a manifest that could not be read or parsed. Missing
// fields are never an error; they take their defaults.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	if e.Path == "" {
		return "invalid manifest: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// document is the on-disk manifest layout. Field names are part of the
// worker protocol and must not change.
type document struct {
	Timestamp           float64              `json:"timestamp"`
	GlobalOutputPath    string               `json:"global_output_path"`
	OutputLocation      model.OutputLocation `json:"output_location"`
	UseCustomOutputPath *bool                `json:"use_custom_output_path,omitempty"`
	Jobs                []jobRecord          `json:"jobs"`
}

type jobRecord struct {
	JobID                  string  `json:"job_id,omitempty"`
	SceneName              string  `json:"scene_name"`
	OverrideFrameRange     bool    `json:"override_frame_range"`
	FrameStart             int     `json:"frame_start"`
	FrameEnd               int     `json:"frame_end"`
	OverrideOutput         bool    `json:"override_output"`
	OutputPath             string  `json:"output_path"`
	OverrideResolution     bool    `json:"override_resolution"`
	ResolutionScale        int     `json:"resolution_scale"`
	OverrideSamples        bool    `json:"override_samples"`
	Samples                int     `json:"samples"`
	OverrideFormat         bool    `json:"override_format"`
	RenderFormat           string  `json:"render_format"`
	OverrideEngine         bool    `json:"override_engine"`
	RenderEngine           string  `json:"render_engine"`
	OverrideViewLayer      bool    `json:"override_view_layer"`
	ViewLayer              string  `json:"view_layer"`
	OverrideCamera         bool    `json:"override_camera"`
	Camera                 string  `json:"camera"`
	OverrideFrameStep      bool    `json:"override_frame_step"`
	FrameStep              int     `json:"frame_step"`
	OverrideTransparent    bool    `json:"override_transparent"`
	FilmTransparent        bool    `json:"film_transparent"`
	OverrideCompositor     bool    `json:"override_compositor"`
	UseCompositor          bool    `json:"use_compositor"`
	OverrideDenoising      bool    `json:"override_denoising"`
	UseDenoising           bool    `json:"use_denoising"`
	OverrideDevice         bool    `json:"override_device"`
	Device                 string  `json:"device"`
	OverrideTimeLimit      bool    `json:"override_time_limit"`
	TimeLimit              float64 `json:"time_limit"`
	OverridePersistentData bool    `json:"override_persistent_data"`
	UsePersistentData      bool    `json:"use_persistent_data"`
}

// UnmarshalJSON starts from the defaults so absent keys keep them.
func (r *jobRecord) UnmarshalJSON(data []byte) error {
	*r = recordFromJob(model.RenderJob{Overrides: model.DefaultOverrides()})
	type plain jobRecord
	return json.Unmarshal(data, (*plain)(r))
}

func recordFromJob(job model.RenderJob) jobRecord {
	o := job.Overrides
	return jobRecord{
		JobID:                  job.ID,
		SceneName:              job.Scene,
		OverrideFrameRange:     o.FrameRange.Enabled,
		FrameStart:             o.FrameRange.Value.Start,
		FrameEnd:               o.FrameRange.Value.End,
		OverrideOutput:         o.OutputPath.Enabled,
		OutputPath:             o.OutputPath.Value,
		OverrideResolution:     o.ResolutionScale.Enabled,
		ResolutionScale:        o.ResolutionScale.Value,
		OverrideSamples:        o.Samples.Enabled,
		Samples:                o.Samples.Value,
		OverrideFormat:         o.RenderFormat.Enabled,
		RenderFormat:           o.RenderFormat.Value,
		OverrideEngine:         o.RenderEngine.Enabled,
		RenderEngine:           o.RenderEngine.Value,
		OverrideViewLayer:      o.ViewLayer.Enabled,
		ViewLayer:              o.ViewLayer.Value,
		OverrideCamera:         o.Camera.Enabled,
		Camera:                 o.Camera.Value,
		OverrideFrameStep:      o.FrameStep.Enabled,
		FrameStep:              o.FrameStep.Value,
		OverrideTransparent:    o.FilmTransparent.Enabled,
		FilmTransparent:        o.FilmTransparent.Value,
		OverrideCompositor:     o.UseCompositor.Enabled,
		UseCompositor:          o.UseCompositor.Value,
		OverrideDenoising:      o.UseDenoising.Enabled,
		UseDenoising:           o.UseDenoising.Value,
		OverrideDevice:         o.Device.Enabled,
		Device:                 o.Device.Value,
		OverrideTimeLimit:      o.TimeLimit.Enabled,
		TimeLimit:              o.TimeLimit.Value,
		OverridePersistentData: o.UsePersistentData.Enabled,
		UsePersistentData:      o.UsePersistentData.Value,
	}
}

func (r jobRecord) toJob() model.RenderJob {
	var o model.Overrides
	o.FrameRange.Enabled = r.OverrideFrameRange
	o.SetFrameRange(r.FrameStart, r.FrameEnd)
	o.OutputPath = model.Override[string]{Enabled: r.OverrideOutput, Value: r.OutputPath}
	o.ResolutionScale = model.Override[int]{Enabled: r.OverrideResolution, Value: r.ResolutionScale}
	o.Samples = model.Override[int]{Enabled: r.OverrideSamples, Value: r.Samples}
	o.RenderFormat = model.Override[string]{Enabled: r.OverrideFormat, Value: r.RenderFormat}
	o.RenderEngine = model.Override[string]{Enabled: r.OverrideEngine, Value: r.RenderEngine}
	o.ViewLayer = model.Override[string]{Enabled: r.OverrideViewLayer, Value: r.ViewLayer}
	o.Camera = model.Override[string]{Enabled: r.OverrideCamera, Value: r.Camera}
	o.FrameStep = model.Override[int]{Enabled: r.OverrideFrameStep, Value: r.FrameStep}
	o.FilmTransparent = model.Override[bool]{Enabled: r.OverrideTransparent, Value: r.FilmTransparent}
	o.UseCompositor = model.Override[bool]{Enabled: r.OverrideCompositor, Value: r.UseCompositor}
	o.UseDenoising = model.Override[bool]{Enabled: r.OverrideDenoising, Value: r.UseDenoising}
	o.Device = model.Override[string]{Enabled: r.OverrideDevice, Value: r.Device}
	o.TimeLimit = model.Override[float64]{Enabled: r.OverrideTimeLimit, Value: r.TimeLimit}
	o.UsePersistentData = model.Override[bool]{Enabled: r.OverridePersistentData, Value: r.UsePersistentData}
	return model.RenderJob{ID: r.JobID, Scene: r.SceneName, Overrides: o}
}

// Serialize encodes the queue in the worker manifest format, stamped with
// the given time.
func Serialize(q model.Queue, now time.Time) ([]byte, error) {
	doc := document{
		Timestamp:        float64(now.UnixNano()) / float64(time.Second),
		GlobalOutputPath: q.GlobalOutputPath,
		OutputLocation:   normalizeLocation(q.OutputLocation),
		Jobs:             make([]jobRecord, 0, len(q.Jobs)),
	}
	for _, job := range q.Jobs {
		doc.Jobs = append(doc.Jobs, recordFromJob(job))
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Deserialize decodes a manifest. Unknown output locations fall back to
// DEFAULT; the legacy use_custom_output_path flag maps to CUSTOM.
func Deserialize(data []byte) (model.Queue, float64, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.Queue{}, 0, &ManifestError{Err: err}
	}
	if doc.GlobalOutputPath == "" {
		doc.GlobalOutputPath = model.DefaultOutputDir
	}

	loc := normalizeLocation(doc.OutputLocation)
	if doc.OutputLocation == "" && doc.UseCustomOutputPath != nil && *doc.UseCustomOutputPath {
		loc = model.OutputCustom
	}

	q := model.Queue{
		GlobalOutputPath: doc.GlobalOutputPath,
		OutputLocation:   loc,
		Jobs:             make([]model.RenderJob, 0, len(doc.Jobs)),
	}
	for _, rec := range doc.Jobs {
		q.Jobs = append(q.Jobs, rec.toJob())
	}
	return q, doc.Timestamp, nil
}

func WriteFile(path string, q model.Queue, now time.Time) error {
	data, err := Serialize(q, now)
	if err != nil {
		return err
	}
	return runstore.WriteBytes(path, data)
}

func ReadFile(path string) (model.Queue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Queue{}, &ManifestError{Path: path, Err: err}
	}
	q, _, err := Deserialize(data)
	if err != nil {
		var me *ManifestError
		if errors.As(err, &me) {
			me.Path = path
		}
		return model.Queue{}, err
	}
	return q, nil
}

func normalizeLocation(loc model.OutputLocation) model.OutputLocation {
	if loc == model.OutputCustom {
		return model.OutputCustom
	}
	return model.OutputDefault
}
