package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Direction int

const (
	Up Direction = iota
	Down
)

func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	default:
		return 0, fmt.Errorf("invalid direction %q (expected up or down)", raw)
	}
}

type Preset string

const (
	PresetDraft      Preset = "DRAFT"
	PresetProduction Preset = "PRODUCTION"
)

func ParsePreset(raw string) (Preset, error) {
	switch Preset(strings.ToUpper(strings.TrimSpace(raw))) {
	case PresetDraft:
		return PresetDraft, nil
	case PresetProduction:
		return PresetProduction, nil
	default:
		return "", fmt.Errorf("invalid preset %q (expected draft or production)", raw)
	}
}

// NewJob builds a job for scene with every override off.
func NewJob(scene string) RenderJob {
	return RenderJob{
		ID:        uuid.NewString(),
		Scene:     scene,
		Overrides: DefaultOverrides(),
	}
}

// AddJob appends a job for scene and returns its index.
func (q *Queue) AddJob(scene string) int {
	q.Jobs = append(q.Jobs, NewJob(scene))
	return len(q.Jobs) - 1
}

func (q *Queue) RemoveJob(index int) error {
	if err := q.checkIndex(index); err != nil {
		return err
	}
	q.Jobs = append(q.Jobs[:index], q.Jobs[index+1:]...)
	return nil
}

// MoveJob swaps the job with its neighbour. Moving past either end is a
// no-op and reports false.
func (q *Queue) MoveJob(index int, dir Direction) (bool, error) {
	if err := q.checkIndex(index); err != nil {
		return false, err
	}
	target := index - 1
	if dir == Down {
		target = index + 1
	}
	if target < 0 || target >= len(q.Jobs) {
		return false, nil
	}
	q.Jobs[index], q.Jobs[target] = q.Jobs[target], q.Jobs[index]
	return true, nil
}

// PopulateAll queues every catalog scene that has a camera and is not
// already in the queue. It returns the number of jobs added.
func (q *Queue) PopulateAll(catalog SceneCatalog) int {
	queued := make(map[string]struct{}, len(q.Jobs))
	for _, job := range q.Jobs {
		queued[job.Scene] = struct{}{}
	}
	added := 0
	for _, sc := range catalog.Scenes() {
		if sc.Camera == "" {
			continue
		}
		if _, ok := queued[sc.Name]; ok {
			continue
		}
		q.AddJob(sc.Name)
		queued[sc.Name] = struct{}{}
		added++
	}
	return added
}

func (q *Queue) ApplyPreset(p Preset) error {
	for i := range q.Jobs {
		o := &q.Jobs[i].Overrides
		switch p {
		case PresetDraft:
			o.ResolutionScale = Override[int]{Enabled: true, Value: 50}
			o.Samples = Override[int]{Enabled: true, Value: 32}
			o.FrameStep = Override[int]{Enabled: true, Value: 2}
			o.UseDenoising = Override[bool]{Enabled: true, Value: false}
		case PresetProduction:
			o.ResolutionScale = Override[int]{Enabled: true, Value: 100}
			o.Samples = Override[int]{Enabled: true, Value: 512}
			o.FrameStep = Override[int]{Enabled: true, Value: 1}
			o.UseDenoising = Override[bool]{Enabled: true, Value: true}
			o.Device = Override[string]{Enabled: true, Value: DeviceGPU}
		default:
			return fmt.Errorf("unknown preset %q", p)
		}
	}
	return nil
}

func (q *Queue) Find(id string) (int, bool) {
	for i, job := range q.Jobs {
		if job.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (q *Queue) checkIndex(index int) error {
	if index < 0 || index >= len(q.Jobs) {
		return fmt.Errorf("%w: %d (queue has %d jobs)", ErrIndexOutOfRange, index+1, len(q.Jobs))
	}
	return nil
}

// Clone returns a deep copy safe to hand to another goroutine or to encode
// while the original keeps changing.
func (q Queue) Clone() Queue {
	out := q
	out.Jobs = append([]RenderJob(nil), q.Jobs...)
	return out
}

type ValidationReport struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r ValidationReport) OK() bool {
	return len(r.Errors) == 0
}

const maxResolutionPixels = 7680 * 4320

// Validate checks the queue against the document before a render. Errors
// block the render; warnings are informational.
func (q *Queue) Validate(catalog SceneCatalog) ValidationReport {
	report := ValidationReport{Errors: []string{}, Warnings: []string{}}
	if len(q.Jobs) == 0 {
		report.Errors = append(report.Errors, "render queue is empty")
		return report
	}
	if q.OutputLocation == OutputCustom && strings.TrimSpace(q.GlobalOutputPath) == "" {
		report.Errors = append(report.Errors, "custom output location selected but no global output path set")
	}

	for i, job := range q.Jobs {
		label := fmt.Sprintf("job %d (%s)", i+1, job.Scene)
		o := job.Overrides

		sc, ok := catalog.Scene(job.Scene)
		if !ok {
			report.Errors = append(report.Errors, label+": scene not found in document")
			continue
		}

		camera := sc.Camera
		if o.Camera.Enabled {
			camera = o.Camera.Value
			if !sc.HasCamera(camera) {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: camera %q is not linked to the scene", label, camera))
			}
		}
		if camera == "" {
			report.Errors = append(report.Errors, label+": scene has no active camera")
		}

		if o.ViewLayer.Enabled && !sc.HasViewLayer(o.ViewLayer.Value) {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: view layer %q not found", label, o.ViewLayer.Value))
		}

		start, end := sc.FrameStart, sc.FrameEnd
		if o.FrameRange.Enabled {
			start, end = o.FrameRange.Value.Start, o.FrameRange.Value.End
		}
		if end < start {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: frame end %d is before frame start %d", label, end, start))
		}
		if o.FrameStep.Enabled {
			if o.FrameStep.Value < 1 {
				report.Errors = append(report.Errors, label+": frame step must be at least 1")
			} else if o.FrameStep.Value > end-start+1 {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: frame step %d exceeds frame range", label, o.FrameStep.Value))
			}
		}

		if sc.ResolutionX > 0 && sc.ResolutionY > 0 {
			scale := 100
			if o.ResolutionScale.Enabled {
				scale = o.ResolutionScale.Value
			}
			w := sc.ResolutionX * scale / 100
			h := sc.ResolutionY * scale / 100
			if w*h > maxResolutionPixels {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: resolution %dx%d exceeds 8K", label, w, h))
			}
		}

		engine := sc.Engine
		if o.RenderEngine.Enabled {
			engine = o.RenderEngine.Value
		}
		if engine != "" && engine != EngineCycles {
			for _, key := range []OverrideKey{KeyDenoising, KeyDevice, KeyTimeLimit, KeyPersistentData} {
				if o.Enabled(key) {
					report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s override is ignored for engine %s", label, key, engine))
				}
			}
		}
		if o.Samples.Enabled && o.Samples.Value > 4096 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %d samples will render slowly", label, o.Samples.Value))
		}
	}
	return report
}
