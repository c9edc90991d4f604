package worker

import (
	"rendercue/internal/model"
	"rendercue/internal/render"
)

// FrameSpan is the inclusive frame range a job renders and its step.
type FrameSpan struct {
	Start int
	End   int
	Step  int
}

func (s FrameSpan) Count() int {
	if s.Step < 1 || s.End < s.Start {
		return 0
	}
	return (s.End-s.Start)/s.Step + 1
}

func (s FrameSpan) Frames() []int {
	out := make([]int, 0, s.Count())
	for f := s.Start; s.Step > 0 && f <= s.End; f += s.Step {
		out = append(out, f)
	}
	return out
}

// Span resolves the frames of a job against its scene.
func Span(sc model.Scene, o model.Overrides) FrameSpan {
	span := FrameSpan{Start: sc.FrameStart, End: sc.FrameEnd, Step: sc.FrameStep}
	if o.FrameRange.Enabled {
		span.Start, span.End = o.FrameRange.Value.Start, o.FrameRange.Value.End
	}
	if o.FrameStep.Enabled {
		span.Step = o.FrameStep.Value
	}
	if span.Step < 1 {
		span.Step = 1
	}
	if span.End < span.Start {
		span.End = span.Start
	}
	return span
}

// Effective applies a job's enabled overrides over the scene in a fixed
// order. Engine goes first because the Cycles-only settings depend on it.
func Effective(sc model.Scene, o model.Overrides) render.Settings {
	d := model.DefaultOverrides()
	s := render.Settings{
		Engine:            firstNonEmpty(sc.Engine, d.RenderEngine.Value),
		Camera:            sc.Camera,
		FrameStep:         max(sc.FrameStep, 1),
		UseCompositor:     d.UseCompositor.Value,
		ResolutionScale:   d.ResolutionScale.Value,
		Format:            firstNonEmpty(sc.Format, d.RenderFormat.Value),
		Samples:           d.Samples.Value,
		UseDenoising:      d.UseDenoising.Value,
		Device:            d.Device.Value,
		TimeLimit:         d.TimeLimit.Value,
		UsePersistentData: d.UsePersistentData.Value,
	}
	if len(sc.ViewLayers) > 0 {
		s.ViewLayer = sc.ViewLayers[0]
	}

	if o.RenderEngine.Enabled {
		s.Engine = o.RenderEngine.Value
	}
	if o.Camera.Enabled && (len(sc.Cameras) == 0 || sc.HasCamera(o.Camera.Value)) {
		s.Camera = o.Camera.Value
	}
	if o.FrameStep.Enabled {
		s.FrameStep = max(o.FrameStep.Value, 1)
	}
	if o.FilmTransparent.Enabled {
		s.FilmTransparent = o.FilmTransparent.Value
	}
	if o.UseCompositor.Enabled {
		s.UseCompositor = o.UseCompositor.Value
	}
	if o.ViewLayer.Enabled && o.ViewLayer.Value != "" && (len(sc.ViewLayers) == 0 || sc.HasViewLayer(o.ViewLayer.Value)) {
		s.ViewLayer = o.ViewLayer.Value
	}
	if o.ResolutionScale.Enabled {
		s.ResolutionScale = o.ResolutionScale.Value
	}
	if o.RenderFormat.Enabled {
		s.Format = o.RenderFormat.Value
	}
	if o.Samples.Enabled {
		s.Samples = o.Samples.Value
	}

	if s.Engine != model.EngineCycles {
		return s
	}
	if o.UseDenoising.Enabled {
		s.UseDenoising = o.UseDenoising.Value
	}
	if o.Device.Enabled {
		s.Device = o.Device.Value
	}
	if o.TimeLimit.Enabled {
		s.TimeLimit = o.TimeLimit.Value
	}
	if o.UsePersistentData.Enabled {
		s.UsePersistentData = o.UsePersistentData.Value
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
