package render

import (
	"context"
	"strconv"
)

// Settings are the effective per-frame render parameters after the job's
// overrides have been applied over the scene's own values.
type Settings struct {
	Engine            string
	Camera            string
	FrameStep         int
	FilmTransparent   bool
	UseCompositor     bool
	ViewLayer         string
	ResolutionScale   int
	Format            string
	Samples           int
	UseDenoising      bool
	Device            string
	TimeLimit         float64
	UsePersistentData bool
}

// Frame is one render call. Number is the frame, or the first frame when
// Animation is set; an animation covers Number..End in a single call and
// writes one container file.
type Frame struct {
	Document      string
	Scene         string
	Number        int
	End           int
	Animation     bool
	Output        string
	OutputPattern string
	Settings      Settings
}

// Frames is the frame argument Blender's -f accepts: "12" or "1..250".
func (f Frame) Frames() string {
	if !f.Animation || f.End <= f.Number {
		return strconv.Itoa(f.Number)
	}
	return strconv.Itoa(f.Number) + ".." + strconv.Itoa(f.End)
}

type Result struct {
	// Preview is an image of the finished frame, or "" when none exists.
	Preview string
}

// Renderer renders one frame of one scene to a path.
type Renderer interface {
	RenderFrame(ctx context.Context, frame Frame) (Result, error)
}

// Func adapts a plain function to Renderer.
type Func func(ctx context.Context, frame Frame) (Result, error)

func (f Func) RenderFrame(ctx context.Context, frame Frame) (Result, error) {
	return f(ctx, frame)
}
