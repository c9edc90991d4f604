package outputpath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rendercue/internal/model"
)

var ErrCreateDir = errors.New("cannot create output directory")

// PathResolver turns document-relative ("//"-prefixed) paths into absolute
// ones. Other paths pass through unchanged.
type PathResolver interface {
	AbsPath(path string) string
}

type Settings struct {
	GlobalOutputPath string
	Location         model.OutputLocation
	DocumentName     string
}

// Target is where one job writes its frames.
type Target struct {
	Dir   string
	Stem  string
	Ext   string
	Video bool
}

// Pattern is the human-readable file pattern, e.g. "Shot_A_####.png".
func (t Target) Pattern() string {
	if t.Video {
		return t.Stem + t.Ext
	}
	return t.Stem + "_####" + t.Ext
}

// RenderPattern is the path handed to renderers that number frames
// themselves: "#" marks the frame digits and the extension is left off.
func (t Target) RenderPattern() string {
	if t.Video {
		return filepath.Join(t.Dir, t.Stem)
	}
	return filepath.Join(t.Dir, t.Stem+"_####")
}

func (t Target) FramePath(frame int) string {
	if t.Video {
		return filepath.Join(t.Dir, t.Stem+t.Ext)
	}
	return filepath.Join(t.Dir, fmt.Sprintf("%s_%04d%s", t.Stem, frame, t.Ext))
}

// CountScenes is the duplicate pre-pass: how many jobs reference each scene.
func CountScenes(jobs []model.RenderJob) map[string]int {
	counts := make(map[string]int, len(jobs))
	for _, job := range jobs {
		counts[job.Scene]++
	}
	return counts
}

// Resolver holds the scene counts of one run so every job of the run is
// named against the same pre-pass.
type Resolver struct {
	settings Settings
	paths    PathResolver
	counts   map[string]int
}

func NewResolver(settings Settings, paths PathResolver, jobs []model.RenderJob) *Resolver {
	return &Resolver{settings: settings, paths: paths, counts: CountScenes(jobs)}
}

// Resolve computes the output directory and file naming for the job at
// jobIndex (zero-based) rendering in the given effective format.
func (r *Resolver) Resolve(job model.RenderJob, jobIndex int, format string) Target {
	t := Target{
		Stem: FileStem(job.Scene),
	}
	t.Ext, t.Video = extension(format)

	if job.Overrides.OutputPath.Enabled && strings.TrimSpace(job.Overrides.OutputPath.Value) != "" {
		t.Dir = r.abs(job.Overrides.OutputPath.Value)
		return t
	}

	folder := job.Scene
	if r.counts[job.Scene] > 1 {
		folder = fmt.Sprintf("%s_Job%d", job.Scene, jobIndex+1)
	}
	t.Dir = filepath.Join(r.abs(r.BaseDir()), folder)
	return t
}

// BaseDir is the run-wide output root before absolutizing.
func (r *Resolver) BaseDir() string {
	if r.settings.Location == model.OutputCustom && strings.TrimSpace(r.settings.GlobalOutputPath) != "" {
		return r.settings.GlobalOutputPath
	}
	name := strings.TrimSpace(r.settings.DocumentName)
	if name == "" {
		name = "untitled"
	}
	return "//" + name + "_RenderCue"
}

// OutputLocation is the absolute run-wide output root, used for summaries.
func (r *Resolver) OutputLocation() string {
	return r.abs(r.BaseDir())
}

func (r *Resolver) abs(path string) string {
	if r.paths == nil {
		return path
	}
	return r.paths.AbsPath(path)
}

// Resolve is the one-shot form of Resolver.Resolve.
func Resolve(job model.RenderJob, settings Settings, paths PathResolver, jobIndex int, allJobs []model.RenderJob, format string) Target {
	return NewResolver(settings, paths, allJobs).Resolve(job, jobIndex, format)
}

// Prepare creates the target directory.
func Prepare(t Target) error {
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		return fmt.Errorf("%w %s: %v", ErrCreateDir, t.Dir, err)
	}
	return nil
}

func FileStem(scene string) string {
	return strings.ReplaceAll(scene, " ", "_")
}

func extension(format string) (string, bool) {
	f := strings.ToUpper(strings.TrimSpace(format))
	if f == "" {
		f = model.FormatPNG
	}
	ext, ok := model.ImageFormats[f]
	if !ok {
		ext = ".png"
	}
	return ext, model.IsVideoFormat(f)
}
