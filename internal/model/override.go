package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrIndexOutOfRange = errors.New("job index out of range")
	ErrUnknownOverride = errors.New("unknown override")
	ErrInvalidValue    = errors.New("invalid override value")
)

type OverrideKey int

const (
	KeyFrameRange OverrideKey = iota
	KeyFrameStep
	KeyOutputPath
	KeyResolution
	KeyFormat
	KeyEngine
	KeyViewLayer
	KeyCamera
	KeyTransparent
	KeyCompositor
	KeySamples
	KeyDenoising
	KeyDevice
	KeyTimeLimit
	KeyPersistentData
)

const (
	EngineCycles     = "CYCLES"
	EngineEevee      = "BLENDER_EEVEE"
	EngineEeveeNext  = "BLENDER_EEVEE_NEXT"
	EngineWorkbench  = "BLENDER_WORKBENCH"
	DeviceCPU        = "CPU"
	DeviceGPU        = "GPU"
	FormatPNG        = "PNG"
	FormatFFmpeg     = "FFMPEG"
	FormatAVIJPEG    = "AVI_JPEG"
	FormatAVIRaw     = "AVI_RAW"
	DefaultOutputDir = "//"
)

// ImageFormats maps every supported output format to its file extension.
var ImageFormats = map[string]string{
	"PNG":                 ".png",
	"JPEG":                ".jpg",
	"BMP":                 ".bmp",
	"IRIS":                ".rgb",
	"JPEG2000":            ".jp2",
	"TARGA":               ".tga",
	"TARGA_RAW":           ".tga",
	"CINEON":              ".cin",
	"DPX":                 ".dpx",
	"OPEN_EXR":            ".exr",
	"OPEN_EXR_MULTILAYER": ".exr",
	"HDR":                 ".hdr",
	"TIFF":                ".tif",
	"WEBP":                ".webp",
	FormatAVIJPEG:         ".avi",
	FormatAVIRaw:          ".avi",
	FormatFFmpeg:          ".mp4",
}

// IsVideoFormat reports whether format writes one container file for the
// whole job rather than one image per frame.
func IsVideoFormat(format string) bool {
	switch format {
	case FormatFFmpeg, FormatAVIJPEG, FormatAVIRaw:
		return true
	default:
		return false
	}
}

// DefaultOverrides is every override disabled, with the values a fresh job
// starts from when the user enables one.
func DefaultOverrides() Overrides {
	return Overrides{
		FrameRange:        Override[FrameRange]{Value: FrameRange{Start: 1, End: 250}},
		FrameStep:         Override[int]{Value: 1},
		OutputPath:        Override[string]{Value: DefaultOutputDir},
		ResolutionScale:   Override[int]{Value: 100},
		RenderFormat:      Override[string]{Value: FormatPNG},
		RenderEngine:      Override[string]{Value: EngineCycles},
		Samples:           Override[int]{Value: 128},
		UseCompositor:     Override[bool]{Value: true},
		UseDenoising:      Override[bool]{Value: true},
		Device:            Override[string]{Value: DeviceCPU},
		TimeLimit:         Override[float64]{Value: 0},
		UsePersistentData: Override[bool]{Value: false},
	}
}

// SetFrameRange is the only writer of the frame range pair and keeps
// End >= Start.
func (o *Overrides) SetFrameRange(start, end int) {
	if end < start {
		end = start
	}
	o.FrameRange.Value = FrameRange{Start: start, End: end}
}

type applyScope int

const (
	scopeUniversal applyScope = iota
	scopeCamera
	scopeViewLayer
)

type overrideField struct {
	key    OverrideKey
	name   string
	label  string
	scope  applyScope
	toggle func(o *Overrides) *bool
	copy   func(dst, src *Overrides)
	set    func(o *Overrides, raw string) error
	format func(o *Overrides) string
}

func bindField[T any](key OverrideKey, name, label string, scope applyScope, sel func(*Overrides) *Override[T], parse func(string) (T, error)) overrideField {
	return overrideField{
		key:    key,
		name:   name,
		label:  label,
		scope:  scope,
		toggle: func(o *Overrides) *bool { return &sel(o).Enabled },
		copy: func(dst, src *Overrides) {
			d, s := sel(dst), sel(src)
			d.Enabled = s.Enabled
			if s.Enabled {
				d.Value = s.Value
			}
		},
		set: func(o *Overrides, raw string) error {
			v, err := parse(raw)
			if err != nil {
				return fmt.Errorf("%w for %s: %v", ErrInvalidValue, name, err)
			}
			sel(o).Value = v
			sel(o).Enabled = true
			return nil
		},
		format: func(o *Overrides) string { return fmt.Sprint(sel(o).Value) },
	}
}

var overrideFields = []overrideField{
	{
		key:    KeyFrameRange,
		name:   "frame_range",
		label:  "Frame Range",
		toggle: func(o *Overrides) *bool { return &o.FrameRange.Enabled },
		copy: func(dst, src *Overrides) {
			dst.FrameRange.Enabled = src.FrameRange.Enabled
			if src.FrameRange.Enabled {
				dst.SetFrameRange(src.FrameRange.Value.Start, src.FrameRange.Value.End)
			}
		},
		set: func(o *Overrides, raw string) error {
			start, end, err := parseFrameRange(raw)
			if err != nil {
				return fmt.Errorf("%w for frame_range: %v", ErrInvalidValue, err)
			}
			o.SetFrameRange(start, end)
			o.FrameRange.Enabled = true
			return nil
		},
		format: func(o *Overrides) string {
			return fmt.Sprintf("%d-%d", o.FrameRange.Value.Start, o.FrameRange.Value.End)
		},
	},
	bindField(KeyFrameStep, "frame_step", "Frame Step", scopeUniversal, func(o *Overrides) *Override[int] { return &o.FrameStep }, parseMinInt(1)),
	bindField(KeyOutputPath, "output", "Output Path", scopeUniversal, func(o *Overrides) *Override[string] { return &o.OutputPath }, parseNonEmpty),
	bindField(KeyResolution, "resolution", "Resolution %", scopeUniversal, func(o *Overrides) *Override[int] { return &o.ResolutionScale }, parseIntRange(1, 200)),
	bindField(KeyFormat, "format", "Format", scopeUniversal, func(o *Overrides) *Override[string] { return &o.RenderFormat }, parseFormat),
	bindField(KeyEngine, "engine", "Render Engine", scopeUniversal, func(o *Overrides) *Override[string] { return &o.RenderEngine }, parseUpperIdent),
	bindField(KeyViewLayer, "view_layer", "View Layer", scopeViewLayer, func(o *Overrides) *Override[string] { return &o.ViewLayer }, parseNonEmpty),
	bindField(KeyCamera, "camera", "Camera", scopeCamera, func(o *Overrides) *Override[string] { return &o.Camera }, parseNonEmpty),
	bindField(KeyTransparent, "transparent", "Transparent", scopeUniversal, func(o *Overrides) *Override[bool] { return &o.FilmTransparent }, strconv.ParseBool),
	bindField(KeyCompositor, "compositor", "Compositor", scopeUniversal, func(o *Overrides) *Override[bool] { return &o.UseCompositor }, strconv.ParseBool),
	bindField(KeySamples, "samples", "Samples", scopeUniversal, func(o *Overrides) *Override[int] { return &o.Samples }, parseMinInt(1)),
	bindField(KeyDenoising, "denoising", "Denoising", scopeUniversal, func(o *Overrides) *Override[bool] { return &o.UseDenoising }, strconv.ParseBool),
	bindField(KeyDevice, "device", "Device", scopeUniversal, func(o *Overrides) *Override[string] { return &o.Device }, parseDevice),
	bindField(KeyTimeLimit, "time_limit", "Time Limit (s)", scopeUniversal, func(o *Overrides) *Override[float64] { return &o.TimeLimit }, parseNonNegativeFloat),
	bindField(KeyPersistentData, "persistent_data", "Persistent Data", scopeUniversal, func(o *Overrides) *Override[bool] { return &o.UsePersistentData }, strconv.ParseBool),
}

func fieldFor(key OverrideKey) (overrideField, error) {
	for _, f := range overrideFields {
		if f.key == key {
			return f, nil
		}
	}
	return overrideField{}, fmt.Errorf("%w: %d", ErrUnknownOverride, key)
}

func (k OverrideKey) String() string {
	f, err := fieldFor(k)
	if err != nil {
		return fmt.Sprintf("override(%d)", int(k))
	}
	return f.name
}

func (k OverrideKey) Label() string {
	f, err := fieldFor(k)
	if err != nil {
		return k.String()
	}
	return f.label
}

// ParseOverrideKey accepts the short names used on the command line
// ("samples", "frame_range", ...), case-insensitively.
func ParseOverrideKey(raw string) (OverrideKey, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.ReplaceAll(name, "-", "_")
	for _, f := range overrideFields {
		if f.name == name {
			return f.key, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownOverride, raw)
}

func OverrideKeys() []OverrideKey {
	keys := make([]OverrideKey, 0, len(overrideFields))
	for _, f := range overrideFields {
		keys = append(keys, f.key)
	}
	return keys
}

func (o *Overrides) Enabled(key OverrideKey) bool {
	f, err := fieldFor(key)
	if err != nil {
		return false
	}
	return *f.toggle(o)
}

// ValueString renders the override's value for display, whether or not it
// is enabled.
func (o *Overrides) ValueString(key OverrideKey) string {
	f, err := fieldFor(key)
	if err != nil {
		return ""
	}
	return f.format(o)
}

// Set parses raw for key, stores it and enables the override.
func (o *Overrides) Set(key OverrideKey, raw string) error {
	f, err := fieldFor(key)
	if err != nil {
		return err
	}
	return f.set(o, strings.TrimSpace(raw))
}

func (o *Overrides) Disable(key OverrideKey) error {
	f, err := fieldFor(key)
	if err != nil {
		return err
	}
	*f.toggle(o) = false
	return nil
}

// ActiveOverrides lists the enabled keys in table order.
func (o *Overrides) ActiveOverrides() []OverrideKey {
	out := make([]OverrideKey, 0)
	for _, f := range overrideFields {
		if *f.toggle(o) {
			out = append(out, f.key)
		}
	}
	return out
}

type ApplyResult struct {
	Key     OverrideKey `json:"-"`
	Name    string      `json:"override"`
	Applied int         `json:"applied"`
	Skipped int         `json:"skipped"`
}

// ApplyOverrideToAll copies one override from the source job to every job.
// Camera and view layer overrides are only copied into jobs whose scene
// actually has that camera or layer; the others are counted as skipped.
// Jobs whose scene the catalog does not know are treated as compatible.
func ApplyOverrideToAll(q *Queue, sourceIndex int, key OverrideKey, catalog SceneCatalog) (ApplyResult, error) {
	if sourceIndex < 0 || sourceIndex >= len(q.Jobs) {
		return ApplyResult{}, fmt.Errorf("%w: %d (queue has %d jobs)", ErrIndexOutOfRange, sourceIndex+1, len(q.Jobs))
	}
	f, err := fieldFor(key)
	if err != nil {
		return ApplyResult{}, err
	}

	src := q.Jobs[sourceIndex].Overrides
	enabled := *f.toggle(&src)
	res := ApplyResult{Key: key, Name: f.name}

	// an enabled camera override naming no camera has nothing to copy
	if enabled && f.scope == scopeCamera && src.Camera.Value == "" {
		return res, nil
	}

	for i := range q.Jobs {
		job := &q.Jobs[i]
		if enabled && !scopeAllows(f.scope, job.Scene, &src, catalog) {
			res.Skipped++
			continue
		}
		if i != sourceIndex {
			f.copy(&job.Overrides, &src)
		}
		res.Applied++
	}
	return res, nil
}

func scopeAllows(scope applyScope, sceneName string, src *Overrides, catalog SceneCatalog) bool {
	switch scope {
	case scopeCamera:
		if catalog == nil {
			return true
		}
		sc, ok := catalog.Scene(sceneName)
		return !ok || sc.HasCamera(src.Camera.Value)
	case scopeViewLayer:
		if catalog == nil {
			return true
		}
		sc, ok := catalog.Scene(sceneName)
		return !ok || sc.HasViewLayer(src.ViewLayer.Value)
	default:
		return true
	}
}

func RemoveOverride(q *Queue, index int, key OverrideKey) error {
	if index < 0 || index >= len(q.Jobs) {
		return fmt.Errorf("%w: %d (queue has %d jobs)", ErrIndexOutOfRange, index+1, len(q.Jobs))
	}
	return q.Jobs[index].Overrides.Disable(key)
}

func parseFrameRange(raw string) (int, int, error) {
	sep := "-"
	if strings.Contains(raw, ":") {
		sep = ":"
	} else if strings.Contains(raw, "..") {
		sep = ".."
	}
	parts := strings.SplitN(raw, sep, 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected START-END, got %q", raw)
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseMinInt(minV int) func(string) (int, error) {
	return func(raw string) (int, error) {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, err
		}
		if v < minV {
			return 0, fmt.Errorf("must be >= %d", minV)
		}
		return v, nil
	}
}

func parseIntRange(minV, maxV int) func(string) (int, error) {
	return func(raw string) (int, error) {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, err
		}
		if v < minV || v > maxV {
			return 0, fmt.Errorf("must be between %d and %d", minV, maxV)
		}
		return v, nil
	}
}

func parseNonNegativeFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("must be >= 0")
	}
	return v, nil
}

func parseNonEmpty(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("value is required")
	}
	return raw, nil
}

func parseUpperIdent(raw string) (string, error) {
	v := strings.ToUpper(raw)
	if v == "" {
		return "", fmt.Errorf("value is required")
	}
	return v, nil
}

func parseFormat(raw string) (string, error) {
	v := strings.ToUpper(raw)
	if _, ok := ImageFormats[v]; !ok {
		return "", fmt.Errorf("unsupported format %q", raw)
	}
	return v, nil
}

func parseDevice(raw string) (string, error) {
	v := strings.ToUpper(raw)
	if v != DeviceCPU && v != DeviceGPU {
		return "", fmt.Errorf("expected CPU or GPU")
	}
	return v, nil
}
