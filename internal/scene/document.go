package scene

import (
	"fmt"
	"path/filepath"
	"strings"

	"rendercue/internal/model"
	"rendercue/internal/runstore"
)

// Document is the scene table of the file being rendered, exported as JSON
// by the host application. It answers scene lookups and resolves
// document-relative ("//") paths.
type Document struct {
	Name  string        `json:"name"`
	Path  string        `json:"path"`
	Table []model.Scene `json:"scenes"`

	source string
}

func Load(path string) (*Document, error) {
	var doc Document
	if err := runstore.ReadJSON(path, &doc); err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	doc.source = path
	doc.normalize()
	return &doc, nil
}

func (d *Document) normalize() {
	for i := range d.Table {
		sc := &d.Table[i]
		if sc.FrameStep < 1 {
			sc.FrameStep = 1
		}
		if sc.FrameEnd < sc.FrameStart {
			sc.FrameEnd = sc.FrameStart
		}
		if sc.Camera != "" && !listed(sc.Cameras, sc.Camera) {
			sc.Cameras = append([]string{sc.Camera}, sc.Cameras...)
		}
	}
	if strings.TrimSpace(d.Name) == "" {
		d.Name = d.defaultName()
	}
}

func (d *Document) defaultName() string {
	base := d.Path
	if base == "" {
		base = d.source
	}
	if base == "" {
		return "untitled"
	}
	base = filepath.Base(base)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (d *Document) Scene(name string) (model.Scene, bool) {
	for _, sc := range d.Table {
		if sc.Name == name {
			return sc, true
		}
	}
	return model.Scene{}, false
}

func (d *Document) Scenes() []model.Scene {
	return d.Table
}

// Dir is the directory "//" paths are relative to: the document file's
// directory, or the scene table's when the document path is unknown.
func (d *Document) Dir() string {
	if d.Path != "" {
		return filepath.Dir(d.Path)
	}
	if d.source != "" {
		return filepath.Dir(d.source)
	}
	return "."
}

func (d *Document) AbsPath(path string) string {
	if !strings.HasPrefix(path, "//") {
		return path
	}
	rel := strings.TrimPrefix(path, "//")
	abs, err := filepath.Abs(filepath.Join(d.Dir(), filepath.FromSlash(rel)))
	if err != nil {
		return filepath.Join(d.Dir(), rel)
	}
	return abs
}

// DocumentPath is what renderers receive as the {document} placeholder.
func (d *Document) DocumentPath() string {
	if d.Path != "" {
		return d.Path
	}
	return d.source
}

func listed(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
