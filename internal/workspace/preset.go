package workspace

import (
	"path/filepath"
	"strings"
	"time"

	"rendercue/internal/manifest"
	"rendercue/internal/model"
	"rendercue/internal/runstore"
)

// SavePreset writes q to path in the manifest format so a preset can also
// be handed to a worker as is. A missing .json extension is added.
func SavePreset(path string, q model.Queue, now time.Time) (string, error) {
	path = presetPath(path)
	if err := runstore.Mkdir(filepath.Dir(path)); err != nil {
		return "", err
	}
	if err := manifest.WriteFile(path, q, now); err != nil {
		return "", err
	}
	return path, nil
}

// LoadPreset reads a preset. The caller replaces its queue with the result.
func LoadPreset(path string) (model.Queue, error) {
	q, err := manifest.ReadFile(presetPath(path))
	if err != nil {
		return model.Queue{}, err
	}
	return normalizeQueue(q), nil
}

func presetPath(path string) string {
	path = strings.TrimSpace(path)
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		path += ".json"
	}
	return path
}
