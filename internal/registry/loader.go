// Package registry lists model artifacts present in the local cache so the
// daemon can report what is available without touching the network.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"llamad/internal/common/fsutil"
	"llamad/pkg/types"
)

// artifactExts are the file extensions recognized as model artifacts.
var artifactExts = []string{".gguf", ".bin", ".ggml"}

// LoadDir scans a directory for model artifacts and builds a listing from
// filenames. ID is the full filename (including extension); Path is the
// absolute file path. A missing directory yields an empty listing: the cache
// is created lazily by the first download.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !isArtifact(name) {
			continue
		}
		models = append(models, types.Model{
			ID:    name,
			Name:  name,
			Path:  filepath.Join(abs, name),
			Quant: quantFromName(name),
		})
	}
	return models, nil
}

func isArtifact(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range artifactExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// quantFromName extracts a quantization tag like "q4_0" or "Q4_K_M" from an
// artifact filename. Returns "" when no tag is recognizable.
func quantFromName(name string) string {
	lower := strings.ToLower(name)
	lower = strings.TrimSuffix(lower, filepath.Ext(lower))
	for _, sep := range []string{".", "-"} {
		for _, part := range strings.Split(lower, sep) {
			if len(part) >= 2 && part[0] == 'q' && part[1] >= '0' && part[1] <= '9' {
				return part
			}
		}
	}
	return ""
}
