package resolver

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
)

// Artifact kinds by file extension
const (
	extVideo     = ".mp4"
	extThumbnail = ".jpg"
	extMetadata  = ".json"
)

// artifact is one produced output file; it is never persisted
type artifact struct {
	path    string
	name    string
	modTime time.Time
}

// newer orders artifacts by modification time, then by name
func (a artifact) newer(b artifact) bool {
	if !a.modTime.Equal(b.modTime) {
		return a.modTime.After(b.modTime)
	}
	return a.name > b.name
}

// latestByExtension returns the newest regular file per lowercase extension
func latestByExtension(dir string) (map[string]artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]artifact)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".jpeg" {
			ext = extThumbnail
		}
		a := artifact{path: filepath.Join(dir, e.Name()), name: e.Name(), modTime: info.ModTime()}
		if cur, ok := latest[ext]; !ok || a.newer(cur) {
			latest[ext] = a
		}
	}
	return latest, nil
}

// platformDirs returns the existing per-platform output directories in canonical order
func platformDirs(outputDir string) map[domain.Platform]string {
	dirs := make(map[domain.Platform]string)
	for _, p := range domain.Platforms() {
		dir := filepath.Join(outputDir, string(p))
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs[p] = dir
		}
	}
	return dirs
}
