package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/cuongbtq/clip-repurposer/internal/workspace"
)

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".json": "application/json",
}

// ContentType maps a file extension to the served MIME type
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Asset is a resolved file inside a job root
type Asset struct {
	Path        string
	Name        string
	ContentType string
	Size        int64
	ModTime     time.Time
}

// Gateway resolves client-supplied paths to files inside a job's root
type Gateway struct {
	workspace *workspace.Workspace
}

// NewGateway creates a new Gateway
func NewGateway(ws *workspace.Workspace) *Gateway {
	return &Gateway{workspace: ws}
}

// Resolve maps relPath, relative to the job root, to a file under the job's
// outputs directory. Only outputs are served; anything else in the job root,
// such as the processor log, is forbidden. A path that leaves the outputs
// directory, directly or through a symlink, yields domain.ErrForbiddenPath; a
// missing file or a directory yields domain.ErrArtifactNotFound.
func (g *Gateway) Resolve(jobID, relPath string) (*Asset, error) {
	if !workspace.ValidJobID(jobID) {
		return nil, domain.ErrForbiddenPath
	}

	root := g.workspace.OutputDir(jobID)
	target := filepath.Join(g.workspace.JobRoot(jobID), filepath.FromSlash(strings.TrimPrefix(relPath, "/")))
	if !within(root, target) {
		return nil, domain.ErrForbiddenPath
	}

	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}

	// symlinks anywhere along the path must not lead outside the outputs
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve outputs directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifact: %w", err)
	}
	if !within(realRoot, resolved) {
		return nil, domain.ErrForbiddenPath
	}

	if !info.Mode().IsRegular() {
		return nil, domain.ErrArtifactNotFound
	}

	return &Asset{
		Path:        target,
		Name:        filepath.Base(target),
		ContentType: ContentType(target),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
	}, nil
}

// ArtifactFile is one listed output file
type ArtifactFile struct {
	Name string
	Path string
	Size int64
}

// PlatformArtifacts groups a platform's output files by kind
type PlatformArtifacts struct {
	Platform   domain.Platform
	Videos     []ArtifactFile
	Thumbnails []ArtifactFile
	Metadata   []ArtifactFile
}

// List enumerates the files in each outputs/<platform>/ directory of a job,
// in canonical platform order
func (g *Gateway) List(jobID string) ([]PlatformArtifacts, error) {
	if !workspace.ValidJobID(jobID) {
		return nil, domain.ErrForbiddenPath
	}

	outputDir := g.workspace.OutputDir(jobID)
	if _, err := os.Stat(outputDir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to stat output directory: %w", err)
	}

	var out []PlatformArtifacts
	for _, p := range domain.Platforms() {
		entries, err := os.ReadDir(filepath.Join(outputDir, string(p)))
		if err != nil {
			continue
		}

		group := PlatformArtifacts{Platform: p}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			file := ArtifactFile{
				Name: e.Name(),
				Path: workspace.OutputsDirName + "/" + string(p) + "/" + e.Name(),
				Size: info.Size(),
			}
			switch ContentType(e.Name()) {
			case "video/mp4":
				group.Videos = append(group.Videos, file)
			case "image/jpeg", "image/png":
				group.Thumbnails = append(group.Thumbnails, file)
			case "application/json":
				group.Metadata = append(group.Metadata, file)
			}
		}

		for _, files := range [][]ArtifactFile{group.Videos, group.Thumbnails, group.Metadata} {
			sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
		}
		out = append(out, group)
	}

	return out, nil
}

// within reports whether p lies beneath root
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
