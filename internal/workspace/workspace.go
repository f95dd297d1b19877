package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Directory and file names inside the workspace root
const (
	UploadsDirName   = "uploads"
	JobsDirName      = "jobs"
	OutputsDirName   = "outputs"
	ProcessorLogName = "processor.log"
	SummaryFileName  = "summary_report.json"
)

// ErrUploadTooLarge is returned when an upload exceeds the configured limit
var ErrUploadTooLarge = errors.New("upload exceeds maximum size")

// Workspace lays out uploads and per-job directories under one root
type Workspace struct {
	root           string
	maxUploadBytes int64
}

// New creates the workspace root and its uploads and jobs directories
func New(root string, maxUploadBytes int64) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	ws := &Workspace{root: abs, maxUploadBytes: maxUploadBytes}
	for _, dir := range []string{ws.root, ws.UploadsDir(), filepath.Join(ws.root, JobsDirName)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return ws, nil
}

// Root returns the absolute workspace root
func (w *Workspace) Root() string {
	return w.root
}

// UploadsDir returns the directory holding uploaded source videos
func (w *Workspace) UploadsDir() string {
	return filepath.Join(w.root, UploadsDirName)
}

// JobRoot returns the directory that scopes every file of a job
func (w *Workspace) JobRoot(jobID string) string {
	return filepath.Join(w.root, JobsDirName, jobID)
}

// OutputDir returns the directory the processor writes outputs into
func (w *Workspace) OutputDir(jobID string) string {
	return filepath.Join(w.JobRoot(jobID), OutputsDirName)
}

// LogPath returns the processor log file of a job
func (w *Workspace) LogPath(jobID string) string {
	return filepath.Join(w.JobRoot(jobID), ProcessorLogName)
}

// PrepareJob creates the job's output directory
func (w *Workspace) PrepareJob(jobID string) error {
	if !ValidJobID(jobID) {
		return fmt.Errorf("invalid job id %q", jobID)
	}
	path := w.OutputDir(jobID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", path, err)
	}
	return nil
}

// DiscardJob removes everything under the job's root
func (w *Workspace) DiscardJob(jobID string) error {
	if !ValidJobID(jobID) {
		return fmt.Errorf("invalid job id %q", jobID)
	}
	if err := os.RemoveAll(w.JobRoot(jobID)); err != nil {
		return fmt.Errorf("failed to remove job directory: %w", err)
	}
	return nil
}

// SaveUpload streams r into the uploads directory under a fresh name keeping
// the original extension, and returns the stored path
func (w *Workspace) SaveUpload(r io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".mp4"
	}
	path := filepath.Join(w.UploadsDir(), uuid.NewString()+ext)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	cleanup := func(err error) (string, error) {
		out.Close()
		os.Remove(path)
		return "", err
	}

	src := r
	if w.maxUploadBytes > 0 {
		// one extra byte tells "exactly at the limit" from "over it"
		src = io.LimitReader(r, w.maxUploadBytes+1)
	}

	n, err := io.Copy(out, src)
	if err != nil {
		return cleanup(fmt.Errorf("failed to write upload file: %w", err))
	}
	if w.maxUploadBytes > 0 && n > w.maxUploadBytes {
		return cleanup(ErrUploadTooLarge)
	}

	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close upload file: %w", err)
	}

	return path, nil
}

// ValidJobID reports whether id is a UUID and therefore safe to use as a path segment
func ValidJobID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
