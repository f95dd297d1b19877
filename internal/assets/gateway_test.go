package assets

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/cuongbtq/clip-repurposer/internal/workspace"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Gateway, *workspace.Workspace, string) {
	t.Helper()
	ws, err := workspace.New(t.TempDir(), 0)
	require.NoError(t, err)

	jobID := uuid.NewString()
	require.NoError(t, ws.PrepareJob(jobID))
	return NewGateway(ws), ws, jobID
}

func write(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a.mp4":     "video/mp4",
		"a.MP4":     "video/mp4",
		"thumb.jpg": "image/jpeg",
		"x.jpeg":    "image/jpeg",
		"x.png":     "image/png",
		"meta.json": "application/json",
		"run.log":   "application/octet-stream",
		"noext":     "application/octet-stream",
	}
	for name, want := range tests {
		assert.Equal(t, want, ContentType(name), name)
	}
}

func TestResolve(t *testing.T) {
	gw, ws, jobID := setup(t)
	write(t, filepath.Join(ws.OutputDir(jobID), "youtube_ads", "ad.mp4"), "video-bytes")
	write(t, filepath.Join(ws.Root(), "secret.txt"), "do not serve")
	write(t, ws.LogPath(jobID), "Traceback: /srv/clip/jobs/"+jobID+"/outputs")

	tests := []struct {
		name    string
		jobID   string
		path    string
		wantErr error
	}{
		{name: "existing file", jobID: jobID, path: "outputs/youtube_ads/ad.mp4"},
		{name: "leading slash", jobID: jobID, path: "/outputs/youtube_ads/ad.mp4"},
		{name: "missing file", jobID: jobID, path: "outputs/youtube_ads/missing.mp4", wantErr: domain.ErrArtifactNotFound},
		{name: "directory", jobID: jobID, path: "outputs/youtube_ads", wantErr: domain.ErrArtifactNotFound},
		{name: "traversal", jobID: jobID, path: "../../etc/passwd", wantErr: domain.ErrForbiddenPath},
		{name: "traversal to sibling", jobID: jobID, path: "../../secret.txt", wantErr: domain.ErrForbiddenPath},
		{name: "inner traversal", jobID: jobID, path: "outputs/../../" + jobID + "/outputs/youtube_ads/ad.mp4"},
		{name: "job root itself", jobID: jobID, path: "", wantErr: domain.ErrForbiddenPath},
		{name: "outputs directory", jobID: jobID, path: "outputs", wantErr: domain.ErrArtifactNotFound},
		{name: "processor log", jobID: jobID, path: workspace.ProcessorLogName, wantErr: domain.ErrForbiddenPath},
		{name: "processor log via outputs", jobID: jobID, path: "outputs/../" + workspace.ProcessorLogName, wantErr: domain.ErrForbiddenPath},
		{name: "bad job id", jobID: "..", path: "secret.txt", wantErr: domain.ErrForbiddenPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, err := gw.Resolve(tt.jobID, tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "video/mp4", asset.ContentType)
			assert.Equal(t, int64(len("video-bytes")), asset.Size)
			assert.Equal(t, "ad.mp4", asset.Name)
		})
	}
}

func TestResolve_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	gw, ws, jobID := setup(t)

	outside := filepath.Join(t.TempDir(), "outside.mp4")
	write(t, outside, "x")
	require.NoError(t, os.Symlink(outside, filepath.Join(ws.OutputDir(jobID), "link.mp4")))

	_, err := gw.Resolve(jobID, "outputs/link.mp4")
	assert.ErrorIs(t, err, domain.ErrForbiddenPath)

	inside := filepath.Join(ws.OutputDir(jobID), "real.mp4")
	write(t, inside, "ok")
	require.NoError(t, os.Symlink(inside, filepath.Join(ws.OutputDir(jobID), "alias.mp4")))

	asset, err := gw.Resolve(jobID, "outputs/alias.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(2), asset.Size)

	require.NoError(t, os.Symlink(filepath.Dir(outside), filepath.Join(ws.OutputDir(jobID), "dirlink")))
	_, err = gw.Resolve(jobID, "outputs/dirlink/outside.mp4")
	assert.ErrorIs(t, err, domain.ErrForbiddenPath)
}

func TestList(t *testing.T) {
	gw, ws, jobID := setup(t)
	out := ws.OutputDir(jobID)
	write(t, filepath.Join(out, "youtube_shorts", "b.mp4"), "bb")
	write(t, filepath.Join(out, "youtube_shorts", "a.mp4"), "a")
	write(t, filepath.Join(out, "youtube_shorts", "a.jpg"), "img")
	write(t, filepath.Join(out, "youtube_shorts", "a.json"), "{}")
	write(t, filepath.Join(out, "display_ads", "notes.txt"), "ignored")

	groups, err := gw.List(jobID)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	shorts := groups[0]
	assert.Equal(t, domain.PlatformYouTubeShorts, shorts.Platform)
	require.Len(t, shorts.Videos, 2)
	assert.Equal(t, "a.mp4", shorts.Videos[0].Name)
	assert.Equal(t, "outputs/youtube_shorts/b.mp4", shorts.Videos[1].Path)
	assert.Equal(t, int64(2), shorts.Videos[1].Size)
	assert.Len(t, shorts.Thumbnails, 1)
	assert.Len(t, shorts.Metadata, 1)

	display := groups[1]
	assert.Equal(t, domain.PlatformDisplayAds, display.Platform)
	assert.Empty(t, display.Videos)

	_, err = gw.List(uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}
