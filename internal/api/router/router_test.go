package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/api/dto"
	"github.com/cuongbtq/clip-repurposer/internal/api/handler"
	"github.com/cuongbtq/clip-repurposer/internal/assets"
	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/cuongbtq/clip-repurposer/internal/metrics"
	"github.com/cuongbtq/clip-repurposer/internal/processor"
	"github.com/cuongbtq/clip-repurposer/internal/resolver"
	"github.com/cuongbtq/clip-repurposer/internal/storage"
	"github.com/cuongbtq/clip-repurposer/internal/workspace"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	metrics.MustRegister()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingDispatcher remembers dispatched job ids and can be told to fail
type recordingDispatcher struct {
	mu   sync.Mutex
	ids  []string
	fail error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, jobID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.ids = append(d.ids, jobID)
	return nil
}

type testServer struct {
	engine *gin.Engine
	repo   *storage.Memory
	ws     *workspace.Workspace
}

func newTestServer(t *testing.T, dispatcher processor.Dispatcher) *testServer {
	return newTestServerWithStore(t, dispatcher, nil)
}

// newTestServerWithStore lets wrap decorate the memory store the handlers see
func newTestServerWithStore(t *testing.T, dispatcher processor.Dispatcher, wrap func(storage.Repository) storage.Repository) *testServer {
	t.Helper()

	ws, err := workspace.New(t.TempDir(), 1<<20)
	require.NoError(t, err)

	repo := storage.NewMemory()
	logger := discardLogger()

	var store storage.Repository = repo
	if wrap != nil {
		store = wrap(repo)
	}

	deps := &handler.Dependencies{
		Logger:    logger,
		Store:     store,
		Workspace: ws,
		Launcher:  processor.NewLauncher(store, dispatcher, logger),
		Resolver:  resolver.New(resolver.Config{Store: store, Workspace: ws, Logger: logger}),
		Gateway:   assets.NewGateway(ws),
	}

	return &testServer{
		engine: SetupRouter(deps, Options{ServiceName: "clip-api-service"}),
		repo:   repo,
		ws:     ws,
	}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func (s *testServer) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req)
}

// processingJob creates a job directly in the store and marks it PROCESSING
func (s *testServer) processingJob(t *testing.T, platforms ...domain.Platform) *domain.Job {
	t.Helper()
	ctx := context.Background()

	job, err := s.repo.CreateJob(ctx, domain.NewJob{
		OriginalName: "keynote.mp4",
		InputPath:    filepath.Join(s.ws.UploadsDir(), "keynote.mp4"),
		Platforms:    platforms,
	})
	require.NoError(t, err)
	require.NoError(t, s.ws.PrepareJob(job.ID))

	job, err = s.repo.MarkProcessing(ctx, job.ID)
	require.NoError(t, err)
	return job
}

func uploadRequest(t *testing.T, filename string, content []byte, platforms ...string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("video", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for _, p := range platforms {
		require.NoError(t, mw.WriteField("platforms", p))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCreateJob(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	srv := newTestServer(t, dispatcher)

	w := srv.do(t, uploadRequest(t, "Keynote.MOV", []byte("fake video"), "youtube_shorts, display-ads", "YOUTUBE_SHORTS"))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	resp := decode[dto.CreateJobResponse](t, w)
	assert.Equal(t, "PROCESSING", resp.Status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, []string{resp.JobID}, dispatcher.ids)

	job, err := srv.repo.GetJob(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, job.Status)
	assert.Equal(t, domain.ProgressStarted, job.Progress)
	assert.Equal(t, "Keynote.MOV", job.OriginalName)
	assert.Equal(t, []domain.Platform{domain.PlatformYouTubeShorts, domain.PlatformDisplayAds}, job.Platforms)
	assert.Equal(t, srv.ws.OutputDir(job.ID), job.OutputDir)
	assert.DirExists(t, job.OutputDir)

	assert.Equal(t, ".mov", filepath.Ext(job.InputPath))
	data, err := os.ReadFile(job.InputPath)
	require.NoError(t, err)
	assert.Equal(t, "fake video", string(data))
}

// rejectingStore fails every CreateJob
type rejectingStore struct {
	storage.Repository
	err error
}

func (s rejectingStore) CreateJob(context.Context, domain.NewJob) (*domain.Job, error) {
	return nil, s.err
}

func TestCreateJob_StoreFailureLeavesNoFiles(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "storage down", err: fmt.Errorf("failed to create job: %w: %w", domain.ErrStorageUnavailable, errors.New("dial tcp")), wantCode: http.StatusServiceUnavailable},
		{name: "duplicate id", err: domain.ErrJobExists, wantCode: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &recordingDispatcher{}
			srv := newTestServerWithStore(t, dispatcher, func(r storage.Repository) storage.Repository {
				return rejectingStore{Repository: r, err: tt.err}
			})

			w := srv.do(t, uploadRequest(t, "clip.mp4", []byte("v"), "youtube_shorts"))
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Empty(t, dispatcher.ids)

			uploads, err := os.ReadDir(srv.ws.UploadsDir())
			require.NoError(t, err)
			assert.Empty(t, uploads)

			jobs, err := os.ReadDir(filepath.Join(srv.ws.Root(), workspace.JobsDirName))
			require.NoError(t, err)
			assert.Empty(t, jobs)
		})
	}
}

func TestCreateJob_PlatformsAsJSONArray(t *testing.T) {
	srv := newTestServer(t, &recordingDispatcher{})

	w := srv.do(t, uploadRequest(t, "clip.mp4", []byte("v"), `["performance_max","youtube_ads"]`))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	resp := decode[dto.CreateJobResponse](t, w)
	job, err := srv.repo.GetJob(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Platform{domain.PlatformYouTubeAds, domain.PlatformPerformanceMax}, job.Platforms)
}

func TestCreateJob_Validation(t *testing.T) {
	tests := []struct {
		name      string
		req       func(t *testing.T) *http.Request
		wantCode  int
		errString string
	}{
		{
			name:      "missing video",
			req:       func(t *testing.T) *http.Request { return uploadRequest(t, "", nil, "youtube_shorts") },
			wantCode:  http.StatusBadRequest,
			errString: "video file is required",
		},
		{
			name:      "missing platforms",
			req:       func(t *testing.T) *http.Request { return uploadRequest(t, "clip.mp4", []byte("v")) },
			wantCode:  http.StatusBadRequest,
			errString: domain.ErrNoPlatforms.Error(),
		},
		{
			name:      "blank platforms",
			req:       func(t *testing.T) *http.Request { return uploadRequest(t, "clip.mp4", []byte("v"), " , ") },
			wantCode:  http.StatusBadRequest,
			errString: domain.ErrNoPlatforms.Error(),
		},
		{
			name:      "unknown platform",
			req:       func(t *testing.T) *http.Request { return uploadRequest(t, "clip.mp4", []byte("v"), "tiktok") },
			wantCode:  http.StatusBadRequest,
			errString: domain.ErrUnknownPlatform.Error(),
		},
		{
			name:      "malformed JSON platforms",
			req:       func(t *testing.T) *http.Request { return uploadRequest(t, "clip.mp4", []byte("v"), `["youtube_ads"`) },
			wantCode:  http.StatusBadRequest,
			errString: "platforms is not a JSON string array",
		},
		{
			name: "upload too large",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "clip.mp4", bytes.Repeat([]byte("x"), 1<<20+1), "youtube_ads")
			},
			wantCode:  http.StatusRequestEntityTooLarge,
			errString: workspace.ErrUploadTooLarge.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &recordingDispatcher{}
			srv := newTestServer(t, dispatcher)

			w := srv.do(t, tt.req(t))
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.errString)
			assert.Empty(t, dispatcher.ids)

			page, err := srv.repo.ListJobs(context.Background(), domain.JobFilter{})
			require.NoError(t, err)
			assert.Empty(t, page.Jobs)

			uploads, err := os.ReadDir(srv.ws.UploadsDir())
			require.NoError(t, err)
			assert.Empty(t, uploads)
		})
	}
}

func TestCreateJob_LaunchFailure(t *testing.T) {
	srv := newTestServer(t, &recordingDispatcher{fail: errors.New("exec: \"repurpose\": executable file not found in $PATH")})

	w := srv.do(t, uploadRequest(t, "clip.mp4", []byte("v"), "youtube_shorts"))
	require.Equal(t, http.StatusBadGateway, w.Code)

	resp := decode[dto.CreateJobResponse](t, w)
	assert.Equal(t, "FAILED", resp.Status)
	assert.Contains(t, resp.Error, "failed to launch processor")

	job, err := srv.repo.GetJob(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "executable file not found")
}

func TestGetJob(t *testing.T) {
	srv := newTestServer(t, &recordingDispatcher{})
	job := srv.processingJob(t, domain.PlatformYouTubeShorts)

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{name: "existing job", path: "/api/v1/jobs/" + job.ID, wantCode: http.StatusOK},
		{name: "invalid id", path: "/api/v1/jobs/not-a-uuid", wantCode: http.StatusBadRequest},
		{name: "unknown job", path: "/api/v1/jobs/00000000-0000-4000-8000-000000000000", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.get(t, tt.path)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}

	got := decode[dto.JobDTO](t, srv.get(t, "/api/v1/jobs/"+job.ID))
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "PROCESSING", got.Status)
	assert.Equal(t, 10, got.Progress)
	assert.Equal(t, []string{"youtube_shorts"}, got.Platforms)
	assert.NotNil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
}

func TestListJobs_Pagination(t *testing.T) {
	srv := newTestServer(t, &recordingDispatcher{})

	created := map[string]bool{}
	for i := 0; i < 3; i++ {
		job := srv.processingJob(t, domain.PlatformDisplayAds)
		created[job.ID] = true
	}

	first := srv.get(t, "/api/v1/jobs?page_size=2")
	require.Equal(t, http.StatusOK, first.Code)
	page1 := decode[dto.ListJobsResponse](t, first)
	require.Len(t, page1.Jobs, 2)
	require.NotEmpty(t, page1.NextCursor)

	second := srv.get(t, "/api/v1/jobs?page_size=2&cursor="+page1.NextCursor)
	require.Equal(t, http.StatusOK, second.Code)
	page2 := decode[dto.ListJobsResponse](t, second)
	require.Len(t, page2.Jobs, 1)
	assert.Empty(t, page2.NextCursor)

	seen := map[string]bool{}
	for _, j := range append(page1.Jobs, page2.Jobs...) {
		seen[j.ID] = true
	}
	assert.Equal(t, created, seen)

	filtered := decode[dto.ListJobsResponse](t, srv.get(t, "/api/v1/jobs?status=completed"))
	assert.Empty(t, filtered.Jobs)

	assert.Equal(t, http.StatusBadRequest, srv.get(t, "/api/v1/jobs?status=RUNNING").Code)
	assert.Equal(t, http.StatusBadRequest, srv.get(t, "/api/v1/jobs?cursor=%%%").Code)
	assert.Equal(t, http.StatusBadRequest, srv.get(t, "/api/v1/jobs?page_size=abc").Code)
}

func TestReportProgress(t *testing.T) {
	srv := newTestServer(t, &recordingDispatcher{})
	job := srv.processingJob(t, domain.PlatformYouTubeShorts, domain.PlatformDisplayAds)
	path := "/api/v1/jobs/" + job.ID + "/progress"

	progress := func(p int) map[string]any { return map[string]any{"progress": p} }

	w := srv.postJSON(t, path, progress(40))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 40, decode[dto.ProgressResponse](t, w).Progress)

	// never lowered
	w = srv.postJSON(t, path, progress(25))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 40, decode[dto.ProgressResponse](t, w).Progress)

	// 100 is reserved for completion
	w = srv.postJSON(t, path, progress(100))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.ProgressResponse](t, w)
	assert.Equal(t, 99, resp.Progress)
	assert.Equal(t, "PROCESSING", resp.Status)

	assert.Equal(t, http.StatusBadRequest, srv.postJSON(t, path, progress(101)).Code)
	assert.Equal(t, http.StatusBadRequest, srv.postJSON(t, path, progress(-1)).Code)
	assert.Equal(t, http.StatusBadRequest, srv.postJSON(t, path, map[string]any{
		"contents": []map[string]any{{"platform": "tiktok", "video_path": "x.mp4"}},
	}).Code)
	assert.Equal(t, http.StatusBadRequest, srv.postJSON(t, path, map[string]any{
		"contents": []map[string]any{{"platform": "youtube_shorts"}},
	}).Code)

	w = srv.postJSON(t, path, map[string]any{
		"contents": []map[string]any{
			{
				"platform":        "youtube_shorts",
				"video_path":      filepath.Join(srv.ws.OutputDir(job.ID), "youtube_shorts", "short_1.mp4"),
				"thumbnail_path":  "outputs/youtube_shorts/short_1.jpg",
				"duration":        42.5,
				"start_timestamp": 12,
				"creatives": map[string]any{
					"headline":       "Ship faster",
					"description":    "A 40 second cut of the keynote",
					"call_to_action": "Watch now",
				},
				"engagement_prediction": map[string]any{"predicted_engagement": 81},
			},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[dto.ProgressResponse](t, w).Recorded)

	job, err := srv.repo.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, job.Status)

	results := decode[dto.ResultsResponse](t, srv.get(t, "/api/v1/jobs/"+job.ID+"/results"))
	assert.Equal(t, "database", results.Source)
	require.Len(t, results.Results, 1)
	r := results.Results[0]
	assert.Equal(t, "youtube_shorts", r.Platform)
	assert.Equal(t, "outputs/youtube_shorts/short_1.mp4", r.VideoPath)
	assert.Equal(t, "/api/v1/jobs/"+job.ID+"/files/outputs/youtube_shorts/short_1.mp4", r.VideoURL)
	assert.Equal(t, 42.5, r.Duration)
	assert.Equal(t, "9:16", r.AspectRatio)
	require.NotNil(t, r.Metadata.Creatives)
	assert.Equal(t, "Watch now", r.Metadata.Creatives.CallToAction)
	require.NotNil(t, r.Metadata.Engagement)
	assert.Equal(t, domain.EngagementHigh, r.Metadata.Engagement.EngagementLevel)
}

func TestGetResults_MissingMetadataIsNull(t *testing.T) {
	srv := newTestServer(t, &recordingDispatcher{})
	job := srv.processingJob(t, domain.PlatformDisplayAds)

	require.NoError(t, srv.repo.SaveContents(context.Background(), job.ID, []domain.Content{
		{Platform: domain.PlatformDisplayAds, VideoPath: "outputs/display_ads/banner.mp4", Duration: 6},
	}))

	body := decode[map[string]any](t, srv.get(t, "/api/v1/jobs/"+job.ID+"/results"))
	assert.Equal(t, "database", body["source"])
	results, ok := body["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)

	metadata, ok := results[0].(map[string]any)["metadata"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, metadata, "engagement_prediction")
	assert.Nil(t, metadata["engagement_prediction"])
	require.Contains(t, metadata, "creatives")
	assert.Nil(t, metadata["creatives"])
}

func TestReportProgress_RejectedOutsideProcessing(t *testing.T) {
	srv := newTestServer(t, &recordingDispatcher{})
	ctx := context.Background()

	queued, err := srv.repo.CreateJob(ctx, domain.NewJob{Platforms: []domain.Platform{domain.PlatformYouTubeAds}})
	require.NoError(t, err)

	completed := srv.processingJob(t, domain.PlatformYouTubeAds)
	_, err = srv.repo.MarkCompleted(ctx, completed.ID)
	require.NoError(t, err)

	for _, id := range []string{queued.ID, completed.ID} {
		w := srv.postJSON(t, "/api/v1/jobs/"+id+"/progress", map[string]any{"progress": 50})
		assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

		w = srv.postJSON(t, "/api/v1/jobs/"+id+"/progress", map[string]any{
			"contents": []map[string]any{{"platform": "youtube_ads", "video_path": "outputs/youtube_ads/a.mp4"}},
		})
		assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	}

	got, err := srv.repo.GetJob(ctx, completed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressCompleted, got.Progress)
}

func TestServeFile(t *testing.T) {
	srv := newTestServer(t, &recordingDispatcher{})
	job := srv.processingJob(t, domain.PlatformYouTubeShorts)
	base := "/api/v1/jobs/" + job.ID + "/files/"

	writeFile(t, filepath.Join(srv.ws.OutputDir(job.ID), "youtube_shorts", "short 1.mp4"), "0123456789")
	writeFile(t, filepath.Join(srv.ws.Root(), "secret.txt"), "top secret")

	t.Run("inline video", func(t *testing.T) {
		w := srv.get(t, base+"outputs/youtube_shorts/short%201.mp4")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "0123456789", w.Body.String())
		assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
		assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
		assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "inline"))
	})

	t.Run("download", func(t *testing.T) {
		w := srv.get(t, base+"outputs/youtube_shorts/short%201.mp4?download=1")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `attachment; filename="short 1.mp4"`, w.Header().Get("Content-Disposition"))
	})

	t.Run("range request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, base+"outputs/youtube_shorts/short%201.mp4", nil)
		req.Header.Set("Range", "bytes=2-5")
		w := srv.do(t, req)
		require.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "2345", w.Body.String())
	})

	t.Run("traversal is forbidden", func(t *testing.T) {
		w := srv.get(t, base+"../../secret.txt")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.NotContains(t, w.Body.String(), "top secret")
	})

	t.Run("processor log is not served", func(t *testing.T) {
		writeFile(t, srv.ws.LogPath(job.ID), "Traceback: "+srv.ws.Root())
		w := srv.get(t, base+"processor.log")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.NotContains(t, w.Body.String(), "Traceback")
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, srv.get(t, base+"outputs/youtube_shorts/none.mp4").Code)
	})

	t.Run("directory", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, srv.get(t, base+"outputs/youtube_shorts").Code)
	})
}

func TestListArtifacts(t *testing.T) {
	srv := newTestServer(t, &recordingDispatcher{})
	job := srv.processingJob(t, domain.PlatformDisplayAds)

	empty := decode[dto.ArtifactsResponse](t, srv.get(t, "/api/v1/jobs/"+job.ID+"/artifacts"))
	assert.Equal(t, job.ID, empty.JobID)
	assert.Empty(t, empty.Platforms)

	dir := filepath.Join(srv.ws.OutputDir(job.ID), "display_ads")
	writeFile(t, filepath.Join(dir, "banner.mp4"), "video")
	writeFile(t, filepath.Join(dir, "banner.png"), "png")
	writeFile(t, filepath.Join(dir, "banner.json"), "{}")

	w := srv.get(t, "/api/v1/jobs/"+job.ID+"/artifacts")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.ArtifactsResponse](t, w)
	require.Len(t, resp.Platforms, 1)

	p := resp.Platforms[0]
	assert.Equal(t, "display_ads", p.Platform)
	require.Len(t, p.Videos, 1)
	assert.Equal(t, int64(5), p.Videos[0].Size)
	assert.Equal(t, "/api/v1/jobs/"+job.ID+"/files/outputs/display_ads/banner.mp4", p.Videos[0].URL)
	assert.Len(t, p.Thumbnails, 1)
	assert.Len(t, p.Metadata, 1)

	assert.Equal(t, http.StatusNotFound, srv.get(t, "/api/v1/jobs/00000000-0000-4000-8000-000000000000/artifacts").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, &recordingDispatcher{})

	w := srv.get(t, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"clip-api-service"}`, w.Body.String())

	w = srv.get(t, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clip_http_requests_total")
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, &recordingDispatcher{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := srv.do(t, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// runnerFunc adapts a function to processor.Runner
type runnerFunc func(ctx context.Context, inv processor.Invocation) error

func (f runnerFunc) Run(ctx context.Context, inv processor.Invocation) error { return f(ctx, inv) }

func TestEndToEnd_InlinePool(t *testing.T) {
	logger := discardLogger()

	runner := runnerFunc(func(_ context.Context, inv processor.Invocation) error {
		for _, p := range inv.Platforms {
			dir := filepath.Join(inv.OutputDir, string(p))
			writeFile(t, filepath.Join(dir, "clip_1.mp4"), "video-"+string(p))
			writeFile(t, filepath.Join(dir, "clip_1.jpg"), "thumb")
			writeFile(t, filepath.Join(dir, "clip_1.json"), `{"duration": 30, "creatives": {"headline": "Cut for `+string(p)+`"}}`)
		}
		return nil
	})

	// The launcher needs the pool and the pool needs the store, so wire the
	// server with a forwarding dispatcher first.
	var pool *processor.Pool
	srv := newTestServer(t, dispatcherFunc(func(ctx context.Context, jobID string) error {
		return pool.Dispatch(ctx, jobID)
	}))
	pool = processor.NewPool(processor.PoolConfig{
		Invoker: processor.NewInvoker(processor.InvokerConfig{
			Store:    srv.repo,
			Runner:   runner,
			Logger:   logger,
			WorkerID: "api-test",
		}),
		Logger:      logger,
		Concurrency: 1,
		QueueSize:   2,
	})
	pool.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})

	w := srv.do(t, uploadRequest(t, "talk.mp4", []byte("video"), "youtube_shorts,youtube_ads"))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	jobID := decode[dto.CreateJobResponse](t, w).JobID

	require.Eventually(t, func() bool {
		got := decode[dto.JobDTO](t, srv.get(t, "/api/v1/jobs/"+jobID))
		return got.Status == "COMPLETED"
	}, 5*time.Second, 20*time.Millisecond)

	job := decode[dto.JobDTO](t, srv.get(t, "/api/v1/jobs/"+jobID))
	assert.Equal(t, 100, job.Progress)
	assert.NotNil(t, job.CompletedAt)

	results := decode[dto.ResultsResponse](t, srv.get(t, "/api/v1/jobs/"+jobID+"/results"))
	assert.Equal(t, "filesystem", results.Source)
	require.Len(t, results.Results, 2)
	assert.Equal(t, "youtube_shorts", results.Results[0].Platform)
	assert.Equal(t, "youtube_ads", results.Results[1].Platform)
	assert.Equal(t, 30.0, results.Results[0].Duration)
	require.NotNil(t, results.Results[0].Metadata.Creatives)
	assert.Equal(t, "Cut for youtube_shorts", results.Results[0].Metadata.Creatives.Headline)

	video := srv.get(t, results.Results[1].VideoURL)
	require.Equal(t, http.StatusOK, video.Code)
	assert.Equal(t, "video-youtube_ads", video.Body.String())
}

type dispatcherFunc func(ctx context.Context, jobID string) error

func (f dispatcherFunc) Dispatch(ctx context.Context, jobID string) error { return f(ctx, jobID) }
