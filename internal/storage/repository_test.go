package storage

import (
	"context"
	"testing"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepository runs the behaviour every Repository implementation must share
func testRepository(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	newJob := func(t *testing.T, repo Repository) *domain.Job {
		t.Helper()
		job, err := repo.CreateJob(ctx, domain.NewJob{
			OriginalName: "keynote.mp4",
			InputPath:    "/data/uploads/keynote.mp4",
			OutputDir:    "/data/jobs/x/outputs",
			Platforms:    []domain.Platform{domain.PlatformYouTubeShorts, domain.PlatformDisplayAds},
		})
		require.NoError(t, err)
		return job
	}

	t.Run("create starts queued", func(t *testing.T) {
		repo := newRepo(t)
		job := newJob(t, repo)

		assert.NotEmpty(t, job.ID)
		assert.Equal(t, domain.JobStatusQueued, job.Status)
		assert.Equal(t, 0, job.Progress)
		assert.Nil(t, job.StartedAt)
		assert.Nil(t, job.CompletedAt)
		assert.Equal(t, []domain.Platform{domain.PlatformYouTubeShorts, domain.PlatformDisplayAds}, job.Platforms)

		got, err := repo.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, "keynote.mp4", got.OriginalName)
	})

	t.Run("create keeps a supplied id", func(t *testing.T) {
		repo := newRepo(t)
		id := "7d7c1c0e-3b7e-4f0a-9d55-2a3f0c9b8e11"

		job, err := repo.CreateJob(ctx, domain.NewJob{
			ID:           id,
			OriginalName: "promo.mov",
			InputPath:    "/data/uploads/promo.mov",
			OutputDir:    "/data/jobs/" + id + "/outputs",
			Platforms:    []domain.Platform{domain.PlatformPerformanceMax},
		})
		require.NoError(t, err)
		assert.Equal(t, id, job.ID)
		assert.Equal(t, "/data/jobs/"+id+"/outputs", job.OutputDir)
	})

	t.Run("duplicate id", func(t *testing.T) {
		repo := newRepo(t)
		first := newJob(t, repo)

		_, err := repo.CreateJob(ctx, domain.NewJob{
			ID:           first.ID,
			OriginalName: "again.mp4",
			Platforms:    []domain.Platform{domain.PlatformYouTubeAds},
		})
		assert.ErrorIs(t, err, domain.ErrJobExists)
		assert.NotErrorIs(t, err, domain.ErrStorageUnavailable)

		got, err := repo.GetJob(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "keynote.mp4", got.OriginalName)
	})

	t.Run("unknown job", func(t *testing.T) {
		repo := newRepo(t)
		missing := "00000000-0000-0000-0000-000000000000"

		_, err := repo.GetJob(ctx, missing)
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
		_, err = repo.MarkProcessing(ctx, missing)
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
		_, err = repo.MarkCompleted(ctx, missing)
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
		_, err = repo.MarkFailed(ctx, missing, "boom")
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})

	t.Run("happy path", func(t *testing.T) {
		repo := newRepo(t)
		job := newJob(t, repo)

		processing, err := repo.MarkProcessing(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, processing.Status)
		assert.Equal(t, domain.ProgressStarted, processing.Progress)
		require.NotNil(t, processing.StartedAt)
		assert.Nil(t, processing.CompletedAt)

		completed, err := repo.MarkCompleted(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCompleted, completed.Status)

		got, err := repo.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, got.Progress)
		require.NotNil(t, got.CompletedAt)
		assert.False(t, got.CompletedAt.Before(*got.StartedAt))
	})

	t.Run("completing twice is harmless", func(t *testing.T) {
		repo := newRepo(t)
		job := newJob(t, repo)
		_, err := repo.MarkProcessing(ctx, job.ID)
		require.NoError(t, err)

		first, err := repo.MarkCompleted(ctx, job.ID)
		require.NoError(t, err)
		second, err := repo.MarkCompleted(ctx, job.ID)
		require.NoError(t, err)

		assert.Equal(t, domain.JobStatusCompleted, second.Status)
		assert.Equal(t, 100, second.Progress)
		assert.True(t, first.CompletedAt.Equal(*second.CompletedAt))
	})

	t.Run("fail keeps first message", func(t *testing.T) {
		repo := newRepo(t)
		job := newJob(t, repo)
		_, err := repo.MarkProcessing(ctx, job.ID)
		require.NoError(t, err)

		failed, err := repo.MarkFailed(ctx, job.ID, "processor exited with code 1: Traceback")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, failed.Status)
		assert.Equal(t, "processor exited with code 1: Traceback", failed.ErrorMessage)
		require.NotNil(t, failed.CompletedAt)

		again, err := repo.MarkFailed(ctx, job.ID, "second message")
		require.NoError(t, err)
		assert.Equal(t, "processor exited with code 1: Traceback", again.ErrorMessage)
	})

	t.Run("queued job can fail directly", func(t *testing.T) {
		repo := newRepo(t)
		job := newJob(t, repo)

		failed, err := repo.MarkFailed(ctx, job.ID, "failed to launch processor")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, failed.Status)
	})

	t.Run("disallowed edges", func(t *testing.T) {
		repo := newRepo(t)

		queued := newJob(t, repo)
		_, err := repo.MarkCompleted(ctx, queued.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		completed := newJob(t, repo)
		_, err = repo.MarkProcessing(ctx, completed.ID)
		require.NoError(t, err)
		_, err = repo.MarkCompleted(ctx, completed.ID)
		require.NoError(t, err)
		_, err = repo.MarkFailed(ctx, completed.ID, "late failure")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		_, err = repo.MarkProcessing(ctx, completed.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		failed := newJob(t, repo)
		_, err = repo.MarkFailed(ctx, failed.ID, "boom")
		require.NoError(t, err)
		_, err = repo.MarkCompleted(ctx, failed.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		got, err := repo.GetJob(ctx, failed.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, got.Status)
	})

	t.Run("single claim", func(t *testing.T) {
		repo := newRepo(t)
		job := newJob(t, repo)

		_, err := repo.ClaimInvocation(ctx, job.ID, "worker-a")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		_, err = repo.MarkProcessing(ctx, job.ID)
		require.NoError(t, err)

		claimed, err := repo.ClaimInvocation(ctx, job.ID, "worker-a")
		require.NoError(t, err)
		assert.Equal(t, "worker-a", claimed.WorkerID)

		_, err = repo.ClaimInvocation(ctx, job.ID, "worker-b")
		assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	})

	t.Run("progress never decreases", func(t *testing.T) {
		repo := newRepo(t)
		job := newJob(t, repo)

		_, err := repo.ReportProgress(ctx, job.ID, 50)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		_, err = repo.MarkProcessing(ctx, job.ID)
		require.NoError(t, err)

		got, err := repo.ReportProgress(ctx, job.ID, 60)
		require.NoError(t, err)
		assert.Equal(t, 60, got.Progress)

		got, err = repo.ReportProgress(ctx, job.ID, 30)
		require.NoError(t, err)
		assert.Equal(t, 60, got.Progress)

		got, err = repo.ReportProgress(ctx, job.ID, 100)
		require.NoError(t, err)
		assert.Equal(t, 99, got.Progress)
		assert.Equal(t, domain.JobStatusProcessing, got.Status)
	})

	t.Run("contents upsert per platform", func(t *testing.T) {
		repo := newRepo(t)
		job := newJob(t, repo)

		err := repo.SaveContents(ctx, job.ID, []domain.Content{
			{
				Platform:  domain.PlatformDisplayAds,
				VideoPath: "outputs/display_ads/a.mp4",
				Duration:  6,
			},
			{
				Platform:       domain.PlatformYouTubeShorts,
				VideoPath:      "outputs/youtube_shorts/a.mp4",
				ThumbnailPath:  "outputs/youtube_shorts/a.jpg",
				Duration:       45,
				StartTimestamp: 12.5,
				Creative:       &domain.CreativeText{Headline: "Watch", Description: "Now", CallToAction: "Learn More"},
				Metric:         &domain.EngagementMetric{PredictedEngagement: 82, EngagementLevel: domain.EngagementHigh},
			},
		})
		require.NoError(t, err)

		err = repo.SaveContents(ctx, job.ID, []domain.Content{
			{Platform: domain.PlatformDisplayAds, VideoPath: "outputs/display_ads/b.mp4", Duration: 6},
		})
		require.NoError(t, err)

		contents, err := repo.ListContents(ctx, job.ID)
		require.NoError(t, err)
		require.Len(t, contents, 2)

		assert.Equal(t, domain.PlatformYouTubeShorts, contents[0].Platform)
		assert.Equal(t, 12.5, contents[0].StartTimestamp)
		require.NotNil(t, contents[0].Creative)
		assert.Equal(t, "Watch", contents[0].Creative.Headline)
		require.NotNil(t, contents[0].Metric)
		assert.Equal(t, domain.EngagementHigh, contents[0].Metric.EngagementLevel)

		assert.Equal(t, domain.PlatformDisplayAds, contents[1].Platform)
		assert.Equal(t, "outputs/display_ads/b.mp4", contents[1].VideoPath)
		assert.Nil(t, contents[1].Creative)
		assert.Nil(t, contents[1].Metric)

		err = repo.SaveContents(ctx, "00000000-0000-0000-0000-000000000000", nil)
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})

	t.Run("list newest first with cursor", func(t *testing.T) {
		repo := newRepo(t)
		var ids []string
		for i := 0; i < 5; i++ {
			ids = append(ids, newJob(t, repo).ID)
			time.Sleep(2 * time.Millisecond)
		}

		page, err := repo.ListJobs(ctx, domain.JobFilter{PageSize: 2})
		require.NoError(t, err)
		require.Len(t, page.Jobs, 2)
		assert.True(t, page.HasMore)
		assert.Equal(t, ids[4], page.Jobs[0].ID)
		assert.Equal(t, ids[3], page.Jobs[1].ID)

		last := page.Jobs[1]
		page, err = repo.ListJobs(ctx, domain.JobFilter{
			PageSize: 10,
			Cursor:   &domain.JobCursor{CreatedAt: last.CreatedAt, ID: last.ID},
		})
		require.NoError(t, err)
		require.Len(t, page.Jobs, 3)
		assert.False(t, page.HasMore)
		assert.Equal(t, ids[0], page.Jobs[2].ID)

		_, err = repo.MarkProcessing(ctx, ids[1])
		require.NoError(t, err)
		page, err = repo.ListJobs(ctx, domain.JobFilter{Status: domain.JobStatusProcessing})
		require.NoError(t, err)
		require.Len(t, page.Jobs, 1)
		assert.Equal(t, ids[1], page.Jobs[0].ID)
	})
}
