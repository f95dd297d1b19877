package dto

import (
	"github.com/cuongbtq/clip-repurposer/internal/assets"
	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/cuongbtq/clip-repurposer/internal/resolver"
)

// ResultsResponse is returned by GET /jobs/:job_id/results
type ResultsResponse struct {
	Job     JobDTO      `json:"job"`
	Source  string      `json:"source"`
	Results []ResultDTO `json:"results"`
}

type ResultDTO struct {
	ID             string            `json:"id"`
	Platform       string            `json:"platform"`
	VideoPath      string            `json:"videoPath"`
	ThumbnailPath  string            `json:"thumbnailPath,omitempty"`
	VideoURL       string            `json:"videoUrl"`
	ThumbnailURL   string            `json:"thumbnailUrl,omitempty"`
	Duration       float64           `json:"duration"`
	StartTimestamp float64           `json:"startTimestamp"`
	AspectRatio    string            `json:"aspectRatio"`
	CreatedAt      *string           `json:"createdAt,omitempty"`
	Metadata       ResultMetadataDTO `json:"metadata"`
}

type ResultMetadataDTO struct {
	Creatives  *domain.CreativeText     `json:"creatives"`
	Engagement *domain.EngagementMetric `json:"engagement_prediction"`
}

// NewResultsResponse converts a resolution to its wire form
func NewResultsResponse(res *resolver.Resolution) ResultsResponse {
	results := make([]ResultDTO, len(res.Results))
	for i, r := range res.Results {
		results[i] = ResultDTO{
			ID:             r.ID,
			Platform:       string(r.Platform),
			VideoPath:      r.VideoPath,
			ThumbnailPath:  r.ThumbnailPath,
			VideoURL:       r.VideoURL,
			ThumbnailURL:   r.ThumbnailURL,
			Duration:       r.Duration,
			StartTimestamp: r.StartTimestamp,
			AspectRatio:    r.AspectRatio,
			CreatedAt:      formatTimePtr(r.CreatedAt),
			Metadata: ResultMetadataDTO{
				Creatives:  r.Creatives,
				Engagement: r.Engagement,
			},
		}
	}

	return ResultsResponse{
		Job:     NewJobDTO(res.Job),
		Source:  string(res.Source),
		Results: results,
	}
}

// ArtifactsResponse is returned by GET /jobs/:job_id/artifacts
type ArtifactsResponse struct {
	JobID     string                 `json:"jobId"`
	Platforms []PlatformArtifactsDTO `json:"platforms"`
}

type PlatformArtifactsDTO struct {
	Platform   string            `json:"platform"`
	Videos     []ArtifactFileDTO `json:"videos"`
	Thumbnails []ArtifactFileDTO `json:"thumbnails"`
	Metadata   []ArtifactFileDTO `json:"metadata"`
}

type ArtifactFileDTO struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// NewArtifactsResponse converts a listing, building file URLs with urlFor
func NewArtifactsResponse(jobID string, listing []assets.PlatformArtifacts, urlFor func(rel string) string) ArtifactsResponse {
	convert := func(files []assets.ArtifactFile) []ArtifactFileDTO {
		out := make([]ArtifactFileDTO, len(files))
		for i, f := range files {
			out[i] = ArtifactFileDTO{Name: f.Name, Path: f.Path, Size: f.Size, URL: urlFor(f.Path)}
		}
		return out
	}

	platforms := make([]PlatformArtifactsDTO, len(listing))
	for i, p := range listing {
		platforms[i] = PlatformArtifactsDTO{
			Platform:   string(p.Platform),
			Videos:     convert(p.Videos),
			Thumbnails: convert(p.Thumbnails),
			Metadata:   convert(p.Metadata),
		}
	}
	return ArtifactsResponse{JobID: jobID, Platforms: platforms}
}
