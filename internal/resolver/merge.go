package resolver

import (
	"fmt"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
)

// Fallback values for fields no source provides
const (
	DefaultDuration       = 60
	DefaultStartTimestamp = 0
	DefaultEngagement     = 60
	DefaultCallToAction   = "Learn More"
)

// fields is one source's view of a result. nil or empty means "not provided".
type fields struct {
	videoPath      string
	thumbnailPath  string
	duration       *float64
	startTimestamp *float64
	aspectRatio    string
	createdAt      *time.Time
	creatives      *domain.CreativeText
	engagement     *domain.EngagementMetric
}

// merge picks each field from the first source that provides it.
// Sources are ordered database, metadata file, manifest, defaults.
func merge(sources ...fields) fields {
	var out fields
	for _, s := range sources {
		if out.videoPath == "" {
			out.videoPath = s.videoPath
		}
		if out.thumbnailPath == "" {
			out.thumbnailPath = s.thumbnailPath
		}
		if out.duration == nil {
			out.duration = s.duration
		}
		if out.startTimestamp == nil {
			out.startTimestamp = s.startTimestamp
		}
		if out.aspectRatio == "" {
			out.aspectRatio = s.aspectRatio
		}
		if out.createdAt == nil {
			out.createdAt = s.createdAt
		}
		if out.creatives == nil {
			out.creatives = s.creatives
		}
		if out.engagement == nil {
			out.engagement = s.engagement
		}
	}
	return out
}

// timingDefaults fills duration, start and aspect ratio when nothing else did
func timingDefaults(p domain.Platform) fields {
	d, s := float64(DefaultDuration), float64(DefaultStartTimestamp)
	return fields{duration: &d, startTimestamp: &s, aspectRatio: p.AspectRatio()}
}

// placeholderDefaults are the canned creatives and engagement shown when the
// processor left no metadata behind
func placeholderDefaults(p domain.Platform) fields {
	f := timingDefaults(p)
	f.creatives = &domain.CreativeText{
		Headline:     fmt.Sprintf("%s Content", p.DisplayName()),
		Description:  fmt.Sprintf("Generated %s content", p.DisplayName()),
		CallToAction: DefaultCallToAction,
	}
	f.engagement = &domain.EngagementMetric{
		PredictedEngagement: DefaultEngagement,
		EngagementLevel:     domain.LevelForScore(DefaultEngagement),
	}
	return f
}

func floatPtr(v float64) *float64 { return &v }
