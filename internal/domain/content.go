package domain

import (
	"strings"
	"time"
)

// EngagementLevel buckets a predicted engagement score
type EngagementLevel string

// Engagement levels
const (
	EngagementLow    EngagementLevel = "Low"
	EngagementMedium EngagementLevel = "Medium"
	EngagementHigh   EngagementLevel = "High"
)

// Content is one generated clip for one platform of a job
type Content struct {
	ID             string
	JobID          string
	Platform       Platform
	VideoPath      string
	ThumbnailPath  string
	MetadataPath   string
	Duration       float64
	StartTimestamp float64
	CreatedAt      time.Time
	Creative       *CreativeText
	Metric         *EngagementMetric
}

// CreativeText is the marketing copy attached to a clip
type CreativeText struct {
	Headline     string `json:"headline"`
	Description  string `json:"description"`
	CallToAction string `json:"call_to_action"`
}

// EngagementMetric is the predicted engagement of a clip
type EngagementMetric struct {
	PredictedEngagement float64         `json:"predicted_engagement"`
	EngagementLevel     EngagementLevel `json:"engagement_level"`
}

// LevelForScore derives the engagement level from a score in [0, 100]
func LevelForScore(score float64) EngagementLevel {
	switch {
	case score >= 75:
		return EngagementHigh
	case score >= 50:
		return EngagementMedium
	default:
		return EngagementLow
	}
}

// ParseEngagementLevel normalizes a level name, returning "" when unknown
func ParseEngagementLevel(raw string) EngagementLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return EngagementLow
	case "medium":
		return EngagementMedium
	case "high":
		return EngagementHigh
	}
	return ""
}
