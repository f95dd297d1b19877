package resolver

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
)

// rawCreatives accepts snake_case and camelCase keys
type rawCreatives struct {
	Headline          string `json:"headline"`
	Description       string `json:"description"`
	CallToAction      string `json:"call_to_action"`
	CallToActionCamel string `json:"callToAction"`
}

type rawEngagement struct {
	Score      *float64 `json:"predicted_engagement"`
	ScoreCamel *float64 `json:"predictedEngagement"`
	Level      string   `json:"engagement_level"`
	LevelCamel string   `json:"engagementLevel"`
}

type rawMetadata struct {
	Duration            *float64       `json:"duration"`
	Timestamp           *float64       `json:"timestamp"`
	StartTimestamp      *float64       `json:"start_timestamp"`
	StartTimestampCamel *float64       `json:"startTimestamp"`
	AspectRatio         string         `json:"aspect_ratio"`
	AspectRatioCamel    string         `json:"aspectRatio"`
	Creatives           *rawCreatives  `json:"creatives"`
	Engagement          *rawEngagement `json:"engagement_prediction"`
	EngagementCamel     *rawEngagement `json:"engagementPrediction"`
}

// readMetadataFile loads and normalizes a per-clip metadata file
func readMetadataFile(path string) (fields, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fields{}, fmt.Errorf("failed to read metadata file: %w", err)
	}
	return parseMetadata(data)
}

// parseMetadata validates a per-clip metadata document and maps it to fields.
// Absent keys stay nil so the merge can fall back to other sources.
func parseMetadata(data []byte) (fields, error) {
	if err := validateDocument(metadataSchema, data); err != nil {
		return fields{}, err
	}

	var raw rawMetadata
	if err := json.Unmarshal(data, &raw); err != nil {
		return fields{}, fmt.Errorf("%w: %v", domain.ErrMalformedMetadata, err)
	}

	f := fields{
		duration:       raw.Duration,
		startTimestamp: firstFloat(raw.StartTimestamp, raw.StartTimestampCamel, raw.Timestamp),
		aspectRatio:    firstString(raw.AspectRatio, raw.AspectRatioCamel),
	}

	if c := raw.Creatives; c != nil {
		f.creatives = &domain.CreativeText{
			Headline:     c.Headline,
			Description:  c.Description,
			CallToAction: firstString(c.CallToAction, c.CallToActionCamel),
		}
	}

	eng := raw.Engagement
	if eng == nil {
		eng = raw.EngagementCamel
	}
	if eng != nil {
		f.engagement = normalizeEngagement(firstFloat(eng.Score, eng.ScoreCamel), firstString(eng.Level, eng.LevelCamel))
	}

	return f, nil
}

// normalizeEngagement builds a metric from an optional score and level. A
// missing level is derived from the score; a level without a score is dropped.
func normalizeEngagement(score *float64, level string) *domain.EngagementMetric {
	if score == nil {
		return nil
	}
	lvl := domain.ParseEngagementLevel(level)
	if lvl == "" {
		lvl = domain.LevelForScore(*score)
	}
	return &domain.EngagementMetric{PredictedEngagement: *score, EngagementLevel: lvl}
}

func firstFloat(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
