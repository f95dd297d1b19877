package resolver

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
)

// summaryEntry is one platform's record in summary_report.json
type summaryEntry struct {
	VideoFile       string   `json:"video_file"`
	ThumbnailFile   string   `json:"thumbnail_file"`
	Duration        *float64 `json:"duration"`
	Timestamp       *float64 `json:"timestamp"`
	Score           *float64 `json:"predicted_engagement"`
	EngagementLevel string   `json:"engagement_level"`
}

type summaryReport struct {
	InputVideo         string                  `json:"input_video"`
	PlatformsProcessed []string                `json:"platforms_processed"`
	JobID              string                  `json:"job_id"`
	CreatedContent     map[string]summaryEntry `json:"created_content"`
}

// readManifest loads summary_report.json keyed by known platform. Entries
// for platforms outside the supported set are returned in skipped.
func readManifest(path string) (entries map[domain.Platform]summaryEntry, skipped []string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if err := validateDocument(summarySchema, data); err != nil {
		return nil, nil, err
	}

	var report summaryReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrMalformedMetadata, err)
	}

	entries = make(map[domain.Platform]summaryEntry, len(report.CreatedContent))
	for key, entry := range report.CreatedContent {
		p, err := domain.ParsePlatform(key)
		if err != nil {
			skipped = append(skipped, key)
			continue
		}
		entries[p] = entry
	}
	return entries, skipped, nil
}
