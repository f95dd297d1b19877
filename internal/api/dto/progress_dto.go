package dto

// ProgressRequest is posted by the processor while it runs. Progress is
// optional so a callback may only record contents.
type ProgressRequest struct {
	Progress *int         `json:"progress"`
	Contents []ContentDTO `json:"contents"`
}

// ContentDTO describes one generated clip. Paths may be absolute or relative
// to the job root.
type ContentDTO struct {
	Platform       string         `json:"platform" binding:"required"`
	VideoPath      string         `json:"video_path" binding:"required"`
	ThumbnailPath  string         `json:"thumbnail_path"`
	MetadataPath   string         `json:"metadata_path"`
	Duration       float64        `json:"duration"`
	StartTimestamp float64        `json:"start_timestamp"`
	Creatives      *CreativeDTO   `json:"creatives"`
	Engagement     *EngagementDTO `json:"engagement_prediction"`
}

type CreativeDTO struct {
	Headline     string `json:"headline"`
	Description  string `json:"description"`
	CallToAction string `json:"call_to_action"`
}

type EngagementDTO struct {
	PredictedEngagement float64 `json:"predicted_engagement"`
	EngagementLevel     string  `json:"engagement_level"`
}

// ProgressResponse acknowledges a progress callback
type ProgressResponse struct {
	JobID    string `json:"jobId"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Recorded int    `json:"recorded"`
}
