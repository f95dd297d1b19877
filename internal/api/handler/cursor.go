package handler

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/google/uuid"
)

// DecodeJobCursor parses an opaque list cursor. An empty string means the
// first page.
func DecodeJobCursor(cursorStr string) (*domain.JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	createdAt, jobID, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, fmt.Errorf("invalid cursor format")
	}

	nanos, err := strconv.ParseInt(createdAt, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	if _, err := uuid.Parse(jobID); err != nil {
		return nil, fmt.Errorf("invalid job id in cursor: %w", err)
	}

	return &domain.JobCursor{
		CreatedAt: time.Unix(0, nanos).UTC(),
		ID:        jobID,
	}, nil
}

// EncodeJobCursor returns the cursor that resumes after job
func EncodeJobCursor(job *domain.Job) string {
	cs := fmt.Sprintf("%d|%s", job.CreatedAt.UnixNano(), job.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(cs))
}
