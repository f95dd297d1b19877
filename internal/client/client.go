package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/api/dto"
	"github.com/cuongbtq/clip-repurposer/internal/domain"
)

const (
	jobsPath       = "/api/v1/jobs"
	defaultTimeout = 30 * time.Second
)

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the job API over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the API served at baseURL, e.g. http://localhost:8080
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateJob uploads the video at videoPath and starts a job for platforms.
// A launch failure returns the FAILED job response together with an *APIError.
func (c *Client) CreateJob(ctx context.Context, videoPath string, platforms []domain.Platform) (*dto.CreateJobResponse, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// The upload is streamed so large videos never sit in memory.
	go func() {
		err := writeUpload(mw, f, filepath.Base(videoPath), platforms)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+jobsPath, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload video: %w", err)
	}
	defer resp.Body.Close()

	var out dto.CreateJobResponse
	if resp.StatusCode == http.StatusBadGateway {
		if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && out.JobID != "" {
			return &out, &APIError{StatusCode: resp.StatusCode, Message: out.Error}
		}
		return nil, &APIError{StatusCode: resp.StatusCode}
	}
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func writeUpload(mw *multipart.Writer, video io.Reader, name string, platforms []domain.Platform) error {
	for _, p := range platforms {
		if err := mw.WriteField("platforms", string(p)); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("video", name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, video)
	return err
}

// GetJob returns the current state of a job
func (c *Client) GetJob(ctx context.Context, jobID string) (*dto.JobDTO, error) {
	var out dto.JobDTO
	if err := c.getJSON(ctx, jobsPath+"/"+url.PathEscape(jobID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOptions filters a job listing
type ListOptions struct {
	Status   domain.JobStatus
	PageSize int
	Cursor   string
}

// ListJobs returns one page of jobs, newest first
func (c *Client) ListJobs(ctx context.Context, opts ListOptions) (*dto.ListJobsResponse, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}

	path := jobsPath
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out dto.ListJobsResponse
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Results returns the reconciled clips of a job
func (c *Client) Results(ctx context.Context, jobID string) (*dto.ResultsResponse, error) {
	var out dto.ResultsResponse
	if err := c.getJSON(ctx, jobsPath+"/"+url.PathEscape(jobID)+"/results", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Artifacts lists the output files of a job
func (c *Client) Artifacts(ctx context.Context, jobID string) (*dto.ArtifactsResponse, error) {
	var out dto.ArtifactsResponse
	if err := c.getJSON(ctx, jobsPath+"/"+url.PathEscape(jobID)+"/artifacts", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportProgress posts a processor progress callback
func (c *Client) ReportProgress(ctx context.Context, jobID string, req dto.ProgressRequest) (*dto.ProgressResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode progress: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+jobsPath+"/"+url.PathEscape(jobID)+"/progress", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to report progress: %w", err)
	}
	defer resp.Body.Close()

	var out dto.ProgressResponse
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Fetch downloads a file URL returned by Results or Artifacts into w. Relative
// URLs are resolved against the client's base URL.
func (c *Client) Fetch(ctx context.Context, fileURL string, w io.Writer) (int64, error) {
	if strings.HasPrefix(fileURL, "/") {
		fileURL = c.baseURL + fileURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s: %w", fileURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errorFromResponse(resp)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to download %s: %w", fileURL, err)
	}
	return n, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func errorFromResponse(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
}
