// Package gateway implements the stateless HTTP operations against the
// remote transcription service. Each operation is a single exchange with
// no retries; outcomes are classified into typed results and errors, and
// heterogeneous status payloads are normalized here so the rest of the
// application never branches on wire shapes.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/jbousquie/leontine/internal/domain"
)

// Service endpoint paths.
const (
	statusPath        = "/status"
	transcriptionPath = "/transcription"
)

// ClientConfig customizes a gateway client. All fields are optional.
type ClientConfig struct {
	// BearerToken is attached as an Authorization header when non-empty.
	// It is passed through opaquely.
	BearerToken string
	// ClientID identifies this installation to the service.
	ClientID string
	// HTTPClient defaults to a client with a 60 second timeout.
	HTTPClient *http.Client
}

// Client issues the service operations. It holds no application state.
type Client struct {
	token      string
	clientID   string
	httpClient *http.Client
}

// NewClient builds a gateway client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		token:      cfg.BearerToken,
		clientID:   cfg.ClientID,
		httpClient: cfg.HTTPClient,
	}
}

// ResultURL computes the download location for a completed job.
func ResultURL(baseURL, jobID string) string {
	return strings.TrimRight(baseURL, "/") + transcriptionPath + "/" + jobID + "/result"
}

// CheckAvailability probes the service status endpoint. Any non-2xx or
// network failure is returned as an error carrying the underlying message.
func (c *Client) CheckAvailability(ctx context.Context, baseURL string) (domain.AvailabilityInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, baseURL, statusPath, "", nil)
	if err != nil {
		return domain.AvailabilityInfo{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.AvailabilityInfo{}, fmt.Errorf("API is not accessible: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.AvailabilityInfo{}, fmt.Errorf("API is not accessible: %s", resp.Status)
	}

	var payload struct {
		QueueState *struct {
			QueuedJobs     int `json:"queued_jobs"`
			ProcessingJobs int `json:"processing_jobs"`
		} `json:"queue_state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		// A reachable service with an unreadable body still counts as
		// available; queue counters are informational.
		return domain.AvailabilityInfo{}, nil
	}

	info := domain.AvailabilityInfo{}
	if payload.QueueState != nil {
		info.QueuedJobs = payload.QueueState.QueuedJobs
		info.ProcessingJobs = payload.QueueState.ProcessingJobs
		info.HasQueueState = true
	}
	return info, nil
}

// Submit uploads the audio payload as a multipart form and returns the
// server-assigned job id. A success response without a job id is itself
// an error.
func (c *Client) Submit(ctx context.Context, baseURL, filename string, payload io.Reader) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, payload); err != nil {
		return "", fmt.Errorf("read audio payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize upload form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, baseURL, transcriptionPath, writer.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit transcription: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read submit response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &RequestFailedError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw, resp.Status),
		}
	}

	var result struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("parse submit response: %w", err)
	}
	if result.JobID == "" {
		return "", ErrInvalidResponse
	}
	return result.JobID, nil
}

// PollStatus fetches and normalizes the current state of a job. 404 is a
// distinguished permanent NotFoundError; network failures and 5xx are a
// transient ServerUnavailableError; other non-2xx is a permanent
// RequestFailedError.
func (c *Client) PollStatus(ctx context.Context, baseURL, jobID string) (domain.JobStatusInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, baseURL, transcriptionPath+"/"+jobID, "", nil)
	if err != nil {
		return domain.JobStatusInfo{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.JobStatusInfo{}, &ServerUnavailableError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.JobStatusInfo{}, &NotFoundError{JobID: jobID}
	case resp.StatusCode >= 500:
		return domain.JobStatusInfo{}, &ServerUnavailableError{StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		raw, _ := io.ReadAll(resp.Body)
		return domain.JobStatusInfo{}, &RequestFailedError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw, resp.Status),
		}
	}

	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.JobStatusInfo{}, fmt.Errorf("parse status response: %w", err)
	}

	info := domain.JobStatusInfo{
		Status:        normalizeStatus(payload.Status),
		QueuePosition: payload.QueuePosition,
	}
	if len(payload.Data) > 0 {
		info.Detail = sanitizeDump(payload.Data)
	}
	return info, nil
}

// DownloadResult fetches the finished transcript from its result URL.
func (c *Client) DownloadResult(ctx context.Context, resultURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	c.setHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &DownloadFailedError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read result body: %w", err)
	}
	return data, nil
}

// Cancel asks the service to abandon a job.
func (c *Client) Cancel(ctx context.Context, baseURL, jobID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, baseURL, transcriptionPath+"/"+jobID, "", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestFailedError{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	return nil
}

// newRequest assembles a request against the configured base URL.
func (c *Client) newRequest(ctx context.Context, method, baseURL, path, contentType string, body io.Reader) (*http.Request, error) {
	url := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req, contentType)
	return req, nil
}

func (c *Client) setHeaders(req *http.Request, contentType string) {
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.clientID != "" {
		req.Header.Set("X-Client-Id", c.clientID)
	}
}

// errorMessage extracts a human message from a JSON error body, falling
// back to the HTTP status line.
func errorMessage(raw []byte, fallback string) string {
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Detail != "" {
			return body.Detail
		}
	}
	return fallback
}
