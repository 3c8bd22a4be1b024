package distribution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultURL = "http://127.0.0.1:8000"
)

type jobRequest struct {
	JobID string `json:"jobId"`
}

// PosterResponse is returned by POST /distribution/poster
type PosterResponse struct {
	PosterRefs []string `json:"posterRefs"`
}

// StatusError is returned when the service answers with a non-2xx status code
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("distribution service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("distribution service returned %d: %s", e.StatusCode, e.Body)
}

// Client represents a Distribution Service API client
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new Distribution Service client
func NewClient(baseURL string, c *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if c == nil {
		c = &http.Client{}
	}

	return &Client{
		httpClient: c,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// CreatePoster requests poster artifacts for a job and returns their references
func (c *Client) CreatePoster(ctx context.Context, jobID string) ([]string, error) {
	var result PosterResponse
	if err := c.post(ctx, "/distribution/poster", jobRequest{JobID: jobID}, &result); err != nil {
		return nil, err
	}
	return result.PosterRefs, nil
}

// SendEmail requests an email campaign referencing the job
func (c *Client) SendEmail(ctx context.Context, jobID string) error {
	return c.post(ctx, "/distribution/email", jobRequest{JobID: jobID}, nil)
}

// PublishToSocial requests a publish of the job's artifact to the social networks
func (c *Client) PublishToSocial(ctx context.Context, jobID string) error {
	return c.post(ctx, "/distribution/social-publish", jobRequest{JobID: jobID}, nil)
}

// SendMessage requests a send over the messaging channel
func (c *Client) SendMessage(ctx context.Context) error {
	return c.post(ctx, "/distribution/message", struct{}{}, nil)
}

func (c *Client) post(ctx context.Context, path string, in any, out any) error {
	jsonData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
