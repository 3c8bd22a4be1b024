package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"adwise/src/core/job"
	"adwise/src/log"
)

const (
	DefaultURL = "http://127.0.0.1:8000"
)

// SubmitResponse is the acknowledgment returned by POST /generate
type SubmitResponse struct {
	JobID string `json:"jobId"`
}

// StatusResponse is returned by GET /job-status/{jobId}
type StatusResponse struct {
	Status     string `json:"status"`
	ArtifactID string `json:"artifactId,omitempty"`
}

// Artifact describes a generated output
type Artifact struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	FileURL     string `json:"fileUrl"`
}

// StatusError is returned when the service answers with an unexpected status code
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("generation service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("generation service returned %d: %s", e.StatusCode, e.Body)
}

// Client represents a Generation Service API client
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new Generation Service client
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

// Submit uploads the payload as a multipart form and returns the accepted job id.
// Anything but 202 Accepted with a job id is an error.
func (c *Client) Submit(ctx context.Context, payload job.Payload) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	switch src := payload.Source().(type) {
	case job.FileSource:
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(src.Name)))
		contentType := src.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := mw.CreatePart(header)
		if err != nil {
			return "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := part.Write(src.Data); err != nil {
			return "", fmt.Errorf("failed to write file content: %w", err)
		}
	case job.TextSource:
		if err := mw.WriteField("text", src.Text); err != nil {
			return "", fmt.Errorf("failed to write text: %w", err)
		}
	default:
		return "", fmt.Errorf("unsupported payload source %T", src)
	}

	if err := mw.WriteField("language", string(payload.Language())); err != nil {
		return "", fmt.Errorf("failed to write language: %w", err)
	}
	if err := mw.WriteField("contentPreference", string(payload.ContentPreference())); err != nil {
		return "", fmt.Errorf("failed to write content preference: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/generate", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", readStatusError(resp)
	}

	var result SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}
	if result.JobID == "" {
		return "", fmt.Errorf("generation service accepted the submission without a job id")
	}

	log.Debug("submission accepted", "jobId", result.JobID)
	return result.JobID, nil
}

// Status fetches the current status of a job
func (c *Client) Status(ctx context.Context, jobID string) (job.StatusReport, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/job-status/"+url.PathEscape(jobID), nil)
	if err != nil {
		return job.StatusReport{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return job.StatusReport{}, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return job.StatusReport{}, readStatusError(resp)
	}

	var result StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return job.StatusReport{}, fmt.Errorf("error decoding response: %w", err)
	}

	return job.StatusReport{
		Status:     job.RemoteStatus(strings.ToLower(result.Status)),
		ArtifactID: result.ArtifactID,
	}, nil
}

// Artifact fetches metadata of a generated artifact. A relative FileURL is
// resolved against the service base URL.
func (c *Client) Artifact(ctx context.Context, artifactID string) (*Artifact, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/artifact/"+url.PathEscape(artifactID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readStatusError(resp)
	}

	var artifact Artifact
	if err := json.NewDecoder(resp.Body).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	if artifact.ID == "" {
		artifact.ID = artifactID
	}
	if artifact.FileURL != "" && !strings.Contains(artifact.FileURL, "://") {
		artifact.FileURL = c.baseURL + "/" + strings.TrimLeft(artifact.FileURL, "/")
	}

	return &artifact, nil
}

// OpenFile streams the artifact binary. The caller must close the returned body.
func (c *Client) OpenFile(ctx context.Context, fileURL string) (io.ReadCloser, string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", 0, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", 0, fmt.Errorf("error making request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, "", 0, readStatusError(resp)
	}

	return resp.Body, resp.Header.Get("Content-Type"), resp.ContentLength, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	return req, nil
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func escapeQuotes(s string) string {
	return strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(s)
}
