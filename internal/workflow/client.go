package workflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/galoberlyn/beezbuddy-be/pkg/clients"
	"github.com/galoberlyn/beezbuddy-be/pkg/logging"
)

// APIError is a non-200 response from the workflow engine. Any dispatch
// error is surfaced to the caller; there is no retry or queueing layer.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("workflow engine returned status %d: %s", e.StatusCode, e.Body)
}

// Client dispatches ingestion jobs to the external workflow engine. The
// engine performs chunking and embedding; this service only hands over the
// raw material with its tenant scope.
type Client struct {
	baseURL    string
	production bool
	httpClient *http.Client
	logger     logging.Logger
}

// Config for the workflow engine client.
type Config struct {
	BaseURL string
	// Production selects the live webhook path; outside production the
	// engine's test path is used so dry runs never touch real workflows.
	Production bool
	Timeout    time.Duration
	Logger     logging.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		production: cfg.Production,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: clients.DefaultTransport(),
		},
		logger: cfg.Logger,
	}
}

// endpoint builds the webhook URL for one ingestion operation.
func (c *Client) endpoint(operation string) string {
	path := "webhook"
	if !c.production {
		path = "webhook-test"
	}
	return fmt.Sprintf("%s/%s/%s", c.baseURL, path, operation)
}

// Job carries the tenant scope of one ingestion dispatch. ReplaceIDs names
// embedding rows the engine should delete after the new content is indexed;
// it is only set on re-ingestion.
type Job struct {
	AgentID        string
	OrganizationID string
	ReplaceIDs     []string
}

// Upload sends one document for chunking and embedding.
func (c *Client) Upload(ctx context.Context, job Job, filename string, file io.Reader) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy file %s: %w", filename, err)
	}
	if err := writeJobFields(writer, job); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	return c.post(ctx, "upload", writer.FormDataContentType(), &body)
}

// Plaintext sends free text for chunking and embedding.
func (c *Client) Plaintext(ctx context.Context, job Job, data string) error {
	form := url.Values{"data": {data}}
	return c.postForm(ctx, "plaintext", job, form)
}

// Scrape sends rendered page HTML for extraction and embedding.
func (c *Client) Scrape(ctx context.Context, job Job, html string) error {
	form := url.Values{"html": {html}}
	return c.postForm(ctx, "scrape", job, form)
}

func (c *Client) postForm(ctx context.Context, operation string, job Job, form url.Values) error {
	form.Set("agentId", job.AgentID)
	form.Set("organizationId", job.OrganizationID)
	for _, id := range job.ReplaceIDs {
		form.Add("embeddingIdsToReplace", id)
	}
	return c.post(ctx, operation, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func writeJobFields(writer *multipart.Writer, job Job) error {
	if err := writer.WriteField("agentId", job.AgentID); err != nil {
		return fmt.Errorf("write agentId field: %w", err)
	}
	if err := writer.WriteField("organizationId", job.OrganizationID); err != nil {
		return fmt.Errorf("write organizationId field: %w", err)
	}
	for _, id := range job.ReplaceIDs {
		if err := writer.WriteField("embeddingIdsToReplace", id); err != nil {
			return fmt.Errorf("write embeddingIdsToReplace field: %w", err)
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, operation, contentType string, body io.Reader) error {
	endpoint := c.endpoint(operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	c.logger.WithFields(logging.Fields{
		"operation": operation,
		"endpoint":  endpoint,
	}).Debug("Workflow dispatched")
	return nil
}
