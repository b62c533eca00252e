// Package upstream is the HTTP client for the AI service. It exposes the
// three proxy modes the orchestrator needs: unary JSON, chunked text
// streaming, and binary file streaming.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Error is an application-level failure reported by the AI service.
// StatusCode carries the upstream HTTP status (or 502 when unreachable).
type Error struct {
	StatusCode  int
	Message     string
	Unreachable bool
}

func (e *Error) Error() string { return e.Message }

// ClientStatusCode clamps the upstream status to a client-relevant code.
func (e *Error) ClientStatusCode() int {
	if e.StatusCode >= 400 && e.StatusCode < 600 {
		return e.StatusCode
	}
	return http.StatusBadGateway
}

// Timeouts are the per-operation overall deadlines.
type Timeouts struct {
	Chat       time.Duration
	Analysis   time.Duration
	Generation time.Duration
	Refine     time.Duration
}

// Client talks to the AI service.
type Client struct {
	base     string
	http     *resty.Client
	probe    time.Duration
	timeouts Timeouts
	log      zerolog.Logger
}

// New creates a Client for the given base URL. probeTimeout bounds health
// probes; Timeouts bound the proxied operations.
func New(baseURL string, probeTimeout time.Duration, t Timeouts, log zerolog.Logger) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")

	return &Client{base: baseURL, http: c, probe: probeTimeout, timeouts: t, log: log}
}

// Health probes GET /health within the probe timeout. A nil return means the
// service answered 200 with status "ok".
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probe)
	defer cancel()

	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return &Error{StatusCode: http.StatusBadGateway, Message: "upstream unreachable", Unreachable: true}
	}
	if resp.StatusCode() != http.StatusOK {
		return &Error{StatusCode: resp.StatusCode(), Message: fmt.Sprintf("upstream health returned %d", resp.StatusCode())}
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil || body.Status != "ok" {
		return &Error{StatusCode: http.StatusBadGateway, Message: "upstream health returned unexpected body"}
	}
	return nil
}

// Chat performs the unary chat call.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.call(ctx, "/chat/unary", c.timeouts.Chat, req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Agentic performs the agentic call.
func (c *Client) Agentic(ctx context.Context, req *AgenticRequest) (*AgenticResponse, error) {
	var out AgenticResponse
	if err := c.call(ctx, "/agentic", c.timeouts.Chat, req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefinePrompt performs the prompt-refinement call.
func (c *Client) RefinePrompt(ctx context.Context, req *RefineRequest) (*RefineResponse, error) {
	var out RefineResponse
	if err := c.call(ctx, "/refine-prompt", c.timeouts.Refine, req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// IngestDocument submits an uploaded document for ingestion and waits.
// "added" and "skipped" are both success for the caller; other statuses are
// returned as-is for the pipeline to classify, so no status check here.
func (c *Client) IngestDocument(ctx context.Context, req *IngestRequest) (*IngestResponse, error) {
	var out IngestResponse
	if err := c.call(ctx, "/ingest-document", c.timeouts.Analysis, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeDocument runs one analysis kind over an ingested document.
func (c *Client) AnalyzeDocument(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	var out AnalyzeResponse
	if err := c.call(ctx, "/analyze-document", c.timeouts.Analysis, req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractHeadings calls the headings side-path endpoint.
func (c *Client) ExtractHeadings(ctx context.Context, req *ExtractRequest) (*ExtractResponse, error) {
	return c.extract(ctx, "/extract-headings", req)
}

// ExtractText calls the full-text side-path endpoint.
func (c *Client) ExtractText(ctx context.Context, req *ExtractRequest) (*ExtractResponse, error) {
	return c.extract(ctx, "/extract-text", req)
}

// ExtractTopics calls the topics endpoint used by the summarizer path.
func (c *Client) ExtractTopics(ctx context.Context, req *ExtractRequest) (*ExtractResponse, error) {
	return c.extract(ctx, "/extract-topics", req)
}

func (c *Client) extract(ctx context.Context, path string, req *ExtractRequest) (*ExtractResponse, error) {
	var out ExtractResponse
	if err := c.call(ctx, path, c.timeouts.Analysis, req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// GeneratePPT performs the unary slide-deck generation call. The artifact is
// persisted upstream-side by opaque id; only metadata comes back here.
func (c *Client) GeneratePPT(ctx context.Context, req *PPTRequest) (*PPTResponse, error) {
	var out PPTResponse
	if err := c.call(ctx, "/generate-ppt", c.timeouts.Generation, req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// call serializes body, forwards it, and decodes into out. Transport errors
// surface as unreachable. Non-2xx responses and, when requireSuccess is set,
// 2xx bodies whose application status is not "success" become *Error with
// the upstream's error text preserved.
func (c *Client) call(ctx context.Context, path string, timeout time.Duration, body, out interface{}, requireSuccess bool) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post(path)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("upstream request failed")
		return &Error{StatusCode: http.StatusBadGateway, Message: "AI service is unreachable", Unreachable: true}
	}
	raw := resp.Body()
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return parseErrorBody(resp.StatusCode(), raw)
	}
	if requireSuccess {
		var env errorEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return &Error{StatusCode: http.StatusBadGateway, Message: "invalid JSON from AI service"}
		}
		if env.Status != StatusSuccess {
			msg := env.text()
			if msg == "" {
				msg = fmt.Sprintf("AI service reported status %q", env.Status)
			}
			return &Error{StatusCode: http.StatusBadGateway, Message: msg}
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{StatusCode: http.StatusBadGateway, Message: "invalid JSON from AI service"}
	}
	return nil
}

// parseErrorBody turns an upstream error body into an *Error, preserving the
// upstream message when the body is the JSON envelope.
func parseErrorBody(statusCode int, body []byte) *Error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.text() != "" {
		return &Error{StatusCode: statusCode, Message: env.text()}
	}
	return &Error{StatusCode: statusCode, Message: fmt.Sprintf("AI service returned status %d", statusCode)}
}
