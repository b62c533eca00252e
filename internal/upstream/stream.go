package upstream

import (
	"context"
	"io"
	"net/http"
	"time"
)

// maxErrorBody bounds how much of a failed stream's body is read back for
// the error envelope.
const maxErrorBody = 64 * 1024

// Stream is an open byte stream from the AI service. Close releases the
// connection and the operation deadline.
type Stream struct {
	Body        io.ReadCloser
	StatusCode  int
	ContentType string
	// Disposition is the upstream Content-Disposition, set on binary
	// streams only.
	Disposition string

	cancel context.CancelFunc
}

// Close closes the stream body and cancels the operation context.
func (s *Stream) Close() error {
	err := s.Body.Close()
	if s.cancel != nil {
		s.cancel()
	}
	return err
}

// StreamChat opens the chunked-text chat stream. The returned stream is
// piped to the caller verbatim; no line reassembly happens here.
func (c *Client) StreamChat(ctx context.Context, req *ChatRequest) (*Stream, error) {
	return c.openStream(ctx, "/chat/stream", req, c.timeouts.Chat)
}

// GenerateReport opens the binary PDF report stream.
func (c *Client) GenerateReport(ctx context.Context, req *ReportRequest) (*Stream, error) {
	return c.openStream(ctx, "/generate-report", req, c.timeouts.Generation)
}

func (c *Client) openStream(ctx context.Context, path string, body interface{}, timeout time.Duration) (*Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetDoNotParseResponse(true).
		Post(path)
	if err != nil {
		cancel()
		c.log.Warn().Err(err).Str("path", path).Msg("upstream stream request failed")
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: "AI service is unreachable", Unreachable: true}
	}

	raw := resp.RawBody()
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		// The error body is itself a stream; drain it and surface the
		// envelope with the upstream status code.
		data, _ := io.ReadAll(io.LimitReader(raw, maxErrorBody))
		_ = raw.Close()
		cancel()
		return nil, parseErrorBody(resp.StatusCode(), data)
	}

	return &Stream{
		Body:        raw,
		StatusCode:  resp.StatusCode(),
		ContentType: resp.RawResponse.Header.Get("Content-Type"),
		Disposition: resp.RawResponse.Header.Get("Content-Disposition"),
		cancel:      cancel,
	}, nil
}
