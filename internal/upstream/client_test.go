package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTimeouts() Timeouts {
	return Timeouts{Chat: 5 * time.Second, Analysis: 5 * time.Second, Generation: 5 * time.Second, Refine: 5 * time.Second}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second, testTimeouts(), zerolog.Nop())
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		}))
		assert.NoError(t, c.Health(context.Background()))
	})

	t.Run("wrong status body", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "starting"})
		}))
		assert.Error(t, c.Health(context.Background()))
	})

	t.Run("unreachable", func(t *testing.T) {
		c := New("http://127.0.0.1:1", 500*time.Millisecond, testTimeouts(), zerolog.Nop())
		err := c.Health(context.Background())
		var uerr *Error
		require.ErrorAs(t, err, &uerr)
		assert.True(t, uerr.Unreachable)
	})
}

func TestChat_Success(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/unary", r.URL.Path)
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "u1", req.UserID)
		assert.Equal(t, "hello", req.Message)
		_ = json.NewEncoder(w).Encode(ChatResponse{
			Status:      StatusSuccess,
			LLMResponse: "hi there",
			ModelUsed:   "gemini-flash",
		})
	}))

	out, err := c.Chat(context.Background(), &ChatRequest{
		Identity: Identity{UserID: "u1", Provider: "gemini-flash"},
		Message:  "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", out.LLMResponse)
	assert.Equal(t, "gemini-flash", out.ModelUsed)
}

func TestChat_ApplicationLevelErrorOn200(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": "model exploded"})
	}))

	_, err := c.Chat(context.Background(), &ChatRequest{Message: "hello"})
	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "model exploded", uerr.Message)
	assert.Equal(t, http.StatusBadGateway, uerr.ClientStatusCode())
}

func TestChat_UpstreamHTTPErrorPreserved(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "bad provider"})
	}))

	_, err := c.Chat(context.Background(), &ChatRequest{Message: "hello"})
	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, http.StatusUnprocessableEntity, uerr.ClientStatusCode())
	assert.Equal(t, "bad provider", uerr.Message)
}

func TestIngestDocument_NonSuccessStatusReturned(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ingest-document", r.URL.Path)
		_ = json.NewEncoder(w).Encode(IngestResponse{Status: "skipped", Message: "already indexed"})
	}))

	out, err := c.IngestDocument(context.Background(), &IngestRequest{FileName: "f.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "skipped", out.Status)
	assert.Zero(t, out.ChunksAdded)
}

func TestStreamChat(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/stream", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"Hello", ", ", "world"} {
			_, _ = io.WriteString(w, chunk)
			flusher.Flush()
		}
	}))

	stream, err := c.StreamChat(context.Background(), &ChatRequest{Message: "hi"})
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	data, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", string(data))
	assert.Contains(t, stream.ContentType, "text/plain")
}

func TestStreamChat_ErrorEnvelope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": "no provider"})
	}))

	_, err := c.StreamChat(context.Background(), &ChatRequest{Message: "hi"})
	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, http.StatusBadRequest, uerr.StatusCode)
	assert.Equal(t, "no provider", uerr.Message)
}

func TestGenerateReport_BinaryStream(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake")
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate-report", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
		_, _ = w.Write(pdf)
	}))

	stream, err := c.GenerateReport(context.Background(), &ReportRequest{Topic: "quarterly"})
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	data, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Equal(t, pdf, data)
	assert.Equal(t, "application/pdf", stream.ContentType)
	assert.Contains(t, stream.Disposition, "report.pdf")
}
