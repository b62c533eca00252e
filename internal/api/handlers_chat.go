package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/api/respond"
	"github.com/insightlm/orchestrator/internal/auth"
	"github.com/insightlm/orchestrator/internal/services"
)

// ChatHandler serves the conversational endpoints: unary chat, the chunked
// stream, the agent, prompt refinement, and document analysis.
type ChatHandler struct {
	svc *services.ChatService
	log zerolog.Logger
}

func NewChatHandler(svc *services.ChatService, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, log: log}
}

// Message POST /chat/message
func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	var in services.ChatInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if in.Message == "" {
		respond.WriteBadRequest(w, "Message is required")
		return
	}
	reply, err := h.svc.Chat(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"reply": reply})
}

// Stream POST /chat/stream
//
// The upstream chunked body is piped to the client verbatim, flushing after
// every read so partial output reaches the client immediately.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	var in services.ChatInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if in.Message == "" {
		respond.WriteBadRequest(w, "Message is required")
		return
	}

	stream, err := h.svc.Stream(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	defer func() { _ = stream.Close() }()

	ct := stream.ContentType
	if ct == "" {
		ct = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	pipeStream(w, stream.Body)
}

// Agent POST /agent
func (h *ChatHandler) Agent(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	var in services.ChatInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if in.Message == "" {
		respond.WriteBadRequest(w, "Message is required")
		return
	}
	out, err := h.svc.Agentic(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// RefinePrompt POST /prompt/refine
func (h *ChatHandler) RefinePrompt(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	var in struct {
		Prompt   string `json:"prompt"`
		Provider string `json:"llm_provider,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if in.Prompt == "" {
		respond.WriteBadRequest(w, "Prompt is required")
		return
	}
	out, err := h.svc.Refine(r.Context(), p, in.Provider, in.Prompt)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// Analyze POST /analyze
func (h *ChatHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Unauthorized: Missing User ID")
		return
	}
	var in services.AnalyzeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if in.AnalysisType == "" {
		respond.WriteBadRequest(w, "analysis_type is required")
		return
	}
	out, err := h.svc.Analyze(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// pipeStream copies src to the response, flushing after each chunk. Write
// errors mean the client went away; the copy just stops.
func pipeStream(w http.ResponseWriter, src io.Reader) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}
