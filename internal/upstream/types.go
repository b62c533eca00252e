package upstream

import "github.com/insightlm/orchestrator/internal/model"

// StatusSuccess is the application-level success marker used by the AI
// service in every JSON envelope.
const StatusSuccess = "success"

// Identity carries the server-injected caller fields. The HTTP caller can
// never set these; handlers build them from the request context.
type Identity struct {
	UserID     string `json:"user_id"`
	Provider   string `json:"llm_provider"`
	GeminiKey  string `json:"gemini_api_key,omitempty"`
	GroqKey    string `json:"groq_api_key,omitempty"`
	OllamaHost string `json:"ollama_host,omitempty"`
}

// ChatRequest is the unary and streaming chat payload.
type ChatRequest struct {
	Identity
	Message        string `json:"message"`
	HistorySummary string `json:"chat_history_summary,omitempty"`
	ActiveFile     string `json:"active_file,omitempty"`
}

// ChatResponse mirrors POST /chat/unary.
type ChatResponse struct {
	Status          string            `json:"status"`
	LLMResponse     string            `json:"llm_response"`
	References      []model.Reference `json:"references,omitempty"`
	ThinkingContent string            `json:"thinking_content,omitempty"`
	ProviderUsed    string            `json:"provider_used,omitempty"`
	ModelUsed       string            `json:"model_used,omitempty"`
	ContextSource   string            `json:"context_source,omitempty"`
}

// AgenticRequest is the payload for POST /agentic.
type AgenticRequest struct {
	Identity
	Message        string `json:"message"`
	HistorySummary string `json:"chat_history_summary,omitempty"`
}

// AgenticResponse mirrors POST /agentic.
type AgenticResponse struct {
	Status        string        `json:"status"`
	AgentResponse string        `json:"agent_response"`
	AgentTrace    []interface{} `json:"agent_trace,omitempty"`
}

// RefineRequest is the payload for POST /refine-prompt.
type RefineRequest struct {
	Identity
	Prompt string `json:"prompt"`
}

// RefineResponse mirrors POST /refine-prompt.
type RefineResponse struct {
	Status        string `json:"status"`
	RefinedPrompt string `json:"refined_prompt"`
}

// IngestRequest is the payload for POST /ingest-document.
type IngestRequest struct {
	Identity
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
}

// IngestResponse mirrors POST /ingest-document. Status is one of
// "added", "skipped", or a failure marker.
type IngestResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	ChunksAdded int    `json:"chunks_added,omitempty"`
}

// AnalyzeRequest is the payload for POST /analyze-document.
type AnalyzeRequest struct {
	Identity
	AnalysisType string `json:"analysis_type"`
	FileName     string `json:"file_name,omitempty"`
	Content      string `json:"content,omitempty"`
}

// AnalyzeResponse mirrors POST /analyze-document. For MCQ the result carries
// line-delimited JSON produced upstream; it is passed through untouched.
type AnalyzeResponse struct {
	Status         string `json:"status"`
	AnalysisResult string `json:"analysis_result"`
	Message        string `json:"message,omitempty"`
}

// ExtractRequest is shared by the /extract-* auxiliary endpoints.
type ExtractRequest struct {
	Identity
	FileName string `json:"file_name,omitempty"`
	Content  string `json:"content,omitempty"`
}

// ExtractResponse is the union shape of the /extract-* endpoints; only the
// field matching the called endpoint is populated.
type ExtractResponse struct {
	Status   string   `json:"status"`
	Headings []string `json:"headings,omitempty"`
	Text     string   `json:"text,omitempty"`
	Topics   []string `json:"topics,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// PPTRequest is the payload for POST /generate-ppt.
type PPTRequest struct {
	Identity
	Topic   string `json:"topic"`
	Context string `json:"context,omitempty"`
}

// PPTResponse mirrors POST /generate-ppt.
type PPTResponse struct {
	Status  string `json:"status"`
	FileID  string `json:"fileId"`
	Content string `json:"content,omitempty"`
}

// ReportRequest is the payload for the binary POST /generate-report.
type ReportRequest struct {
	Identity
	Topic   string `json:"topic"`
	Context string `json:"context,omitempty"`
}

// errorEnvelope is the error shape the AI service returns on failures:
// { status, error | message }.
type errorEnvelope struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e errorEnvelope) text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}
