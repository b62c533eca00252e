package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/assets"
	"github.com/insightlm/orchestrator/internal/health"
	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/policy"
	"github.com/insightlm/orchestrator/internal/summarizer"
	"github.com/insightlm/orchestrator/internal/upstream"
	"github.com/insightlm/orchestrator/internal/vault"
)

// ErrUpstreamUnavailable is returned when the health gate fails; the proxy
// is never invoked in that case.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Intent patterns for the pre-chat side-paths. Headings and full-text
// extraction are mutually exclusive; the first to match wins and
// short-circuits the main chat call.
var (
	headingIntentRe = regexp.MustCompile(`(?i)\b(headings?|outline|table of contents)\b`)
	textIntentRe    = regexp.MustCompile(`(?i)\b(full text|extract (the )?text|raw text)\b`)
	ingestIntentRe  = regexp.MustCompile(`(?i)(topics|summar|process|ingest|analyz)`)
)

// ChatInput is the caller-supplied part of a chat request. Identity and
// credentials are injected server-side and cannot come from the body.
type ChatInput struct {
	Message    string `json:"message"`
	Provider   string `json:"llm_provider"`
	ActiveFile string `json:"active_file,omitempty"`
}

// Part is one text fragment of a reply.
type Part struct {
	Text string `json:"text"`
}

// Reply is the client-facing chat reply shape.
type Reply struct {
	Role          string            `json:"role"`
	Parts         []Part            `json:"parts"`
	References    []model.Reference `json:"references,omitempty"`
	Thinking      string            `json:"thinking,omitempty"`
	Provider      string            `json:"provider,omitempty"`
	Model         string            `json:"model,omitempty"`
	ContextSource string            `json:"context_source,omitempty"`
}

func textReply(text, contextSource string) *Reply {
	return &Reply{Role: "model", Parts: []Part{{Text: text}}, ContextSource: contextSource}
}

// ChatService is the request-mediation core for conversational operations.
type ChatService struct {
	gate       *health.Gate
	vault      *vault.Adapter
	policy     *policy.Engine
	summarizer *summarizer.Summarizer
	tree       *assets.Tree
	upstream   *upstream.Client
	log        zerolog.Logger
}

func NewChatService(gate *health.Gate, v *vault.Adapter, pol *policy.Engine, sum *summarizer.Summarizer, tree *assets.Tree, up *upstream.Client, log zerolog.Logger) *ChatService {
	return &ChatService{gate: gate, vault: v, policy: pol, summarizer: sum, tree: tree, upstream: up, log: log}
}

// Chat handles a unary chat call: gate, credential resolution, extraction
// side-paths, ingestion short-circuit, policy, history summary, proxy.
func (s *ChatService) Chat(ctx context.Context, p *model.Principal, in ChatInput) (*Reply, error) {
	if err := s.gate.Probe(ctx); err != nil {
		return nil, ErrUpstreamUnavailable
	}
	creds, err := s.vault.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}

	if in.ActiveFile != "" {
		if reply, handled, err := s.sidePaths(ctx, p, in); handled {
			return reply, err
		}
	}

	decision, err := s.policy.Resolve(in.Provider, policy.OpChat, "", creds)
	if err != nil {
		return nil, err
	}

	summary := ""
	if s.summarizer != nil {
		summary, err = s.summarizer.Summarize(ctx, p.UserID)
		if err != nil {
			// Non-fatal: proceed with an empty summary.
			s.log.Warn().Err(err).Str("user_id", p.UserID).Msg("history summary failed")
			summary = ""
		}
	}

	resp, err := s.upstream.Chat(ctx, &upstream.ChatRequest{
		Identity:       s.identity(p, decision.Effective, creds),
		Message:        in.Message,
		HistorySummary: summary,
		ActiveFile:     in.ActiveFile,
	})
	if err != nil {
		return nil, err
	}
	return &Reply{
		Role:          "model",
		Parts:         []Part{{Text: resp.LLMResponse}},
		References:    resp.References,
		Thinking:      resp.ThinkingContent,
		Provider:      resp.ProviderUsed,
		Model:         resp.ModelUsed,
		ContextSource: resp.ContextSource,
	}, nil
}

// sidePaths runs the pre-chat extraction and ingestion checks. handled is
// true when the chat call must not reach the main proxy.
func (s *ChatService) sidePaths(ctx context.Context, p *model.Principal, in ChatInput) (*Reply, bool, error) {
	switch {
	case headingIntentRe.MatchString(in.Message):
		resp, err := s.upstream.ExtractHeadings(ctx, &upstream.ExtractRequest{
			Identity: upstream.Identity{UserID: p.UserID},
			FileName: in.ActiveFile,
		})
		if err != nil {
			return nil, true, err
		}
		text := "No headings were found in the document."
		if len(resp.Headings) > 0 {
			text = "Document headings:\n- " + strings.Join(resp.Headings, "\n- ")
		}
		return textReply(text, "document-headings"), true, nil

	case textIntentRe.MatchString(in.Message):
		resp, err := s.upstream.ExtractText(ctx, &upstream.ExtractRequest{
			Identity: upstream.Identity{UserID: p.UserID},
			FileName: in.ActiveFile,
		})
		if err != nil {
			return nil, true, err
		}
		return textReply(resp.Text, "document-text"), true, nil

	case ingestIntentRe.MatchString(in.Message):
		return s.ensureIngested(ctx, p, in.ActiveFile)
	}
	return nil, false, nil
}

// ensureIngested short-circuits when the sidecar proves a completed
// ingestion; otherwise it ingests synchronously and reports the outcome.
func (s *ChatService) ensureIngested(ctx context.Context, p *model.Principal, activeFile string) (*Reply, bool, error) {
	stored, err := s.tree.Lookup(p, activeFile)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, true, model.ErrNotFound
		}
		return nil, true, err
	}
	sc, err := assets.ReadSidecar(stored.Path)
	if err != nil {
		return nil, true, err
	}
	if sc.Ingested() {
		s.log.Info().Str("user_id", p.UserID).Str("file", activeFile).
			Int("chunks", sc.ChunksAdded).Msg("document already ingested; skipping")
		return textReply("PDF already processed. Ask me anything about its content.", "document-cache"), true, nil
	}

	resp, err := s.upstream.IngestDocument(ctx, &upstream.IngestRequest{
		Identity: upstream.Identity{UserID: p.UserID},
		FilePath: stored.Path,
		FileName: stored.ServerName,
	})
	if err != nil {
		return nil, true, err
	}
	_ = assets.WriteSidecar(stored.Path, &assets.Sidecar{
		Status:      resp.Status,
		Message:     resp.Message,
		ChunksAdded: resp.ChunksAdded,
		IngestedAt:  time.Now().UTC(),
	})
	msg := resp.Message
	if msg == "" {
		msg = fmt.Sprintf("Document processed (%s).", resp.Status)
	}
	return textReply(msg, "document-ingest"), true, nil
}

// Stream opens the chunked chat stream. The summarizer is skipped on the
// streaming path.
func (s *ChatService) Stream(ctx context.Context, p *model.Principal, in ChatInput) (*upstream.Stream, error) {
	if err := s.gate.Probe(ctx); err != nil {
		return nil, ErrUpstreamUnavailable
	}
	creds, err := s.vault.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	decision, err := s.policy.Resolve(in.Provider, policy.OpChat, "", creds)
	if err != nil {
		return nil, err
	}
	return s.upstream.StreamChat(ctx, &upstream.ChatRequest{
		Identity:   s.identity(p, decision.Effective, creds),
		Message:    in.Message,
		ActiveFile: in.ActiveFile,
	})
}

// Agentic proxies the agent operation.
func (s *ChatService) Agentic(ctx context.Context, p *model.Principal, in ChatInput) (*upstream.AgenticResponse, error) {
	if err := s.gate.Probe(ctx); err != nil {
		return nil, ErrUpstreamUnavailable
	}
	creds, err := s.vault.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	decision, err := s.policy.Resolve(in.Provider, policy.OpAgentic, "", creds)
	if err != nil {
		return nil, err
	}
	return s.upstream.Agentic(ctx, &upstream.AgenticRequest{
		Identity: s.identity(p, decision.Effective, creds),
		Message:  in.Message,
	})
}

// Refine proxies the prompt-refinement operation.
func (s *ChatService) Refine(ctx context.Context, p *model.Principal, provider, prompt string) (*upstream.RefineResponse, error) {
	if err := s.gate.Probe(ctx); err != nil {
		return nil, ErrUpstreamUnavailable
	}
	creds, err := s.vault.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	decision, err := s.policy.Resolve(provider, policy.OpRefine, "", creds)
	if err != nil {
		return nil, err
	}
	return s.upstream.RefinePrompt(ctx, &upstream.RefineRequest{
		Identity: s.identity(p, decision.Effective, creds),
		Prompt:   prompt,
	})
}

// AnalyzeInput is the analysis request body.
type AnalyzeInput struct {
	AnalysisType string `json:"analysis_type"`
	Provider     string `json:"llm_provider"`
	FileName     string `json:"file_name,omitempty"`
	Content      string `json:"content,omitempty"`
}

// Analyze proxies one analysis kind, applying the MCQ-only downgrade.
func (s *ChatService) Analyze(ctx context.Context, p *model.Principal, in AnalyzeInput) (*upstream.AnalyzeResponse, error) {
	creds, err := s.vault.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	decision, err := s.policy.Resolve(in.Provider, policy.OpAnalysis, in.AnalysisType, creds)
	if err != nil {
		return nil, err
	}
	return s.upstream.AnalyzeDocument(ctx, &upstream.AnalyzeRequest{
		Identity:     s.identity(p, decision.Effective, creds),
		AnalysisType: in.AnalysisType,
		FileName:     in.FileName,
		Content:      in.Content,
	})
}

// identity builds the server-injected upstream identity fields.
func (s *ChatService) identity(p *model.Principal, provider string, creds model.Credentials) upstream.Identity {
	return upstream.Identity{
		UserID:     p.UserID,
		Provider:   provider,
		GeminiKey:  creds.GeminiKey,
		GroqKey:    creds.GroqKey,
		OllamaHost: creds.HostOverride,
	}
}
