package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/artifacts"
	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/policy"
	"github.com/insightlm/orchestrator/internal/upstream"
	"github.com/insightlm/orchestrator/internal/vault"
)

// GenerationInput is the request body for slide-deck and report generation.
type GenerationInput struct {
	Topic    string `json:"topic"`
	Context  string `json:"context,omitempty"`
	Provider string `json:"llm_provider,omitempty"`
}

// GenerationService proxies artifact generation. Generation forwards whatever
// credentials the principal has and lets the AI service pick among them, so
// there is no strict provider check here.
type GenerationService struct {
	vault     *vault.Adapter
	upstream  *upstream.Client
	artifacts *artifacts.Dir
	log       zerolog.Logger
}

func NewGenerationService(v *vault.Adapter, up *upstream.Client, dir *artifacts.Dir, log zerolog.Logger) *GenerationService {
	return &GenerationService{vault: v, upstream: up, artifacts: dir, log: log}
}

// GeneratePPT runs the unary slide-deck generation call. The artifact is
// written server-side; the response carries its opaque id, which is bound to
// the requesting principal for later download.
func (s *GenerationService) GeneratePPT(ctx context.Context, p *model.Principal, in GenerationInput) (*upstream.PPTResponse, error) {
	// The artifact outlives the request: a client disconnect must not abort
	// generation. The proxy deadline still bounds the upstream call.
	ctx = context.WithoutCancel(ctx)

	creds, err := s.vault.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	out, err := s.upstream.GeneratePPT(ctx, &upstream.PPTRequest{
		Identity: s.identity(p, in.Provider, creds),
		Topic:    in.Topic,
		Context:  in.Context,
	})
	if err != nil {
		return nil, err
	}
	if out.FileID != "" {
		if err := s.artifacts.RecordOwner(out.FileID, p.UserID); err != nil {
			return nil, fmt.Errorf("record artifact owner: %w", err)
		}
	}
	return out, nil
}

// GenerateReport opens the binary PDF report stream. The caller owns the
// returned stream and must close it.
func (s *GenerationService) GenerateReport(ctx context.Context, p *model.Principal, in GenerationInput) (*upstream.Stream, error) {
	creds, err := s.vault.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.upstream.GenerateReport(ctx, &upstream.ReportRequest{
		Identity: s.identity(p, in.Provider, creds),
		Topic:    in.Topic,
		Context:  in.Context,
	})
}

func (s *GenerationService) identity(p *model.Principal, provider string, creds model.Credentials) upstream.Identity {
	if provider == "" {
		provider = policy.DefaultProvider
	}
	return upstream.Identity{
		UserID:     p.UserID,
		Provider:   provider,
		GeminiKey:  creds.GeminiKey,
		GroqKey:    creds.GroqKey,
		OllamaHost: creds.HostOverride,
	}
}
