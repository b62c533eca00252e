package services

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/assets"
	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/upstream"
)

// Ingest statuses returned by the AI service.
const (
	IngestAdded   = "added"
	IngestSkipped = "skipped"
)

// UploadResult reports one completed upload with its ingestion outcome.
type UploadResult struct {
	File        *assets.StoredFile `json:"file"`
	Status      string             `json:"status"`
	Message     string             `json:"message,omitempty"`
	ChunksAdded int                `json:"chunksAdded"`
	// Ingested is false when the upstream rejected the document; the
	// on-disk file is kept for a later retry.
	Ingested bool `json:"ingested"`
}

// UploadService stores uploads and synchronously triggers upstream ingestion.
type UploadService struct {
	tree     *assets.Tree
	upstream *upstream.Client
	log      zerolog.Logger
}

func NewUploadService(tree *assets.Tree, up *upstream.Client, log zerolog.Logger) *UploadService {
	return &UploadService{tree: tree, upstream: up, log: log}
}

// Upload writes the file under the principal's tree, calls the ingestion
// endpoint, and records the result in the sidecar.
func (s *UploadService) Upload(ctx context.Context, p *model.Principal, originalName, mimeType string, size int64, r io.Reader) (*UploadResult, error) {
	stored, err := s.tree.Save(p, originalName, mimeType, size, r)
	if err != nil {
		return nil, err
	}

	resp, err := s.upstream.IngestDocument(ctx, &upstream.IngestRequest{
		Identity: upstream.Identity{UserID: p.UserID},
		FilePath: stored.Path,
		FileName: stored.ServerName,
	})
	if err != nil {
		// Keep the file; ingestion can be retried via chat.
		s.log.Warn().Err(err).Str("file", stored.ServerName).Msg("ingestion call failed; file kept")
		return &UploadResult{File: stored, Status: "error", Message: err.Error()}, nil
	}

	res := &UploadResult{
		File:        stored,
		Status:      resp.Status,
		Message:     resp.Message,
		ChunksAdded: resp.ChunksAdded,
		Ingested:    resp.Status == IngestAdded || resp.Status == IngestSkipped,
	}
	if err := assets.WriteSidecar(stored.Path, &assets.Sidecar{
		Status:      resp.Status,
		Message:     resp.Message,
		ChunksAdded: resp.ChunksAdded,
		IngestedAt:  time.Now().UTC(),
	}); err != nil {
		s.log.Warn().Err(err).Str("file", stored.ServerName).Msg("sidecar write failed")
	}
	if !res.Ingested {
		s.log.Warn().Str("file", stored.ServerName).Str("status", resp.Status).
			Msg("upstream rejected document; file kept for retry")
	}
	return res, nil
}
