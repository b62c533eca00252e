package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlm/orchestrator/internal/artifacts"
	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/upstream"
	"github.com/insightlm/orchestrator/internal/vault"
)

func newGenerationService(t *testing.T, handler http.Handler) (*GenerationService, *artifacts.Dir, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	timeouts := upstream.Timeouts{
		Chat: 5 * time.Second, Analysis: 5 * time.Second,
		Generation: 5 * time.Second, Refine: 5 * time.Second,
	}
	up := upstream.New(srv.URL, 2*time.Second, timeouts, zerolog.Nop())

	root := t.TempDir()
	dir, err := artifacts.NewDir(root)
	require.NoError(t, err)

	v := vault.NewAdapter(newTestStore(t), make([]byte, 32), vault.AdminKeys{}, zerolog.Nop())
	return NewGenerationService(v, up, dir, zerolog.Nop()), dir, root
}

func pptHandler(t *testing.T, fileID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate-ppt", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "fileId": fileID})
	})
}

func TestGeneratePPT_SurvivesClientDisconnect(t *testing.T) {
	svc, _, _ := newGenerationService(t, pptHandler(t, "deck-9.pptx"))

	// The caller is already gone; the artifact is persisted by id, so
	// generation must still run to completion under its own deadline.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := svc.GeneratePPT(ctx, &model.Principal{UserID: "alice", Role: model.RoleUser}, GenerationInput{Topic: "roadmap"})
	require.NoError(t, err)
	assert.Equal(t, "deck-9.pptx", out.FileID)
}

func TestGeneratePPT_BindsArtifactToRequester(t *testing.T) {
	svc, dir, root := newGenerationService(t, pptHandler(t, "deck-9.pptx"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "deck-9.pptx"), []byte("pptx"), 0o644))

	_, err := svc.GeneratePPT(context.Background(), &model.Principal{UserID: "alice", Role: model.RoleUser}, GenerationInput{Topic: "roadmap"})
	require.NoError(t, err)

	_, err = dir.Resolve("deck-9.pptx", "alice")
	require.NoError(t, err)
	_, err = dir.Resolve("deck-9.pptx", "bob")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
