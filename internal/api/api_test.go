package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlm/orchestrator/internal/artifacts"
	"github.com/insightlm/orchestrator/internal/assets"
	"github.com/insightlm/orchestrator/internal/auth"
	"github.com/insightlm/orchestrator/internal/health"
	"github.com/insightlm/orchestrator/internal/model"
	"github.com/insightlm/orchestrator/internal/policy"
	"github.com/insightlm/orchestrator/internal/services"
	"github.com/insightlm/orchestrator/internal/store"
	storelite "github.com/insightlm/orchestrator/internal/store/sqlite"
	"github.com/insightlm/orchestrator/internal/summarizer"
	"github.com/insightlm/orchestrator/internal/upstream"
	"github.com/insightlm/orchestrator/internal/vault"
)

// fakeAI is a scripted stand-in for the AI service. It records the last
// payload seen per path and serves configurable responses.
type fakeAI struct {
	mu       sync.Mutex
	healthy  bool
	requests map[string]map[string]interface{}
	srv      *httptest.Server
}

func newFakeAI(t *testing.T) *fakeAI {
	f := &fakeAI{healthy: true, requests: map[string]map[string]interface{}{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAI) setHealthy(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = ok
}

func (f *fakeAI) lastRequest(path string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeAI) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	healthy := f.healthy
	f.mu.Unlock()

	if r.URL.Path == "/health" {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		return
	}

	var payload map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	f.mu.Lock()
	f.requests[r.URL.Path] = payload
	f.mu.Unlock()

	switch r.URL.Path {
	case "/chat/unary":
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":        "success",
			"llm_response":  "scripted reply",
			"provider_used": payload["llm_provider"],
		})
	case "/ingest-document":
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "added", "chunks_added": 7,
		})
	case "/analyze-document":
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success", "analysis_result": "scripted analysis",
		})
	case "/refine-prompt":
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success", "refined_prompt": "better prompt",
		})
	case "/generate-ppt":
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success", "fileId": "deck-1.pptx", "content": "outline",
		})
	default:
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "success"})
	}
}

type testEnv struct {
	srv       *httptest.Server
	store     store.Store
	ai        *fakeAI
	artifacts *artifacts.Dir
	dirs      struct{ generated string }
}

func newTestEnv(t *testing.T, adminKeys vault.AdminKeys) *testEnv {
	t.Helper()
	log := zerolog.Nop()

	st, err := storelite.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)

	tree, err := assets.NewTree(t.TempDir(), log)
	require.NoError(t, err)
	generatedDir := t.TempDir()
	artifactDir, err := artifacts.NewDir(generatedDir)
	require.NoError(t, err)

	ai := newFakeAI(t)
	timeouts := upstream.Timeouts{
		Chat: 5 * time.Second, Analysis: 5 * time.Second,
		Generation: 5 * time.Second, Refine: 5 * time.Second,
	}
	up := upstream.New(ai.srv.URL, 2*time.Second, timeouts, log)
	gate := health.NewGate(up, log)

	key := make([]byte, 32)
	vaultAdapter := vault.NewAdapter(st, key, adminKeys, log)
	engine := policy.NewEngine(log)

	router := NewRouter(Deps{
		Resolver:   auth.NewResolver(st, "admin"),
		Gate:       gate,
		Chat:       services.NewChatService(gate, vaultAdapter, engine, summarizer.New(st.Sessions()), tree, up, log),
		Sessions:   services.NewSessionService(st),
		Upload:     services.NewUploadService(tree, up, log),
		Generation: services.NewGenerationService(vaultAdapter, up, artifactDir, log),
		Settings:   services.NewSettingsService(st, vaultAdapter),
		Admin:      services.NewAdminService(st),
		Users:      services.NewUserService(st),
		Artifacts:  artifactDir,
		Log:        log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	env := &testEnv{srv: srv, store: st, ai: ai, artifacts: artifactDir}
	env.dirs.generated = generatedDir
	return env
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body interface{}) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("x-user-id", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) createUser(t *testing.T, userID, displayName string) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/users", "", map[string]string{
		"userId": userID, "displayName": displayName,
	})
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAnonymousRequestRejected(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})

	resp := env.do(t, http.MethodGet, "/chat/sessions", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Unauthorized: Missing User ID", body["message"])
}

func TestSignupAndMe(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})
	env.createUser(t, "alice", "Alice")

	resp := env.do(t, http.MethodGet, "/users/me", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "alice", body["userId"])
	assert.Equal(t, "Alice", body["displayName"])
	assert.Equal(t, model.RoleUser, body["role"])
}

func TestCrossUserSessionAccessIs404(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})
	env.createUser(t, "alice", "Alice")
	env.createUser(t, "bob", "Bob")

	resp := env.do(t, http.MethodPost, "/chat/save", "alice", map[string]interface{}{
		"sessionId": "s1",
		"messages": []map[string]interface{}{
			{"role": "user", "text": "secret chat", "timestamp": time.Now().UTC()},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decodeBody(t, resp)
	sessionID := saved["sessionId"].(string)

	resp = env.do(t, http.MethodGet, "/chat/session/"+sessionID, "bob", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Chat session not found or access denied.", body["message"])

	resp = env.do(t, http.MethodGet, "/chat/session/"+sessionID, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestChatWithoutKeyRejected(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})
	env.createUser(t, "alice", "Alice")

	resp := env.do(t, http.MethodPost, "/chat/message", "alice", map[string]string{
		"message": "hello", "llm_provider": "gemini-flash",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body["message"], "Gemini API key was not available")
}

func TestChatWithLocalProvider(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})
	env.createUser(t, "alice", "Alice")

	resp := env.do(t, http.MethodPost, "/chat/message", "alice", map[string]string{
		"message": "hello", "llm_provider": "ollama",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	reply := body["reply"].(map[string]interface{})
	assert.Equal(t, "model", reply["role"])
	parts := reply["parts"].([]interface{})
	require.Len(t, parts, 1)
	assert.Equal(t, "scripted reply", parts[0].(map[string]interface{})["text"])

	sent := env.ai.lastRequest("/chat/unary")
	require.NotNil(t, sent)
	assert.Equal(t, "alice", sent["user_id"])
	assert.Equal(t, "ollama", sent["llm_provider"])
}

func TestAnalysisMCQFallsBackToLocal(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})
	env.createUser(t, "alice", "Alice")

	resp := env.do(t, http.MethodPost, "/analyze", "alice", map[string]string{
		"analysis_type": "mcq", "llm_provider": "gemini-flash", "file_name": "doc.pdf",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	sent := env.ai.lastRequest("/analyze-document")
	require.NotNil(t, sent)
	assert.Equal(t, "ollama", sent["llm_provider"])
}

func TestAnalysisTopicsHardFailsWithoutKey(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})
	env.createUser(t, "alice", "Alice")

	resp := env.do(t, http.MethodPost, "/analyze", "alice", map[string]string{
		"analysis_type": "topics", "llm_provider": "gemini-flash", "file_name": "doc.pdf",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body["message"], "Gemini API key was not available")
	assert.Nil(t, env.ai.lastRequest("/analyze-document"))
}

func TestHealthGateReturns503(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})
	env.createUser(t, "alice", "Alice")
	env.ai.setHealthy(false)

	resp := env.do(t, http.MethodPost, "/chat/message", "alice", map[string]string{
		"message": "hello", "llm_provider": "ollama",
	})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Python AI service is unavailable. Please try again later.", body["message"])
	assert.Nil(t, env.ai.lastRequest("/chat/unary"))
}

func uploadFile(t *testing.T, env *testEnv, userID, fileName, mimeType string, content []byte) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName)}
	hdr["Content-Type"] = []string{mimeType}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("x-user-id", userID)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody(t, resp)
}

func TestUploadAndIngestShortCircuit(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})
	env.createUser(t, "alice", "Alice")

	result := uploadFile(t, env, "alice", "paper.pdf", "application/pdf", []byte("%PDF fake"))
	assert.Equal(t, "added", result["status"])
	assert.Equal(t, float64(7), result["chunksAdded"])
	assert.Equal(t, true, result["ingested"])

	file := result["file"].(map[string]interface{})
	serverName := file["serverFilename"].(string)
	assert.Equal(t, "docs", file["category"])

	// A summarization chat over the already-ingested file short-circuits.
	resp := env.do(t, http.MethodPost, "/chat/message", "alice", map[string]string{
		"message": "please summarize this", "llm_provider": "ollama", "active_file": serverName,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	reply := body["reply"].(map[string]interface{})
	parts := reply["parts"].([]interface{})
	require.Len(t, parts, 1)
	assert.Contains(t, parts[0].(map[string]interface{})["text"], "PDF already processed")
	assert.Nil(t, env.ai.lastRequest("/chat/unary"))
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})
	env.createUser(t, "alice", "Alice")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="file"; filename="tool.exe"`}
	hdr["Content-Type"] = []string{"application/octet-stream"}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = part.Write([]byte("MZ"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("x-user-id", "alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestUploadRejectsOversizeFile(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})
	env.createUser(t, "alice", "Alice")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="file"; filename="huge.pdf"`}
	hdr["Content-Type"] = []string{"application/pdf"}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(make([]byte, assets.MaxUploadSize+1))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("x-user-id", "alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "File exceeds the 20 MB upload limit", body["message"])
}

func TestKeyRequestWorkflow(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{GeminiKey: "shared-gemini"})
	env.createUser(t, "alice", "Alice")

	// Without any key, cloud chat fails.
	resp := env.do(t, http.MethodPost, "/chat/message", "alice", map[string]string{
		"message": "hello", "llm_provider": "gemini-flash",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	// Request access.
	resp = env.do(t, http.MethodPost, "/settings/key-request", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Non-admins cannot review.
	resp = env.do(t, http.MethodGet, "/admin/key-requests", "alice", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	// Admin sees and approves it.
	resp = env.do(t, http.MethodGet, "/admin/key-requests", "admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listing := decodeBody(t, resp)
	assert.Equal(t, float64(1), listing["count"])

	resp = env.do(t, http.MethodPost, "/admin/key-requests/alice", "admin", map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Now the shared key carries the chat.
	resp = env.do(t, http.MethodPost, "/chat/message", "alice", map[string]string{
		"message": "hello", "llm_provider": "gemini-flash",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	sent := env.ai.lastRequest("/chat/unary")
	require.NotNil(t, sent)
	assert.Equal(t, "shared-gemini", sent["gemini_api_key"])
	assert.Equal(t, "gemini-flash", sent["llm_provider"])
}

func TestSettingsKeysRoundTrip(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})
	env.createUser(t, "alice", "Alice")

	resp := env.do(t, http.MethodPost, "/settings/keys", "alice", map[string]string{
		"geminiApiKey": "my-own-key",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/settings/keys", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decodeBody(t, resp)
	assert.Equal(t, true, status["geminiKeySet"])
	assert.Equal(t, false, status["groqKeySet"])

	// Stored ciphertext never equals the plaintext.
	sec, err := env.store.Principals().GetSecrets(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, sec.GeminiKeyCipher)
	assert.NotEqual(t, "my-own-key", sec.GeminiKeyCipher)

	// The key now flows into chat.
	resp = env.do(t, http.MethodPost, "/chat/message", "alice", map[string]string{
		"message": "hello", "llm_provider": "gemini-flash",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
	sent := env.ai.lastRequest("/chat/unary")
	require.NotNil(t, sent)
	assert.Equal(t, "my-own-key", sent["gemini_api_key"])
}

func TestArtifactDownload(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})
	env.createUser(t, "alice", "Alice")
	env.createUser(t, "bob", "Bob")

	require.NoError(t, os.WriteFile(filepath.Join(env.dirs.generated, "deck.pptx"), []byte("pptx-bytes"), 0o644))
	require.NoError(t, env.artifacts.RecordOwner("deck.pptx", "alice"))

	// Anonymous download is rejected.
	resp := env.do(t, http.MethodGet, "/generation/ppt/download/deck.pptx", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	// Identity via query parameter works for browser navigation.
	resp = env.do(t, http.MethodGet, "/generation/ppt/download/deck.pptx?userId=alice", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "deck.pptx")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "pptx-bytes", string(data))

	// Another principal sees a 404, same as an unknown id.
	resp = env.do(t, http.MethodGet, "/generation/ppt/download/deck.pptx", "bob", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	// Unknown id is a 404.
	resp = env.do(t, http.MethodGet, "/generation/ppt/download/missing.pptx", "alice", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestGeneratedArtifactOwnership(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})
	env.createUser(t, "alice", "Alice")
	env.createUser(t, "bob", "Bob")

	// The AI service writes the artifact to the shared directory and returns
	// its id.
	require.NoError(t, os.WriteFile(filepath.Join(env.dirs.generated, "deck-1.pptx"), []byte("pptx-bytes"), 0o644))

	resp := env.do(t, http.MethodPost, "/generation/ppt", "alice", map[string]string{"topic": "quarterly results"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	require.Equal(t, "deck-1.pptx", body["fileId"])

	// The requesting principal can download it.
	resp = env.do(t, http.MethodGet, "/generation/ppt/download/deck-1.pptx", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Anyone else holding the id cannot.
	resp = env.do(t, http.MethodGet, "/generation/ppt/download/deck-1.pptx", "bob", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestRefinePrompt(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})
	env.createUser(t, "alice", "Alice")

	resp := env.do(t, http.MethodPost, "/prompt/refine", "alice", map[string]string{
		"prompt": "make this better", "llm_provider": "ollama",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "better prompt", body["refined_prompt"])
}

func TestHealthEndpointIsPublic(t *testing.T) {
	env := newTestEnv(t, vault.AdminKeys{})

	resp := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
}
