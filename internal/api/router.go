package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/api/recovery"
	"github.com/insightlm/orchestrator/internal/artifacts"
	"github.com/insightlm/orchestrator/internal/auth"
	"github.com/insightlm/orchestrator/internal/health"
	"github.com/insightlm/orchestrator/internal/services"
)

// Deps collects everything the router needs. The bootstrap wires the concrete
// services; the router only arranges routes and middleware.
type Deps struct {
	Resolver   *auth.Resolver
	Gate       *health.Gate
	Chat       *services.ChatService
	Sessions   *services.SessionService
	Upload     *services.UploadService
	Generation *services.GenerationService
	Settings   *services.SettingsService
	Admin      *services.AdminService
	Users      *services.UserService
	Artifacts  *artifacts.Dir
	Log        zerolog.Logger
}

// NewRouter builds the HTTP router. Health and signup are public; everything
// else requires a resolvable principal, and the admin review endpoints
// additionally require the admin role.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	chatH := NewChatHandler(d.Chat, d.Log)
	sessionH := NewSessionHandler(d.Sessions, d.Log)
	uploadH := NewUploadHandler(d.Upload, d.Log)
	genH := NewGenerationHandler(d.Generation, d.Artifacts, d.Log)
	settingsH := NewSettingsHandler(d.Settings, d.Log)
	adminH := NewAdminHandler(d.Admin, d.Log)
	userH := NewUserHandler(d.Users, d.Log)
	healthH := NewHealthHandler(d.Gate)

	// Public endpoints.
	router.HandleFunc("/health", healthH.Check).Methods("GET")
	router.HandleFunc("/users", userH.Create).Methods("POST")

	// Everything below resolves the caller identity first.
	protected := router.NewRoute().Subrouter()
	protected.Use(auth.Middleware(d.Resolver, d.Log))

	// Conversation.
	protected.HandleFunc("/chat/message", chatH.Message).Methods("POST")
	protected.HandleFunc("/chat/stream", chatH.Stream).Methods("POST")
	protected.HandleFunc("/agent", chatH.Agent).Methods("POST")
	protected.HandleFunc("/prompt/refine", chatH.RefinePrompt).Methods("POST")
	protected.HandleFunc("/analyze", chatH.Analyze).Methods("POST")

	// Session persistence.
	protected.HandleFunc("/chat/save", sessionH.Save).Methods("POST")
	protected.HandleFunc("/chat/sessions", sessionH.List).Methods("GET")
	protected.HandleFunc("/chat/session/{sessionId}", sessionH.Get).Methods("GET")
	protected.HandleFunc("/chat/session/{sessionId}", sessionH.Delete).Methods("DELETE")

	// Uploads and generated artifacts.
	protected.HandleFunc("/upload", uploadH.Upload).Methods("POST")
	protected.HandleFunc("/generation/ppt", genH.GeneratePPT).Methods("POST")
	protected.HandleFunc("/generation/ppt/download/{fileId}", genH.Download).Methods("GET")
	protected.HandleFunc("/generation/report", genH.GenerateReport).Methods("POST")

	// Settings and key requests.
	protected.HandleFunc("/settings/keys", settingsH.SaveKeys).Methods("POST")
	protected.HandleFunc("/settings/keys", settingsH.KeyStatus).Methods("GET")
	protected.HandleFunc("/settings/key-request", settingsH.RequestKeyAccess).Methods("POST")

	// Admin review.
	protected.HandleFunc("/admin/key-requests", auth.RequireAdmin(adminH.ListKeyRequests)).Methods("GET")
	protected.HandleFunc("/admin/key-requests/{userId}", auth.RequireAdmin(adminH.ProcessKeyRequest)).Methods("POST")

	// Self.
	protected.HandleFunc("/users/me", userH.Me).Methods("GET")
	protected.HandleFunc("/users/me", userH.DeleteMe).Methods("DELETE")

	return router
}
