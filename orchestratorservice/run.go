// Package orchestratorservice bootstraps and runs the orchestrator HTTP
// server.
package orchestratorservice

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/api"
	"github.com/insightlm/orchestrator/internal/artifacts"
	"github.com/insightlm/orchestrator/internal/assets"
	"github.com/insightlm/orchestrator/internal/auth"
	"github.com/insightlm/orchestrator/internal/config"
	"github.com/insightlm/orchestrator/internal/factory"
	"github.com/insightlm/orchestrator/internal/health"
	"github.com/insightlm/orchestrator/internal/logger"
	"github.com/insightlm/orchestrator/internal/policy"
	"github.com/insightlm/orchestrator/internal/services"
	"github.com/insightlm/orchestrator/internal/summarizer"
	"github.com/insightlm/orchestrator/internal/upstream"
	"github.com/insightlm/orchestrator/internal/vault"
)

// Run starts the orchestrator HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("orchestrator")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("upstream_url", cfg.UpstreamURL).
		Msg("Orchestrator starting")

	// Cancellable root context bound to SIGINT/SIGTERM.
	ctx, stop := newServerContext()
	defer stop()

	router, gate, err := buildRouter(ctx, cfg, log)
	if err != nil {
		return err
	}

	// Background upstream monitor; requests still probe live, this keeps
	// /health and the transition logs fresh.
	go gate.Start(ctx, time.Duration(cfg.HealthIntervalSeconds)*time.Second)

	// Startup probe is informational: the orchestrator serves (and gates)
	// even while the AI service is still coming up.
	probeCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.HealthProbeTimeoutSeconds)*time.Second)
	if err := gate.Probe(probeCtx); err != nil {
		log.Warn().Err(err).Msg("AI service not reachable at startup")
	}
	cancel()

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// buildRouter constructs the dependency graph and wires HTTP routes.
func buildRouter(ctx context.Context, cfg *config.Config, log zerolog.Logger) (http.Handler, *health.Gate, error) {
	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return nil, nil, err
	}

	tree, err := assets.NewTree(cfg.AssetsDir, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Asset tree unavailable")
		return nil, nil, err
	}
	artifactDir, err := artifacts.NewDir(cfg.GeneratedDir)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Artifact directory unavailable")
		return nil, nil, err
	}

	up := upstream.New(
		cfg.UpstreamURL,
		time.Duration(cfg.HealthProbeTimeoutSeconds)*time.Second,
		upstream.Timeouts{
			Chat:       time.Duration(cfg.ChatTimeoutSeconds) * time.Second,
			Analysis:   time.Duration(cfg.AnalysisTimeoutSeconds) * time.Second,
			Generation: time.Duration(cfg.GenerationTimeoutSeconds) * time.Second,
			Refine:     time.Duration(cfg.RefineTimeoutSeconds) * time.Second,
		},
		log,
	)
	gate := health.NewGate(up, log)

	vaultAdapter := vault.NewAdapter(st, cfg.EncryptionKeyBytes(), vault.AdminKeys{
		GeminiKey: cfg.AdminGeminiKey,
		GroqKey:   cfg.AdminGroqKey,
	}, log)
	engine := policy.NewEngine(log)
	sum := summarizer.New(st.Sessions())

	router := api.NewRouter(api.Deps{
		Resolver:   auth.NewResolver(st, cfg.AdminUserID),
		Gate:       gate,
		Chat:       services.NewChatService(gate, vaultAdapter, engine, sum, tree, up, log),
		Sessions:   services.NewSessionService(st),
		Upload:     services.NewUploadService(tree, up, log),
		Generation: services.NewGenerationService(vaultAdapter, up, artifactDir, log),
		Settings:   services.NewSettingsService(st, vaultAdapter),
		Admin:      services.NewAdminService(st),
		Users:      services.NewUserService(st),
		Artifacts:  artifactDir,
		Log:        log,
	})
	return router, gate, nil
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// Streaming responses (chat stream, report download) can outlive a
		// short write timeout; bound it by the longest proxy deadline.
		WriteTimeout: time.Duration(cfg.GenerationTimeoutSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// newServerContext returns a cancellable context that is cancelled on
// SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
