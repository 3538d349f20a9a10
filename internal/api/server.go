package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"gorm.io/gorm"

	"github.com/linkflow-ai/linkflow/internal/credential"
	"github.com/linkflow-ai/linkflow/internal/engine"
	"github.com/linkflow-ai/linkflow/internal/engine/core"
	"github.com/linkflow-ai/linkflow/internal/engine/events"
	"github.com/linkflow-ai/linkflow/internal/pkg/config"
	pkgcrypto "github.com/linkflow-ai/linkflow/internal/pkg/crypto"
	pkgredis "github.com/linkflow-ai/linkflow/internal/pkg/redis"
)

// Server is the HTTP surface over the execution engine, credential store
// and node registry: submit/inspect/cancel/retry executions, manage
// credentials, list node types, and stream live execution events over a
// websocket.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer wires chi routing, CORS, JWT bearer auth, and the engine/
// credential/node-registry handlers together.
func NewServer(
	cfg *config.Config,
	eng *engine.Engine,
	credStore *credential.Store,
	registry *core.Registry,
	bus *events.Bus,
	db *gorm.DB,
	redisClient *pkgredis.Client,
	jwtManager *pkgcrypto.JWTManager,
) *Server {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(requestLogger)
	router.Use(recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	allowedOrigins := strings.Split(cfg.App.FrontendURL, ",")
	for i := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
	}
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	auth := newAuthMiddleware(jwtManager, redisClient)
	authHandler := newAuthHandler(db, jwtManager)
	executionHandler := newExecutionHandler(eng)
	credentialHandler := newCredentialHandler(credStore)
	nodeTypesHandler := newNodeTypesHandler(registry)
	wsHandler := newWebsocketHandler(bus, jwtManager)
	healthHandler := newHealthHandler(db, redisClient.Client)

	router.Get("/health", healthHandler.Health)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.Refresh)

		r.Get("/node-types", nodeTypesHandler.List)
		r.Get("/ws/executions", wsHandler.Subscribe)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/executions", executionHandler.Submit)
			r.Get("/executions/stats", executionHandler.Stats)
			r.Get("/executions/{executionID}", executionHandler.Get)
			r.Get("/executions/{executionID}/progress", executionHandler.Progress)
			r.Get("/executions/{executionID}/nodes/{nodeID}", executionHandler.NodeExecution)
			r.Post("/executions/{executionID}/cancel", executionHandler.Cancel)
			r.Post("/executions/{executionID}/retry", executionHandler.Retry)

			r.Post("/credentials", credentialHandler.Create)
			r.Post("/credentials/test", credentialHandler.Test)
			r.Get("/credentials/{credentialID}", credentialHandler.Get)
			r.Patch("/credentials/{credentialID}", credentialHandler.Update)
			r.Delete("/credentials/{credentialID}", credentialHandler.Delete)
			r.Post("/credentials/{credentialID}/rotate", credentialHandler.Rotate)
		})
	})

	return &Server{router: router}
}

func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr and blocks until the listener stops; callers drive
// shutdown through Server.Shutdown, after which Start returns
// http.ErrServerClosed.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
