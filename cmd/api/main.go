package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/linkflow-ai/linkflow/internal/api"
	"github.com/linkflow-ai/linkflow/internal/credential"
	"github.com/linkflow-ai/linkflow/internal/engine"
	"github.com/linkflow-ai/linkflow/internal/engine/core"
	"github.com/linkflow-ai/linkflow/internal/engine/events"
	"github.com/linkflow-ai/linkflow/internal/engine/metrics"
	"github.com/linkflow-ai/linkflow/internal/pkg/config"
	pkgcrypto "github.com/linkflow-ai/linkflow/internal/pkg/crypto"
	"github.com/linkflow-ai/linkflow/internal/pkg/database"
	"github.com/linkflow-ai/linkflow/internal/pkg/logger"
	pkgredis "github.com/linkflow-ai/linkflow/internal/pkg/redis"
	"github.com/linkflow-ai/linkflow/internal/repository"

	// Node packages register themselves against core.Global() from their
	// init() functions; the node-types endpoint lists whatever is wired in
	// here, which mirrors what cmd/worker imports for execution itself.
	_ "github.com/linkflow-ai/linkflow/internal/nodes/actions"
	_ "github.com/linkflow-ai/linkflow/internal/nodes/integrations"
	_ "github.com/linkflow-ai/linkflow/internal/nodes/logic"
	_ "github.com/linkflow-ai/linkflow/internal/nodes/triggers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.App.Environment, cfg.App.Debug)

	log.Info().
		Str("app", cfg.App.Name).
		Str("service", "api").
		Msg("Starting API service")

	db, err := database.NewGormDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	redisClient, err := pkgredis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	engineRepo := repository.NewEngineRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)

	encryptor, err := pkgcrypto.NewEncryptor(cfg.JWT.Secret[:32])
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create encryptor")
	}

	credTypes := credential.NewRegistry()
	for _, t := range credential.BuiltinTypes() {
		credTypes.Register(t)
	}
	credStore := credential.NewStore(credentialRepo, encryptor, credTypes)

	bus := events.NewBus(redisClient.Client)
	cancelMgr := engine.NewCancellationManager(redisClient.Client)
	m := metrics.New(prometheus.DefaultRegisterer)

	eng := engine.New(engineRepo, core.Global(), credStore, bus, cancelMgr, m, engine.DefaultOptions())

	jwtManager := pkgcrypto.NewJWTManager(pkgcrypto.JWTConfig{
		Secret:        cfg.JWT.Secret,
		AccessExpiry:  cfg.JWT.AccessExpiry,
		RefreshExpiry: cfg.JWT.RefreshExpiry,
		Issuer:        cfg.JWT.Issuer,
	})

	server := api.NewServer(cfg, eng, credStore, core.Global(), bus, db, redisClient, jwtManager)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info().Str("addr", addr).Msg("API server listening")
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("API server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("API server shutdown error")
	}
}
