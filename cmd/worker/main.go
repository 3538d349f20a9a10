package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/linkflow-ai/linkflow/internal/credential"
	"github.com/linkflow-ai/linkflow/internal/domain/repositories"
	"github.com/linkflow-ai/linkflow/internal/domain/services"
	"github.com/linkflow-ai/linkflow/internal/engine"
	"github.com/linkflow-ai/linkflow/internal/engine/core"
	"github.com/linkflow-ai/linkflow/internal/engine/events"
	"github.com/linkflow-ai/linkflow/internal/engine/metrics"
	"github.com/linkflow-ai/linkflow/internal/nodes/actions"
	"github.com/linkflow-ai/linkflow/internal/pkg/config"
	pkgcrypto "github.com/linkflow-ai/linkflow/internal/pkg/crypto"
	"github.com/linkflow-ai/linkflow/internal/pkg/database"
	"github.com/linkflow-ai/linkflow/internal/pkg/email"
	"github.com/linkflow-ai/linkflow/internal/pkg/logger"
	"github.com/linkflow-ai/linkflow/internal/pkg/queue"
	pkgredis "github.com/linkflow-ai/linkflow/internal/pkg/redis"
	"github.com/linkflow-ai/linkflow/internal/pkg/streams"
	"github.com/linkflow-ai/linkflow/internal/repository"
	"github.com/linkflow-ai/linkflow/internal/worker"

	// Node packages register themselves against core.Global() from their
	// init() functions; importing purely for the side effect is how the
	// teacher's own handler/route files pull in optional features. actions
	// is imported by name below to wire its subworkflow runner.
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
		Str("service", "worker").
		Msg("Starting worker service")

	db, err := database.NewGormDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	redisClient, err := pkgredis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Engine-facing persistence and the credential store.
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

	isTrigger, matches := worker.ClassifyTriggers(core.Global())
	engine.SetTriggerClassifier(isTrigger, matches)

	// action.subworkflow was registered at init() time, before eng existed.
	actions.DefaultSubWorkflowNode.Runner = eng

	// Workflow lookups for the webhook stream consumer keep using the
	// teacher's read-oriented workflow service; execution itself now flows
	// through the engine rather than the old executor.
	workflowRepo := repositories.NewWorkflowRepository(db)
	versionRepo := repositories.NewWorkflowVersionRepository(db)
	workflowSvc := services.NewWorkflowService(workflowRepo, versionRepo)

	emailCfg := &email.Config{
		SMTPHost:     cfg.SMTP.Host,
		SMTPPort:     cfg.SMTP.Port,
		SMTPUser:     cfg.SMTP.Username,
		SMTPPassword: cfg.SMTP.Password,
		FromEmail:    cfg.SMTP.From,
		FromName:     cfg.SMTP.FromName,
		QueueEnabled: true,
	}
	emailSvc := email.NewService(emailCfg, asynqClient)

	queueClient := queue.NewClient(&cfg.Redis)
	defer queueClient.Close()

	var webhookConsumers []*streams.WebhookConsumer
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.Features.WebhookStream.Enabled {
		webhookStream := streams.NewWebhookStream(redisClient.Client)

		consumerCount := cfg.Features.WebhookStream.ConsumerCount
		if consumerCount < 1 {
			consumerCount = 2
		}

		for i := 0; i < consumerCount; i++ {
			consumerName := fmt.Sprintf("worker-%d-consumer-%d", os.Getpid(), i)
			consumer := streams.NewWebhookConsumer(webhookStream, workflowSvc, queueClient, consumerName)

			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Int("consumer", i).Msg("Failed to start webhook consumer")
				continue
			}
			webhookConsumers = append(webhookConsumers, consumer)
			log.Info().Str("consumer", consumerName).Msg("Webhook stream consumer started")
		}

		log.Info().Int("count", len(webhookConsumers)).Msg("Webhook stream consumers running")
	}

	w := worker.New(cfg, eng, cancelMgr, bus, emailSvc)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down worker...")

		cancel()
		for _, consumer := range webhookConsumers {
			consumer.Stop()
		}
		w.Shutdown()
	}()

	if err := w.Start(); err != nil {
		log.Fatal().Err(err).Msg("Worker error")
	}
}
