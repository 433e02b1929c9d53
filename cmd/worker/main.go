package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"jarvis/internal/agent"
	"jarvis/internal/cache"
	"jarvis/internal/config"
	"jarvis/internal/database/kafka"
	"jarvis/internal/database/milvus"
	"jarvis/internal/database/mysql"
	"jarvis/internal/database/neo4j"
	redisdb "jarvis/internal/database/redis"
	"jarvis/internal/embedding"
	"jarvis/internal/integrations"
	"jarvis/internal/llm"
	"jarvis/internal/memory"
	"jarvis/internal/orchestrator"
	"jarvis/internal/planner"
	"jarvis/internal/queue"
	"jarvis/internal/router"
	"jarvis/internal/worker"
	"jarvis/pkg/logger"
)

// The worker runs the same assistant pipeline as the API so scheduled
// checks and digests produce the same answers a live chat would.
func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("worker", "")

	ctx := context.Background()

	// Initialize database clients
	db, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer mysql.Close()
	if err := mysql.Migrate(db); err != nil {
		appLogger.Fatal(err.Error())
	}

	redisClient, err := redisdb.GetClient(&cfg.Databases.Redis)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer redisdb.Close()

	milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer milvusClient.Close()

	neo4jClient, err := neo4j.GetClient(ctx, &cfg.Databases.Neo4j)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer neo4jClient.Close(ctx)

	// Initialize model clients
	llmClient, err := llm.NewLLM(cfg.LLM)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	embedder, err := embedding.NewEmdModel(cfg.Embedding)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	// Memory layer
	store := memory.NewStore(db, milvusClient, embedder,
		cfg.Databases.Milvus.FactCollection, cfg.Databases.Milvus.RagCollection, appLogger)
	extractor := memory.NewExtractor(llmClient, store, appLogger)

	// Routing and planning
	intentRouter := router.New(embedder, appLogger)
	if err := intentRouter.Initialize(ctx); err != nil {
		appLogger.Fatal(err.Error())
	}
	taskPlanner := planner.New(llmClient, appLogger, cfg.Orchestrator.PlannerMaxSteps)

	// Freshness cache
	freshness := cache.NewChecker(cache.NewRedisKV(redisClient), cfg.Orchestrator)

	// Sub-agents
	agents := []agent.Agent{
		agent.NewWebAgent(integrations.NewPerplexityClient(cfg.Integrations.Perplexity), freshness, appLogger),
		agent.NewRagAgent(store, freshness, appLogger),
		agent.NewKgAgent(integrations.NewKgClient(neo4jClient), appLogger),
		agent.NewTaskAgent(integrations.NewNotionClient(cfg.Integrations.Notion), freshness, appLogger),
	}
	googleClient, err := integrations.NewGoogleClient(ctx, cfg.Integrations.Google)
	if err != nil {
		appLogger.WithErr(err).Warn("Google integration unavailable, calendar and email agents disabled")
	} else {
		agents = append(agents,
			agent.NewCalendarAgent(googleClient, freshness, appLogger),
			agent.NewEmailAgent(googleClient, llmClient, freshness, appLogger),
		)
	}
	registry, err := agent.NewRegistry(agents...)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	// Task queue
	var publisher *queue.Publisher
	if cfg.Databases.Kafka.Enabled {
		kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer kafka.Close()
		publisher = queue.NewPublisher(kafkaClient.Writer)
	}
	taskQueue := queue.NewRepository(db, publisher, appLogger)

	// Orchestration pipeline for scheduled checks and digests
	spawner := orchestrator.NewSpawner(cfg.Orchestrator.ExtractionLimit, appLogger)
	pipeline := orchestrator.New(intentRouter, taskPlanner, freshness, registry,
		store, extractor, llmClient, spawner, cfg.Orchestrator, appLogger)

	notifier := integrations.NewTelegramClient(cfg.Integrations.Telegram)
	executor := worker.NewExecutor(taskQueue, notifier, pipeline, appLogger)
	w := worker.NewWorker(taskQueue, executor, cfg.Worker, appLogger)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		w.Run(runCtx)
		close(done)
	}()

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	cancel()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		appLogger.Warn("worker did not stop in time")
	}
	spawner.Wait(5 * time.Second)
	appLogger.Info("worker stopped")
}
