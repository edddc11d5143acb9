package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"frameworks/coursebook/internal/catalog"
	"frameworks/coursebook/internal/chat"
	appconfig "frameworks/coursebook/internal/config"
	"frameworks/coursebook/internal/events"
	"frameworks/coursebook/internal/ingest"
	"frameworks/coursebook/internal/tools"
	"frameworks/coursebook/pkg/database"
	"frameworks/coursebook/pkg/llm"
	"frameworks/coursebook/pkg/logging"
	"frameworks/coursebook/pkg/monitoring"
	"frameworks/coursebook/pkg/redis"
	"frameworks/coursebook/pkg/version"
)

const embeddingCacheEntries = 4096

// app holds the wired service and everything that needs closing on exit.
type app struct {
	cfg       appconfig.Config
	logger    logging.Logger
	index     *catalog.Catalog
	registry  *tools.Registry
	service   *chat.Service
	health    *monitoring.HealthChecker
	publisher *events.Publisher
	closers   []func() error
}

// buildApp wires storage, retrieval and (when withModel is set) the model
// and session layers from cfg.
func buildApp(ctx context.Context, cfg appconfig.Config, logger logging.Logger, withModel bool) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		health: monitoring.NewHealthChecker("coursebook", version.Version),
	}

	embedder, dimensions, err := a.buildEmbedder(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	backend, err := a.buildBackend(ctx, dimensions)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.health.AddCheck("vector_store", monitoring.PingHealthCheck("vector_store", backend))

	a.index = catalog.New(backend, embedder, catalog.Options{
		MaxResults:        cfg.MaxResults,
		MinNameSimilarity: cfg.MinNameSimilarity,
	}, logger)
	a.registry = tools.NewRegistry().MustRegister(
		tools.NewSearchTool(a.index),
		tools.NewOutlineTool(a.index),
	)

	serviceCfg := chat.ServiceConfig{
		Index:     a.index,
		Registry:  a.registry,
		Processor: ingest.NewProcessor(cfg.ChunkSize, cfg.ChunkOverlap),
		Logger:    logger,
	}

	if withModel {
		provider, err := llm.NewProvider(cfg.LLM)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("llm provider: %w", err)
		}
		if strings.EqualFold(cfg.LLM.Provider, "ollama") {
			a.health.AddCheck("ollama", monitoring.HTTPServiceHealthCheck("ollama", ollamaRoot(cfg.LLM.APIURL)))
		}
		serviceCfg.Orchestrator = chat.NewOrchestrator(chat.OrchestratorConfig{
			LLMProvider: provider,
			Registry:    a.registry,
			Logger:      logger,
			MaxRounds:   cfg.MaxToolRounds,
		})

		serviceCfg.Sessions = a.buildSessions(ctx)

		if publisher := a.buildPublisher(); publisher != nil {
			serviceCfg.Publisher = publisher
		}
	}

	a.health.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"LLM_PROVIDER":       cfg.LLM.Provider,
		"LLM_MODEL":          cfg.LLM.Model,
		"EMBEDDING_PROVIDER": cfg.Embedding.Provider,
	}))

	a.service = chat.NewService(serviceCfg)
	return a, nil
}

func (a *app) buildEmbedder(ctx context.Context) (catalog.Embedder, int, error) {
	cfg := a.cfg
	if cfg.UsesLocalEmbeddings() {
		a.logger.WithField("dimensions", cfg.EmbeddingDimensions).Info("Using local hashed embeddings")
		local := catalog.NewLocalEmbedder(cfg.EmbeddingDimensions)
		return catalog.NewCachedEmbedder(local, cfg.EmbeddingCacheTTL, embeddingCacheEntries), local.Dimensions(), nil
	}

	client, err := llm.NewEmbeddingClient(cfg.Embedding)
	if err != nil {
		return nil, 0, fmt.Errorf("embedding client: %w", err)
	}

	dimensions := cfg.EmbeddingDimensions
	detectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if detected, err := llm.DetectEmbeddingDimensions(detectCtx, client); err != nil {
		a.logger.WithError(err).WithField("dimensions", dimensions).Warn("Embedding dimension check failed; using configured dimensions")
	} else if detected != dimensions {
		a.logger.WithFields(logging.Fields{
			"configured": dimensions,
			"detected":   detected,
		}).Info("Embedding model dimensions differ from EMBEDDING_DIMENSIONS; using detected value")
		dimensions = detected
	}

	remote := catalog.NewRemoteEmbedder(client, dimensions)
	return catalog.NewCachedEmbedder(remote, cfg.EmbeddingCacheTTL, embeddingCacheEntries), dimensions, nil
}

func (a *app) buildBackend(ctx context.Context, dimensions int) (catalog.Backend, error) {
	if a.cfg.DatabaseURL == "" {
		a.logger.Warn("DATABASE_URL not set - using in-memory vector store, data is lost on exit")
		return catalog.NewMemoryStore(), nil
	}

	dbConfig := database.DefaultConfig()
	dbConfig.URL = a.cfg.DatabaseURL
	db, err := database.Connect(ctx, dbConfig, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	a.health.AddCheck("database", monitoring.DatabaseHealthCheck(db))

	if err := catalog.EnsureSchema(ctx, db, dimensions); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return catalog.NewStore(db), nil
}

// buildSessions prefers REDIS_URL over REDIS_ADDRS. An unreachable Redis
// degrades to in-process sessions rather than failing startup.
func (a *app) buildSessions(ctx context.Context) chat.SessionStore {
	cfg := a.cfg
	if cfg.RedisURL == "" && len(cfg.RedisAddrs) == 0 {
		a.logger.Info("REDIS_URL and REDIS_ADDRS not set - sessions are kept in memory")
		return chat.NewMemorySessions(cfg.MaxHistory)
	}

	var (
		client goredis.UniversalClient
		err    error
	)
	if cfg.RedisURL != "" {
		client, err = redis.NewClientFromURL(ctx, cfg.RedisURL)
	} else {
		client, err = redis.NewUniversalClient(ctx, redis.Config{
			Mode:       redis.ParseMode(cfg.RedisMode),
			Addrs:      cfg.RedisAddrs,
			MasterName: cfg.RedisMasterName,
			Password:   cfg.RedisPassword,
		})
	}
	if err != nil {
		a.logger.WithError(err).Warn("Failed to connect to Redis - sessions are kept in memory")
		return chat.NewMemorySessions(cfg.MaxHistory)
	}
	a.closers = append(a.closers, client.Close)
	a.health.AddCheck("redis", monitoring.RedisHealthCheck(client))
	return chat.NewRedisSessions(client, cfg.MaxHistory, cfg.SessionTTL, a.logger)
}

// buildPublisher returns nil when Kafka is not configured or unreachable;
// query events are optional.
func (a *app) buildPublisher() *events.Publisher {
	cfg := a.cfg
	if len(cfg.KafkaBrokers) == 0 {
		a.logger.Debug("KAFKA_BROKERS not set - query events disabled")
		return nil
	}
	publisher, err := events.NewPublisher(events.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		ClusterID: cfg.KafkaClusterID,
		Topic:     cfg.KafkaTopic,
		Source:    "coursebook",
		Logger:    a.logger,
	})
	if err != nil {
		a.logger.WithError(err).Warn("Failed to create Kafka publisher - query events disabled")
		return nil
	}
	a.publisher = publisher
	a.closers = append(a.closers, publisher.Close)
	a.health.AddCheck("kafka", monitoring.PingHealthCheck("kafka", publisher))
	return publisher
}

// ollamaRoot maps the OpenAI-compatible base URL to Ollama's liveness endpoint.
func ollamaRoot(apiURL string) string {
	base := strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if base == "" {
		return "http://localhost:11434/"
	}
	return strings.TrimSuffix(base, "/v1") + "/"
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.WithError(err).Warn("Shutdown completed with errors")
	}
}
