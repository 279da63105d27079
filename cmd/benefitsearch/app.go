package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lgoty/benefitsearch/internal/config"
	"github.com/lgoty/benefitsearch/internal/db/postgres"
	dbRedis "github.com/lgoty/benefitsearch/internal/db/redis"
	"github.com/lgoty/benefitsearch/internal/domain"
	"github.com/lgoty/benefitsearch/internal/domain/beneficiary"
	domcat "github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/domain/query"
	"github.com/lgoty/benefitsearch/internal/metrics"
	catalogrepo "github.com/lgoty/benefitsearch/internal/repository/catalog"
	"github.com/lgoty/benefitsearch/internal/repository/embcache"
	entryrepo "github.com/lgoty/benefitsearch/internal/repository/entry"
	"github.com/lgoty/benefitsearch/internal/repository/history"
	chiTransport "github.com/lgoty/benefitsearch/internal/transport/chi"
	openaiTransport "github.com/lgoty/benefitsearch/internal/transport/openai"
	assistantuc "github.com/lgoty/benefitsearch/internal/usecase/assistant"
	cataloguc "github.com/lgoty/benefitsearch/internal/usecase/catalog"
	embeddinguc "github.com/lgoty/benefitsearch/internal/usecase/embedding"
	healthuc "github.com/lgoty/benefitsearch/internal/usecase/health"
	"github.com/lgoty/benefitsearch/internal/usecase/indexing"
	"github.com/lgoty/benefitsearch/internal/usecase/queryparser"
	searchuc "github.com/lgoty/benefitsearch/internal/usecase/search"
	"github.com/lgoty/benefitsearch/internal/vectorstore"
)

// app is the composition root shared by every command.
type app struct {
	logger    *zap.Logger
	pg        *postgres.Store
	redis     *dbRedis.Store // nil when redis.addrs is empty
	catalogDB *catalogrepo.Repo
	vectors   *vectorstore.Store
	catalog   *cataloguc.Service
	search    *searchuc.Service
	assistant *assistantuc.Service
	health    *healthuc.Service
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	a := &app{logger: logger}

	pg, err := postgres.Open(postgres.Config{
		DSN:             cfg.Postgres.DSN,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetimeSec) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.pg = pg
	if err := pg.WaitForReady(ctx, time.Duration(cfg.Postgres.ReadinessTimeout)*time.Second); err != nil {
		a.Close()
		return nil, fmt.Errorf("postgres not ready: %w", err)
	}
	logger.Info("Connected to postgres")

	if len(cfg.Redis.Addrs) > 0 {
		rs, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Redis.Addrs,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		a.redis = rs
		if err := rs.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Redis.Addrs))
	}

	vocab := beneficiary.Default()
	a.catalogDB = catalogrepo.New(pg.DB())
	entries := entryrepo.New(pg.DB())

	provider := buildEmbedder(cfg, a.redis, logger)

	a.vectors = vectorstore.New(vectorstore.Config{
		Dir:             cfg.Index.DataDir,
		Dimension:       cfg.Embedding.Dimensions,
		OversampleRatio: cfg.Index.OversampleRatio,
		Widen:           cfg.Index.WidenEnabled(),
	}, entries, vectorstore.Metrics{
		Vectors:  metrics.VectorStoreVectors,
		State:    metrics.VectorStoreState,
		Rebuilds: metrics.VectorStoreRebuildsTotal,
		Rounds:   metrics.VectorStoreSearchWidenings,
	}, logger.Named("vectorstore"))

	syncer := indexing.New(entries, a.vectors, provider, logger.Named("indexing"))
	a.catalog = cataloguc.New(a.catalogDB, vocab, logger, syncer)

	var semantic queryparser.SemanticParser
	if cfg.Parser.Enabled {
		semantic = openaiTransport.NewParser(&openaiTransport.ParserConfig{
			APIKey:  cfg.Parser.APIKey,
			BaseURL: cfg.Parser.BaseURL,
			Model:   cfg.Parser.Model,
			Timeout: time.Duration(cfg.Parser.TimeoutSec) * time.Second,
			Logger:  logger,
		}, vocab)
	}
	parser := queryparser.New(semantic, vocab, query.NewRegionIndex(a.regions(ctx)), logger.Named("queryparser"))

	// A nil *history.Repo must not reach the interface.
	var hist searchuc.History
	if a.redis != nil {
		hist = history.New(a.redis, cfg.Search.HistorySize)
	}
	a.search = searchuc.New(searchuc.Config{
		TopK:        cfg.Search.TopK,
		MaxBenefits: cfg.Search.MaxBenefits,
		MaxOffers:   cfg.Search.MaxOffers,
	}, parser, provider, a.vectors, entries, a.catalogDB, hist, logger.Named("search"))
	a.assistant = assistantuc.New(provider, a.vectors, entries, a.catalogDB, logger.Named("assistant"))

	var redisPinger healthuc.Pinger
	if a.redis != nil {
		redisPinger = a.redis
	}
	a.health = healthuc.New(pg, redisPinger, provider, a.vectors, entries)

	logger.Info("Search core assembled",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("embedding_cache", cfg.Embedding.Cache && a.redis != nil),
		zap.Bool("history", hist != nil),
	)
	return a, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Provider.
// The provider applies the query/passage prefixes outermost, so cache keys include them.
func buildEmbedder(cfg config.Config, rs *dbRedis.Store, logger *zap.Logger) *embeddinguc.Provider {
	reqDim := 0
	if cfg.Embedding.RequestDimensions {
		reqDim = cfg.Embedding.Dimensions
	}
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:            cfg.Embedding.APIKey,
		BaseURL:           cfg.Embedding.BaseURL,
		Model:             cfg.Embedding.Model,
		RequestDimensions: reqDim,
		Provider:          cfg.Embedding.Provider,
		Timeout:           time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:            logger,
	})

	var embedder domain.Embedder = base
	if cfg.Embedding.Cache && rs != nil {
		embedder = embcache.New(base, rs, cfg.Embedding.Model,
			time.Duration(cfg.Embedding.CacheTTLHours)*time.Hour, metrics.EmbeddingCacheTotal, logger)
	}

	return embeddinguc.NewProvider(embedder, domain.VectorConfig{
		Model:           cfg.Embedding.Model,
		Dimensions:      cfg.Embedding.Dimensions,
		QueryPrefix:     cfg.Embedding.QueryPrefix,
		PassagePrefix:   cfg.Embedding.PassagePrefix,
		OversampleRatio: cfg.Index.OversampleRatio,
	}, logger.Named("embedding"))
}

// regions loads the region dictionary, falling back to the built-in list
// before the first migration.
func (a *app) regions(ctx context.Context) []domcat.Region {
	regions, err := a.catalogDB.ListRegions(ctx)
	if err != nil || len(regions) == 0 {
		if err != nil {
			a.logger.Warn("Region dictionary unavailable, using built-in list", zap.Error(err))
		}
		return query.DefaultRegions()
	}
	return regions
}

func (a *app) migrate(ctx context.Context) error {
	v, err := a.pg.Migrate()
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := a.catalogDB.UpsertRegions(ctx, query.DefaultRegions()); err != nil {
		return fmt.Errorf("seed regions: %w", err)
	}
	a.logger.Info("Database migrated", zap.Uint("version", v))
	return nil
}

func (a *app) router(apiKeys []string) http.Handler {
	server := chiTransport.NewServer(a.search, a.assistant, a.health, a.logger)
	return chiTransport.NewRouter(server, apiKeys, a.logger)
}

// Close releases connections.
func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
}
