package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kitbuilder587/wikisearch/internal/cache/memory"
	"github.com/kitbuilder587/wikisearch/internal/config"
	"github.com/kitbuilder587/wikisearch/internal/metrics"
	"github.com/kitbuilder587/wikisearch/internal/search"
	"github.com/kitbuilder587/wikisearch/internal/search/mediawiki"
	"github.com/kitbuilder587/wikisearch/internal/service"
	"github.com/kitbuilder587/wikisearch/internal/view"
)

// newSearchClient подменяется в тестах
var newSearchClient = func(cfg config.WikiConfig, logger *zap.Logger) search.SearchClient {
	return mediawiki.New(mediawiki.Config{
		APIURL:        cfg.APIURL,
		UserAgent:     cfg.UserAgent,
		Timeout:       cfg.Timeout,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
	}, logger)
}

// app - общие зависимости всех подкоманд
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	cache   *memory.Cache
	service service.SearchService
	builder view.Builder
}

func newApp(ctx context.Context) (*app, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	m := metrics.New()
	c := memory.NewWithContext(ctx, memory.Config{MaxEntries: cfg.Cache.MaxEntries})

	svc := service.NewSearchService(service.SearchServiceDeps{
		Client:  newSearchClient(cfg.Wiki, logger.Named("mediawiki")),
		Cache:   c,
		Logger:  logger.Named("search"),
		Metrics: m,
		Config: service.SearchConfig{
			DefaultBatchSize: cfg.Search.DefaultBatchSize,
			CacheTTL:         cfg.Cache.TTL,
			PageCacheTTL:     cfg.Cache.PageTTL,
			APITimeout:       cfg.Wiki.Timeout,
		},
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		cache:   c,
		service: svc,
		builder: view.NewBuilder(cfg.Wiki.BaseURL),
	}, nil
}

func (a *app) close() {
	a.cache.Stop()
	_ = a.logger.Sync()
}
