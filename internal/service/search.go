package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kitbuilder587/wikisearch/internal/cache"
	"github.com/kitbuilder587/wikisearch/internal/metrics"
	"github.com/kitbuilder587/wikisearch/internal/search"
)

type SearchService interface {
	Search(ctx context.Context, req search.SearchRequest) (*search.SearchResponse, error)
	Page(ctx context.Context, pageID int64) (*search.Page, error)
}

type SearchConfig struct {
	DefaultBatchSize int
	CacheTTL         time.Duration
	PageCacheTTL     time.Duration
	// APITimeout ограничивает один вызов API независимо от контекста клиента
	APITimeout time.Duration
}

type SearchServiceDeps struct {
	Client  search.SearchClient
	Cache   cache.Cache
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Config  SearchConfig
}

type searchService struct {
	client  search.SearchClient
	cache   cache.Cache
	logger  *zap.Logger
	metrics *metrics.Metrics
	config  SearchConfig
	group   singleflight.Group
}

func NewSearchService(deps SearchServiceDeps) SearchService {
	if deps.Config.DefaultBatchSize <= 0 {
		deps.Config.DefaultBatchSize = search.DefaultBatchSize
	}
	if deps.Config.APITimeout == 0 {
		deps.Config.APITimeout = 20 * time.Second
	}
	if deps.Config.PageCacheTTL == 0 {
		deps.Config.PageCacheTTL = deps.Config.CacheTTL
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &searchService{
		client:  deps.Client,
		cache:   deps.Cache,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		config:  deps.Config,
	}
}

func (s *searchService) Search(ctx context.Context, req search.SearchRequest) (*search.SearchResponse, error) {
	if s.metrics != nil {
		s.metrics.IncRequestsInFlight()
		defer s.metrics.DecRequestsInFlight()
	}

	req.Sanitize()
	// пустой запрос до сети не доходит
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Options = req.Options.WithDefaults(s.config.DefaultBatchSize)
	// окно выдачи всегда начинается с кратного размеру страницы смещения
	req.Options.Offset -= req.Options.Offset % req.Options.BatchSize

	key := searchCacheKey(req)
	if resp, ok := s.fromCache(key, "search"); ok {
		return resp.(*search.SearchResponse), nil
	}

	v, shared, err := s.shared(ctx, key, "search", s.config.CacheTTL, func(ctx context.Context) (interface{}, error) {
		return s.client.Search(ctx, req)
	})
	if err != nil {
		s.logger.Warn("search failed",
			zap.Error(err),
			zap.String("query", req.Query),
			zap.Int("offset", req.Options.Offset),
		)
		return nil, err
	}

	resp := v.(*search.SearchResponse)

	s.logger.Info("search processed",
		zap.String("query", req.Query),
		zap.Int("offset", req.Options.Offset),
		zap.Int("batch_size", req.Options.BatchSize),
		zap.Int("total_hits", resp.TotalHits),
		zap.Int("results", len(resp.Results)),
		zap.Bool("shared", shared),
	)

	return resp, nil
}

func (s *searchService) Page(ctx context.Context, pageID int64) (*search.Page, error) {
	if pageID <= 0 {
		return nil, fmt.Errorf("%w: id %d", search.ErrPageNotFound, pageID)
	}

	key := "page:" + strconv.FormatInt(pageID, 10)
	if page, ok := s.fromCache(key, "page"); ok {
		return page.(*search.Page), nil
	}

	v, _, err := s.shared(ctx, key, "page", s.config.PageCacheTTL, func(ctx context.Context) (interface{}, error) {
		return s.client.Page(ctx, pageID)
	})
	if err != nil {
		s.logger.Warn("page fetch failed", zap.Error(err), zap.Int64("page_id", pageID))
		return nil, err
	}

	page := v.(*search.Page)

	s.logger.Info("page fetched",
		zap.Int64("page_id", pageID),
		zap.String("title", page.Title),
		zap.Int("html_bytes", len(page.HTML)),
	)

	return page, nil
}

// shared выполняет один вызов API на ключ для всех одновременных запросов.
// Вызов не наследует отмену ctx: уход первого клиента не должен ронять
// остальных. Каждый ждет результат не дольше своего ctx.
func (s *searchService) shared(ctx context.Context, key, kind string, ttl time.Duration, fn func(context.Context) (interface{}, error)) (interface{}, bool, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		v, err := s.callAPI(detached, kind, fn)
		if err == nil {
			s.toCache(key, v, ttl)
		}
		return v, err
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	}
}

func (s *searchService) callAPI(ctx context.Context, kind string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.APITimeout)
	defer cancel()

	start := time.Now()
	v, err := fn(ctx)
	if s.metrics != nil {
		s.metrics.RecordAPIRequest(kind, apiStatus(err), time.Since(start))
	}
	return v, err
}

func (s *searchService) fromCache(key, kind string) (interface{}, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(key)
	if s.metrics != nil {
		if ok {
			s.metrics.RecordCacheHit(kind)
		} else {
			s.metrics.RecordCacheMiss(kind)
		}
	}
	return v, ok
}

func (s *searchService) toCache(key string, v interface{}, ttl time.Duration) {
	if s.cache == nil || ttl <= 0 {
		return
	}
	s.cache.Set(key, v, ttl)
}

func apiStatus(err error) string {
	var apiErr *search.APIError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}

func searchCacheKey(req search.SearchRequest) string {
	o := req.Options
	data := strings.Join([]string{
		normalizeQuery(req.Query),
		o.Filter,
		strconv.Itoa(o.BatchSize),
		o.Sort,
		strconv.Itoa(o.Offset),
	}, "\x00")
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("search:%x", hash[:12])
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
