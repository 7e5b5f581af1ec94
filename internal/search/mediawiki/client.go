package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kitbuilder587/wikisearch/internal/search"
)

const (
	DefaultAPIURL    = "https://en.wikipedia.org/w/api.php"
	DefaultUserAgent = "wikisearch/1.0 (https://github.com/kitbuilder587/wikisearch)"

	// страница статьи целиком может весить несколько мегабайт
	maxBodySize = 16 << 20
)

type Config struct {
	APIURL        string
	UserAgent     string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

type Client struct {
	apiURL    string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &Client{
		apiURL:    cfg.APIURL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(limit, cfg.Burst),
		logger:    logger,
	}
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type searchEnvelope struct {
	Error    *apiError `json:"error"`
	Continue *struct {
		SROffset int `json:"sroffset"`
	} `json:"continue"`
	Query *struct {
		SearchInfo struct {
			TotalHits int `json:"totalhits"`
		} `json:"searchinfo"`
		Search []searchHit `json:"search"`
	} `json:"query"`
}

type searchHit struct {
	NS        int       `json:"ns"`
	Title     string    `json:"title"`
	PageID    int64     `json:"pageid"`
	Size      int       `json:"size"`
	WordCount int       `json:"wordcount"`
	Snippet   string    `json:"snippet"`
	Timestamp time.Time `json:"timestamp"`
}

type parseEnvelope struct {
	Error *apiError `json:"error"`
	Parse *struct {
		Title  string `json:"title"`
		PageID int64  `json:"pageid"`
		Text   string `json:"text"`
	} `json:"parse"`
}

// BuildSearchURL собирает GET-запрос list=search. Необязательные параметры
// попадают в строку запроса только если заданы.
func BuildSearchURL(apiURL string, req search.SearchRequest) string {
	v := url.Values{}
	v.Set("action", "query")
	v.Set("list", "search")
	v.Set("format", "json")
	v.Set("formatversion", "2")
	v.Set("origin", "*")
	v.Set("srsearch", req.Query)

	opts := req.Options
	if opts.Filter != "" {
		v.Set("srnamespace", opts.Filter)
	}
	if opts.BatchSize > 0 {
		v.Set("srlimit", strconv.Itoa(opts.BatchSize))
	}
	if opts.Sort != "" {
		v.Set("srsort", opts.Sort)
	}
	if opts.Offset > 0 {
		v.Set("sroffset", strconv.Itoa(opts.Offset))
	}

	return joinQuery(apiURL, v)
}

func BuildPageURL(apiURL string, pageID int64) string {
	v := url.Values{}
	v.Set("action", "parse")
	v.Set("pageid", strconv.FormatInt(pageID, 10))
	v.Set("prop", "text")
	v.Set("format", "json")
	v.Set("formatversion", "2")
	v.Set("origin", "*")

	return joinQuery(apiURL, v)
}

func joinQuery(base string, v url.Values) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + v.Encode()
}

func (c *Client) Search(ctx context.Context, req search.SearchRequest) (*search.SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, search.ErrEmptyQuery
	}
	if err := req.Options.Validate(); err != nil {
		return nil, err
	}

	var env searchEnvelope
	if err := c.get(ctx, BuildSearchURL(c.apiURL, req), &env); err != nil {
		return nil, err
	}

	if env.Error != nil {
		c.logger.Warn("search api returned error",
			zap.String("code", env.Error.Code),
			zap.String("info", env.Error.Info),
		)
		return nil, &search.APIError{Code: env.Error.Code, Info: env.Error.Info}
	}
	if env.Query == nil {
		return nil, fmt.Errorf("%w: missing query payload", search.ErrBadResponse)
	}

	return c.toSearchResponse(req, &env), nil
}

func (c *Client) Page(ctx context.Context, pageID int64) (*search.Page, error) {
	if pageID <= 0 {
		return nil, fmt.Errorf("%w: id %d", search.ErrPageNotFound, pageID)
	}

	var env parseEnvelope
	if err := c.get(ctx, BuildPageURL(c.apiURL, pageID), &env); err != nil {
		return nil, err
	}

	if env.Error != nil {
		apiErr := &search.APIError{Code: env.Error.Code, Info: env.Error.Info}
		if env.Error.Code == "nosuchpageid" || env.Error.Code == "missingtitle" {
			return nil, fmt.Errorf("%w: %w", search.ErrPageNotFound, apiErr)
		}
		return nil, apiErr
	}
	if env.Parse == nil {
		return nil, fmt.Errorf("%w: missing parse payload", search.ErrBadResponse)
	}

	return &search.Page{
		PageID: env.Parse.PageID,
		Title:  env.Parse.Title,
		HTML:   env.Parse.Text,
	}, nil
}

// get делает один GET без ретраев; 2xx и 3xx считаются успехом
func (c *Client) get(ctx context.Context, rawURL string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", search.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("wiki api call",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d", search.ErrRequestFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", search.ErrRequestFailed, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", search.ErrBadResponse, err)
	}
	return nil
}

func (c *Client) toSearchResponse(req search.SearchRequest, env *searchEnvelope) *search.SearchResponse {
	results := make([]search.SearchResult, len(env.Query.Search))
	for i, h := range env.Query.Search {
		results[i] = search.SearchResult{
			Title:     h.Title,
			Snippet:   h.Snippet,
			PageID:    h.PageID,
			WordCount: h.WordCount,
			Timestamp: h.Timestamp,
		}
	}

	resp := &search.SearchResponse{
		Query:     req.Query,
		TotalHits: env.Query.SearchInfo.TotalHits,
		Offset:    req.Options.Offset,
		BatchSize: req.Options.BatchSize,
		Results:   results,
	}
	if env.Continue != nil {
		resp.NextOffset = env.Continue.SROffset
		resp.HasNext = true
	} else {
		resp.NextOffset = req.Options.Offset + len(results)
	}

	return resp
}
