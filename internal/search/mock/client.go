package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kitbuilder587/wikisearch/internal/search"
)

type Client struct {
	Results   []search.SearchResult
	TotalHits int
	Pages     map[int64]*search.Page
	Error     error
	Delay     time.Duration

	CallCount   int
	PageCalls   int
	LastRequest search.SearchRequest
	AllRequests []search.SearchRequest

	mu sync.Mutex
}

func New() *Client {
	return &Client{Pages: make(map[int64]*search.Page)}
}

func (c *Client) WithResults(results []search.SearchResult) *Client {
	c.Results = results
	return c
}

// WithTotalHits задает totalhits; по умолчанию равен len(Results)
func (c *Client) WithTotalHits(n int) *Client {
	c.TotalHits = n
	return c
}

func (c *Client) WithPage(page *search.Page) *Client {
	c.Pages[page.PageID] = page
	return c
}

func (c *Client) WithError(err error) *Client {
	c.Error = err
	return c
}

func (c *Client) WithDelay(delay time.Duration) *Client {
	c.Delay = delay
	return c
}

func (c *Client) Search(ctx context.Context, req search.SearchRequest) (*search.SearchResponse, error) {
	c.mu.Lock()
	c.CallCount++
	c.LastRequest = req
	c.AllRequests = append(c.AllRequests, req)
	delay := c.Delay
	err := c.Error
	results := c.Results
	total := c.TotalHits
	c.mu.Unlock()

	if err := c.wait(ctx, delay); err != nil {
		return nil, err
	}

	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, &search.APIError{Code: search.CodeNoSearch, Info: "The \"srsearch\" parameter must be set."}
	}

	if total == 0 {
		total = len(results)
	}

	// окно [offset, offset+batch) как у настоящего API
	start := req.Options.Offset
	if start > len(results) {
		start = len(results)
	}
	end := len(results)
	if req.Options.BatchSize > 0 && start+req.Options.BatchSize < end {
		end = start + req.Options.BatchSize
	}
	page := append([]search.SearchResult(nil), results[start:end]...)

	next := start + len(page)
	return &search.SearchResponse{
		Query:      req.Query,
		TotalHits:  total,
		Offset:     req.Options.Offset,
		BatchSize:  req.Options.BatchSize,
		NextOffset: next,
		HasNext:    next < total,
		Results:    page,
	}, nil
}

func (c *Client) Page(ctx context.Context, pageID int64) (*search.Page, error) {
	c.mu.Lock()
	c.PageCalls++
	delay := c.Delay
	err := c.Error
	page, ok := c.Pages[pageID]
	c.mu.Unlock()

	if err := c.wait(ctx, delay); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, search.ErrPageNotFound
	}
	return page, nil
}

func (c *Client) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCount
}

func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount = 0
	c.PageCalls = 0
	c.LastRequest = search.SearchRequest{}
	c.AllRequests = nil
}
