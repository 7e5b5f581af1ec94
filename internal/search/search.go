package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEmptyQuery     = errors.New("search query cannot be empty")
	ErrQueryTooLong   = errors.New("search query too long")
	ErrInvalidOptions = errors.New("invalid search options")
	ErrRequestFailed  = errors.New("search request failed")
	ErrBadResponse    = errors.New("malformed api response")
	ErrPageNotFound   = errors.New("page not found")
)

const (
	// лимит CirrusSearch на длину srsearch
	MaxQueryLength = 300
	MaxBatchSize   = 500

	DefaultBatchSize = 10

	// код ошибки API, когда srsearch не передан
	CodeNoSearch = "nosrsearch"
)

var validSorts = map[string]bool{
	"relevance":             true,
	"create_timestamp_asc":  true,
	"create_timestamp_desc": true,
	"incoming_links_asc":    true,
	"incoming_links_desc":   true,
	"just_match":            true,
	"last_edit_asc":         true,
	"last_edit_desc":        true,
	"none":                  true,
	"random":                true,
	"user_random":           true,
}

type SearchClient interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	Page(ctx context.Context, pageID int64) (*Page, error)
}

// SearchOptions mirror the optional query-string parameters of list=search.
// Zero values are not sent.
type SearchOptions struct {
	Filter    string `json:"filter,omitempty"`
	BatchSize int    `json:"batchSize,omitempty"`
	Sort      string `json:"sort,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

func (o SearchOptions) Validate() error {
	if o.BatchSize < 0 {
		return fmt.Errorf("%w: batch size must be non-negative", ErrInvalidOptions)
	}
	if o.BatchSize > MaxBatchSize {
		return fmt.Errorf("%w: batch size cannot exceed %d", ErrInvalidOptions, MaxBatchSize)
	}
	if o.Offset < 0 {
		return fmt.Errorf("%w: offset must be non-negative", ErrInvalidOptions)
	}
	if o.Sort != "" && !validSorts[o.Sort] {
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidOptions, o.Sort)
	}
	if o.Filter == "" {
		return nil
	}
	// srnamespace: "0", "0|14" или "*"
	for _, ns := range strings.Split(o.Filter, "|") {
		if !isNamespace(ns) {
			return fmt.Errorf("%w: bad namespace filter %q", ErrInvalidOptions, o.Filter)
		}
	}
	return nil
}

// WithDefaults fills BatchSize when it was not given.
func (o SearchOptions) WithDefaults(batchSize int) SearchOptions {
	if o.BatchSize == 0 {
		if batchSize <= 0 {
			batchSize = DefaultBatchSize
		}
		o.BatchSize = batchSize
	}
	return o
}

func isNamespace(s string) bool {
	if s == "*" {
		return true
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type SearchRequest struct {
	Query   string
	Options SearchOptions
}

func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if len([]rune(r.Query)) > MaxQueryLength {
		return ErrQueryTooLong
	}
	return r.Options.Validate()
}

func (r *SearchRequest) Sanitize() {
	r.Query = strings.TrimSpace(r.Query)
	r.Options.Filter = strings.TrimSpace(r.Options.Filter)
	r.Options.Sort = strings.TrimSpace(r.Options.Sort)
}

type SearchResponse struct {
	Query      string         `json:"query"`
	TotalHits  int            `json:"totalHits"`
	Offset     int            `json:"offset"`
	BatchSize  int            `json:"batchSize"`
	NextOffset int            `json:"nextOffset"`
	HasNext    bool           `json:"hasNext"`
	Results    []SearchResult `json:"results"`
}

type SearchResult struct {
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet"`
	PageID    int64     `json:"pageId"`
	WordCount int       `json:"wordCount,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type Page struct {
	PageID int64  `json:"pageId"`
	Title  string `json:"title"`
	HTML   string `json:"html"`
}

// APIError - ошибка, которую API вернул в поле error ответа
type APIError struct {
	Code string
	Info string
}

func (e *APIError) Error() string {
	if e.Info == "" {
		return "api error: " + e.Code
	}
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

// Is сопоставляет nosrsearch с ErrEmptyQuery: это одна и та же ситуация,
// только обнаруженная на стороне API.
func (e *APIError) Is(target error) bool {
	return target == ErrEmptyQuery && e.Code == CodeNoSearch
}

// IsCode reports whether err carries an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
