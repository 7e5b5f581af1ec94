// Package view maps search responses and errors to what the front-ends show:
// result cards, a status message and the Prev/Next pager.
package view

import (
	"errors"
	"html/template"
	"net/url"
	"strconv"
	"strings"

	"github.com/kitbuilder587/wikisearch/internal/htmltext"
	"github.com/kitbuilder587/wikisearch/internal/search"
)

const (
	MsgPlaceholder    = "Type a term and press Search to look it up on the wiki."
	MsgEmptyQuery     = "Search query cannot be empty."
	MsgNoSearch       = "No search query provided."
	MsgNoResults      = "No results found."
	MsgFailure        = "We're sorry, an error was encountered retrieving the requested data."
	MsgQueryTooLong   = "Search query is too long."
	MsgInvalidOptions = "Invalid search options."
	MsgPageNotFound   = "The requested page does not exist."
	MsgRateLimited    = "Too many requests. Please wait a moment and try again."
)

const DefaultBaseURL = "https://en.wikipedia.org/"

// ErrorMessage returns the text shown to the user in place of results.
func ErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	// nosrsearch проверяем раньше ErrEmptyQuery: APIError совпадает с обоими
	case search.IsCode(err, search.CodeNoSearch):
		return MsgNoSearch
	case errors.Is(err, search.ErrEmptyQuery):
		return MsgEmptyQuery
	case errors.Is(err, search.ErrQueryTooLong):
		return MsgQueryTooLong
	case errors.Is(err, search.ErrInvalidOptions):
		return MsgInvalidOptions
	case errors.Is(err, search.ErrPageNotFound):
		return MsgPageNotFound
	default:
		return MsgFailure
	}
}

type ResultCard struct {
	Title string
	// Snippet - HTML-фрагмент из API, вставляется как есть
	Snippet   template.HTML
	PageID    int64
	URL       string
	WordCount int
}

type ResultsView struct {
	Query     string
	Options   search.SearchOptions
	Message   string
	Cards     []ResultCard
	TotalHits int
	Pager     Pager
}

// HasResults is false for placeholder, error and zero-hit views.
func (v ResultsView) HasResults() bool {
	return len(v.Cards) > 0
}

// PageURL builds the /search link for the same query at another offset.
func (v ResultsView) PageURL(offset int) string {
	q := url.Values{}
	q.Set("srsearch", v.Query)
	if v.Options.Filter != "" {
		q.Set("filter", v.Options.Filter)
	}
	if v.Options.BatchSize > 0 {
		q.Set("batchSize", strconv.Itoa(v.Options.BatchSize))
	}
	if v.Options.Sort != "" {
		q.Set("sort", v.Options.Sort)
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return "/search?" + q.Encode()
}

type PageView struct {
	PageID  int64
	Title   string
	HTML    template.HTML
	URL     string
	Message string
}

type Builder struct {
	// BaseURL - корень вики для ссылок на статьи
	BaseURL string
}

func NewBuilder(baseURL string) Builder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Builder{BaseURL: baseURL}
}

func (b Builder) ArticleURL(pageID int64) string {
	base := b.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/?curid=" + strconv.FormatInt(pageID, 10)
}

func (b Builder) Placeholder() ResultsView {
	return ResultsView{Message: MsgPlaceholder}
}

// FromResponse renders one card per result, in API order.
func (b Builder) FromResponse(req search.SearchRequest, resp *search.SearchResponse) ResultsView {
	v := ResultsView{
		Query:   req.Query,
		Options: req.Options,
	}
	if resp == nil || resp.TotalHits == 0 {
		v.Message = MsgNoResults
		return v
	}

	batch := req.Options.BatchSize
	if batch <= 0 {
		batch = resp.BatchSize
	}
	v.TotalHits = resp.TotalHits
	v.Pager = NewPager(req.Options.Offset, batch, resp.TotalHits)

	// смещение за концом выдачи: карточек нет, но Prev остается
	if len(resp.Results) == 0 {
		v.Message = MsgNoResults
		return v
	}

	v.Cards = make([]ResultCard, 0, len(resp.Results))
	for _, r := range resp.Results {
		v.Cards = append(v.Cards, ResultCard{
			Title:     r.Title,
			Snippet:   template.HTML(r.Snippet),
			PageID:    r.PageID,
			URL:       b.ArticleURL(r.PageID),
			WordCount: r.WordCount,
		})
	}
	return v
}

func (b Builder) FromError(req search.SearchRequest, err error) ResultsView {
	return ResultsView{
		Query:   req.Query,
		Options: req.Options,
		Message: ErrorMessage(err),
	}
}

func (b Builder) FromPage(page *search.Page) PageView {
	if page == nil {
		return PageView{Message: MsgPageNotFound}
	}
	return PageView{
		PageID: page.PageID,
		Title:  page.Title,
		HTML:   template.HTML(page.HTML),
		URL:    b.ArticleURL(page.PageID),
	}
}

func (b Builder) FromPageError(pageID int64, err error) PageView {
	return PageView{PageID: pageID, Message: ErrorMessage(err)}
}

// Excerpt returns the first max runes of the page text, markup removed.
func Excerpt(page *search.Page, max int) string {
	if page == nil {
		return ""
	}
	return htmltext.Truncate(htmltext.Text(page.HTML), max)
}
