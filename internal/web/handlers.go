package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kitbuilder587/wikisearch/internal/search"
	"github.com/kitbuilder587/wikisearch/internal/view"
)

// pageData - данные полной страницы index.html
type pageData struct {
	Results view.ResultsView
	Page    *view.PageView
	Filters []choice
	Sorts   []choice
	Batches []int
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type apiSearchResponse struct {
	*search.SearchResponse
	Pager view.Pager `json:"pager"`
}

func (s *Server) newPageData(results view.ResultsView) pageData {
	return pageData{
		Results: results,
		Filters: filterChoices,
		Sorts:   sortChoices,
		Batches: batchChoices,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "wikisearch",
	})
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", s.newPageData(s.builder.Placeholder()))
}

// handleSearch всегда отвечает 200: ошибка - это текст в области результатов
func (s *Server) handleSearch(c *gin.Context) {
	req, err := parseSearchRequest(c)

	var v view.ResultsView
	if err == nil {
		var resp *search.SearchResponse
		resp, err = s.service.Search(c.Request.Context(), req)
		if err == nil {
			v = s.builder.FromResponse(req, resp)
		}
	}
	if err != nil {
		_ = c.Error(err)
		v = s.builder.FromError(req, err)
	}

	if isHTMX(c) {
		c.HTML(http.StatusOK, "results", v)
		return
	}
	c.HTML(http.StatusOK, "index.html", s.newPageData(v))
}

func (s *Server) handlePage(c *gin.Context) {
	var pv view.PageView

	id, err := parsePageID(c.Param("id"))
	if err == nil {
		var page *search.Page
		page, err = s.service.Page(c.Request.Context(), id)
		if err == nil {
			pv = s.builder.FromPage(page)
		}
	}
	if err != nil {
		_ = c.Error(err)
		pv = s.builder.FromPageError(id, err)
	}

	if isHTMX(c) {
		c.HTML(http.StatusOK, "page", pv)
		return
	}
	data := s.newPageData(view.ResultsView{})
	data.Page = &pv
	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) handleAPISearch(c *gin.Context) {
	req, err := parseSearchRequest(c)
	if err != nil {
		s.abortJSON(c, err)
		return
	}

	resp, err := s.service.Search(c.Request.Context(), req)
	if err != nil {
		s.abortJSON(c, err)
		return
	}

	batch := req.Options.BatchSize
	if batch == 0 {
		batch = resp.BatchSize
	}
	pager := view.Pager{}
	if resp.TotalHits > 0 {
		pager = view.NewPager(req.Options.Offset, batch, resp.TotalHits)
	}

	c.JSON(http.StatusOK, apiSearchResponse{SearchResponse: resp, Pager: pager})
}

func (s *Server) handleAPIPage(c *gin.Context) {
	id, err := parsePageID(c.Param("id"))
	if err != nil {
		s.abortJSON(c, err)
		return
	}

	page, err := s.service.Page(c.Request.Context(), id)
	if err != nil {
		s.abortJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) abortJSON(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), errorBody{
		Error:   errorCode(err),
		Message: view.ErrorMessage(err),
	})
}

func parseSearchRequest(c *gin.Context) (search.SearchRequest, error) {
	req := search.SearchRequest{
		Query: c.Query("srsearch"),
		Options: search.SearchOptions{
			Filter: c.Query("filter"),
			Sort:   c.Query("sort"),
		},
	}
	req.Sanitize()

	var err error
	if req.Options.BatchSize, err = queryInt(c, "batchSize"); err != nil {
		return req, err
	}
	if req.Options.Offset, err = queryInt(c, "offset"); err != nil {
		return req, err
	}
	return req, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", search.ErrInvalidOptions, key)
	}
	return n, nil
}

func parsePageID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", search.ErrPageNotFound, raw)
	}
	return id, nil
}

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrEmptyQuery),
		errors.Is(err, search.ErrQueryTooLong),
		errors.Is(err, search.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrPageNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func errorCode(err error) string {
	var apiErr *search.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.Is(err, search.ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, search.ErrQueryTooLong):
		return "query_too_long"
	case errors.Is(err, search.ErrInvalidOptions):
		return "invalid_options"
	case errors.Is(err, search.ErrPageNotFound):
		return "page_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "upstream_error"
	}
}
