package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kitbuilder587/wikisearch/internal/view"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
)

// requestID берёт X-Request-ID клиента, если это uuid, иначе выдаёт новый
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(ctxRequestID)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(ctxRequestID)),
		)
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

func (s *Server) recordMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.metrics == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordRequest("web", route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// rateLimit ограничивает запросы к API вики по IP клиента
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if s.limiter.Allow(ip) {
			c.Next()
			return
		}

		if s.metrics != nil {
			s.metrics.RecordRateLimitHit("web")
		}
		s.logger.Warn("rate limit exceeded",
			zap.String("client_ip", ip),
			zap.String("request_id", c.GetString(ctxRequestID)),
		)

		retry := time.Until(s.limiter.ResetTime(ip))
		if retry < time.Second {
			retry = time.Second
		}
		c.Header("Retry-After", strconv.Itoa(int(retry.Round(time.Second).Seconds())))
		if isAPI(c) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
				Error:   "rate_limited",
				Message: view.MsgRateLimited,
			})
			return
		}

		v := view.ResultsView{Query: c.Query("srsearch"), Message: view.MsgRateLimited}
		// htmx не вставляет ответы не-2xx, поэтому фрагмент отдаем с 200
		if isHTMX(c) {
			c.HTML(http.StatusOK, "results", v)
		} else {
			c.HTML(http.StatusTooManyRequests, "index.html", s.newPageData(v))
		}
		c.Abort()
	}
}

func isAPI(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/")
}
