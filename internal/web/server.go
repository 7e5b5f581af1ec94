// Package web serves the search form, result fragments and the JSON API over gin.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kitbuilder587/wikisearch/internal/metrics"
	"github.com/kitbuilder587/wikisearch/internal/ratelimit"
	"github.com/kitbuilder587/wikisearch/internal/service"
	"github.com/kitbuilder587/wikisearch/internal/view"
)

type Config struct {
	Addr string
	// Mode - режим gin: debug, release, test
	Mode            string
	AllowOrigins    []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

type Deps struct {
	Service service.SearchService
	Builder view.Builder
	Limiter *ratelimit.Limiter
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

type Server struct {
	config    Config
	service   service.SearchService
	builder   view.Builder
	limiter   *ratelimit.Limiter
	metrics   *metrics.Metrics
	logger    *zap.Logger
	templates *template.Template
	engine    *gin.Engine

	mu       sync.Mutex
	listener net.Listener
}

func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Service == nil {
		return nil, errors.New("web: search service is required")
	}
	cfg.setDefaults()
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Builder.BaseURL == "" {
		deps.Builder = view.NewBuilder("")
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		config:    cfg,
		service:   deps.Service,
		builder:   deps.Builder,
		limiter:   deps.Limiter,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		templates: tmpl,
	}
	s.engine = s.setupRoutes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), recovery(s.logger), accessLog(s.logger), s.recordMetrics())
	r.Use(cors.New(corsConfig(s.config.AllowOrigins)))
	r.SetHTMLTemplate(s.templates)

	r.GET("/health", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	r.GET("/", s.handleIndex)

	limited := r.Group("/", s.rateLimit())
	limited.GET("/search", s.handleSearch)
	limited.GET("/page/:id", s.handlePage)

	api := r.Group("/api", s.rateLimit())
	api.GET("/search", s.handleAPISearch)
	api.GET("/page/:id", s.handleAPIPage)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "HX-Request", "HX-Target", "HX-Current-URL", headerRequestID)
	cfg.ExposeHeaders = []string{"Content-Length", headerRequestID}
	cfg.MaxAge = 12 * time.Hour

	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// Run слушает Addr до отмены ctx, затем плавно гасит сервер
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Addr возвращает фактический адрес после старта (нужно при ":0")
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
