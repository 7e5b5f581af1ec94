package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/wikisearch/internal/ratelimit"
	"github.com/kitbuilder587/wikisearch/internal/telegram"
	"github.com/kitbuilder587/wikisearch/internal/web"
)

var (
	serveAddr  string
	serveNoBot bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web front-end and JSON API",
	Long: `Start the HTTP server with the search page, the htmx partials and the /api endpoints.
When TELEGRAM_BOT_TOKEN is set the Telegram bot runs in the same process.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (overrides HTTP_ADDR)")
	serveCmd.Flags().BoolVar(&serveNoBot, "no-bot", false, "Do not start the Telegram bot even if a token is configured")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if serveAddr != "" {
		a.cfg.HTTP.Addr = serveAddr
	}

	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: a.cfg.RateLimit.RequestsPerMinute})

	srv, err := web.New(web.Config{
		Addr:            a.cfg.HTTP.Addr,
		Mode:            a.cfg.HTTP.Mode,
		AllowOrigins:    a.cfg.HTTP.AllowOrigins,
		ShutdownTimeout: a.cfg.HTTP.ShutdownTimeout,
	}, web.Deps{
		Service: a.service,
		Builder: a.builder,
		Limiter: limiter,
		Metrics: a.metrics,
		Logger:  a.logger.Named("web"),
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		limiter.Run(gctx, 5*time.Minute)
		return nil
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if a.cfg.BotEnabled() && !serveNoBot {
		bot, err := newTelegramBot(a)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			return bot.Run(gctx)
		})
	} else {
		a.logger.Info("telegram bot disabled")
	}

	a.logger.Info("wikisearch started",
		zap.String("addr", a.cfg.HTTP.Addr),
		zap.String("wiki_api", a.cfg.Wiki.APIURL),
	)

	if err := g.Wait(); err != nil {
		a.logger.Error("stopped with error", zap.Error(err))
		return err
	}
	a.logger.Info("wikisearch stopped")
	return nil
}

func newTelegramBot(a *app) (*telegram.Bot, error) {
	return telegram.New(telegram.BotConfig{
		Token:             a.cfg.Telegram.Token,
		Debug:             a.cfg.Telegram.Debug,
		RequestsPerMinute: a.cfg.RateLimit.RequestsPerMinute,
		BatchSize:         a.cfg.Telegram.BatchSize,
	}, telegram.BotDeps{
		Service:  a.service,
		Builder:  a.builder,
		Sessions: a.cache,
		Logger:   a.logger.Named("telegram"),
		Metrics:  a.metrics,
	})
}
