// Package telegram exposes the wiki search through a Telegram bot.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/wikisearch/internal/cache"
	"github.com/kitbuilder587/wikisearch/internal/cache/memory"
	"github.com/kitbuilder587/wikisearch/internal/metrics"
	"github.com/kitbuilder587/wikisearch/internal/ratelimit"
	"github.com/kitbuilder587/wikisearch/internal/search"
	"github.com/kitbuilder587/wikisearch/internal/service"
	"github.com/kitbuilder587/wikisearch/internal/view"
)

const (
	defaultBatchSize  = 5
	defaultSessionTTL = time.Hour
)

type BotConfig struct {
	Token             string
	Debug             bool
	RequestsPerMinute int
	// BatchSize - результатов на одно сообщение
	BatchSize  int
	SessionTTL time.Duration
}

type BotDeps struct {
	Service service.SearchService
	Builder view.Builder
	// Sessions хранит последний запрос чата для кнопок Prev/Next
	Sessions cache.Cache
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// sender - часть BotAPI, которой пользуется бот
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	api         *tgbotapi.BotAPI
	sender      sender
	search      service.SearchService
	builder     view.Builder
	sessions    cache.Cache
	logger      *zap.Logger
	metrics     *metrics.Metrics
	handler     *Handler
	rateLimiter *ratelimit.Limiter
	batchSize   int
	sessionTTL  time.Duration
	wg          sync.WaitGroup
}

func New(cfg BotConfig, deps BotDeps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	api.Debug = cfg.Debug

	bot := newBot(cfg, deps, api)
	bot.api = api

	bot.logger.Info("telegram bot authorized",
		zap.String("username", api.Self.UserName),
	)

	return bot, nil
}

func newBot(cfg BotConfig, deps BotDeps, s sender) *Bot {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Sessions == nil {
		deps.Sessions = memory.New(memory.Config{})
	}
	if deps.Builder.BaseURL == "" {
		deps.Builder = view.NewBuilder("")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}

	bot := &Bot{
		sender:   s,
		search:   deps.Service,
		builder:  deps.Builder,
		sessions: deps.Sessions,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		rateLimiter: ratelimit.New(ratelimit.Config{
			RequestsPerMinute: cfg.RequestsPerMinute,
		}),
		batchSize:  cfg.BatchSize,
		sessionTTL: cfg.SessionTTL,
	}
	bot.handler = NewHandler(bot)
	return bot
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	go b.rateLimiter.Run(ctx, 5*time.Minute)

	b.logger.Info("bot started, waiting for updates")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bot stopping, waiting for handlers to finish")
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			b.logger.Info("all handlers finished")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			if update.Message == nil && update.CallbackQuery == nil {
				continue
			}
			b.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.wg.Done()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	startTime := time.Now()
	reqType := updateType(update)

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic in update handler",
				zap.Any("panic", r),
				zap.Int64("chat_id", updateChatID(update)),
			)
			if b.metrics != nil {
				b.metrics.RecordRequest("telegram", reqType, "panic", time.Since(startTime))
			}
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handler.HandleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handler.HandleMessage(ctx, update.Message)
	}

	if b.metrics != nil {
		b.metrics.RecordRequest("telegram", reqType, "processed", time.Since(startTime))
	}
}

func updateType(update tgbotapi.Update) string {
	switch {
	case update.CallbackQuery != nil:
		return "callback"
	case update.Message != nil && update.Message.IsCommand():
		return "command"
	default:
		return "query"
	}
}

func updateChatID(update tgbotapi.Update) int64 {
	if chat := update.FromChat(); chat != nil {
		return chat.ID
	}
	return 0
}

func (b *Bot) Send(chatID int64, text string) error {
	return b.SendWithKeyboard(chatID, text, nil)
}

func (b *Bot) SendWithKeyboard(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	if b.sender == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	_, err := b.sender.Send(msg)
	return err
}

// Edit заменяет текст и кнопки сообщения с выдачей
func (b *Bot) Edit(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	if b.sender == nil {
		return nil
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = kb
	_, err := b.sender.Send(edit)
	return err
}

func (b *Bot) AnswerCallback(callbackID, text string) {
	if b.sender == nil {
		return
	}
	if _, err := b.sender.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Warn("failed to answer callback", zap.Error(err))
	}
}

func (b *Bot) SendTyping(chatID int64) {
	if b.sender == nil {
		return
	}
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	b.sender.Request(action)
}

func (b *Bot) RecordRateLimitHit() {
	if b.metrics != nil {
		b.metrics.RecordRateLimitHit("telegram")
	}
}

func (b *Bot) saveSession(chatID int64, req search.SearchRequest) {
	b.sessions.Set(sessionKey(chatID), req, b.sessionTTL)
}

func (b *Bot) loadSession(chatID int64) (search.SearchRequest, bool) {
	v, ok := b.sessions.Get(sessionKey(chatID))
	if !ok {
		return search.SearchRequest{}, false
	}
	req, ok := v.(search.SearchRequest)
	return req, ok
}

func sessionKey(chatID int64) string {
	return "tg:session:" + strconv.FormatInt(chatID, 10)
}
