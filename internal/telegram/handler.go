package telegram

import (
	"context"
	"errors"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/wikisearch/internal/search"
	"github.com/kitbuilder587/wikisearch/internal/view"
)

const (
	msgRateLimited    = "Too many requests. Please wait a minute."
	msgEmptyQuery     = "Send me a search term, for example: /search golang"
	msgUnknownCommand = "Unknown command. Use /help to see what I can do."
	msgSessionExpired = "This search has expired. Send the query again."
)

const helpText = `<b>Wiki search bot</b>

Send any text to search the wiki.

<b>Commands:</b>
/search term - search articles
/category term - search categories
/file term - search files
/page ID - show the beginning of a page
/help - show this help

Use the « Prev and Next » buttons under the results to page through them.`

type Handler struct {
	bot *Bot
}

func NewHandler(bot *Bot) *Handler {
	return &Handler{bot: bot}
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}

	var userID int64
	var username string
	if msg.From != nil {
		userID = msg.From.ID
		username = msg.From.UserName
	}
	h.bot.logger.Info("received message",
		zap.Int64("user_id", userID),
		zap.String("username", username),
		zap.Bool("is_command", msg.IsCommand()),
	)

	if !msg.IsCommand() {
		h.handleQuery(ctx, msg)
		return
	}

	cmd := msg.Command()
	switch {
	case cmd == "start", cmd == "help":
		h.bot.Send(msg.Chat.ID, helpText)
	case cmd == "search", cmd == "s", cmd == "category", cmd == "file":
		h.handleQuery(ctx, msg)
	case cmd == "page", strings.HasPrefix(cmd, "page_"):
		h.handlePage(ctx, msg, cmd)
	default:
		h.bot.Send(msg.Chat.ID, msgUnknownCommand)
	}
}

func (h *Handler) handleQuery(ctx context.Context, msg *tgbotapi.Message) {
	query, opts := ParseQueryCommand(msg.Text)
	if query == "" {
		h.bot.Send(msg.Chat.ID, msgEmptyQuery)
		return
	}
	if !h.allow(msg.Chat.ID, msg.From) {
		return
	}

	opts.BatchSize = h.bot.batchSize
	req := search.SearchRequest{Query: query, Options: opts}

	h.bot.SendTyping(msg.Chat.ID)

	text, kb, err := h.runSearch(ctx, req)
	if err == nil {
		h.bot.saveSession(msg.Chat.ID, req)
	}

	parts := SplitMessage(text, maxMessageLen)
	for i, part := range parts {
		var markup *tgbotapi.InlineKeyboardMarkup
		if i == len(parts)-1 {
			markup = kb
		}
		if err := h.bot.SendWithKeyboard(msg.Chat.ID, part, markup); err != nil {
			h.bot.logger.Error("failed to send message", zap.Error(err))
		}
	}
}

// HandleCallback обрабатывает нажатие Prev/Next: тот же запрос, другой offset
func (h *Handler) HandleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	offset, ok := ParseCallbackData(cb.Data)
	if !ok {
		h.bot.AnswerCallback(cb.ID, "")
		return
	}

	req, ok := h.bot.loadSession(chatID)
	if !ok {
		h.bot.AnswerCallback(cb.ID, msgSessionExpired)
		return
	}
	if !h.allow(chatID, cb.From) {
		h.bot.AnswerCallback(cb.ID, msgRateLimited)
		return
	}
	h.bot.AnswerCallback(cb.ID, "")

	req.Options.Offset = offset
	text, kb, _ := h.runSearch(ctx, req)

	// в отредактированное сообщение влезает только первая часть
	text = SplitMessage(text, maxMessageLen)[0]
	if err := h.bot.Edit(chatID, cb.Message.MessageID, text, kb); err != nil {
		h.bot.logger.Error("failed to edit message", zap.Error(err))
	}
}

func (h *Handler) runSearch(ctx context.Context, req search.SearchRequest) (string, *tgbotapi.InlineKeyboardMarkup, error) {
	resp, err := h.bot.search.Search(ctx, req)
	if err != nil {
		h.bot.logger.Error("search failed",
			zap.Error(err),
			zap.String("query", req.Query),
			zap.Int("offset", req.Options.Offset),
		)
		return html.EscapeString(mapErrorToMessage(err)), nil, err
	}

	v := h.bot.builder.FromResponse(req, resp)
	text := FormatResults(v)
	if kb, ok := Keyboard(v.Pager); ok {
		return text, &kb, nil
	}
	return text, nil, nil
}

func (h *Handler) handlePage(ctx context.Context, msg *tgbotapi.Message, cmd string) {
	id, err := ParsePageID(cmd, msg.CommandArguments())
	if err != nil {
		h.bot.Send(msg.Chat.ID, "Usage: /page ID, for example /page 12345")
		return
	}
	if !h.allow(msg.Chat.ID, msg.From) {
		return
	}

	h.bot.SendTyping(msg.Chat.ID)

	page, err := h.bot.search.Page(ctx, id)
	if err != nil {
		h.bot.logger.Error("page fetch failed", zap.Error(err), zap.Int64("page_id", id))
		h.bot.Send(msg.Chat.ID, html.EscapeString(mapErrorToMessage(err)))
		return
	}

	text := FormatPage(h.bot.builder.FromPage(page), view.Excerpt(page, pageExcerptLen))
	for _, part := range SplitMessage(text, maxMessageLen) {
		if err := h.bot.Send(msg.Chat.ID, part); err != nil {
			h.bot.logger.Error("failed to send message", zap.Error(err))
		}
	}
}

// allow проверяет лимит по пользователю; при отказе сообщает об этом в чат
func (h *Handler) allow(chatID int64, from *tgbotapi.User) bool {
	key := strconv.FormatInt(chatID, 10)
	if from != nil {
		key = strconv.FormatInt(from.ID, 10)
	}
	if h.bot.rateLimiter.Allow(key) {
		return true
	}

	h.bot.logger.Warn("rate limit exceeded",
		zap.String("user", key),
		zap.Time("reset_at", h.bot.rateLimiter.ResetTime(key)),
	)
	h.bot.RecordRateLimitHit()
	h.bot.Send(chatID, msgRateLimited)
	return false
}

func mapErrorToMessage(err error) string {
	switch {
	case search.IsCode(err, search.CodeNoSearch), errors.Is(err, search.ErrEmptyQuery):
		return msgEmptyQuery
	case errors.Is(err, context.DeadlineExceeded):
		return "The wiki took too long to answer. Please try again later."
	default:
		return view.ErrorMessage(err)
	}
}
