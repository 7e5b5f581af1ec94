package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kitbuilder587/wikisearch/internal/cache/memory"
	"github.com/kitbuilder587/wikisearch/internal/metrics"
	"github.com/kitbuilder587/wikisearch/internal/search"
	searchMock "github.com/kitbuilder587/wikisearch/internal/search/mock"
	"github.com/kitbuilder587/wikisearch/internal/service"
	"github.com/kitbuilder587/wikisearch/internal/view"
)

// fakeSender запоминает всё, что бот отправил бы в Telegram
type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.sent {
		if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeSender) callbacks() []tgbotapi.CallbackConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.CallbackConfig
	for _, c := range f.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb)
		}
	}
	return out
}

func (f *fakeSender) lastText() string {
	msgs := f.messages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Text
}

func articles(n int) []search.SearchResult {
	out := make([]search.SearchResult, n)
	for i := range out {
		out[i] = search.SearchResult{
			Title:   fmt.Sprintf("Article %d", i+1),
			Snippet: `about <span class="searchmatch">go</span>`,
			PageID:  int64(i + 1),
		}
	}
	return out
}

func createTestBot(t *testing.T, client *searchMock.Client, perMinute int) (*Bot, *fakeSender) {
	t.Helper()

	sessions := memory.New(memory.Config{})
	t.Cleanup(sessions.Stop)

	svc := service.NewSearchService(service.SearchServiceDeps{
		Client: client,
		Logger: zap.NewNop(),
	})

	fs := &fakeSender{}
	bot := newBot(BotConfig{RequestsPerMinute: perMinute}, BotDeps{
		Service:  svc,
		Builder:  view.NewBuilder("https://en.wikipedia.org/"),
		Sessions: sessions,
		Logger:   zap.NewNop(),
	}, fs)
	return bot, fs
}

func createTestMessage(userID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From: &tgbotapi.User{
			ID:       userID,
			UserName: "testuser",
		},
		Chat: &tgbotapi.Chat{
			ID: userID,
		},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		end := strings.IndexByte(text, ' ')
		if end < 0 {
			end = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return msg
}

func createTestCallback(userID int64, messageID int, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: userID},
		},
		Data: data,
	}
}

func TestNewBot_Defaults(t *testing.T) {
	svc := service.NewSearchService(service.SearchServiceDeps{Client: searchMock.New()})
	bot := newBot(BotConfig{}, BotDeps{Service: svc}, nil)

	if bot.batchSize != defaultBatchSize {
		t.Errorf("batchSize = %d, want %d", bot.batchSize, defaultBatchSize)
	}
	if bot.sessionTTL != defaultSessionTTL {
		t.Errorf("sessionTTL = %v, want %v", bot.sessionTTL, defaultSessionTTL)
	}
	if bot.sessions == nil || bot.rateLimiter == nil || bot.handler == nil {
		t.Error("newBot() left dependencies nil")
	}
	if bot.builder.BaseURL != view.DefaultBaseURL {
		t.Errorf("BaseURL = %q", bot.builder.BaseURL)
	}
	// без sender отправка - no-op
	if err := bot.Send(1, "hi"); err != nil {
		t.Errorf("Send() without sender error = %v", err)
	}
}

func TestBot_Sessions(t *testing.T) {
	bot, _ := createTestBot(t, searchMock.New(), 100)

	if _, ok := bot.loadSession(1); ok {
		t.Fatal("loadSession() found a session that was never saved")
	}

	req := search.SearchRequest{Query: "go", Options: search.SearchOptions{Filter: "14", BatchSize: 5}}
	bot.saveSession(1, req)

	got, ok := bot.loadSession(1)
	if !ok {
		t.Fatal("loadSession() = not found after save")
	}
	if got != req {
		t.Errorf("loadSession() = %+v, want %+v", got, req)
	}
	if _, ok := bot.loadSession(2); ok {
		t.Error("sessions must be per chat")
	}
}

func TestBot_HandleUpdate_Metrics(t *testing.T) {
	bot, _ := createTestBot(t, searchMock.New().WithResults(articles(3)), 100)
	m := metrics.New()
	bot.metrics = m

	bot.handleUpdate(context.Background(), tgbotapi.Update{Message: createTestMessage(1, "golang")})
	bot.handleUpdate(context.Background(), tgbotapi.Update{Message: createTestMessage(1, "/help")})
	bot.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: createTestCallback(1, 1, "p:0")})

	for _, kind := range []string{"query", "command", "callback"} {
		if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("telegram", kind, "processed")); got != 1 {
			t.Errorf("%s processed = %v, want 1", kind, got)
		}
	}
}

func TestBot_HandleUpdate_RecoversPanic(t *testing.T) {
	bot, _ := createTestBot(t, searchMock.New(), 100)
	bot.search = nil // handler упадёт на nil-сервисе
	m := metrics.New()
	bot.metrics = m

	bot.handleUpdate(context.Background(), tgbotapi.Update{Message: createTestMessage(1, "golang")})

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("telegram", "query", "panic")); got != 1 {
		t.Errorf("panic counter = %v, want 1", got)
	}
}

func TestBot_RateLimitHitRecorded(t *testing.T) {
	bot, fs := createTestBot(t, searchMock.New().WithResults(articles(1)), 1)
	m := metrics.New()
	bot.metrics = m

	bot.handler.HandleMessage(context.Background(), createTestMessage(1, "one"))
	bot.handler.HandleMessage(context.Background(), createTestMessage(1, "two"))

	if got := testutil.ToFloat64(m.RateLimitHitsTotal.WithLabelValues("telegram")); got != 1 {
		t.Errorf("rate limit hits = %v, want 1", got)
	}
	if fs.lastText() != msgRateLimited {
		t.Errorf("last message = %q, want rate limit notice", fs.lastText())
	}
}

func TestSessionExpires(t *testing.T) {
	sessions := memory.New(memory.Config{})
	defer sessions.Stop()

	svc := service.NewSearchService(service.SearchServiceDeps{Client: searchMock.New()})
	bot := newBot(BotConfig{SessionTTL: 20 * time.Millisecond}, BotDeps{Service: svc, Sessions: sessions}, nil)

	bot.saveSession(5, search.SearchRequest{Query: "go"})
	time.Sleep(50 * time.Millisecond)

	if _, ok := bot.loadSession(5); ok {
		t.Error("session should have expired")
	}
}
