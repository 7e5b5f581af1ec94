package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingToken     = errors.New("TELEGRAM_BOT_TOKEN is required")
	ErrInvalidAPIURL    = errors.New("WIKI_API_URL must be an absolute http(s) URL")
	ErrInvalidBaseURL   = errors.New("WIKI_BASE_URL must be an absolute http(s) URL")
	ErrInvalidBatchSize = errors.New("batch size must be between 1 and 500")
	ErrInvalidMode      = errors.New("GIN_MODE must be debug, release or test")
	ErrInvalidTimeout   = errors.New("WIKI_TIMEOUT_SEC must be positive")
)

const (
	maxBatchSize     = 500
	defaultEnvFile   = ".env"
	defaultUserAgent = "wikisearch/1.0 (https://github.com/kitbuilder587/wikisearch)"
)

type Config struct {
	Wiki      WikiConfig
	HTTP      HTTPConfig
	Telegram  TelegramConfig
	Log       LogConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Search    SearchConfig
}

type WikiConfig struct {
	APIURL string
	// BaseURL - корень сайта для ссылок на статьи (?curid=)
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

type HTTPConfig struct {
	Addr            string
	Mode            string
	AllowOrigins    []string
	ShutdownTimeout time.Duration
}

type TelegramConfig struct {
	Token     string
	Debug     bool
	BatchSize int
}

type LogConfig struct {
	Level string
	// Format: json или console; пусто - console для debug, иначе json
	Format string
}

type CacheConfig struct {
	TTL        time.Duration
	PageTTL    time.Duration
	MaxEntries int
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type SearchConfig struct {
	DefaultBatchSize int
}

// LoadEnvFile подгружает переменные из .env, не перетирая уже заданные.
// Отсутствие файла по умолчанию - не ошибка; явно указанный файл обязан существовать.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return nil
		}
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func Load() (*Config, error) {
	cfg := &Config{
		Wiki: WikiConfig{
			APIURL:        getEnvOrDefault("WIKI_API_URL", "https://en.wikipedia.org/w/api.php"),
			BaseURL:       getEnvOrDefault("WIKI_BASE_URL", "https://en.wikipedia.org/"),
			UserAgent:     getEnvOrDefault("WIKI_USER_AGENT", defaultUserAgent),
			Timeout:       time.Duration(getEnvIntOrDefault("WIKI_TIMEOUT_SEC", 20)) * time.Second,
			RatePerSecond: getEnvFloatOrDefault("WIKI_RATE_PER_SEC", 5),
			Burst:         getEnvIntOrDefault("WIKI_BURST", 5),
		},
		HTTP: HTTPConfig{
			Addr:            getEnvOrDefault("HTTP_ADDR", ":8080"),
			Mode:            getEnvOrDefault("GIN_MODE", "release"),
			AllowOrigins:    splitList(getEnvOrDefault("CORS_ALLOW_ORIGINS", "*")),
			ShutdownTimeout: time.Duration(getEnvIntOrDefault("SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
		},
		Telegram: TelegramConfig{
			Token:     os.Getenv("TELEGRAM_BOT_TOKEN"),
			Debug:     getEnvBoolOrDefault("TELEGRAM_DEBUG", false),
			BatchSize: getEnvIntOrDefault("TELEGRAM_BATCH_SIZE", 5),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: os.Getenv("LOG_FORMAT"),
		},
		Cache: CacheConfig{
			TTL:        time.Duration(getEnvIntOrDefault("CACHE_TTL_SEC", 300)) * time.Second,
			PageTTL:    time.Duration(getEnvIntOrDefault("CACHE_PAGE_TTL_SEC", 3600)) * time.Second,
			MaxEntries: getEnvIntOrDefault("CACHE_MAX_ENTRIES", 10000),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", 30),
		},
		Search: SearchConfig{
			DefaultBatchSize: getEnvIntOrDefault("DEFAULT_BATCH_SIZE", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if !isHTTPURL(c.Wiki.APIURL) {
		return ErrInvalidAPIURL
	}
	if !isHTTPURL(c.Wiki.BaseURL) {
		return ErrInvalidBaseURL
	}
	if c.Wiki.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if !validBatch(c.Search.DefaultBatchSize) {
		return fmt.Errorf("DEFAULT_BATCH_SIZE: %w", ErrInvalidBatchSize)
	}
	if c.Telegram.BatchSize != 0 && !validBatch(c.Telegram.BatchSize) {
		return fmt.Errorf("TELEGRAM_BATCH_SIZE: %w", ErrInvalidBatchSize)
	}
	switch c.HTTP.Mode {
	case "debug", "release", "test":
	default:
		return ErrInvalidMode
	}
	return nil
}

// BotEnabled: бот запускается только при заданном токене
func (c *Config) BotEnabled() bool {
	return c.Telegram.Token != ""
}

func (c *Config) RequireTelegram() error {
	if !c.BotEnabled() {
		return ErrMissingToken
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validBatch(n int) bool {
	return n >= 1 && n <= maxBatchSize
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
