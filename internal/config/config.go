package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"

	DefaultMoveDelay    = 2 * time.Second
	DefaultLLMTimeout   = 30 * time.Second
	DefaultSettingsPath = "arena.yaml"
)

// DefaultModels is the model list offered when the catalogue is unavailable.
var DefaultModels = []string{
	"openai/gpt-3.5-turbo",
	"meta-llama/llama-2-70b-chat",
	"anthropic/claude-3-haiku",
	"mistralai/mistral-7b-instruct",
	"google/gemma-7b-it",
}

var ErrInvalidConfig = errors.New("invalid configuration")

type AppConfig struct {
	Provider          string `validate:"oneof=openrouter gemini"`
	OpenRouterAPIKey  string
	OpenRouterBaseURL string `validate:"omitempty,url"`
	GeminiAPIKey      string

	WhiteModel string
	BlackModel string
	MoveDelay  time.Duration

	LLMTimeout time.Duration
	LLMReferer string
	LLMTitle   string

	RedisURL       string
	DatabaseURL    string
	SnapshotTTLSec int `validate:"min=0"`

	HTTPAddr     string
	WSAddr       string
	MessagesDir  string
	SettingsPath string
}

var validate = validator.New()

// APIKey returns the credential of the selected provider.
func (c *AppConfig) APIKey() string {
	if c.Provider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.OpenRouterAPIKey
}

// Load reads .env (when present), the YAML settings file, then the process
// environment. Environment values win over saved settings.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		Provider:       ProviderOpenRouter,
		WhiteModel:     DefaultModels[0],
		BlackModel:     DefaultModels[1],
		MoveDelay:      DefaultMoveDelay,
		LLMTimeout:     DefaultLLMTimeout,
		LLMReferer:     "https://github.com/ai-chess-arena",
		LLMTitle:       "AI Chess Arena",
		SnapshotTTLSec: 3600,
		HTTPAddr:       ":8080",
		WSAddr:         ":8081",
		SettingsPath:   DefaultSettingsPath,
	}

	if v := strings.TrimSpace(os.Getenv("ARENA_SETTINGS")); v != "" {
		cfg.SettingsPath = v
	}
	settings, err := LoadSettings(cfg.SettingsPath)
	if err != nil {
		return nil, err
	}
	settings.applyTo(cfg)

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER"))); v != "" {
		cfg.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")); v != "" {
		cfg.OpenRouterAPIKey = v
	}
	cfg.OpenRouterBaseURL = strings.TrimSpace(os.Getenv("OPENROUTER_BASE_URL"))
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))

	if v := strings.TrimSpace(os.Getenv("WHITE_MODEL")); v != "" {
		cfg.WhiteModel = v
	}
	if v := strings.TrimSpace(os.Getenv("BLACK_MODEL")); v != "" {
		cfg.BlackModel = v
	}
	if d, ok := ParseDelay(os.Getenv("MOVE_DELAY")); ok {
		cfg.MoveDelay = d
	}
	if d, ok := ParseDelay(os.Getenv("LLM_TIMEOUT")); ok && d > 0 {
		cfg.LLMTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv("LLM_REFERER")); v != "" {
		cfg.LLMReferer = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_TITLE")); v != "" {
		cfg.LLMTitle = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if v := strings.TrimSpace(os.Getenv("SNAPSHOT_TTL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.SnapshotTTLSec = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WS_ADDR")); v != "" {
		cfg.WSAddr = v
	}
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %s validation", ErrInvalidConfig, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.MoveDelay < 0 {
		return fmt.Errorf("%w: MOVE_DELAY must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ParseDelay accepts a Go duration ("1500ms") or plain seconds ("2.5").
func ParseDelay(raw string) (time.Duration, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d, true
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
		return time.Duration(f * float64(time.Second)), true
	}
	return 0, false
}
