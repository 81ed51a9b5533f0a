package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/arena"
	"github.com/park285/chess-arena/internal/chess"
	"github.com/park285/chess-arena/internal/config"
	"github.com/park285/chess-arena/internal/llm"
	"github.com/park285/chess-arena/internal/msgcat"
	"github.com/park285/chess-arena/internal/resolver"
	"github.com/park285/chess-arena/internal/store"
)

const mirrorBuffer = 256

// App holds the wired arena and everything it owns.
type App struct {
	Config     *config.AppConfig
	Logger     *zap.Logger
	Catalog    *msgcat.Catalog
	Provider   llm.Provider
	Resolver   *resolver.Resolver
	Board      *chess.Board
	Controller *arena.Controller
	Archive    store.Repository
	Live       *store.LiveStore

	openrouter   *llm.Client
	gemini       *llm.GeminiClient
	mirrorCancel context.CancelFunc
	mirrorDone   chan struct{}
}

// New wires config into a ready controller. DATABASE_URL selects the SQL
// archive (memory otherwise); REDIS_URL enables the live mirror.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	a.Catalog = cat

	if err := a.initProvider(ctx); err != nil {
		return nil, err
	}
	a.Resolver = resolver.New(a.Provider,
		resolver.WithTimeout(cfg.LLMTimeout),
		resolver.WithLogger(logger.Named("resolver")),
	)

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("open archive: %w", err)
		}
		a.Archive = repo
	} else {
		a.Archive = store.NewMemoryRepository()
	}

	a.Board = chess.NewBoard()
	a.Controller = arena.NewController(a.Board, a.Resolver, a.Provider,
		arena.WithArchiver(a.Archive),
		arena.WithCatalog(cat),
		arena.WithLogger(logger.Named("arena")),
	)
	if err := a.Controller.SetPace(cfg.MoveDelay); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		ttl := time.Duration(cfg.SnapshotTTLSec) * time.Second
		live, err := store.NewLiveStore(ctx, cfg.RedisURL, ttl, logger.Named("live"))
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("open live store: %w", err)
		}
		a.Live = live
		a.startMirror()
	}

	logger.Info("arena_ready",
		zap.String("provider", cfg.Provider),
		zap.Bool("credential", a.Provider.HasCredential()),
		zap.Bool("sql_archive", strings.TrimSpace(cfg.DatabaseURL) != ""),
		zap.Bool("live_mirror", a.Live != nil),
	)
	return a, nil
}

func (a *App) initProvider(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Provider {
	case config.ProviderGemini:
		g, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.LLMTimeout)
		if err != nil {
			return fmt.Errorf("init gemini: %w", err)
		}
		a.gemini = g
		a.Provider = g
	default:
		a.openrouter = llm.NewClient(cfg.OpenRouterAPIKey,
			llm.WithTimeout(cfg.LLMTimeout),
			llm.WithBaseURL(cfg.OpenRouterBaseURL),
			llm.WithAttribution(cfg.LLMReferer, cfg.LLMTitle),
		)
		a.Provider = a.openrouter
	}
	return nil
}

// startMirror relays bus events to Redis on its own subscription.
func (a *App) startMirror() {
	events, unsubscribe := a.Controller.Bus().Subscribe(mirrorBuffer)
	ctx, cancel := context.WithCancel(context.Background())
	a.mirrorCancel = cancel
	a.mirrorDone = make(chan struct{})
	go func() {
		defer close(a.mirrorDone)
		defer unsubscribe()
		a.Live.Mirror(ctx, events, a.Controller.Snapshot)
	}()
}

// SetAPIKey replaces the OpenRouter credential at runtime.
// Gemini 키는 런타임 교체 미지원: 재시작 필요.
func (a *App) SetAPIKey(key string) error {
	if a.openrouter == nil {
		return fmt.Errorf("%w: api key can only be changed for %s", config.ErrInvalidConfig, config.ProviderOpenRouter)
	}
	a.openrouter.SetAPIKey(key)
	a.Config.OpenRouterAPIKey = strings.TrimSpace(key)
	return nil
}

// SaveSettings persists the API key, model pair and move delay.
func (a *App) SaveSettings(white, black string) error {
	if w := strings.TrimSpace(white); w != "" {
		a.Config.WhiteModel = w
	}
	if b := strings.TrimSpace(black); b != "" {
		a.Config.BlackModel = b
	}
	a.Config.MoveDelay = a.Controller.Pace()
	if err := config.SaveSettings(a.Config.SettingsPath, config.SettingsFrom(a.Config)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	a.Logger.Info("settings_saved", zap.String("path", a.Config.SettingsPath))
	return nil
}

// Close stops the game, waits for the loop, then releases every resource.
func (a *App) Close(ctx context.Context) error {
	var errs error
	if a.Controller != nil {
		if err := a.Controller.Close(ctx); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("stop arena: %w", err))
		}
		a.Controller.Bus().Close()
	}
	if a.mirrorCancel != nil {
		a.mirrorCancel()
		select {
		case <-a.mirrorDone:
		case <-ctx.Done():
		}
	}
	if a.Live != nil {
		if err := a.Live.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close live store: %w", err))
		}
	}
	if a.Archive != nil {
		if err := a.Archive.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close archive: %w", err))
		}
	}
	if a.gemini != nil {
		if err := a.gemini.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close gemini: %w", err))
		}
	}
	return errs
}
