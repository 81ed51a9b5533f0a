package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/chess-arena/internal/arena"
	"github.com/park285/chess-arena/internal/config"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		Provider:     config.ProviderOpenRouter,
		WhiteModel:   "m/white",
		BlackModel:   "m/black",
		MoveDelay:    time.Second,
		LLMTimeout:   time.Second,
		SettingsPath: filepath.Join(t.TempDir(), "arena.yaml"),
	}
}

func TestNewWithoutStores(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Live != nil || a.Archive == nil {
		t.Fatalf("expected memory archive and no live store")
	}
	if a.Controller.Pace() != time.Second {
		t.Fatalf("pace not applied: %v", a.Controller.Pace())
	}
	if err := a.Controller.Start("m/white", "m/black", -1); err != arena.ErrMissingCredential {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if err := a.SetAPIKey("sk-test"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	if !a.Provider.HasCredential() {
		t.Fatalf("credential must be set")
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewWithSQLiteAndRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := testConfig(t)
	cfg.DatabaseURL = "sqlite::memory:"
	cfg.RedisURL = fmt.Sprintf("redis://%s/0", mr.Addr())
	cfg.SnapshotTTLSec = 60

	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Live == nil {
		t.Fatalf("expected live store")
	}

	a.Controller.Reset()
	deadline := time.Now().Add(3 * time.Second)
	for !mr.Exists("arena:snapshot") {
		if time.Now().After(deadline) {
			t.Fatalf("snapshot not mirrored")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestSaveSettings(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close(context.Background())

	_ = a.SetAPIKey("sk-saved")
	_ = a.Controller.SetPace(1500 * time.Millisecond)
	if err := a.SaveSettings("x/white", ""); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	s, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.APIKey != "sk-saved" || s.WhiteModel != "x/white" || s.BlackModel != "m/black" || s.MoveDelay != 1.5 {
		t.Fatalf("unexpected settings %+v", s)
	}
}

func TestGeminiWithoutKeyFailsAtStart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider = config.ProviderGemini
	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New without GEMINI_API_KEY: %v", err)
	}
	defer func() { _ = a.Close(context.Background()) }()

	if a.Provider.HasCredential() {
		t.Fatalf("keyless gemini client reports a credential")
	}
	if err := a.Controller.Start("gemini-pro", "gemini-pro", -1); !errors.Is(err, arena.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if err := a.SetAPIKey("k"); err == nil {
		t.Fatalf("expected SetAPIKey to reject the gemini provider")
	}
}
