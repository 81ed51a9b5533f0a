package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Settings are the operator choices persisted between runs.
type Settings struct {
	APIKey     string  `yaml:"api_key,omitempty"`
	WhiteModel string  `yaml:"white_model,omitempty"`
	BlackModel string  `yaml:"black_model,omitempty"`
	MoveDelay  float64 `yaml:"move_delay,omitempty"` // seconds
}

// LoadSettings reads path. A missing file yields empty settings.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes s to path with owner-only permissions since it may hold
// an API key.
func SaveSettings(path string, s Settings) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("settings path is empty")
	}
	raw, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, path)
}

// SettingsFrom captures the persisted subset of cfg.
func SettingsFrom(cfg *AppConfig) Settings {
	return Settings{
		APIKey:     cfg.OpenRouterAPIKey,
		WhiteModel: cfg.WhiteModel,
		BlackModel: cfg.BlackModel,
		MoveDelay:  cfg.MoveDelay.Seconds(),
	}
}

func (s Settings) applyTo(cfg *AppConfig) {
	if v := strings.TrimSpace(s.APIKey); v != "" {
		cfg.OpenRouterAPIKey = v
	}
	if v := strings.TrimSpace(s.WhiteModel); v != "" {
		cfg.WhiteModel = v
	}
	if v := strings.TrimSpace(s.BlackModel); v != "" {
		cfg.BlackModel = v
	}
	if s.MoveDelay > 0 {
		cfg.MoveDelay = time.Duration(s.MoveDelay * float64(time.Second))
	}
}
