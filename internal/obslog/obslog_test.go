package obslog

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestNewJSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "debug", Format: "json", Console: true, ConsoleWriter: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("arena_move", zap.String("move", "e2e4"))
	_ = l.Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["msg"] != "arena_move" || entry["move"] != "e2e4" || entry["level"] != "info" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "warn", Format: "console", Console: true, ConsoleWriter: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("hidden")
	_ = l.Sync()
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level: %q", buf.String())
	}
}

func TestFileOutputCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "arena.log")
	l, err := New(Options{Level: "info", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("written")
	_ = l.Sync()
}

func TestSetNilInstallsNop(t *testing.T) {
	Set(nil)
	if L() == nil {
		t.Fatalf("L must never be nil")
	}
}
