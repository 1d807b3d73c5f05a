package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"evaly-service/internal/config"
)

func TestBuildRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	var cfg config.Config
	cfg.Log.Level = "warn"

	log := build(cfg, &buf)
	log.Info("hidden")
	log.Warn("shown")
	_ = log.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestBuildWritesFileWhenConfigured(t *testing.T) {
	var buf bytes.Buffer
	var cfg config.Config
	cfg.Log.File = filepath.Join(t.TempDir(), "evaly.log")

	log := build(cfg, &buf)
	log.Info("to file")
	_ = log.Sync()

	data, err := os.ReadFile(cfg.Log.File)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"to file"`) {
		t.Fatalf("expected JSON line in file, got %q", data)
	}
}
