package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManagerLoadsInitialConfig(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 8081\n")

	mgr, err := NewManager(path, discardLogger())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	if got := mgr.Get().Server.Port; got != 8081 {
		t.Errorf("port = %d, want 8081", got)
	}
}

func TestManagerRejectsInvalidInitialConfig(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: -1\n")

	if _, err := NewManager(path, discardLogger()); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestManagerReloadSwapsConfig(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 8081\n")

	mgr, err := NewManager(path, discardLogger())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	var notified *Config
	mgr.OnChange(func(c *Config) { notified = c })

	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mgr.reload()

	if got := mgr.Get().Server.Port; got != 9090 {
		t.Errorf("port after reload = %d, want 9090", got)
	}
	if notified == nil || notified.Server.Port != 9090 {
		t.Error("OnChange callback should receive the new config")
	}
}

func TestManagerReloadKeepsCurrentOnError(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 8081\n")

	mgr, err := NewManager(path, discardLogger())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	if err := os.WriteFile(path, []byte("server: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	mgr.reload()

	if got := mgr.Get().Server.Port; got != 8081 {
		t.Errorf("port after failed reload = %d, want 8081", got)
	}
}
