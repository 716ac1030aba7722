package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManagerCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be created: %v", err)
	}
	cfg := m.Get()
	if cfg.LogLevel != "warn" || cfg.Output.Indent != "    " || cfg.Bridge.Listen != "127.0.0.1:8719" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if m.GetConfigDir() != filepath.Dir(path) {
		t.Fatalf("config dir: %q", m.GetConfigDir())
	}
}

func TestNewManagerDefaultPathFollowsXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	m, err := NewManager("")
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if want := filepath.Join(dir, "wmipc", "config.yaml"); m.GetConfigPath() != want {
		t.Fatalf("path: got %q want %q", m.GetConfigPath(), want)
	}
}

func TestManagerLoadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "socket_path: /run/user/1000/wm.sock\nlog_level: debug\noutput:\n  indent: \"  \"\nbridge:\n  listen: 127.0.0.1:9000\n  allowed_types: [get_tree, get_version]\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	cfg := m.Get()
	if cfg.SocketPath != "/run/user/1000/wm.sock" || cfg.LogLevel != "debug" || cfg.Output.Indent != "  " {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Bridge.Listen != "127.0.0.1:9000" || len(cfg.Bridge.AllowedTypes) != 2 {
		t.Fatalf("unexpected bridge config: %+v", cfg.Bridge)
	}
	if cfg.Status.Shell != "/bin/sh" {
		t.Fatalf("missing keys should fall back to defaults: %+v", cfg.Status)
	}
}

func TestManagerEnvOverride(t *testing.T) {
	t.Setenv("WMIPC_SOCKET_PATH", "/tmp/env.sock")
	t.Setenv("WMIPC_BRIDGE_LISTEN", "127.0.0.1:1234")
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	cfg := m.Get()
	if cfg.SocketPath != "/tmp/env.sock" || cfg.Bridge.Listen != "127.0.0.1:1234" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestManagerSetAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := m.Set("status.command", "i3status"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "command: i3status") {
		t.Fatalf("saved file missing value:\n%s", data)
	}

	reloaded, err := NewManager(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Get().Status.Command != "i3status" {
		t.Fatalf("value not persisted: %+v", reloaded.Get().Status)
	}
}

func TestManagerRejectsInvalidValues(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := m.SetLogLevel("loud"); err == nil {
		t.Fatalf("expected invalid log level to be rejected")
	}
	if err := m.Set("log_level", "info"); err != nil {
		t.Fatalf("valid level rejected: %v", err)
	}
	if err := m.Set("output.indent", "xx"); err == nil {
		t.Fatalf("expected invalid indent to be rejected")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	cfg := m.Get()
	cfg.SocketPath = "/mutated"
	cfg.Bridge.AllowedTypes = append(cfg.Bridge.AllowedTypes, "get_tree")
	if got := m.Get(); got.SocketPath == "/mutated" || len(got.Bridge.AllowedTypes) != 0 {
		t.Fatalf("Get must return an independent copy: %+v", got)
	}
}

func TestLoadDoesNotCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wmipc", "config.yaml")
	t.Setenv("WMIPC_OUTPUT_INDENT", "\t")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
		t.Fatalf("expected nothing to be created, stat returned %v", err)
	}
	if cfg.Output.Indent != "\t" || cfg.LogLevel != "warn" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("output:\n  indent: \"  \"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Output.Indent != "  " {
		t.Fatalf("indent: %q", cfg.Output.Indent)
	}
}
