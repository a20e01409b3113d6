package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/memman/internal/models"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"same documents", func(c *Config) { c.Project.Mirror = "./CLAUDE.md" }},
		{"bad direction", func(c *Config) { c.Sync.Direction = "sideways" }},
		{"threshold above one", func(c *Config) { c.Correction.PromoteThreshold = 1.5 }},
		{"oracle without model", func(c *Config) { c.Oracle.Enabled = true; c.Oracle.Model = "" }},
		{"no sqlite path", func(c *Config) { c.SQLite.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestOracleConfig_Usable(t *testing.T) {
	c := OracleConfig{Enabled: true}
	if c.Usable() {
		t.Error("oracle without key should not be usable")
	}
	c.APIKey = "k"
	if !c.Usable() {
		t.Error("enabled oracle with key should be usable")
	}
}

func TestLoadConfig(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "memman.yaml")
	yaml := "project:\n  root: " + root + "\n  mirror: docs/AGENTS.md\nsync:\n  direction: primary-to-mirror\noracle:\n  enabled: true\n  timeout: 5s\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	t.Setenv("MEMMAN_SQLITE_PATH", "")
	t.Setenv("MEMMAN_PROJECT_ROOT", "")
	t.Setenv("MEMMAN_SYNC_DIRECTION", "")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Project.Primary != "CLAUDE.md" || cfg.Project.Mirror != "docs/AGENTS.md" {
		t.Errorf("project = %+v", cfg.Project)
	}
	if cfg.Sync.Direction != models.DirPrimaryToMirror {
		t.Errorf("direction = %q", cfg.Sync.Direction)
	}
	if cfg.Oracle.APIKey != "from-env" || cfg.Oracle.Timeout.Seconds() != 5 {
		t.Errorf("oracle = %+v", cfg.Oracle)
	}
	if want := filepath.Join(root, ".memman", "memman.db"); cfg.SQLite.Path != want {
		t.Errorf("sqlite path = %q, want %q", cfg.SQLite.Path, want)
	}
	if !strings.HasSuffix(cfg.Project.MemoryDir, filepath.Join(".claude", "projects", strings.ReplaceAll(root, "/", "-"), "memory")) {
		t.Errorf("memory dir = %q", cfg.Project.MemoryDir)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	root := t.TempDir()
	t.Setenv("MEMMAN_PROJECT_ROOT", root)
	t.Setenv("MEMMAN_SYNC_DIRECTION", "mirror-to-primary")
	t.Setenv("MEMMAN_SQLITE_PATH", "")

	cfg, err := LoadConfig(filepath.Join(root, "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Project.Root != root {
		t.Errorf("root = %q, want %q", cfg.Project.Root, root)
	}
	if cfg.Sync.Direction != models.DirMirrorToPrimary {
		t.Errorf("direction = %q", cfg.Sync.Direction)
	}
}

func TestDefaultMemoryDir(t *testing.T) {
	got := DefaultMemoryDir("/home/u", "/work/app")
	if got != "/home/u/.claude/projects/-work-app/memory" {
		t.Errorf("got %q", got)
	}
}
