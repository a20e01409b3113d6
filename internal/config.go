package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/memman/internal/models"
	pkgconfig "github.com/starford/memman/pkg/config"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Project    ProjectConfig     `yaml:"project"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Sync       SyncConfig        `yaml:"sync"`
	Oracle     OracleConfig      `yaml:"oracle"`
	Correction CorrectionConfig  `yaml:"correction"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Project.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if err := c.Oracle.Validate(); err != nil {
		return err
	}
	if err := c.Correction.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ProjectConfig locates the instruction documents. Primary, Mirror, and
// RulesDir are relative to Root; MemoryDir is absolute.
type ProjectConfig struct {
	Root      string `yaml:"root"`
	Primary   string `yaml:"primary"`
	Mirror    string `yaml:"mirror"`
	RulesDir  string `yaml:"rules_dir"`
	MemoryDir string `yaml:"memory_dir"`
}

// Validate validates the project configuration.
func (c *ProjectConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Primary, validation.Required),
		validation.Field(&c.Mirror, validation.Required),
		validation.Field(&c.RulesDir, validation.Required),
	); err != nil {
		return err
	}
	if filepath.Clean(c.Primary) == filepath.Clean(c.Mirror) {
		return fmt.Errorf("project: primary and mirror are the same file %q", c.Primary)
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SyncConfig holds the default sync direction.
type SyncConfig struct {
	Direction models.SyncDirection `yaml:"direction"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Direction, validation.Required, validation.In(
			models.DirPrimaryToMirror, models.DirMirrorToPrimary, models.DirBidirectional)),
	)
}

// OracleConfig configures the optional correction extraction oracle.
type OracleConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Model              string        `yaml:"model"`
	APIKey             string        `yaml:"api_key"`
	BaseURL            string        `yaml:"base_url"`
	Timeout            time.Duration `yaml:"timeout"`
	MaxTranscriptChars int           `yaml:"max_transcript_chars"`
}

// Validate validates the oracle configuration. A missing API key is not an
// error; the oracle is then skipped at startup.
func (c *OracleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxTranscriptChars, validation.Required, validation.Min(1000)),
	)
}

// Usable reports whether the oracle is enabled and has credentials.
func (c *OracleConfig) Usable() bool {
	return c.Enabled && c.APIKey != ""
}

// CorrectionConfig holds the correction pipeline thresholds.
type CorrectionConfig struct {
	PromoteThreshold float64 `yaml:"promote_threshold"`
	EditThreshold    float64 `yaml:"edit_threshold"`
}

// Validate validates the correction configuration.
func (c *CorrectionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PromoteThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.EditThreshold, validation.Min(0.0), validation.Max(1.0)),
	)
}

// AuthConfig holds authentication configuration for the status API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8787,
			},
		},
		Project: ProjectConfig{
			Root:     ".",
			Primary:  "CLAUDE.md",
			Mirror:   "AGENTS.md",
			RulesDir: ".claude/rules",
		},
		SQLite: SQLiteConfig{
			Path: ".memman/memman.db",
		},
		Sync: SyncConfig{
			Direction: models.DirBidirectional,
		},
		Oracle: OracleConfig{
			Model:              "claude-3-5-haiku-latest",
			Timeout:            60 * time.Second,
			MaxTranscriptChars: 50_000,
		},
		Correction: CorrectionConfig{
			PromoteThreshold: 0.7,
			EditThreshold:    0.4,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

// LoadConfig builds the configuration: defaults, then the YAML file when it
// exists, then environment overrides. Relative paths are resolved against
// the project root and the memory directory is derived when unset.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if _, err := pkgconfig.LoadOrDefault(path, cfg); err != nil {
		return nil, err
	}

	if v := os.Getenv("MEMMAN_PROJECT_ROOT"); v != "" {
		cfg.Project.Root = v
	}
	if v := os.Getenv("MEMMAN_SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("MEMMAN_SYNC_DIRECTION"); v != "" {
		cfg.Sync.Direction = models.SyncDirection(v)
	}
	if cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	root, err := filepath.Abs(cfg.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	cfg.Project.Root = root
	if !filepath.IsAbs(cfg.SQLite.Path) {
		cfg.SQLite.Path = filepath.Join(root, cfg.SQLite.Path)
	}
	if cfg.Project.MemoryDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.Project.MemoryDir = DefaultMemoryDir(home, root)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// DefaultMemoryDir is the per-project memory area under home, keyed by the
// absolute project root with separators replaced by dashes.
func DefaultMemoryDir(home, root string) string {
	slug := strings.ReplaceAll(filepath.ToSlash(root), "/", "-")
	return filepath.Join(home, ".claude", "projects", slug, "memory")
}
