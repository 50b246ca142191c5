// Package config loads statusboard settings from a YAML file, environment
// variables and defaults, in increasing order of precedence: defaults,
// file, environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dbvcapital/statusboard/internal/sync"
)

// EnvPrefix prefixes every automatically bound environment variable,
// e.g. STATUSBOARD_SNAPSHOT for "snapshot".
const EnvPrefix = "STATUSBOARD"

// FileName is the config file looked up in the working directory.
const FileName = "statusboard.yaml"

// Unprefixed environment variables used by existing deployments. They are bound
// in addition to the prefixed names.
const (
	EnvNotionToken = "NOTION_TOKEN"
	EnvProjectsDB  = "NOTION_DB_ID_PROJETOS"
	EnvTasksDB     = "NOTION_DB_ID_TAREFAS"
	EnvDemandsDB   = "NOTION_DB_ID_DEMANDAS"
	EnvAnthropic   = "ANTHROPIC_API_KEY"
)

// ErrMissing is wrapped by Validate when required settings are absent.
var ErrMissing = errors.New("missing required configuration")

// Config is the full set of settings.
type Config struct {
	Layout      string          `mapstructure:"layout" yaml:"layout"`
	Snapshot    string          `mapstructure:"snapshot" yaml:"snapshot"`
	Cache       string          `mapstructure:"cache" yaml:"cache"`
	Annotations string          `mapstructure:"annotations" yaml:"annotations"`
	Notion      NotionConfig    `mapstructure:"notion" yaml:"notion"`
	Anthropic   AnthropicConfig `mapstructure:"anthropic" yaml:"anthropic"`
	Dashboard   DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
	Report      ReportConfig    `mapstructure:"report" yaml:"report"`
	Log         LogConfig       `mapstructure:"log" yaml:"log"`

	// file is the config file that was read, if any.
	file string
}

// NotionConfig holds the workspace credentials and database ids.
type NotionConfig struct {
	Token      string `mapstructure:"token" yaml:"token"`
	ProjectsDB string `mapstructure:"projects_db" yaml:"projects_db"`
	TasksDB    string `mapstructure:"tasks_db" yaml:"tasks_db"`
	DemandsDB  string `mapstructure:"demands_db" yaml:"demands_db"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
}

// AnthropicConfig configures comment summaries.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	Model  string `mapstructure:"model" yaml:"model"`
}

// DashboardConfig configures the serve command.
type DashboardConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// SyncInterval runs a forward sync periodically; zero disables it.
	SyncInterval time.Duration `mapstructure:"sync_interval" yaml:"sync_interval"`
}

// ReportConfig holds report defaults.
type ReportConfig struct {
	Area   string `mapstructure:"area" yaml:"area"`
	Output string `mapstructure:"output" yaml:"output"`
}

// LogConfig configures the shared log writer.
type LogConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	Tee        bool   `mapstructure:"tee" yaml:"tee"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("layout", sync.LayoutProjects)
	v.SetDefault("snapshot", "tarefas_dbv.csv")
	v.SetDefault("cache", filepath.Join(".statusboard", "cache.db"))
	v.SetDefault("annotations", "relatorio.toml")

	v.SetDefault("notion.token", "")
	v.SetDefault("notion.projects_db", "")
	v.SetDefault("notion.tasks_db", "")
	v.SetDefault("notion.demands_db", "")
	v.SetDefault("notion.base_url", "")

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")

	v.SetDefault("dashboard.host", "127.0.0.1")
	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("dashboard.sync_interval", "0s")

	v.SetDefault("report.area", "")
	v.SetDefault("report.output", "relatorio.md")

	v.SetDefault("log.file", "")
	v.SetDefault("log.tee", false)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// Default returns the configuration with every default applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SearchPaths lists the config files tried when no explicit path is
// given, in order.
func SearchPaths() []string {
	paths := []string{FileName}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "statusboard", "config.yaml"))
	}
	return paths
}

// Load reads configuration. When path is empty the first existing file of
// SearchPaths is used; no file at all is fine. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("notion.token", EnvPrefix+"_NOTION_TOKEN", EnvNotionToken)
	_ = v.BindEnv("notion.projects_db", EnvPrefix+"_NOTION_PROJECTS_DB", EnvProjectsDB)
	_ = v.BindEnv("notion.tasks_db", EnvPrefix+"_NOTION_TASKS_DB", EnvTasksDB)
	_ = v.BindEnv("notion.demands_db", EnvPrefix+"_NOTION_DEMANDS_DB", EnvDemandsDB)
	_ = v.BindEnv("anthropic.api_key", EnvPrefix+"_ANTHROPIC_API_KEY", EnvAnthropic)

	if path == "" {
		for _, candidate := range SearchPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.file = v.ConfigFileUsed()
	return &cfg, nil
}

// File returns the config file that was read, or "" when none was.
func (c *Config) File() string {
	return c.file
}

// Validate checks that the settings needed to talk to the workspace are
// present for the configured layout.
func (c *Config) Validate() error {
	var missing []string
	if c.Notion.Token == "" {
		missing = append(missing, EnvNotionToken)
	}
	switch c.Layout {
	case sync.LayoutProjects:
		if c.Notion.ProjectsDB == "" {
			missing = append(missing, EnvProjectsDB)
		}
		if c.Notion.TasksDB == "" {
			missing = append(missing, EnvTasksDB)
		}
	case sync.LayoutDemands:
		if c.Notion.DemandsDB == "" {
			missing = append(missing, EnvDemandsDB)
		}
	default:
		return fmt.Errorf("unknown layout %q (want %s or %s)", c.Layout, sync.LayoutProjects, sync.LayoutDemands)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}

// SyncLayout returns the database layout for the configured variant.
func (c *Config) SyncLayout() (sync.Layout, error) {
	switch c.Layout {
	case sync.LayoutProjects:
		return sync.ProjectsLayout(c.Notion.ProjectsDB, c.Notion.TasksDB), nil
	case sync.LayoutDemands:
		return sync.DemandsLayout(c.Notion.DemandsDB), nil
	}
	return sync.Layout{}, fmt.Errorf("unknown layout %q", c.Layout)
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	out.Notion.Token = redact(out.Notion.Token)
	out.Anthropic.APIKey = redact(out.Anthropic.APIKey)
	return out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}
