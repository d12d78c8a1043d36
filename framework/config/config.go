package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the central typed configuration struct.
type Config struct {
	App       AppConfig
	Container ContainerConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Inspect   InspectConfig
}

type AppConfig struct {
	Name  string
	Env   string // local | production | testing
	Debug bool
	Port  string
}

// ContainerConfig points the kernel at an optional service manifest.
type ContainerConfig struct {
	Manifest string
	Watch    bool
}

type LogConfig struct {
	Level string // debug | info | warn | error
}

type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// InspectConfig guards the inspection API. An empty token leaves it open.
type InspectConfig struct {
	Token string
}

// Defaults, keyed the way viper sees them. APP_NAME maps to "app.name".
var defaults = map[string]any{
	"app.name":           "GoContainer",
	"app.env":            "local",
	"app.debug":          true,
	"app.port":           "8000",
	"container.manifest": "",
	"container.watch":    false,
	"log.level":          "info",
	"metrics.enabled":    true,
	"metrics.namespace":  "container",
	"inspect.token":      "",
}

// NewViper reads .env files (if present) and returns a viper instance
// with defaults and environment binding. When CONFIG_FILE is set, that
// file (YAML, TOML or JSON) is merged underneath the environment.
func NewViper(envFiles ...string) (*viper.Viper, error) {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", file, err)
		}
	}
	return v, nil
}

// FromViper builds a Config from v. Command-line flags bound to v with
// BindPFlag take precedence over the environment.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		App: AppConfig{
			Name:  v.GetString("app.name"),
			Env:   v.GetString("app.env"),
			Debug: v.GetBool("app.debug"),
			Port:  v.GetString("app.port"),
		},
		Container: ContainerConfig{
			Manifest: v.GetString("container.manifest"),
			Watch:    v.GetBool("container.watch"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		Metrics: MetricsConfig{
			Enabled:   v.GetBool("metrics.enabled"),
			Namespace: v.GetString("metrics.namespace"),
		},
		Inspect: InspectConfig{
			Token: v.GetString("inspect.token"),
		},
	}
}

// Load is NewViper followed by FromViper.
// Call once at bootstrap: cfg, err := config.Load()
func Load(envFiles ...string) (*Config, error) {
	v, err := NewViper(envFiles...)
	if err != nil {
		return nil, err
	}
	return FromViper(v), nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c.App.Env == "production" }

// Addr returns the listen address for App.Port.
func (c *Config) Addr() string { return ":" + c.App.Port }
