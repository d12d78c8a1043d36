package providers

import (
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/km-arc/go-container/framework/config"
	"github.com/km-arc/go-container/framework/container"
	"github.com/km-arc/go-container/framework/inspect"
	"github.com/km-arc/go-container/framework/logging"
	"github.com/km-arc/go-container/framework/manifest"
	"github.com/km-arc/go-container/framework/metrics"
	"github.com/km-arc/go-container/framework/routing"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider loads the configuration from .env, the
// environment and CONFIG_FILE.
//
// Registered keys:
//   - "config"         → *config.Config (shared, protected)
//   - "configuration"  → alias of "config"
type ConfigServiceProvider struct {
	container.BaseProvider
	EnvFiles []string
	// Viper, when set, is used instead of a fresh instance so that
	// command-line flags bound to it win.
	Viper *viper.Viper
}

func (p *ConfigServiceProvider) Register(app *container.Container) error {
	err := app.Protect("config", func(*container.Container) (any, error) {
		if p.Viper != nil {
			return config.FromViper(p.Viper), nil
		}
		return config.Load(p.EnvFiles...)
	}, container.Shared())
	if err != nil {
		return err
	}
	app.Alias("configuration", "config")
	return nil
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider registers the zap logger.
//
// Registered keys:
//   - "logger"  → *zap.Logger (shared)
type LoggingServiceProvider struct {
	container.BaseProvider
}

func (p *LoggingServiceProvider) Register(app *container.Container) error {
	return app.Share("logger", func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, "config")
		if err != nil {
			return nil, err
		}
		return logging.New(cfg.App.Env, cfg.Log.Level)
	})
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router.
//
// Registered keys:
//   - "router"  → *routing.Router (shared)
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.Container) error {
	return app.Share("router", func(c *container.Container) (any, error) {
		logger, err := container.Resolve[*zap.Logger](c, "logger")
		if err != nil {
			return nil, err
		}
		return routing.New(logger), nil
	})
}

// ── MetricsServiceProvider ────────────────────────────────────────────────────

// MetricsServiceProvider registers the Prometheus collector. When metrics
// are enabled, Boot attaches it to the container, instruments the router
// and serves /metrics.
//
// Registered keys:
//   - "metrics"  → *metrics.Collector (shared)
type MetricsServiceProvider struct {
	container.BaseProvider
}

func (p *MetricsServiceProvider) Register(app *container.Container) error {
	return app.Share("metrics", func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, "config")
		if err != nil {
			return nil, err
		}
		return metrics.NewCollector(cfg.Metrics.Namespace), nil
	})
}

func (p *MetricsServiceProvider) Boot(app *container.Container) error {
	cfg, err := container.Resolve[*config.Config](app, "config")
	if err != nil {
		return err
	}
	if !cfg.Metrics.Enabled {
		return nil
	}
	m, err := container.Resolve[*metrics.Collector](app, "metrics")
	if err != nil {
		return err
	}
	router, err := container.Resolve[*routing.Router](app, "router")
	if err != nil {
		return err
	}
	m.Attach(app)
	router.Middleware(m.Middleware)
	router.Handle("/metrics", m.Handler())
	return nil
}

// ── ManifestServiceProvider ───────────────────────────────────────────────────

// ManifestServiceProvider applies the YAML service manifest named by
// container.manifest, if any, during Boot.
type ManifestServiceProvider struct {
	container.BaseProvider
}

func (p *ManifestServiceProvider) Register(_ *container.Container) error { return nil }

func (p *ManifestServiceProvider) Boot(app *container.Container) error {
	cfg, err := container.Resolve[*config.Config](app, "config")
	if err != nil {
		return err
	}
	if cfg.Container.Manifest == "" {
		return nil
	}
	m, err := manifest.LoadFile(cfg.Container.Manifest)
	if err != nil {
		return err
	}
	if err := m.Apply(app); err != nil {
		return err
	}
	if logger, err := container.Resolve[*zap.Logger](app, "logger"); err == nil {
		logger.Info("manifest applied",
			zap.String("path", cfg.Container.Manifest),
			zap.Int("services", len(m.Services)),
		)
	}
	return nil
}

// ── InspectServiceProvider ────────────────────────────────────────────────────

// InspectServiceProvider registers the inspection API and mounts it on
// the router during Boot.
//
// Registered keys:
//   - "inspect"  → *inspect.Handler (shared)
type InspectServiceProvider struct {
	container.BaseProvider
}

func (p *InspectServiceProvider) Register(app *container.Container) error {
	return app.Share("inspect", func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, "config")
		if err != nil {
			return nil, err
		}
		logger, err := container.Resolve[*zap.Logger](c, "logger")
		if err != nil {
			return nil, err
		}
		opts := []inspect.Option{inspect.WithToken(cfg.Inspect.Token)}
		if cfg.Metrics.Enabled && c.Has("metrics") {
			m, err := container.Resolve[*metrics.Collector](c, "metrics")
			if err != nil {
				return nil, err
			}
			opts = append(opts, inspect.WithObserver(m))
		}
		return inspect.New(c, logger, opts...), nil
	})
}

func (p *InspectServiceProvider) Boot(app *container.Container) error {
	h, err := container.Resolve[*inspect.Handler](app, "inspect")
	if err != nil {
		return err
	}
	router, err := container.Resolve[*routing.Router](app, "router")
	if err != nil {
		return err
	}
	h.Routes(router)
	return nil
}
