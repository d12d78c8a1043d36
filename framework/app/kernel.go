package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/km-arc/go-container/framework/config"
	"github.com/km-arc/go-container/framework/container"
	"github.com/km-arc/go-container/framework/manifest"
	"github.com/km-arc/go-container/framework/providers"
	"github.com/km-arc/go-container/framework/routing"
)

// Version of the application kernel.
const Version = "0.1.0"

// ShutdownTimeout bounds the graceful shutdown in Run.
var ShutdownTimeout = 10 * time.Second

// Application is the top-level container. It embeds the Container and
// ProviderRegistry so user code can call app.Share(), app.Get() and
// app.Register() directly.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry
}

// Option configures New.
type Option func(*options)

type options struct {
	envFiles []string
	viper    *viper.Viper
}

// WithEnvFiles loads the given .env files instead of ".env".
func WithEnvFiles(files ...string) Option {
	return func(o *options) { o.envFiles = files }
}

// WithViper reads the configuration from v, typically one with
// command-line flags bound to it.
func WithViper(v *viper.Viper) Option {
	return func(o *options) { o.viper = v }
}

// New creates the application and registers the framework providers:
// config, logger, router, metrics, manifest and the inspection API.
//
//	application, err := app.New()
//	application.Register(&MailServiceProvider{})
//	err = application.Run(ctx)
func New(opts ...Option) (*Application, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := container.New()
	a := &Application{
		Container: c,
		Providers: container.NewProviderRegistry(c),
	}

	for _, p := range []container.ServiceProvider{
		&providers.ConfigServiceProvider{EnvFiles: o.envFiles, Viper: o.viper},
		&providers.LoggingServiceProvider{},
		&providers.RoutingServiceProvider{},
		&providers.MetricsServiceProvider{},
		&providers.ManifestServiceProvider{},
		&providers.InspectServiceProvider{},
	} {
		if err := a.Register(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(provider container.ServiceProvider) error {
	return a.Providers.Register(provider)
}

// Boot runs the Boot phase on all providers. Later calls are no-ops.
func (a *Application) Boot() error {
	return a.Providers.Boot()
}

// Config resolves *config.Config from the container.
func (a *Application) Config() (*config.Config, error) {
	return container.Resolve[*config.Config](a.Container, "config")
}

// Logger resolves the application logger.
func (a *Application) Logger() (*zap.Logger, error) {
	return container.Resolve[*zap.Logger](a.Container, "logger")
}

// Router resolves *routing.Router from the container.
func (a *Application) Router() (*routing.Router, error) {
	return container.Resolve[*routing.Router](a.Container, "router")
}

// Handler boots the application if needed and returns the router with the
// inspection API and /metrics mounted.
func (a *Application) Handler() (http.Handler, error) {
	if err := a.Boot(); err != nil {
		return nil, err
	}
	router, err := a.Router()
	if err != nil {
		return nil, err
	}
	return router.Handler(), nil
}

// Run boots the application, serves HTTP on APP_PORT and, when
// container.watch is set, reapplies the manifest whenever it changes.
// It returns after ctx is done and the server has shut down.
func (a *Application) Run(ctx context.Context) error {
	handler, err := a.Handler()
	if err != nil {
		return err
	}
	cfg, err := a.Config()
	if err != nil {
		return err
	}
	logger, err := a.Logger()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Container.Watch && cfg.Container.Manifest != "" {
		go a.watchManifest(ctx, cfg.Container.Manifest, logger)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("app", cfg.App.Name),
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.App.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("app: serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: shutdown: %w", err)
	}
	_ = logger.Sync()
	return nil
}

func (a *Application) watchManifest(ctx context.Context, path string, logger *zap.Logger) {
	err := manifest.Watch(ctx, path, logger, func(m *manifest.Manifest) {
		if err := m.Apply(a.Container, manifest.SkipProtected()); err != nil {
			logger.Error("manifest reload failed", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Debug("manifest applied", zap.String("path", path))
	})
	if err != nil {
		logger.Error("manifest watch stopped", zap.String("path", path), zap.Error(err))
	}
}

// ── Environment ───────────────────────────────────────────────────────────────

// Environment returns APP_ENV, or "" when the configuration cannot load.
func (a *Application) Environment() string {
	cfg, err := a.Config()
	if err != nil {
		return ""
	}
	return cfg.App.Env
}

func (a *Application) IsLocal() bool      { return a.Environment() == "local" }
func (a *Application) IsProduction() bool { return a.Environment() == "production" }
func (a *Application) IsTesting() bool    { return a.Environment() == "testing" }

// IsDebug reports APP_DEBUG.
func (a *Application) IsDebug() bool {
	cfg, err := a.Config()
	return err == nil && cfg.App.Debug
}
