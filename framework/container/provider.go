package container

import "fmt"

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups related registrations.
//
// Register binds services into the container. Boot is called after ALL
// providers have been registered, making it safe to resolve other
// services there.
//
//	type MailServiceProvider struct{ container.BaseProvider }
//
//	func (p *MailServiceProvider) Register(app *container.Container) error {
//	    return app.Share("mailer", func(c *container.Container) (any, error) {
//	        cfg, err := container.Resolve[*config.Config](c, "config")
//	        if err != nil {
//	            return nil, err
//	        }
//	        return mail.New(cfg), nil
//	    })
//	}
type ServiceProvider interface {
	// Register binds services into the container.
	// Do NOT resolve other services here; use Boot for that.
	Register(app *Container) error

	// Boot is called after all providers are registered.
	Boot(app *Container) error

	// Provides returns the keys this provider registers. Only deferred
	// providers need it.
	Provides() []string

	// IsDeferred returns true if the provider should only be registered
	// when one of its Provides() keys is first resolved.
	IsDeferred() bool
}

// RegisterServiceProvider registers p directly, without a ProviderRegistry.
// Boot is not called.
func (c *Container) RegisterServiceProvider(p ServiceProvider) error {
	return p.Register(c)
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with no-op Boot, Provides and
// IsDeferred.
//
//	type MyProvider struct{ container.BaseProvider }
//	func (p *MyProvider) Register(app *container.Container) error { ... }
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }
func (p *BaseProvider) Provides() []string      { return nil }
func (p *BaseProvider) IsDeferred() bool        { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry manages registration and booting of ServiceProviders,
// including deferred ones.
type ProviderRegistry struct {
	app        *Container
	eager      []ServiceProvider
	deferred   map[string]ServiceProvider // key → provider
	loaded     map[ServiceProvider]bool
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	return &ProviderRegistry{
		app:        app,
		deferred:   make(map[string]ServiceProvider),
		loaded:     make(map[ServiceProvider]bool),
		registered: make(map[ServiceProvider]bool),
	}
}

// Register adds a provider and calls its Register method unless it is
// deferred. Registering the same provider twice is a no-op.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	if r.registered[provider] {
		return nil
	}
	r.registered[provider] = true

	if provider.IsDeferred() {
		return r.interceptDeferred(provider)
	}

	if err := provider.Register(r.app); err != nil {
		return fmt.Errorf("container: registering provider %T: %w", provider, err)
	}
	r.eager = append(r.eager, provider)

	// Late providers are booted right away.
	if r.booted {
		if err := provider.Boot(r.app); err != nil {
			return fmt.Errorf("container: booting provider %T: %w", provider, err)
		}
	}
	return nil
}

// interceptDeferred registers a placeholder factory for each key of a
// deferred provider. The first Get registers (and, once booted, boots) the
// provider, which replaces the placeholders, then resolves the real entry.
func (r *ProviderRegistry) interceptDeferred(provider ServiceProvider) error {
	for _, key := range provider.Provides() {
		r.deferred[key] = provider
		k := key
		err := r.app.Set(k, func(c *Container) (any, error) {
			placeholder := c.local(k)
			if !r.loaded[provider] {
				if err := r.load(provider); err != nil {
					return nil, err
				}
			}
			if c.local(k) == placeholder {
				return nil, fmt.Errorf("container: deferred provider %T did not register [%s]", provider, k)
			}
			return c.Get(k)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *ProviderRegistry) load(provider ServiceProvider) error {
	if r.loaded[provider] {
		return nil
	}
	r.loaded[provider] = true

	if err := provider.Register(r.app); err != nil {
		return fmt.Errorf("container: registering deferred provider %T: %w", provider, err)
	}
	for _, key := range provider.Provides() {
		delete(r.deferred, key)
	}
	if r.booted {
		if err := provider.Boot(r.app); err != nil {
			return fmt.Errorf("container: booting deferred provider %T: %w", provider, err)
		}
	}
	return nil
}

// Boot calls Boot on all eager providers. Later calls are no-ops.
func (r *ProviderRegistry) Boot() error {
	if r.booted {
		return nil
	}
	r.booted = true
	for _, provider := range r.eager {
		if err := provider.Boot(r.app); err != nil {
			return fmt.Errorf("container: booting provider %T: %w", provider, err)
		}
	}
	return nil
}

// Booted returns true if Boot has been called.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns all registered eager providers.
func (r *ProviderRegistry) Providers() []ServiceProvider { return r.eager }

// Deferred returns the keys still waiting for their provider.
func (r *ProviderRegistry) Deferred() []string {
	keys := make([]string, 0, len(r.deferred))
	for k := range r.deferred {
		keys = append(keys, k)
	}
	return keys
}
