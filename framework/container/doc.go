// Package container provides a dependency injection container and a
// Service Provider system for Go.
//
// # Overview
//
// The container manages the instantiation and lifecycle of your
// application's dependencies. It supports literal and factory resources,
// shared (cached) and protected resources, aliases, tags, decoration
// (Extend), parent/child containers, contextual bindings, and autowiring
// of constructors registered in a class catalog.
//
// # Container Lifecycle
//
//  1. Create: c := container.New()
//  2. Register providers: registry.Register(&MyProvider{})
//  3. Boot: registry.Boot(), after which every service can be resolved
//  4. Serve requests
//
// # Resources
//
//	// Factory, new value on every Get
//	c.Set("Foo", func(c *container.Container) (any, error) { return &Foo{}, nil })
//
//	// Shared, created once and reused
//	c.Share("cache", func(c *container.Container) (any, error) {
//	    cfg, err := container.Resolve[*Config](c, "config")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return cache.NewRedis(cfg), nil
//	})
//
//	// Literal; non-shared struct pointers are copied on every Get
//	c.Set("defaults", &Options{Retries: 3})
//
//	// Protected, further Set calls fail with ErrProtectedKey
//	c.Protect("config", cfg, container.Shared())
//
//	// Remove
//	c.Set("Foo", nil)
//
//	// Alias
//	c.Alias("cacheManager", "cache")
//
// # Resolving
//
//	raw, err := c.Get("cache")
//	cache, err := container.Resolve[*RedisCache](c, "cache")
//
// # Hierarchy
//
//	child := c.CreateChild()
//	child.Get("cache") // falls back to c
//
// Any value with Has(id) bool and Get(id) (any, error) can be a parent:
//
//	c := container.New(container.WithParent(frameworkContainer))
//
// # Tags
//
//	c.Tag("reports", "CpuReport", "MemReport")
//	reports, err := c.Tagged("reports")  // []any
//
// # Extend / Decorate
//
//	c.Extend("logger", func(instance any, c *container.Container) (any, error) {
//	    return &TimestampLogger{Inner: instance.(*Logger)}, nil
//	})
//
// # Autowiring
//
// Go has no runtime constructor reflection by class name, so constructors
// are registered in the container's class catalog. Parameters that are
// interfaces or struct pointers are resolved from the container or built
// recursively; scalars need a default.
//
//	c.Classes().Constructor(NewDatabase, container.WithDefault(0, "sqlite::memory:"))
//	key, _ := c.Classes().Constructor(NewUserRepository)
//	repo, ok, err := c.BuildObject(key)
//
// Building a class that is already being built fails with a
// DependencyResolutionError whose Reason is ReasonCircular.
//
// # Contextual Binding
//
//	c.When(reportKey).
//	    Needs(container.KeyFor[Filesystem]()).
//	    Give(func(c *container.Container) (any, error) { return &S3Filesystem{}, nil })
//
// # Service Providers
//
//	registry := container.NewProviderRegistry(c)
//	registry.Register(&AppServiceProvider{})
//	registry.Boot()
//
// # Deferred Providers
//
//	type HeavyProvider struct{ container.BaseProvider }
//
//	func (p *HeavyProvider) IsDeferred() bool   { return true }
//	func (p *HeavyProvider) Provides() []string { return []string{"heavy"} }
//	func (p *HeavyProvider) Register(app *container.Container) error {
//	    return app.Share("heavy", func(c *container.Container) (any, error) {
//	        return heavySetup() // only called on first Get("heavy")
//	    })
//	}
package container
