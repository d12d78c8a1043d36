package container_test

import (
	"errors"
	"testing"

	"github.com/km-arc/go-container/framework/container"
)

// ── stub providers ────────────────────────────────────────────────────────────

type eagerProvider struct {
	container.BaseProvider
	registerCalled int
	bootCalled     bool
}

func (p *eagerProvider) Register(app *container.Container) error {
	p.registerCalled++
	return app.Share("eager-svc", "eager")
}

func (p *eagerProvider) Boot(app *container.Container) error {
	p.bootCalled = true
	return nil
}

// deferredProvider is only registered when "deferred-svc" is first resolved.
type deferredProvider struct {
	container.BaseProvider
	registerCalled int
	bootCalled     bool
}

func (p *deferredProvider) Register(app *container.Container) error {
	p.registerCalled++
	return app.Share("deferred-svc", func(c *container.Container) (any, error) {
		return "deferred-value", nil
	})
}

func (p *deferredProvider) Boot(app *container.Container) error {
	p.bootCalled = true
	return nil
}

func (p *deferredProvider) IsDeferred() bool   { return true }
func (p *deferredProvider) Provides() []string { return []string{"deferred-svc"} }

// brokenDeferredProvider claims a key it never registers.
type brokenDeferredProvider struct{ container.BaseProvider }

func (p *brokenDeferredProvider) Register(app *container.Container) error { return nil }
func (p *brokenDeferredProvider) IsDeferred() bool                       { return true }
func (p *brokenDeferredProvider) Provides() []string                     { return []string{"ghost"} }

// multiProvider registers multiple keys.
type multiProvider struct {
	container.BaseProvider
}

func (p *multiProvider) Register(app *container.Container) error {
	if err := app.Share("alpha", "α"); err != nil {
		return err
	}
	return app.Share("beta", "β")
}

// failingProvider collides with a protected key.
type failingProvider struct{ container.BaseProvider }

func (p *failingProvider) Register(app *container.Container) error {
	return app.Set("locked", "other")
}

// ── ProviderRegistry ──────────────────────────────────────────────────────────

func TestRegistry_EagerProvider_RegisterCalled(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &eagerProvider{}
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if p.registerCalled != 1 {
		t.Error("Register() should be called immediately for eager providers")
	}
}

func TestRegistry_EagerProvider_BootCalledAfterBoot(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &eagerProvider{}
	_ = reg.Register(p)

	if p.bootCalled {
		t.Error("Boot() should NOT be called before registry.Boot()")
	}

	if err := reg.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if !p.bootCalled {
		t.Error("Boot() should be called after registry.Boot()")
	}
}

func TestRegistry_EagerProvider_ServiceResolvable(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	_ = reg.Register(&eagerProvider{})
	_ = reg.Boot()

	got := container.MustResolve[string](c, "eager-svc")
	if got != "eager" {
		t.Errorf("eager-svc: got %q, want 'eager'", got)
	}
}

func TestRegistry_Boot_IdempotentCallsAreIgnored(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &eagerProvider{}
	_ = reg.Register(p)

	_ = reg.Boot()
	_ = reg.Boot() // second call should be no-op

	if !reg.Booted() {
		t.Error("Booted() should be true after Boot()")
	}
}

func TestRegistry_Booted_FalseBeforeBoot(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	if reg.Booted() {
		t.Error("Booted() should be false before Boot()")
	}
}

func TestRegistry_DuplicateRegister_Ignored(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &eagerProvider{}
	_ = reg.Register(p)
	_ = reg.Register(p) // second register of same instance

	if p.registerCalled != 1 {
		t.Errorf("provider registered %d times, want 1", p.registerCalled)
	}
}

func TestRegistry_RegisterError_Wrapped(t *testing.T) {
	c := container.New()
	if err := c.Protect("locked", "value"); err != nil {
		t.Fatal(err)
	}
	reg := container.NewProviderRegistry(c)

	err := reg.Register(&failingProvider{})
	if !errors.Is(err, container.ErrProtectedKey) {
		t.Errorf("Register: got %v, want ErrProtectedKey", err)
	}
}

// ── Deferred providers ────────────────────────────────────────────────────────

func TestRegistry_DeferredProvider_NotRegisteredEagerly(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &deferredProvider{}
	_ = reg.Register(p)
	_ = reg.Boot()

	if p.registerCalled != 0 {
		t.Error("deferred provider Register() should not be called until Get()")
	}
	if got := reg.Deferred(); len(got) != 1 || got[0] != "deferred-svc" {
		t.Errorf("Deferred(): got %v", got)
	}
}

func TestRegistry_DeferredProvider_RegisteredOnFirstGet(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)

	p := &deferredProvider{}
	_ = reg.Register(p)
	_ = reg.Boot()

	got := container.MustResolve[string](c, "deferred-svc")
	if got != "deferred-value" {
		t.Errorf("deferred-svc: got %q, want 'deferred-value'", got)
	}
	if !p.bootCalled {
		t.Error("deferred provider loaded after Boot() should be booted")
	}

	_ = container.MustResolve[string](c, "deferred-svc")
	if p.registerCalled != 1 {
		t.Errorf("deferred provider registered %d times, want 1", p.registerCalled)
	}
	if len(reg.Deferred()) != 0 {
		t.Errorf("Deferred() after load: got %v, want empty", reg.Deferred())
	}
}

func TestRegistry_DeferredProvider_MissingKeyFails(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	_ = reg.Register(&brokenDeferredProvider{})

	if _, err := c.Get("ghost"); err == nil {
		t.Error("Get(ghost) should fail when the deferred provider does not register it")
	}
}

// ── Multiple providers ────────────────────────────────────────────────────────

func TestRegistry_MultipleProviders_AllServicesResolvable(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	_ = reg.Register(&multiProvider{})
	_ = reg.Register(&eagerProvider{})
	_ = reg.Boot()

	for key, want := range map[string]string{"alpha": "α", "beta": "β", "eager-svc": "eager"} {
		if got := container.MustResolve[string](c, key); got != want {
			t.Errorf("%s: got %q, want %q", key, got, want)
		}
	}
}

// ── Providers list ────────────────────────────────────────────────────────────

func TestRegistry_Providers_ReturnsEagerOnes(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	_ = reg.Register(&eagerProvider{})
	_ = reg.Register(&deferredProvider{}) // deferred, not in Providers()

	if len(reg.Providers()) != 1 {
		t.Errorf("Providers(): got %d, want 1 (eager only)", len(reg.Providers()))
	}
}

// ── BaseProvider defaults ─────────────────────────────────────────────────────

func TestBaseProvider_Defaults(t *testing.T) {
	var p container.BaseProvider
	c := container.New()

	if err := p.Boot(c); err != nil {
		t.Errorf("BaseProvider.Boot() returned %v", err)
	}
	if p.IsDeferred() {
		t.Error("BaseProvider.IsDeferred() should be false")
	}
	if len(p.Provides()) != 0 {
		t.Error("BaseProvider.Provides() should return empty slice")
	}
}

// ── Boot after registration (late provider) ───────────────────────────────────

func TestRegistry_RegisterAfterBoot_BootsImmediately(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	_ = reg.Boot() // boot before registering

	p := &eagerProvider{}
	_ = reg.Register(p) // register after boot

	if !p.bootCalled {
		t.Error("provider registered after Boot() should be booted immediately")
	}
}

func TestContainer_RegisterServiceProvider(t *testing.T) {
	c := container.New()
	p := &multiProvider{}
	if err := c.RegisterServiceProvider(p); err != nil {
		t.Fatalf("RegisterServiceProvider: %v", err)
	}
	if !c.Has("alpha") || !c.Has("beta") {
		t.Error("RegisterServiceProvider should run Register")
	}
}
