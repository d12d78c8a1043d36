package container

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// ── Resolver ──────────────────────────────────────────────────────────────────

// Resolver is the two-method lookup capability every container exposes.
// Any Resolver can be used as the parent of a Container; foreign resolvers
// act as a read-only fallback.
type Resolver interface {
	Has(id string) bool
	Get(id string) (any, error)
}

var _ Resolver = (*Container)(nil)

// ── Container ─────────────────────────────────────────────────────────────────

// Container is the dependency injection container.
//
// It supports:
//   - Set / Share / Protect / Alias
//   - Get / Has / GetNewInstance
//   - Tags (group multiple keys under one tag)
//   - Extend (decorate resolved instances)
//   - Parent containers (CreateChild or any Resolver)
//   - Autowiring of catalogued constructors, with circular detection
//   - Contextual binding (when A needs B, give it C)
//
// A Container is meant to be driven from a single goroutine. Its maps are
// guarded, but autowiring tracks in-flight classes per container and
// concurrent builds of the same class report false cycles.
type Container struct {
	mu sync.RWMutex

	// canonical key → resource
	resources map[string]*Resource

	// alias → canonical key
	aliases map[string]string

	// tag → []canonical key
	tags map[string][]string

	parent Resolver

	// classes currently being autowired, in call order
	resolving []string

	classes *Classes

	// contextual: when[class][needs] = factory
	contextual map[string]map[string]Factory

	afterResolving []func(string, any)

	logger *zap.Logger
}

// Option configures a Container at construction.
type Option func(*Container)

// WithParent sets the resolver consulted when a key is not registered
// locally. It may be another *Container or any foreign Resolver.
func WithParent(parent Resolver) Option {
	return func(c *Container) {
		if pc, ok := parent.(*Container); ok && pc == nil {
			return
		}
		c.parent = parent
	}
}

// WithLogger sets the logger used for debug traces.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClasses shares a class catalog with the container.
func WithClasses(classes *Classes) Option {
	return func(c *Container) {
		if classes != nil {
			c.classes = classes
		}
	}
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		resources:  make(map[string]*Resource),
		aliases:    make(map[string]string),
		tags:       make(map[string][]string),
		contextual: make(map[string]map[string]Factory),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.classes == nil {
		c.classes = NewClasses()
	}
	return c
}

// CreateChild returns a container whose lookups fall back to c.
// The child shares c's class catalog and logger.
func (c *Container) CreateChild() *Container {
	return New(WithParent(c), WithClasses(c.classes), WithLogger(c.logger))
}

// Parent returns the fallback resolver, or nil.
func (c *Container) Parent() Resolver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parent
}

// Classes returns the class catalog used for autowiring.
func (c *Container) Classes() *Classes { return c.classes }

// ── Registration ──────────────────────────────────────────────────────────────

// SetOption tunes a single registration.
type SetOption func(*setOptions)

type setOptions struct {
	shared    bool
	protected bool
}

// Shared caches the produced value; every Get returns the same instance.
func Shared() SetOption { return func(o *setOptions) { o.shared = true } }

// Protected makes later Set and Extend calls on the key fail.
func Protected() SetOption { return func(o *setOptions) { o.protected = true } }

// Set registers value under key.
//
// A Factory (or a func(*Container) any / func(*Container) (any, error)) is
// invoked lazily with the container; any other value is a literal. Non-shared
// literals that point to structs are copied on every access.
//
// A nil value removes the key, even when it is protected.
//
//	c.Set("mailer", func(c *container.Container) (any, error) {
//	    return mail.New(), nil
//	}, container.Shared())
func (c *Container) Set(key string, v any, opts ...SetOption) error {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}

	key = c.resolveAlias(key)

	val, ok := toValue(v)
	if !ok {
		c.mu.Lock()
		delete(c.resources, key)
		c.mu.Unlock()
		c.logger.Debug("resource removed", zap.String("key", key))
		return nil
	}

	if protected, err := c.flag(key, (*Resource).IsProtected); err == nil && protected {
		return &ProtectedKeyError{Key: key}
	}

	r := newResource(c, key, val, o.shared, o.protected)
	c.mu.Lock()
	c.resources[key] = r
	c.mu.Unlock()

	c.logger.Debug("resource registered",
		zap.String("key", key),
		zap.Bool("shared", o.shared),
		zap.Bool("protected", o.protected),
		zap.Bool("factory", val.factory != nil),
	)
	return nil
}

// Share is Set with Shared().
func (c *Container) Share(key string, v any, opts ...SetOption) error {
	return c.Set(key, v, append(opts, Shared())...)
}

// Protect is Set with Protected().
func (c *Container) Protect(key string, v any, opts ...SetOption) error {
	return c.Set(key, v, append(opts, Protected())...)
}

// Alias registers an alternative name for key. The target does not have
// to exist yet. Aliases are followed one level only.
//
//	c.Alias("db", "database.connection")
func (c *Container) Alias(alias, key string) {
	if alias == key {
		panic(fmt.Sprintf("container: [%s] is aliased to itself", key))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aliases[alias] = key
}

// Extend decorates the value produced for key. The decorator receives the
// previous value (the literal itself for literal resources) and returns the
// replacement. The shared flag of the original resource is kept.
//
//	c.Extend("logger", func(instance any, c *container.Container) (any, error) {
//	    return &TimestampLogger{Inner: instance.(*Logger)}, nil
//	})
func (c *Container) Extend(key string, decorator Decorator) error {
	key = c.resolveAlias(key)

	prev, err := c.lookupResource(key)
	if err != nil {
		return err
	}
	if prev.IsProtected() {
		return &ProtectedKeyError{Key: key}
	}

	// The inner resolution stays silent so AfterResolving fires once, for
	// the decorated instance.
	f := func(owner *Container) (any, error) {
		instance, err := prev.resolve(false)
		if err != nil {
			return nil, err
		}
		return decorator(instance, owner)
	}

	r := newResource(c, key, value{factory: f}, prev.IsShared(), false)
	c.mu.Lock()
	c.resources[key] = r
	c.mu.Unlock()

	c.logger.Debug("resource extended", zap.String("key", key))
	return nil
}

// Tag associates keys with a named group. Keys are resolved through the
// alias table and appended in order.
//
//	c.Tag("reports", "CpuReport", "MemoryReport")
func (c *Container) Tag(tag string, keys ...string) {
	resolved := make([]string, len(keys))
	for i, k := range keys {
		resolved[i] = c.resolveAlias(k)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[tag] = append(c.tags[tag], resolved...)
}

// HasTag reports whether any key was tagged with tag.
func (c *Container) HasTag(tag string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tags[tag]) > 0
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Get resolves key. Lookup order: alias, local resource, parent, then
// autowiring when key names a concrete catalogued class.
func (c *Container) Get(key string) (any, error) {
	return c.get(c.resolveAlias(key), key)
}

// get resolves an already alias-resolved key; requested is the key the
// caller asked for, used in errors.
func (c *Container) get(resolved, requested string) (any, error) {
	c.mu.RLock()
	r, ok := c.resources[resolved]
	parent := c.parent
	c.mu.RUnlock()

	if ok {
		return r.Instance()
	}
	if parent != nil && parent.Has(resolved) {
		return parent.Get(resolved)
	}
	if cl, ok := c.classes.Lookup(resolved); ok && cl.Instantiable() {
		instance, _, err := c.build(resolved, false, true)
		return instance, err
	}
	return nil, &KeyNotFoundError{Key: requested}
}

// Has reports whether key is registered here or in the parent chain.
func (c *Container) Has(key string) bool {
	return c.has(c.resolveAlias(key))
}

// has is Has for an already alias-resolved key.
func (c *Container) has(key string) bool {
	c.mu.RLock()
	_, ok := c.resources[key]
	parent := c.parent
	c.mu.RUnlock()

	if ok {
		return true
	}
	return parent != nil && parent.Has(key)
}

// GetNewInstance produces a fresh value for key without touching the
// cached instance of a shared resource. Keys served by a foreign parent
// are returned as that parent provides them.
func (c *Container) GetNewInstance(key string) (any, error) {
	key = c.resolveAlias(key)

	c.mu.RLock()
	r, ok := c.resources[key]
	parent := c.parent
	c.mu.RUnlock()

	if ok {
		return r.NewInstance()
	}
	switch p := parent.(type) {
	case nil:
	case *Container:
		return p.GetNewInstance(key)
	default:
		if p.Has(key) {
			return p.Get(key)
		}
	}
	return nil, &KeyNotFoundError{Key: key}
}

// IsShared reports the shared flag of key. Keys served by a foreign parent
// are shared by convention.
func (c *Container) IsShared(key string) (bool, error) {
	return c.hasFlag(key, (*Resource).IsShared)
}

// IsProtected reports the protected flag of key. Keys served by a foreign
// parent are protected by convention.
func (c *Container) IsProtected(key string) (bool, error) {
	return c.hasFlag(key, (*Resource).IsProtected)
}

func (c *Container) hasFlag(key string, flag func(*Resource) bool) (bool, error) {
	return c.flag(c.resolveAlias(key), flag)
}

// flag is hasFlag for an already alias-resolved key.
func (c *Container) flag(key string, flag func(*Resource) bool) (bool, error) {
	c.mu.RLock()
	r, ok := c.resources[key]
	parent := c.parent
	c.mu.RUnlock()

	if ok {
		return flag(r), nil
	}
	switch p := parent.(type) {
	case nil:
	case *Container:
		return p.hasFlag(key, flag)
	default:
		if p.Has(key) {
			return true, nil
		}
	}
	return false, &KeyNotFoundError{Key: key}
}

// Reset drops the cached instance of a shared resource so the next Get
// produces a new one. It reports false for non-shared and protected
// resources, and for keys served by a foreign parent.
func (c *Container) Reset(key string) (bool, error) {
	key = c.resolveAlias(key)

	c.mu.RLock()
	r, ok := c.resources[key]
	parent := c.parent
	c.mu.RUnlock()

	if ok {
		return r.Reset(), nil
	}
	switch p := parent.(type) {
	case nil:
	case *Container:
		return p.Reset(key)
	default:
		if p.Has(key) {
			return false, nil
		}
	}
	return false, &KeyNotFoundError{Key: key}
}

// Keys returns the sorted union of alias names and registered keys.
func (c *Container) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.resources)+len(c.aliases))
	for k := range c.resources {
		out = append(out, k)
	}
	for k := range c.aliases {
		out = append(out, k)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Tagged resolves every key registered under tag, in registration order.
//
//	reports, err := c.Tagged("reports")  // []any
func (c *Container) Tagged(tag string) ([]any, error) {
	c.mu.RLock()
	keys := slices.Clone(c.tags[tag])
	c.mu.RUnlock()

	result := make([]any, 0, len(keys))
	for _, key := range keys {
		instance, err := c.get(key, key)
		if err != nil {
			return nil, fmt.Errorf("container: resolving tag [%s]: %w", tag, err)
		}
		result = append(result, instance)
	}
	return result, nil
}

// TaggedKeys returns the canonical keys registered under tag, without
// resolving them.
func (c *Container) TaggedKeys(tag string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.tags[tag])
}

// Canonical returns the key an alias points to, or key itself.
func (c *Container) Canonical(key string) string {
	return c.resolveAlias(key)
}

// resolveAlias follows one level of aliasing.
func (c *Container) resolveAlias(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if target, ok := c.aliases[key]; ok {
		return target
	}
	return key
}

// local returns the resource registered in c itself for key, or nil.
func (c *Container) local(key string) *Resource {
	key = c.resolveAlias(key)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resources[key]
}

// lookupResource finds the descriptor for key through the parent chain.
// A key served by a foreign parent is wrapped in a shared, protected
// resource that is never stored.
func (c *Container) lookupResource(key string) (*Resource, error) {
	c.mu.RLock()
	r, ok := c.resources[key]
	parent := c.parent
	c.mu.RUnlock()

	if ok {
		return r, nil
	}
	switch p := parent.(type) {
	case nil:
	case *Container:
		return p.lookupResource(p.resolveAlias(key))
	default:
		if p.Has(key) {
			instance, err := p.Get(key)
			if err != nil {
				return nil, err
			}
			return newResource(c, key, value{literal: instance}, true, true), nil
		}
	}
	return nil, &KeyNotFoundError{Key: key}
}

// ── Callbacks ─────────────────────────────────────────────────────────────────

// AfterResolving registers a callback fired whenever a factory or the
// autowiring resolver produces an instance.
func (c *Container) AfterResolving(cb func(key string, instance any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterResolving = append(c.afterResolving, cb)
}

func (c *Container) fireAfterResolving(key string, instance any) {
	c.mu.RLock()
	cbs := c.afterResolving
	c.mu.RUnlock()
	for _, cb := range cbs {
		cb(key, instance)
	}
}

// ── Reflect helpers ───────────────────────────────────────────────────────────

// TypeKey returns the package-qualified type name of v, useful as a stable
// key when working with interfaces. Pointers are dereferenced.
//
//	key := container.TypeKey((*UserRepository)(nil))  // "example.com/app.UserRepository"
func TypeKey(v any) string {
	return typeName(reflect.TypeOf(v))
}

// KeyFor is TypeKey for a type parameter.
//
//	c.Share(container.KeyFor[*Config](), cfg)
func KeyFor[T any]() string {
	return typeName(reflect.TypeFor[T]())
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return ""
	}
	return t.PkgPath() + "." + t.Name()
}

// ── Generics helper ───────────────────────────────────────────────────────────

// Resolve calls Get and type-asserts the result.
//
//	db, err := container.Resolve[*sql.DB](c, "db")
func Resolve[T any](c *Container, key string) (T, error) {
	var zero T
	instance, err := c.Get(key)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("container: [%s] resolved to %T, not %v", key, instance, reflect.TypeFor[T]())
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on failure.
func MustResolve[T any](c *Container, key string) T {
	typed, err := Resolve[T](c, key)
	if err != nil {
		panic(err)
	}
	return typed
}
