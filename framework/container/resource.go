package container

import (
	"reflect"
	"sync"
)

// Factory builds a value from the container that owns the resource.
type Factory func(c *Container) (any, error)

// Decorator wraps an already-resolved instance. See Container.Extend.
type Decorator func(instance any, c *Container) (any, error)

// Cloner lets a literal registered as non-shared control how it is copied
// on each access.
type Cloner interface {
	Clone() any
}

// value is either a literal or a factory, decided once at registration.
type value struct {
	literal any
	factory Factory
}

// toValue classifies v. It reports false for nil and nil funcs, which Set
// treats as a removal.
func toValue(v any) (value, bool) {
	switch f := v.(type) {
	case nil:
		return value{}, false
	case Factory:
		if f == nil {
			return value{}, false
		}
		return value{factory: f}, true
	case func(*Container) (any, error):
		if f == nil {
			return value{}, false
		}
		return value{factory: f}, true
	case func(*Container) any:
		if f == nil {
			return value{}, false
		}
		return value{factory: func(c *Container) (any, error) { return f(c), nil }}, true
	default:
		return value{literal: v}, true
	}
}

// Resource is the descriptor stored for every registered key.
type Resource struct {
	key       string
	container *Container
	value     value
	shared    bool
	protected bool

	mu        sync.Mutex
	instance  any
	cached    bool
	producing bool
}

func newResource(c *Container, key string, v value, shared, protected bool) *Resource {
	r := &Resource{
		key:       key,
		container: c,
		value:     v,
		shared:    shared,
		protected: protected,
	}
	if shared && v.factory == nil {
		r.instance = v.literal
		r.cached = true
	}
	return r
}

// Key returns the canonical key the resource is registered under.
func (r *Resource) Key() string { return r.key }

// IsShared reports whether the produced value is cached.
func (r *Resource) IsShared() bool { return r.shared }

// IsProtected reports whether Set and Extend refuse to replace the resource.
func (r *Resource) IsProtected() bool { return r.protected }

// IsFactory reports whether the resource was registered with a factory.
func (r *Resource) IsFactory() bool { return r.value.factory != nil }

// Instance returns the cached value for shared resources, producing it on
// first access, or a fresh value for non-shared ones. A factory that asks
// for its own resource again, directly or through other keys, gets a
// circular DependencyResolutionError.
func (r *Resource) Instance() (any, error) {
	return r.resolve(true)
}

// resolve is Instance; notify controls whether AfterResolving callbacks
// fire for a freshly produced value.
func (r *Resource) resolve(notify bool) (any, error) {
	if !r.shared {
		return r.produce(notify)
	}

	r.mu.Lock()
	if r.cached {
		instance := r.instance
		r.mu.Unlock()
		return instance, nil
	}
	r.mu.Unlock()

	// The factory runs unlocked: it may resolve other keys of the container.
	instance, err := r.produce(notify)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached {
		return r.instance, nil
	}
	r.instance = instance
	r.cached = true
	return instance, nil
}

// NewInstance always produces a fresh value and leaves the cache alone.
func (r *Resource) NewInstance() (any, error) {
	return r.produce(true)
}

// Reset drops the cached instance. Only shared, unprotected resources
// can be reset.
func (r *Resource) Reset() bool {
	if !r.shared || r.protected {
		return false
	}
	r.mu.Lock()
	r.instance = nil
	r.cached = false
	r.mu.Unlock()
	return true
}

func (r *Resource) produce(notify bool) (any, error) {
	if r.value.factory == nil {
		return cloneLiteral(r.value.literal), nil
	}

	r.mu.Lock()
	if r.producing {
		r.mu.Unlock()
		return nil, &DependencyResolutionError{Reason: ReasonCircular, Class: r.key}
	}
	r.producing = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.producing = false
		r.mu.Unlock()
	}()

	instance, err := r.value.factory(r.container)
	if err != nil {
		return nil, err
	}
	if notify {
		r.container.fireAfterResolving(r.key, instance)
	}
	return instance, nil
}

// cloneLiteral copies pointer-to-struct literals so that non-shared
// resources never hand out the registered object itself. Values that are
// not pointers to structs are returned unchanged.
func cloneLiteral(v any) any {
	if c, ok := v.(Cloner); ok {
		return c.Clone()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
		cp := reflect.New(rv.Elem().Type())
		cp.Elem().Set(rv.Elem())
		return cp.Interface()
	}
	return v
}
