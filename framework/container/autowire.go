package container

import (
	"slices"

	"go.uber.org/zap"
)

var containerKey = KeyFor[*Container]()

// BuildObject autowires class from the catalog.
//
// It reports false, with a nil error, when class is unknown. A class that
// is already registered (locally or in a parent) is resolved with Get.
// Abstract classes and interfaces without a registration fail. The result
// is not registered.
//
//	key, _ := c.Classes().Constructor(NewReportService)
//	svc, ok, err := c.BuildObject(key)
func (c *Container) BuildObject(class string) (any, bool, error) {
	return c.build(c.resolveAlias(class), false, false)
}

// BuildSharedObject is BuildObject, then registers the instance as a
// shared resource under class so later Get calls return it.
func (c *Container) BuildSharedObject(class string) (any, bool, error) {
	return c.build(c.resolveAlias(class), true, false)
}

// Construct autowires class from the catalog even when a resource is
// registered under the same key, which lets a factory registered as
// class build its own class. Unknown classes give a KeyNotFoundError.
//
//	c.Share(KeyFor[*Mailer](), func(c *Container) (any, error) {
//		return c.Construct(KeyFor[*Mailer]())
//	})
func (c *Container) Construct(class string) (any, error) {
	instance, ok, err := c.build(c.resolveAlias(class), false, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &KeyNotFoundError{Key: class}
	}
	return instance, nil
}

// build expects key to be alias-resolved. Unless catalogOnly is set, a
// registered key is served by get.
func (c *Container) build(key string, shared, catalogOnly bool) (any, bool, error) {
	release, err := c.enter(key)
	if err != nil {
		return nil, true, err
	}
	defer release()

	if !catalogOnly && c.has(key) {
		instance, err := c.get(key, key)
		return instance, true, err
	}

	cl, ok := c.classes.Lookup(key)
	if !ok {
		return nil, false, nil
	}
	if cl.Abstract {
		return nil, true, &DependencyResolutionError{Reason: ReasonUnboundAbstract, Class: key}
	}
	if cl.New == nil {
		return nil, true, &DependencyResolutionError{Reason: ReasonNotInstantiable, Class: key}
	}

	c.logger.Debug("autowiring", zap.String("class", key), zap.Int("params", len(cl.Params)))

	args, err := c.resolveParams(cl)
	if err != nil {
		return nil, true, err
	}
	instance, err := cl.New(args)
	if err != nil {
		return nil, true, &DependencyResolutionError{Reason: ReasonConstructor, Class: key, Err: err}
	}
	c.fireAfterResolving(key, instance)

	if shared {
		construct := cl.New
		r := newResource(c, key, value{factory: func(*Container) (any, error) {
			return construct(args)
		}}, true, false)
		r.instance = instance
		r.cached = true

		c.mu.Lock()
		c.resources[key] = r
		c.mu.Unlock()
	}
	return instance, true, nil
}

// enter marks key as in flight. The returned func clears the mark and
// must run on every exit path.
func (c *Container) enter(key string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if slices.Contains(c.resolving, key) {
		path := append(slices.Clone(c.resolving), key)
		c.logger.Debug("circular dependency", zap.Strings("path", path))
		return nil, &DependencyResolutionError{Reason: ReasonCircular, Class: key, Path: path}
	}
	c.resolving = append(c.resolving, key)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if i := slices.Index(c.resolving, key); i >= 0 {
			c.resolving = slices.Delete(c.resolving, i, i+1)
		}
	}, nil
}

func (c *Container) resolveParams(cl *Class) ([]any, error) {
	args := make([]any, len(cl.Params))
	for i, p := range cl.Params {
		arg, err := c.resolveParam(cl.Name, p)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	return args, nil
}

// resolveParam picks the argument for one parameter of class. Order:
// contextual binding, variadic handling, then by kind: registered
// resource, concrete class build, nil for nullables, default value, error.
func (c *Container) resolveParam(class string, p Param) (any, error) {
	if f := c.contextualFor(class, p); f != nil {
		return f(c)
	}

	if p.Variadic {
		if p.Kind != ParamClass || !c.HasTag(p.Type) {
			return []any{}, nil
		}
		return c.Tagged(p.Type)
	}

	switch p.Kind {
	case ParamClass:
		return c.resolveClassParam(class, p)
	case ParamUntyped:
		if p.HasDefault {
			return p.Default, nil
		}
		return nil, &DependencyResolutionError{Reason: ReasonUntyped, Class: class, Param: p.Name}
	default:
		if p.HasDefault {
			return p.Default, nil
		}
		return nil, &DependencyResolutionError{Reason: ReasonScalar, Class: class, Param: p.Name}
	}
}

func (c *Container) resolveClassParam(class string, p Param) (any, error) {
	if p.Type == containerKey {
		return c, nil
	}
	key := c.resolveAlias(p.Type)
	if c.has(key) {
		return c.get(key, p.Type)
	}

	dep, ok := c.classes.Lookup(key)
	switch {
	case !ok:
		if p.Nullable {
			return nil, nil
		}
		if p.HasDefault {
			return p.Default, nil
		}
		return nil, &DependencyResolutionError{Reason: ReasonMissingClass, Class: class, Param: p.Name, Dependency: p.Type}
	case !dep.Instantiable():
		if p.Nullable {
			return nil, nil
		}
		if p.HasDefault {
			return p.Default, nil
		}
		return nil, &DependencyResolutionError{Reason: ReasonUnboundAbstract, Class: class, Param: p.Name, Dependency: p.Type}
	}

	instance, _, err := c.build(dep.Name, false, true)
	return instance, err
}
