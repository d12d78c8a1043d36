package container

// ContextualBuilder implements the fluent contextual binding API.
//
//	c.When(reportsKey).Needs(container.KeyFor[Filesystem]()).Give(func(c *container.Container) (any, error) {
//	    return filesystem.NewS3(...), nil
//	})
type ContextualBuilder struct {
	container *Container
	class     string
	needs     string
}

// When starts a contextual binding chain for class.
func (c *Container) When(class string) *ContextualBuilder {
	return &ContextualBuilder{container: c, class: class}
}

// Needs names the dependency being overridden: a class key, or "$name"
// for a parameter by name.
func (b *ContextualBuilder) Needs(dependency string) *ContextualBuilder {
	b.needs = dependency
	return b
}

// Give provides the factory used when the class is autowired and asks
// for the dependency.
func (b *ContextualBuilder) Give(factory Factory) {
	b.container.mu.Lock()
	defer b.container.mu.Unlock()

	if _, ok := b.container.contextual[b.class]; !ok {
		b.container.contextual[b.class] = make(map[string]Factory)
	}
	b.container.contextual[b.class][b.needs] = factory
}

// GiveValue is a shorthand for Give with a fixed value.
//
//	c.When(reportsKey).Needs("$dir").GiveValue("/tmp/reports")
func (b *ContextualBuilder) GiveValue(value any) {
	b.Give(func(*Container) (any, error) { return value, nil })
}

// contextualFor returns the contextual factory for p while autowiring
// class, or nil. A binding by parameter name wins over one by type.
func (c *Container) contextualFor(class string, p Param) Factory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.contextual[class]
	if !ok {
		return nil
	}
	if f, ok := m["$"+p.Name]; ok {
		return f
	}
	if p.Type != "" {
		if f, ok := m[p.Type]; ok {
			return f
		}
	}
	return nil
}
