package container

// Aware is an embeddable holder for services that need their container.
//
//	type Controller struct{ container.Aware }
//
//	ctrl := &Controller{}
//	ctrl.SetContainer(c)
type Aware struct {
	container *Container
}

// SetContainer stores c.
func (a *Aware) SetContainer(c *Container) { a.container = c }

// Container returns the stored container or ErrContainerNotFound.
func (a *Aware) Container() (*Container, error) {
	if a.container == nil {
		return nil, ErrContainerNotFound
	}
	return a.container, nil
}
