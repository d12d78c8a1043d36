package container

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error below matches exactly one of these
// with errors.Is.
var (
	ErrKeyNotFound          = errors.New("container: key not found")
	ErrProtectedKey         = errors.New("container: key is protected")
	ErrDependencyResolution = errors.New("container: dependency resolution failed")
	ErrContainerNotFound    = errors.New("container: container not set")
)

// KeyNotFoundError is returned when a key is neither registered locally,
// aliased, nor resolvable through the parent chain.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("container: resource [%s] has not been registered with the container", e.Key)
}

func (e *KeyNotFoundError) Is(target error) bool { return target == ErrKeyNotFound }

// ProtectedKeyError is returned by Set and Extend on a protected resource.
type ProtectedKeyError struct {
	Key string
}

func (e *ProtectedKeyError) Error() string {
	return fmt.Sprintf("container: key [%s] is protected and can't be overwritten", e.Key)
}

func (e *ProtectedKeyError) Is(target error) bool { return target == ErrProtectedKey }

// Reason classifies a DependencyResolutionError.
type Reason string

const (
	ReasonCircular        Reason = "circular"
	ReasonScalar          Reason = "scalar"
	ReasonUntyped         Reason = "untyped"
	ReasonUnboundAbstract Reason = "unbound_abstract"
	ReasonMissingClass    Reason = "missing_class"
	ReasonNotInstantiable Reason = "not_instantiable"
	ReasonConstructor     Reason = "constructor"
)

// DependencyResolutionError describes why autowiring a class failed.
type DependencyResolutionError struct {
	Reason     Reason
	Class      string
	Param      string
	Dependency string
	// Path lists the classes being autowired when a cycle was detected,
	// ending with the repeated class.
	Path []string
	Err  error
}

func (e *DependencyResolutionError) Error() string {
	switch e.Reason {
	case ReasonCircular:
		if len(e.Path) > 1 {
			return fmt.Sprintf("container: cannot resolve circular dependency for [%s] (%s)", e.Class, strings.Join(e.Path, " -> "))
		}
		return fmt.Sprintf("container: cannot resolve circular dependency for [%s]", e.Class)
	case ReasonScalar:
		return fmt.Sprintf("container: could not resolve parameter %q of [%s]: scalar parameters cannot be autowired and the parameter does not have a default value", e.Param, e.Class)
	case ReasonUntyped:
		return fmt.Sprintf("container: could not resolve parameter %q of [%s]: the argument is untyped and has no default value", e.Param, e.Class)
	case ReasonUnboundAbstract:
		if e.Param == "" {
			return fmt.Sprintf("container: there is no service for [%s] defined, cannot autowire an abstract class or interface", e.Class)
		}
		return fmt.Sprintf("container: could not resolve parameter %q of [%s]: no service for interface [%s] exists and the dependency could not be autowired", e.Param, e.Class, e.Dependency)
	case ReasonMissingClass:
		return fmt.Sprintf("container: could not resolve parameter %q of [%s]: the [%s] class does not exist", e.Param, e.Class, e.Dependency)
	case ReasonNotInstantiable:
		return fmt.Sprintf("container: [%s] cannot be instantiated", e.Class)
	default:
		return fmt.Sprintf("container: constructing [%s]: %v", e.Class, e.Err)
	}
}

func (e *DependencyResolutionError) Is(target error) bool { return target == ErrDependencyResolution }

func (e *DependencyResolutionError) Unwrap() error { return e.Err }
