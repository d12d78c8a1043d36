package container

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ParamKind classifies a constructor parameter for autowiring.
type ParamKind uint8

const (
	// ParamClass parameters name a class or interface key.
	ParamClass ParamKind = iota
	// ParamScalar parameters are values the container cannot build.
	ParamScalar
	// ParamUntyped parameters accept anything (any / interface{}).
	ParamUntyped
)

func (k ParamKind) String() string {
	switch k {
	case ParamClass:
		return "class"
	case ParamScalar:
		return "scalar"
	case ParamUntyped:
		return "untyped"
	default:
		return "unknown"
	}
}

// Param describes one constructor parameter.
type Param struct {
	Name string
	// Type is the class key for ParamClass parameters and the Go type for
	// scalars. It is empty for untyped parameters.
	Type       string
	Kind       ParamKind
	Nullable   bool
	Variadic   bool
	HasDefault bool
	Default    any
}

// Class is the constructor metadata the autowiring resolver works from.
//
// New receives one argument per parameter. The argument of a variadic
// parameter is a []any holding zero or more values.
type Class struct {
	Name     string
	Abstract bool
	Params   []Param
	New      func(args []any) (any, error)
}

// Instantiable reports whether the class can be built.
func (cl *Class) Instantiable() bool {
	return !cl.Abstract && cl.New != nil
}

// Classes is the catalog of known classes. Go has no runtime lookup of
// types by name, so classes are registered explicitly, usually from
// constructor functions.
type Classes struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewClasses creates an empty catalog.
func NewClasses() *Classes {
	return &Classes{classes: make(map[string]*Class)}
}

// Register adds or replaces a class.
func (cat *Classes) Register(cl Class) {
	cat.mu.Lock()
	defer cat.mu.Unlock()
	cat.classes[cl.Name] = &cl
}

// Lookup returns the class registered under name.
func (cat *Classes) Lookup(name string) (*Class, bool) {
	cat.mu.RLock()
	defer cat.mu.RUnlock()
	cl, ok := cat.classes[name]
	return cl, ok
}

// Exists reports whether name is a known class or interface.
func (cat *Classes) Exists(name string) bool {
	_, ok := cat.Lookup(name)
	return ok
}

// Abstract declares name as an abstract class. Existing entries are kept.
func (cat *Classes) Abstract(name string) {
	cat.mu.Lock()
	defer cat.mu.Unlock()
	if _, ok := cat.classes[name]; !ok {
		cat.classes[name] = &Class{Name: name, Abstract: true}
	}
}

// Interface declares the interface type T in cat and returns its key.
//
//	key := container.Interface[Mailer](c.Classes())
func Interface[T any](cat *Classes) string {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Interface {
		panic(fmt.Sprintf("container: Interface[%v]: not an interface type", t))
	}
	name := typeName(t)
	if name == "" {
		panic(fmt.Sprintf("container: Interface[%v]: unnamed interface", t))
	}
	cat.Abstract(name)
	return name
}

// ParamOption adjusts the metadata Constructor derives by reflection.
type ParamOption func(params []Param) error

// WithDefault gives parameter i a default value.
func WithDefault(i int, v any) ParamOption {
	return func(params []Param) error {
		if i < 0 || i >= len(params) {
			return fmt.Errorf("container: WithDefault: parameter %d out of range", i)
		}
		params[i].HasDefault = true
		params[i].Default = v
		return nil
	}
}

// Nullable lets parameter i receive nil when its dependency can't be resolved.
func Nullable(i int) ParamOption {
	return func(params []Param) error {
		if i < 0 || i >= len(params) {
			return fmt.Errorf("container: Nullable: parameter %d out of range", i)
		}
		params[i].Nullable = true
		return nil
	}
}

// Named renames parameter i. Names appear in errors and contextual
// bindings ("$name").
func Named(i int, name string) ParamOption {
	return func(params []Param) error {
		if i < 0 || i >= len(params) {
			return fmt.Errorf("container: Named: parameter %d out of range", i)
		}
		params[i].Name = name
		return nil
	}
}

var errorType = reflect.TypeFor[error]()

// Constructor registers the class built by fn and returns its key.
//
// fn must return a value, or a value and an error. The class key is the
// TypeKey of the first result. Parameters become class parameters when
// they are interfaces or pointers to named structs, untyped when they are
// empty interfaces, and scalars otherwise. Interface parameter types are
// declared abstract in the catalog.
//
//	key, err := c.Classes().Constructor(NewMailer, container.WithDefault(1, 25))
func (cat *Classes) Constructor(fn any, opts ...ParamOption) (string, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return "", errors.New("container: constructor must be a function")
	}
	ft := fv.Type()
	if ft.NumOut() < 1 || ft.NumOut() > 2 || (ft.NumOut() == 2 && !ft.Out(1).Implements(errorType)) {
		return "", errors.New("container: constructor must return exactly one value, or a value and an error")
	}

	name := typeName(ft.Out(0))
	if name == "" {
		return "", fmt.Errorf("container: constructor result %v has no package-qualified name", ft.Out(0))
	}

	params := make([]Param, ft.NumIn())
	for i := range params {
		t := ft.In(i)
		variadic := ft.IsVariadic() && i == ft.NumIn()-1
		if variadic {
			t = t.Elem()
		}
		params[i] = describeParam(t, i, variadic)
		if params[i].Kind == ParamClass && t.Kind() == reflect.Interface {
			cat.Abstract(params[i].Type)
		}
	}
	for _, opt := range opts {
		if err := opt(params); err != nil {
			return "", err
		}
	}

	cat.Register(Class{
		Name:   name,
		Params: params,
		New: func(args []any) (any, error) {
			return callConstructor(fv, args)
		},
	})
	return name, nil
}

func describeParam(t reflect.Type, i int, variadic bool) Param {
	p := Param{
		Name:     fmt.Sprintf("arg%d", i),
		Variadic: variadic,
	}
	switch {
	case t.Kind() == reflect.Interface && t.NumMethod() == 0:
		p.Kind = ParamUntyped
	case isClassType(t):
		p.Kind = ParamClass
		p.Type = typeName(t)
	default:
		p.Kind = ParamScalar
		p.Type = t.String()
	}
	return p
}

func isClassType(t reflect.Type) bool {
	if typeName(t) == "" {
		return false
	}
	if t.Kind() == reflect.Interface {
		return true
	}
	return t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct
}

func callConstructor(fv reflect.Value, args []any) (any, error) {
	ft := fv.Type()
	if len(args) != ft.NumIn() {
		return nil, fmt.Errorf("container: constructor takes %d arguments, got %d", ft.NumIn(), len(args))
	}

	in := make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		if ft.IsVariadic() && i == ft.NumIn()-1 {
			rest, _ := arg.([]any)
			elem := ft.In(i).Elem()
			for j, v := range rest {
				rv, err := argValue(v, elem)
				if err != nil {
					return nil, fmt.Errorf("container: variadic argument %d: %w", j, err)
				}
				in = append(in, rv)
			}
			break
		}
		rv, err := argValue(arg, ft.In(i))
		if err != nil {
			return nil, fmt.Errorf("container: argument %d: %w", i, err)
		}
		in = append(in, rv)
	}

	out := fv.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

func argValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(t):
		return rv, nil
	case sameFamily(rv.Kind(), t.Kind()) && rv.Type().ConvertibleTo(t):
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%T is not assignable to %v", v, t)
}

// sameFamily keeps conversions to the ones a default value needs, such as
// an int literal for a named integer type. It excludes int → string.
func sameFamily(a, b reflect.Kind) bool {
	return kindFamily(a) != 0 && kindFamily(a) == kindFamily(b)
}

func kindFamily(k reflect.Kind) int {
	switch {
	case k >= reflect.Int && k <= reflect.Uintptr:
		return 1
	case k == reflect.Float32 || k == reflect.Float64:
		return 1
	case k == reflect.String:
		return 2
	case k == reflect.Bool:
		return 3
	}
	return 0
}
