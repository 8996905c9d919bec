package corebind

import "reflect"

// ConcreteKind identifies which variant of Concrete a binding carries.
type ConcreteKind int

const (
	// ConcreteTypeKind holds a constructor function that the analyzer can
	// inspect to produce a ServicePrototype.
	ConcreteTypeKind ConcreteKind = iota
	// ConcreteFactoryKind holds a user factory invoked with a Resolver.
	ConcreteFactoryKind
	// ConcreteInstanceKind holds a pre-built value; implicitly Singleton,
	// bypasses analysis entirely.
	ConcreteInstanceKind
)

func (k ConcreteKind) String() string {
	switch k {
	case ConcreteTypeKind:
		return "Type"
	case ConcreteFactoryKind:
		return "Factory"
	case ConcreteInstanceKind:
		return "Instance"
	default:
		return "Unknown"
	}
}

// Factory is a user-provided producer invoked with the Resolver performing
// the current resolution, returning the constructed value or an error.
type Factory func(r Resolver) (any, error)

// Concrete is the tagged union of the three ways a binding can produce a
// value: a constructor function the analyzer inspects, a user Factory, or a
// pre-built instance.
type Concrete struct {
	kind        ConcreteKind
	constructor any
	factory     Factory
	instance    any
}

// ConcreteType wraps a constructor function as a Concrete. constructor must
// be a non-nil function; validity beyond that is checked at analysis time.
func ConcreteType(constructor any) Concrete {
	return Concrete{kind: ConcreteTypeKind, constructor: constructor}
}

// ConcreteFromFactory wraps a user factory as a Concrete.
func ConcreteFromFactory(f Factory) Concrete {
	return Concrete{kind: ConcreteFactoryKind, factory: f}
}

// ConcreteFromInstance wraps a pre-built value as a Concrete.
func ConcreteFromInstance(v any) Concrete {
	return Concrete{kind: ConcreteInstanceKind, instance: v}
}

// Kind reports which variant c holds.
func (c Concrete) Kind() ConcreteKind { return c.kind }

// Constructor returns the constructor function for a ConcreteTypeKind value.
func (c Concrete) Constructor() any { return c.constructor }

// FactoryFunc returns the factory for a ConcreteFactoryKind value.
func (c Concrete) FactoryFunc() Factory { return c.factory }

// Instance returns the pre-built value for a ConcreteInstanceKind value.
func (c Concrete) Instance() any { return c.instance }

// reflectedType best-effort reports the produced type, used by the analyzer
// and validator for diagnostics. Returns nil when it cannot be determined
// without invoking anything (factories report nil).
func (c Concrete) reflectedType() reflect.Type {
	switch c.kind {
	case ConcreteTypeKind:
		if c.constructor == nil {
			return nil
		}
		t := reflect.TypeOf(c.constructor)
		if t == nil || t.Kind() != reflect.Func || t.NumOut() == 0 {
			return nil
		}
		return t.Out(0)
	case ConcreteInstanceKind:
		if c.instance == nil {
			return nil
		}
		return reflect.TypeOf(c.instance)
	default:
		return nil
	}
}

// ServiceDefinition is the registered contract for one ServiceID.
type ServiceDefinition struct {
	ID              ServiceID
	Class           string
	Concrete        Concrete
	Lifetime        Lifetime
	Tags            []string
	Environment     Environment
	Dependencies    []ServiceID
	Config          map[string]any
	ComplexityScore int
	// InjectedMethods names ConcreteTypeKind constructed methods the
	// analyzer should treat as injection points (spec.md §4.8 step 8),
	// analyzed the same way the constructor's own parameters are.
	InjectedMethods []string
}

// clone returns a deep-enough copy for safe storage in the registry: slices
// and the config map are copied so later caller mutation of the original
// value does not leak into the store.
func (d ServiceDefinition) clone() ServiceDefinition {
	out := d
	if d.Tags != nil {
		out.Tags = append([]string(nil), d.Tags...)
	}
	if d.Dependencies != nil {
		out.Dependencies = append([]ServiceID(nil), d.Dependencies...)
	}
	if d.InjectedMethods != nil {
		out.InjectedMethods = append([]string(nil), d.InjectedMethods...)
	}
	if d.Config != nil {
		cfg := make(map[string]any, len(d.Config))
		for k, v := range d.Config {
			cfg[k] = v
		}
		out.Config = cfg
	}
	return out
}

// hasTag reports whether d carries tag among its deduplicated tag set.
func (d ServiceDefinition) hasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Binding is a ServiceDefinition plus resolver-facing metadata: contextual
// overrides keyed by consumer, decorators, and resolving callbacks, each
// kept in registration order.
type Binding struct {
	Definition        ServiceDefinition
	ContextualGives   map[ServiceID]Concrete // keyed by consumer ServiceID
	Decorators        []DecoratorFunc
	ResolvingCallbacks []ResolvingFunc
}

// DecoratorFunc wraps a resolved instance, returning a replacement value
// (typically still assignable to the same capability set).
type DecoratorFunc func(r Resolver, instance any) (any, error)

// ResolvingFunc inspects or mutates a resolved instance before decoration;
// it runs before any DecoratorFunc for the same ServiceID.
type ResolvingFunc func(r Resolver, instance any) error

func newBinding(def ServiceDefinition) *Binding {
	return &Binding{Definition: def}
}
