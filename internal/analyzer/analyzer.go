// Package analyzer inspects constructor functions and produces the
// immutable prototypes the resolver later replays to build instances.
package analyzer

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/relaycore/corebind/internal/prototype"
)

// Option customizes a single Analyze call. Go constructors have no default
// argument or method-annotation syntax, so defaults and injected methods
// are declared out of band at registration time.
type Option func(*options)

type options struct {
	defaults        map[int]any
	injectedMethods []string
}

// WithDefault declares a default value for the parameter at index idx,
// matching it against the constructor's declared parameter list.
func WithDefault(idx int, value any) Option {
	return func(o *options) {
		if o.defaults == nil {
			o.defaults = make(map[int]any)
		}
		o.defaults[idx] = value
	}
}

// WithInjectedMethod declares that methodName on the constructed type is an
// injection point; its parameters are analyzed the same as a constructor's.
func WithInjectedMethod(methodName string) Option {
	return func(o *options) {
		o.injectedMethods = append(o.injectedMethods, methodName)
	}
}

// Error is returned when a constructor cannot be analyzed.
type Error struct {
	Type   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("analyzer: cannot analyze %s: %s", e.Type, e.Reason)
}

// Analyzer produces ServicePrototype values from constructor functions,
// memoizing by the constructor's function pointer.
type Analyzer struct {
	mu        sync.RWMutex
	cache     map[uintptr]*prototype.ServicePrototype
	byReturns map[reflect.Type]*prototype.ServicePrototype
}

// New returns a ready-to-use Analyzer.
func New() *Analyzer {
	return &Analyzer{
		cache:     make(map[uintptr]*prototype.ServicePrototype),
		byReturns: make(map[reflect.Type]*prototype.ServicePrototype),
	}
}

// CachedFor returns the prototype previously produced for a constructor
// whose return type matches instance's concrete type, if any analysis has
// run for that type yet.
func (a *Analyzer) CachedFor(instance any) (*prototype.ServicePrototype, bool) {
	if instance == nil {
		return nil, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.byReturns[reflect.TypeOf(instance)]
	return p, ok
}

// Analyze reflects constructor and returns its ServicePrototype. constructor
// must be a non-nil function; property injection is discovered by scanning
// the constructor's return type for exported fields tagged `inject:"true"`.
func (a *Analyzer) Analyze(constructor any, opts ...Option) (*prototype.ServicePrototype, error) {
	if constructor == nil {
		return nil, &Error{Type: "<nil>", Reason: "constructor is nil"}
	}
	fv := reflect.ValueOf(constructor)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, &Error{Type: ft.String(), Reason: "constructor is not a function"}
	}
	if ft.NumOut() == 0 {
		return nil, &Error{Type: ft.String(), Reason: "constructor returns no values"}
	}

	ptr := fv.Pointer()
	a.mu.RLock()
	if cached, ok := a.cache[ptr]; ok {
		a.mu.RUnlock()
		return cached, nil
	}
	a.mu.RUnlock()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	returnType := ft.Out(0)
	class := typeName(returnType)

	constructorProto := analyzeParams(ft, o.defaults)

	isInstantiable := true
	structType := returnType
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
	}
	if returnType.Kind() == reflect.Interface {
		isInstantiable = false
	}

	var injectedProps []prototype.PropertyPrototype
	if structType.Kind() == reflect.Struct {
		injectedProps = analyzeInjectedFields(structType)
	}

	var injectedMethods []prototype.MethodPrototype
	for _, name := range o.injectedMethods {
		m, ok := findMethod(returnType, name)
		if !ok {
			return nil, &Error{Type: class, Reason: fmt.Sprintf("injected method %q does not exist", name)}
		}
		injectedMethods = append(injectedMethods, prototype.MethodPrototype{
			Name:       name,
			Parameters: analyzeMethodParams(m.Type, nil),
		})
	}

	p := &prototype.ServicePrototype{
		Class: class,
		Constructor: &prototype.MethodPrototype{
			Name:       "new",
			Parameters: constructorProto,
		},
		InjectedProperties: injectedProps,
		InjectedMethods:    injectedMethods,
		IsInstantiable:     isInstantiable,
	}

	a.mu.Lock()
	a.cache[ptr] = p
	a.byReturns[returnType] = p
	a.mu.Unlock()
	return p, nil
}

// Remember records p as the prototype for returnType without running
// Analyze, so a later CachedFor(instance) lookup succeeds even when p was
// produced by a cache layer in front of the analyzer (protocache's disk or
// singleflight-deduped hit) rather than by this Analyzer's own Analyze call.
func (a *Analyzer) Remember(returnType reflect.Type, p *prototype.ServicePrototype) {
	a.mu.Lock()
	a.byReturns[returnType] = p
	a.mu.Unlock()
}

// Clear empties the analysis cache.
func (a *Analyzer) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache = make(map[uintptr]*prototype.ServicePrototype)
}

// CacheSize returns the number of memoized constructors.
func (a *Analyzer) CacheSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cache)
}

func findMethod(t reflect.Type, name string) (reflect.Method, bool) {
	if t.Kind() != reflect.Ptr {
		if pm, ok := reflect.PtrTo(t).MethodByName(name); ok {
			return pm, true
		}
	}
	return t.MethodByName(name)
}

// analyzeParams reflects a free function's (constructor's) parameter list,
// starting at index 0.
func analyzeParams(ft reflect.Type, defaults map[int]any) []prototype.ParameterPrototype {
	return reflectParams(ft, 0, defaults)
}

// analyzeMethodParams reflects a bound method's Func type, whose In(0) is
// the receiver, skipping it.
func analyzeMethodParams(ft reflect.Type, defaults map[int]any) []prototype.ParameterPrototype {
	return reflectParams(ft, 1, defaults)
}

func reflectParams(ft reflect.Type, start int, defaults map[int]any) []prototype.ParameterPrototype {
	var params []prototype.ParameterPrototype
	for i := start; i < ft.NumIn(); i++ {
		paramType := ft.In(i)
		variadic := ft.IsVariadic() && i == ft.NumIn()-1
		allowsNull := isNilable(paramType)
		def, hasDefault := defaults[i-start]
		params = append(params, prototype.ParameterPrototype{
			Name:       fmt.Sprintf("arg%d", i-start),
			Type:       typeName(paramType),
			HasDefault: hasDefault,
			Default:    def,
			IsVariadic: variadic,
			AllowsNull: allowsNull,
			Required:   !hasDefault && !allowsNull,
		})
	}
	return params
}

func analyzeInjectedFields(t reflect.Type) []prototype.PropertyPrototype {
	var props []prototype.PropertyPrototype
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, ok := f.Tag.Lookup("inject")
		if !ok || tag != "true" {
			continue
		}
		optional := f.Tag.Get("optional") == "true"
		allowsNull := optional || isNilable(f.Type)
		props = append(props, prototype.PropertyPrototype{
			Name:       f.Name,
			Type:       typeName(f.Type),
			AllowsNull: allowsNull,
			Required:   !allowsNull,
		})
	}
	return props
}

func isNilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return true
	default:
		return false
	}
}

func typeName(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		return "*" + typeName(t.Elem())
	}
	if pkg := t.PkgPath(); pkg != "" {
		return pkg + "." + t.Name()
	}
	return t.String()
}
