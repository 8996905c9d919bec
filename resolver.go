package corebind

import (
	"context"
	"fmt"
	"reflect"

	"github.com/rs/xid"
	"go.uber.org/dig"

	"github.com/relaycore/corebind/internal/analyzer"
	"github.com/relaycore/corebind/internal/prototype"
)

// Resolver is the capability a consumer uses to pull its own dependencies
// during construction: factories, decorators, and resolving callbacks all
// receive one scoped to the resolution in progress.
type Resolver interface {
	// Resolve looks up id in the resolver's current scope.
	Resolve(id ServiceID) (any, error)
	// Context returns the context.Context associated with the current
	// resolution, carrying its deadline and resolution stack.
	Context() context.Context
}

// ResolutionFrame is one entry on the per-resolution cycle-detection stack.
type ResolutionFrame struct {
	ServiceID ServiceID
	ParentID  ServiceID
}

type stackKey struct{}

func stackFromContext(ctx context.Context) []ResolutionFrame {
	if v, ok := ctx.Value(stackKey{}).([]ResolutionFrame); ok {
		return v
	}
	return nil
}

func pushFrame(ctx context.Context, id, parent ServiceID) context.Context {
	stack := append(append([]ResolutionFrame(nil), stackFromContext(ctx)...), ResolutionFrame{ServiceID: id, ParentID: parent})
	return context.WithValue(ctx, stackKey{}, stack)
}

func stackIDs(stack []ResolutionFrame) []ServiceID {
	ids := make([]ServiceID, len(stack))
	for i, f := range stack {
		ids[i] = f.ServiceID
	}
	return ids
}

// scopedResolver adapts a Container+Scope pair to the Resolver interface
// handed to factories, decorators, and resolving callbacks. consumer is the
// ServiceID currently under construction, used so nested Resolve calls
// still see any contextual override registered for this consumer.
type scopedResolver struct {
	ctx      context.Context
	c        *Container
	sc       *Scope
	consumer ServiceID
}

func (r *scopedResolver) Resolve(id ServiceID) (any, error) {
	return r.c.resolveFrame(r.ctx, r.sc, id, r.consumer)
}

func (r *scopedResolver) Context() context.Context { return r.ctx }

// Resolve resolves id within the container's root scope using the
// container's configured resolution timeout.
func (c *Container) Resolve(id ServiceID) (any, error) {
	return c.ResolveScoped(c.scopes.Root(), id)
}

// ResolveScoped resolves id within sc, the explicit scope the caller is
// operating in (a child scope for request-scoped resolution).
func (c *Container) ResolveScoped(sc *Scope, id ServiceID) (any, error) {
	ctx := context.Background()
	if c.config.ResolutionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ResolutionTimeout)
		defer cancel()
	}
	var traceID string
	if c.config.Debug {
		traceID = xid.New().String()
	}
	v, err := c.resolveInScope(ctx, sc, id)
	if err != nil && c.config.Debug && traceID != "" {
		return nil, fmt.Errorf("[trace=%s] %w", traceID, err)
	}
	return v, err
}

// resolveInScope implements the twelve-step resolution algorithm.
func (c *Container) resolveInScope(ctx context.Context, sc *Scope, id ServiceID) (any, error) {
	return c.resolveFrame(ctx, sc, id, "")
}

func (c *Container) resolveFrame(ctx context.Context, sc *Scope, id ServiceID, parent ServiceID) (any, error) {
	select {
	case <-ctx.Done():
		return nil, &ResolutionTimeoutError{Path: stackIDs(stackFromContext(ctx)), Elapsed: c.config.ResolutionTimeout}
	default:
	}

	// 1. Alias expansion.
	canonical, binding, err := c.store.Resolve(id)
	if err != nil {
		c.emit(metricResolveError, 1)
		return nil, err
	}

	// 2. Cycle check.
	stack := stackFromContext(ctx)
	for _, f := range stack {
		if f.ServiceID == canonical {
			path := append(stackIDs(stack), canonical)
			return nil, &CircularDependencyError{Path: path}
		}
	}
	if len(stack) >= c.maxDepth() {
		path := append(stackIDs(stack), canonical)
		return nil, &MaxDepthExceededError{Path: path, MaxDepth: c.maxDepth()}
	}

	// A contextual override for the immediate parent is built for that
	// consumer only: it neither reads nor publishes the lifetime cache.
	_, overridden := binding.ContextualGives[parent]
	overridden = overridden && parent != ""

	// 3. Lifetime cache hit.
	strategy := lifecycleFor(binding.Definition.Lifetime, c.scopes.Root(), c.lifecycles)
	c.emit(metricResolveCount, 1)
	if !overridden && strategy.has(sc, canonical) {
		instance, ok, rErr := strategy.retrieve(sc, canonical)
		if rErr != nil {
			return nil, rErr
		}
		if ok {
			return instance, nil
		}
	}
	c.emit(metricResolveMiss, 1)

	// 4. Push stack frame.
	ctx = pushFrame(ctx, canonical, parent)

	build := func() (any, error) {
		// 5. Pick concrete (contextual override for the immediate parent wins).
		concrete := binding.Definition.Concrete
		if parent != "" {
			if override, ok := binding.ContextualGives[parent]; ok {
				concrete = override
			}
		}

		// 6. Construct.
		instance, cErr := c.construct(ctx, sc, canonical, binding, concrete)
		if cErr != nil {
			c.emit(metricResolveError, 1)
			return nil, cErr
		}

		// 7. Inject properties, 8. invoke injected methods.
		if concrete.Kind() == ConcreteTypeKind {
			if pErr := c.injectProperties(ctx, sc, canonical, instance); pErr != nil {
				return nil, pErr
			}
			if mErr := c.invokeInjectedMethods(ctx, sc, canonical, instance); mErr != nil {
				return nil, mErr
			}
		}

		// 9. Resolving callbacks, then 10. decorators.
		resolver := &scopedResolver{ctx: ctx, c: c, sc: sc, consumer: canonical}
		for _, cb := range binding.ResolvingCallbacks {
			if err := cb(resolver, instance); err != nil {
				return nil, &DecoratorError{ID: canonical, Cause: err}
			}
		}
		for _, dec := range binding.Decorators {
			decorated, err := dec(resolver, instance)
			if err != nil {
				return nil, &DecoratorError{ID: canonical, Cause: err}
			}
			instance = decorated
		}
		return instance, nil
	}

	// 11. Store by lifetime strategy (construct() wraps store() per the
	// strategy's singleflight group so concurrent misses share one build).
	// An overridden build is returned to its consumer without being stored.
	var instance any
	if overridden {
		instance, err = build()
	} else {
		instance, err = strategy.construct(sc, canonical, build)
	}
	if err != nil {
		return nil, err
	}
	// 12. Pop stack frame happens implicitly: ctx carrying the pushed frame
	// is local to this call and its callees, never propagated to siblings.
	return instance, nil
}

func (c *Container) construct(ctx context.Context, sc *Scope, id ServiceID, binding *Binding, concrete Concrete) (any, error) {
	switch concrete.Kind() {
	case ConcreteInstanceKind:
		return concrete.Instance(), nil
	case ConcreteFactoryKind:
		resolver := &scopedResolver{ctx: ctx, c: c, sc: sc, consumer: id}
		return concrete.FactoryFunc()(resolver)
	case ConcreteTypeKind:
		return c.constructFromType(ctx, sc, id, concrete.Constructor())
	default:
		return nil, &AnalysisError{Type: string(id), Reason: "unknown concrete kind"}
	}
}

// constructFromType analyzes the constructor and recursively resolves each
// parameter, then invokes the constructor via dig when the binding's
// lifetime caches instances, or directly via reflection for transients
// (spec.md §4.8: transient concretes bypass dig entirely). Analysis itself
// is served through protocache, which guarantees at-most-one concurrent
// analysis per constructed type and, when ContainerConfig.CacheDir is set,
// survives process restarts.
func (c *Container) constructFromType(ctx context.Context, sc *Scope, id ServiceID, constructor any) (any, error) {
	fv := reflect.ValueOf(constructor)
	ft := fv.Type()
	if ft.Kind() != reflect.Func || ft.NumOut() == 0 {
		return nil, &AnalysisError{Type: string(id), Reason: "constructor is not a function returning a value"}
	}
	outType := ft.Out(0)

	binding, _ := c.store.Binding(id)
	var opts []analyzer.Option
	if binding != nil {
		for _, m := range binding.Definition.InjectedMethods {
			opts = append(opts, analyzer.WithInjectedMethod(m))
		}
	}

	proto, err := c.cache.GetOrAnalyze(outType, nil, func() (*prototype.ServicePrototype, error) {
		c.emit(metricAnalysisCount, 1)
		return c.analyzer.Analyze(constructor, opts...)
	})
	if err != nil {
		return nil, err
	}
	c.analyzer.Remember(outType, proto)

	args, err := c.resolveParameters(ctx, sc, id, proto, ft)
	if err != nil {
		return nil, err
	}

	if binding != nil && binding.Definition.Lifetime != Transient {
		return c.invokeViaDig(sc, id, fv, args)
	}
	return invokeDirect(fv, args)
}

// resolveParameters resolves each constructor parameter in order: a
// recursive resolve of the ServiceID derived from the parameter's Go type,
// then its declared default, then the zero value for a nullable type, else
// UnresolvableParameterError. There is no per-parameter explicit override;
// a failed recursive resolve of any kind falls through to the default or
// nullable cases.
func (c *Container) resolveParameters(ctx context.Context, sc *Scope, consumer ServiceID, proto *prototype.ServicePrototype, ft reflect.Type) ([]reflect.Value, error) {
	if proto.Constructor == nil {
		return nil, nil
	}
	params := proto.Constructor.Parameters
	args := make([]reflect.Value, len(params))
	for i, p := range params {
		paramType := ft.In(i)
		depID := idForReflectType(paramType)
		v, err := c.resolveFrame(ctx, sc, depID, consumer)
		if err == nil {
			args[i] = coerce(v, paramType)
			continue
		}
		if p.HasDefault {
			args[i] = coerce(p.Default, paramType)
			continue
		}
		if p.AllowsNull {
			args[i] = reflect.Zero(paramType)
			continue
		}
		return nil, &UnresolvableParameterError{Param: p.Name, Target: consumer}
	}
	return args, nil
}

func coerce(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t)
	}
	return reflect.Zero(t)
}

func invokeDirect(fv reflect.Value, args []reflect.Value) (any, error) {
	out := fv.Call(args)
	return splitConstructorReturn(out)
}

func splitConstructorReturn(out []reflect.Value) (any, error) {
	if len(out) == 0 {
		return nil, nil
	}
	var errVal error
	if len(out) > 1 {
		if e, ok := out[len(out)-1].Interface().(error); ok {
			errVal = e
		}
	}
	if errVal != nil {
		return nil, errVal
	}
	return out[0].Interface(), nil
}

// invokeViaDig constructs the value through the scope's dig.Scope so dig's
// own per-scope-once semantics back the at-most-one-instance guarantee at
// the construction layer, mirroring the container's own scope hierarchy.
// A small reflect.MakeFunc adapter is required because ServiceIDs are
// dynamic strings, not static Go types dig can key purely on.
func (c *Container) invokeViaDig(sc *Scope, id ServiceID, fv reflect.Value, args []reflect.Value) (any, error) {
	digScope := c.digScopeFor(sc)
	outType := fv.Type().Out(0)

	if !c.markDigProvided(sc.ID, id) {
		provider := reflect.MakeFunc(reflect.FuncOf(nil, []reflect.Type{outType, errType}, false), func([]reflect.Value) []reflect.Value {
			out := fv.Call(args)
			v, err := splitConstructorReturn(out)
			errVal := reflect.Zero(errType)
			if err != nil {
				errVal = reflect.ValueOf(err)
			}
			if v == nil {
				return []reflect.Value{reflect.Zero(outType), errVal}
			}
			return []reflect.Value{reflect.ValueOf(v), errVal}
		})

		if provideErr := digScope.Provide(provider.Interface(), dig.Name(string(id))); provideErr != nil {
			c.unmarkDigProvided(sc.ID, id)
			return nil, fmt.Errorf("corebind: dig provide failed for %s: %w", id, provideErr)
		}
	}

	receiverType := reflect.StructOf([]reflect.StructField{
		{Name: "In", Type: reflect.TypeOf(dig.In{}), Anonymous: true},
		{Name: "Value", Type: outType, Tag: reflect.StructTag(fmt.Sprintf(`name:"%s"`, id))},
	})

	var result any
	consumer := reflect.MakeFunc(reflect.FuncOf([]reflect.Type{receiverType}, nil, false), func(in []reflect.Value) []reflect.Value {
		result = in[0].Field(1).Interface()
		return nil
	})

	if err := digScope.Invoke(consumer.Interface()); err != nil {
		return nil, fmt.Errorf("corebind: dig invoke failed for %s: %w", id, err)
	}
	return result, nil
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// markDigProvided records that id has (or is about to have) a dig provider
// registered in scope sc and reports whether it was already marked. A
// build() that fails after a successful Provide but before its singleflight
// group caches the result (a resolving callback or decorator error, say) is
// retried on the next Resolve; this bookkeeping, not dig's own opaque
// duplicate-provide error, is what makes that retry skip the redundant
// Provide call instead of failing on it.
func (c *Container) markDigProvided(scopeID string, id ServiceID) bool {
	key := scopeID + "/" + string(id)
	c.digMu.Lock()
	defer c.digMu.Unlock()
	if c.digProvided[key] {
		return true
	}
	c.digProvided[key] = true
	return false
}

func (c *Container) unmarkDigProvided(scopeID string, id ServiceID) {
	key := scopeID + "/" + string(id)
	c.digMu.Lock()
	delete(c.digProvided, key)
	c.digMu.Unlock()
}

// digScopeFor returns (creating if necessary) the dig.Scope backing sc.
func (c *Container) digScopeFor(sc *Scope) *dig.Scope {
	c.digMu.Lock()
	defer c.digMu.Unlock()
	if ds, ok := c.digScopes[sc.ID]; ok {
		return ds
	}
	var ds *dig.Scope
	if sc.parent == nil {
		ds = c.digRoot.Scope(sc.ID)
	} else {
		parentDig := c.digScopeForLocked(sc.parent)
		ds = parentDig.Scope(sc.ID)
	}
	c.digScopes[sc.ID] = ds
	return ds
}

func (c *Container) digScopeForLocked(sc *Scope) *dig.Scope {
	if ds, ok := c.digScopes[sc.ID]; ok {
		return ds
	}
	var ds *dig.Scope
	if sc.parent == nil {
		ds = c.digRoot.Scope(sc.ID)
	} else {
		ds = c.digScopeForLocked(sc.parent).Scope(sc.ID)
	}
	c.digScopes[sc.ID] = ds
	return ds
}

// idForReflectType derives a ServiceID from a parameter's static Go type,
// used when a constructor parameter has no explicit name override — this
// is the common case where a dependency is looked up by its Go type via
// TypedKey[T] at registration time.
func idForReflectType(t reflect.Type) ServiceID {
	return idForType(t)
}

func (c *Container) maxDepth() int {
	if c.config.MaxResolutionDepth > 0 {
		return c.config.MaxResolutionDepth
	}
	return 50
}

func (c *Container) injectProperties(ctx context.Context, sc *Scope, id ServiceID, instance any) error {
	proto, ok := c.analyzer.CachedFor(instance)
	if !ok || len(proto.InjectedProperties) == 0 {
		return nil
	}
	rv := reflect.ValueOf(instance)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	for _, p := range proto.InjectedProperties {
		field := rv.FieldByName(p.Name)
		if !field.IsValid() || !field.CanSet() {
			continue
		}
		depID := idForReflectType(field.Type())
		v, err := c.resolveFrame(ctx, sc, depID, id)
		if err != nil {
			if p.Required {
				return &UnresolvablePropertyError{Property: p.Name, Target: id}
			}
			continue
		}
		field.Set(coerce(v, field.Type()))
	}
	return nil
}

func (c *Container) invokeInjectedMethods(ctx context.Context, sc *Scope, id ServiceID, instance any) error {
	proto, ok := c.analyzer.CachedFor(instance)
	if !ok || len(proto.InjectedMethods) == 0 {
		return nil
	}
	rv := reflect.ValueOf(instance)
	for _, m := range proto.InjectedMethods {
		method := rv.MethodByName(m.Name)
		if !method.IsValid() {
			continue
		}
		mt := method.Type()
		args := make([]reflect.Value, mt.NumIn())
		for i := 0; i < mt.NumIn(); i++ {
			paramType := mt.In(i)
			depID := idForReflectType(paramType)
			v, err := c.resolveFrame(ctx, sc, depID, id)
			if err != nil {
				if i < len(m.Parameters) && m.Parameters[i].AllowsNull {
					args[i] = reflect.Zero(paramType)
					continue
				}
				return &UnresolvableParameterError{Param: m.Parameters[i].Name, Target: id}
			}
			args[i] = coerce(v, paramType)
		}
		out := method.Call(args)
		if len(out) > 0 {
			if e, ok := out[len(out)-1].Interface().(error); ok && e != nil {
				return e
			}
		}
	}
	return nil
}

func (c *Container) emit(metric string, delta int) {
	if c.telemetry != nil {
		c.telemetry.Increment(metric, delta)
	}
}
