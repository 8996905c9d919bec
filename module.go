package corebind

// ModuleBuilder is one registration step contributed by a Module.
type ModuleBuilder func(Registrar) error

// Module groups a named set of ModuleBuilders so related bindings (e.g. all
// of a subsystem's singletons) can be applied to a Registrar in one call.
type Module struct {
	Name     string
	builders []ModuleBuilder
}

// NewModule returns a Module named name with the given builders.
func NewModule(name string, builders ...ModuleBuilder) Module {
	return Module{Name: name, builders: builders}
}

// Apply runs every builder in m against reg, stopping at the first error.
func (m Module) Apply(reg Registrar) error {
	for _, b := range m.builders {
		if err := b(reg); err != nil {
			return err
		}
	}
	return nil
}

// AddSingleton returns a ModuleBuilder registering id as a singleton.
func AddSingleton(id ServiceID, concrete Concrete) ModuleBuilder {
	return func(r Registrar) error { return r.Singleton(id, concrete).Err() }
}

// AddScoped returns a ModuleBuilder registering id as scoped.
func AddScoped(id ServiceID, concrete Concrete) ModuleBuilder {
	return func(r Registrar) error { return r.Scoped(id, concrete).Err() }
}

// AddInstance returns a ModuleBuilder registering a pre-built instance.
func AddInstance(id ServiceID, obj any) ModuleBuilder {
	return func(r Registrar) error { return r.Instance(id, obj).Err() }
}

// AddDecorator returns a ModuleBuilder registering a decorator for id.
func AddDecorator(id ServiceID, dec DecoratorFunc) ModuleBuilder {
	return func(r Registrar) error { return r.Extend(id, dec) }
}

// WithModules applies every module to reg in order, stopping at the first
// error.
func WithModules(reg Registrar, modules ...Module) error {
	for _, m := range modules {
		if err := m.Apply(reg); err != nil {
			return err
		}
	}
	return nil
}
