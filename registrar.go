package corebind

// Registrar is the user-facing registration DSL. Registration is
// append-only except where replacement is explicitly permitted (same
// lifetime re-registration, or post-seal writes when configured).
type Registrar interface {
	Bind(id ServiceID, concrete Concrete, lifetime Lifetime) *BindingBuilder
	Singleton(id ServiceID, concrete Concrete) *BindingBuilder
	Scoped(id ServiceID, concrete Concrete) *BindingBuilder
	Instance(id ServiceID, obj any) *BindingBuilder

	Extend(id ServiceID, decorator DecoratorFunc) error
	Resolving(id ServiceID, callback ResolvingFunc) error
	ResolvingGlobal(callback ResolvingFunc)

	When(consumer ServiceID) *ContextualBuilder
	Alias(alias, canonical ServiceID) error
	Tag(tagName string, ids ...ServiceID) error
	Tagged(tagName string) []ServiceID

	Definitions() *DefinitionStore
	Scopes() *ScopeManager
}

// BindingBuilder lets a registration call be chained with tag/environment/
// dependency metadata. The definition is committed when the builder is
// created and re-committed after each chained call; after the first error,
// further chained calls are no-ops.
type BindingBuilder struct {
	store *DefinitionStore
	def   ServiceDefinition
	err   error
}

// Tags sets the definition's tag set.
func (b *BindingBuilder) Tags(tags ...string) *BindingBuilder {
	if b.err != nil {
		return b
	}
	b.def.Tags = tags
	b.err = b.commit()
	return b
}

// Environment constrains the definition to env.
func (b *BindingBuilder) Environment(env Environment) *BindingBuilder {
	if b.err != nil {
		return b
	}
	if !env.IsValid() {
		b.err = &AnalysisError{Type: string(b.def.ID), Reason: "invalid environment"}
		return b
	}
	b.def.Environment = env
	b.err = b.commit()
	return b
}

// DependsOn declares explicit dependency ids for validator/business-rule
// checks independent of constructor-parameter inference.
func (b *BindingBuilder) DependsOn(ids ...ServiceID) *BindingBuilder {
	if b.err != nil {
		return b
	}
	b.def.Dependencies = ids
	b.err = b.commit()
	return b
}

// Config attaches an opaque config map the validator may scan.
func (b *BindingBuilder) Config(cfg map[string]any) *BindingBuilder {
	if b.err != nil {
		return b
	}
	b.def.Config = cfg
	b.err = b.commit()
	return b
}

// InjectMethods declares ConcreteTypeKind method names on the constructed
// type as injection points (spec.md §4.8 step 8); each is analyzed and
// invoked with its own parameters resolved the same way the constructor's
// are. Only meaningful for bindings whose Concrete is ConcreteType.
func (b *BindingBuilder) InjectMethods(names ...string) *BindingBuilder {
	if b.err != nil {
		return b
	}
	b.def.InjectedMethods = names
	b.err = b.commit()
	return b
}

// Err returns the first error encountered while building/committing.
func (b *BindingBuilder) Err() error { return b.err }

func (b *BindingBuilder) commit() error {
	_, err := b.store.Register(b.def)
	return err
}

// registrar is the Container-backed Registrar implementation.
type registrar struct {
	c *Container
}

// AsRegistrar exposes c's registration surface as a Registrar.
func (c *Container) AsRegistrar() Registrar { return &registrar{c: c} }

func (r *registrar) Bind(id ServiceID, concrete Concrete, lifetime Lifetime) *BindingBuilder {
	b := &BindingBuilder{store: r.c.store, def: ServiceDefinition{ID: id, Concrete: concrete, Lifetime: lifetime}}
	b.err = b.commit()
	return b
}

func (r *registrar) Singleton(id ServiceID, concrete Concrete) *BindingBuilder {
	return r.Bind(id, concrete, Singleton)
}

func (r *registrar) Scoped(id ServiceID, concrete Concrete) *BindingBuilder {
	return r.Bind(id, concrete, Scoped)
}

func (r *registrar) Instance(id ServiceID, obj any) *BindingBuilder {
	return r.Bind(id, ConcreteFromInstance(obj), Singleton)
}

func (r *registrar) Extend(id ServiceID, decorator DecoratorFunc) error {
	return r.c.store.Decorate(id, decorator)
}

func (r *registrar) Resolving(id ServiceID, callback ResolvingFunc) error {
	return r.c.store.Resolving(id, callback)
}

func (r *registrar) ResolvingGlobal(callback ResolvingFunc) {
	r.c.store.resolvingAll(callback)
}

func (r *registrar) When(consumer ServiceID) *ContextualBuilder {
	return r.c.store.When(consumer)
}

func (r *registrar) Alias(alias, canonical ServiceID) error {
	return r.c.store.Alias(alias, canonical)
}

func (r *registrar) Tag(tagName string, ids ...ServiceID) error {
	return r.c.store.Tag(tagName, ids...)
}

func (r *registrar) Tagged(tagName string) []ServiceID {
	return r.c.store.Tagged(tagName)
}

func (r *registrar) Definitions() *DefinitionStore { return r.c.store }

func (r *registrar) Scopes() *ScopeManager { return r.c.scopes }
