package corebind

import (
	"reflect"
	"sync"
)

// DefinitionStore holds bindings, aliases, tags, contextual overrides,
// decorators, and resolving callbacks. It is read-mostly after Seal: reads
// take the shared read lock, writes take the exclusive lock and fail once
// sealed unless the owning container allows post-seal registration.
type DefinitionStore struct {
	mu sync.RWMutex

	bindings map[ServiceID]*Binding
	aliases  map[ServiceID]ServiceID // alias -> canonical
	tags     map[string][]ServiceID  // tag -> ids, insertion order

	sealed            bool
	allowPostSealWrite bool
}

// NewDefinitionStore returns an empty, unsealed store.
func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{
		bindings: make(map[ServiceID]*Binding),
		aliases:  make(map[ServiceID]ServiceID),
		tags:     make(map[string][]ServiceID),
	}
}

// Seal transitions the store to read-mostly mode. allowPostSealWrite
// controls whether subsequent Register calls are permitted rather than
// rejected with ErrContainerSealed.
func (s *DefinitionStore) Seal(allowPostSealWrite bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
	s.allowPostSealWrite = allowPostSealWrite
}

// Sealed reports whether Seal has been called.
func (s *DefinitionStore) Sealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

func (s *DefinitionStore) checkWritable() error {
	if s.sealed && !s.allowPostSealWrite {
		return ErrContainerSealed
	}
	return nil
}

// Register inserts or replaces the binding for def.ID. Re-registering an
// existing id with a different Lifetime fails with LifetimeImmutabilityError
// and leaves the prior binding untouched.
func (s *DefinitionStore) Register(def ServiceDefinition) (*Binding, error) {
	if def.ID == "" {
		return nil, ErrServiceKeyEmpty
	}
	if def.Concrete.Kind() == ConcreteTypeKind {
		ctor := def.Concrete.Constructor()
		if ctor == nil {
			return nil, ErrConstructorNil
		}
		if reflect.TypeOf(ctor).Kind() != reflect.Func {
			return nil, ErrNotAFunction
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return nil, err
	}

	def = def.clone()
	def.Tags = dedupeTags(def.Tags)

	if existing, ok := s.bindings[def.ID]; ok {
		if existing.Definition.Lifetime != def.Lifetime {
			return nil, &LifetimeImmutabilityError{
				ID:        def.ID,
				Current:   existing.Definition.Lifetime,
				Requested: def.Lifetime,
			}
		}
		existing.Definition = def
		s.indexTags(def.ID, def.Tags)
		return existing, nil
	}

	b := newBinding(def)
	s.bindings[def.ID] = b
	s.indexTags(def.ID, def.Tags)
	return b, nil
}

func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return tags
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func (s *DefinitionStore) indexTags(id ServiceID, tags []string) {
	for _, t := range tags {
		if !containsID(s.tags[t], id) {
			s.tags[t] = append(s.tags[t], id)
		}
	}
}

func containsID(ids []ServiceID, id ServiceID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// Alias registers alias as an indirection to canonical. Alias chains are
// resolved eagerly at lookup time; a cycle among aliases is rejected here.
func (s *DefinitionStore) Alias(alias, canonical ServiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return err
	}

	visited := map[ServiceID]bool{alias: true}
	cursor := canonical
	for {
		if visited[cursor] {
			return ErrAliasCycle
		}
		visited[cursor] = true
		next, ok := s.aliases[cursor]
		if !ok {
			break
		}
		cursor = next
	}

	s.aliases[alias] = canonical
	return nil
}

// Resolve expands id through the alias chain to its canonical ServiceID.
// Returns ServiceNotFoundError if the chain ends at an id with no binding.
func (s *DefinitionStore) Resolve(id ServiceID) (ServiceID, *Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	canonical := id
	seen := map[ServiceID]bool{}
	for {
		if seen[canonical] {
			return "", nil, &ServiceNotFoundError{ID: id}
		}
		seen[canonical] = true
		if next, ok := s.aliases[canonical]; ok {
			canonical = next
			continue
		}
		break
	}
	b, ok := s.bindings[canonical]
	if !ok {
		return "", nil, &ServiceNotFoundError{ID: id}
	}
	return canonical, b, nil
}

// Aliases returns a copy of the alias -> canonical map, for validator and
// tooling use.
func (s *DefinitionStore) Aliases() map[ServiceID]ServiceID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[ServiceID]ServiceID, len(s.aliases))
	for k, v := range s.aliases {
		out[k] = v
	}
	return out
}

// Binding returns the binding registered for the canonical id, without
// alias expansion.
func (s *DefinitionStore) Binding(id ServiceID) (*Binding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bindings[id]
	return b, ok
}

// Tag idempotently associates ids with tagName.
func (s *DefinitionStore) Tag(tagName string, ids ...ServiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return err
	}
	for _, id := range ids {
		if !containsID(s.tags[tagName], id) {
			s.tags[tagName] = append(s.tags[tagName], id)
		}
	}
	return nil
}

// Tagged returns the ids registered under tagName, in registration order.
func (s *DefinitionStore) Tagged(tagName string) []ServiceID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ServiceID(nil), s.tags[tagName]...)
}

// When begins a contextual-override declaration for consumer.
func (s *DefinitionStore) When(consumer ServiceID) *ContextualBuilder {
	return &ContextualBuilder{store: s, consumer: consumer}
}

// ContextualBuilder implements the when(consumer).needs(dep).give(impl)
// fluent override declaration.
type ContextualBuilder struct {
	store    *DefinitionStore
	consumer ServiceID
	dep      ServiceID
}

// Needs names the dependency ServiceID the override applies to.
func (b *ContextualBuilder) Needs(dep ServiceID) *ContextualBuilder {
	b.dep = dep
	return b
}

// Give registers override as the Concrete used for b.dep whenever b.consumer
// is the resolution's immediate parent frame.
func (b *ContextualBuilder) Give(override Concrete) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if err := b.store.checkWritable(); err != nil {
		return err
	}
	binding, ok := b.store.bindings[b.dep]
	if !ok {
		binding = newBinding(ServiceDefinition{ID: b.dep})
		b.store.bindings[b.dep] = binding
	}
	if binding.ContextualGives == nil {
		binding.ContextualGives = make(map[ServiceID]Concrete)
	}
	binding.ContextualGives[b.consumer] = override
	return nil
}

// Decorate appends a decorator for id, applied in registration order after
// resolving callbacks.
func (s *DefinitionStore) Decorate(id ServiceID, dec DecoratorFunc) error {
	if dec == nil {
		return ErrDecoratorNil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return err
	}
	b, ok := s.bindings[id]
	if !ok {
		return &ServiceNotFoundError{ID: id}
	}
	b.Decorators = append(b.Decorators, dec)
	return nil
}

// Resolving appends a resolving callback for id, run before decorators.
func (s *DefinitionStore) Resolving(id ServiceID, cb ResolvingFunc) error {
	if cb == nil {
		return ErrResolvingNil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return err
	}
	b, ok := s.bindings[id]
	if !ok {
		return &ServiceNotFoundError{ID: id}
	}
	b.ResolvingCallbacks = append(b.ResolvingCallbacks, cb)
	return nil
}

// resolvingAll appends cb to the resolving-callback list of every binding
// registered at the time of the call. Bindings registered afterward do not
// receive cb, and the call is not blocked by Seal.
func (s *DefinitionStore) resolvingAll(cb ResolvingFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bindings {
		b.ResolvingCallbacks = append(b.ResolvingCallbacks, cb)
	}
}

// All returns every registered binding's definition, for validator and
// tooling use.
func (s *DefinitionStore) All() []ServiceDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ServiceDefinition, 0, len(s.bindings))
	for _, b := range s.bindings {
		out = append(out, b.Definition)
	}
	return out
}

// Count returns the number of registered bindings.
func (s *DefinitionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bindings)
}
