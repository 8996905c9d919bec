package corebind

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// scopeState is the Active/Ended lifecycle of a Scope.
type scopeState int32

const (
	scopeActive scopeState = iota
	scopeEnded
)

// Disposable is implemented by instances that need to release resources
// when their owning scope ends.
type Disposable interface {
	Dispose() error
}

// Scope is a named mapping from ServiceID to a live instance, holding
// exactly the instances resolved within it under the Scoped lifetime (or,
// for the root scope, Singleton instances).
type Scope struct {
	ID       string
	isRoot   bool
	parent   *Scope
	manager  *ScopeManager
	state    atomic.Int32
	mu       sync.Mutex
	order    []ServiceID
	instances map[ServiceID]any
}

func newScope(manager *ScopeManager, parent *Scope, isRoot bool) *Scope {
	s := &Scope{
		ID:        uuid.NewString(),
		isRoot:    isRoot,
		parent:    parent,
		manager:   manager,
		instances: make(map[ServiceID]any),
	}
	s.state.Store(int32(scopeActive))
	return s
}

// Active reports whether the scope has not yet ended.
func (s *Scope) Active() bool {
	return scopeState(s.state.Load()) == scopeActive
}

// store records instance under id. At most one instance per (scope, id) is
// ever stored; a second Store for the same id overwrites it.
func (s *Scope) store(id ServiceID, instance any) error {
	if !s.Active() {
		return &ScopeEndedError{ScopeID: s.ID}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.instances[id]; !exists {
		s.order = append(s.order, id)
	}
	s.instances[id] = instance
	return nil
}

// has reports whether id currently has a stored instance in this scope.
func (s *Scope) has(id ServiceID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.instances[id]
	return ok
}

// retrieve returns the stored instance for id, if any.
func (s *Scope) retrieve(id ServiceID) (any, bool, error) {
	if !s.Active() {
		return nil, false, &ScopeEndedError{ScopeID: s.ID}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.instances[id]
	return v, ok, nil
}

// flush clears all stored instances without ending the scope.
func (s *Scope) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.instances = make(map[ServiceID]any)
}

// end transitions the scope to Ended, disposing instances in reverse
// insertion order. It is idempotent: ending an already-Ended scope is a
// no-op returning nil.
func (s *Scope) end() error {
	if !s.state.CompareAndSwap(int32(scopeActive), int32(scopeEnded)) {
		return nil
	}
	s.mu.Lock()
	order := s.order
	instances := s.instances
	s.order = nil
	s.instances = make(map[ServiceID]any)
	s.mu.Unlock()

	var err error
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if d, ok := instances[id].(Disposable); ok {
			if dErr := d.Dispose(); dErr != nil {
				err = multierr.Append(err, dErr)
			}
		}
	}
	if err != nil {
		if merrs := multierr.Errors(err); len(merrs) > 0 {
			return &ScopeEndErrors{Errors: merrs}
		}
	}
	return nil
}

// ScopeManager owns the root scope and every child scope created from it.
type ScopeManager struct {
	root *Scope

	mu       sync.RWMutex
	children map[string]*Scope

	containerClosed atomic.Bool
}

// NewScopeManager creates the root scope and an empty child-scope table.
func NewScopeManager() *ScopeManager {
	m := &ScopeManager{children: make(map[string]*Scope)}
	m.root = newScope(m, nil, true)
	return m
}

// Root returns the container's single root scope.
func (m *ScopeManager) Root() *Scope { return m.root }

// BeginScope creates and returns a new child scope of the root.
func (m *ScopeManager) BeginScope() *Scope {
	s := newScope(m, m.root, false)
	m.mu.Lock()
	m.children[s.ID] = s
	m.mu.Unlock()
	return s
}

// EndScope ends s. Ending the root scope is rejected with
// ErrRootScopeActive while the owning container has not itself closed.
func (m *ScopeManager) EndScope(s *Scope) error {
	if s.isRoot && !m.containerClosed.Load() {
		return ErrRootScopeActive
	}
	err := s.end()
	m.mu.Lock()
	delete(m.children, s.ID)
	m.mu.Unlock()
	return err
}

// CloseContainer permits the root scope to be ended and ends it, disposing
// every remaining singleton.
func (m *ScopeManager) CloseContainer() error {
	m.containerClosed.Store(true)
	return m.root.end()
}

// Get returns the live child scope by ID, if it is still tracked.
func (m *ScopeManager) Get(id string) (*Scope, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.children[id]
	return s, ok
}
