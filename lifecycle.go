package corebind

import (
	"fmt"

	"golang.org/x/sync/singleflight"
)

// lifecycleStrategy is the {store, has, retrieve, clear} capability set
// spec.md §4.7 assigns one implementation per Lifetime. Selecting a
// strategy is the resolver's first step after finding a binding.
type lifecycleStrategy interface {
	has(target *Scope, id ServiceID) bool
	retrieve(target *Scope, id ServiceID) (any, bool, error)
	store(target *Scope, id ServiceID, instance any) error
	clear(target *Scope, id ServiceID)
	// construct guarantees at-most-one concurrent construction per
	// (strategy-defined key, id); callers pass the build func to run on a
	// cache miss. target names the scope that owns the published value;
	// the singleton strategy ignores it and always uses the root scope.
	construct(target *Scope, id ServiceID, build func() (any, error)) (any, error)
}

// singletonStrategy always reads/writes the root scope, regardless of which
// scope the caller is resolving within.
type singletonStrategy struct {
	root  *Scope
	group *singleflight.Group
}

func newSingletonStrategy(root *Scope) *singletonStrategy {
	return &singletonStrategy{root: root, group: &singleflight.Group{}}
}

func (s *singletonStrategy) has(_ *Scope, id ServiceID) bool { return s.root.has(id) }

func (s *singletonStrategy) retrieve(_ *Scope, id ServiceID) (any, bool, error) {
	return s.root.retrieve(id)
}

func (s *singletonStrategy) store(_ *Scope, id ServiceID, instance any) error {
	return s.root.store(id, instance)
}

func (s *singletonStrategy) clear(_ *Scope, _ ServiceID) {
	// Singleton clear is a no-op per spec.md §4.7: singletons live for the
	// container's lifetime and are only released by ending the root scope.
}

func (s *singletonStrategy) construct(_ *Scope, id ServiceID, build func() (any, error)) (any, error) {
	v, err, _ := s.group.Do(string(id), func() (any, error) {
		if existing, ok, _ := s.root.retrieve(id); ok {
			return existing, nil
		}
		instance, err := build()
		if err != nil {
			return nil, err
		}
		if err := s.root.store(id, instance); err != nil {
			return nil, err
		}
		return instance, nil
	})
	return v, err
}

// scopedStrategy reads/writes whichever scope the caller is currently
// resolving within. A single singleflight.Group keys internally by the
// string passed to Do, so one Group safely serves every (scope, id) pair.
type scopedStrategy struct {
	group singleflight.Group
}

func newScopedStrategy() *scopedStrategy {
	return &scopedStrategy{}
}

func (s *scopedStrategy) has(target *Scope, id ServiceID) bool { return target.has(id) }

func (s *scopedStrategy) retrieve(target *Scope, id ServiceID) (any, bool, error) {
	return target.retrieve(id)
}

func (s *scopedStrategy) store(target *Scope, id ServiceID, instance any) error {
	return target.store(id, instance)
}

func (s *scopedStrategy) clear(target *Scope, _ ServiceID) {
	target.flush()
}

func (s *scopedStrategy) construct(target *Scope, id ServiceID, build func() (any, error)) (any, error) {
	key := fmt.Sprintf("%s/%s", target.ID, id)
	v, err, _ := s.group.Do(key, func() (any, error) {
		if existing, ok, _ := target.retrieve(id); ok {
			return existing, nil
		}
		instance, err := build()
		if err != nil {
			return nil, err
		}
		if err := target.store(id, instance); err != nil {
			return nil, err
		}
		return instance, nil
	})
	return v, err
}

// transientStrategy never caches: has is always false, retrieve always
// misses, store and clear are no-ops, construct always builds fresh.
type transientStrategy struct{}

func (transientStrategy) has(*Scope, ServiceID) bool { return false }

func (transientStrategy) retrieve(*Scope, ServiceID) (any, bool, error) { return nil, false, nil }

func (transientStrategy) store(*Scope, ServiceID, any) error { return nil }

func (transientStrategy) clear(*Scope, ServiceID) {}

func (transientStrategy) construct(_ *Scope, _ ServiceID, build func() (any, error)) (any, error) {
	return build()
}

// lifecycleFor returns the strategy implementing l, given the root scope
// (used by Singleton regardless of the caller's current scope).
func lifecycleFor(l Lifetime, root *Scope, registry *lifecycleRegistry) lifecycleStrategy {
	switch l {
	case Singleton:
		return registry.singleton
	case Scoped:
		return registry.scoped
	default:
		return registry.transient
	}
}

// lifecycleRegistry bundles one instance of each strategy so singleflight
// groups and caches persist across resolutions.
type lifecycleRegistry struct {
	singleton *singletonStrategy
	scoped    *scopedStrategy
	transient transientStrategy
}

func newLifecycleRegistry(root *Scope) *lifecycleRegistry {
	return &lifecycleRegistry{
		singleton: newSingletonStrategy(root),
		scoped:    newScopedStrategy(),
		transient: transientStrategy{},
	}
}
