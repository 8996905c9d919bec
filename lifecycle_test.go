package corebind

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingletonStrategyAlwaysUsesRootScope(t *testing.T) {
	m := NewScopeManager()
	strategy := newSingletonStrategy(m.Root())
	child := m.BeginScope()

	calls := 0
	v, err := strategy.construct(child, "x", func() (any, error) {
		calls++
		return "built", nil
	})
	require.NoError(t, err)
	require.Equal(t, "built", v)
	require.True(t, m.Root().has("x"))
	require.False(t, child.has("x"))

	v2, err := strategy.construct(child, "x", func() (any, error) {
		calls++
		return "built-again", nil
	})
	require.NoError(t, err)
	require.Equal(t, "built", v2)
	require.Equal(t, 1, calls)
}

func TestScopedStrategyIsolatesPerScope(t *testing.T) {
	strategy := newScopedStrategy()
	m := NewScopeManager()
	a := m.BeginScope()
	b := m.BeginScope()

	va, err := strategy.construct(a, "x", func() (any, error) { return "a-val", nil })
	require.NoError(t, err)
	vb, err := strategy.construct(b, "x", func() (any, error) { return "b-val", nil })
	require.NoError(t, err)

	require.Equal(t, "a-val", va)
	require.Equal(t, "b-val", vb)
	require.True(t, a.has("x"))
	require.True(t, b.has("x"))
}

func TestTransientStrategyNeverCaches(t *testing.T) {
	strategy := transientStrategy{}
	m := NewScopeManager()
	sc := m.BeginScope()

	calls := 0
	for i := 0; i < 3; i++ {
		_, err := strategy.construct(sc, "x", func() (any, error) {
			calls++
			return calls, nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, 3, calls)
	require.False(t, strategy.has(sc, "x"))
}

func TestLifecycleForDispatchesByLifetime(t *testing.T) {
	m := NewScopeManager()
	reg := newLifecycleRegistry(m.Root())

	require.Equal(t, lifecycleStrategy(reg.singleton), lifecycleFor(Singleton, m.Root(), reg))
	require.Equal(t, lifecycleStrategy(reg.scoped), lifecycleFor(Scoped, m.Root(), reg))
	require.Equal(t, lifecycleStrategy(reg.transient), lifecycleFor(Transient, m.Root(), reg))
}
