package corebind

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type disposeRecorder struct {
	name string
	log  *[]string
	mu   *sync.Mutex
}

func (d disposeRecorder) Dispose() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	*d.log = append(*d.log, d.name)
	return nil
}

func TestScopeStoreHasRetrieve(t *testing.T) {
	m := NewScopeManager()
	sc := m.BeginScope()
	require.False(t, sc.has("x"))

	require.NoError(t, sc.store("x", 42))
	require.True(t, sc.has("x"))

	v, ok, err := sc.retrieve("x")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestScopeEndDisposesInReverseOrder(t *testing.T) {
	m := NewScopeManager()
	sc := m.BeginScope()

	var log []string
	var mu sync.Mutex
	require.NoError(t, sc.store("a", disposeRecorder{name: "a", log: &log, mu: &mu}))
	require.NoError(t, sc.store("b", disposeRecorder{name: "b", log: &log, mu: &mu}))

	require.NoError(t, m.EndScope(sc))
	require.Equal(t, []string{"b", "a"}, log)
}

func TestScopeEndIsIdempotent(t *testing.T) {
	m := NewScopeManager()
	sc := m.BeginScope()
	require.NoError(t, m.EndScope(sc))
	require.NoError(t, m.EndScope(sc))
}

func TestScopeRetrieveAfterEndFails(t *testing.T) {
	m := NewScopeManager()
	sc := m.BeginScope()
	require.NoError(t, m.EndScope(sc))

	_, _, err := sc.retrieve("x")
	require.True(t, IsScopeEnded(err))
}

func TestRootScopeCannotEndWhileContainerActive(t *testing.T) {
	m := NewScopeManager()
	err := m.EndScope(m.Root())
	require.ErrorIs(t, err, ErrRootScopeActive)
}

func TestScopeIsolationBetweenTwoChildScopes(t *testing.T) {
	m := NewScopeManager()
	a := m.BeginScope()
	b := m.BeginScope()

	require.NoError(t, a.store("id", "x"))
	require.NoError(t, b.store("id", "y"))

	va, _, _ := a.retrieve("id")
	vb, _, _ := b.retrieve("id")
	require.NotEqual(t, va, vb)
}
