package protocache

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaycore/corebind/internal/prototype"
)

type sample struct{}

func TestGetMissesOnEmptyCache(t *testing.T) {
	c := New("")
	_, ok := c.Get(reflect.TypeOf(sample{}))
	require.False(t, ok)
}

func TestPutThenGetReturnsStoredPrototype(t *testing.T) {
	c := New("")
	p := &prototype.ServicePrototype{Class: "sample", IsInstantiable: true}
	c.Put(reflect.TypeOf(sample{}), p, nil)

	got, ok := c.Get(reflect.TypeOf(sample{}))
	require.True(t, ok)
	require.Same(t, p, got)
}

func TestInvalidateRemovesEntry(t *testing.T) {
	c := New("")
	typ := reflect.TypeOf(sample{})
	c.Put(typ, &prototype.ServicePrototype{Class: "sample", IsInstantiable: true}, nil)
	c.Invalidate(typ)

	_, ok := c.Get(typ)
	require.False(t, ok)
}

func TestIsFreshComparesFingerprint(t *testing.T) {
	c := New("")
	typ := reflect.TypeOf(sample{})
	c.Put(typ, &prototype.ServicePrototype{Class: "sample", IsInstantiable: true}, []byte("v1"))

	require.True(t, c.IsFresh(typ, []byte("v1")))
	require.False(t, c.IsFresh(typ, []byte("v2")))
}

func TestGetOrAnalyzeCallsAnalyzeOnce(t *testing.T) {
	c := New("")
	typ := reflect.TypeOf(sample{})

	var calls int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrAnalyze(typ, nil, func() (*prototype.ServicePrototype, error) {
				atomic.AddInt32(&calls, 1)
				return &prototype.ServicePrototype{Class: "sample", IsInstantiable: true}, nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClearAllEmptiesCache(t *testing.T) {
	c := New("")
	typ := reflect.TypeOf(sample{})
	c.Put(typ, &prototype.ServicePrototype{Class: "sample", IsInstantiable: true}, nil)
	c.ClearAll()

	_, ok := c.Get(typ)
	require.False(t, ok)
}
