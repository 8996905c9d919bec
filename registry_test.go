package corebind

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefinitionStoreRegisterAndResolve(t *testing.T) {
	s := NewDefinitionStore()
	_, err := s.Register(ServiceDefinition{ID: "logger", Lifetime: Singleton, Tags: []string{"core"}})
	require.NoError(t, err)

	canonical, b, err := s.Resolve("logger")
	require.NoError(t, err)
	require.Equal(t, ServiceID("logger"), canonical)
	require.Equal(t, []string{"core"}, b.Definition.Tags)
}

func TestDefinitionStoreResolveMissing(t *testing.T) {
	s := NewDefinitionStore()
	_, _, err := s.Resolve("missing")
	require.True(t, IsNotFound(err))
}

func TestDefinitionStoreLifetimeImmutability(t *testing.T) {
	s := NewDefinitionStore()
	_, err := s.Register(ServiceDefinition{ID: "x", Lifetime: Singleton})
	require.NoError(t, err)

	_, err = s.Register(ServiceDefinition{ID: "x", Lifetime: Scoped})
	require.Error(t, err)
	var lie *LifetimeImmutabilityError
	require.ErrorAs(t, err, &lie)
	require.Equal(t, Singleton, lie.Current)
	require.Equal(t, Scoped, lie.Requested)
}

func TestDefinitionStoreAliasTransitivity(t *testing.T) {
	s := NewDefinitionStore()
	_, err := s.Register(ServiceDefinition{ID: "c", Lifetime: Singleton})
	require.NoError(t, err)
	require.NoError(t, s.Alias("b", "c"))
	require.NoError(t, s.Alias("a", "b"))

	canonical, _, err := s.Resolve("a")
	require.NoError(t, err)
	require.Equal(t, ServiceID("c"), canonical)
}

func TestDefinitionStoreAliasCycleRejected(t *testing.T) {
	s := NewDefinitionStore()
	require.NoError(t, s.Alias("a", "b"))
	err := s.Alias("b", "a")
	require.ErrorIs(t, err, ErrAliasCycle)
}

func TestDefinitionStoreSealRejectsWrites(t *testing.T) {
	s := NewDefinitionStore()
	s.Seal(false)
	_, err := s.Register(ServiceDefinition{ID: "x", Lifetime: Singleton})
	require.ErrorIs(t, err, ErrContainerSealed)
}

func TestDefinitionStoreTagIsIdempotent(t *testing.T) {
	s := NewDefinitionStore()
	_, err := s.Register(ServiceDefinition{ID: "x", Lifetime: Singleton})
	require.NoError(t, err)
	require.NoError(t, s.Tag("core", "x"))
	require.NoError(t, s.Tag("core", "x"))
	require.Equal(t, []ServiceID{"x"}, s.Tagged("core"))
}

func TestDefinitionStoreRejectsNilConstructor(t *testing.T) {
	s := NewDefinitionStore()
	_, err := s.Register(ServiceDefinition{ID: "x", Lifetime: Singleton, Concrete: ConcreteType(nil)})
	require.ErrorIs(t, err, ErrConstructorNil)
}

func TestDefinitionStoreRejectsNonFunctionConstructor(t *testing.T) {
	s := NewDefinitionStore()
	_, err := s.Register(ServiceDefinition{ID: "x", Lifetime: Singleton, Concrete: ConcreteType("not a function")})
	require.ErrorIs(t, err, ErrNotAFunction)
}

func TestDefinitionStoreAliasesReturnsCopy(t *testing.T) {
	s := NewDefinitionStore()
	require.NoError(t, s.Alias("a", "b"))
	aliases := s.Aliases()
	require.Equal(t, ServiceID("b"), aliases["a"])
	aliases["a"] = "mutated"
	require.Equal(t, ServiceID("b"), s.Aliases()["a"])
}

func TestContextualBuilderRegistersOverride(t *testing.T) {
	s := NewDefinitionStore()
	require.NoError(t, s.When("Consumer").Needs("dep").Give(ConcreteFromInstance("override")))

	b, ok := s.Binding("dep")
	require.True(t, ok)
	override, ok := b.ContextualGives["Consumer"]
	require.True(t, ok)
	require.Equal(t, "override", override.Instance())
}
