package corebind

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModuleAppliesBuildersInOrder(t *testing.T) {
	c := NewContainer(ContainerConfig{})
	reg := c.AsRegistrar()

	m := NewModule("widgets",
		AddSingleton("a", ConcreteFromInstance(1)),
		AddInstance("b", 2),
	)
	require.NoError(t, m.Apply(reg))

	va, err := c.Resolve("a")
	require.NoError(t, err)
	require.Equal(t, 1, va)

	vb, err := c.Resolve("b")
	require.NoError(t, err)
	require.Equal(t, 2, vb)
}

func TestModuleApplyStopsAtFirstError(t *testing.T) {
	c := NewContainer(ContainerConfig{})
	reg := c.AsRegistrar()
	c.Seal()

	m := NewModule("broken",
		AddSingleton("a", ConcreteFromInstance(1)),
		AddSingleton("b", ConcreteFromInstance(2)),
	)
	err := m.Apply(reg)
	require.ErrorIs(t, err, ErrContainerSealed)
}

func TestWithModulesAppliesAll(t *testing.T) {
	c := NewContainer(ContainerConfig{})
	reg := c.AsRegistrar()

	m1 := NewModule("m1", AddInstance("x", "one"))
	m2 := NewModule("m2", AddInstance("y", "two"))
	require.NoError(t, WithModules(reg, m1, m2))

	vx, _ := c.Resolve("x")
	vy, _ := c.Resolve("y")
	require.Equal(t, "one", vx)
	require.Equal(t, "two", vy)
}
