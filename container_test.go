package corebind

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewContainerDefaultsMaxDepth(t *testing.T) {
	c := NewContainer(ContainerConfig{})
	require.Equal(t, 50, c.config.MaxResolutionDepth)
}

func TestContainerSealBlocksLateRegistration(t *testing.T) {
	c := NewContainer(ContainerConfig{})
	reg := c.AsRegistrar()
	require.NoError(t, reg.Singleton("x", ConcreteFromInstance(1)).Err())

	c.Seal()
	require.True(t, c.Sealed())
	require.ErrorIs(t, reg.Singleton("y", ConcreteFromInstance(2)).Err(), ErrContainerSealed)
}

func TestContainerAllowPostSealRegistration(t *testing.T) {
	c := NewContainer(ContainerConfig{AllowPostSealRegistration: true})
	c.Seal()
	reg := c.AsRegistrar()
	require.NoError(t, reg.Singleton("y", ConcreteFromInstance(2)).Err())
}

func TestContainerEndScopeClearsDigScope(t *testing.T) {
	c := NewContainer(ContainerConfig{})
	sc := c.BeginScope()
	require.NoError(t, c.EndScope(sc))

	_, ok := c.digScopes[sc.ID]
	require.False(t, ok)
}

func TestContainerSetTelemetryRejectsNil(t *testing.T) {
	c := NewContainer(ContainerConfig{})
	c.SetTelemetry(nil)
	require.IsType(t, NoopSink{}, c.telemetry)
}
