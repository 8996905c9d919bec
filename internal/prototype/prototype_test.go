package prototype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToMapFromMapRoundTrip(t *testing.T) {
	p := &ServicePrototype{
		Class: "widget.Service",
		Constructor: &MethodPrototype{
			Name: "New",
			Parameters: []ParameterPrototype{
				{Name: "logger", Type: "*zap.Logger", Required: true},
				{Name: "timeout", Type: "time.Duration", HasDefault: true, Default: float64(5)},
			},
		},
		InjectedProperties: []PropertyPrototype{{Name: "Cache", Type: "*Cache", AllowsNull: true}},
		IsInstantiable:     true,
	}

	m, err := p.ToMap()
	require.NoError(t, err)
	require.Equal(t, "widget.Service", m["class"])

	decoded, err := FromMap(m)
	require.NoError(t, err)
	require.Equal(t, p.Class, decoded.Class)
	require.Equal(t, p.IsInstantiable, decoded.IsInstantiable)
	require.Equal(t, p.Constructor.Name, decoded.Constructor.Name)
	require.Len(t, decoded.Constructor.Parameters, 2)
	require.Equal(t, "logger", decoded.Constructor.Parameters[0].Name)
}

func TestFromMapRejectsMissingClass(t *testing.T) {
	_, err := FromMap(map[string]any{"isInstantiable": true})
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "class", de.Field)
}

func TestFromMapRejectsMissingIsInstantiable(t *testing.T) {
	_, err := FromMap(map[string]any{"class": "x"})
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "isInstantiable", de.Field)
}

func TestToMapIsDeterministic(t *testing.T) {
	p := &ServicePrototype{Class: "x", IsInstantiable: true}
	a, err := p.ToMap()
	require.NoError(t, err)
	b, err := p.ToMap()
	require.NoError(t, err)
	require.Equal(t, a, b)
}
