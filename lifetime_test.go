package corebind

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifetimeStringRoundTrip(t *testing.T) {
	for _, l := range []Lifetime{Singleton, Scoped, Transient} {
		require.True(t, l.IsValid())
		var got Lifetime
		require.NoError(t, got.UnmarshalText([]byte(l.String())))
		require.Equal(t, l, got)
	}
}

func TestLifetimeUnmarshalTextRejectsUnknown(t *testing.T) {
	var l Lifetime
	err := l.UnmarshalText([]byte("Eternal"))
	require.Error(t, err)
	var le *LifetimeError
	require.ErrorAs(t, err, &le)
}

func TestLifetimeJSONRoundTrip(t *testing.T) {
	buf, err := json.Marshal(Scoped)
	require.NoError(t, err)
	require.Equal(t, `"Scoped"`, string(buf))

	var l Lifetime
	require.NoError(t, json.Unmarshal(buf, &l))
	require.Equal(t, Scoped, l)
}

func TestLifetimeIsValidRejectsOutOfRange(t *testing.T) {
	require.False(t, Lifetime(99).IsValid())
}
