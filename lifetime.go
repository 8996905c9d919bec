package corebind

import (
	"encoding/json"
	"fmt"
)

// Lifetime specifies how a service's constructed instances are cached.
//
// Lifetime is immutable once a ServiceID is first registered; changing it
// requires removing and re-registering the binding (see LifetimeImmutabilityError).
type Lifetime int

const (
	// Singleton instances are created once and shared for the lifetime of
	// the root scope. Singleton services must not depend on Scoped services.
	Singleton Lifetime = iota

	// Scoped instances are created once per child scope and shared within
	// that scope. They are disposed when their owning scope ends.
	Scoped

	// Transient instances are created fresh on every resolve and are never
	// cached. They are owned by the caller.
	Transient
)

// String returns the human-readable name of the lifetime.
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "Singleton"
	case Scoped:
		return "Scoped"
	case Transient:
		return "Transient"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// IsValid reports whether l is one of the three closed-enum variants.
func (l Lifetime) IsValid() bool {
	return l >= Singleton && l <= Transient
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifetime) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Singleton", "singleton":
		*l = Singleton
	case "Scoped", "scoped":
		*l = Scoped
	case "Transient", "transient":
		*l = Transient
	default:
		return &LifetimeError{Value: string(text)}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Lifetime) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lifetime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return l.UnmarshalText([]byte(s))
}
