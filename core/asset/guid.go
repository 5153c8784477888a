package asset

import (
	"fmt"

	"github.com/google/uuid"
)

// Guid is the stable identity of an asset. It is immutable once assigned.
type Guid uuid.UUID

// NilGuid is the zero Guid. It never names an asset.
var NilGuid Guid

// NewGuid mints a fresh random identity.
func NewGuid() Guid {
	return Guid(uuid.New())
}

// ParseGuid parses the canonical text form of an identity.
func ParseGuid(s string) (Guid, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilGuid, fmt.Errorf("%w: %q: %v", ErrInvalidGuid, s, err)
	}
	g := Guid(u)
	if g.IsZero() {
		return NilGuid, fmt.Errorf("%w: nil identity", ErrInvalidGuid)
	}
	return g, nil
}

// String returns the canonical 36 character form.
func (g Guid) String() string {
	return uuid.UUID(g).String()
}

// IsZero reports whether g is the nil identity.
func (g Guid) IsZero() bool {
	return g == NilGuid
}

// MarshalText implements encoding.TextMarshaler.
func (g Guid) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Guid) UnmarshalText(b []byte) error {
	parsed, err := ParseGuid(string(b))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
