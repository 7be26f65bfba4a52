// Package ids wraps github.com/google/uuid so the rest of the broker never
// imports uuid directly. Every Identifier in the broker — subscriber,
// publisher — is a 128-bit UUID in canonical hyphenated 36-character form.
package ids

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a process-wide unique identifier assigned to subscribers and
// supplied by clients for publishers.
type ID struct {
	u uuid.UUID
}

// Nil is the zero-value Identifier; no real subscriber or publisher ever
// holds it.
var Nil ID

// New allocates a fresh random (v4) Identifier.
func New() ID {
	return ID{u: uuid.New()}
}

// Parse decodes the canonical 36-character hyphenated form. A path segment
// that fails to parse is the MalformedId error condition of spec.md §7.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("malformed id %q: %w", s, err)
	}
	return ID{u: u}, nil
}

// String returns the canonical 36-character hyphenated form.
func (id ID) String() string {
	return id.u.String()
}

// IsZero reports whether id is the unset Identifier.
func (id ID) IsZero() bool {
	return id.u == uuid.Nil
}
