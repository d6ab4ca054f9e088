package ledger

import "strings"

// Identity is an opaque principal identifier resolved by the boundary layer.
type Identity string

// ParseIdentity trims surrounding whitespace and rejects empty identities.
func ParseIdentity(s string) (Identity, error) {
	id := Identity(strings.TrimSpace(s))
	if id.IsZero() {
		return "", ErrInvalidIdentity
	}
	return id, nil
}

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool {
	return i == ""
}

func (i Identity) String() string {
	return string(i)
}
