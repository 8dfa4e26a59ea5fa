package reconcile

import (
	"fmt"

	"github.com/google/uuid"
)

// DefaultPrefix is prepended to minted stable identifiers.
const DefaultPrefix = "mbo_"

// Minter produces fresh stable identifiers.
type Minter interface {
	Mint() (string, error)
}

// UUIDMinter mints Prefix followed by a random (version 4) UUID.
type UUIDMinter struct {
	Prefix string
}

func (m UUIDMinter) Mint() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return m.Prefix + id.String(), nil
}

// MinterFunc adapts a function to the Minter interface.
type MinterFunc func() (string, error)

func (f MinterFunc) Mint() (string, error) { return f() }
