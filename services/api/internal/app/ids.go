package app

import "github.com/google/uuid"

func newID() string {
	return uuid.NewString()
}

// newEscrowRef mints the reference handed to the escrow provider when the
// order is created. The provider keys its ledger entry on it.
func newEscrowRef() string {
	return "esc-" + uuid.NewString()
}
