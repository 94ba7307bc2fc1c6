package domain

import "time"

// Credentials is the seller-submitted access payload for a transaction.
// Write-once: the unique transaction_id index rejects a second submission.
// The payload is opaque to the core; only required-field presence is checked.
type Credentials struct {
	ID            string
	TransactionID string
	AccessType    string
	URL           string
	Username      string
	Secret        string
	Notes         string
	CreatedAt     time.Time
}
