package domain

import (
	"math"
	"time"
)

type TransactionStatus string

const (
	TransactionStatusPendingPayment TransactionStatus = "pending_payment"
	TransactionStatusPaid           TransactionStatus = "paid"
)

type TransferStatus string

const (
	// TransferStatusNone is the zero value before payment lands; stored as NULL.
	TransferStatusNone                 TransferStatus = ""
	TransferStatusAwaitingCredentials  TransferStatus = "awaiting_credentials"
	TransferStatusCredentialsSubmitted TransferStatus = "credentials_submitted"
	TransferStatusCompleted            TransferStatus = "completed"
	TransferStatusDisputed             TransferStatus = "disputed"
)

// Transaction is the financial record created from an accepted offer. The fee
// is snapshotted from the platform setting at acceptance time; later changes
// to the setting never touch historical rows.
type Transaction struct {
	ID             string
	ListingID      string
	OfferID        string
	BuyerID        string
	SellerID       string
	AmountCents    int64
	FeeCents       int64
	TotalCents     int64
	Status         TransactionStatus
	TransferStatus TransferStatus
	EscrowRef      string
	CreatedAt      time.Time
	PaidAt         *time.Time
	CompletedAt    *time.Time
}

// DefaultFeePercent applies when the fee_percent platform setting is unset.
const DefaultFeePercent = 5.0

// ComputeFeeCents rounds to the nearest cent.
func ComputeFeeCents(amountCents int64, feePercent float64) int64 {
	return int64(math.Round(float64(amountCents) * feePercent / 100))
}
