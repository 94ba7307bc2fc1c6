package domain

import "time"

type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
)

// Offer is a buyer's proposed price on a listing. At most one offer per
// listing ever reaches accepted; accepting one rejects every other pending
// offer on the same listing in the same transaction.
type Offer struct {
	ID          string
	ListingID   string
	BuyerID     string
	SellerID    string
	AmountCents int64
	Status      OfferStatus
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}
