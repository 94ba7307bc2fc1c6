package domain

import "time"

type ListingStatus string

const (
	ListingStatusActive ListingStatus = "active"
	ListingStatusSold   ListingStatus = "sold"
)

// Listing is a seller's item for sale. Once an offer on it is accepted the
// listing is closed to further changes except by the resolver itself.
type Listing struct {
	ID         string
	SellerID   string
	Title      string
	PriceCents int64
	Status     ListingStatus
	CreatedAt  time.Time
}
