package domain

import "time"

type NotificationCategory string

const (
	NotificationOfferAccepted        NotificationCategory = "offer_accepted"
	NotificationOfferRejected        NotificationCategory = "offer_rejected"
	NotificationPaymentReceived      NotificationCategory = "payment_received"
	NotificationCredentialsSubmitted NotificationCategory = "credentials_submitted"
	NotificationEscrowReleased       NotificationCategory = "escrow_released"
)

// Notification is a best-effort in-app notice. Delivery failures never fail
// the transaction that produced them.
type Notification struct {
	ID          string
	RecipientID string
	Category    NotificationCategory
	Title       string
	Body        string
	RelatedID   string
	Read        bool
	CreatedAt   time.Time
}
