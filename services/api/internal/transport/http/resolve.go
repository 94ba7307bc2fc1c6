package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/saudashfaq/market-market-sub002/services/api/internal/app"
	"github.com/saudashfaq/market-market-sub002/services/api/internal/domain"
)

// OfferResolver is the minimal interface needed to resolve an offer.
type OfferResolver interface {
	Resolve(ctx context.Context, in app.ResolveOfferInput) (*domain.Transaction, error)
}

// HandleResolveOffer returns an HTTP handler for POST /offers/{id}/resolve.
func HandleResolveOffer(svc OfferResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		offerID, ok := parseResolveOfferPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req resolveOfferRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		txn, err := svc.Resolve(r.Context(), app.ResolveOfferInput{
			OfferID:  offerID,
			ActorID:  actor,
			Decision: app.Decision(req.Decision),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if txn == nil {
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(resolveOfferResponse{
				OfferID: offerID,
				Status:  string(domain.OfferStatusRejected),
			})
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resolveOfferResponse{
			OfferID:     offerID,
			Status:      string(domain.OfferStatusAccepted),
			Transaction: newTransactionResponse(*txn),
		})
	}
}

func parseResolveOfferPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != "offers" || parts[2] != "resolve" {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type resolveOfferRequest struct {
	Decision string `json:"decision"`
}

type resolveOfferResponse struct {
	OfferID     string               `json:"offer_id"`
	Status      string               `json:"status"`
	Transaction *transactionResponse `json:"transaction,omitempty"`
}

type transactionResponse struct {
	ID             string     `json:"id"`
	ListingID      string     `json:"listing_id"`
	OfferID        string     `json:"offer_id"`
	BuyerID        string     `json:"buyer_id"`
	SellerID       string     `json:"seller_id"`
	AmountCents    int64      `json:"amount_cents"`
	FeeCents       int64      `json:"fee_cents"`
	TotalCents     int64      `json:"total_cents"`
	Status         string     `json:"status"`
	TransferStatus string     `json:"transfer_status,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func newTransactionResponse(t domain.Transaction) *transactionResponse {
	return &transactionResponse{
		ID:             t.ID,
		ListingID:      t.ListingID,
		OfferID:        t.OfferID,
		BuyerID:        t.BuyerID,
		SellerID:       t.SellerID,
		AmountCents:    t.AmountCents,
		FeeCents:       t.FeeCents,
		TotalCents:     t.TotalCents,
		Status:         string(t.Status),
		TransferStatus: string(t.TransferStatus),
		CreatedAt:      t.CreatedAt,
		PaidAt:         t.PaidAt,
		CompletedAt:    t.CompletedAt,
	}
}
