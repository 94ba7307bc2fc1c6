package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/saudashfaq/market-market-sub002/services/api/internal/clock"
	"github.com/saudashfaq/market-market-sub002/services/api/internal/domain"
)

type OfferRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetOfferForUpdate(ctx context.Context, offerID string) (domain.Offer, error)
	UpdateOfferStatus(ctx context.Context, offerID string, from, to domain.OfferStatus, resolvedAt time.Time) error
	RejectSiblingOffers(ctx context.Context, listingID, exceptOfferID string, resolvedAt time.Time) ([]domain.Offer, error)
	MarkListingSold(ctx context.Context, listingID string) error
	FeePercent(ctx context.Context) (float64, error)
	CreateTransaction(ctx context.Context, txn domain.Transaction) error
}

// OfferService resolves pending offers. Accepting one is a single atomic
// unit: the winning offer flips to accepted, every sibling pending offer on
// the listing flips to rejected, the listing closes, and exactly one
// transaction row is created. Correctness under concurrent accepts comes
// entirely from conditional writes inside the transaction, not from any
// in-process lock.
type OfferService struct {
	repo     OfferRepository
	notifier Notifier
	clock    clock.Clock
	log      *zap.Logger
}

func NewOfferService(repo OfferRepository, notifier Notifier, clk clock.Clock, log *zap.Logger) *OfferService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OfferService{
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		log:      log,
	}
}

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

type ResolveOfferInput struct {
	OfferID  string
	ActorID  string
	Decision Decision
}

// Resolve accepts or rejects a pending offer on behalf of the listing's
// seller. On accept it returns the transaction created for the offer.
func (s *OfferService) Resolve(ctx context.Context, in ResolveOfferInput) (*domain.Transaction, error) {
	if in.Decision != DecisionAccept && in.Decision != DecisionReject {
		return nil, domain.ErrInvalidDecision
	}

	now := s.clock.Now()
	var (
		offer    domain.Offer
		txn      *domain.Transaction
		siblings []domain.Offer
	)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		offer, err = s.repo.GetOfferForUpdate(txCtx, in.OfferID)
		if err != nil {
			return err
		}
		if offer.SellerID != in.ActorID {
			return domain.ErrUnauthorized
		}
		if offer.Status != domain.OfferStatusPending {
			return domain.ErrOfferAlreadyResolved
		}

		if in.Decision == DecisionReject {
			return s.repo.UpdateOfferStatus(txCtx, offer.ID, domain.OfferStatusPending, domain.OfferStatusRejected, now)
		}

		// Conditioned on the prior status so a concurrent accept on the same
		// offer observes zero rows and reports already-resolved.
		if err := s.repo.UpdateOfferStatus(txCtx, offer.ID, domain.OfferStatusPending, domain.OfferStatusAccepted, now); err != nil {
			return err
		}
		siblings, err = s.repo.RejectSiblingOffers(txCtx, offer.ListingID, offer.ID, now)
		if err != nil {
			return err
		}
		if err := s.repo.MarkListingSold(txCtx, offer.ListingID); err != nil {
			return err
		}

		feePercent, err := s.repo.FeePercent(txCtx)
		if err != nil {
			return err
		}
		fee := domain.ComputeFeeCents(offer.AmountCents, feePercent)

		t := domain.Transaction{
			ID:          newID(),
			ListingID:   offer.ListingID,
			OfferID:     offer.ID,
			BuyerID:     offer.BuyerID,
			SellerID:    offer.SellerID,
			AmountCents: offer.AmountCents,
			FeeCents:    fee,
			TotalCents:  offer.AmountCents + fee,
			Status:      domain.TransactionStatusPendingPayment,
			EscrowRef:   newEscrowRef(),
			CreatedAt:   now,
		}
		if err := s.repo.CreateTransaction(txCtx, t); err != nil {
			return err
		}
		txn = &t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.fanOutResolved(ctx, offer, txn, siblings)

	if in.Decision == DecisionReject {
		return nil, nil
	}
	return txn, nil
}

// fanOutResolved runs after the commit. Failures are logged and swallowed so
// they can never roll back the financial state.
func (s *OfferService) fanOutResolved(ctx context.Context, offer domain.Offer, txn *domain.Transaction, siblings []domain.Offer) {
	if txn == nil {
		s.notify(ctx, domain.Notification{
			RecipientID: offer.BuyerID,
			Category:    domain.NotificationOfferRejected,
			Title:       "Offer declined",
			Body:        "The seller declined your offer.",
			RelatedID:   offer.ID,
		})
		return
	}

	s.notify(ctx, domain.Notification{
		RecipientID: offer.BuyerID,
		Category:    domain.NotificationOfferAccepted,
		Title:       "Offer accepted",
		Body:        fmt.Sprintf("Your offer was accepted. Total due: %d.%02d", txn.TotalCents/100, txn.TotalCents%100),
		RelatedID:   txn.ID,
	})
	for _, sib := range siblings {
		s.notify(ctx, domain.Notification{
			RecipientID: sib.BuyerID,
			Category:    domain.NotificationOfferRejected,
			Title:       "Offer declined",
			Body:        "Another offer on this listing was accepted.",
			RelatedID:   sib.ID,
		})
	}

	adminIDs, err := s.notifier.AdminIDs(ctx)
	if err != nil {
		s.log.Warn("list admins for fan-out", zap.Error(err))
		return
	}
	for _, adminID := range adminIDs {
		s.notify(ctx, domain.Notification{
			RecipientID: adminID,
			Category:    domain.NotificationOfferAccepted,
			Title:       "Offer accepted",
			Body:        fmt.Sprintf("Transaction %s created for listing %s.", txn.ID, txn.ListingID),
			RelatedID:   txn.ID,
		})
	}
}

func (s *OfferService) notify(ctx context.Context, n domain.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn("notification failed",
			zap.String("recipient_id", n.RecipientID),
			zap.String("category", string(n.Category)),
			zap.Error(err),
		)
	}
}
