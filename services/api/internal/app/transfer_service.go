package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/saudashfaq/market-market-sub002/services/api/internal/clock"
	"github.com/saudashfaq/market-market-sub002/services/api/internal/domain"
	"github.com/saudashfaq/market-market-sub002/services/api/internal/escrow"
)

type TransactionRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetTransaction(ctx context.Context, transactionID string) (domain.Transaction, error)
	GetTransactionForUpdate(ctx context.Context, transactionID string) (domain.Transaction, error)
	MarkPaid(ctx context.Context, transactionID string, paidAt time.Time) error
	CreateCredentials(ctx context.Context, cred domain.Credentials) error
	SetTransferStatus(ctx context.Context, transactionID string, from, to domain.TransferStatus) error
	CompleteTransfer(ctx context.Context, transactionID string, completedAt time.Time) error
}

// EscrowReleaser is the capability consumed from the external escrow
// provider: release the funds held under escrowRef once the buyer's one-time
// code checks out.
type EscrowReleaser interface {
	Release(ctx context.Context, escrowRef, otp string) error
}

// TransferService drives the transaction's transfer-state machine:
// payment confirmed -> credentials submitted -> escrow released. Every
// transition is a conditional write on the expected prior state so replayed
// requests report a state conflict instead of double-applying.
type TransferService struct {
	repo     TransactionRepository
	escrow   EscrowReleaser
	notifier Notifier
	clock    clock.Clock
	log      *zap.Logger
}

func NewTransferService(repo TransactionRepository, releaser EscrowReleaser, notifier Notifier, clk clock.Clock, log *zap.Logger) *TransferService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TransferService{
		repo:     repo,
		escrow:   releaser,
		notifier: notifier,
		clock:    clk,
		log:      log,
	}
}

// Get returns the transaction for one of its parties. Outsiders get the same
// not-found as a missing row.
func (s *TransferService) Get(ctx context.Context, transactionID, actorID string) (domain.Transaction, error) {
	txn, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if txn.BuyerID != actorID && txn.SellerID != actorID {
		return domain.Transaction{}, domain.ErrUnauthorized
	}
	return txn, nil
}

// ConfirmPayment is the entry point for the external payment collector's
// confirmation event: pending_payment -> paid, transfer handoff opens.
func (s *TransferService) ConfirmPayment(ctx context.Context, transactionID string) error {
	txn, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if err := s.repo.MarkPaid(ctx, txn.ID, s.clock.Now()); err != nil {
		return err
	}

	s.notify(ctx, domain.Notification{
		RecipientID: txn.SellerID,
		Category:    domain.NotificationPaymentReceived,
		Title:       "Payment received",
		Body:        "The buyer has paid. Submit the access credentials to continue the transfer.",
		RelatedID:   txn.ID,
	})
	return nil
}

type SubmitCredentialsInput struct {
	TransactionID string
	ActorID       string
	AccessType    string
	URL           string
	Username      string
	Secret        string
	Notes         string
}

func (in SubmitCredentialsInput) validate() error {
	switch {
	case in.AccessType == "":
		return domain.ErrCredentialTypeRequired
	case in.URL == "":
		return domain.ErrCredentialURLRequired
	case in.Username == "":
		return domain.ErrCredentialUsernameRequired
	case in.Secret == "":
		return domain.ErrCredentialSecretRequired
	}
	return nil
}

// SubmitCredentials stores the seller's access payload and advances the
// transfer to credentials_submitted. The payload is write-once; a second
// submission reports the conflict and leaves the first payload untouched.
func (s *TransferService) SubmitCredentials(ctx context.Context, in SubmitCredentialsInput) error {
	if err := in.validate(); err != nil {
		return err
	}

	now := s.clock.Now()
	var txn domain.Transaction

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		txn, err = s.repo.GetTransactionForUpdate(txCtx, in.TransactionID)
		if err != nil {
			return err
		}
		if txn.SellerID != in.ActorID {
			return domain.ErrUnauthorized
		}
		switch txn.TransferStatus {
		case domain.TransferStatusAwaitingCredentials:
		case domain.TransferStatusCredentialsSubmitted, domain.TransferStatusCompleted:
			return domain.ErrCredentialsAlreadySubmitted
		default:
			return domain.ErrInvalidTransferState
		}

		cred := domain.Credentials{
			ID:            newID(),
			TransactionID: txn.ID,
			AccessType:    in.AccessType,
			URL:           in.URL,
			Username:      in.Username,
			Secret:        in.Secret,
			Notes:         in.Notes,
			CreatedAt:     now,
		}
		if err := s.repo.CreateCredentials(txCtx, cred); err != nil {
			return err
		}
		return s.repo.SetTransferStatus(txCtx, txn.ID,
			domain.TransferStatusAwaitingCredentials, domain.TransferStatusCredentialsSubmitted)
	})
	if err != nil {
		return err
	}

	s.notify(ctx, domain.Notification{
		RecipientID: txn.BuyerID,
		Category:    domain.NotificationCredentialsSubmitted,
		Title:       "Credentials ready",
		Body:        "The seller has handed over the credentials. Confirm with your one-time code to release the funds.",
		RelatedID:   txn.ID,
	})
	return nil
}

type CompleteEscrowInput struct {
	TransactionID string
	ActorID       string
	OTP           string
}

// CompleteEscrow asks the external provider to release the funds held for
// the transaction. The provider call is made with no local transaction open;
// the local transition happens in its own short conditional write only after
// the provider reports success. Wrong state is checked before the provider
// is ever invoked, so a replayed confirmation cannot double-release.
func (s *TransferService) CompleteEscrow(ctx context.Context, in CompleteEscrowInput) error {
	if in.OTP == "" {
		return domain.ErrOTPRequired
	}

	txn, err := s.repo.GetTransaction(ctx, in.TransactionID)
	if err != nil {
		return err
	}
	if txn.BuyerID != in.ActorID {
		return domain.ErrUnauthorized
	}
	if txn.TransferStatus != domain.TransferStatusCredentialsSubmitted {
		return domain.ErrInvalidTransferState
	}

	if err := s.escrow.Release(ctx, txn.EscrowRef, in.OTP); err != nil {
		// Audit the attempt with the code's length only, never its value.
		fields := []zap.Field{
			zap.String("transaction_id", txn.ID),
			zap.Int("otp_len", len(in.OTP)),
		}
		var rejection *escrow.RejectionError
		switch {
		case errors.As(err, &rejection):
			s.log.Warn("escrow release rejected", append(fields, zap.String("reason", rejection.Reason))...)
		case errors.Is(err, escrow.ErrUnavailable):
			s.log.Warn("escrow provider unreachable", append(fields, zap.Error(err))...)
		default:
			s.log.Error("escrow release failed", append(fields, zap.Error(err))...)
		}
		return err
	}

	if err := s.repo.CompleteTransfer(ctx, txn.ID, s.clock.Now()); err != nil {
		return err
	}

	s.notify(ctx, domain.Notification{
		RecipientID: txn.SellerID,
		Category:    domain.NotificationEscrowReleased,
		Title:       "Funds released",
		Body:        "The buyer confirmed the transfer and the escrow has been released.",
		RelatedID:   txn.ID,
	})
	adminIDs, err := s.notifier.AdminIDs(ctx)
	if err != nil {
		s.log.Warn("list admins for fan-out", zap.Error(err))
		return nil
	}
	for _, adminID := range adminIDs {
		s.notify(ctx, domain.Notification{
			RecipientID: adminID,
			Category:    domain.NotificationEscrowReleased,
			Title:       "Escrow released",
			Body:        "Transaction " + txn.ID + " completed.",
			RelatedID:   txn.ID,
		})
	}
	return nil
}

func (s *TransferService) notify(ctx context.Context, n domain.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn("notification failed",
			zap.String("recipient_id", n.RecipientID),
			zap.String("category", string(n.Category)),
			zap.Error(err),
		)
	}
}
