package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/saudashfaq/market-market-sub002/services/api/internal/clock"
	"github.com/saudashfaq/market-market-sub002/services/api/internal/domain"
	"github.com/saudashfaq/market-market-sub002/services/api/internal/escrow"
)

func TestTransferService_ConfirmPayment(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 11, 15, 0, 0, 0, time.UTC)

	t.Run("opens the credential handoff", func(t *testing.T) {
		repo := newFakeTxnRepo(domain.Transaction{
			ID: "txn-1", BuyerID: "buyer-1", SellerID: "seller-1",
			Status: domain.TransactionStatusPendingPayment,
		})
		notifier := &fakeNotifier{}
		svc := NewTransferService(repo, &fakeEscrow{}, notifier, clock.NewFixed(now), nil)

		if err := svc.ConfirmPayment(context.Background(), "txn-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		txn := repo.transactions["txn-1"]
		if txn.Status != domain.TransactionStatusPaid {
			t.Fatalf("expected paid, got %s", txn.Status)
		}
		if txn.TransferStatus != domain.TransferStatusAwaitingCredentials {
			t.Fatalf("expected awaiting_credentials, got %s", txn.TransferStatus)
		}
		if txn.PaidAt == nil || !txn.PaidAt.Equal(now) {
			t.Fatalf("expected paid_at stamp")
		}
		if !notifier.has("seller-1", domain.NotificationPaymentReceived) {
			t.Fatalf("expected seller notification")
		}
	})

	t.Run("replayed confirmation is a state conflict", func(t *testing.T) {
		repo := newFakeTxnRepo(domain.Transaction{
			ID: "txn-1", SellerID: "seller-1",
			Status:         domain.TransactionStatusPaid,
			TransferStatus: domain.TransferStatusAwaitingCredentials,
		})
		svc := NewTransferService(repo, &fakeEscrow{}, &fakeNotifier{}, clock.NewFixed(now), nil)

		if err := svc.ConfirmPayment(context.Background(), "txn-1"); err != domain.ErrInvalidTransferState {
			t.Fatalf("expected ErrInvalidTransferState, got %v", err)
		}
	})

	t.Run("missing transaction", func(t *testing.T) {
		svc := NewTransferService(newFakeTxnRepo(), &fakeEscrow{}, &fakeNotifier{}, clock.NewFixed(now), nil)
		if err := svc.ConfirmPayment(context.Background(), "missing"); err != domain.ErrTransactionNotFound {
			t.Fatalf("expected ErrTransactionNotFound, got %v", err)
		}
	})
}

func TestTransferService_SubmitCredentials(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)

	awaiting := func() domain.Transaction {
		return domain.Transaction{
			ID: "txn-1", BuyerID: "buyer-1", SellerID: "seller-1",
			Status:         domain.TransactionStatusPaid,
			TransferStatus: domain.TransferStatusAwaitingCredentials,
		}
	}
	validInput := func() SubmitCredentialsInput {
		return SubmitCredentialsInput{
			TransactionID: "txn-1", ActorID: "seller-1",
			AccessType: "account", URL: "https://example.com/login",
			Username: "resold-account", Secret: "hunter2", Notes: "change the password",
		}
	}

	t.Run("stores payload and advances the transfer", func(t *testing.T) {
		repo := newFakeTxnRepo(awaiting())
		notifier := &fakeNotifier{}
		svc := NewTransferService(repo, &fakeEscrow{}, notifier, clock.NewFixed(now), nil)

		if err := svc.SubmitCredentials(context.Background(), validInput()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		cred, ok := repo.credentials["txn-1"]
		if !ok {
			t.Fatalf("expected credentials persisted")
		}
		if cred.Username != "resold-account" || cred.Secret != "hunter2" {
			t.Fatalf("unexpected payload: %+v", cred)
		}
		if repo.transactions["txn-1"].TransferStatus != domain.TransferStatusCredentialsSubmitted {
			t.Fatalf("expected credentials_submitted")
		}
		if !notifier.has("buyer-1", domain.NotificationCredentialsSubmitted) {
			t.Fatalf("expected buyer notification")
		}
	})

	t.Run("missing fields are rejected per field", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(*SubmitCredentialsInput)
			want   error
		}{
			{"access type", func(in *SubmitCredentialsInput) { in.AccessType = "" }, domain.ErrCredentialTypeRequired},
			{"url", func(in *SubmitCredentialsInput) { in.URL = "" }, domain.ErrCredentialURLRequired},
			{"username", func(in *SubmitCredentialsInput) { in.Username = "" }, domain.ErrCredentialUsernameRequired},
			{"secret", func(in *SubmitCredentialsInput) { in.Secret = "" }, domain.ErrCredentialSecretRequired},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				repo := newFakeTxnRepo(awaiting())
				svc := NewTransferService(repo, &fakeEscrow{}, &fakeNotifier{}, clock.NewFixed(now), nil)
				in := validInput()
				tc.mutate(&in)
				if err := svc.SubmitCredentials(context.Background(), in); err != tc.want {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
			})
		}
	})

	t.Run("wrong actor is unauthorized", func(t *testing.T) {
		repo := newFakeTxnRepo(awaiting())
		svc := NewTransferService(repo, &fakeEscrow{}, &fakeNotifier{}, clock.NewFixed(now), nil)
		in := validInput()
		in.ActorID = "buyer-1"
		if err := svc.SubmitCredentials(context.Background(), in); err != domain.ErrUnauthorized {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("before payment is a state conflict", func(t *testing.T) {
		txn := awaiting()
		txn.Status = domain.TransactionStatusPendingPayment
		txn.TransferStatus = domain.TransferStatusNone
		repo := newFakeTxnRepo(txn)
		svc := NewTransferService(repo, &fakeEscrow{}, &fakeNotifier{}, clock.NewFixed(now), nil)
		if err := svc.SubmitCredentials(context.Background(), validInput()); err != domain.ErrInvalidTransferState {
			t.Fatalf("expected ErrInvalidTransferState, got %v", err)
		}
	})

	t.Run("second submission keeps the first payload", func(t *testing.T) {
		repo := newFakeTxnRepo(awaiting())
		svc := NewTransferService(repo, &fakeEscrow{}, &fakeNotifier{}, clock.NewFixed(now), nil)

		if err := svc.SubmitCredentials(context.Background(), validInput()); err != nil {
			t.Fatalf("first submit: %v", err)
		}
		in := validInput()
		in.Secret = "changed"
		if err := svc.SubmitCredentials(context.Background(), in); err != domain.ErrCredentialsAlreadySubmitted {
			t.Fatalf("expected ErrCredentialsAlreadySubmitted, got %v", err)
		}
		if repo.credentials["txn-1"].Secret != "hunter2" {
			t.Fatalf("first payload must be unchanged")
		}
	})
}

func TestTransferService_CompleteEscrow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 13, 18, 0, 0, 0, time.UTC)

	submitted := func() domain.Transaction {
		return domain.Transaction{
			ID: "txn-1", BuyerID: "buyer-1", SellerID: "seller-1",
			Status:         domain.TransactionStatusPaid,
			TransferStatus: domain.TransferStatusCredentialsSubmitted,
			EscrowRef:      "esc-abc",
		}
	}

	t.Run("releases funds and completes the transfer", func(t *testing.T) {
		repo := newFakeTxnRepo(submitted())
		provider := &fakeEscrow{}
		notifier := &fakeNotifier{admins: []string{"admin-1"}}
		svc := NewTransferService(repo, provider, notifier, clock.NewFixed(now), nil)

		err := svc.CompleteEscrow(context.Background(), CompleteEscrowInput{
			TransactionID: "txn-1", ActorID: "buyer-1", OTP: "123456",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if provider.calls != 1 {
			t.Fatalf("expected one provider call, got %d", provider.calls)
		}
		if provider.lastRef != "esc-abc" || provider.lastOTP != "123456" {
			t.Fatalf("unexpected provider args: ref=%s otp=%s", provider.lastRef, provider.lastOTP)
		}
		txn := repo.transactions["txn-1"]
		if txn.TransferStatus != domain.TransferStatusCompleted {
			t.Fatalf("expected completed, got %s", txn.TransferStatus)
		}
		if txn.CompletedAt == nil || !txn.CompletedAt.Equal(now) {
			t.Fatalf("expected completed_at stamp")
		}
		if !notifier.has("seller-1", domain.NotificationEscrowReleased) {
			t.Fatalf("expected seller notification")
		}
		if !notifier.has("admin-1", domain.NotificationEscrowReleased) {
			t.Fatalf("expected admin notification")
		}
	})

	t.Run("provider rejection leaves state untouched", func(t *testing.T) {
		repo := newFakeTxnRepo(submitted())
		provider := &fakeEscrow{err: &escrow.RejectionError{Reason: "invalid code"}}
		notifier := &fakeNotifier{admins: []string{"admin-1"}}
		svc := NewTransferService(repo, provider, notifier, clock.NewFixed(now), nil)

		err := svc.CompleteEscrow(context.Background(), CompleteEscrowInput{
			TransactionID: "txn-1", ActorID: "buyer-1", OTP: "000000",
		})
		var rejection *escrow.RejectionError
		if !errors.As(err, &rejection) {
			t.Fatalf("expected RejectionError, got %v", err)
		}
		if repo.transactions["txn-1"].TransferStatus != domain.TransferStatusCredentialsSubmitted {
			t.Fatalf("state must not advance on rejection")
		}
		if len(notifier.notifications) != 0 {
			t.Fatalf("no completion notifications on rejection, got %d", len(notifier.notifications))
		}
	})

	t.Run("provider unreachable is retryable", func(t *testing.T) {
		repo := newFakeTxnRepo(submitted())
		provider := &fakeEscrow{err: fmt.Errorf("%w: connection refused", escrow.ErrUnavailable)}
		svc := NewTransferService(repo, provider, &fakeNotifier{}, clock.NewFixed(now), nil)

		err := svc.CompleteEscrow(context.Background(), CompleteEscrowInput{
			TransactionID: "txn-1", ActorID: "buyer-1", OTP: "123456",
		})
		if !errors.Is(err, escrow.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
		if repo.transactions["txn-1"].TransferStatus != domain.TransferStatusCredentialsSubmitted {
			t.Fatalf("state must not advance when provider unreachable")
		}
	})

	t.Run("completed transfer never re-invokes the provider", func(t *testing.T) {
		txn := submitted()
		txn.TransferStatus = domain.TransferStatusCompleted
		repo := newFakeTxnRepo(txn)
		provider := &fakeEscrow{}
		svc := NewTransferService(repo, provider, &fakeNotifier{}, clock.NewFixed(now), nil)

		err := svc.CompleteEscrow(context.Background(), CompleteEscrowInput{
			TransactionID: "txn-1", ActorID: "buyer-1", OTP: "123456",
		})
		if err != domain.ErrInvalidTransferState {
			t.Fatalf("expected ErrInvalidTransferState, got %v", err)
		}
		if provider.calls != 0 {
			t.Fatalf("provider must not be called, got %d calls", provider.calls)
		}
	})

	t.Run("only the buyer may complete", func(t *testing.T) {
		repo := newFakeTxnRepo(submitted())
		provider := &fakeEscrow{}
		svc := NewTransferService(repo, provider, &fakeNotifier{}, clock.NewFixed(now), nil)

		err := svc.CompleteEscrow(context.Background(), CompleteEscrowInput{
			TransactionID: "txn-1", ActorID: "seller-1", OTP: "123456",
		})
		if err != domain.ErrUnauthorized {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if provider.calls != 0 {
			t.Fatalf("provider must not be called")
		}
	})

	t.Run("missing otp", func(t *testing.T) {
		svc := NewTransferService(newFakeTxnRepo(submitted()), &fakeEscrow{}, &fakeNotifier{}, clock.NewFixed(now), nil)
		err := svc.CompleteEscrow(context.Background(), CompleteEscrowInput{
			TransactionID: "txn-1", ActorID: "buyer-1",
		})
		if err != domain.ErrOTPRequired {
			t.Fatalf("expected ErrOTPRequired, got %v", err)
		}
	})
}

func TestTransferService_Get(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 13, 18, 0, 0, 0, time.UTC)
	repo := newFakeTxnRepo(domain.Transaction{ID: "txn-1", BuyerID: "buyer-1", SellerID: "seller-1"})
	svc := NewTransferService(repo, &fakeEscrow{}, &fakeNotifier{}, clock.NewFixed(now), nil)

	if _, err := svc.Get(context.Background(), "txn-1", "buyer-1"); err != nil {
		t.Fatalf("buyer read: %v", err)
	}
	if _, err := svc.Get(context.Background(), "txn-1", "seller-1"); err != nil {
		t.Fatalf("seller read: %v", err)
	}
	if _, err := svc.Get(context.Background(), "txn-1", "stranger"); err != domain.ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "missing", "buyer-1"); err != domain.ErrTransactionNotFound {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

// fakeTxnRepo mirrors the conditional transition semantics of the Postgres
// repository.
type fakeTxnRepo struct {
	transactions map[string]domain.Transaction
	credentials  map[string]domain.Credentials
}

func newFakeTxnRepo(txns ...domain.Transaction) *fakeTxnRepo {
	repo := &fakeTxnRepo{
		transactions: make(map[string]domain.Transaction),
		credentials:  make(map[string]domain.Credentials),
	}
	for _, txn := range txns {
		repo.transactions[txn.ID] = txn
	}
	return repo
}

func (f *fakeTxnRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeTxnRepo) GetTransaction(_ context.Context, transactionID string) (domain.Transaction, error) {
	txn, ok := f.transactions[transactionID]
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	return txn, nil
}

func (f *fakeTxnRepo) GetTransactionForUpdate(ctx context.Context, transactionID string) (domain.Transaction, error) {
	return f.GetTransaction(ctx, transactionID)
}

func (f *fakeTxnRepo) MarkPaid(_ context.Context, transactionID string, paidAt time.Time) error {
	txn, ok := f.transactions[transactionID]
	if !ok || txn.Status != domain.TransactionStatusPendingPayment {
		return domain.ErrInvalidTransferState
	}
	txn.Status = domain.TransactionStatusPaid
	txn.TransferStatus = domain.TransferStatusAwaitingCredentials
	txn.PaidAt = &paidAt
	f.transactions[transactionID] = txn
	return nil
}

func (f *fakeTxnRepo) CreateCredentials(_ context.Context, cred domain.Credentials) error {
	if _, exists := f.credentials[cred.TransactionID]; exists {
		return domain.ErrCredentialsAlreadySubmitted
	}
	f.credentials[cred.TransactionID] = cred
	return nil
}

func (f *fakeTxnRepo) SetTransferStatus(_ context.Context, transactionID string, from, to domain.TransferStatus) error {
	txn, ok := f.transactions[transactionID]
	if !ok || txn.TransferStatus != from {
		return domain.ErrInvalidTransferState
	}
	txn.TransferStatus = to
	f.transactions[transactionID] = txn
	return nil
}

func (f *fakeTxnRepo) CompleteTransfer(_ context.Context, transactionID string, completedAt time.Time) error {
	txn, ok := f.transactions[transactionID]
	if !ok || txn.TransferStatus != domain.TransferStatusCredentialsSubmitted {
		return domain.ErrInvalidTransferState
	}
	txn.TransferStatus = domain.TransferStatusCompleted
	txn.CompletedAt = &completedAt
	f.transactions[transactionID] = txn
	return nil
}

type fakeEscrow struct {
	err     error
	calls   int
	lastRef string
	lastOTP string
}

func (f *fakeEscrow) Release(_ context.Context, escrowRef, otp string) error {
	f.calls++
	f.lastRef = escrowRef
	f.lastOTP = otp
	return f.err
}
