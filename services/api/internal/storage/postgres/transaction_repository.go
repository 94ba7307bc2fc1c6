package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saudashfaq/market-market-sub002/services/api/internal/domain"
)

type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const transactionColumns = `
id, listing_id, offer_id, buyer_id, seller_id,
amount_cents, fee_cents, total_cents,
status, transfer_status, escrow_ref,
created_at, paid_at, completed_at`

func (r *TransactionRepository) GetTransaction(ctx context.Context, transactionID string) (domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.getTransaction(ctx, query, transactionID)
}

func (r *TransactionRepository) GetTransactionForUpdate(ctx context.Context, transactionID string) (domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return r.getTransaction(ctx, query, transactionID)
}

func (r *TransactionRepository) getTransaction(ctx context.Context, query, transactionID string) (domain.Transaction, error) {
	var (
		t              domain.Transaction
		status         string
		transferStatus sql.NullString
	)
	err := r.queryRow(ctx, query, transactionID).Scan(
		&t.ID, &t.ListingID, &t.OfferID, &t.BuyerID, &t.SellerID,
		&t.AmountCents, &t.FeeCents, &t.TotalCents,
		&status, &transferStatus, &t.EscrowRef,
		&t.CreatedAt, &t.PaidAt, &t.CompletedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Transaction{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Transaction{}, domain.ErrTransactionNotFound
		}
		return domain.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	t.Status = domain.TransactionStatus(status)
	if transferStatus.Valid {
		t.TransferStatus = domain.TransferStatus(transferStatus.String)
	}
	return t, nil
}

// MarkPaid applies the payment confirmation: pending_payment -> paid and the
// transfer handoff opens. Zero rows means the transition already happened.
func (r *TransactionRepository) MarkPaid(ctx context.Context, transactionID string, paidAt time.Time) error {
	const stmt = `
UPDATE transactions
SET status = 'paid', transfer_status = 'awaiting_credentials', paid_at = $2
WHERE id = $1 AND status = 'pending_payment'`

	tag, err := r.exec(ctx, stmt, transactionID, paidAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("mark paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransferState
	}
	return nil
}

func (r *TransactionRepository) CreateCredentials(ctx context.Context, cred domain.Credentials) error {
	const stmt = `
INSERT INTO credentials (id, transaction_id, access_type, url, username, secret, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		cred.ID,
		cred.TransactionID,
		cred.AccessType,
		cred.URL,
		cred.Username,
		cred.Secret,
		cred.Notes,
		cred.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCredentialsAlreadySubmitted
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create credentials: %w", err)
	}
	return nil
}

func (r *TransactionRepository) SetTransferStatus(ctx context.Context, transactionID string, from, to domain.TransferStatus) error {
	const stmt = `UPDATE transactions SET transfer_status = $3 WHERE id = $1 AND transfer_status = $2`

	tag, err := r.exec(ctx, stmt, transactionID, from, to)
	if err != nil {
		return fmt.Errorf("set transfer status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransferState
	}
	return nil
}

func (r *TransactionRepository) CompleteTransfer(ctx context.Context, transactionID string, completedAt time.Time) error {
	const stmt = `
UPDATE transactions
SET transfer_status = 'completed', completed_at = $2
WHERE id = $1 AND transfer_status = 'credentials_submitted'`

	tag, err := r.exec(ctx, stmt, transactionID, completedAt)
	if err != nil {
		return fmt.Errorf("complete transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransferState
	}
	return nil
}

func (r *TransactionRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *TransactionRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
