package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saudashfaq/market-market-sub002/services/api/internal/domain"
)

type OfferRepository struct {
	pool *pgxpool.Pool
}

func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

func (r *OfferRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *OfferRepository) GetOfferForUpdate(ctx context.Context, offerID string) (domain.Offer, error) {
	const query = `
SELECT id, listing_id, buyer_id, seller_id, amount_cents, status, created_at, resolved_at
FROM offers
WHERE id = $1
FOR UPDATE`

	var o domain.Offer
	var status string
	err := r.queryRow(ctx, query, offerID).
		Scan(&o.ID, &o.ListingID, &o.BuyerID, &o.SellerID, &o.AmountCents, &status, &o.CreatedAt, &o.ResolvedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Offer{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Offer{}, domain.ErrOfferNotFound
		}
		return domain.Offer{}, fmt.Errorf("get offer: %w", err)
	}
	o.Status = domain.OfferStatus(status)
	return o, nil
}

// UpdateOfferStatus flips the offer only when it still carries the expected
// prior status; zero rows affected means a concurrent resolver already won.
func (r *OfferRepository) UpdateOfferStatus(ctx context.Context, offerID string, from, to domain.OfferStatus, resolvedAt time.Time) error {
	const stmt = `UPDATE offers SET status = $3, resolved_at = $4 WHERE id = $1 AND status = $2`

	tag, err := r.exec(ctx, stmt, offerID, from, to, resolvedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update offer status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOfferAlreadyResolved
	}
	return nil
}

func (r *OfferRepository) RejectSiblingOffers(ctx context.Context, listingID, exceptOfferID string, resolvedAt time.Time) ([]domain.Offer, error) {
	const stmt = `
UPDATE offers
SET status = 'rejected', resolved_at = $3
WHERE listing_id = $1 AND id <> $2 AND status = 'pending'
RETURNING id, listing_id, buyer_id, seller_id, amount_cents, created_at`

	rows, err := r.query(ctx, stmt, listingID, exceptOfferID, resolvedAt)
	if err != nil {
		return nil, fmt.Errorf("reject sibling offers: %w", err)
	}
	defer rows.Close()

	var rejected []domain.Offer
	for rows.Next() {
		o := domain.Offer{Status: domain.OfferStatusRejected}
		if err := rows.Scan(&o.ID, &o.ListingID, &o.BuyerID, &o.SellerID, &o.AmountCents, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rejected offer: %w", err)
		}
		rejected = append(rejected, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reject sibling offers: %w", err)
	}
	return rejected, nil
}

func (r *OfferRepository) MarkListingSold(ctx context.Context, listingID string) error {
	const stmt = `UPDATE listings SET status = 'sold' WHERE id = $1 AND status = 'active'`

	tag, err := r.exec(ctx, stmt, listingID)
	if err != nil {
		return fmt.Errorf("mark listing sold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

// FeePercent reads the platform fee setting; an absent row means the default.
func (r *OfferRepository) FeePercent(ctx context.Context) (float64, error) {
	const query = `SELECT value FROM platform_settings WHERE key = 'fee_percent'`

	var raw string
	err := r.queryRow(ctx, query).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.DefaultFeePercent, nil
		}
		return 0, fmt.Errorf("read fee percent: %w", err)
	}
	pct, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse fee percent %q: %w", raw, err)
	}
	return pct, nil
}

func (r *OfferRepository) CreateTransaction(ctx context.Context, txn domain.Transaction) error {
	const stmt = `
INSERT INTO transactions
	(id, listing_id, offer_id, buyer_id, seller_id, amount_cents, fee_cents, total_cents, status, escrow_ref, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.exec(ctx, stmt,
		txn.ID,
		txn.ListingID,
		txn.OfferID,
		txn.BuyerID,
		txn.SellerID,
		txn.AmountCents,
		txn.FeeCents,
		txn.TotalCents,
		txn.Status,
		txn.EscrowRef,
		txn.CreatedAt,
	)
	if err != nil {
		// Unique offer_id: a lost accept race surfaces as already-resolved.
		if isUniqueViolation(err) {
			return domain.ErrOfferAlreadyResolved
		}
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *OfferRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *OfferRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *OfferRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
