package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saudashfaq/market-market-sub002/services/api/internal/domain"
)

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n domain.Notification) error {
	const stmt = `
INSERT INTO notifications (id, recipient_id, category, title, body, related_id, read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, stmt,
		n.ID,
		n.RecipientID,
		n.Category,
		n.Title,
		n.Body,
		n.RelatedID,
		n.Read,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) AdminIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM users WHERE role = 'admin'`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return ids, nil
}

func (r *NotificationRepository) UserEmail(ctx context.Context, userID string) (string, error) {
	const query = `SELECT email FROM users WHERE id = $1`

	var email string
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&email); err != nil {
		if isInvalidUUID(err) {
			return "", domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("user %s not found", userID)
		}
		return "", fmt.Errorf("user email: %w", err)
	}
	return email, nil
}
