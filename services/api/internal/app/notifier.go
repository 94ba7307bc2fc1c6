package app

import (
	"context"

	"github.com/saudashfaq/market-market-sub002/services/api/internal/domain"
)

// Notifier is the best-effort post-commit side channel. Implementations must
// never be load-bearing: services call it after the financial commit and only
// log failures.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
	AdminIDs(ctx context.Context) ([]string, error)
}
