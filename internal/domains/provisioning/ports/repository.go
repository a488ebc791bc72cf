package ports

import (
	"context"
	"errors"
	"time"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
)

var ErrNotFound = errors.New("flow not found")

// Repository stores flow aggregates keyed by flow id. Flows are short-lived;
// DeleteStale backs the purger that reaps abandoned ones.
type Repository interface {
	Save(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetByFlowID(ctx context.Context, flowID string) (*domain.Order, error)
	Delete(ctx context.Context, flowID string) error
	List(ctx context.Context) ([]*domain.Order, error)
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}
