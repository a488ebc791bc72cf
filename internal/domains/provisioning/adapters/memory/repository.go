package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mmesim/provisioning-api/internal/domains/provisioning/domain"
	"github.com/mmesim/provisioning-api/internal/domains/provisioning/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is the in-memory flow store used by default; flows are
// ephemeral, so memory is the natural home when no DSN is configured.
type Repository struct {
	mu    sync.RWMutex
	flows map[string]*domain.Order
}

func NewRepository() *Repository {
	return &Repository{flows: map[string]*domain.Order{}}
}

func (r *Repository) Save(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if order == nil {
		return nil, errors.New("order is nil")
	}
	if order.FlowID == "" {
		return nil, errors.New("order has no flow id")
	}
	clone := order.Clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[clone.FlowID] = clone
	return clone.Clone(), nil
}

func (r *Repository) GetByFlowID(_ context.Context, flowID string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.flows[flowID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *Repository) Delete(_ context.Context, flowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flows[flowID]; !ok {
		return ports.ErrNotFound
	}
	delete(r.flows, flowID)
	return nil
}

func (r *Repository) List(_ context.Context) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*domain.Order, 0, len(r.flows))
	for _, order := range r.flows {
		list = append(list, order.Clone())
	}
	return list, nil
}

// DeleteStale drops flows not touched since the cutoff.
func (r *Repository) DeleteStale(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for flowID, order := range r.flows {
		if order.UpdatedAt.Before(before) {
			delete(r.flows, flowID)
			removed++
		}
	}
	return removed, nil
}
