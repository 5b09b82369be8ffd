package application

import (
	"context"
	"fmt"

	"github.com/cskr/pubsub"
	log "github.com/sirupsen/logrus"

	"github.com/duplexpay/duplexd/internal/core/domain"
	"github.com/duplexpay/duplexd/internal/core/ports"
)

// PayRegistry is the authoritative store of resolved payment amounts.
// Amounts only ever grow; every entry carries the on-chain deadline
// after which it is final. The registry knows nothing about channels.
type PayRegistry struct {
	repo  domain.PayResultRepository
	clock ports.Clock
	bus   *pubsub.PubSub
}

func NewPayRegistry(repo domain.PayResultRepository, clock ports.Clock, bus *pubsub.PubSub) *PayRegistry {
	return &PayRegistry{repo: repo, clock: clock, bus: bus}
}

// GetInfo returns the stored amount and resolve deadline for a payment,
// both zero if the payment was never resolved.
func (r *PayRegistry) GetInfo(ctx context.Context, payId string) (uint64, int64, error) {
	entry, err := r.repo.Get(ctx, payId)
	if err != nil {
		return 0, 0, err
	}
	if entry == nil {
		return 0, 0, nil
	}
	return entry.Amount, entry.ResolveDeadline, nil
}

// IsFinalized reports whether a payment's result can no longer change:
// either its entry's resolve deadline has passed, or it was never
// resolved and the off-chain agreed last resolve deadline has passed
// (final by default with amount zero).
func (r *PayRegistry) IsFinalized(ctx context.Context, payId string, lastPayResolveDeadline int64) (bool, uint64, error) {
	amount, deadline, err := r.GetInfo(ctx, payId)
	if err != nil {
		return false, 0, err
	}
	now := r.clock.Now()
	if deadline > 0 {
		return now > deadline, amount, nil
	}
	return now > lastPayResolveDeadline, 0, nil
}

// UpdateResult writes a resolved amount, never letting the stored value
// decrease. The stored entry is created on first call and updated in
// place afterwards; it is never deleted.
func (r *PayRegistry) UpdateResult(ctx context.Context, result domain.PayResult) error {
	existing, err := r.repo.Get(ctx, result.PayId)
	if err != nil {
		return err
	}
	if existing != nil && result.Amount < existing.Amount {
		result.Amount = existing.Amount
	}
	if err := r.repo.Set(ctx, result); err != nil {
		return fmt.Errorf("failed to store pay result: %w", err)
	}

	log.WithFields(log.Fields{
		"payId":  result.PayId,
		"amount": result.Amount,
	}).Debug("updated pay result")
	r.bus.Pub(domain.UpdatePayResultEvent{
		PayId:           result.PayId,
		Amount:          result.Amount,
		ResolveDeadline: result.ResolveDeadline,
	}, domain.TopicUpdatePayResult)
	return nil
}
