package application

import (
	"sync"

	"github.com/duplexpay/duplexd/internal/core/domain"
)

// BalanceLimits caps the total deposit a channel may hold per token.
// The policy is purely additive: it gates deposits and nothing else.
type BalanceLimits struct {
	mu      sync.RWMutex
	enabled bool
	limits  map[string]uint64
}

func NewBalanceLimits(enabled bool, limits map[string]uint64) *BalanceLimits {
	if limits == nil {
		limits = make(map[string]uint64)
	}
	return &BalanceLimits{enabled: enabled, limits: limits}
}

func (b *BalanceLimits) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

func (b *BalanceLimits) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}

func (b *BalanceLimits) Set(token domain.Token, limit uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limits[token.Key()] = limit
}

// Check fails when limits are enabled and the proposed channel-wide
// deposit total exceeds the token's cap. A token with no configured cap
// accepts nothing while limits are on.
func (b *BalanceLimits) Check(token domain.Token, proposedTotal uint64) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.enabled {
		return nil
	}
	if proposedTotal > b.limits[token.Key()] {
		return domain.ErrBalanceExceedsLimit
	}
	return nil
}

// EnableBalanceLimits turns the deposit caps on. Owner only.
func (s *LedgerService) EnableBalanceLimits(caller domain.Address) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}
	s.limits.SetEnabled(true)
	return nil
}

// DisableBalanceLimits turns the deposit caps off. Owner only.
func (s *LedgerService) DisableBalanceLimits(caller domain.Address) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}
	s.limits.SetEnabled(false)
	return nil
}

// SetBalanceLimit sets one token's deposit cap. Owner only.
func (s *LedgerService) SetBalanceLimit(caller domain.Address, token domain.Token, limit uint64) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}
	s.limits.Set(token, limit)
	return nil
}
