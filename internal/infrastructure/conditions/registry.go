package conditions

import (
	"context"
	"fmt"
	"sync"

	"github.com/duplexpay/duplexd/internal/core/domain"
	"github.com/duplexpay/duplexd/internal/core/ports"
)

// Outcome is the state one registered condition reports.
type Outcome struct {
	Finalized    bool
	BoolOutcome  bool
	NumericValue uint64
}

// Registry is an in-process condition backend: conditions are registered
// under an address and report a fixed outcome until updated. It doubles
// as the virtual-contract resolver.
type Registry struct {
	mu       sync.RWMutex
	outcomes map[domain.Address]Outcome
	virtual  map[string]domain.Address
}

func NewRegistry() *Registry {
	return &Registry{
		outcomes: make(map[domain.Address]Outcome),
		virtual:  make(map[string]domain.Address),
	}
}

var (
	_ ports.ConditionClient = (*Registry)(nil)
	_ ports.VirtResolver    = (*Registry)(nil)
)

// RegisterCondition installs or updates the outcome served at addr.
func (r *Registry) RegisterCondition(addr domain.Address, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[addr] = outcome
}

// RegisterVirtual binds a virtual contract identifier to the concrete
// address it was deployed at.
func (r *Registry) RegisterVirtual(virtualAddr string, addr domain.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.virtual[virtualAddr] = addr
}

func (r *Registry) Finalized(ctx context.Context, addr domain.Address, args []byte) (bool, error) {
	outcome, err := r.get(addr)
	if err != nil {
		return false, err
	}
	return outcome.Finalized, nil
}

func (r *Registry) BooleanOutcome(ctx context.Context, addr domain.Address, args []byte) (bool, error) {
	outcome, err := r.get(addr)
	if err != nil {
		return false, err
	}
	return outcome.BoolOutcome, nil
}

func (r *Registry) NumericOutcome(ctx context.Context, addr domain.Address, args []byte) (uint64, error) {
	outcome, err := r.get(addr)
	if err != nil {
		return 0, err
	}
	return outcome.NumericValue, nil
}

func (r *Registry) Resolve(ctx context.Context, virtualAddr string) (domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.virtual[virtualAddr]
	if !ok {
		return "", fmt.Errorf("no contract deployed for virtual address %s", virtualAddr)
	}
	return addr, nil
}

func (r *Registry) get(addr domain.Address) (Outcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	outcome, ok := r.outcomes[addr]
	if !ok {
		return Outcome{}, fmt.Errorf("no condition registered at %s", addr)
	}
	return outcome, nil
}
