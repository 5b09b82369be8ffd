package ports

import (
	"context"

	"github.com/duplexpay/duplexd/internal/core/domain"
)

// ConditionClient queries deployed condition contracts. From the
// resolver's perspective every query is pure and synchronous.
type ConditionClient interface {
	Finalized(ctx context.Context, addr domain.Address, args []byte) (bool, error)
	BooleanOutcome(ctx context.Context, addr domain.Address, args []byte) (bool, error)
	NumericOutcome(ctx context.Context, addr domain.Address, args []byte) (uint64, error)
}

// VirtResolver maps a virtual contract identifier, agreed off-chain, to
// the concrete address it was deployed at.
type VirtResolver interface {
	Resolve(ctx context.Context, virtualAddr string) (domain.Address, error)
}
