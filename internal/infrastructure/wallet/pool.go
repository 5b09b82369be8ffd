package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/duplexpay/duplexd/internal/core/domain"
	"github.com/duplexpay/duplexd/internal/core/ports"
)

var ErrInsufficientAllowance = errors.New("insufficient pool allowance")

// Pool lets parties pre-fund deposits. Funds sit in a per-owner balance
// until a ledger the owner approved draws on them; the allowance model
// follows ERC20 approve/transferFrom semantics.
type Pool struct {
	mu      sync.Mutex
	custody *Service

	balances   map[domain.Address]uint64
	allowances map[domain.Address]map[domain.Address]uint64
}

func NewPool(custody *Service) *Pool {
	return &Pool{
		custody:    custody,
		balances:   make(map[domain.Address]uint64),
		allowances: make(map[domain.Address]map[domain.Address]uint64),
	}
}

var _ ports.PoolService = (*Pool)(nil)

func (p *Pool) Deposit(ctx context.Context, onBehalfOf domain.Address, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	total, err := domain.CheckedAdd(p.balances[onBehalfOf], amount)
	if err != nil {
		return err
	}
	p.balances[onBehalfOf] = total
	return nil
}

func (p *Pool) Approve(ctx context.Context, owner, spender domain.Address, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allowances[owner] == nil {
		p.allowances[owner] = make(map[domain.Address]uint64)
	}
	p.allowances[owner][spender] = amount
	return nil
}

// TransferFrom draws approved pooled funds of `from` into a custody
// wallet, spending the allowance granted to `spender`.
func (p *Pool) TransferFrom(ctx context.Context, spender, from domain.Address, walletId string, token domain.Token, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allowances[from][spender] < amount {
		return ErrInsufficientAllowance
	}
	if p.balances[from] < amount {
		return fmt.Errorf("%w: pool balance of %s", ErrInsufficientFunds, from)
	}
	if err := p.custody.Deposit(ctx, walletId, token, from, amount); err != nil {
		return err
	}
	p.allowances[from][spender] -= amount
	p.balances[from] -= amount
	return nil
}

func (p *Pool) BalanceOf(ctx context.Context, owner domain.Address) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[owner], nil
}

func (p *Pool) AllowanceOf(ctx context.Context, owner, spender domain.Address) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allowances[owner][spender], nil
}
