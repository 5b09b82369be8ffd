package ports

import (
	"context"

	"github.com/duplexpay/duplexd/internal/core/domain"
)

// CustodyService holds per-channel balances and moves value on request.
// The ledger uses the channel id as the wallet id and never touches raw
// token transfer mechanics itself.
type CustodyService interface {
	// OpenWallet creates the wallet for a channel, owned by the given
	// operator (the ledger instance).
	OpenWallet(ctx context.Context, walletId string, operator domain.Address) error
	Deposit(ctx context.Context, walletId string, token domain.Token, from domain.Address, amount uint64) error
	Withdraw(ctx context.Context, walletId string, token domain.Token, recipient domain.Address, amount uint64) error
	TransferToWallet(ctx context.Context, fromWalletId, toWalletId string, token domain.Token, recipient domain.Address, amount uint64) error
	GetBalance(ctx context.Context, walletId string, token domain.Token) (uint64, error)
	// TransferOperatorship re-points a wallet to a new operator during
	// channel migration.
	TransferOperatorship(ctx context.Context, walletId string, newOperator domain.Address) error
}

// PoolService lets a party pre-fund deposits without moving value at
// deposit time, with ERC20-style allowance semantics.
type PoolService interface {
	Deposit(ctx context.Context, onBehalfOf domain.Address, amount uint64) error
	Approve(ctx context.Context, owner, spender domain.Address, amount uint64) error
	TransferFrom(ctx context.Context, spender, from domain.Address, walletId string, token domain.Token, amount uint64) error
	BalanceOf(ctx context.Context, owner domain.Address) (uint64, error)
	AllowanceOf(ctx context.Context, owner, spender domain.Address) (uint64, error)
}
