package wallet_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duplexpay/duplexd/internal/core/domain"
	"github.com/duplexpay/duplexd/internal/infrastructure/wallet"
)

var (
	ctx   = context.Background()
	token = domain.Token{}
)

func newCustody(t *testing.T) *wallet.Service {
	svc, err := wallet.NewService("", nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestCustodyService(t *testing.T) {
	svc := newCustody(t)

	require.NoError(t, svc.OpenWallet(ctx, "wallet-1", "ledger-main"))
	err := svc.OpenWallet(ctx, "wallet-1", "ledger-main")
	require.ErrorIs(t, err, wallet.ErrDuplicateWalletId)

	bal, err := svc.GetBalance(ctx, "wallet-1", token)
	require.NoError(t, err)
	require.Zero(t, bal)

	require.NoError(t, svc.Deposit(ctx, "wallet-1", token, "aa", 100))
	bal, err = svc.GetBalance(ctx, "wallet-1", token)
	require.NoError(t, err)
	require.Equal(t, uint64(100), bal)

	// Distinct tokens have distinct balances.
	other := domain.Token{Type: domain.TokenContract, Address: "cc33"}
	require.NoError(t, svc.Deposit(ctx, "wallet-1", other, "aa", 7))
	bal, err = svc.GetBalance(ctx, "wallet-1", token)
	require.NoError(t, err)
	require.Equal(t, uint64(100), bal)

	require.NoError(t, svc.Withdraw(ctx, "wallet-1", token, "aa", 60))
	err = svc.Withdraw(ctx, "wallet-1", token, "aa", 60)
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	_, err = svc.GetBalance(ctx, "no-such-wallet", token)
	require.ErrorIs(t, err, wallet.ErrWalletNotFound)
}

func TestCustodyTransferToWallet(t *testing.T) {
	svc := newCustody(t)

	require.NoError(t, svc.OpenWallet(ctx, "wallet-1", "ledger-main"))
	require.NoError(t, svc.OpenWallet(ctx, "wallet-2", "ledger-main"))
	require.NoError(t, svc.Deposit(ctx, "wallet-1", token, "aa", 100))

	require.NoError(t, svc.TransferToWallet(ctx, "wallet-1", "wallet-2", token, "aa", 40))

	bal, err := svc.GetBalance(ctx, "wallet-1", token)
	require.NoError(t, err)
	require.Equal(t, uint64(60), bal)
	bal, err = svc.GetBalance(ctx, "wallet-2", token)
	require.NoError(t, err)
	require.Equal(t, uint64(40), bal)

	err = svc.TransferToWallet(ctx, "wallet-1", "wallet-2", token, "aa", 100)
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)
}

func TestPool(t *testing.T) {
	svc := newCustody(t)
	pool := wallet.NewPool(svc)

	require.NoError(t, svc.OpenWallet(ctx, "wallet-1", "ledger-main"))
	require.NoError(t, pool.Deposit(ctx, "owner", 100))
	require.NoError(t, pool.Approve(ctx, "owner", "ledger-main", 80))

	// Spending without enough allowance fails.
	err := pool.TransferFrom(ctx, "ledger-main", "owner", "wallet-1", token, 90)
	require.ErrorIs(t, err, wallet.ErrInsufficientAllowance)

	require.NoError(t, pool.TransferFrom(ctx, "ledger-main", "owner", "wallet-1", token, 50))

	bal, err := pool.BalanceOf(ctx, "owner")
	require.NoError(t, err)
	require.Equal(t, uint64(50), bal)
	allowance, err := pool.AllowanceOf(ctx, "owner", "ledger-main")
	require.NoError(t, err)
	require.Equal(t, uint64(30), allowance)

	bal, err = svc.GetBalance(ctx, "wallet-1", token)
	require.NoError(t, err)
	require.Equal(t, uint64(50), bal)

	// The pool balance caps spending even with allowance left.
	require.NoError(t, pool.Approve(ctx, "owner", "ledger-main", 80))
	err = pool.TransferFrom(ctx, "ledger-main", "owner", "wallet-1", token, 60)
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)
}
