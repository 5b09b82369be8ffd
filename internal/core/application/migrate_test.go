package application_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duplexpay/duplexd/internal/core/application"
	"github.com/duplexpay/duplexd/internal/core/domain"
)

func TestMigrateChannel(t *testing.T) {
	newLedgerAddr := domain.Address("ledger-next")

	migrationReq := func(env *testEnv, channelId string, to domain.Address, deadline int64) domain.ChannelMigrationRequest {
		info := domain.ChannelMigrationInfo{
			ChannelId:         channelId,
			FromLedger:        ledgerAddr,
			ToLedger:          to,
			MigrationDeadline: deadline,
		}
		return domain.ChannelMigrationRequest{
			Info: info,
			Sigs: env.coSign(domain.EncodeChannelMigrationInfo(info)),
		}
	}

	t.Run("happy path", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)
		next := env.newLedger(newLedgerAddr, nil)

		req := migrationReq(env, channelId, newLedgerAddr, env.clock.now+100)
		require.NoError(t, next.MigrateChannelFrom(ctx, env.ledger, req))

		// The old record is terminally migrated.
		status, err := env.ledger.GetChannelStatus(ctx, channelId)
		require.NoError(t, err)
		require.Equal(t, domain.ChannelMigrated, status)

		// The new instance carries the channel under the same id with
		// its balances intact, fully operable.
		channel, err := next.GetChannel(ctx, channelId)
		require.NoError(t, err)
		require.Equal(t, domain.ChannelOperable, channel.Status)
		require.Equal(t, [2]domain.Address{env.alice.addr, env.bob.addr}, channel.PeerAddrs())
		require.Equal(t, uint64(300), channel.TotalDeposit())

		// The new instance can keep operating the channel.
		err = next.Deposit(ctx, application.DepositRequest{
			ChannelId: channelId,
			Receiver:  env.alice.addr,
			From:      env.alice.addr,
			Amount:    10,
		})
		require.NoError(t, err)

		// The old one cannot.
		err = env.ledger.IntendWithdraw(ctx, channelId, env.alice.addr, 1, "")
		require.ErrorIs(t, err, domain.ErrChannelNotOperable)

		// Replay is rejected on the new instance.
		err = next.MigrateChannelFrom(ctx, env.ledger, req)
		require.ErrorIs(t, err, domain.ErrChannelNotOperable)
	})

	t.Run("ledger addresses must match the signed info", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)
		next := env.newLedger(newLedgerAddr, nil)

		req := migrationReq(env, channelId, "some-other-ledger", env.clock.now+100)
		err := next.MigrateChannelFrom(ctx, env.ledger, req)
		require.ErrorIs(t, err, domain.ErrLedgerMismatch)
	})

	t.Run("expired deadline", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)
		next := env.newLedger(newLedgerAddr, nil)

		req := migrationReq(env, channelId, newLedgerAddr, env.clock.now-1)
		err := next.MigrateChannelFrom(ctx, env.ledger, req)
		require.ErrorIs(t, err, domain.ErrMigrationDeadlinePassed)
	})

	t.Run("bad signatures", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)
		next := env.newLedger(newLedgerAddr, nil)

		req := migrationReq(env, channelId, newLedgerAddr, env.clock.now+100)
		req.Sigs[1] = req.Sigs[0]
		err := next.MigrateChannelFrom(ctx, env.ledger, req)
		require.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("settling channel cannot migrate", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)
		next := env.newLedger(newLedgerAddr, nil)

		require.NoError(t, env.ledger.IntendSettle(ctx, []domain.SignedSimplexState{
			env.nullState(channelId, env.alice),
		}))

		req := migrationReq(env, channelId, newLedgerAddr, env.clock.now+100)
		err := next.MigrateChannelFrom(ctx, env.ledger, req)
		require.ErrorIs(t, err, domain.ErrChannelNotOperable)
	})
}
