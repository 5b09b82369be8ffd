package application_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duplexpay/duplexd/internal/core/domain"
)

func TestUnilateralWithdraw(t *testing.T) {
	t.Run("intend then confirm after the dispute window", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)

		require.NoError(t, env.ledger.IntendWithdraw(ctx, channelId, env.alice.addr, 60, ""))

		// Too early.
		err := env.ledger.ConfirmWithdraw(ctx, channelId)
		require.ErrorIs(t, err, domain.ErrDisputeNotTimedOut)

		env.clock.advance(disputeTimeout)
		require.NoError(t, env.ledger.ConfirmWithdraw(ctx, channelId))

		_, withdrawals, err := env.ledger.GetBalanceMap(ctx, channelId)
		require.NoError(t, err)
		require.Equal(t, [2]uint64{60, 0}, withdrawals)
		require.Equal(t, uint64(240), env.channelBalance(channelId))

		// The intent is consumed.
		err = env.ledger.ConfirmWithdraw(ctx, channelId)
		require.ErrorIs(t, err, domain.ErrNoPendingIntent)
	})

	t.Run("only one intent at a time", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)

		require.NoError(t, env.ledger.IntendWithdraw(ctx, channelId, env.alice.addr, 60, ""))
		err := env.ledger.IntendWithdraw(ctx, channelId, env.bob.addr, 10, "")
		require.ErrorIs(t, err, domain.ErrPendingIntentExists)
	})

	t.Run("non-peer cannot intend", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)
		err := env.ledger.IntendWithdraw(ctx, channelId, "stranger", 10, "")
		require.ErrorIs(t, err, domain.ErrNotPeer)
	})

	t.Run("amount above the withdraw limit fails", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)

		// Alice committed 40 outbound; her limit is 100 - 40 = 60.
		state := domain.SimplexState{
			ChannelId:   channelId,
			PeerFrom:    env.alice.addr,
			SeqNum:      1,
			TransferOut: 40,
		}
		require.NoError(t, env.ledger.SnapshotStates(ctx, []domain.SignedSimplexState{env.signedState(state)}))

		require.NoError(t, env.ledger.IntendWithdraw(ctx, channelId, env.alice.addr, 61, ""))
		env.clock.advance(disputeTimeout)
		err := env.ledger.ConfirmWithdraw(ctx, channelId)
		require.ErrorIs(t, err, domain.ErrExceedsWithdrawLimit)
	})

	t.Run("counterparty transfers raise the limit", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)

		// Bob committed 30 to Alice, so she may take 130.
		state := domain.SimplexState{
			ChannelId:   channelId,
			PeerFrom:    env.bob.addr,
			SeqNum:      1,
			TransferOut: 30,
		}
		require.NoError(t, env.ledger.SnapshotStates(ctx, []domain.SignedSimplexState{env.signedState(state)}))

		require.NoError(t, env.ledger.IntendWithdraw(ctx, channelId, env.alice.addr, 130, ""))
		env.clock.advance(disputeTimeout)
		require.NoError(t, env.ledger.ConfirmWithdraw(ctx, channelId))

		_, withdrawals, err := env.ledger.GetBalanceMap(ctx, channelId)
		require.NoError(t, err)
		require.Equal(t, [2]uint64{130, 0}, withdrawals)
	})

	t.Run("veto cancels the intent", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)

		require.NoError(t, env.ledger.IntendWithdraw(ctx, channelId, env.alice.addr, 60, ""))
		require.NoError(t, env.ledger.VetoWithdraw(ctx, channelId, env.bob.addr))

		env.clock.advance(disputeTimeout)
		err := env.ledger.ConfirmWithdraw(ctx, channelId)
		require.ErrorIs(t, err, domain.ErrNoPendingIntent)

		// A fresh intent may follow a veto.
		require.NoError(t, env.ledger.IntendWithdraw(ctx, channelId, env.bob.addr, 10, ""))
	})

	t.Run("veto needs a peer", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)
		require.NoError(t, env.ledger.IntendWithdraw(ctx, channelId, env.alice.addr, 60, ""))
		err := env.ledger.VetoWithdraw(ctx, channelId, "stranger")
		require.ErrorIs(t, err, domain.ErrNotPeer)
	})

	t.Run("failed payout leaves no withdrawal recorded", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)

		require.NoError(t, env.ledger.IntendWithdraw(ctx, channelId, env.alice.addr, 60, ""))
		env.clock.advance(disputeTimeout)

		// Drain the channel wallet behind the ledger's back.
		require.NoError(t, env.custody.Withdraw(ctx, channelId, domain.Token{}, "elsewhere", 300))

		err := env.ledger.ConfirmWithdraw(ctx, channelId)
		require.Error(t, err)

		// The intent survives and nothing was booked.
		_, withdrawals, err := env.ledger.GetBalanceMap(ctx, channelId)
		require.NoError(t, err)
		require.Equal(t, [2]uint64{0, 0}, withdrawals)

		require.NoError(t, env.custody.Deposit(ctx, channelId, domain.Token{}, "refund", 300))
		require.NoError(t, env.ledger.ConfirmWithdraw(ctx, channelId))
		_, withdrawals, err = env.ledger.GetBalanceMap(ctx, channelId)
		require.NoError(t, err)
		require.Equal(t, [2]uint64{60, 0}, withdrawals)
	})
}

func TestWithdrawWindowNotification(t *testing.T) {
	env := newTestEnv(t)
	channelId := env.openChannel(100, 200)

	matured := env.bus.Sub(domain.TopicWithdrawWindowMatured)
	defer env.bus.Unsub(matured, domain.TopicWithdrawWindowMatured)

	require.NoError(t, env.ledger.IntendWithdraw(ctx, channelId, env.alice.addr, 10, ""))

	// The fake clock sits in the past, so the armed callback is due at
	// once and fires on the scheduler's next tick.
	select {
	case ev := <-matured:
		notif, ok := ev.(domain.WithdrawWindowMaturedEvent)
		require.True(t, ok)
		require.Equal(t, channelId, notif.ChannelId)
		require.Equal(t, env.alice.addr, notif.Receiver)
	case <-time.After(5 * time.Second):
		require.Fail(t, "withdraw window notification did not fire")
	}
}

func TestWithdrawRedirect(t *testing.T) {
	env := newTestEnv(t)
	source := env.openChannel(100, 200)

	// Alice shares a second channel with a third party.
	carol, _ := genPeers(t)
	p0, p1 := env.alice, carol
	if p0.addr > p1.addr {
		p0, p1 = p1, p0
	}
	recipientInit := domain.ChannelInitializer{
		OpenDeadline:   env.clock.now + 100,
		DisputeTimeout: disputeTimeout,
		Peers: [2]domain.PeerInit{
			{Addr: p0.addr, Deposit: 10},
			{Addr: p1.addr, Deposit: 10},
		},
	}
	msg := domain.EncodeChannelInitializer(recipientInit)
	recipient, err := env.ledger.OpenChannel(ctx, domain.OpenChannelRequest{
		Initializer: recipientInit,
		Sigs:        [2][]byte{p0.sign(t, msg), p1.sign(t, msg)},
	})
	require.NoError(t, err)

	require.NoError(t, env.ledger.IntendWithdraw(ctx, source, env.alice.addr, 60, recipient))
	env.clock.advance(disputeTimeout)
	require.NoError(t, env.ledger.ConfirmWithdraw(ctx, source))

	// The funds moved wallet to wallet and count as Alice's deposit in
	// the recipient channel.
	require.Equal(t, uint64(240), env.channelBalance(source))
	require.Equal(t, uint64(80), env.channelBalance(recipient))

	recipientChannel, err := env.ledger.GetChannel(ctx, recipient)
	require.NoError(t, err)
	idx := recipientChannel.PeerIndex(env.alice.addr)
	require.GreaterOrEqual(t, idx, 0)
	require.Equal(t, uint64(70), recipientChannel.Peers[idx].Deposit)
}

func TestCooperativeWithdraw(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)

		info := domain.CooperativeWithdrawInfo{
			ChannelId:        channelId,
			SeqNum:           1,
			Receiver:         env.bob.addr,
			Amount:           150,
			WithdrawDeadline: env.clock.now + 10,
		}
		err := env.ledger.CooperativeWithdraw(ctx, domain.CooperativeWithdrawRequest{
			Info: info,
			Sigs: env.coSign(domain.EncodeCooperativeWithdrawInfo(info)),
		})
		require.NoError(t, err)

		_, withdrawals, err := env.ledger.GetBalanceMap(ctx, channelId)
		require.NoError(t, err)
		require.Equal(t, [2]uint64{0, 150}, withdrawals)
		require.Equal(t, uint64(150), env.channelBalance(channelId))

		// Replay is rejected; the seqNum was consumed.
		err = env.ledger.CooperativeWithdraw(ctx, domain.CooperativeWithdrawRequest{
			Info: info,
			Sigs: env.coSign(domain.EncodeCooperativeWithdrawInfo(info)),
		})
		require.ErrorIs(t, err, domain.ErrSeqNumError)
	})

	t.Run("expired deadline", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)

		info := domain.CooperativeWithdrawInfo{
			ChannelId:        channelId,
			SeqNum:           1,
			Receiver:         env.bob.addr,
			Amount:           10,
			WithdrawDeadline: env.clock.now - 1,
		}
		err := env.ledger.CooperativeWithdraw(ctx, domain.CooperativeWithdrawRequest{
			Info: info,
			Sigs: env.coSign(domain.EncodeCooperativeWithdrawInfo(info)),
		})
		require.ErrorIs(t, err, domain.ErrDeadlinePassed)
	})

	t.Run("wrong seqNum", func(t *testing.T) {
		env := newTestEnv(t)
		channelId := env.openChannel(100, 200)

		info := domain.CooperativeWithdrawInfo{
			ChannelId:        channelId,
			SeqNum:           2,
			Receiver:         env.bob.addr,
			Amount:           10,
			WithdrawDeadline: env.clock.now + 10,
		}
		err := env.ledger.CooperativeWithdraw(ctx, domain.CooperativeWithdrawRequest{
			Info: info,
			Sigs: env.coSign(domain.EncodeCooperativeWithdrawInfo(info)),
		})
		require.ErrorIs(t, err, domain.ErrSeqNumError)
	})
}
