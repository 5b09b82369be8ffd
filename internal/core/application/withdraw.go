package application

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/duplexpay/duplexd/internal/core/domain"
)

// IntendWithdraw records a unilateral withdrawal intent and starts the
// dispute window. At most one intent may be pending per channel.
func (s *LedgerService) IntendWithdraw(
	ctx context.Context, channelId string, caller domain.Address, amount uint64, recipientChannelId string,
) error {
	channel, err := s.operableChannel(ctx, channelId)
	if err != nil {
		return err
	}
	idx := channel.PeerIndex(caller)
	if idx < 0 {
		return domain.ErrNotPeer
	}
	for i := range channel.Peers {
		if channel.Peers[i].Intent.RequestTime != 0 {
			return domain.ErrPendingIntentExists
		}
	}

	channel.Peers[idx].Intent = domain.WithdrawIntent{
		Receiver:           caller,
		Amount:             amount,
		RequestTime:        s.clock.Now(),
		RecipientChannelId: recipientChannelId,
	}
	if err := s.repos.Channels().Update(ctx, *channel); err != nil {
		return err
	}

	s.bus.Pub(domain.IntendWithdrawEvent{
		ChannelId: channelId,
		Receiver:  caller,
		Amount:    amount,
	}, domain.TopicIntendWithdraw)
	s.scheduleWindow(channel.Peers[idx].Intent.RequestTime+channel.DisputeTimeout, func() {
		s.bus.Pub(domain.WithdrawWindowMaturedEvent{
			ChannelId: channelId,
			Receiver:  caller,
		}, domain.TopicWithdrawWindowMatured)
	})
	return nil
}

// ConfirmWithdraw pays out a matured withdraw intent. Callable by
// anyone once the dispute window has elapsed. The amount must leave the
// withdrawing peer covering the counterparty's last recorded claim.
func (s *LedgerService) ConfirmWithdraw(ctx context.Context, channelId string) error {
	channel, err := s.operableChannel(ctx, channelId)
	if err != nil {
		return err
	}
	idx := pendingIntentIndex(channel)
	if idx < 0 {
		return domain.ErrNoPendingIntent
	}
	intent := channel.Peers[idx].Intent
	if s.clock.Now() < intent.RequestTime+channel.DisputeTimeout {
		return domain.ErrDisputeNotTimedOut
	}
	if intent.Amount > withdrawLimit(channel, idx) {
		return domain.ErrExceedsWithdrawLimit
	}
	recipient, rIdx, err := s.redirectTarget(ctx, channel, intent.Receiver, intent.RecipientChannelId)
	if err != nil {
		return err
	}
	if err := s.checkWalletCovers(ctx, channel, intent.Amount); err != nil {
		return err
	}

	// The source channel is written first: a failure past this point
	// can leave funds unpaid but never paid out twice or unrecorded.
	channel.Peers[idx].Intent = domain.WithdrawIntent{}
	channel.Peers[idx].Withdrawal += intent.Amount
	if err := s.repos.Channels().Update(ctx, *channel); err != nil {
		return err
	}
	if err := s.payOutWithdrawal(ctx, channel, recipient, rIdx, intent.Receiver, intent.Amount); err != nil {
		return err
	}

	s.bus.Pub(domain.ConfirmWithdrawEvent{
		ChannelId:          channelId,
		Receiver:           intent.Receiver,
		Amount:             intent.Amount,
		RecipientChannelId: intent.RecipientChannelId,
		Deposits:           [2]uint64{channel.Peers[0].Deposit, channel.Peers[1].Deposit},
		Withdrawals:        [2]uint64{channel.Peers[0].Withdrawal, channel.Peers[1].Withdrawal},
	}, domain.TopicConfirmWithdraw)
	return nil
}

// VetoWithdraw cancels the pending intent unconditionally. Either peer
// may veto, including the one that raised the intent.
func (s *LedgerService) VetoWithdraw(ctx context.Context, channelId string, caller domain.Address) error {
	channel, err := s.operableChannel(ctx, channelId)
	if err != nil {
		return err
	}
	if channel.PeerIndex(caller) < 0 {
		return domain.ErrNotPeer
	}
	idx := pendingIntentIndex(channel)
	if idx < 0 {
		return domain.ErrNoPendingIntent
	}
	channel.Peers[idx].Intent = domain.WithdrawIntent{}
	if err := s.repos.Channels().Update(ctx, *channel); err != nil {
		return err
	}

	s.bus.Pub(domain.VetoWithdrawEvent{ChannelId: channelId}, domain.TopicVetoWithdraw)
	return nil
}

// CooperativeWithdraw executes a both-peer-signed immediate withdrawal.
// Its seqNum runs on a dedicated sequence, one past the stored value.
func (s *LedgerService) CooperativeWithdraw(ctx context.Context, req domain.CooperativeWithdrawRequest) error {
	info := req.Info
	channel, err := s.operableChannel(ctx, info.ChannelId)
	if err != nil {
		return err
	}
	msg := domain.EncodeCooperativeWithdrawInfo(info)
	if err := domain.VerifyCoSigned(msg, req.Sigs, channel.PeerAddrs()); err != nil {
		return err
	}
	if info.SeqNum != channel.CooperativeWithdrawSeqNum+1 {
		return domain.ErrSeqNumError
	}
	if s.clock.Now() > info.WithdrawDeadline {
		return fmt.Errorf("%w: withdraw deadline", domain.ErrDeadlinePassed)
	}
	idx := channel.PeerIndex(info.Receiver)
	if idx < 0 {
		return domain.ErrNonexistentPeer
	}
	recipient, rIdx, err := s.redirectTarget(ctx, channel, info.Receiver, info.RecipientChannelId)
	if err != nil {
		return err
	}
	if err := s.checkWalletCovers(ctx, channel, info.Amount); err != nil {
		return err
	}

	channel.CooperativeWithdrawSeqNum = info.SeqNum
	channel.Peers[idx].Withdrawal += info.Amount
	if err := s.repos.Channels().Update(ctx, *channel); err != nil {
		return err
	}
	if err := s.payOutWithdrawal(ctx, channel, recipient, rIdx, info.Receiver, info.Amount); err != nil {
		return err
	}

	s.bus.Pub(domain.CooperativeWithdrawEvent{
		ChannelId:          info.ChannelId,
		SeqNum:             info.SeqNum,
		Receiver:           info.Receiver,
		Amount:             info.Amount,
		RecipientChannelId: info.RecipientChannelId,
		Deposits:           [2]uint64{channel.Peers[0].Deposit, channel.Peers[1].Deposit},
		Withdrawals:        [2]uint64{channel.Peers[0].Withdrawal, channel.Peers[1].Withdrawal},
	}, domain.TopicCooperativeWithdraw)
	return nil
}

// redirectTarget validates a withdrawal redirect before anything is
// written. A nil channel means a plain payout to the receiver.
func (s *LedgerService) redirectTarget(
	ctx context.Context, channel *domain.Channel, receiver domain.Address, recipientChannelId string,
) (*domain.Channel, int, error) {
	if recipientChannelId == "" {
		return nil, -1, nil
	}
	if recipientChannelId == channel.Id {
		return nil, -1, fmt.Errorf("withdrawal cannot be redirected into its own channel")
	}
	recipient, err := s.operableChannel(ctx, recipientChannelId)
	if err != nil {
		return nil, -1, err
	}
	if !recipient.Token.Equal(channel.Token) {
		return nil, -1, domain.ErrTokenMismatch
	}
	idx := recipient.PeerIndex(receiver)
	if idx < 0 {
		return nil, -1, domain.ErrNonexistentPeer
	}
	return recipient, idx, nil
}

// payOutWithdrawal moves the funds once the source channel has been
// persisted: straight out of custody, or into the recipient channel's
// deposit when the withdrawal was redirected.
func (s *LedgerService) payOutWithdrawal(
	ctx context.Context, channel, recipient *domain.Channel, rIdx int, receiver domain.Address, amount uint64,
) error {
	if recipient == nil {
		if err := s.custody.Withdraw(ctx, channel.Id, channel.Token, receiver, amount); err != nil {
			return fmt.Errorf("failed to withdraw from custody: %w", err)
		}
		return nil
	}

	if err := s.custody.TransferToWallet(ctx, channel.Id, recipient.Id, channel.Token, receiver, amount); err != nil {
		return fmt.Errorf("failed to transfer between wallets: %w", err)
	}
	recipient.Peers[rIdx].Deposit += amount
	if err := s.repos.Channels().Update(ctx, *recipient); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"from":   channel.Id,
		"to":     recipient.Id,
		"amount": amount,
	}).Debug("redirected withdrawal into recipient channel")
	s.publishDeposit(recipient)
	return nil
}

func pendingIntentIndex(channel *domain.Channel) int {
	for i := range channel.Peers {
		if channel.Peers[i].Intent.RequestTime != 0 {
			return i
		}
	}
	return -1
}

// withdrawLimit bounds what peer rid may take out: own deposits plus
// what the counterparty last committed to sending, minus everything
// already withdrawn, sent, or still pending on the peer's own side.
func withdrawLimit(channel *domain.Channel, rid int) uint64 {
	pid := 1 - rid
	limit := channel.Peers[rid].Deposit
	limit += channel.Peers[pid].State.TransferOut
	for _, sub := range []uint64{
		channel.Peers[rid].Withdrawal,
		channel.Peers[rid].State.TransferOut,
		channel.Peers[rid].State.PendingPayOut,
	} {
		if sub >= limit {
			return 0
		}
		limit -= sub
	}
	return limit
}
