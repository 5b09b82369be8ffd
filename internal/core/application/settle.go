package application

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/duplexpay/duplexd/internal/core/domain"
)

// IntendSettle opens (or escalates) a settlement dispute from the
// submitted simplex states, batchable across channels. Every payment in
// each state's head pay-id list must already be finalized in the
// registry; finalized amounts are cleared into the peer's transfer total
// immediately.
func (s *LedgerService) IntendSettle(ctx context.Context, states []domain.SignedSimplexState) error {
	grouped, order := groupByChannel(states)
	staged := make([]*settleStage, 0, len(order))
	for _, channelId := range order {
		stage, err := s.stageSettle(ctx, channelId, grouped[channelId])
		if err != nil {
			return err
		}
		staged = append(staged, stage)
	}

	// Every channel in the batch checked out; now persist, then announce.
	for _, stage := range staged {
		if err := s.repos.Channels().Update(ctx, *stage.channel); err != nil {
			return err
		}
	}
	for _, stage := range staged {
		s.announceSettling(stage)
	}
	return nil
}

// settleStage holds one channel's fully validated dispute entry before
// anything is written.
type settleStage struct {
	channel     *domain.Channel
	clearEvents []domain.ClearOnePayEvent
}

func (s *LedgerService) stageSettle(ctx context.Context, channelId string, states []domain.SignedSimplexState) (*settleStage, error) {
	channel, err := s.GetChannel(ctx, channelId)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	redispute := false
	switch channel.Status {
	case domain.ChannelOperable:
	case domain.ChannelSettling:
		if now >= channel.SettleFinalizedTime {
			return nil, domain.ErrSettleAlreadyFinalized
		}
		redispute = true
	default:
		return nil, fmt.Errorf("%w: status %s", domain.ErrChannelNotOperable, channel.Status)
	}

	var clearEvents []domain.ClearOnePayEvent
	for _, signed := range states {
		state := signed.State
		if err := signed.Verify(channel.PeerAddrs()); err != nil {
			return nil, err
		}
		idx := channel.PeerIndex(state.PeerFrom)
		if idx < 0 {
			return nil, domain.ErrNotPeer
		}
		snap := &channel.Peers[idx].State

		if state.IsNull() {
			// The null state settles a channel that never exchanged
			// state; it is rejected once any state has been recorded
			// and cannot escalate an open dispute.
			if redispute || snap.SeqNum != 0 {
				return nil, domain.ErrSeqNumError
			}
			continue
		}
		if redispute {
			if state.SeqNum <= snap.SeqNum {
				return nil, domain.ErrSeqNumError
			}
		} else if state.SeqNum < snap.SeqNum {
			return nil, domain.ErrSeqNumError
		}

		var clearedTotal uint64
		for _, payId := range state.PendingPayIds.PayIds {
			final, amount, err := s.registry.IsFinalized(ctx, payId, state.LastPayResolveDeadline)
			if err != nil {
				return nil, err
			}
			if !final {
				return nil, fmt.Errorf("%w: pay %s", domain.ErrPaymentNotFinalized, payId)
			}
			clearedTotal += amount
			clearEvents = append(clearEvents, domain.ClearOnePayEvent{
				ChannelId: channelId,
				PayId:     payId,
				PeerFrom:  state.PeerFrom,
				Amount:    amount,
			})
		}

		snap.SeqNum = state.SeqNum
		snap.TransferOut = state.TransferOut + clearedTotal
		// Each cleared payment moves from the pending total into the
		// transfer total.
		snap.PendingPayOut = saturatingSub(state.TotalPendingAmount, clearedTotal)
		snap.NextPayIdListHash = state.PendingPayIds.NextListHash
		snap.LastPayResolveDeadline = state.LastPayResolveDeadline
		if snap.NextPayIdListHash == "" {
			// The whole chain is consumed, nothing stays pending.
			snap.PendingPayOut = 0
		}
	}

	channel.Status = domain.ChannelSettling
	channel.SettleFinalizedTime = now + channel.DisputeTimeout
	return &settleStage{channel: channel, clearEvents: clearEvents}, nil
}

func (s *LedgerService) announceSettling(stage *settleStage) {
	channel := stage.channel
	for _, ev := range stage.clearEvents {
		s.bus.Pub(ev, domain.TopicClearOnePay)
	}
	log.WithFields(log.Fields{
		"channelId":           channel.Id,
		"settleFinalizedTime": channel.SettleFinalizedTime,
	}).Info("settlement dispute opened")
	s.bus.Pub(domain.IntendSettleEvent{
		ChannelId: channel.Id,
		SeqNums:   [2]uint64{channel.Peers[0].State.SeqNum, channel.Peers[1].State.SeqNum},
	}, domain.TopicIntendSettle)

	channelId, finalizedTime := channel.Id, channel.SettleFinalizedTime
	s.scheduleWindow(finalizedTime, func() {
		s.bus.Pub(domain.SettleWindowMaturedEvent{
			ChannelId:           channelId,
			SettleFinalizedTime: finalizedTime,
		}, domain.TopicSettleWindowMatured)
	})
}

// ClearPays processes the next pending pay-id chunk of peerFrom after
// settlement has started. Chunks must arrive in chain order and each
// chunk clears exactly once; repeat until the chain is consumed.
func (s *LedgerService) ClearPays(ctx context.Context, channelId string, peerFrom domain.Address, list domain.PayIdList) error {
	channel, err := s.GetChannel(ctx, channelId)
	if err != nil {
		return err
	}
	if channel.Status != domain.ChannelSettling {
		return fmt.Errorf("%w: status %s", domain.ErrChannelNotSettling, channel.Status)
	}
	idx := channel.PeerIndex(peerFrom)
	if idx < 0 {
		return domain.ErrNotPeer
	}
	snap := &channel.Peers[idx].State
	if snap.NextPayIdListHash == "" || list.Hash() != snap.NextPayIdListHash {
		return domain.ErrPayListOutOfOrder
	}

	var (
		clearedTotal uint64
		clearEvents  []domain.ClearOnePayEvent
	)
	for _, payId := range list.PayIds {
		final, amount, err := s.registry.IsFinalized(ctx, payId, snap.LastPayResolveDeadline)
		if err != nil {
			return err
		}
		if !final {
			return fmt.Errorf("%w: pay %s", domain.ErrPaymentNotFinalized, payId)
		}
		clearedTotal += amount
		clearEvents = append(clearEvents, domain.ClearOnePayEvent{
			ChannelId: channelId,
			PayId:     payId,
			PeerFrom:  peerFrom,
			Amount:    amount,
		})
	}

	snap.TransferOut += clearedTotal
	snap.PendingPayOut = saturatingSub(snap.PendingPayOut, clearedTotal)
	snap.NextPayIdListHash = list.NextListHash
	if snap.NextPayIdListHash == "" {
		snap.PendingPayOut = 0
	}
	if err := s.repos.Channels().Update(ctx, *channel); err != nil {
		return err
	}

	for _, ev := range clearEvents {
		s.bus.Pub(ev, domain.TopicClearOnePay)
	}
	return nil
}

// ConfirmSettle finalizes a matured dispute. Callable by anyone once the
// dispute window has elapsed. When the recorded state would leave a peer
// with a negative balance the channel falls back to operable instead of
// closing, so peers can repair the state and retry; this is reported via
// the returned flag and the ConfirmSettleFail event, not as an error.
func (s *LedgerService) ConfirmSettle(ctx context.Context, channelId string) (balances [2]uint64, settled bool, err error) {
	channel, err := s.GetChannel(ctx, channelId)
	if err != nil {
		return
	}
	if channel.Status != domain.ChannelSettling {
		err = fmt.Errorf("%w: status %s", domain.ErrChannelNotSettling, channel.Status)
		return
	}
	if s.clock.Now() < channel.SettleFinalizedTime {
		err = domain.ErrDisputeNotTimedOut
		return
	}

	balances, ok := settleBalances(channel)
	if !ok {
		channel.Status = domain.ChannelOperable
		channel.SettleFinalizedTime = 0
		if err = s.repos.Channels().Update(ctx, *channel); err != nil {
			return
		}
		log.WithField("channelId", channelId).Warn("settle failed, channel back to operable")
		s.bus.Pub(domain.ConfirmSettleFailEvent{ChannelId: channelId}, domain.TopicConfirmSettleFail)
		return [2]uint64{}, false, nil
	}

	// Funds move before the status write: a failed payout leaves the
	// channel settling and retryable, never closed with funds stranded.
	if err = s.payOutSettlement(ctx, channel, balances); err != nil {
		return [2]uint64{}, false, err
	}
	channel.Status = domain.ChannelClosed
	if err = s.repos.Channels().Update(ctx, *channel); err != nil {
		return
	}

	log.WithFields(log.Fields{
		"channelId": channelId,
		"balances":  balances,
	}).Info("settlement confirmed")
	s.bus.Pub(domain.ConfirmSettleEvent{
		ChannelId:      channelId,
		SettleBalances: balances,
	}, domain.TopicConfirmSettle)
	return balances, true, nil
}

// CooperativeSettle closes the channel on final balances both peers
// co-signed, skipping the dispute window.
func (s *LedgerService) CooperativeSettle(ctx context.Context, req domain.CooperativeSettleRequest) error {
	info := req.Info
	channel, err := s.GetChannel(ctx, info.ChannelId)
	if err != nil {
		return err
	}
	if channel.Status != domain.ChannelOperable && channel.Status != domain.ChannelSettling {
		return fmt.Errorf("%w: status %s", domain.ErrChannelNotOperable, channel.Status)
	}
	msg := domain.EncodeCooperativeSettleInfo(info)
	if err := domain.VerifyCoSigned(msg, req.Sigs, channel.PeerAddrs()); err != nil {
		return err
	}
	if info.SeqNum <= channel.Peers[0].State.SeqNum || info.SeqNum <= channel.Peers[1].State.SeqNum {
		return domain.ErrSeqNumError
	}
	if s.clock.Now() > info.SettleDeadline {
		return fmt.Errorf("%w: settle deadline", domain.ErrDeadlinePassed)
	}
	sum, err := domain.CheckedAdd(info.SettleBalance[0], info.SettleBalance[1])
	if err != nil {
		return err
	}
	if sum != channel.TotalBalance() {
		return domain.ErrBalanceSumMismatch
	}

	if err := s.payOutSettlement(ctx, channel, info.SettleBalance); err != nil {
		return err
	}
	channel.Status = domain.ChannelClosed
	if err := s.repos.Channels().Update(ctx, *channel); err != nil {
		return err
	}

	s.bus.Pub(domain.CooperativeSettleEvent{
		ChannelId:      info.ChannelId,
		SettleBalances: info.SettleBalance,
	}, domain.TopicCooperativeSettle)
	return nil
}

func (s *LedgerService) payOutSettlement(ctx context.Context, channel *domain.Channel, balances [2]uint64) error {
	total, err := domain.CheckedAdd(balances[0], balances[1])
	if err != nil {
		return err
	}
	// Nobody is paid from a wallet that cannot cover both sides.
	if err := s.checkWalletCovers(ctx, channel, total); err != nil {
		return err
	}
	for i := range channel.Peers {
		if balances[i] == 0 {
			continue
		}
		if err := s.custody.Withdraw(ctx, channel.Id, channel.Token, channel.Peers[i].Addr, balances[i]); err != nil {
			return fmt.Errorf("failed to pay out %s: %w", channel.Peers[i].Addr, err)
		}
	}
	return nil
}

// settleBalances computes each peer's final split:
// deposit + received transfers - withdrawals - sent transfers.
// ok is false when either side would go negative, which can only happen
// while unresolved pending claims remain.
func settleBalances(channel *domain.Channel) (balances [2]uint64, ok bool) {
	for i := range channel.Peers {
		j := 1 - i
		gain := channel.Peers[i].Deposit + channel.Peers[j].State.TransferOut
		spend := channel.Peers[i].Withdrawal + channel.Peers[i].State.TransferOut
		if gain < spend {
			return [2]uint64{}, false
		}
		balances[i] = gain - spend
	}
	return balances, true
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// groupByChannel splits a batch of states per channel, preserving first
// appearance order.
func groupByChannel(states []domain.SignedSimplexState) (map[string][]domain.SignedSimplexState, []string) {
	grouped := make(map[string][]domain.SignedSimplexState)
	var order []string
	for _, st := range states {
		id := st.State.ChannelId
		if _, seen := grouped[id]; !seen {
			order = append(order, id)
		}
		grouped[id] = append(grouped[id], st)
	}
	return grouped, order
}
