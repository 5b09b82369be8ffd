package application

import (
	"context"
	"fmt"

	"github.com/cskr/pubsub"
	log "github.com/sirupsen/logrus"

	"github.com/duplexpay/duplexd/internal/core/domain"
	"github.com/duplexpay/duplexd/internal/core/ports"
)

// LedgerService is the addressable ledger: the channel lifecycle state
// machine plus the policy and migration glue composed around it. All
// operations are serialized per instance; every check runs before the
// first write, so a failing call leaves no partial state behind.
type LedgerService struct {
	addr  domain.Address
	owner domain.Address

	repos     ports.RepoManager
	custody   ports.CustodyService
	pool      ports.PoolService
	registry  *PayRegistry
	clock     ports.Clock
	bus       *pubsub.PubSub
	scheduler ports.SchedulerService
	limits    *BalanceLimits

	minDisputeTimeout int64
	maxDisputeTimeout int64
}

type LedgerConfig struct {
	Addr              domain.Address
	Owner             domain.Address
	MinDisputeTimeout int64
	MaxDisputeTimeout int64
}

func NewLedgerService(
	cfg LedgerConfig,
	repos ports.RepoManager,
	custody ports.CustodyService,
	pool ports.PoolService,
	registry *PayRegistry,
	clock ports.Clock,
	bus *pubsub.PubSub,
	scheduler ports.SchedulerService,
	limits *BalanceLimits,
) *LedgerService {
	return &LedgerService{
		addr:              cfg.Addr,
		owner:             cfg.Owner,
		repos:             repos,
		custody:           custody,
		pool:              pool,
		registry:          registry,
		clock:             clock,
		bus:               bus,
		scheduler:         scheduler,
		limits:            limits,
		minDisputeTimeout: cfg.MinDisputeTimeout,
		maxDisputeTimeout: cfg.MaxDisputeTimeout,
	}
}

func (s *LedgerService) Addr() domain.Address {
	return s.addr
}

// OpenChannel creates a channel from a co-signed initializer and pulls
// the initial deposits into custody.
func (s *LedgerService) OpenChannel(ctx context.Context, req domain.OpenChannelRequest) (string, error) {
	init := req.Initializer
	now := s.clock.Now()
	if now > init.OpenDeadline {
		return "", domain.ErrOpenDeadlinePassed
	}
	if init.DisputeTimeout < s.minDisputeTimeout || init.DisputeTimeout > s.maxDisputeTimeout {
		return "", domain.ErrInvalidDisputeTimeout
	}
	if init.Peers[0].Addr >= init.Peers[1].Addr {
		return "", domain.ErrPeersNotOrdered
	}

	initBytes := domain.EncodeChannelInitializer(init)
	if err := domain.VerifyCoSigned(initBytes, req.Sigs, init.PeerAddrs()); err != nil {
		return "", err
	}

	channelId := domain.ChannelIdFor(initBytes, s.addr)
	if existing, err := s.repos.Channels().Get(ctx, channelId); err != nil {
		return "", err
	} else if existing != nil {
		return "", domain.ErrOccupiedChannelId
	}

	totalDeposit, err := domain.CheckedAdd(init.Peers[0].Deposit, init.Peers[1].Deposit)
	if err != nil {
		return "", err
	}
	if err := s.limits.Check(init.Token, totalDeposit); err != nil {
		return "", err
	}

	if err := s.custody.OpenWallet(ctx, channelId, s.addr); err != nil {
		return "", fmt.Errorf("failed to open wallet: %w", err)
	}
	for _, peer := range init.Peers {
		if peer.Deposit == 0 {
			continue
		}
		if err := s.custody.Deposit(ctx, channelId, init.Token, peer.Addr, peer.Deposit); err != nil {
			return "", fmt.Errorf("failed to pull deposit from %s: %w", peer.Addr, err)
		}
	}

	channel := domain.Channel{
		Id: channelId,
		Peers: [2]domain.PeerProfile{
			{Addr: init.Peers[0].Addr, Deposit: init.Peers[0].Deposit},
			{Addr: init.Peers[1].Addr, Deposit: init.Peers[1].Deposit},
		},
		Token:          init.Token,
		Status:         domain.ChannelOperable,
		DisputeTimeout: init.DisputeTimeout,
	}
	if err := s.repos.Channels().Add(ctx, channel); err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"channelId": channelId,
		"peers":     channel.PeerAddrs(),
	}).Info("opened channel")
	s.bus.Pub(domain.OpenChannelEvent{
		ChannelId:    channelId,
		Peers:        channel.PeerAddrs(),
		TokenType:    init.Token.Type,
		TokenAddress: init.Token.Address,
		Deposits:     [2]uint64{init.Peers[0].Deposit, init.Peers[1].Deposit},
	}, domain.TopicOpenChannel)
	return channelId, nil
}

// DepositRequest is one deposit instruction; From may be any address,
// third-party top-ups are allowed. FromPool draws on the pooled funds
// the depositor approved for this ledger instead of a direct transfer.
type DepositRequest struct {
	ChannelId string
	Receiver  domain.Address
	From      domain.Address
	Amount    uint64
	FromPool  bool
}

// Deposit adds funds to one peer's deposit.
func (s *LedgerService) Deposit(ctx context.Context, req DepositRequest) error {
	return s.DepositInBatch(ctx, []DepositRequest{req})
}

// DepositInBatch applies several deposits, possibly across channels, as
// one unit: every entry is validated against the staged outcome of the
// entries before it, and no funds move and no channel is written until
// the whole batch has passed.
func (s *LedgerService) DepositInBatch(ctx context.Context, reqs []DepositRequest) error {
	staged := make(map[string]*domain.Channel)
	poolDraws := make(map[domain.Address]uint64)
	var order []string
	for i, req := range reqs {
		if err := s.stageDeposit(ctx, staged, &order, poolDraws, req); err != nil {
			return fmt.Errorf("deposit %d: %w", i, err)
		}
	}

	for _, req := range reqs {
		channel := staged[req.ChannelId]
		if req.FromPool {
			if err := s.pool.TransferFrom(ctx, s.addr, req.From, channel.Id, channel.Token, req.Amount); err != nil {
				return fmt.Errorf("failed to draw from pool: %w", err)
			}
		} else if err := s.custody.Deposit(ctx, channel.Id, channel.Token, req.From, req.Amount); err != nil {
			return fmt.Errorf("failed to pull deposit: %w", err)
		}
	}
	for _, channelId := range order {
		if err := s.repos.Channels().Update(ctx, *staged[channelId]); err != nil {
			return err
		}
	}

	for _, channelId := range order {
		s.publishDeposit(staged[channelId])
	}
	return nil
}

// stageDeposit validates one batch entry and records its effect on the
// staged channel copy, so later entries see the accumulated deposits and
// pool draws of earlier ones.
func (s *LedgerService) stageDeposit(
	ctx context.Context,
	staged map[string]*domain.Channel,
	order *[]string,
	poolDraws map[domain.Address]uint64,
	req DepositRequest,
) error {
	channel, ok := staged[req.ChannelId]
	if !ok {
		var err error
		channel, err = s.operableChannel(ctx, req.ChannelId)
		if err != nil {
			return err
		}
		staged[req.ChannelId] = channel
		*order = append(*order, req.ChannelId)
	}
	idx := channel.PeerIndex(req.Receiver)
	if idx < 0 {
		return domain.ErrNonexistentPeer
	}

	proposedTotal, err := domain.CheckedAdd(channel.TotalDeposit(), req.Amount)
	if err != nil {
		return err
	}
	if err := s.limits.Check(channel.Token, proposedTotal); err != nil {
		return err
	}

	if req.FromPool {
		draw, err := domain.CheckedAdd(poolDraws[req.From], req.Amount)
		if err != nil {
			return err
		}
		allowance, err := s.pool.AllowanceOf(ctx, req.From, s.addr)
		if err != nil {
			return err
		}
		balance, err := s.pool.BalanceOf(ctx, req.From)
		if err != nil {
			return err
		}
		if draw > allowance || draw > balance {
			return fmt.Errorf("insufficient pooled funds approved by %s", req.From)
		}
		poolDraws[req.From] = draw
	}

	channel.Peers[idx].Deposit += req.Amount
	return nil
}

// SnapshotStates records later simplex states without opening a dispute,
// raising the baseline the withdraw limit is computed against. The
// channel stays operable. The batch applies as one unit: nothing is
// written until every state has been verified.
func (s *LedgerService) SnapshotStates(ctx context.Context, states []domain.SignedSimplexState) error {
	staged := make(map[string]*domain.Channel)
	var order []string
	for _, signed := range states {
		if err := s.stageSnapshot(ctx, staged, &order, signed); err != nil {
			return err
		}
	}

	for _, channelId := range order {
		if err := s.repos.Channels().Update(ctx, *staged[channelId]); err != nil {
			return err
		}
	}
	for _, channelId := range order {
		channel := staged[channelId]
		s.bus.Pub(domain.SnapshotStatesEvent{
			ChannelId: channel.Id,
			SeqNums:   [2]uint64{channel.Peers[0].State.SeqNum, channel.Peers[1].State.SeqNum},
		}, domain.TopicSnapshotStates)
	}
	return nil
}

func (s *LedgerService) stageSnapshot(
	ctx context.Context, staged map[string]*domain.Channel, order *[]string, signed domain.SignedSimplexState,
) error {
	state := signed.State
	if state.IsNull() {
		return domain.ErrSeqNumError
	}
	channel, ok := staged[state.ChannelId]
	if !ok {
		var err error
		channel, err = s.operableChannel(ctx, state.ChannelId)
		if err != nil {
			return err
		}
		staged[state.ChannelId] = channel
		*order = append(*order, state.ChannelId)
	}
	if err := signed.Verify(channel.PeerAddrs()); err != nil {
		return err
	}
	idx := channel.PeerIndex(state.PeerFrom)
	if idx < 0 {
		return domain.ErrNotPeer
	}
	snap := &channel.Peers[idx].State
	if state.SeqNum <= snap.SeqNum {
		return domain.ErrSeqNumError
	}
	snap.SeqNum = state.SeqNum
	snap.TransferOut = state.TransferOut
	snap.PendingPayOut = state.TotalPendingAmount
	return nil
}

// Read-only accessors.

func (s *LedgerService) GetChannel(ctx context.Context, channelId string) (*domain.Channel, error) {
	channel, err := s.repos.Channels().Get(ctx, channelId)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, domain.ErrChannelNotFound
	}
	return channel, nil
}

func (s *LedgerService) GetChannelStatus(ctx context.Context, channelId string) (domain.ChannelStatus, error) {
	channel, err := s.GetChannel(ctx, channelId)
	if err != nil {
		return domain.ChannelUninitialized, err
	}
	return channel.Status, nil
}

func (s *LedgerService) GetSettleFinalizedTime(ctx context.Context, channelId string) (int64, error) {
	channel, err := s.GetChannel(ctx, channelId)
	if err != nil {
		return 0, err
	}
	return channel.SettleFinalizedTime, nil
}

// GetBalanceMap returns per-peer deposits and withdrawals.
func (s *LedgerService) GetBalanceMap(ctx context.Context, channelId string) (deposits, withdrawals [2]uint64, err error) {
	channel, err := s.GetChannel(ctx, channelId)
	if err != nil {
		return
	}
	deposits = [2]uint64{channel.Peers[0].Deposit, channel.Peers[1].Deposit}
	withdrawals = [2]uint64{channel.Peers[0].Withdrawal, channel.Peers[1].Withdrawal}
	return
}

func (s *LedgerService) GetStateSeqNums(ctx context.Context, channelId string) ([2]uint64, error) {
	channel, err := s.GetChannel(ctx, channelId)
	if err != nil {
		return [2]uint64{}, err
	}
	return [2]uint64{channel.Peers[0].State.SeqNum, channel.Peers[1].State.SeqNum}, nil
}

// Helpers shared by the operation files.

func (s *LedgerService) operableChannel(ctx context.Context, channelId string) (*domain.Channel, error) {
	channel, err := s.GetChannel(ctx, channelId)
	if err != nil {
		return nil, err
	}
	if channel.Status != domain.ChannelOperable {
		return nil, fmt.Errorf("%w: status %s", domain.ErrChannelNotOperable, channel.Status)
	}
	return channel, nil
}

// scheduleWindow arms a one-shot callback for the moment a dispute
// window elapses. Scheduling failures are logged, never fatal: the
// window can still be acted on by polling.
func (s *LedgerService) scheduleWindow(at int64, task func()) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.ScheduleAt(at, task); err != nil {
		log.WithError(err).Warn("failed to schedule dispute window callback")
	}
}

// checkWalletCovers fails before anything has been written when the
// channel wallet cannot fund a payout.
func (s *LedgerService) checkWalletCovers(ctx context.Context, channel *domain.Channel, amount uint64) error {
	held, err := s.custody.GetBalance(ctx, channel.Id, channel.Token)
	if err != nil {
		return err
	}
	if held < amount {
		return fmt.Errorf("wallet %s holds %d of the %d owed", channel.Id, held, amount)
	}
	return nil
}

func (s *LedgerService) publishDeposit(channel *domain.Channel) {
	s.bus.Pub(domain.DepositEvent{
		ChannelId:   channel.Id,
		Peers:       channel.PeerAddrs(),
		Deposits:    [2]uint64{channel.Peers[0].Deposit, channel.Peers[1].Deposit},
		Withdrawals: [2]uint64{channel.Peers[0].Withdrawal, channel.Peers[1].Withdrawal},
	}, domain.TopicDeposit)
}
