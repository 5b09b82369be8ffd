package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/duplexpay/duplexd/internal/core/domain"
)

const channelDir = "channel"

type channelRepository struct {
	store *badgerhold.Store
}

func NewChannelRepository(baseDir string, logger badger.Logger) (domain.ChannelRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, channelDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open channel store: %s", err)
	}
	return &channelRepository{store}, nil
}

func (r *channelRepository) Get(ctx context.Context, channelId string) (*domain.Channel, error) {
	var data channelData
	err := r.store.Get(channelId, &data)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	channel := data.toChannel()
	return &channel, nil
}

func (r *channelRepository) Add(ctx context.Context, channel domain.Channel) error {
	return r.store.Insert(channel.Id, toChannelData(channel))
}

func (r *channelRepository) Update(ctx context.Context, channel domain.Channel) error {
	return r.store.Update(channel.Id, toChannelData(channel))
}

func (r *channelRepository) GetAll(ctx context.Context) ([]domain.Channel, error) {
	var dataList []channelData
	if err := r.store.Find(&dataList, nil); err != nil {
		return nil, fmt.Errorf("failed to get all channels: %w", err)
	}
	channels := make([]domain.Channel, 0, len(dataList))
	for _, data := range dataList {
		channels = append(channels, data.toChannel())
	}
	return channels, nil
}

func (r *channelRepository) Close() {
	// nolint:all
	r.store.Close()
}

type peerProfileData struct {
	Addr       string
	Deposit    uint64
	Withdrawal uint64

	IntentReceiver           string
	IntentAmount             uint64
	IntentRequestTime        int64
	IntentRecipientChannelId string

	StateSeqNum                 uint64
	StateTransferOut            uint64
	StatePendingPayOut          uint64
	StateNextPayIdListHash      string
	StateLastPayResolveDeadline int64
}

type channelData struct {
	Id                        string
	Peers                     [2]peerProfileData
	TokenType                 int
	TokenAddress              string
	Status                    int
	DisputeTimeout            int64
	SettleFinalizedTime       int64
	CooperativeWithdrawSeqNum uint64
}

func toChannelData(c domain.Channel) channelData {
	data := channelData{
		Id:                        c.Id,
		TokenType:                 int(c.Token.Type),
		TokenAddress:              string(c.Token.Address),
		Status:                    int(c.Status),
		DisputeTimeout:            c.DisputeTimeout,
		SettleFinalizedTime:       c.SettleFinalizedTime,
		CooperativeWithdrawSeqNum: c.CooperativeWithdrawSeqNum,
	}
	for i, p := range c.Peers {
		data.Peers[i] = peerProfileData{
			Addr:                        string(p.Addr),
			Deposit:                     p.Deposit,
			Withdrawal:                  p.Withdrawal,
			IntentReceiver:              string(p.Intent.Receiver),
			IntentAmount:                p.Intent.Amount,
			IntentRequestTime:           p.Intent.RequestTime,
			IntentRecipientChannelId:    p.Intent.RecipientChannelId,
			StateSeqNum:                 p.State.SeqNum,
			StateTransferOut:            p.State.TransferOut,
			StatePendingPayOut:          p.State.PendingPayOut,
			StateNextPayIdListHash:      p.State.NextPayIdListHash,
			StateLastPayResolveDeadline: p.State.LastPayResolveDeadline,
		}
	}
	return data
}

func (d channelData) toChannel() domain.Channel {
	channel := domain.Channel{
		Id:                        d.Id,
		Token:                     domain.Token{Type: domain.TokenType(d.TokenType), Address: domain.Address(d.TokenAddress)},
		Status:                    domain.ChannelStatus(d.Status),
		DisputeTimeout:            d.DisputeTimeout,
		SettleFinalizedTime:       d.SettleFinalizedTime,
		CooperativeWithdrawSeqNum: d.CooperativeWithdrawSeqNum,
	}
	for i, p := range d.Peers {
		channel.Peers[i] = domain.PeerProfile{
			Addr:       domain.Address(p.Addr),
			Deposit:    p.Deposit,
			Withdrawal: p.Withdrawal,
			Intent: domain.WithdrawIntent{
				Receiver:           domain.Address(p.IntentReceiver),
				Amount:             p.IntentAmount,
				RequestTime:        p.IntentRequestTime,
				RecipientChannelId: p.IntentRecipientChannelId,
			},
			State: domain.SimplexSnapshot{
				SeqNum:                 p.StateSeqNum,
				TransferOut:            p.StateTransferOut,
				PendingPayOut:          p.StatePendingPayOut,
				NextPayIdListHash:      p.StateNextPayIdListHash,
				LastPayResolveDeadline: p.StateLastPayResolveDeadline,
			},
		}
	}
	return channel
}
