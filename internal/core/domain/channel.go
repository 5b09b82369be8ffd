package domain

import (
	"context"
)

type ChannelStatus int

const (
	ChannelUninitialized ChannelStatus = iota
	ChannelOperable
	ChannelSettling
	ChannelClosed
	ChannelMigrated
)

func (s ChannelStatus) String() string {
	switch s {
	case ChannelOperable:
		return "operable"
	case ChannelSettling:
		return "settling"
	case ChannelClosed:
		return "closed"
	case ChannelMigrated:
		return "migrated"
	default:
		return "uninitialized"
	}
}

type TokenType int

const (
	TokenNative TokenType = iota
	TokenContract
)

type Token struct {
	Type    TokenType
	Address Address // empty for the native token
}

func (t Token) Equal(other Token) bool {
	return t.Type == other.Type && t.Address == other.Address
}

// Key returns a stable map/config key for the token.
func (t Token) Key() string {
	if t.Type == TokenNative {
		return "native"
	}
	return string(t.Address)
}

// WithdrawIntent is the single pending unilateral withdrawal of a peer.
// A zero RequestTime means no intent is pending.
type WithdrawIntent struct {
	Receiver           Address
	Amount             uint64
	RequestTime        int64
	RecipientChannelId string
}

// SimplexSnapshot is the last recorded view of a peer's outgoing simplex
// state, written by snapshot and dispute operations. TransferOut and
// PendingPayOut bound the peer's future withdrawals; NextPayIdListHash
// tracks lazy pay-list clearing during settlement.
type SimplexSnapshot struct {
	SeqNum                 uint64
	TransferOut            uint64
	PendingPayOut          uint64
	NextPayIdListHash      string
	LastPayResolveDeadline int64
}

// PeerProfile holds everything the ledger records about one channel peer.
type PeerProfile struct {
	Addr       Address
	Deposit    uint64
	Withdrawal uint64
	Intent     WithdrawIntent
	State      SimplexSnapshot
}

type Channel struct {
	Id                        string
	Peers                     [2]PeerProfile
	Token                     Token
	Status                    ChannelStatus
	DisputeTimeout            int64
	SettleFinalizedTime       int64
	CooperativeWithdrawSeqNum uint64
}

// PeerIndex returns the index of addr in the channel's canonical peer
// ordering, or -1 if addr is not a peer.
func (c *Channel) PeerIndex(addr Address) int {
	for i := range c.Peers {
		if c.Peers[i].Addr == addr {
			return i
		}
	}
	return -1
}

func (c *Channel) PeerAddrs() [2]Address {
	return [2]Address{c.Peers[0].Addr, c.Peers[1].Addr}
}

func (c *Channel) TotalDeposit() uint64 {
	return c.Peers[0].Deposit + c.Peers[1].Deposit
}

// TotalBalance is the channel-wide value still under custody:
// total deposits minus total withdrawals.
func (c *Channel) TotalBalance() uint64 {
	return c.TotalDeposit() - c.Peers[0].Withdrawal - c.Peers[1].Withdrawal
}

// ChannelRepository stores channel records keyed by channel id.
type ChannelRepository interface {
	Get(ctx context.Context, channelId string) (*Channel, error)
	Add(ctx context.Context, channel Channel) error
	Update(ctx context.Context, channel Channel) error
	GetAll(ctx context.Context) ([]Channel, error)
	Close()
}
