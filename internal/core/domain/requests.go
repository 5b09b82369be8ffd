package domain

// ChannelInitializer is the co-signed document a channel is opened from.
// Peer entries must already be in canonical (ascending address) order.
type ChannelInitializer struct {
	OpenDeadline   int64
	DisputeTimeout int64
	Token          Token
	Peers          [2]PeerInit
}

type PeerInit struct {
	Addr    Address
	Deposit uint64
}

func (ci ChannelInitializer) PeerAddrs() [2]Address {
	return [2]Address{ci.Peers[0].Addr, ci.Peers[1].Addr}
}

type OpenChannelRequest struct {
	Initializer ChannelInitializer
	Sigs        [2][]byte
}

// CooperativeWithdrawInfo is the co-signed body of an immediate
// withdrawal. SeqNum runs on its own sequence, separate from the
// simplex states.
type CooperativeWithdrawInfo struct {
	ChannelId          string
	SeqNum             uint64
	Receiver           Address
	Amount             uint64
	WithdrawDeadline   int64
	RecipientChannelId string
}

type CooperativeWithdrawRequest struct {
	Info CooperativeWithdrawInfo
	Sigs [2][]byte
}

// CooperativeSettleInfo carries the final balances both peers agreed on,
// in canonical peer order.
type CooperativeSettleInfo struct {
	ChannelId      string
	SeqNum         uint64
	SettleBalance  [2]uint64
	SettleDeadline int64
}

type CooperativeSettleRequest struct {
	Info CooperativeSettleInfo
	Sigs [2][]byte
}

// ChannelMigrationInfo names the exact ledger instances a channel moves
// between, so a signed request cannot be replayed elsewhere.
type ChannelMigrationInfo struct {
	ChannelId         string
	FromLedger        Address
	ToLedger          Address
	MigrationDeadline int64
}

type ChannelMigrationRequest struct {
	Info ChannelMigrationInfo
	Sigs [2][]byte
}
