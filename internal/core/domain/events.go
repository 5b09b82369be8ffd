package domain

// Event topic names, one per externally observable ledger event.
const (
	TopicOpenChannel         = "OpenChannel"
	TopicDeposit             = "Deposit"
	TopicSnapshotStates      = "SnapshotStates"
	TopicIntendWithdraw      = "IntendWithdraw"
	TopicConfirmWithdraw     = "ConfirmWithdraw"
	TopicVetoWithdraw        = "VetoWithdraw"
	TopicCooperativeWithdraw = "CooperativeWithdraw"
	TopicIntendSettle        = "IntendSettle"
	TopicClearOnePay         = "ClearOnePay"
	TopicConfirmSettle       = "ConfirmSettle"
	TopicConfirmSettleFail   = "ConfirmSettleFail"
	TopicCooperativeSettle   = "CooperativeSettle"
	TopicMigrateChannelTo    = "MigrateChannelTo"
	TopicMigrateChannelFrom  = "MigrateChannelFrom"
	TopicUpdatePayResult     = "UpdatePayResult"
	TopicResolvePayment      = "ResolvePayment"
)

// Daemon-side notifications, fired by the dispute-window scheduler the
// moment a follow-up call becomes available.
const (
	TopicWithdrawWindowMatured = "WithdrawWindowMatured"
	TopicSettleWindowMatured   = "SettleWindowMatured"
)

type OpenChannelEvent struct {
	ChannelId    string
	Peers        [2]Address
	TokenType    TokenType
	TokenAddress Address
	Deposits     [2]uint64
}

type DepositEvent struct {
	ChannelId   string
	Peers       [2]Address
	Deposits    [2]uint64
	Withdrawals [2]uint64
}

type SnapshotStatesEvent struct {
	ChannelId string
	SeqNums   [2]uint64
}

type IntendWithdrawEvent struct {
	ChannelId string
	Receiver  Address
	Amount    uint64
}

type ConfirmWithdrawEvent struct {
	ChannelId          string
	Receiver           Address
	Amount             uint64
	RecipientChannelId string
	Deposits           [2]uint64
	Withdrawals        [2]uint64
}

type VetoWithdrawEvent struct {
	ChannelId string
}

type CooperativeWithdrawEvent struct {
	ChannelId          string
	SeqNum             uint64
	Receiver           Address
	Amount             uint64
	RecipientChannelId string
	Deposits           [2]uint64
	Withdrawals        [2]uint64
}

type IntendSettleEvent struct {
	ChannelId string
	SeqNums   [2]uint64
}

type ClearOnePayEvent struct {
	ChannelId string
	PayId     string
	PeerFrom  Address
	Amount    uint64
}

type ConfirmSettleEvent struct {
	ChannelId      string
	SettleBalances [2]uint64
}

type ConfirmSettleFailEvent struct {
	ChannelId string
}

type CooperativeSettleEvent struct {
	ChannelId      string
	SettleBalances [2]uint64
}

type MigrateChannelEvent struct {
	ChannelId string
	OldLedger Address
	NewLedger Address
}

type UpdatePayResultEvent struct {
	PayId           string
	Amount          uint64
	ResolveDeadline int64
}

type ResolvePaymentEvent struct {
	PayId           string
	Amount          uint64
	ResolveDeadline int64
}

type WithdrawWindowMaturedEvent struct {
	ChannelId string
	Receiver  Address
}

type SettleWindowMaturedEvent struct {
	ChannelId           string
	SettleFinalizedTime int64
}
