package domain

import "errors"

// Signature / authorization.
var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrNotPeer          = errors.New("caller is not a channel peer")
	ErrNotOwner         = errors.New("caller is not the ledger owner")
)

// Sequencing.
var (
	ErrSeqNumError         = errors.New("invalid sequence number")
	ErrOccupiedChannelId   = errors.New("channel id already occupied")
	ErrPendingIntentExists = errors.New("pending withdraw intent exists")
	ErrNoPendingIntent     = errors.New("no pending withdraw intent")
)

// Deadline / timeout.
var (
	ErrOpenDeadlinePassed      = errors.New("open deadline passed")
	ErrDisputeNotTimedOut      = errors.New("dispute not timed out")
	ErrSettleAlreadyFinalized  = errors.New("settle has already finalized")
	ErrDeadlinePassed          = errors.New("pay resolve deadline passed")
	ErrResolveTimeoutExpired   = errors.New("onchain resolve pay deadline passed")
	ErrMigrationDeadlinePassed = errors.New("migration deadline passed")
)

// Conservation.
var (
	ErrBalanceSumMismatch   = errors.New("balance sum mismatch")
	ErrExceedsWithdrawLimit = errors.New("withdraw amount exceeds limit")
	ErrBalanceExceedsLimit  = errors.New("deposit exceeds balance limit")
	ErrAmountOverflow       = errors.New("amount overflow")
)

// Resolution.
var (
	ErrWrongPreimage         = errors.New("wrong preimage")
	ErrNotImplemented        = errors.New("logic type not implemented")
	ErrAmountNotIncreasing   = errors.New("result amount not increasing")
	ErrExceedsMaxAmount      = errors.New("result amount exceeds max")
	ErrPaymentNotFinalized   = errors.New("payment not finalized")
	ErrConditionNotFinalized = errors.New("condition not finalized")
	ErrNonexistentCondition  = errors.New("nonexistent condition")
)

// Open / migrate validation.
var (
	ErrPeersNotOrdered       = errors.New("peer addresses not in ascending order")
	ErrInvalidDisputeTimeout = errors.New("dispute timeout out of bounds")
	ErrLedgerMismatch        = errors.New("request names a different ledger instance")
)

// Token / topology.
var (
	ErrTokenMismatch      = errors.New("token mismatch")
	ErrNonexistentPeer    = errors.New("nonexistent peer in recipient channel")
	ErrChannelNotFound    = errors.New("channel not found")
	ErrChannelNotOperable = errors.New("channel not in operable status")
	ErrChannelNotSettling = errors.New("channel not in settling status")
	ErrPayListOutOfOrder  = errors.New("pay id list does not match expected hash")
)
