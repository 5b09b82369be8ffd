package domain

import (
	"bytes"
	"context"
)

type ConditionType int

const (
	ConditionHashLock ConditionType = iota
	ConditionDeployedContract
	ConditionVirtualContract
)

type LogicType int

const (
	LogicBooleanAnd LogicType = iota
	LogicBooleanOr
	LogicBooleanCircuit
	LogicNumericAdd
	LogicNumericMax
	LogicNumericMin
)

func (t LogicType) IsNumeric() bool {
	switch t {
	case LogicNumericAdd, LogicNumericMax, LogicNumericMin:
		return true
	}
	return false
}

// Condition is a closed variant: exactly the fields for its type are set.
type Condition struct {
	Type ConditionType

	// HashLock: sha256 digest the payee must reveal a preimage for.
	HashLock []byte

	// DeployedContract: address of a deployed condition contract.
	DeployedContractAddress Address

	// VirtualContract: off-chain-agreed identifier resolved to a concrete
	// address on demand through the virtual-resolver registry.
	VirtualContractAddress string

	ArgsForQueryOutcome      []byte
	ArgsForQueryFinalization []byte
}

// MatchesPreimage reports whether preimage hashes to the stored lock.
func (c Condition) MatchesPreimage(preimage []byte) bool {
	return bytes.Equal(Hash(preimage), c.HashLock)
}

type TransferFunc struct {
	LogicType LogicType
	MaxAmount uint64
}

// ConditionalPay is immutable once created. Its identifier binds it to a
// single resolver deployment: hash(hash(payBytes) ++ payResolver).
type ConditionalPay struct {
	Src             Address
	Dest            Address
	Conditions      []Condition
	TransferFunc    TransferFunc
	ResolveDeadline int64
	ResolveTimeout  int64
	PayResolver     Address
}

// HasContractConditions reports whether any condition needs an external
// contract query. Without one, every logic type trivially resolves to
// the max amount once the hash locks check out.
func (p ConditionalPay) HasContractConditions() bool {
	for _, c := range p.Conditions {
		if c.Type != ConditionHashLock {
			return true
		}
	}
	return false
}

// VouchedCondPayResult is an amount both src and dest co-signed directly,
// bypassing condition evaluation. The signatures cover
// EncodeVouchedResult(pay, amount).
type VouchedCondPayResult struct {
	Pay     ConditionalPay
	Amount  uint64
	SigSrc  []byte
	SigDest []byte
}

// PayResult is the registry entry for one payment.
type PayResult struct {
	PayId           string
	Amount          uint64
	ResolveDeadline int64
}

// PayResultRepository stores resolved payment results keyed by pay id.
type PayResultRepository interface {
	Get(ctx context.Context, payId string) (*PayResult, error)
	Set(ctx context.Context, result PayResult) error
	Close()
}
