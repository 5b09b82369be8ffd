package domain

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
)

// Canonical, deterministic binary encodings for everything that gets
// signed or hashed. Fields are written in declaration order; variable
// length data is length-prefixed with a big-endian uint32.

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) i64(v int64) {
	e.u64(uint64(v))
}

func (e *encoder) bytes(v []byte) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(len(v)))
	e.buf.Write(b[:])
	e.buf.Write(v)
}

func (e *encoder) str(v string) {
	e.bytes([]byte(v))
}

func EncodePayIdList(l PayIdList) []byte {
	var e encoder
	e.u64(uint64(len(l.PayIds)))
	for _, id := range l.PayIds {
		e.str(id)
	}
	e.str(l.NextListHash)
	return e.buf.Bytes()
}

func EncodeSimplexState(s SimplexState) []byte {
	var e encoder
	e.str(s.ChannelId)
	e.str(string(s.PeerFrom))
	e.u64(s.SeqNum)
	e.u64(s.TransferOut)
	e.bytes(EncodePayIdList(s.PendingPayIds))
	e.i64(s.LastPayResolveDeadline)
	e.u64(s.TotalPendingAmount)
	return e.buf.Bytes()
}

func encodeCondition(e *encoder, c Condition) {
	e.u64(uint64(c.Type))
	e.bytes(c.HashLock)
	e.str(string(c.DeployedContractAddress))
	e.str(c.VirtualContractAddress)
	e.bytes(c.ArgsForQueryOutcome)
	e.bytes(c.ArgsForQueryFinalization)
}

func EncodeConditionalPay(p ConditionalPay) []byte {
	var e encoder
	e.str(string(p.Src))
	e.str(string(p.Dest))
	e.u64(uint64(len(p.Conditions)))
	for _, c := range p.Conditions {
		encodeCondition(&e, c)
	}
	e.u64(uint64(p.TransferFunc.LogicType))
	e.u64(p.TransferFunc.MaxAmount)
	e.i64(p.ResolveDeadline)
	e.i64(p.ResolveTimeout)
	e.str(string(p.PayResolver))
	return e.buf.Bytes()
}

// EncodeVouchedResult is the message src and dest co-sign to vouch a
// specific amount for a payment.
func EncodeVouchedResult(p ConditionalPay, amount uint64) []byte {
	var e encoder
	e.bytes(EncodeConditionalPay(p))
	e.u64(amount)
	return e.buf.Bytes()
}

func encodeToken(e *encoder, t Token) {
	e.u64(uint64(t.Type))
	e.str(string(t.Address))
}

func EncodeChannelInitializer(ci ChannelInitializer) []byte {
	var e encoder
	e.i64(ci.OpenDeadline)
	e.i64(ci.DisputeTimeout)
	encodeToken(&e, ci.Token)
	for _, p := range ci.Peers {
		e.str(string(p.Addr))
		e.u64(p.Deposit)
	}
	return e.buf.Bytes()
}

func EncodeCooperativeWithdrawInfo(wi CooperativeWithdrawInfo) []byte {
	var e encoder
	e.str(wi.ChannelId)
	e.u64(wi.SeqNum)
	e.str(string(wi.Receiver))
	e.u64(wi.Amount)
	e.i64(wi.WithdrawDeadline)
	e.str(wi.RecipientChannelId)
	return e.buf.Bytes()
}

func EncodeCooperativeSettleInfo(si CooperativeSettleInfo) []byte {
	var e encoder
	e.str(si.ChannelId)
	e.u64(si.SeqNum)
	e.u64(si.SettleBalance[0])
	e.u64(si.SettleBalance[1])
	e.i64(si.SettleDeadline)
	return e.buf.Bytes()
}

func EncodeChannelMigrationInfo(mi ChannelMigrationInfo) []byte {
	var e encoder
	e.str(mi.ChannelId)
	e.str(string(mi.FromLedger))
	e.str(string(mi.ToLedger))
	e.i64(mi.MigrationDeadline)
	return e.buf.Bytes()
}

// PayIdFor derives a payment's identifier, scoped to one resolver
// deployment so byte-identical payments never collide across resolvers.
func PayIdFor(payBytes []byte, resolver Address) string {
	inner := Hash(payBytes)
	return hex.EncodeToString(Hash(append(inner, []byte(resolver)...)))
}

// ChannelIdFor derives a channel's identifier from its initializer and
// the ledger it was opened on.
func ChannelIdFor(initializerBytes []byte, ledger Address) string {
	return hex.EncodeToString(Hash(append(initializerBytes, []byte(ledger)...)))
}

// CheckedAdd adds a and b, failing instead of wrapping.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}
