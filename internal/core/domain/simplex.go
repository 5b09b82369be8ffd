package domain

import (
	"encoding/hex"
)

// PayIdList is one chunk of a channel's pending-payment chain. Only the
// head chunk is referenced by a simplex state; each chunk commits to the
// next one by hash so chunks can be cleared lazily, in order.
type PayIdList struct {
	PayIds       []string
	NextListHash string // empty for the tail chunk
}

func (l PayIdList) Hash() string {
	return hex.EncodeToString(Hash(EncodePayIdList(l)))
}

func (l PayIdList) IsEmpty() bool {
	return len(l.PayIds) == 0 && l.NextListHash == ""
}

// SimplexState is one peer's signed, directional view of a channel:
// the cumulative amount it has sent and the payments still pending.
// SeqNum 0 is the null state; it carries nothing and needs only the
// submitting peer's signature.
type SimplexState struct {
	ChannelId              string
	PeerFrom               Address
	SeqNum                 uint64
	TransferOut            uint64
	PendingPayIds          PayIdList
	LastPayResolveDeadline int64
	TotalPendingAmount     uint64
}

func (s SimplexState) IsNull() bool {
	return s.SeqNum == 0
}

func (s SimplexState) Snapshot() SimplexSnapshot {
	return SimplexSnapshot{
		SeqNum:                 s.SeqNum,
		TransferOut:            s.TransferOut,
		PendingPayOut:          s.TotalPendingAmount,
		NextPayIdListHash:      s.PendingPayIds.Hash(),
		LastPayResolveDeadline: s.LastPayResolveDeadline,
	}
}

// SignedSimplexState carries a simplex state with both peers' signatures
// over its canonical encoding, indexed by canonical peer order. For a
// null state only the submitter's slot is set.
type SignedSimplexState struct {
	State SimplexState
	Sigs  [2][]byte
}

// Verify checks the signatures against the channel's peers. A null state
// is accepted with a single valid signature from its PeerFrom.
func (s *SignedSimplexState) Verify(peers [2]Address) error {
	msg := EncodeSimplexState(s.State)
	if s.State.IsNull() {
		idx := 0
		if peers[1] == s.State.PeerFrom {
			idx = 1
		} else if peers[0] != s.State.PeerFrom {
			return ErrNotPeer
		}
		return VerifySingleSigned(msg, s.Sigs[idx], s.State.PeerFrom)
	}
	return VerifyCoSigned(msg, s.Sigs, peers)
}
