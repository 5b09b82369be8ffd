package web

import (
	"encoding/hex"
	"fmt"

	"github.com/duplexpay/duplexd/internal/core/domain"
)

type tokenDTO struct {
	Type    int    `json:"type"`
	Address string `json:"address"`
}

func (d tokenDTO) toDomain() domain.Token {
	return domain.Token{Type: domain.TokenType(d.Type), Address: domain.Address(d.Address)}
}

type sigsDTO [2]string

func (d sigsDTO) toDomain() ([2][]byte, error) {
	var sigs [2][]byte
	for i, s := range d {
		if s == "" {
			continue
		}
		raw, err := hex.DecodeString(s)
		if err != nil {
			return sigs, fmt.Errorf("malformed signature %d: %w", i, err)
		}
		sigs[i] = raw
	}
	return sigs, nil
}

type openChannelRequest struct {
	OpenDeadline   int64    `json:"openDeadline"`
	DisputeTimeout int64    `json:"disputeTimeout"`
	Token          tokenDTO `json:"token"`
	Peers          [2]struct {
		Addr    string `json:"addr"`
		Deposit uint64 `json:"deposit"`
	} `json:"peers"`
	Sigs sigsDTO `json:"sigs"`
}

func (d openChannelRequest) toDomain() (domain.OpenChannelRequest, error) {
	sigs, err := d.Sigs.toDomain()
	if err != nil {
		return domain.OpenChannelRequest{}, err
	}
	init := domain.ChannelInitializer{
		OpenDeadline:   d.OpenDeadline,
		DisputeTimeout: d.DisputeTimeout,
		Token:          d.Token.toDomain(),
	}
	for i, p := range d.Peers {
		init.Peers[i] = domain.PeerInit{Addr: domain.Address(p.Addr), Deposit: p.Deposit}
	}
	return domain.OpenChannelRequest{Initializer: init, Sigs: sigs}, nil
}

type depositRequest struct {
	Receiver string `json:"receiver"`
	From     string `json:"from"`
	Amount   uint64 `json:"amount"`
	FromPool bool   `json:"fromPool"`
}

type payIdListDTO struct {
	PayIds       []string `json:"payIds"`
	NextListHash string   `json:"nextListHash"`
}

func (d payIdListDTO) toDomain() domain.PayIdList {
	return domain.PayIdList{PayIds: d.PayIds, NextListHash: d.NextListHash}
}

type simplexStateDTO struct {
	ChannelId              string       `json:"channelId"`
	PeerFrom               string       `json:"peerFrom"`
	SeqNum                 uint64       `json:"seqNum"`
	TransferOut            uint64       `json:"transferOut"`
	PendingPayIds          payIdListDTO `json:"pendingPayIds"`
	LastPayResolveDeadline int64        `json:"lastPayResolveDeadline"`
	TotalPendingAmount     uint64       `json:"totalPendingAmount"`
}

type signedSimplexStateDTO struct {
	State simplexStateDTO `json:"state"`
	Sigs  sigsDTO         `json:"sigs"`
}

func (d signedSimplexStateDTO) toDomain() (domain.SignedSimplexState, error) {
	sigs, err := d.Sigs.toDomain()
	if err != nil {
		return domain.SignedSimplexState{}, err
	}
	return domain.SignedSimplexState{
		State: domain.SimplexState{
			ChannelId:              d.State.ChannelId,
			PeerFrom:               domain.Address(d.State.PeerFrom),
			SeqNum:                 d.State.SeqNum,
			TransferOut:            d.State.TransferOut,
			PendingPayIds:          d.State.PendingPayIds.toDomain(),
			LastPayResolveDeadline: d.State.LastPayResolveDeadline,
			TotalPendingAmount:     d.State.TotalPendingAmount,
		},
		Sigs: sigs,
	}, nil
}

type signedStatesRequest struct {
	States []signedSimplexStateDTO `json:"states"`
}

func (d signedStatesRequest) toDomain() ([]domain.SignedSimplexState, error) {
	states := make([]domain.SignedSimplexState, 0, len(d.States))
	for _, s := range d.States {
		state, err := s.toDomain()
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

type intendWithdrawRequest struct {
	Caller             string `json:"caller"`
	Amount             uint64 `json:"amount"`
	RecipientChannelId string `json:"recipientChannelId"`
}

type vetoWithdrawRequest struct {
	Caller string `json:"caller"`
}

type cooperativeWithdrawRequest struct {
	ChannelId          string  `json:"channelId"`
	SeqNum             uint64  `json:"seqNum"`
	Receiver           string  `json:"receiver"`
	Amount             uint64  `json:"amount"`
	WithdrawDeadline   int64   `json:"withdrawDeadline"`
	RecipientChannelId string  `json:"recipientChannelId"`
	Sigs               sigsDTO `json:"sigs"`
}

func (d cooperativeWithdrawRequest) toDomain() (domain.CooperativeWithdrawRequest, error) {
	sigs, err := d.Sigs.toDomain()
	if err != nil {
		return domain.CooperativeWithdrawRequest{}, err
	}
	return domain.CooperativeWithdrawRequest{
		Info: domain.CooperativeWithdrawInfo{
			ChannelId:          d.ChannelId,
			SeqNum:             d.SeqNum,
			Receiver:           domain.Address(d.Receiver),
			Amount:             d.Amount,
			WithdrawDeadline:   d.WithdrawDeadline,
			RecipientChannelId: d.RecipientChannelId,
		},
		Sigs: sigs,
	}, nil
}

type clearPaysRequest struct {
	PeerFrom string       `json:"peerFrom"`
	List     payIdListDTO `json:"list"`
}

type cooperativeSettleRequest struct {
	ChannelId      string    `json:"channelId"`
	SeqNum         uint64    `json:"seqNum"`
	SettleBalance  [2]uint64 `json:"settleBalance"`
	SettleDeadline int64     `json:"settleDeadline"`
	Sigs           sigsDTO   `json:"sigs"`
}

func (d cooperativeSettleRequest) toDomain() (domain.CooperativeSettleRequest, error) {
	sigs, err := d.Sigs.toDomain()
	if err != nil {
		return domain.CooperativeSettleRequest{}, err
	}
	return domain.CooperativeSettleRequest{
		Info: domain.CooperativeSettleInfo{
			ChannelId:      d.ChannelId,
			SeqNum:         d.SeqNum,
			SettleBalance:  d.SettleBalance,
			SettleDeadline: d.SettleDeadline,
		},
		Sigs: sigs,
	}, nil
}

type conditionDTO struct {
	Type                     int    `json:"type"`
	HashLock                 string `json:"hashLock"`
	DeployedContractAddress  string `json:"deployedContractAddress"`
	VirtualContractAddress   string `json:"virtualContractAddress"`
	ArgsForQueryOutcome      string `json:"argsForQueryOutcome"`
	ArgsForQueryFinalization string `json:"argsForQueryFinalization"`
}

func (d conditionDTO) toDomain() (domain.Condition, error) {
	cond := domain.Condition{
		Type:                    domain.ConditionType(d.Type),
		DeployedContractAddress: domain.Address(d.DeployedContractAddress),
		VirtualContractAddress:  d.VirtualContractAddress,
	}
	for _, field := range []struct {
		src string
		dst *[]byte
	}{
		{d.HashLock, &cond.HashLock},
		{d.ArgsForQueryOutcome, &cond.ArgsForQueryOutcome},
		{d.ArgsForQueryFinalization, &cond.ArgsForQueryFinalization},
	} {
		if field.src == "" {
			continue
		}
		raw, err := hex.DecodeString(field.src)
		if err != nil {
			return domain.Condition{}, fmt.Errorf("malformed condition field: %w", err)
		}
		*field.dst = raw
	}
	return cond, nil
}

type conditionalPayDTO struct {
	Src             string         `json:"src"`
	Dest            string         `json:"dest"`
	Conditions      []conditionDTO `json:"conditions"`
	LogicType       int            `json:"logicType"`
	MaxAmount       uint64         `json:"maxAmount"`
	ResolveDeadline int64          `json:"resolveDeadline"`
	ResolveTimeout  int64          `json:"resolveTimeout"`
	PayResolver     string         `json:"payResolver"`
}

func (d conditionalPayDTO) toDomain() (domain.ConditionalPay, error) {
	pay := domain.ConditionalPay{
		Src:             domain.Address(d.Src),
		Dest:            domain.Address(d.Dest),
		TransferFunc:    domain.TransferFunc{LogicType: domain.LogicType(d.LogicType), MaxAmount: d.MaxAmount},
		ResolveDeadline: d.ResolveDeadline,
		ResolveTimeout:  d.ResolveTimeout,
		PayResolver:     domain.Address(d.PayResolver),
	}
	for _, c := range d.Conditions {
		cond, err := c.toDomain()
		if err != nil {
			return domain.ConditionalPay{}, err
		}
		pay.Conditions = append(pay.Conditions, cond)
	}
	return pay, nil
}

type resolveByConditionsRequest struct {
	Pay       conditionalPayDTO `json:"pay"`
	Preimages []string          `json:"preimages"`
}

type resolveByVouchedResultRequest struct {
	Pay     conditionalPayDTO `json:"pay"`
	Amount  uint64            `json:"amount"`
	SigSrc  string            `json:"sigSrc"`
	SigDest string            `json:"sigDest"`
}

type channelResponse struct {
	Id                        string    `json:"id"`
	Peers                     [2]string `json:"peers"`
	Token                     tokenDTO  `json:"token"`
	Status                    string    `json:"status"`
	Deposits                  [2]uint64 `json:"deposits"`
	Withdrawals               [2]uint64 `json:"withdrawals"`
	SeqNums                   [2]uint64 `json:"seqNums"`
	DisputeTimeout            int64     `json:"disputeTimeout"`
	SettleFinalizedTime       int64     `json:"settleFinalizedTime"`
	CooperativeWithdrawSeqNum uint64    `json:"cooperativeWithdrawSeqNum"`
}

func toChannelResponse(c *domain.Channel) channelResponse {
	return channelResponse{
		Id:                        c.Id,
		Peers:                     [2]string{string(c.Peers[0].Addr), string(c.Peers[1].Addr)},
		Token:                     tokenDTO{Type: int(c.Token.Type), Address: string(c.Token.Address)},
		Status:                    c.Status.String(),
		Deposits:                  [2]uint64{c.Peers[0].Deposit, c.Peers[1].Deposit},
		Withdrawals:               [2]uint64{c.Peers[0].Withdrawal, c.Peers[1].Withdrawal},
		SeqNums:                   [2]uint64{c.Peers[0].State.SeqNum, c.Peers[1].State.SeqNum},
		DisputeTimeout:            c.DisputeTimeout,
		SettleFinalizedTime:       c.SettleFinalizedTime,
		CooperativeWithdrawSeqNum: c.CooperativeWithdrawSeqNum,
	}
}

type payResultResponse struct {
	PayId           string `json:"payId"`
	Amount          uint64 `json:"amount"`
	ResolveDeadline int64  `json:"resolveDeadline"`
}
