package application

import (
	"context"
	"fmt"

	"github.com/cskr/pubsub"
	log "github.com/sirupsen/logrus"

	"github.com/duplexpay/duplexd/internal/core/domain"
	"github.com/duplexpay/duplexd/internal/core/ports"
)

// PayResolver turns a payment's conditions into a final amount and
// writes it into the registry. Payment ids are scoped to the resolver's
// own address, so distinct resolver deployments never collide.
type PayResolver struct {
	addr     domain.Address
	registry *PayRegistry
	conds    ports.ConditionClient
	virt     ports.VirtResolver
	clock    ports.Clock
	bus      *pubsub.PubSub
}

func NewPayResolver(
	addr domain.Address,
	registry *PayRegistry,
	conds ports.ConditionClient,
	virt ports.VirtResolver,
	clock ports.Clock,
	bus *pubsub.PubSub,
) *PayResolver {
	return &PayResolver{addr: addr, registry: registry, conds: conds, virt: virt, clock: clock, bus: bus}
}

func (s *PayResolver) Addr() domain.Address {
	return s.addr
}

// PayIdOf returns the id the resolver assigns to a payment.
func (s *PayResolver) PayIdOf(pay domain.ConditionalPay) string {
	return domain.PayIdFor(domain.EncodeConditionalPay(pay), s.addr)
}

// ResolvePaymentByConditions evaluates the payment's conditions with the
// supplied hash-lock preimages and records the computed amount.
func (s *PayResolver) ResolvePaymentByConditions(
	ctx context.Context, pay domain.ConditionalPay, preimages [][]byte,
) (domain.PayResult, error) {
	amount, err := s.computeAmount(ctx, pay, preimages)
	if err != nil {
		return domain.PayResult{}, err
	}
	return s.resolvePayment(ctx, pay, amount, false)
}

// ResolvePaymentByVouchedResult records an amount both src and dest
// co-signed directly, bypassing condition evaluation.
func (s *PayResolver) ResolvePaymentByVouchedResult(
	ctx context.Context, vouched domain.VouchedCondPayResult,
) (domain.PayResult, error) {
	pay := vouched.Pay
	msg := domain.EncodeVouchedResult(pay, vouched.Amount)
	if err := domain.VerifySingleSigned(msg, vouched.SigSrc, pay.Src); err != nil {
		return domain.PayResult{}, err
	}
	if err := domain.VerifySingleSigned(msg, vouched.SigDest, pay.Dest); err != nil {
		return domain.PayResult{}, err
	}
	if vouched.Amount > pay.TransferFunc.MaxAmount {
		return domain.PayResult{}, domain.ErrExceedsMaxAmount
	}
	return s.resolvePayment(ctx, pay, vouched.Amount, true)
}

// resolvePayment applies the shared deadline and monotonicity rules and
// stores the result. A vouched amount must strictly increase; a computed
// amount only replaces the stored one when larger.
func (s *PayResolver) resolvePayment(
	ctx context.Context, pay domain.ConditionalPay, amount uint64, vouched bool,
) (domain.PayResult, error) {
	payId := s.PayIdOf(pay)
	now := s.clock.Now()

	curAmt, curDeadline, err := s.registry.GetInfo(ctx, payId)
	if err != nil {
		return domain.PayResult{}, err
	}
	if curDeadline > 0 {
		// Resolved before: updates are only accepted inside the
		// on-chain resolve window.
		if now > curDeadline {
			return domain.PayResult{}, domain.ErrResolveTimeoutExpired
		}
	} else if now > pay.ResolveDeadline {
		return domain.PayResult{}, domain.ErrDeadlinePassed
	}

	if vouched && amount <= curAmt {
		return domain.PayResult{}, domain.ErrAmountNotIncreasing
	}
	if amount < curAmt {
		amount = curAmt
	}

	var deadline int64
	switch {
	case amount == pay.TransferFunc.MaxAmount:
		// No further increase is possible, so the result is final now.
		deadline = now
	case curDeadline > 0:
		deadline = curDeadline
	default:
		deadline = now + pay.ResolveTimeout
	}

	result := domain.PayResult{PayId: payId, Amount: amount, ResolveDeadline: deadline}
	if err := s.registry.UpdateResult(ctx, result); err != nil {
		return domain.PayResult{}, err
	}

	log.WithFields(log.Fields{
		"payId":    payId,
		"amount":   amount,
		"deadline": deadline,
	}).Info("resolved payment")
	s.bus.Pub(domain.ResolvePaymentEvent{
		PayId:           payId,
		Amount:          amount,
		ResolveDeadline: deadline,
	}, domain.TopicResolvePayment)
	return result, nil
}

// computeAmount evaluates conditions under the payment's logic type.
// Preimages are consumed in hash-lock condition order and every one of
// them must match, whatever the logic type.
func (s *PayResolver) computeAmount(
	ctx context.Context, pay domain.ConditionalPay, preimages [][]byte,
) (uint64, error) {
	next := 0
	for _, cond := range pay.Conditions {
		if cond.Type != domain.ConditionHashLock {
			continue
		}
		if next >= len(preimages) || !cond.MatchesPreimage(preimages[next]) {
			return 0, domain.ErrWrongPreimage
		}
		next++
	}

	maxAmount := pay.TransferFunc.MaxAmount
	if !pay.HasContractConditions() {
		// Hash locks only, all satisfied above.
		return maxAmount, nil
	}

	switch pay.TransferFunc.LogicType {
	case domain.LogicBooleanAnd:
		for _, cond := range pay.Conditions {
			outcome, err := s.booleanOutcome(ctx, cond)
			if err != nil {
				return 0, err
			}
			if !outcome {
				return 0, nil
			}
		}
		return maxAmount, nil

	case domain.LogicBooleanOr:
		for _, cond := range pay.Conditions {
			if cond.Type == domain.ConditionHashLock {
				continue
			}
			outcome, err := s.booleanOutcome(ctx, cond)
			if err != nil {
				return 0, err
			}
			if outcome {
				return maxAmount, nil
			}
		}
		return 0, nil

	case domain.LogicBooleanCircuit:
		return 0, domain.ErrNotImplemented

	case domain.LogicNumericAdd, domain.LogicNumericMax, domain.LogicNumericMin:
		return s.numericAmount(ctx, pay)

	default:
		return 0, fmt.Errorf("%w: unknown logic type %d", domain.ErrNotImplemented, pay.TransferFunc.LogicType)
	}
}

func (s *PayResolver) numericAmount(ctx context.Context, pay domain.ConditionalPay) (uint64, error) {
	var (
		amount uint64
		first  = true
	)
	for _, cond := range pay.Conditions {
		if cond.Type == domain.ConditionHashLock {
			continue
		}
		outcome, err := s.numericOutcome(ctx, cond)
		if err != nil {
			return 0, err
		}
		switch pay.TransferFunc.LogicType {
		case domain.LogicNumericAdd:
			amount, err = domain.CheckedAdd(amount, outcome)
			if err != nil {
				return 0, err
			}
		case domain.LogicNumericMax:
			if outcome > amount {
				amount = outcome
			}
		case domain.LogicNumericMin:
			if first || outcome < amount {
				amount = outcome
			}
		}
		first = false
	}
	if maxAmount := pay.TransferFunc.MaxAmount; amount > maxAmount {
		amount = maxAmount
	}
	return amount, nil
}

func (s *PayResolver) booleanOutcome(ctx context.Context, cond domain.Condition) (bool, error) {
	if cond.Type == domain.ConditionHashLock {
		// Already checked against its preimage.
		return true, nil
	}
	addr, err := s.conditionAddress(ctx, cond)
	if err != nil {
		return false, err
	}
	if err := s.requireFinalized(ctx, addr, cond); err != nil {
		return false, err
	}
	return s.conds.BooleanOutcome(ctx, addr, cond.ArgsForQueryOutcome)
}

func (s *PayResolver) numericOutcome(ctx context.Context, cond domain.Condition) (uint64, error) {
	addr, err := s.conditionAddress(ctx, cond)
	if err != nil {
		return 0, err
	}
	if err := s.requireFinalized(ctx, addr, cond); err != nil {
		return 0, err
	}
	return s.conds.NumericOutcome(ctx, addr, cond.ArgsForQueryOutcome)
}

func (s *PayResolver) requireFinalized(ctx context.Context, addr domain.Address, cond domain.Condition) error {
	finalized, err := s.conds.Finalized(ctx, addr, cond.ArgsForQueryFinalization)
	if err != nil {
		return err
	}
	if !finalized {
		return domain.ErrConditionNotFinalized
	}
	return nil
}

func (s *PayResolver) conditionAddress(ctx context.Context, cond domain.Condition) (domain.Address, error) {
	switch cond.Type {
	case domain.ConditionDeployedContract:
		return cond.DeployedContractAddress, nil
	case domain.ConditionVirtualContract:
		addr, err := s.virt.Resolve(ctx, cond.VirtualContractAddress)
		if err != nil {
			return "", fmt.Errorf("%w: %s", domain.ErrNonexistentCondition, cond.VirtualContractAddress)
		}
		return addr, nil
	default:
		return "", domain.ErrNonexistentCondition
	}
}
