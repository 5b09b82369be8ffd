package application_test

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/cskr/pubsub"
	"github.com/stretchr/testify/require"

	"github.com/duplexpay/duplexd/internal/core/application"
	"github.com/duplexpay/duplexd/internal/core/domain"
	"github.com/duplexpay/duplexd/internal/core/ports"
	"github.com/duplexpay/duplexd/internal/infrastructure/conditions"
	"github.com/duplexpay/duplexd/internal/infrastructure/db"
	scheduler "github.com/duplexpay/duplexd/internal/infrastructure/scheduler/gocron"
	"github.com/duplexpay/duplexd/internal/infrastructure/wallet"
)

const (
	ledgerAddr   = domain.Address("ledger-main")
	ownerAddr    = domain.Address("ledger-owner")
	resolverAddr = domain.Address("resolver-main")

	disputeTimeout = int64(100)
)

var ctx = context.Background()

// fakeClock lets tests move through deadlines and dispute windows.
type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64 {
	return c.now
}

func (c *fakeClock) advance(d int64) {
	c.now += d
}

type testPeer struct {
	priv *btcec.PrivateKey
	addr domain.Address
}

func (p testPeer) sign(t *testing.T, msg []byte) []byte {
	sig, err := domain.SignBytes(p.priv, msg)
	require.NoError(t, err)
	return sig
}

// genPeers returns two fresh peers already in canonical address order.
func genPeers(t *testing.T) (testPeer, testPeer) {
	privA, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	privB, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	a := testPeer{privA, domain.AddressFromPubKey(privA.PubKey())}
	b := testPeer{privB, domain.AddressFromPubKey(privB.PubKey())}
	if a.addr > b.addr {
		a, b = b, a
	}
	return a, b
}

type testEnv struct {
	t *testing.T

	ledger   *application.LedgerService
	resolver *application.PayResolver
	registry *application.PayRegistry
	conds    *conditions.Registry
	custody  *wallet.Service
	pool     *wallet.Pool
	clock    *fakeClock
	bus      *pubsub.PubSub
	sched    ports.SchedulerService

	alice testPeer // alice.addr < bob.addr
	bob   testPeer
}

func newTestEnv(t *testing.T) *testEnv {
	repoSvc, err := db.NewService(db.ServiceConfig{DbType: "badger"})
	require.NoError(t, err)
	t.Cleanup(repoSvc.Close)

	custody, err := wallet.NewService("", nil)
	require.NoError(t, err)
	t.Cleanup(custody.Close)

	sched := scheduler.NewScheduler()
	sched.Start()
	t.Cleanup(sched.Stop)

	env := &testEnv{
		t:       t,
		conds:   conditions.NewRegistry(),
		custody: custody,
		pool:    wallet.NewPool(custody),
		clock:   &fakeClock{now: 1000},
		bus:     application.NewEventBus(),
		sched:   sched,
	}
	env.registry = application.NewPayRegistry(repoSvc.PayResults(), env.clock, env.bus)
	env.resolver = application.NewPayResolver(
		resolverAddr, env.registry, env.conds, env.conds, env.clock, env.bus,
	)
	env.ledger = env.newLedger(ledgerAddr, repoSvc)
	env.alice, env.bob = genPeers(t)
	return env
}

// newLedger builds another ledger instance sharing this environment's
// custody, pool, registry, clock and bus, the way migration peers do.
func (e *testEnv) newLedger(addr domain.Address, repos ports.RepoManager) *application.LedgerService {
	if repos == nil {
		repoSvc, err := db.NewService(db.ServiceConfig{DbType: "badger"})
		require.NoError(e.t, err)
		e.t.Cleanup(repoSvc.Close)
		repos = repoSvc
	}
	return application.NewLedgerService(
		application.LedgerConfig{
			Addr:              addr,
			Owner:             ownerAddr,
			MinDisputeTimeout: 10,
			MaxDisputeTimeout: 100000,
		},
		repos, e.custody, e.pool, e.registry, e.clock, e.bus, e.sched,
		application.NewBalanceLimits(false, nil),
	)
}

func (e *testEnv) coSign(msg []byte) [2][]byte {
	return [2][]byte{e.alice.sign(e.t, msg), e.bob.sign(e.t, msg)}
}

func (e *testEnv) initializer(depositA, depositB uint64) domain.ChannelInitializer {
	return domain.ChannelInitializer{
		OpenDeadline:   e.clock.now + 100,
		DisputeTimeout: disputeTimeout,
		Peers: [2]domain.PeerInit{
			{Addr: e.alice.addr, Deposit: depositA},
			{Addr: e.bob.addr, Deposit: depositB},
		},
	}
}

func (e *testEnv) openChannel(depositA, depositB uint64) string {
	init := e.initializer(depositA, depositB)
	channelId, err := e.ledger.OpenChannel(ctx, domain.OpenChannelRequest{
		Initializer: init,
		Sigs:        e.coSign(domain.EncodeChannelInitializer(init)),
	})
	require.NoError(e.t, err)
	return channelId
}

// signedState co-signs a simplex state with both peers.
func (e *testEnv) signedState(state domain.SimplexState) domain.SignedSimplexState {
	return domain.SignedSimplexState{
		State: state,
		Sigs:  e.coSign(domain.EncodeSimplexState(state)),
	}
}

// nullState builds a seqNum-0 state signed only by its submitter.
func (e *testEnv) nullState(channelId string, from testPeer) domain.SignedSimplexState {
	state := domain.SimplexState{ChannelId: channelId, PeerFrom: from.addr}
	signed := domain.SignedSimplexState{State: state}
	idx := 0
	if from.addr == e.bob.addr {
		idx = 1
	}
	signed.Sigs[idx] = from.sign(e.t, domain.EncodeSimplexState(state))
	return signed
}

// hashLockPay builds a single-hash-lock payment and returns it with its
// preimage. Resolving it yields maxAmount.
func (e *testEnv) hashLockPay(maxAmount uint64, preimage []byte) domain.ConditionalPay {
	return domain.ConditionalPay{
		Src:  e.alice.addr,
		Dest: e.bob.addr,
		Conditions: []domain.Condition{{
			Type:     domain.ConditionHashLock,
			HashLock: domain.Hash(preimage),
		}},
		TransferFunc: domain.TransferFunc{
			LogicType: domain.LogicBooleanAnd,
			MaxAmount: maxAmount,
		},
		ResolveDeadline: e.clock.now + 1000,
		ResolveTimeout:  50,
		PayResolver:     resolverAddr,
	}
}

// resolvedPayId resolves a hash-lock payment and advances past its
// finalization point so settlement can clear it.
func (e *testEnv) resolvedPayId(maxAmount uint64, preimage []byte) string {
	pay := e.hashLockPay(maxAmount, preimage)
	result, err := e.resolver.ResolvePaymentByConditions(ctx, pay, [][]byte{preimage})
	require.NoError(e.t, err)
	e.clock.advance(result.ResolveDeadline - e.clock.now + 1)
	return result.PayId
}

func (e *testEnv) channelBalance(channelId string) uint64 {
	bal, err := e.custody.GetBalance(ctx, channelId, domain.Token{})
	require.NoError(e.t, err)
	return bal
}
