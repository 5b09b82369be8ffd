package wallet

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/duplexpay/duplexd/internal/core/domain"
	"github.com/duplexpay/duplexd/internal/core/ports"
)

const walletDir = "wallet"

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrDuplicateWalletId = errors.New("duplicate wallet id")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)

// Service is the reference custody collaborator: per-wallet balances
// keyed by channel id, with an append-only operation log. It moves
// value on request and knows nothing about channel semantics.
type Service struct {
	mu    sync.Mutex
	store *badgerhold.Store
}

func NewService(baseDir string, logger badger.Logger) (*Service, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, walletDir)
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = logger
	if dir == "" {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}
	store, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet store: %s", err)
	}
	return &Service{store: store}, nil
}

var _ ports.CustodyService = (*Service)(nil)

func (s *Service) OpenWallet(ctx context.Context, walletId string, operator domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.store.Insert(walletId, walletData{
		WalletId: walletId,
		Operator: string(operator),
		Balances: map[string]uint64{},
	})
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return fmt.Errorf("%w: %s", ErrDuplicateWalletId, walletId)
	}
	return err
}

func (s *Service) Deposit(ctx context.Context, walletId string, token domain.Token, from domain.Address, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.get(walletId)
	if err != nil {
		return err
	}
	w.Balances[token.Key()] += amount
	if err := s.store.Update(walletId, *w); err != nil {
		return err
	}
	return s.logOp(walletId, "deposit", token, string(from), amount)
}

func (s *Service) Withdraw(ctx context.Context, walletId string, token domain.Token, recipient domain.Address, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.get(walletId)
	if err != nil {
		return err
	}
	if w.Balances[token.Key()] < amount {
		return ErrInsufficientFunds
	}
	w.Balances[token.Key()] -= amount
	if err := s.store.Update(walletId, *w); err != nil {
		return err
	}
	return s.logOp(walletId, "withdraw", token, string(recipient), amount)
}

func (s *Service) TransferToWallet(ctx context.Context, fromWalletId, toWalletId string, token domain.Token, recipient domain.Address, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, err := s.get(fromWalletId)
	if err != nil {
		return err
	}
	to, err := s.get(toWalletId)
	if err != nil {
		return err
	}
	if from.Balances[token.Key()] < amount {
		return ErrInsufficientFunds
	}
	from.Balances[token.Key()] -= amount
	to.Balances[token.Key()] += amount
	if err := s.store.Update(fromWalletId, *from); err != nil {
		return err
	}
	if err := s.store.Update(toWalletId, *to); err != nil {
		return err
	}
	return s.logOp(fromWalletId, "transfer:"+toWalletId, token, string(recipient), amount)
}

func (s *Service) GetBalance(ctx context.Context, walletId string, token domain.Token) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.get(walletId)
	if err != nil {
		return 0, err
	}
	return w.Balances[token.Key()], nil
}

func (s *Service) TransferOperatorship(ctx context.Context, walletId string, newOperator domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.get(walletId)
	if err != nil {
		return err
	}
	w.Operator = string(newOperator)
	return s.store.Update(walletId, *w)
}

func (s *Service) Close() {
	// nolint:all
	s.store.Close()
}

func (s *Service) get(walletId string) (*walletData, error) {
	var w walletData
	err := s.store.Get(walletId, &w)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, walletId)
	}
	if err != nil {
		return nil, err
	}
	if w.Balances == nil {
		w.Balances = map[string]uint64{}
	}
	return &w, nil
}

func (s *Service) logOp(walletId, kind string, token domain.Token, party string, amount uint64) error {
	return s.store.Insert(uuid.NewString(), opRecord{
		WalletId: walletId,
		Kind:     kind,
		Token:    token.Key(),
		Party:    party,
		Amount:   amount,
	})
}

type walletData struct {
	WalletId string
	Operator string
	Balances map[string]uint64
}

type opRecord struct {
	WalletId string
	Kind     string
	Token    string
	Party    string
	Amount   uint64
}
