package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/duplexpay/duplexd/internal/core/domain"
)

const payDir = "pay"

type payResultRepository struct {
	store *badgerhold.Store
}

func NewPayResultRepository(baseDir string, logger badger.Logger) (domain.PayResultRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, payDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open pay result store: %s", err)
	}
	return &payResultRepository{store}, nil
}

func (r *payResultRepository) Get(ctx context.Context, payId string) (*domain.PayResult, error) {
	var data payResultData
	err := r.store.Get(payId, &data)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pay result: %w", err)
	}
	result := data.toPayResult()
	return &result, nil
}

func (r *payResultRepository) Set(ctx context.Context, result domain.PayResult) error {
	return r.store.Upsert(result.PayId, toPayResultData(result))
}

func (r *payResultRepository) Close() {
	// nolint:all
	r.store.Close()
}

type payResultData struct {
	PayId           string
	Amount          uint64
	ResolveDeadline int64
}

func toPayResultData(p domain.PayResult) payResultData {
	return payResultData{PayId: p.PayId, Amount: p.Amount, ResolveDeadline: p.ResolveDeadline}
}

func (d payResultData) toPayResult() domain.PayResult {
	return domain.PayResult{PayId: d.PayId, Amount: d.Amount, ResolveDeadline: d.ResolveDeadline}
}
