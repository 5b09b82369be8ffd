package db

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/duplexpay/duplexd/internal/core/domain"
	"github.com/duplexpay/duplexd/internal/core/ports"
	"github.com/duplexpay/duplexd/internal/infrastructure/db/badgerdb"
)

type ServiceConfig struct {
	DbType string
	// BaseDir is where the stores live; empty means in-memory.
	BaseDir string
	Logger  badger.Logger
}

type service struct {
	channelRepo   domain.ChannelRepository
	payResultRepo domain.PayResultRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	switch config.DbType {
	case "badger":
		channelRepo, err := badgerdb.NewChannelRepository(config.BaseDir, config.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open channel db: %s", err)
		}
		payResultRepo, err := badgerdb.NewPayResultRepository(config.BaseDir, config.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open pay result db: %s", err)
		}
		return &service{channelRepo, payResultRepo}, nil
	default:
		return nil, fmt.Errorf("unknown db type %q, must be badger", config.DbType)
	}
}

func (s *service) Channels() domain.ChannelRepository {
	return s.channelRepo
}

func (s *service) PayResults() domain.PayResultRepository {
	return s.payResultRepo
}

func (s *service) Close() {
	s.channelRepo.Close()
	s.payResultRepo.Close()
}
