package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duplexpay/duplexd/internal/core/domain"
	"github.com/duplexpay/duplexd/internal/core/ports"
	"github.com/duplexpay/duplexd/internal/infrastructure/db"
)

var (
	ctx = context.Background()

	testChannel = domain.Channel{
		Id: "channel-1",
		Peers: [2]domain.PeerProfile{
			{
				Addr:       "aa11",
				Deposit:    100,
				Withdrawal: 20,
				Intent: domain.WithdrawIntent{
					Receiver:           "aa11",
					Amount:             10,
					RequestTime:        5000,
					RecipientChannelId: "channel-2",
				},
				State: domain.SimplexSnapshot{
					SeqNum:                 7,
					TransferOut:            40,
					PendingPayOut:          15,
					NextPayIdListHash:      "deadbeef",
					LastPayResolveDeadline: 6000,
				},
			},
			{
				Addr:    "bb22",
				Deposit: 200,
			},
		},
		Token:                     domain.Token{Type: domain.TokenContract, Address: "cc33"},
		Status:                    domain.ChannelSettling,
		DisputeTimeout:            100,
		SettleFinalizedTime:       5600,
		CooperativeWithdrawSeqNum: 3,
	}

	testPayResult = domain.PayResult{
		PayId:           "pay-1",
		Amount:          42,
		ResolveDeadline: 7000,
	}
)

func TestRepoManager(t *testing.T) {
	tests := []struct {
		name   string
		config db.ServiceConfig
	}{
		{
			name:   "badger in-memory",
			config: db.ServiceConfig{DbType: "badger"},
		},
		{
			name:   "badger on disk",
			config: db.ServiceConfig{DbType: "badger", BaseDir: t.TempDir()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := db.NewService(tt.config)
			require.NoError(t, err)
			defer svc.Close()

			testChannelRepository(t, svc)
			testPayResultRepository(t, svc)
		})
	}

	t.Run("unknown db type", func(t *testing.T) {
		_, err := db.NewService(db.ServiceConfig{DbType: "postgres"})
		require.Error(t, err)
	})
}

func testChannelRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("channel repository", func(t *testing.T) {
		repo := svc.Channels()

		got, err := repo.Get(ctx, testChannel.Id)
		require.NoError(t, err)
		require.Nil(t, got)

		require.NoError(t, repo.Add(ctx, testChannel))
		got, err = repo.Get(ctx, testChannel.Id)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, testChannel, *got)

		// Duplicate ids are rejected.
		require.Error(t, repo.Add(ctx, testChannel))

		updated := testChannel
		updated.Status = domain.ChannelClosed
		updated.Peers[0].Intent = domain.WithdrawIntent{}
		require.NoError(t, repo.Update(ctx, updated))
		got, err = repo.Get(ctx, testChannel.Id)
		require.NoError(t, err)
		require.Equal(t, updated, *got)

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
	})
}

func testPayResultRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("pay result repository", func(t *testing.T) {
		repo := svc.PayResults()

		got, err := repo.Get(ctx, testPayResult.PayId)
		require.NoError(t, err)
		require.Nil(t, got)

		require.NoError(t, repo.Set(ctx, testPayResult))
		got, err = repo.Get(ctx, testPayResult.PayId)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, testPayResult, *got)

		// Set upserts.
		updated := testPayResult
		updated.Amount = 60
		require.NoError(t, repo.Set(ctx, updated))
		got, err = repo.Get(ctx, testPayResult.PayId)
		require.NoError(t, err)
		require.Equal(t, updated, *got)
	})
}
