package application

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/duplexpay/duplexd/internal/core/domain"
)

// MigrateChannelFrom moves one channel's full record from the old ledger
// instance into this one, within a single call. The old channel becomes
// terminally migrated, the identical channel id re-opens operable here,
// and custody of the funds is re-pointed to this instance. The handoff
// either fully succeeds or leaves both ledgers untouched.
func (s *LedgerService) MigrateChannelFrom(ctx context.Context, old *LedgerService, req domain.ChannelMigrationRequest) error {
	info := req.Info
	if info.FromLedger != old.addr || info.ToLedger != s.addr {
		return domain.ErrLedgerMismatch
	}
	if s.clock.Now() > info.MigrationDeadline {
		return domain.ErrMigrationDeadlinePassed
	}

	channel, err := old.GetChannel(ctx, info.ChannelId)
	if err != nil {
		return err
	}
	if channel.Status != domain.ChannelOperable {
		return fmt.Errorf("%w: status %s", domain.ErrChannelNotOperable, channel.Status)
	}
	msg := domain.EncodeChannelMigrationInfo(info)
	if err := domain.VerifyCoSigned(msg, req.Sigs, channel.PeerAddrs()); err != nil {
		return err
	}
	if existing, err := s.repos.Channels().Get(ctx, info.ChannelId); err != nil {
		return err
	} else if existing != nil {
		return domain.ErrOccupiedChannelId
	}

	// All checks passed; apply with rollback on any late failure.
	if err := s.custody.TransferOperatorship(ctx, info.ChannelId, s.addr); err != nil {
		return fmt.Errorf("failed to re-point custody: %w", err)
	}

	imported := *channel
	imported.Status = domain.ChannelOperable
	if err := s.repos.Channels().Add(ctx, imported); err != nil {
		s.rollbackCustody(ctx, info.ChannelId, old.addr)
		return err
	}

	exported := *channel
	exported.Status = domain.ChannelMigrated
	if err := old.repos.Channels().Update(ctx, exported); err != nil {
		s.rollbackCustody(ctx, info.ChannelId, old.addr)
		imported.Status = domain.ChannelMigrated
		if rbErr := s.repos.Channels().Update(ctx, imported); rbErr != nil {
			log.WithError(rbErr).Error("failed to roll back imported channel")
		}
		return err
	}

	log.WithFields(log.Fields{
		"channelId": info.ChannelId,
		"oldLedger": old.addr,
		"newLedger": s.addr,
	}).Info("migrated channel")
	old.bus.Pub(domain.MigrateChannelEvent{
		ChannelId: info.ChannelId,
		OldLedger: old.addr,
		NewLedger: s.addr,
	}, domain.TopicMigrateChannelTo)
	s.bus.Pub(domain.MigrateChannelEvent{
		ChannelId: info.ChannelId,
		OldLedger: old.addr,
		NewLedger: s.addr,
	}, domain.TopicMigrateChannelFrom)
	return nil
}

func (s *LedgerService) rollbackCustody(ctx context.Context, walletId string, oldOperator domain.Address) {
	if err := s.custody.TransferOperatorship(ctx, walletId, oldOperator); err != nil {
		log.WithError(err).Error("failed to roll back custody operatorship")
	}
}
