package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/conference-reservation/internal/model"
	"github.com/iliyamo/conference-reservation/internal/repository"
)

// EntitySync applies population updates from the registration system.  A
// lower population lowers the quota for future reservations; seats already
// held are kept.
type EntitySync struct {
	ledger *repository.Ledger
	cache  *ProjectorCache
	log    *zap.Logger
}

func NewEntitySync(ledger *repository.Ledger, cache *ProjectorCache, log *zap.Logger) *EntitySync {
	if log == nil {
		log = zap.NewNop()
	}
	return &EntitySync{ledger: ledger, cache: cache, log: log}
}

// SyncPopulation creates or updates an entity.
func (s *EntitySync) SyncPopulation(ctx context.Context, e model.Entity) error {
	e.ID = strings.TrimSpace(e.ID)
	if e.ID == "" {
		return invalid("entity id is required")
	}
	if e.Population < 0 {
		return invalid("population of %s must not be negative", e.ID)
	}
	err := s.ledger.Update(ctx, func(tx *repository.LedgerTx) error {
		return tx.UpsertEntity(tx.Context(), e)
	})
	if err != nil {
		return storageError("sync population", err)
	}
	s.cache.InvalidateEntities(ctx, e.ID)
	s.log.Info("entity population synced", zap.String("entity_id", e.ID), zap.Int("population", e.Population))
	return nil
}
