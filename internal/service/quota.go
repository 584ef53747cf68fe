package service

import (
	"context"
	"errors"

	"github.com/iliyamo/conference-reservation/internal/model"
	"github.com/iliyamo/conference-reservation/internal/repository"
)

// QuotaPolicy turns an entity's registered population into its seat quota.
type QuotaPolicy struct {
	SeatsPerDelegate int
}

// Quota returns the maximum number of seats an entity of the given
// population may hold.
func (p QuotaPolicy) Quota(population int) int {
	per := p.SeatsPerDelegate
	if per < 1 {
		per = 1
	}
	if population <= 0 {
		return 0
	}
	return population * per
}

// QuotaCalculator derives allowances from the ledger.  It holds no state
// between calls; every allowance is read inside the caller's transaction.
type QuotaCalculator struct {
	policy QuotaPolicy
}

func NewQuotaCalculator(policy QuotaPolicy) *QuotaCalculator {
	return &QuotaCalculator{policy: policy}
}

// Policy returns the configured policy.
func (q *QuotaCalculator) Policy() QuotaPolicy { return q.policy }

// Allowance returns the entity's quota, the seats its delegates hold and
// what is left.  An unknown entity has population 0 and so no allowance.
func (q *QuotaCalculator) Allowance(ctx context.Context, tx *repository.LedgerTx, entityID string) (model.Allowance, error) {
	e, err := tx.Entity(ctx, entityID)
	if errors.Is(err, repository.ErrEntityNotFound) {
		return model.Allowance{EntityID: entityID}, nil
	}
	if err != nil {
		return model.Allowance{}, err
	}
	return q.allowanceOf(e), nil
}

func (q *QuotaCalculator) allowanceOf(e model.Entity) model.Allowance {
	a := model.Allowance{EntityID: e.ID, Quota: q.policy.Quota(e.Population), Used: e.SeatsHeld}
	if a.Quota > a.Used {
		a.Remaining = a.Quota - a.Used
	}
	return a
}
