package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/rentease_backend/config"
	"github.com/mmdatafocus/rentease_backend/models"
	"github.com/mmdatafocus/rentease_backend/utils"
	"github.com/sirupsen/logrus"
)

type SweepSummary struct {
	TenantsProcessed int  `json:"tenants_processed"`
	TenantsFailed    int  `json:"tenants_failed"`
	BillsGenerated   int  `json:"bills_generated"`
	Skipped          bool `json:"skipped"`
}

// RunRentCycleSweep refreshes every active tenant's cached rent-cycle view
// from the receipt ledger and, on a month boundary, generates the new
// period's pending bills. The month boundary is detected via the persisted
// watermark, so a restarted instance neither re-runs nor skips a month.
// The wall-clock trigger (cron, admin endpoint) lives outside this core.
//
// When redis is configured the sweep is single-flight across instances;
// without redis it runs unguarded (sweeps are idempotent, just wasteful to
// double-run). Per-tenant failures are logged and skipped.
func RunRentCycleSweep(ctx context.Context, repo models.Repository, logger *logrus.Logger, now time.Time) (*SweepSummary, error) {
	summary := &SweepSummary{}

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "lock:cycle-sweep", 5*time.Minute, nil)
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				summary.Skipped = true
				return summary, nil
			}
			return nil, err
		}
		defer lock.Release(ctx)
	}

	month, year := models.CurrentPeriod(now)

	wm, err := repo.GetWatermark(ctx, models.CycleSweepWatermark)
	if err != nil {
		return nil, err
	}
	if wm == nil || wm.Before(month, year) {
		generated, err := GenerateBillingRun(ctx, repo, logger, month, year)
		if err != nil {
			return nil, err
		}
		summary.BillsGenerated = generated
		if err := repo.SetWatermark(ctx, models.CycleSweepWatermark, month, year); err != nil {
			return nil, err
		}
	}

	tenants, err := repo.ListActiveTenants(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, tenant := range tenants {
		if err := refreshTenantCycle(ctx, repo, tenant, month, year, now); err != nil {
			summary.TenantsFailed++
			config.LogError(logger, "rentCycleWorkflow.go", "RunRentCycleSweep", "refreshTenantCycle", tenant.ID, err)
			// Drop the possibly stale snapshot; readers fall back to the DB.
			_ = utils.InvalidateCycleSnapshot(tenant.ID)
			continue
		}
		summary.TenantsProcessed++
	}
	return summary, nil
}

func refreshTenantCycle(ctx context.Context, repo models.Repository, tenant *models.Tenant, month, year int, now time.Time) error {
	ledger, err := repo.TenantLedger(ctx, tenant.ID)
	if err != nil {
		return err
	}
	state := models.CalculateRentCycle(tenant.CycleInput(ledger.LastPaymentDate, ledger.TotalPaid, now))

	paid := false
	bills, err := repo.GetBillsForPeriod(ctx, tenant.ID, month, year)
	if err != nil {
		return err
	}
	if bill := models.PickLatestBill(bills); bill != nil {
		paid = bill.Status == models.BillStatusCompleted || bill.Status == models.BillStatusOverpaid
	}

	if state.RentStatus != tenant.RentStatus {
		if err := repo.EnqueueEvent(ctx, models.EventTypeCycleStateChange, tenant.ID, tenant.LandlordId, tenant.ID, "Tenant", state); err != nil {
			return err
		}
	}
	if err := repo.UpdateTenantCycleCache(ctx, tenant.ID, state, paid); err != nil {
		return err
	}
	// Best effort; the DB row was already refreshed.
	_ = utils.StoreCycleSnapshot(tenant.ID, state)
	return nil
}

// GenerateBillingRun creates the pending bill for every active tenant with
// an assigned unit for (month, year), ahead of any payment. Tenants that
// already have a bill for the period are left alone. Returns the number of
// bills created.
func GenerateBillingRun(ctx context.Context, repo models.Repository, logger *logrus.Logger, month, year int) (int, error) {
	if !models.ValidPeriod(month, year) {
		return 0, utils.ErrInvalidPeriod
	}
	tenants, err := repo.ListActiveTenants(ctx, 0)
	if err != nil {
		return 0, err
	}

	properties := map[int]*models.Property{}
	created := 0
	for _, tenant := range tenants {
		if tenant.PropertyId == 0 {
			continue
		}
		existing, err := repo.GetBillsForPeriod(ctx, tenant.ID, month, year)
		if err != nil {
			config.LogError(logger, "rentCycleWorkflow.go", "GenerateBillingRun", "GetBillsForPeriod", tenant.ID, err)
			continue
		}
		if len(existing) > 0 {
			continue
		}

		property := properties[tenant.PropertyId]
		if property == nil {
			property, err = repo.GetProperty(ctx, tenant.PropertyId)
			if err != nil {
				config.LogError(logger, "rentCycleWorkflow.go", "GenerateBillingRun", "GetProperty", tenant.PropertyId, err)
				continue
			}
			properties[tenant.PropertyId] = property
		}

		bill := models.NewBillForPeriod(tenant, property, month, year, nil)
		if err := repo.SaveBill(ctx, bill); err != nil {
			config.LogError(logger, "rentCycleWorkflow.go", "GenerateBillingRun", "SaveBill", tenant.ID, err)
			continue
		}
		created++
	}
	return created, nil
}
