package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/rentease_backend/config"
	"github.com/mmdatafocus/rentease_backend/models"
	"github.com/stretchr/testify/require"
)

func TestRunRentCycleSweep_GeneratesBillsOnMonthRollover(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)
	now := time.Now()
	month, year := models.CurrentPeriod(now)

	summary, err := RunRentCycleSweep(context.Background(), repo, config.GetLogger(), now)
	require.NoError(t, err)

	require.False(t, summary.Skipped)
	require.Equal(t, 2, summary.TenantsProcessed)
	require.Equal(t, 0, summary.TenantsFailed)
	require.Equal(t, 2, summary.BillsGenerated)
	require.Len(t, repo.bills, 2)
	for _, b := range repo.bills {
		require.Equal(t, month, b.Month)
		require.Equal(t, year, b.Year)
		require.Equal(t, models.BillStatusPending, b.Status)
	}

	wm, err := repo.GetWatermark(context.Background(), models.CycleSweepWatermark)
	require.NoError(t, err)
	require.NotNil(t, wm)
	require.Equal(t, month, wm.Month)
	require.Equal(t, year, wm.Year)
}

func TestRunRentCycleSweep_SecondRunIsIdempotent(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)
	now := time.Now()

	_, err := RunRentCycleSweep(context.Background(), repo, config.GetLogger(), now)
	require.NoError(t, err)

	again, err := RunRentCycleSweep(context.Background(), repo, config.GetLogger(), now)
	require.NoError(t, err)
	require.Equal(t, 0, again.BillsGenerated)
	require.Len(t, repo.bills, 2)
}

func TestRunRentCycleSweep_RefreshesCachedCycleView(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)
	now := time.Now()

	// Tenant 1 paid a full month today; the cached Overdue status is stale.
	repo.ledger = append(repo.ledger, &models.PaymentTransaction{
		ID: 1, BillId: 1, TenantId: 1,
		Amount: repo.tenants[1].MonthlyRentAmount, Method: models.PaymentMethodCash,
		PaymentDate: now,
	})

	_, err := RunRentCycleSweep(context.Background(), repo, config.GetLogger(), now)
	require.NoError(t, err)

	require.NotEqual(t, models.RentStatusOverdue, repo.tenants[1].RentStatus)
	require.NotNil(t, repo.tenants[1].NextDueDate)

	// Tenant 2 never paid: stays overdue with the never-paid sentinel.
	require.Equal(t, models.RentStatusOverdue, repo.tenants[2].RentStatus)
	require.Equal(t, models.NeverPaidDaysRemaining, repo.tenants[2].DaysRemaining)

	// Only the tenant whose status changed produced an event.
	require.Equal(t, []string{models.EventTypeCycleStateChange}, repo.eventTypes())
}

func TestRunRentCycleSweep_TenantsWithoutUnitGetNoBill(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)
	repo.tenants[2].PropertyId = 0

	summary, err := RunRentCycleSweep(context.Background(), repo, config.GetLogger(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, summary.BillsGenerated)
	require.Len(t, repo.bills, 1)
	require.Equal(t, 1, repo.bills[0].TenantId)
}

func TestGenerateBillingRun_SkipsExistingBills(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)
	month, year := models.CurrentPeriod(time.Now())

	created, err := GenerateBillingRun(context.Background(), repo, config.GetLogger(), month, year)
	require.NoError(t, err)
	require.Equal(t, 2, created)

	created, err = GenerateBillingRun(context.Background(), repo, config.GetLogger(), month, year)
	require.NoError(t, err)
	require.Equal(t, 0, created)
	require.Len(t, repo.bills, 2)
}

func TestGenerateBillingRun_InvalidPeriod(t *testing.T) {
	repo := newFakeRepository()
	_, err := GenerateBillingRun(context.Background(), repo, config.GetLogger(), 13, 2026)
	require.Error(t, err)
}
