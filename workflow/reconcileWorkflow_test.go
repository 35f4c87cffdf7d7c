package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/rentease_backend/config"
	"github.com/mmdatafocus/rentease_backend/models"
	"github.com/mmdatafocus/rentease_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func seedTenant(f *fakeRepository) *models.Tenant {
	tenant := &models.Tenant{
		ID:                1,
		LandlordId:        10,
		FullName:          "Okello James",
		PhoneNumber:       "+256775000123",
		PhoneLast3:        "123",
		PropertyId:        7,
		MonthlyRentAmount: decimal.NewFromInt(1000),
		PaymentDayOfMonth: 1,
		GracePeriodDays:   3,
		RentStatus:        models.RentStatusOverdue,
		IsActive:          utils.NewTrue(),
	}
	f.tenants[tenant.ID] = tenant
	f.properties[7] = &models.Property{ID: 7, LandlordId: 10, Name: "Kireka Flats"}
	return tenant
}

func currentPeriodInput(amount int64) ReconcileInput {
	month, year := models.CurrentPeriod(time.Now())
	return ReconcileInput{
		TenantId: 1,
		Month:    month,
		Year:     year,
		Amount:   decimal.NewFromInt(amount),
		Method:   models.PaymentMethodCash,
	}
}

func TestReconcilePayment_SettlesLazilyCreatedBill(t *testing.T) {
	repo := newFakeRepository()
	seedTenant(repo)

	result, err := ReconcilePayment(context.Background(), repo, config.GetLogger(), currentPeriodInput(1000))
	require.NoError(t, err)

	require.Equal(t, models.BillStatusCompleted, result.Bill.Status)
	require.True(t, decimal.NewFromInt(1000).Equal(result.Bill.AmountPaid))
	require.False(t, result.DuplicateBillDetected)

	require.Len(t, repo.ledger, 1)
	require.Equal(t, result.Bill.ID, repo.ledger[0].BillId)
	require.NotEmpty(t, repo.ledger[0].ReceiptNumber)
	require.NotEmpty(t, repo.ledger[0].CorrelationId)

	require.Equal(t, []string{models.EventTypeBillSettled}, repo.eventTypes())

	// Current-period payment refreshes the cached cycle view.
	require.True(t, result.CycleUpdated)
	require.True(t, *repo.tenants[1].CurrentMonthPaid)
	require.NotEqual(t, models.RentStatusOverdue, repo.tenants[1].RentStatus)
}

func TestReconcilePayment_PartialThenSettle(t *testing.T) {
	repo := newFakeRepository()
	seedTenant(repo)
	ctx := context.Background()
	logger := config.GetLogger()

	first, err := ReconcilePayment(ctx, repo, logger, currentPeriodInput(400))
	require.NoError(t, err)
	require.Equal(t, models.BillStatusPartial, first.Bill.Status)

	second, err := ReconcilePayment(ctx, repo, logger, currentPeriodInput(600))
	require.NoError(t, err)
	require.Equal(t, models.BillStatusCompleted, second.Bill.Status)

	// Same aggregate both times, two immutable receipts.
	require.Equal(t, first.Bill.ID, second.Bill.ID)
	require.Len(t, repo.bills, 1)
	require.Len(t, repo.ledger, 2)
	require.Equal(t, []string{models.EventTypePaymentRecorded, models.EventTypeBillSettled}, repo.eventTypes())
}

func TestReconcilePayment_OverpaymentEvent(t *testing.T) {
	repo := newFakeRepository()
	seedTenant(repo)

	result, err := ReconcilePayment(context.Background(), repo, config.GetLogger(), currentPeriodInput(1500))
	require.NoError(t, err)
	require.Equal(t, models.BillStatusOverpaid, result.Bill.Status)
	require.Equal(t, []string{models.EventTypeBillOverpaid}, repo.eventTypes())
}

func TestReconcilePayment_BackdatedLeavesCycleCacheAlone(t *testing.T) {
	repo := newFakeRepository()
	seedTenant(repo)

	in := currentPeriodInput(1000)
	in.Month, in.Year = previousPeriod(in.Month, in.Year)

	result, err := ReconcilePayment(context.Background(), repo, config.GetLogger(), in)
	require.NoError(t, err)
	require.Equal(t, models.BillStatusCompleted, result.Bill.Status)
	require.False(t, result.CycleUpdated)
	require.Nil(t, result.CycleState)

	// Cached view untouched.
	require.Equal(t, models.RentStatusOverdue, repo.tenants[1].RentStatus)
	require.Nil(t, repo.tenants[1].CurrentMonthPaid)
}

func TestReconcilePayment_InputValidation(t *testing.T) {
	repo := newFakeRepository()
	seedTenant(repo)
	ctx := context.Background()
	logger := config.GetLogger()

	in := currentPeriodInput(0)
	_, err := ReconcilePayment(ctx, repo, logger, in)
	require.ErrorIs(t, err, utils.ErrInvalidAmount)

	in = currentPeriodInput(1000)
	in.Month = 13
	_, err = ReconcilePayment(ctx, repo, logger, in)
	require.ErrorIs(t, err, utils.ErrInvalidPeriod)

	in = currentPeriodInput(1000)
	in.TenantId = 999
	_, err = ReconcilePayment(ctx, repo, logger, in)
	require.ErrorIs(t, err, utils.ErrTenantNotFound)

	repo.tenants[1].PropertyId = 0
	in = currentPeriodInput(1000)
	_, err = ReconcilePayment(ctx, repo, logger, in)
	require.ErrorIs(t, err, utils.ErrNoPropertyAssigned)

	// Nothing was persisted by any of the failed attempts.
	require.Empty(t, repo.bills)
	require.Empty(t, repo.ledger)
	require.Empty(t, repo.events)
}

func TestReconcilePayment_DuplicateBillsResolvedDeterministically(t *testing.T) {
	repo := newFakeRepository()
	seedTenant(repo)
	month, year := models.CurrentPeriod(time.Now())

	created := time.Now().Add(-time.Hour)
	repo.bills = append(repo.bills,
		&models.Bill{ID: 1, TenantId: 1, Month: month, Year: year, ExpectedAmount: decimal.NewFromInt(1000), AmountPaid: decimal.Zero, Status: models.BillStatusPending, CreatedAt: created},
		&models.Bill{ID: 2, TenantId: 1, Month: month, Year: year, ExpectedAmount: decimal.NewFromInt(1000), AmountPaid: decimal.Zero, Status: models.BillStatusPending, CreatedAt: created.Add(time.Minute)},
	)
	repo.nextBillId = 3

	result, err := ReconcilePayment(context.Background(), repo, config.GetLogger(), currentPeriodInput(1000))
	require.NoError(t, err)
	require.True(t, result.DuplicateBillDetected)
	require.Equal(t, 2, result.Bill.ID)
	// Never merged: the older aggregate still exists, untouched.
	require.Len(t, repo.bills, 2)
	require.True(t, repo.bills[0].AmountPaid.IsZero())
}

func TestReconcilePayment_ConcurrentPaymentsAllLand(t *testing.T) {
	repo := newFakeRepository()
	seedTenant(repo)
	logger := config.GetLogger()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ReconcilePayment(context.Background(), repo, logger, currentPeriodInput(125))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, repo.bills, 1)
	require.Len(t, repo.ledger, 8)
	require.True(t, decimal.NewFromInt(1000).Equal(repo.bills[0].AmountPaid), "paid = %s", repo.bills[0].AmountPaid)
	require.Equal(t, models.BillStatusCompleted, repo.bills[0].Status)
}

func previousPeriod(month, year int) (int, int) {
	if month == 1 {
		return 12, year - 1
	}
	return month - 1, year
}
