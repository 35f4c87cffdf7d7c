package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/rentease_backend/appctx"
	"github.com/mmdatafocus/rentease_backend/config"
	"github.com/mmdatafocus/rentease_backend/models"
	"github.com/mmdatafocus/rentease_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ReconcileInput is one incoming payment to apply against the bill for
// (TenantId, Month, Year). All three payment channels (cash entry,
// mobile-money push, approved statement match) funnel through here.
type ReconcileInput struct {
	TenantId      int
	Month         int
	Year          int
	Amount        decimal.Decimal
	Method        models.PaymentMethod
	ReceiptNumber string
	SenderName    string
	PaymentDate   time.Time
	Notes         string
}

type ReconcileResult struct {
	Bill                  *models.Bill
	Transaction           *models.PaymentTransaction
	DuplicateBillDetected bool
	CycleUpdated          bool
	CycleState            *models.RentCycleState
}

// ReconcilePayment applies one payment to the period's bill inside a single
// transaction holding the per-(tenant, month, year) posting lock: the bill
// is read, mutated and version-checked, the immutable receipt appended and
// the billing event enqueued atomically. A backdated payment (period other
// than the current calendar month) never touches the tenant's cached cycle
// state.
func ReconcilePayment(ctx context.Context, repo models.Repository, logger *logrus.Logger, in ReconcileInput) (*ReconcileResult, error) {
	if !in.Amount.IsPositive() {
		return nil, utils.ErrInvalidAmount
	}
	if !models.ValidPeriod(in.Month, in.Year) {
		return nil, utils.ErrInvalidPeriod
	}

	tenant, err := repo.GetTenant(ctx, in.TenantId)
	if err != nil {
		return nil, err
	}
	if tenant.PropertyId == 0 {
		return nil, utils.ErrNoPropertyAssigned
	}
	property, err := repo.GetProperty(ctx, tenant.PropertyId)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if in.PaymentDate.IsZero() {
		in.PaymentDate = now
	}
	if in.ReceiptNumber == "" {
		in.ReceiptNumber = uuid.NewString()
	}

	result := &ReconcileResult{}
	err = repo.WithBillLock(ctx, in.TenantId, in.Month, in.Year, func(r models.Repository) error {
		bills, err := r.GetBillsForPeriod(ctx, in.TenantId, in.Month, in.Year)
		if err != nil {
			return err
		}

		var bill *models.Bill
		switch {
		case len(bills) > 1:
			// Data-integrity anomaly: multiple aggregates for one period.
			// Resolved deterministically, surfaced as a warning, never merged.
			result.DuplicateBillDetected = true
			bill = models.PickLatestBill(bills)
			config.LogWarn(logger, "reconcileWorkflow.go", "ReconcilePayment", "DuplicateBillDetected",
				map[string]interface{}{"tenant_id": in.TenantId, "month": in.Month, "year": in.Year, "count": len(bills), "picked_bill_id": bill.ID},
				"duplicate bills found for period; using most recently created")
		case len(bills) == 1:
			bill = bills[0]
		default:
			bill = models.NewBillForPeriod(tenant, property, in.Month, in.Year, nil)
		}

		bill.ApplyPayment(in.Amount)
		if err := r.SaveBill(ctx, bill); err != nil {
			return err
		}

		txn := &models.PaymentTransaction{
			BillId:        bill.ID,
			TenantId:      in.TenantId,
			Amount:        in.Amount,
			Method:        in.Method,
			ReceiptNumber: in.ReceiptNumber,
			SenderName:    in.SenderName,
			PaymentDate:   in.PaymentDate,
			Notes:         in.Notes,
			CorrelationId: correlationId(ctx),
		}
		if err := r.AppendTransaction(ctx, txn); err != nil {
			return err
		}
		result.Bill = bill
		result.Transaction = txn

		eventType := models.EventTypePaymentRecorded
		switch bill.Status {
		case models.BillStatusCompleted:
			eventType = models.EventTypeBillSettled
		case models.BillStatusOverpaid:
			eventType = models.EventTypeBillOverpaid
		}
		if err := r.EnqueueEvent(ctx, eventType, tenant.ID, tenant.LandlordId, bill.ID, "Bill", reconcileEventPayload(bill, txn)); err != nil {
			return err
		}

		curMonth, curYear := models.CurrentPeriod(now)
		if in.Month == curMonth && in.Year == curYear {
			ledger, err := r.TenantLedger(ctx, in.TenantId)
			if err != nil {
				return err
			}
			state := models.CalculateRentCycle(tenant.CycleInput(ledger.LastPaymentDate, ledger.TotalPaid, now))
			paid := bill.Status == models.BillStatusCompleted || bill.Status == models.BillStatusOverpaid
			if err := r.UpdateTenantCycleCache(ctx, tenant.ID, state, paid); err != nil {
				return err
			}
			result.CycleUpdated = true
			result.CycleState = &state
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "reconcileWorkflow.go", "ReconcilePayment", "WithBillLock",
			map[string]interface{}{"tenant_id": in.TenantId, "month": in.Month, "year": in.Year}, err)
		return nil, err
	}

	if result.CycleUpdated {
		if err := utils.StoreCycleSnapshot(tenant.ID, result.CycleState); err != nil {
			// Cache refresh failure is not a reconciliation failure.
			config.LogError(logger, "reconcileWorkflow.go", "ReconcilePayment", "StoreCycleSnapshot", tenant.ID, err)
		}
	}
	return result, nil
}

func reconcileEventPayload(bill *models.Bill, txn *models.PaymentTransaction) map[string]interface{} {
	return map[string]interface{}{
		"bill_id":         bill.ID,
		"tenant_id":       bill.TenantId,
		"month":           bill.Month,
		"year":            bill.Year,
		"amount":          txn.Amount,
		"method":          txn.Method,
		"receipt_number":  txn.ReceiptNumber,
		"amount_paid":     bill.AmountPaid,
		"expected_amount": bill.ExpectedAmount,
		"status":          bill.Status,
	}
}

func correlationId(ctx context.Context) string {
	if v, ok := appctx.GetString(ctx, appctx.ContextKeyCorrelationId); ok && v != "" {
		return v
	}
	return uuid.NewString()
}
