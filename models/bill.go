package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementTolerance is the epsilon within which cumulative paid and
// expected amounts are treated as equal. Keeps float noise from upstream
// channels (mobile-money pushes report floats) from blocking settlement.
var SettlementTolerance = decimal.NewFromFloat(0.01)

// Bill is the single aggregate for one (tenant, month, year). AmountPaid is
// cumulative and monotonically non-decreasing absent an administrative
// correction; Status is a pure function of AmountPaid vs ExpectedAmount.
type Bill struct {
	ID             int              `gorm:"primary_key" json:"id"`
	TenantId       int              `gorm:"index:idx_bill_period;not null" json:"tenant_id" binding:"required"`
	PropertyId     int              `gorm:"index;not null" json:"property_id"`
	Month          int              `gorm:"index:idx_bill_period;not null" json:"month" binding:"required"`
	Year           int              `gorm:"index:idx_bill_period;not null" json:"year" binding:"required"`
	ExpectedAmount decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"expected_amount"`
	AmountPaid     decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"amount_paid"`
	Status         BillStatus       `gorm:"type:enum('Pending','Partial','Completed','Overpaid');not null;default:'Pending'" json:"status"`
	UtilityCharges []*UtilityCharge `gorm:"foreignKey:BillId" json:"utility_charges"`
	Version        int              `gorm:"not null;default:0" json:"version"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// UtilityCharge is a bill line item, fixed at bill creation (or first
// payment) so later price-list edits do not rewrite history.
type UtilityCharge struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BillId       int             `gorm:"index;not null" json:"bill_id"`
	UtilityType  string          `gorm:"size:50;not null" json:"utility_type"`
	Units        decimal.Decimal `gorm:"type:decimal(20,4);default:1" json:"units"`
	PricePerUnit decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price_per_unit"`
}

func (c UtilityCharge) Total() decimal.Decimal {
	return c.Units.Mul(c.PricePerUnit)
}

// DeriveBillStatus maps cumulative paid vs expected onto the bill status.
// |paid - expected| <= tolerance settles the bill; a paid amount of zero is
// Pending rather than Partial so billing-run bills read correctly.
func DeriveBillStatus(amountPaid, expectedAmount decimal.Decimal) BillStatus {
	diff := amountPaid.Sub(expectedAmount)
	if diff.Abs().LessThanOrEqual(SettlementTolerance) {
		return BillStatusCompleted
	}
	if diff.IsPositive() {
		return BillStatusOverpaid
	}
	if amountPaid.IsZero() {
		return BillStatusPending
	}
	return BillStatusPartial
}

// UtilityTotal sums the billable line items on the bill.
func (b *Bill) UtilityTotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range b.UtilityCharges {
		total = total.Add(c.Total())
	}
	return total
}

func (b *Bill) Outstanding() bool {
	return b.Status == BillStatusPending || b.Status == BillStatusPartial
}

// ApplyPayment adds amount to the cumulative paid figure and rederives the
// status. Mutates the aggregate only; persisting it and appending the
// receipt is the caller's transaction.
func (b *Bill) ApplyPayment(amount decimal.Decimal) {
	b.AmountPaid = b.AmountPaid.Add(amount)
	b.Status = DeriveBillStatus(b.AmountPaid, b.ExpectedAmount)
}

// FoldLedger recomputes the cumulative paid amount from the append-only
// receipt ledger. The stored AmountPaid is a running cache of this fold;
// reconciliation reports compare the two.
func FoldLedger(transactions []*PaymentTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range transactions {
		total = total.Add(t.Amount)
	}
	return total
}

// NewBillForPeriod builds the lazily-created bill for a period.
// expectedAmount = the tenant's monthly rent + every billable utility at one
// unit each. When a prior bill already exists for the same period its line
// items are carried over verbatim so previously recorded usage survives.
func NewBillForPeriod(tenant *Tenant, property *Property, month, year int, prior *Bill) *Bill {
	bill := &Bill{
		TenantId:   tenant.ID,
		PropertyId: tenant.PropertyId,
		Month:      month,
		Year:       year,
		AmountPaid: decimal.Zero,
		Status:     BillStatusPending,
	}

	if prior != nil && len(prior.UtilityCharges) > 0 {
		for _, c := range prior.UtilityCharges {
			bill.UtilityCharges = append(bill.UtilityCharges, &UtilityCharge{
				UtilityType:  c.UtilityType,
				Units:        c.Units,
				PricePerUnit: c.PricePerUnit,
			})
		}
	} else if property != nil {
		for _, p := range property.UtilityPrices {
			if p.Billing != UtilityBilled {
				continue
			}
			bill.UtilityCharges = append(bill.UtilityCharges, &UtilityCharge{
				UtilityType:  p.UtilityType,
				Units:        decimal.NewFromInt(1),
				PricePerUnit: p.PricePerUnit,
			})
		}
	}

	bill.ExpectedAmount = tenant.MonthlyRentAmount.Add(bill.UtilityTotal())
	return bill
}

// PickLatestBill resolves the duplicate-bill anomaly deterministically:
// most recently created wins, id as the final tie-break. Never merges.
func PickLatestBill(bills []*Bill) *Bill {
	if len(bills) == 0 {
		return nil
	}
	sorted := make([]*Bill, len(bills))
	copy(sorted, bills)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})
	return sorted[0]
}

// ValidPeriod reports whether (month, year) is a sane billing period.
func ValidPeriod(month, year int) bool {
	return month >= 1 && month <= 12 && year >= 2000 && year <= 2100
}

// CurrentPeriod returns the calendar (month, year) for now.
func CurrentPeriod(now time.Time) (int, int) {
	return int(now.Month()), now.Year()
}
