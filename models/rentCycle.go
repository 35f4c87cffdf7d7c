package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// NeverPaidDaysRemaining is the sentinel emitted for tenants with no payment
// history at all. It is deliberately far outside any value the normal
// computation can produce so callers can tell "never paid" apart from an
// ordinarily overdue tenant. Prefer checking NeverPaid on the state instead
// of comparing against this number.
const NeverPaidDaysRemaining = -9999

// daysPerMonth is the flat rate used to convert a rent surplus into an
// advance-payment window.
const daysPerMonth = 30

// RentCycleInput carries everything the calculator needs. MonthlyRentAmount
// and TotalAmountPaid may be zero when unknown; the calculator then falls
// back to pure due-date arithmetic (no advance/debt computation).
type RentCycleInput struct {
	LastPaymentDate   *time.Time
	PaymentDayOfMonth int
	GracePeriodDays   int
	MonthlyRentAmount decimal.Decimal
	TotalAmountPaid   decimal.Decimal
	Now               time.Time
}

// RentCycleState is a derived view. It is cached on the tenant row and in
// redis but is always reproducible from the payment ledger plus settings.
type RentCycleState struct {
	NextDueDate   time.Time       `json:"next_due_date"`
	DaysRemaining int             `json:"days_remaining"`
	RentStatus    RentStatus      `json:"rent_status"`
	NeverPaid     bool            `json:"never_paid"`
	MonthsCovered int             `json:"months_covered"`
	DebtAmount    decimal.Decimal `json:"debt_amount"`
	MonthsOwed    int             `json:"months_owed"`
	ComputedAt    time.Time       `json:"computed_at"`
}

// CalculateRentCycle computes the next due date, signed days remaining and
// rent status for one tenant.
//
// Status precedence, first match wins:
// partial-payment debt > paid in advance > active > grace period > overdue.
func CalculateRentCycle(in RentCycleInput) RentCycleState {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	state := RentCycleState{
		DebtAmount: decimal.Zero,
		ComputedAt: now,
	}

	if in.LastPaymentDate == nil {
		state.NeverPaid = true
		state.RentStatus = RentStatusOverdue
		state.DaysRemaining = NeverPaidDaysRemaining
		return state
	}
	lastPayment := *in.LastPaymentDate

	paymentDay := in.PaymentDayOfMonth
	if paymentDay < 1 || paymentDay > 31 {
		paymentDay = 1
	}

	knownAmounts := in.MonthlyRentAmount.IsPositive()
	if knownAmounts {
		state.MonthsCovered = int(in.TotalAmountPaid.Div(in.MonthlyRentAmount).IntPart())
	}

	// Base due date: one calendar month after the last payment, anchored to
	// the payment day of that month.
	dueDate := anchorToPaymentDay(lastPayment.AddDate(0, 1, 0), paymentDay)

	if knownAmounts && state.MonthsCovered > 1 {
		// Advance window: the surplus beyond one month's rent pushes the due
		// date forward by the days it covers.
		surplus := in.TotalAmountPaid.Sub(in.MonthlyRentAmount)
		surplusDays := int(surplus.Mul(decimal.NewFromInt(daysPerMonth)).Div(in.MonthlyRentAmount).IntPart())
		dueDate = dueDate.AddDate(0, 0, surplusDays)
	}
	state.NextDueDate = dueDate
	state.DaysRemaining = int(math.Ceil(dueDate.Sub(now).Hours() / 24))

	// Partial-payment debt is computed independently and takes precedence
	// over everything below.
	if knownAmounts {
		monthsElapsed := elapsedMonths(lastPayment, now, paymentDay)
		shortfall := in.MonthlyRentAmount.Mul(decimal.NewFromInt(int64(monthsElapsed))).Sub(in.TotalAmountPaid)
		if shortfall.IsPositive() {
			state.RentStatus = RentStatusPartialDebt
			state.DebtAmount = shortfall
			state.MonthsOwed = int(shortfall.Div(in.MonthlyRentAmount).Ceil().IntPart())
			return state
		}
	}

	switch {
	case knownAmounts && state.MonthsCovered > 1:
		state.RentStatus = RentStatusPaidInAdvance
	case state.DaysRemaining > 0:
		state.RentStatus = RentStatusActive
	case state.DaysRemaining >= -in.GracePeriodDays:
		state.RentStatus = RentStatusGracePeriod
	default:
		state.RentStatus = RentStatusOverdue
	}
	return state
}

// anchorToPaymentDay snaps t to the payment day within t's month, clamped to
// the month's length (paymentDay 31 in February anchors to the 28th/29th).
func anchorToPaymentDay(t time.Time, paymentDay int) time.Time {
	day := paymentDay
	if last := daysInMonth(t.Year(), t.Month()); day > last {
		day = last
	}
	return time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// elapsedMonths counts the rent months between the last payment and now.
// The current month counts only once now is past the payment day, so a
// tenant is not in debt for a month whose rent is not yet due.
func elapsedMonths(lastPayment, now time.Time, paymentDay int) int {
	months := (now.Year()-lastPayment.Year())*12 + int(now.Month()) - int(lastPayment.Month())
	if now.Day() <= paymentDay {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
