package models

import (
	"time"

	"github.com/mmdatafocus/rentease_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Tenant carries the roster identity plus a cached copy of the derived rent
// cycle view. The cached fields are refreshed by reconciliation (current
// period only) and by the periodic cycle sweep; the ledger stays the source
// of truth.
type Tenant struct {
	ID                int             `gorm:"primary_key" json:"id"`
	LandlordId        int             `gorm:"index;not null" json:"landlord_id"`
	FullName          string          `gorm:"size:100;not null" json:"full_name" binding:"required"`
	Email             string          `gorm:"size:100" json:"email"`
	PhoneNumber       string          `gorm:"size:20" json:"phone_number"`
	PhoneLast3        string          `gorm:"size:3;index" json:"phone_last3"`
	PropertyId        int             `gorm:"index" json:"property_id"`
	UnitNumber        string          `gorm:"size:20" json:"unit_number"`
	MonthlyRentAmount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"monthly_rent_amount"`
	PaymentDayOfMonth int             `gorm:"not null;default:1" json:"payment_day_of_month"`
	GracePeriodDays   int             `gorm:"not null;default:3" json:"grace_period_days"`

	// Cached cycle view.
	CurrentMonthPaid *bool      `gorm:"not null;default:false" json:"current_month_paid"`
	RentStatus       RentStatus `gorm:"type:enum('Active','GracePeriod','Overdue','PaidInAdvance','PartialDebt');default:'Overdue'" json:"rent_status"`
	NextDueDate      *time.Time `json:"next_due_date"`
	DaysRemaining    int        `gorm:"default:0" json:"days_remaining"`

	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeSave keeps the derived matching key in step with the phone number.
func (t *Tenant) BeforeSave(tx *gorm.DB) error {
	if t.PhoneNumber != "" {
		t.PhoneNumber = utils.NormalizePhoneNumber(t.PhoneNumber)
		t.PhoneLast3 = utils.PhoneLast3(t.PhoneNumber)
	}
	return nil
}

// CycleInput assembles the calculator input from tenant settings plus the
// ledger-derived last payment date and cumulative total.
func (t *Tenant) CycleInput(lastPaymentDate *time.Time, totalPaid decimal.Decimal, now time.Time) RentCycleInput {
	return RentCycleInput{
		LastPaymentDate:   lastPaymentDate,
		PaymentDayOfMonth: t.PaymentDayOfMonth,
		GracePeriodDays:   t.GracePeriodDays,
		MonthlyRentAmount: t.MonthlyRentAmount,
		TotalAmountPaid:   totalPaid,
		Now:               now,
	}
}
