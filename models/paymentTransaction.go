package models

import (
	"time"

	"github.com/mmdatafocus/rentease_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentTransaction is an immutable receipt of one payment event. It
// records only this payment's amount, not the running total; the bill's
// cumulative figure is derivable by folding the ledger.
type PaymentTransaction struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BillId        int             `gorm:"index;not null" json:"bill_id"`
	TenantId      int             `gorm:"index;not null" json:"tenant_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Method        PaymentMethod   `gorm:"type:enum('Cash','MobileMoney','StatementImport');not null" json:"method"`
	ReceiptNumber string          `gorm:"size:50;index" json:"receipt_number"`
	SenderName    string          `gorm:"size:100" json:"sender_name"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CorrelationId string          `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// BeforeUpdate enforces receipt immutability at the ORM level. Corrections
// are modeled as new (possibly negative) receipts, never edits.
func (p *PaymentTransaction) BeforeUpdate(tx *gorm.DB) error {
	if config.StrictReceiptImmutability() {
		return ErrImmutableReceipt
	}
	return nil
}

func (p *PaymentTransaction) BeforeDelete(tx *gorm.DB) error {
	if config.StrictReceiptImmutability() {
		return ErrImmutableReceipt
	}
	return nil
}
