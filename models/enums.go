package models

import "errors"

type BillStatus string

const (
	BillStatusPending   BillStatus = "Pending"
	BillStatusPartial   BillStatus = "Partial"
	BillStatusCompleted BillStatus = "Completed"
	BillStatusOverpaid  BillStatus = "Overpaid"
)

type RentStatus string

const (
	RentStatusActive        RentStatus = "Active"
	RentStatusGracePeriod   RentStatus = "GracePeriod"
	RentStatusOverdue       RentStatus = "Overdue"
	RentStatusPaidInAdvance RentStatus = "PaidInAdvance"
	RentStatusPartialDebt   RentStatus = "PartialDebt"
)

type PaymentMethod string

const (
	PaymentMethodCash            PaymentMethod = "Cash"
	PaymentMethodMobileMoney     PaymentMethod = "MobileMoney"
	PaymentMethodStatementImport PaymentMethod = "StatementImport"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodMobileMoney, PaymentMethodStatementImport:
		return true
	}
	return false
}

type MatchConfidence string

const (
	MatchConfidenceHigh   MatchConfidence = "High"
	MatchConfidenceMedium MatchConfidence = "Medium"
	MatchConfidenceLow    MatchConfidence = "Low"
	MatchConfidenceNone   MatchConfidence = "None"
)

type MatchType string

const (
	MatchTypePerfect MatchType = "Perfect"
	MatchTypeGood    MatchType = "Good"
	MatchTypePartial MatchType = "Partial"
	MatchTypeWeak    MatchType = "Weak"
	MatchTypeNone    MatchType = "None"
)

type MatchStatus string

const (
	MatchStatusMatched   MatchStatus = "Matched"
	MatchStatusAmbiguous MatchStatus = "Ambiguous"
	MatchStatusNoMatch   MatchStatus = "NoMatch"
)

type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "Pending"
	ReviewStatusApproved ReviewStatus = "Approved"
	ReviewStatusRejected ReviewStatus = "Rejected"
	ReviewStatusManual   ReviewStatus = "Manual"
)

// UtilityBilling controls whether a utility line appears on bills.
// Included and NotIncluded are sentinel values that must never be billed.
type UtilityBilling string

const (
	UtilityBilled      UtilityBilling = "Billed"
	UtilityIncluded    UtilityBilling = "Included"
	UtilityNotIncluded UtilityBilling = "NotIncluded"
)

type UserRole string

const (
	UserRoleLandlord UserRole = "Landlord"
	UserRoleTenant   UserRole = "Tenant"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusPublished  = "PUBLISHED"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// Billing event types published through the outbox.
const (
	EventTypePaymentRecorded  = "PaymentRecorded"
	EventTypeBillSettled      = "BillSettled"
	EventTypeBillOverpaid     = "BillOverpaid"
	EventTypeCycleStateChange = "CycleStateChange"
)

var ErrImmutableReceipt = errors.New("payment transactions are immutable")
