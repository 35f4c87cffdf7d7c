package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrConcurrentUpdate is returned when a version-checked bill write loses
// the race to another reconciliation on the same key.
var ErrConcurrentUpdate = errors.New("bill was modified concurrently")

// LedgerSummary is the fold of a tenant's full receipt history.
type LedgerSummary struct {
	LastPaymentDate *time.Time
	TotalPaid       decimal.Decimal
}

// Repository is the persistence contract for the billing core. Everything
// that reads or writes billing state goes through an injected Repository;
// there are no package-level storage globals. The gorm implementation lives
// in gormRepository.go; tests use an in-memory fake.
type Repository interface {
	GetTenant(ctx context.Context, id int) (*Tenant, error)
	ListActiveTenants(ctx context.Context, landlordId int) ([]*Tenant, error)
	GetProperty(ctx context.Context, id int) (*Property, error)
	UpdateTenantCycleCache(ctx context.Context, tenantId int, state RentCycleState, currentMonthPaid bool) error

	// GetBillsForPeriod returns every bill for the key, newest first.
	// More than one row is a data-integrity anomaly the caller resolves
	// with PickLatestBill.
	GetBillsForPeriod(ctx context.Context, tenantId, month, year int) ([]*Bill, error)
	// LatestOutstandingBill returns the most recent Pending or Partial bill
	// regardless of period, or (nil, nil) when the tenant has none.
	LatestOutstandingBill(ctx context.Context, tenantId int) (*Bill, error)
	// SaveBill creates the bill, or updates it under an optimistic version
	// check, returning ErrConcurrentUpdate on a lost race.
	SaveBill(ctx context.Context, bill *Bill) error
	AppendTransaction(ctx context.Context, txn *PaymentTransaction) error
	TenantLedger(ctx context.Context, tenantId int) (LedgerSummary, error)

	SaveMatchResults(ctx context.Context, results []*MatchResult) error
	GetMatchResult(ctx context.Context, id int) (*MatchResult, error)
	UpdateMatchResult(ctx context.Context, result *MatchResult) error
	ListMatchResults(ctx context.Context, importId string, review ReviewStatus) ([]*MatchResult, error)

	GetWatermark(ctx context.Context, name string) (*CycleWatermark, error)
	SetWatermark(ctx context.Context, name string, month, year int) error

	EnqueueEvent(ctx context.Context, eventType string, tenantId, landlordId, refId int, refType string, payload any) error

	// WithBillLock runs fn inside one transaction while holding the posting
	// lock for (tenantId, month, year). Reconciliations against the same key
	// serialize here; different keys proceed concurrently.
	WithBillLock(ctx context.Context, tenantId, month, year int, fn func(Repository) error) error
}
