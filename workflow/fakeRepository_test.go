package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mmdatafocus/rentease_backend/models"
	"github.com/mmdatafocus/rentease_backend/utils"
)

// fakeRepository is an in-memory models.Repository. These tests are
// intentionally DB-free: they validate the posting semantics (single
// aggregate per period, append-only ledger, events on settlement) without
// needing MySQL. The advisory-lock behavior of the real repository is
// approximated with one mutex per bill key.
type fakeRepository struct {
	mu sync.Mutex

	tenants    map[int]*models.Tenant
	properties map[int]*models.Property
	bills      []*models.Bill
	ledger     []*models.PaymentTransaction
	matches    map[int]*models.MatchResult
	watermarks map[string]*models.CycleWatermark
	events     []fakeEvent

	nextBillId  int
	nextTxnId   int
	nextMatchId int

	lockByKey map[string]*sync.Mutex

	failSaveBill bool
}

type fakeEvent struct {
	EventType string
	TenantId  int
	RefId     int
	RefType   string
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		tenants:     map[int]*models.Tenant{},
		properties:  map[int]*models.Property{},
		matches:     map[int]*models.MatchResult{},
		watermarks:  map[string]*models.CycleWatermark{},
		lockByKey:   map[string]*sync.Mutex{},
		nextBillId:  1,
		nextTxnId:   1,
		nextMatchId: 1,
	}
}

func (f *fakeRepository) GetTenant(ctx context.Context, id int) (*models.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[id]
	if !ok {
		return nil, utils.ErrTenantNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeRepository) ListActiveTenants(ctx context.Context, landlordId int) ([]*models.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(f.tenants))
	for id := range f.tenants {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var out []*models.Tenant
	for _, id := range ids {
		t := f.tenants[id]
		if landlordId > 0 && t.LandlordId != landlordId {
			continue
		}
		copied := *t
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeRepository) GetProperty(ctx context.Context, id int) (*models.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.properties[id]
	if !ok {
		return nil, utils.ErrPropertyNotFound
	}
	return p, nil
}

func (f *fakeRepository) UpdateTenantCycleCache(ctx context.Context, tenantId int, state models.RentCycleState, currentMonthPaid bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[tenantId]
	if !ok {
		return utils.ErrTenantNotFound
	}
	t.RentStatus = state.RentStatus
	t.DaysRemaining = state.DaysRemaining
	t.CurrentMonthPaid = &currentMonthPaid
	if !state.NextDueDate.IsZero() {
		due := state.NextDueDate
		t.NextDueDate = &due
	}
	return nil
}

func (f *fakeRepository) GetBillsForPeriod(ctx context.Context, tenantId, month, year int) ([]*models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Bill
	for _, b := range f.bills {
		if b.TenantId == tenantId && b.Month == month && b.Year == year {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRepository) LatestOutstandingBill(ctx context.Context, tenantId int) (*models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.Bill
	for _, b := range f.bills {
		if b.TenantId != tenantId || !b.Outstanding() {
			continue
		}
		if best == nil || b.Year > best.Year || (b.Year == best.Year && b.Month > best.Month) {
			best = b
		}
	}
	return best, nil
}

func (f *fakeRepository) SaveBill(ctx context.Context, bill *models.Bill) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaveBill {
		return models.ErrConcurrentUpdate
	}
	if bill.ID == 0 {
		bill.ID = f.nextBillId
		f.nextBillId++
		bill.CreatedAt = time.Now()
		f.bills = append(f.bills, bill)
		return nil
	}
	for i, b := range f.bills {
		if b.ID == bill.ID {
			if b.Version != bill.Version {
				return models.ErrConcurrentUpdate
			}
			bill.Version++
			f.bills[i] = bill
			return nil
		}
	}
	return utils.ErrorRecordNotFound
}

func (f *fakeRepository) AppendTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn.ID = f.nextTxnId
	f.nextTxnId++
	f.ledger = append(f.ledger, txn)
	return nil
}

func (f *fakeRepository) TenantLedger(ctx context.Context, tenantId int) (models.LedgerSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var summary models.LedgerSummary
	var own []*models.PaymentTransaction
	for _, txn := range f.ledger {
		if txn.TenantId == tenantId {
			own = append(own, txn)
		}
	}
	summary.TotalPaid = models.FoldLedger(own)
	for _, txn := range own {
		if summary.LastPaymentDate == nil || txn.PaymentDate.After(*summary.LastPaymentDate) {
			d := txn.PaymentDate
			summary.LastPaymentDate = &d
		}
	}
	return summary, nil
}

func (f *fakeRepository) SaveMatchResults(ctx context.Context, results []*models.MatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range results {
		r.ID = f.nextMatchId
		f.nextMatchId++
		f.matches[r.ID] = r
	}
	return nil
}

func (f *fakeRepository) GetMatchResult(ctx context.Context, id int) (*models.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	copied := *m
	return &copied, nil
}

func (f *fakeRepository) UpdateMatchResult(ctx context.Context, result *models.MatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.matches[result.ID]; !ok {
		return utils.ErrorRecordNotFound
	}
	copied := *result
	f.matches[result.ID] = &copied
	return nil
}

func (f *fakeRepository) ListMatchResults(ctx context.Context, importId string, review models.ReviewStatus) ([]*models.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.MatchResult
	for i := 1; i < f.nextMatchId; i++ {
		m, ok := f.matches[i]
		if !ok {
			continue
		}
		if importId != "" && m.ImportId != importId {
			continue
		}
		if review != "" && m.ReviewStatus != review {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeRepository) GetWatermark(ctx context.Context, name string) (*models.CycleWatermark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wm, ok := f.watermarks[name]
	if !ok {
		return nil, nil
	}
	copied := *wm
	return &copied, nil
}

func (f *fakeRepository) SetWatermark(ctx context.Context, name string, month, year int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watermarks[name] = &models.CycleWatermark{Name: name, Month: month, Year: year}
	return nil
}

func (f *fakeRepository) EnqueueEvent(ctx context.Context, eventType string, tenantId, landlordId, refId int, refType string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fakeEvent{EventType: eventType, TenantId: tenantId, RefId: refId, RefType: refType})
	return nil
}

func (f *fakeRepository) WithBillLock(ctx context.Context, tenantId, month, year int, fn func(models.Repository) error) error {
	key := fmt.Sprintf("%d:%d-%02d", tenantId, year, month)
	f.mu.Lock()
	lock := f.lockByKey[key]
	if lock == nil {
		lock = &sync.Mutex{}
		f.lockByKey[key] = lock
	}
	f.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(f)
}

func (f *fakeRepository) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}
