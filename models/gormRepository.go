package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmdatafocus/rentease_backend/utils"
	"gorm.io/gorm"
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository wraps an injected *gorm.DB in the Repository contract.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetTenant(ctx context.Context, id int) (*Tenant, error) {
	var tenant Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrTenantNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

func (r *gormRepository) ListActiveTenants(ctx context.Context, landlordId int) ([]*Tenant, error) {
	var tenants []*Tenant
	q := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC")
	if landlordId > 0 {
		q = q.Where("landlord_id = ?", landlordId)
	}
	if err := q.Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *gormRepository) GetProperty(ctx context.Context, id int) (*Property, error) {
	var property Property
	if err := r.db.WithContext(ctx).Preload("UtilityPrices").First(&property, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrPropertyNotFound
		}
		return nil, err
	}
	return &property, nil
}

func (r *gormRepository) UpdateTenantCycleCache(ctx context.Context, tenantId int, state RentCycleState, currentMonthPaid bool) error {
	updates := map[string]interface{}{
		"rent_status":        state.RentStatus,
		"days_remaining":     state.DaysRemaining,
		"current_month_paid": currentMonthPaid,
	}
	if !state.NextDueDate.IsZero() {
		updates["next_due_date"] = state.NextDueDate
	}
	return r.db.WithContext(ctx).Model(&Tenant{}).Where("id = ?", tenantId).Updates(updates).Error
}

func (r *gormRepository) GetBillsForPeriod(ctx context.Context, tenantId, month, year int) ([]*Bill, error) {
	var bills []*Bill
	err := r.db.WithContext(ctx).Preload("UtilityCharges").
		Where("tenant_id = ? AND month = ? AND year = ?", tenantId, month, year).
		Order("created_at DESC, id DESC").
		Find(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *gormRepository) LatestOutstandingBill(ctx context.Context, tenantId int) (*Bill, error) {
	var bill Bill
	err := r.db.WithContext(ctx).Preload("UtilityCharges").
		Where("tenant_id = ? AND status IN ?", tenantId, []BillStatus{BillStatusPending, BillStatusPartial}).
		Order("year DESC, month DESC, created_at DESC, id DESC").
		First(&bill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bill, nil
}

func (r *gormRepository) SaveBill(ctx context.Context, bill *Bill) error {
	db := r.db.WithContext(ctx)
	if bill.ID == 0 {
		return db.Create(bill).Error
	}
	prevVersion := bill.Version
	bill.Version = prevVersion + 1
	res := db.Model(&Bill{}).
		Where("id = ? AND version = ?", bill.ID, prevVersion).
		Updates(map[string]interface{}{
			"amount_paid": bill.AmountPaid,
			"status":      bill.Status,
			"version":     bill.Version,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrConcurrentUpdate
	}
	return nil
}

func (r *gormRepository) AppendTransaction(ctx context.Context, txn *PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *gormRepository) TenantLedger(ctx context.Context, tenantId int) (LedgerSummary, error) {
	var summary LedgerSummary
	var txns []*PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantId).
		Order("payment_date ASC, id ASC").
		Find(&txns).Error
	if err != nil {
		return summary, err
	}
	summary.TotalPaid = FoldLedger(txns)
	if len(txns) > 0 {
		last := txns[len(txns)-1].PaymentDate
		summary.LastPaymentDate = &last
	}
	return summary, nil
}

func (r *gormRepository) SaveMatchResults(ctx context.Context, results []*MatchResult) error {
	if len(results) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&results).Error
}

func (r *gormRepository) GetMatchResult(ctx context.Context, id int) (*MatchResult, error) {
	var result MatchResult
	if err := r.db.WithContext(ctx).First(&result, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *gormRepository) UpdateMatchResult(ctx context.Context, result *MatchResult) error {
	return r.db.WithContext(ctx).Save(result).Error
}

func (r *gormRepository) ListMatchResults(ctx context.Context, importId string, review ReviewStatus) ([]*MatchResult, error) {
	var results []*MatchResult
	q := r.db.WithContext(ctx).Order("id ASC")
	if importId != "" {
		q = q.Where("import_id = ?", importId)
	}
	if review != "" {
		q = q.Where("review_status = ?", review)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *gormRepository) GetWatermark(ctx context.Context, name string) (*CycleWatermark, error) {
	var wm CycleWatermark
	if err := r.db.WithContext(ctx).First(&wm, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wm, nil
}

func (r *gormRepository) SetWatermark(ctx context.Context, name string, month, year int) error {
	wm, err := r.GetWatermark(ctx, name)
	if err != nil {
		return err
	}
	if wm == nil {
		return r.db.WithContext(ctx).Create(&CycleWatermark{Name: name, Month: month, Year: year}).Error
	}
	return r.db.WithContext(ctx).Model(&CycleWatermark{}).Where("name = ?", name).
		Updates(map[string]interface{}{"month": month, "year": year}).Error
}

func (r *gormRepository) EnqueueEvent(ctx context.Context, eventType string, tenantId, landlordId, refId int, refType string, payload any) error {
	return EnqueueBillingEvent(ctx, r.db, eventType, tenantId, landlordId, refId, refType, payload)
}

// WithBillLock serializes posting per bill key across instances using MySQL
// advisory locks. GET_LOCK is connection-scoped, so acquire and release run
// on the same transaction connection that does the posting.
func (r *gormRepository) WithBillLock(ctx context.Context, tenantId, month, year int, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockName := billLockName(tenantId, month, year)
		var ok int
		if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
			return err
		}
		if ok != 1 {
			return fmt.Errorf("could not acquire posting lock %s", lockName)
		}
		defer func() {
			var released int
			_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released).Error
		}()
		return fn(&gormRepository{db: tx})
	})
}

func billLockName(tenantId, month, year int) string {
	return fmt.Sprintf("billpost:%d:%d-%02d", tenantId, year, month)
}

// FindUserByEmail is used by the auth surface; kept off the billing
// Repository on purpose.
func FindUserByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error) {
	var user User
	if err := db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func FindUserByResetToken(ctx context.Context, db *gorm.DB, token string) (*User, error) {
	var user User
	if err := db.WithContext(ctx).First(&user, "reset_token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

// SaveUser persists in-place mutations (password, reset token) of an already
// loaded user row.
func SaveUser(ctx context.Context, db *gorm.DB, user *User) error {
	return db.WithContext(ctx).Save(user).Error
}

// CreateUser enforces the duplicate-email rule at save time.
func CreateUser(ctx context.Context, db *gorm.DB, user *User) error {
	var count int64
	if err := db.WithContext(ctx).Model(&User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrEmailTaken
	}
	return db.WithContext(ctx).Create(user).Error
}
