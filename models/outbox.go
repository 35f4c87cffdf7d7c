package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/rentease_backend/appctx"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutboxRecord implements the transactional outbox for billing events: the
// row is written inside the caller's DB transaction and published to
// Pub/Sub asynchronously by the dispatcher after commit. At-least-once.
type OutboxRecord struct {
	ID               int        `gorm:"primary_key" json:"id"`
	EventType        string     `gorm:"size:50;not null;index" json:"event_type"`
	TenantId         int        `gorm:"index;not null" json:"tenant_id"`
	LandlordId       int        `gorm:"index" json:"landlord_id"`
	ReferenceId      int        `gorm:"not null" json:"reference_id"`
	ReferenceType    string     `gorm:"size:50;not null" json:"reference_type"`
	Payload          []byte     `gorm:"type:json" json:"payload"`
	OccurredAt       time.Time  `gorm:"not null" json:"occurred_at"`
	PublishStatus    string     `gorm:"size:20;not null;default:'PENDING';index" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:64" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	PublishedAt      *time.Time `json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:64" json:"pub_sub_message_id"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// EnqueueBillingEvent writes the outbox row inside the caller's transaction.
// It does NOT publish; publishing happens after commit in the dispatcher.
func EnqueueBillingEvent(ctx context.Context, tx *gorm.DB, eventType string, tenantId, landlordId, refId int, refType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := OutboxRecord{
		EventType:     eventType,
		TenantId:      tenantId,
		LandlordId:    landlordId,
		ReferenceId:   refId,
		ReferenceType: refType,
		Payload:       data,
		OccurredAt:    time.Now().UTC(),
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := appctx.GetString(ctx, appctx.ContextKeyCorrelationId); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
