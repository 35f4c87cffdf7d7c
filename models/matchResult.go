package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// MatchResult is one statement row paired with its best-candidate tenant,
// queued for human review. Created by the matcher; mutated only by review
// actions (approve / reject / manual match).
type MatchResult struct {
	ID       int    `gorm:"primary_key" json:"id"`
	ImportId string `gorm:"size:64;index;not null" json:"import_id"`

	// Parsed statement row.
	ReceiptNumber  string          `gorm:"size:50;not null" json:"receipt_number"`
	CompletionTime time.Time       `json:"completion_time"`
	SenderPhone    string          `gorm:"size:20" json:"sender_phone"`
	PhoneLast3     string          `gorm:"size:3;index" json:"phone_last3"`
	SenderName     string          `gorm:"size:100" json:"sender_name"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`

	// Scoring outcome.
	TenantId     int             `gorm:"index" json:"tenant_id"`
	PhoneScore   decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"phone_score"`
	NameScore    decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"name_score"`
	AmountScore  decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"amount_score"`
	OverallScore decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"overall_score"`
	Confidence   MatchConfidence `gorm:"type:enum('High','Medium','Low','None');not null;default:'None'" json:"confidence"`
	MatchType    MatchType       `gorm:"type:enum('Perfect','Good','Partial','Weak','None');not null;default:'None'" json:"match_type"`
	MatchStatus  MatchStatus     `gorm:"type:enum('Matched','Ambiguous','NoMatch');not null;default:'NoMatch'" json:"match_status"`
	Alternates   []byte          `gorm:"type:json" json:"-"`

	// Review trail.
	ReviewStatus ReviewStatus `gorm:"type:enum('Pending','Approved','Rejected','Manual');not null;default:'Pending'" json:"review_status"`
	Notes        string       `gorm:"type:text" json:"notes"`
	ReviewedAt   *time.Time   `json:"reviewed_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AlternateCandidate is a ranked runner-up kept for the review UI.
type AlternateCandidate struct {
	TenantId     int             `json:"tenant_id"`
	TenantName   string          `json:"tenant_name"`
	OverallScore decimal.Decimal `json:"overall_score"`
}

func (m *MatchResult) SetAlternates(alts []AlternateCandidate) error {
	if len(alts) == 0 {
		m.Alternates = nil
		return nil
	}
	data, err := json.Marshal(alts)
	if err != nil {
		return err
	}
	m.Alternates = data
	return nil
}

func (m *MatchResult) GetAlternates() ([]AlternateCandidate, error) {
	if len(m.Alternates) == 0 {
		return nil, nil
	}
	var alts []AlternateCandidate
	if err := json.Unmarshal(m.Alternates, &alts); err != nil {
		return nil, err
	}
	return alts, nil
}

// ReviewQueueItem is the review-surface shape of a MatchResult with the
// ranked runner-up candidates decoded. A reviewer resolving an Ambiguous row
// needs to see who else scored.
type ReviewQueueItem struct {
	*MatchResult
	Alternates []AlternateCandidate `json:"alternates"`
}

func ReviewQueue(results []*MatchResult) ([]ReviewQueueItem, error) {
	items := make([]ReviewQueueItem, 0, len(results))
	for _, r := range results {
		alts, err := r.GetAlternates()
		if err != nil {
			return nil, err
		}
		items = append(items, ReviewQueueItem{MatchResult: r, Alternates: alts})
	}
	return items, nil
}
