package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/rentease_backend/config"
	"github.com/mmdatafocus/rentease_backend/matcher"
	"github.com/mmdatafocus/rentease_backend/models"
	"github.com/mmdatafocus/rentease_backend/statement"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrMatchAlreadyReviewed = errors.New("match has already been reviewed")
	ErrNoTenantMatched      = errors.New("no tenant matched; use manual match first")
)

// ImportSummary reports one statement ingestion run.
type ImportSummary struct {
	ImportId     string `json:"import_id"`
	Parsed       int    `json:"parsed"`
	Matched      int    `json:"matched"`
	Ambiguous    int    `json:"ambiguous"`
	NoMatch      int    `json:"no_match"`
	AutoApproved int    `json:"auto_approved"`
}

// ImportStatement runs ingestion end to end: parse the raw text, score every
// row against the landlord's roster in parallel, and persist the match
// results as a review queue.
//
// A document with no recognizable money-in header fails with
// utils.ErrNotAStatement; a valid statement with zero rows succeeds with
// Parsed == 0. Per-row failures are logged and skipped; one bad row never
// aborts the batch, and already-persisted rows are never rolled back.
func ImportStatement(ctx context.Context, repo models.Repository, logger *logrus.Logger, rawText string, landlordId int) (*ImportSummary, error) {
	rows, err := statement.Parse(rawText)
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{ImportId: uuid.NewString(), Parsed: len(rows)}
	if len(rows) == 0 {
		return summary, nil
	}

	roster, err := repo.ListActiveTenants(ctx, landlordId)
	if err != nil {
		return nil, err
	}

	matches, err := matcher.ScoreBatch(ctx, rows, roster, 0)
	if err != nil {
		return nil, err
	}

	results := make([]*models.MatchResult, 0, len(matches))
	for _, m := range matches {
		result, err := toMatchResult(summary.ImportId, m)
		if err != nil {
			config.LogError(logger, "statementImportWorkflow.go", "ImportStatement", "toMatchResult", m.Transaction.ReceiptNumber, err)
			continue
		}
		results = append(results, result)
		switch m.Status {
		case models.MatchStatusMatched:
			summary.Matched++
		case models.MatchStatusAmbiguous:
			summary.Ambiguous++
		default:
			summary.NoMatch++
		}
	}
	if err := repo.SaveMatchResults(ctx, results); err != nil {
		return nil, err
	}

	if config.StatementAutoApproveHighConfidence() {
		for _, result := range results {
			if result.MatchStatus != models.MatchStatusMatched ||
				result.Confidence != models.MatchConfidenceHigh ||
				result.MatchType != models.MatchTypePerfect {
				continue
			}
			if _, err := ApproveMatch(ctx, repo, logger, result.ID, "auto-approved: perfect high-confidence match"); err != nil {
				config.LogError(logger, "statementImportWorkflow.go", "ImportStatement", "AutoApprove", result.ID, err)
				continue
			}
			summary.AutoApproved++
		}
	}
	return summary, nil
}

// ApproveMatch reconciles an approved statement row against the tenant's
// single most recent outstanding (pending or partial) bill regardless of
// month, falling back to the current period when the tenant has no open
// bill. The statement's own receipt number and sender are stamped onto the
// produced payment receipt.
func ApproveMatch(ctx context.Context, repo models.Repository, logger *logrus.Logger, matchId int, notes string) (*ReconcileResult, error) {
	m, err := repo.GetMatchResult(ctx, matchId)
	if err != nil {
		return nil, err
	}
	if m.ReviewStatus == models.ReviewStatusApproved || m.ReviewStatus == models.ReviewStatusRejected {
		return nil, ErrMatchAlreadyReviewed
	}
	if m.TenantId == 0 {
		return nil, ErrNoTenantMatched
	}

	month, year := models.CurrentPeriod(time.Now())
	bill, err := repo.LatestOutstandingBill(ctx, m.TenantId)
	if err != nil {
		return nil, err
	}
	if bill != nil {
		month, year = bill.Month, bill.Year
	}

	result, err := ReconcilePayment(ctx, repo, logger, ReconcileInput{
		TenantId:      m.TenantId,
		Month:         month,
		Year:          year,
		Amount:        m.Amount,
		Method:        models.PaymentMethodStatementImport,
		ReceiptNumber: m.ReceiptNumber,
		SenderName:    m.SenderName,
		PaymentDate:   m.CompletionTime,
		Notes:         notes,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	m.ReviewStatus = models.ReviewStatusApproved
	m.Notes = notes
	m.ReviewedAt = &now
	if err := repo.UpdateMatchResult(ctx, m); err != nil {
		// The payment is committed; a failed status flip must not undo it.
		config.LogError(logger, "statementImportWorkflow.go", "ApproveMatch", "UpdateMatchResult", matchId, err)
	}
	return result, nil
}

// RejectMatch flips the review status only; nothing is reconciled.
func RejectMatch(ctx context.Context, repo models.Repository, matchId int, notes string) error {
	m, err := repo.GetMatchResult(ctx, matchId)
	if err != nil {
		return err
	}
	if m.ReviewStatus == models.ReviewStatusApproved || m.ReviewStatus == models.ReviewStatusRejected {
		return ErrMatchAlreadyReviewed
	}
	now := time.Now()
	m.ReviewStatus = models.ReviewStatusRejected
	m.Notes = notes
	m.ReviewedAt = &now
	return repo.UpdateMatchResult(ctx, m)
}

// ManualMatch overrides the matched tenant with a synthetic perfect score.
// The row still requires a subsequent ApproveMatch before any money moves.
func ManualMatch(ctx context.Context, repo models.Repository, matchId, tenantId int) error {
	m, err := repo.GetMatchResult(ctx, matchId)
	if err != nil {
		return err
	}
	if m.ReviewStatus == models.ReviewStatusApproved || m.ReviewStatus == models.ReviewStatusRejected {
		return ErrMatchAlreadyReviewed
	}
	if _, err := repo.GetTenant(ctx, tenantId); err != nil {
		return err
	}

	hundred := decimal.NewFromInt(100)
	m.TenantId = tenantId
	m.PhoneScore = hundred
	m.NameScore = hundred
	m.AmountScore = hundred
	m.OverallScore = hundred
	m.Confidence = models.MatchConfidenceHigh
	m.MatchType = models.MatchTypePerfect
	m.MatchStatus = models.MatchStatusMatched
	m.ReviewStatus = models.ReviewStatusManual
	return repo.UpdateMatchResult(ctx, m)
}

func toMatchResult(importId string, m matcher.TransactionMatch) (*models.MatchResult, error) {
	result := &models.MatchResult{
		ImportId:       importId,
		ReceiptNumber:  m.Transaction.ReceiptNumber,
		CompletionTime: m.Transaction.CompletionTime,
		SenderPhone:    m.Transaction.SenderPhone,
		PhoneLast3:     m.Transaction.PhoneLast3,
		SenderName:     m.Transaction.SenderName,
		Amount:         m.Transaction.Amount,
		Confidence:     m.Confidence,
		MatchType:      m.MatchType,
		MatchStatus:    m.Status,
		ReviewStatus:   models.ReviewStatusPending,
	}
	if m.Best != nil {
		result.TenantId = m.Best.Tenant.ID
		result.PhoneScore = scoreDecimal(m.Best.PhoneScore)
		result.NameScore = scoreDecimal(m.Best.NameScore)
		result.AmountScore = scoreDecimal(m.Best.AmountScore)
		result.OverallScore = scoreDecimal(m.Best.OverallScore)
	}
	if len(m.Alternates) > 0 {
		alts := make([]models.AlternateCandidate, 0, len(m.Alternates))
		for _, a := range m.Alternates {
			alts = append(alts, models.AlternateCandidate{
				TenantId:     a.Tenant.ID,
				TenantName:   a.Tenant.FullName,
				OverallScore: scoreDecimal(a.OverallScore),
			})
		}
		if err := result.SetAlternates(alts); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func scoreDecimal(score float64) decimal.Decimal {
	return decimal.NewFromFloat(score).Round(2)
}
