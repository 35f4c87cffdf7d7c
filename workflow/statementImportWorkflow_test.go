package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/rentease_backend/config"
	"github.com/mmdatafocus/rentease_backend/models"
	"github.com/mmdatafocus/rentease_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const importStatementText = `MTN Mobile Money Statement

MONEY RECEIVED
QHX4T81KP2  2026-08-12 14:33:21  2567****123  OKELLO JAMES  450,000.00  1,250,000.00
QHX4T81KP3  2026-08-13 09:10:00  2567****456  NAKATO MARY  300,000.00  1,550,000.00
QHX4T81KP4  2026-08-14 18:05:00  2567****999  UNKNOWN SENDER  100,000.00  1,650,000.00

MONEY OUT
QHX4T81KP5  2026-08-15 10:00:00  2567****999  AIRTIME  5,000.00  1,645,000.00
`

func seedRoster(f *fakeRepository) {
	f.tenants[1] = &models.Tenant{
		ID: 1, LandlordId: 10, FullName: "Okello James", PhoneLast3: "123",
		PropertyId: 7, MonthlyRentAmount: decimal.NewFromInt(450000),
		PaymentDayOfMonth: 1, GracePeriodDays: 3,
		RentStatus: models.RentStatusOverdue, IsActive: utils.NewTrue(),
	}
	f.tenants[2] = &models.Tenant{
		ID: 2, LandlordId: 10, FullName: "Nakato Mary", PhoneLast3: "456",
		PropertyId: 7, MonthlyRentAmount: decimal.NewFromInt(300000),
		PaymentDayOfMonth: 1, GracePeriodDays: 3,
		RentStatus: models.RentStatusOverdue, IsActive: utils.NewTrue(),
	}
	f.properties[7] = &models.Property{ID: 7, LandlordId: 10, Name: "Kireka Flats"}
}

func TestImportStatement_BuildsReviewQueue(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)

	summary, err := ImportStatement(context.Background(), repo, config.GetLogger(), importStatementText, 10)
	require.NoError(t, err)

	require.NotEmpty(t, summary.ImportId)
	require.Equal(t, 3, summary.Parsed)
	require.Equal(t, 2, summary.Matched)
	require.Equal(t, 0, summary.Ambiguous)
	require.Equal(t, 1, summary.NoMatch)
	require.Equal(t, 0, summary.AutoApproved)

	results, err := repo.ListMatchResults(context.Background(), summary.ImportId, "")
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.Equal(t, 1, results[0].TenantId)
	require.Equal(t, models.MatchStatusMatched, results[0].MatchStatus)
	require.Equal(t, models.ReviewStatusPending, results[0].ReviewStatus)
	require.Equal(t, "QHX4T81KP2", results[0].ReceiptNumber)

	require.Equal(t, 2, results[1].TenantId)

	require.Equal(t, 0, results[2].TenantId)
	require.Equal(t, models.MatchStatusNoMatch, results[2].MatchStatus)

	// Importing never moves money by itself.
	require.Empty(t, repo.bills)
	require.Empty(t, repo.ledger)
}

func TestImportStatement_AmbiguousRowKeepsRunnerUps(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)
	// A near-twin of Okello sharing the last three digits makes the first
	// statement row ambiguous.
	repo.tenants[3] = &models.Tenant{
		ID: 3, LandlordId: 10, FullName: "Okella James", PhoneLast3: "123",
		PropertyId: 7, MonthlyRentAmount: decimal.NewFromInt(450000),
		PaymentDayOfMonth: 1, GracePeriodDays: 3,
		RentStatus: models.RentStatusOverdue, IsActive: utils.NewTrue(),
	}

	summary, err := ImportStatement(context.Background(), repo, config.GetLogger(), importStatementText, 10)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Ambiguous)

	results, err := repo.ListMatchResults(context.Background(), summary.ImportId, "")
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusAmbiguous, results[0].MatchStatus)
	require.Equal(t, 1, results[0].TenantId)

	// The reviewer resolving the row sees the ranked runner-up.
	items, err := models.ReviewQueue(results[:1])
	require.NoError(t, err)
	require.Len(t, items[0].Alternates, 1)
	require.Equal(t, 3, items[0].Alternates[0].TenantId)
	require.Equal(t, "Okella James", items[0].Alternates[0].TenantName)
	require.True(t, items[0].Alternates[0].OverallScore.GreaterThanOrEqual(decimal.NewFromInt(75)))
}

func TestImportStatement_NotAStatement(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)

	_, err := ImportStatement(context.Background(), repo, config.GetLogger(), "grocery list: milk, bread", 10)
	require.ErrorIs(t, err, utils.ErrNotAStatement)
}

func TestImportStatement_HeaderButNoRows(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)

	summary, err := ImportStatement(context.Background(), repo, config.GetLogger(), "MONEY RECEIVED\nnothing here\n", 10)
	require.NoError(t, err)
	require.Equal(t, 0, summary.Parsed)
}

func importAndGetFirstMatch(t *testing.T, repo *fakeRepository) *models.MatchResult {
	t.Helper()
	summary, err := ImportStatement(context.Background(), repo, config.GetLogger(), importStatementText, 10)
	require.NoError(t, err)
	results, err := repo.ListMatchResults(context.Background(), summary.ImportId, "")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	return results[0]
}

func TestApproveMatch_ReconcilesWithStatementIdentity(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)
	match := importAndGetFirstMatch(t, repo)

	result, err := ApproveMatch(context.Background(), repo, config.GetLogger(), match.ID, "looks right")
	require.NoError(t, err)

	require.Equal(t, models.BillStatusCompleted, result.Bill.Status)
	require.Len(t, repo.ledger, 1)
	txn := repo.ledger[0]
	require.Equal(t, models.PaymentMethodStatementImport, txn.Method)
	require.Equal(t, "QHX4T81KP2", txn.ReceiptNumber)
	require.Equal(t, "OKELLO JAMES", txn.SenderName)
	require.Equal(t, time.Date(2026, 8, 12, 14, 33, 21, 0, time.UTC), txn.PaymentDate)

	updated, err := repo.GetMatchResult(context.Background(), match.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReviewStatusApproved, updated.ReviewStatus)
	require.Equal(t, "looks right", updated.Notes)
	require.NotNil(t, updated.ReviewedAt)
}

func TestApproveMatch_TargetsOutstandingBillFirst(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)
	match := importAndGetFirstMatch(t, repo)

	// An older unpaid bill exists; approval must settle it, not open a new
	// current-month aggregate.
	repo.bills = append(repo.bills, &models.Bill{
		ID: 1, TenantId: 1, Month: 6, Year: 2026,
		ExpectedAmount: decimal.NewFromInt(450000), AmountPaid: decimal.Zero,
		Status: models.BillStatusPending, CreatedAt: time.Now().Add(-60 * 24 * time.Hour),
	})
	repo.nextBillId = 2

	result, err := ApproveMatch(context.Background(), repo, config.GetLogger(), match.ID, "")
	require.NoError(t, err)
	require.Equal(t, 1, result.Bill.ID)
	require.Equal(t, 6, result.Bill.Month)
	require.Equal(t, models.BillStatusCompleted, result.Bill.Status)
	require.Len(t, repo.bills, 1)
}

func TestApproveMatch_AlreadyReviewed(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)
	match := importAndGetFirstMatch(t, repo)

	_, err := ApproveMatch(context.Background(), repo, config.GetLogger(), match.ID, "")
	require.NoError(t, err)

	_, err = ApproveMatch(context.Background(), repo, config.GetLogger(), match.ID, "")
	require.ErrorIs(t, err, ErrMatchAlreadyReviewed)
	// No second receipt.
	require.Len(t, repo.ledger, 1)
}

func TestApproveMatch_NoTenantMatched(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)
	summary, err := ImportStatement(context.Background(), repo, config.GetLogger(), importStatementText, 10)
	require.NoError(t, err)
	results, err := repo.ListMatchResults(context.Background(), summary.ImportId, "")
	require.NoError(t, err)
	noMatch := results[2]
	require.Equal(t, 0, noMatch.TenantId)

	_, err = ApproveMatch(context.Background(), repo, config.GetLogger(), noMatch.ID, "")
	require.ErrorIs(t, err, ErrNoTenantMatched)
}

func TestRejectMatch_FlipsStatusOnly(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)
	match := importAndGetFirstMatch(t, repo)

	require.NoError(t, RejectMatch(context.Background(), repo, match.ID, "wrong person"))

	updated, err := repo.GetMatchResult(context.Background(), match.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReviewStatusRejected, updated.ReviewStatus)
	require.Empty(t, repo.bills)
	require.Empty(t, repo.ledger)

	require.ErrorIs(t, RejectMatch(context.Background(), repo, match.ID, ""), ErrMatchAlreadyReviewed)
}

func TestManualMatch_ThenApprove(t *testing.T) {
	repo := newFakeRepository()
	seedRoster(repo)
	summary, err := ImportStatement(context.Background(), repo, config.GetLogger(), importStatementText, 10)
	require.NoError(t, err)
	results, err := repo.ListMatchResults(context.Background(), summary.ImportId, "")
	require.NoError(t, err)
	noMatch := results[2]

	require.NoError(t, ManualMatch(context.Background(), repo, noMatch.ID, 2))

	updated, err := repo.GetMatchResult(context.Background(), noMatch.ID)
	require.NoError(t, err)
	require.Equal(t, 2, updated.TenantId)
	require.Equal(t, models.ReviewStatusManual, updated.ReviewStatus)
	require.Equal(t, models.MatchStatusMatched, updated.MatchStatus)
	require.Equal(t, models.MatchConfidenceHigh, updated.Confidence)
	// Money still has not moved.
	require.Empty(t, repo.ledger)

	_, err = ApproveMatch(context.Background(), repo, config.GetLogger(), noMatch.ID, "")
	require.NoError(t, err)
	require.Len(t, repo.ledger, 1)
	require.Equal(t, 2, repo.ledger[0].TenantId)

	// Unknown tenant is rejected outright.
	require.ErrorIs(t, ManualMatch(context.Background(), repo, results[1].ID, 999), utils.ErrTenantNotFound)
}

func TestImportStatement_AutoApproveFeatureFlag(t *testing.T) {
	t.Setenv("STATEMENT_AUTO_APPROVE", "true")

	repo := newFakeRepository()
	seedRoster(repo)

	summary, err := ImportStatement(context.Background(), repo, config.GetLogger(), importStatementText, 10)
	require.NoError(t, err)

	// Both perfect high-confidence rows settle without a reviewer.
	require.Equal(t, 2, summary.AutoApproved)
	require.Len(t, repo.ledger, 2)

	results, err := repo.ListMatchResults(context.Background(), summary.ImportId, models.ReviewStatusApproved)
	require.NoError(t, err)
	require.Len(t, results, 2)
}
