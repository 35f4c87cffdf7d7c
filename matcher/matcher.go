// Package matcher scores parsed statement transactions against the tenant
// roster. Scoring is pure: no I/O, no shared state, safe to fan out.
package matcher

import (
	"math"

	"github.com/agnivade/levenshtein"
	"github.com/mmdatafocus/rentease_backend/models"
	"github.com/mmdatafocus/rentease_backend/statement"
	"github.com/mmdatafocus/rentease_backend/utils"
	"github.com/shopspring/decimal"
)

// Sub-score weights. phoneScore is always 100 once a candidate survives the
// hard last-3-digits filter, so its weight contributes a flat 30 points and
// cannot separate candidates. That mirrors the established scoring formula;
// changing the filter to admit near-miss phones would make the weight
// meaningful and is tracked as a deliberate non-change.
const (
	phoneWeight  = 0.3
	nameWeight   = 0.5
	amountWeight = 0.2
)

// Confidence tier thresholds on the overall score.
const (
	highConfidenceMin   = 90
	mediumConfidenceMin = 75
	lowConfidenceMin    = 60
)

// ambiguousRunnerUpMin flags a transaction for review when a second
// candidate also scores this high.
const ambiguousRunnerUpMin = 75

// ScoredCandidate is one roster tenant that passed the phone filter, with
// its sub-scores in [0,100].
type ScoredCandidate struct {
	Tenant       *models.Tenant
	PhoneScore   float64
	NameScore    float64
	AmountScore  float64
	OverallScore float64
}

// TransactionMatch is the matcher's verdict for one parsed row.
type TransactionMatch struct {
	Transaction statement.ParsedTransaction
	Best        *ScoredCandidate
	Alternates  []ScoredCandidate
	Confidence  models.MatchConfidence
	MatchType   models.MatchType
	Status      models.MatchStatus
}

// MatchTransaction scores one transaction against the roster.
//
// Candidate filter: tenants whose phone ends in the same 3 digits as the
// transaction's sender. Hard filter, not scored. Ties on the overall score
// break by roster order, which is arbitrary but deterministic.
func MatchTransaction(tx statement.ParsedTransaction, roster []*models.Tenant) TransactionMatch {
	result := TransactionMatch{
		Transaction: tx,
		Confidence:  models.MatchConfidenceNone,
		MatchType:   models.MatchTypeNone,
		Status:      models.MatchStatusNoMatch,
	}
	if tx.PhoneLast3 == "" {
		return result
	}

	var candidates []ScoredCandidate
	for _, tenant := range roster {
		if tenant.PhoneLast3 != tx.PhoneLast3 {
			continue
		}
		candidates = append(candidates, scoreCandidate(tx, tenant))
	}
	if len(candidates) == 0 {
		return result
	}

	bestIdx := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].OverallScore > candidates[bestIdx].OverallScore {
			bestIdx = i
		}
	}
	best := candidates[bestIdx]
	result.Best = &best
	for i, c := range candidates {
		if i != bestIdx {
			result.Alternates = append(result.Alternates, c)
		}
	}

	result.Confidence = confidenceTier(best.OverallScore)
	result.MatchType = matchType(best.NameScore, best.AmountScore)

	switch {
	case best.OverallScore < lowConfidenceMin:
		result.Status = models.MatchStatusNoMatch
	case runnerUpAtLeast(result.Alternates, ambiguousRunnerUpMin):
		result.Status = models.MatchStatusAmbiguous
	default:
		result.Status = models.MatchStatusMatched
	}
	return result
}

func scoreCandidate(tx statement.ParsedTransaction, tenant *models.Tenant) ScoredCandidate {
	c := ScoredCandidate{
		Tenant:      tenant,
		PhoneScore:  100,
		NameScore:   nameScore(tx.SenderName, tenant.FullName),
		AmountScore: amountScore(tx.Amount, tenant.MonthlyRentAmount),
	}
	c.OverallScore = phoneWeight*c.PhoneScore + nameWeight*c.NameScore + amountWeight*c.AmountScore
	return c
}

// nameScore is edit-distance similarity on normalized names, 0..100.
func nameScore(senderName, tenantName string) float64 {
	a := utils.NormalizeName(senderName)
	b := utils.NormalizeName(tenantName)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	dist := levenshtein.ComputeDistance(a, b)
	score := 100 * (1 - float64(dist)/float64(maxLen))
	if score < 0 {
		return 0
	}
	return score
}

// amountScore compares the transaction amount with the candidate's monthly
// rent. A 5–25% overshoot is treated as rent-plus-utilities and scored
// favorably; otherwise the score degrades with the percentage difference
// and is floored at 0.
func amountScore(txAmount, monthlyRent decimal.Decimal) float64 {
	if !monthlyRent.IsPositive() {
		return 0
	}
	if txAmount.Equal(monthlyRent) {
		return 100
	}

	diff, _ := txAmount.Sub(monthlyRent).Div(monthlyRent).Mul(decimal.NewFromInt(100)).Float64()
	absDiff := math.Abs(diff)

	switch {
	case diff >= 5 && diff <= 25:
		// Utilities-included heuristic.
		return math.Max(75, 100-diff)
	case absDiff <= 5:
		return 95
	case absDiff <= 20:
		// Linear degrade from 80 at the 5% edge down to 50 at 20%.
		return 80 - (absDiff-5)*2
	default:
		return math.Max(0, 50-(absDiff-20)*2)
	}
}

func confidenceTier(overall float64) models.MatchConfidence {
	switch {
	case overall >= highConfidenceMin:
		return models.MatchConfidenceHigh
	case overall >= mediumConfidenceMin:
		return models.MatchConfidenceMedium
	case overall >= lowConfidenceMin:
		return models.MatchConfidenceLow
	default:
		return models.MatchConfidenceNone
	}
}

// matchType buckets combine the phone gate (already passed) with name and
// amount thresholds. Fixed lookup, first match wins.
func matchType(nameScore, amountScore float64) models.MatchType {
	switch {
	case nameScore >= 95 && amountScore >= 95:
		return models.MatchTypePerfect
	case nameScore >= 80 && amountScore >= 75:
		return models.MatchTypeGood
	case nameScore >= 60:
		return models.MatchTypePartial
	default:
		return models.MatchTypeWeak
	}
}

func runnerUpAtLeast(alternates []ScoredCandidate, threshold float64) bool {
	for _, a := range alternates {
		if a.OverallScore >= threshold {
			return true
		}
	}
	return false
}
