// Package statement extracts structured transaction rows from raw
// mobile-money / bank statement text. Text extraction from the source
// document (PDF etc.) happens upstream; this package only sees the text.
package statement

import (
	"regexp"
	"strings"
	"time"

	"github.com/mmdatafocus/rentease_backend/utils"
	"github.com/shopspring/decimal"
)

// ParsedTransaction is one money-received row in document order. It has no
// persistence identity of its own until the matcher turns it into a
// MatchResult.
type ParsedTransaction struct {
	ReceiptNumber  string
	CompletionTime time.Time
	SenderPhone    string
	PhoneLast3     string
	SenderName     string
	Amount         decimal.Decimal
	Balance        decimal.Decimal
}

// Statement providers are not consistent about the money-in header; these
// cover the variants seen in production exports. Matching is
// case-insensitive and tolerates arbitrary spacing.
var headerRe = regexp.MustCompile(`(?i)money\s*received|received\s*funds|money\s*in|paid\s*in`)

// A following money-out section ends the money-in block.
var sectionEndRe = regexp.MustCompile(`(?i)money\s*out|paid\s*out|money\s*sent|withdraw(n|als)?`)

// Row shape: receipt, completion time, masked sender phone, sender name,
// amount, running balance. Example:
//
//	QHX4T81KP2  2026-08-12 14:33:21  2567****123  OKELLO JAMES  450,000.00  1,250,000.00
var rowRe = regexp.MustCompile(`^\s*([A-Z][A-Z0-9]{5,11})\s+(\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}(?::\d{2})?)\s+(\+?[0-9*]{6,16})\s+(\S.*?)\s+([\d,]+(?:\.\d{1,2})?)\s+([\d,]+(?:\.\d{1,2})?)\s*$`)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Parse locates the money-received section and yields its rows in document
// order.
//
// Two outcomes are deliberately distinct:
//   - no recognizable header anywhere -> utils.ErrNotAStatement
//   - header present but zero rows parse -> empty slice, nil error
func Parse(raw string) ([]ParsedTransaction, error) {
	loc := headerRe.FindStringIndex(raw)
	if loc == nil {
		return nil, utils.ErrNotAStatement
	}
	section := raw[loc[1]:]
	if end := sectionEndRe.FindStringIndex(section); end != nil {
		section = section[:end[0]]
	}

	transactions := []ParsedTransaction{}
	for _, line := range strings.Split(section, "\n") {
		row, ok := parseRow(line)
		if !ok {
			continue
		}
		transactions = append(transactions, row)
	}
	return transactions, nil
}

func parseRow(line string) (ParsedTransaction, bool) {
	var row ParsedTransaction
	m := rowRe.FindStringSubmatch(line)
	if m == nil {
		return row, false
	}

	completion, ok := parseCompletionTime(m[2])
	if !ok {
		return row, false
	}
	amount, err := utils.ParseStatementAmount(m[5])
	if err != nil || !amount.IsPositive() {
		return row, false
	}
	balance, err := utils.ParseStatementAmount(m[6])
	if err != nil {
		return row, false
	}

	row.ReceiptNumber = m[1]
	row.CompletionTime = completion
	row.SenderPhone = m[3]
	row.PhoneLast3 = utils.PhoneLast3(m[3])
	row.SenderName = strings.TrimSpace(m[4])
	row.Amount = amount
	row.Balance = balance
	return row, true
}

func parseCompletionTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
