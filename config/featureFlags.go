package config

import (
	"os"
	"strings"
)

// StatementAutoApproveHighConfidence lets the import pipeline reconcile
// high-confidence perfect matches without waiting for human review.
// Off by default: every match goes through the review queue.
//
// Set via env:
// - STATEMENT_AUTO_APPROVE=true
func StatementAutoApproveHighConfidence() bool {
	return boolFlag("STATEMENT_AUTO_APPROVE")
}

// StrictReceiptImmutability rejects any UPDATE against payment_transactions
// at the model-hook level. Receipts are append-only; corrections are new rows.
// On by default; the escape hatch exists only for data-repair tooling.
//
// Set via env:
// - ALLOW_RECEIPT_MUTATION=true (disables the guard)
func StrictReceiptImmutability() bool {
	return !boolFlag("ALLOW_RECEIPT_MUTATION")
}

func boolFlag(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
