package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// Domain errors. Non-retryable; surfaced synchronously to the caller.
var (
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrPropertyNotFound   = errors.New("property not found")
	ErrNoPropertyAssigned = errors.New("tenant has no property assigned")
)

// Input-validation errors. Caller corrects and retries.
var (
	ErrInvalidAmount = errors.New("payment amount must be greater than zero")
	ErrInvalidPeriod = errors.New("invalid billing period")
)

// Statement-level errors.
var (
	// ErrNotAStatement means no recognizable money-received header was found.
	// Distinct from a valid statement with zero rows, which is not an error.
	ErrNotAStatement = errors.New("no recognizable statement header")

	// ErrPasswordRequired is surfaced by the external text-extraction step for
	// password-protected documents; declared here so callers can classify it.
	ErrPasswordRequired = errors.New("statement source is password protected")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
