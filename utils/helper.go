package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "UG"

var nonDigitRe = regexp.MustCompile(`\D`)

// NormalizePhoneNumber parses and formats a phone number to E.164.
// Falls back to the raw digits when the number cannot be parsed, because
// tenant records imported from spreadsheets are often missing country codes
// and a weak key is still better than none.
func NormalizePhoneNumber(raw string) string {
	p, err := libphonenumber.Parse(raw, CountryCode)
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return nonDigitRe.ReplaceAllString(raw, "")
	}
	return libphonenumber.Format(p, libphonenumber.E164)
}

func ValidatePhoneNumber(phoneNumber string) error {
	p, err := libphonenumber.Parse(phoneNumber, CountryCode)
	if err != nil {
		return err
	}
	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}
	return nil
}

// PhoneLast3 returns the last three digits of a phone number, ignoring any
// mask characters. Statement rows carry masked senders ("2567****123"), so
// the trailing digits are the only usable matching key.
func PhoneLast3(phone string) string {
	digits := nonDigitRe.ReplaceAllString(phone, "")
	if len(digits) < 3 {
		return digits
	}
	return digits[len(digits)-3:]
}

var spaceRe = regexp.MustCompile(`\s+`)

// NormalizeName lowercases and collapses whitespace for similarity scoring.
func NormalizeName(name string) string {
	return spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["error"] = err.Error()
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func NewCorrelationId() string {
	return uuid.NewString()
}

// ParseStatementAmount parses "1,234,567.50" style figures.
func ParseStatementAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	return decimal.NewFromString(cleaned)
}
