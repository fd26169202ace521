/**
 * @description
 * This file implements the input validation rules that gate entry into the
 * payment lifecycle, plus the signup validation applied at customer
 * registration. Every rule is checked and every violation collected; the
 * validators never short-circuit, so the frontend can render field-level
 * error lists from a single response.
 *
 * All string inputs are trimmed and stripped of angle brackets before any
 * pattern is applied.
 */

package app

import (
	"regexp"
	"strings"

	"github.com/portalbank/payments-portal/internal/domain"
)

// Validation patterns, mirrored by the portal frontend.
var (
	fullNamePattern      = regexp.MustCompile(`^[a-zA-Z][a-zA-Z '\-]{1,99}$`)
	idNumberPattern      = regexp.MustCompile(`^\d{13}$`)
	usernamePattern      = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)
	accountNumberPattern = regexp.MustCompile(`^\d{10,12}$`)
	amountPattern        = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
	swiftCodePattern     = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
)

// maxAmountCents is the payment ceiling: 1,000,000.00 in the payment currency.
const maxAmountCents = 100_000_000

// ValidationErrors carries the full list of violated-rule messages for one
// request. It satisfies error so services can return it directly.
type ValidationErrors struct {
	Errors []string
}

func (v *ValidationErrors) Error() string {
	return "validation failed: " + strings.Join(v.Errors, "; ")
}

func (v *ValidationErrors) add(msg string) {
	v.Errors = append(v.Errors, msg)
}

// HasErrors reports whether any rule was violated.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// sanitizeInput trims whitespace and strips angle brackets, the same
// markup-injection defense the portal applies everywhere.
func sanitizeInput(input string) string {
	cleaned := strings.TrimSpace(input)
	cleaned = strings.ReplaceAll(cleaned, "<", "")
	cleaned = strings.ReplaceAll(cleaned, ">", "")
	return cleaned
}

// ValidateSignupRequest checks a signup payload, returning the normalized
// request (sanitized fields, lowercased username) and all violations.
func ValidateSignupRequest(req domain.SignupRequest) (domain.SignupRequest, *ValidationErrors) {
	verr := &ValidationErrors{}

	normalized := domain.SignupRequest{
		FullName:      sanitizeInput(req.FullName),
		IDNumber:      sanitizeInput(req.IDNumber),
		Username:      strings.ToLower(sanitizeInput(req.Username)),
		AccountNumber: sanitizeInput(req.AccountNumber),
		Password:      req.Password,
	}

	if !fullNamePattern.MatchString(normalized.FullName) {
		verr.add("Full name must be 2-100 letters, spaces, hyphens or apostrophes")
	}
	if !idNumberPattern.MatchString(normalized.IDNumber) {
		verr.add("ID number must be exactly 13 digits")
	}
	if !usernamePattern.MatchString(normalized.Username) {
		verr.add("Username must be 3-20 lowercase letters, digits or underscores")
	}
	if !accountNumberPattern.MatchString(normalized.AccountNumber) {
		verr.add("Account number must be 10-12 digits")
	}
	if msg := passwordStrengthViolation(normalized.Password); msg != "" {
		verr.add(msg)
	}

	return normalized, verr
}

func passwordStrengthViolation(password string) string {
	if len(password) < 8 {
		return "Password must be at least 8 characters"
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return "Password must contain an uppercase letter, a lowercase letter and a digit"
	}
	return ""
}

// ValidatedPayment is a payment request that has passed every rule and is
// ready for the ledger. Amounts are carried as cents from here on.
type ValidatedPayment struct {
	PayeeAccountNumber string
	AmountCents        int64
	Currency           string
	Provider           string
	SwiftCode          *string
}

// ValidatePaymentRequest checks a payment payload against the structural and
// business rules. All violations are collected; none short-circuit.
func ValidatePaymentRequest(req domain.CreatePaymentRequest) (*ValidatedPayment, *ValidationErrors) {
	verr := &ValidationErrors{}

	payee := sanitizeInput(req.PayeeAccountNumber)
	amountRaw := sanitizeInput(string(req.Amount))
	currency := strings.ToUpper(sanitizeInput(req.Currency))
	provider := sanitizeInput(req.Provider)
	swiftCode := strings.ToUpper(sanitizeInput(req.SwiftCode))

	if !accountNumberPattern.MatchString(payee) {
		verr.add("Invalid payee account number format")
	}

	amountCents, amountOK := parseAmountCents(amountRaw)
	if !amountOK || amountCents <= 0 || amountCents > maxAmountCents {
		verr.add("Amount must be between 0.01 and 1,000,000 with at most 2 decimal places")
	}

	if !domain.SupportedCurrencies[currency] {
		verr.add("Invalid currency code")
	}
	if !domain.SupportedProviders[provider] {
		verr.add("Invalid payment provider")
	}

	validated := &ValidatedPayment{
		PayeeAccountNumber: payee,
		AmountCents:        amountCents,
		Currency:           currency,
		Provider:           provider,
	}

	if provider == domain.ProviderSWIFT {
		if swiftCode == "" || !swiftCodePattern.MatchString(swiftCode) {
			verr.add("Valid SWIFT code required for SWIFT payments")
		} else {
			validated.SwiftCode = &swiftCode
		}
	}
	// For any other provider a supplied SWIFT code is ignored, not stored.

	if verr.HasErrors() {
		return nil, verr
	}
	return validated, verr
}

// parseAmountCents converts a sanitized decimal string into cents without
// going through floating point.
func parseAmountCents(raw string) (int64, bool) {
	if !amountPattern.MatchString(raw) {
		return 0, false
	}
	whole := raw
	frac := ""
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		whole = raw[:idx]
		frac = raw[idx+1:]
	}
	for len(frac) < 2 {
		frac += "0"
	}

	var cents int64
	for _, r := range whole + frac {
		digit := int64(r - '0')
		if cents > (maxAmountCents*10-digit)/10 {
			// Past any plausible ceiling; the caller's bound check rejects it.
			return maxAmountCents + 1, true
		}
		cents = cents*10 + digit
	}
	return cents, true
}
