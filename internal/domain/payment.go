/**
 * @description
 * This file defines the Payment entity and its fixed vocabularies: the
 * supported currencies, the payment providers, and the status state machine
 * (pending -> completed | failed, terminal once non-pending).
 *
 * @notes
 * - Amounts are stored as `int64` cents, which avoids floating-point
 *   inaccuracies with financial data. The API edge speaks decimal strings.
 * - The transaction reference is system-assigned, unique, and immutable.
 *   Clients never supply it.
 */

package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Payment statuses. A payment starts pending and transitions exactly once.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Resolve decisions accepted by the verify endpoint.
const (
	DecisionComplete = "complete"
	DecisionFail     = "fail"
)

// SupportedCurrencies is the fixed currency vocabulary for payments.
var SupportedCurrencies = map[string]bool{
	"ZAR": true,
	"USD": true,
	"EUR": true,
	"GBP": true,
	"AUD": true,
	"CAD": true,
	"JPY": true,
	"CNY": true,
}

// ProviderSWIFT is the only provider that requires a SWIFT code.
const ProviderSWIFT = "SWIFT"

// SupportedProviders is the fixed provider vocabulary for payments.
var SupportedProviders = map[string]bool{
	ProviderSWIFT:         true,
	"Local Bank Transfer": true,
	"PayPal":              true,
	"Wire Transfer":       true,
}

// Payment is the central entity of the portal: an international payment
// request owned by a customer and resolved exactly once by an employee.
type Payment struct {
	ID                   uuid.UUID `json:"id"`
	CustomerID           uuid.UUID `json:"customer_id"`
	PayeeAccountNumber   string    `json:"payee_account_number"`
	AmountCents          int64     `json:"amount_cents"`
	Currency             string    `json:"currency"`
	Provider             string    `json:"provider"`
	SwiftCode            *string   `json:"swift_code,omitempty"`
	Status               string    `json:"status"`
	TransactionReference string    `json:"transaction_reference"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// PaymentWithOwner joins the owning customer's identity onto a payment for
// the employee review view.
type PaymentWithOwner struct {
	Payment
	OwnerFullName      string `json:"owner_full_name"`
	OwnerUsername      string `json:"owner_username"`
	OwnerAccountNumber string `json:"owner_account_number"`
	OwnerIDNumber      string `json:"owner_id_number"`
}

// CreatePaymentRequest is the DTO for payment submission. The owning
// customer is never part of the payload; it comes from the session.
type CreatePaymentRequest struct {
	PayeeAccountNumber string      `json:"payeeAccountNumber"`
	Amount             AmountInput `json:"amount"`
	Currency           string      `json:"currency"`
	Provider           string      `json:"provider"`
	SwiftCode          string      `json:"swiftCode,omitempty"`
}

// VerifyPaymentRequest is the DTO for the employee resolve action.
type VerifyPaymentRequest struct {
	Action string `json:"action"`
}

// AmountInput accepts the amount field as either a JSON string ("500.00")
// or a bare number (500), the two shapes portal clients have historically
// sent. Validation of the value happens in the payment validator.
type AmountInput string

func (a *AmountInput) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AmountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = AmountInput(n.String())
	return nil
}

// FormatCents renders an int64 cents value as a two-decimal string.
func FormatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// PaymentSummary is the payment shape returned to customers after creation
// and in listings.
type PaymentSummary struct {
	ID                   uuid.UUID `json:"id"`
	TransactionReference string    `json:"transactionReference"`
	PayeeAccountNumber   string    `json:"payeeAccountNumber"`
	Amount               string    `json:"amount"`
	Currency             string    `json:"currency"`
	Provider             string    `json:"provider"`
	SwiftCode            *string   `json:"swiftCode,omitempty"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"createdAt"`
}

// OwnerSummary is the joined owner identity in the employee review view.
type OwnerSummary struct {
	FullName      string `json:"fullName"`
	Username      string `json:"username"`
	AccountNumber string `json:"accountNumber"`
	IDNumber      string `json:"idNumber"`
}

// EmployeePaymentView is a payment plus its owner for the employee list.
type EmployeePaymentView struct {
	PaymentSummary
	Owner OwnerSummary `json:"owner"`
}

// Summary builds the API-facing view of a payment.
func (p *Payment) Summary() PaymentSummary {
	return PaymentSummary{
		ID:                   p.ID,
		TransactionReference: p.TransactionReference,
		PayeeAccountNumber:   p.PayeeAccountNumber,
		Amount:               FormatCents(p.AmountCents),
		Currency:             p.Currency,
		Provider:             p.Provider,
		SwiftCode:            p.SwiftCode,
		Status:               p.Status,
		CreatedAt:            p.CreatedAt,
	}
}

// View builds the employee-facing view of a payment with its owner joined.
func (p *PaymentWithOwner) View() EmployeePaymentView {
	return EmployeePaymentView{
		PaymentSummary: p.Payment.Summary(),
		Owner: OwnerSummary{
			FullName:      p.OwnerFullName,
			Username:      p.OwnerUsername,
			AccountNumber: p.OwnerAccountNumber,
			IDNumber:      p.OwnerIDNumber,
		},
	}
}

// PaymentEvent is the payload published to the event exchange when a payment
// is created or resolved.
type PaymentEvent struct {
	PaymentID            uuid.UUID `json:"payment_id"`
	CustomerID           uuid.UUID `json:"customer_id"`
	TransactionReference string    `json:"transaction_reference"`
	Status               string    `json:"status"`
	AmountCents          int64     `json:"amount_cents"`
	Currency             string    `json:"currency"`
	Provider             string    `json:"provider"`
	Timestamp            time.Time `json:"timestamp"`
}
