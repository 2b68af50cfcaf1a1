package status

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEventNotFound        = errors.New("event: not found")
	ErrPassNotFound         = errors.New("pass: not found")
	ErrRegistrationNotFound = errors.New("registration: not found")
	ErrOrderNotFound        = errors.New("order: not found")
	ErrTicketNotFound       = errors.New("ticket: not found")
	ErrCapacityExceeded     = errors.New("pass: capacity exceeded")
	ErrPolicyViolation      = errors.New("registration: event policy violation")
	ErrPaymentUnverified    = errors.New("payment: not verified")
	ErrInvalidCode          = errors.New("checkin: invalid scan code")
	ErrWrongEvent           = errors.New("checkin: code belongs to another event")
	ErrForbidden            = errors.New("roster: access denied")
	ErrIntentNotFound       = errors.New("intent: not found or expired")
)

// Transaction is a settled payment as reported by the gateway, either
// through the callback channel or a direct status check.
type Transaction struct {
	RefID         string          `json:"ref_id"`
	UUID          string          `json:"uuid"`
	Ccy           string          `json:"ccy"`
	Payer         string          `json:"payer"`
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderForm carries the fields a gateway needs to open a payment order
// and render its QR payload.
type OrderForm struct {
	UUID           string
	Phone          string
	MerchantID     string
	ReferenceLabel string
	TerminalLabel  string
	Amount         decimal.Decimal
	Currency       string
}
