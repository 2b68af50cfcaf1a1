package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderCreated  = "created"
	OrderVerified = "verified"
	OrderFailed   = "failed"
)

// PaymentOrder tracks a gateway payment opened for a priced registration.
// Verification is one-way: a verified order never reverts, and verifying
// the same order twice yields exactly one ticket.
type PaymentOrder struct {
	ID             string          `json:"id"`
	RegistrationID string          `json:"registration_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	GatewayRef     string          `json:"gateway_ref"`
	Status         string          `json:"status"`
	VerifiedAt     *time.Time      `json:"verified_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
