package models

import "time"

const (
	RegistrationPendingPayment = "pending_payment"
	RegistrationConfirmed      = "confirmed"
	RegistrationFailed         = "failed"
	RegistrationCancelled      = "cancelled"
)

// Registration is an attendee's claim on a pass. At most one confirmed
// registration exists per (event, attendee); the store enforces this with
// a partial unique index.
type Registration struct {
	ID         string         `json:"id"`
	EventID    string         `json:"event_id"`
	AttendeeID string         `json:"attendee_id"`
	PassID     string         `json:"pass_id,omitempty"`
	Status     string         `json:"status"`
	Survey     map[string]any `json:"survey,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Intent is a short-lived record of a registration attempt made before the
// caller authenticated. It is replayed through Register once a session
// exists, instead of being carried in ambient client storage.
type Intent struct {
	EventID   string    `json:"event_id"`
	PassID    string    `json:"pass_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
