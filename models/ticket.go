package models

import "time"

const (
	CheckInViaQR     = "qr"
	CheckInViaManual = "manual"
)

// Ticket is the issued, scannable proof of a confirmed registration.
// Exactly one ticket exists per registration; it is never deleted, only
// its check-in state changes.
type Ticket struct {
	ID             string    `json:"id"`
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	AttendeeID     string    `json:"attendee_id"`
	PassID         string    `json:"pass_id,omitempty"`
	Number         string    `json:"number"`
	IssuedAt       time.Time `json:"issued_at"`

	// CodeDigest is the HMAC-SHA256 digest of the scan code. The raw code
	// is returned once at issue time and never persisted.
	CodeDigest string `json:"-"`

	CheckIn CheckInState `json:"check_in"`
}

// CheckInState is the per-ticket presence state. CheckedInAt and Via are
// unset whenever CheckedIn is false.
type CheckInState struct {
	CheckedIn    bool       `json:"checked_in"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	Via          string     `json:"checked_in_via,omitempty"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty"`
}

// ScanResult is returned by both the scan and manual check-in paths. The
// counts are read inside the same atomic section as the transition, so a
// scanner UI can render the running tally without a follow-up query.
type ScanResult struct {
	TicketID  string `json:"ticket_id"`
	EventID   string `json:"event_id"`
	CheckedIn bool   `json:"checked_in"`

	// Already reports that the requested state was in place before this
	// call. It is a successful, idempotent outcome, not an error.
	Already bool   `json:"already"`
	Via     string `json:"via,omitempty"`

	CheckedInCount int64 `json:"checked_in_count"`
	Total          int64 `json:"total"`
}

// EventStats is the live aggregate for one event. CheckedIn + Pending
// always equals Total, and Total counts issued tickets, not registrations.
type EventStats struct {
	Total     int64 `json:"total"`
	CheckedIn int64 `json:"checked_in"`
	Pending   int64 `json:"pending"`
}

// RosterEntry is the read-side projection joining a registration, its
// ticket, and attendee profile fields. It is never mutated directly.
type RosterEntry struct {
	RegistrationID string       `json:"registration_id"`
	TicketID       string       `json:"ticket_id,omitempty"`
	TicketNumber   string       `json:"ticket_number,omitempty"`
	AttendeeID     string       `json:"attendee_id"`
	AttendeeName   string       `json:"attendee_name"`
	AttendeeEmail  string       `json:"attendee_email,omitempty"`
	PassID         string       `json:"pass_id,omitempty"`
	Status         string       `json:"status"`
	CheckIn        CheckInState `json:"check_in"`
}
