package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is the schedulable activity attendees register for. The engine
// only reads events; they are owned by organizer tooling.
type Event struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	StartsAt        time.Time `json:"starts_at"`
	Location        string    `json:"location"`
	WomenOnly       bool      `json:"women_only"`
	GuestListPublic bool      `json:"guest_list_public"`
	OrganizerID     string    `json:"organizer_id"`

	// ScannerPINHash is the bcrypt hash of the event's scanner PIN.
	// Empty means no operator delegation for this event.
	ScannerPINHash string `json:"-"`
}

// Pass is a purchasable or free ticket tier belonging to one event.
type Pass struct {
	ID       string          `json:"id"`
	EventID  string          `json:"event_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`

	// Capacity limits the number of registrations for this pass.
	// Zero means unlimited.
	Capacity int `json:"capacity"`
}

// Free reports whether the pass requires no payment.
func (p *Pass) Free() bool {
	return p.Price.IsZero()
}
