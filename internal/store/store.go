package store

import (
	"context"

	"gatepass/models"
)

// Store is the durable record layer behind the engine. The PocketBase
// implementation is the production one; services depend on this interface
// so tests can substitute a mock.
//
// The check-in columns written through UpdateTicketCheckIn are a
// projection of the Redis authority, not the live state; live reads go
// through the coordinator.
type Store interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetPass(ctx context.Context, id string) (*models.Pass, error)

	// FindActiveRegistration returns the confirmed or pending_payment
	// registration for (event, attendee), or
	// status.ErrRegistrationNotFound.
	FindActiveRegistration(ctx context.Context, eventID, attendeeID string) (*models.Registration, error)
	GetRegistration(ctx context.Context, id string) (*models.Registration, error)
	CreateRegistration(ctx context.Context, reg *models.Registration) error
	SetRegistrationStatus(ctx context.Context, id, status string) error

	CreateOrder(ctx context.Context, order *models.PaymentOrder) error
	GetOrderByRef(ctx context.Context, gatewayRef string) (*models.PaymentOrder, error)
	GetOrderByRegistration(ctx context.Context, registrationID string) (*models.PaymentOrder, error)
	// MarkOrderVerified flips the order to verified. The transition is
	// one-way; marking an already-verified order is a no-op.
	MarkOrderVerified(ctx context.Context, id string) error

	// MintTicket creates the ticket unless one already exists for its
	// registration, in which case the existing ticket is returned with
	// created=false. The uniqueness check and the insert run in one
	// transaction, backed by a unique index on the registration column.
	MintTicket(ctx context.Context, ticket *models.Ticket) (stored *models.Ticket, created bool, err error)
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketByRegistration(ctx context.Context, registrationID string) (*models.Ticket, error)
	CountTickets(ctx context.Context, eventID string) (int64, error)
	CountCheckedIn(ctx context.Context, eventID string) (int64, error)
	UpdateTicketCheckIn(ctx context.Context, ticketID string, st models.CheckInState) error

	ListRoster(ctx context.Context, eventID string) ([]models.RosterEntry, error)
}
