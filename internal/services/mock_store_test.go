package services

import (
	"context"

	"gatepass/models"

	"github.com/stretchr/testify/mock"
)

// mockStore is a testify mock of store.Store shared by the service tests.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *mockStore) GetPass(ctx context.Context, id string) (*models.Pass, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Pass), args.Error(1)
}

func (m *mockStore) FindActiveRegistration(ctx context.Context, eventID, attendeeID string) (*models.Registration, error) {
	args := m.Called(ctx, eventID, attendeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Registration), args.Error(1)
}

func (m *mockStore) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Registration), args.Error(1)
}

func (m *mockStore) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	args := m.Called(ctx, reg)
	return args.Error(0)
}

func (m *mockStore) SetRegistrationStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockStore) CreateOrder(ctx context.Context, order *models.PaymentOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockStore) GetOrderByRef(ctx context.Context, gatewayRef string) (*models.PaymentOrder, error) {
	args := m.Called(ctx, gatewayRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentOrder), args.Error(1)
}

func (m *mockStore) GetOrderByRegistration(ctx context.Context, registrationID string) (*models.PaymentOrder, error) {
	args := m.Called(ctx, registrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentOrder), args.Error(1)
}

func (m *mockStore) MarkOrderVerified(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) MintTicket(ctx context.Context, ticket *models.Ticket) (*models.Ticket, bool, error) {
	args := m.Called(ctx, ticket)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Ticket), args.Bool(1), args.Error(2)
}

func (m *mockStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *mockStore) GetTicketByRegistration(ctx context.Context, registrationID string) (*models.Ticket, error) {
	args := m.Called(ctx, registrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *mockStore) CountTickets(ctx context.Context, eventID string) (int64, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) CountCheckedIn(ctx context.Context, eventID string) (int64, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) UpdateTicketCheckIn(ctx context.Context, ticketID string, st models.CheckInState) error {
	args := m.Called(ctx, ticketID, st)
	return args.Error(0)
}

func (m *mockStore) ListRoster(ctx context.Context, eventID string) ([]models.RosterEntry, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RosterEntry), args.Error(1)
}
