package services

import (
	"context"
	"errors"
	"testing"

	"gatepass/internal/status"
	"gatepass/models"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	tmock.Mock
}

func (m *mockGateway) Provider() string { return "mock" }

func (m *mockGateway) CreateOrder(ctx context.Context, form *status.OrderForm) (string, error) {
	args := m.Called(ctx, form)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CheckTransaction(ctx context.Context, uuid string) (*status.Transaction, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*status.Transaction), args.Error(1)
}

func (m *mockGateway) SetTransactionChannel(ch chan *status.Transaction) {}

func (m *mockGateway) Close(ctx context.Context) error { return nil }

func setupTestPaymentService() (*PaymentService, redismock.ClientMock, *mockStore, *mockGateway) {
	db, mock := redismock.NewClientMock()
	st := &mockStore{}
	gw := &mockGateway{}

	tickets := NewTicketService(db, st, nil, testScanCodeKey, "GP")
	service := NewPaymentService(st, gw, tickets, nil, nil)

	return service, mock, st, gw
}

func createdOrder() *models.PaymentOrder {
	return &models.PaymentOrder{
		ID:             "order-1",
		RegistrationID: "reg-1",
		Amount:         decimal.NewFromInt(150),
		Currency:       "LAK",
		GatewayRef:     "GPREF1",
		Status:         models.OrderCreated,
	}
}

func TestPaymentService_OpenOrder(t *testing.T) {
	service, mock, st, gw := setupTestPaymentService()
	defer mock.ClearExpect()

	ctx := context.Background()
	reg := &models.Registration{ID: "reg-1", EventID: "event-1", AttendeeID: "user-1", PassID: "pass-1", Status: models.RegistrationPendingPayment}
	pass := &models.Pass{ID: "pass-1", EventID: "event-1", Price: decimal.NewFromInt(150), Currency: "LAK"}

	gw.On("CreateOrder", ctx, tmock.Anything).Return("EMV-QR-PAYLOAD", nil)

	st.On("CreateOrder", ctx, tmock.Anything).Run(func(args tmock.Arguments) {
		args.Get(1).(*models.PaymentOrder).ID = "order-1"
	}).Return(nil)

	order, paymentQR, err := service.OpenOrder(ctx, reg, pass)

	require.NoError(t, err)
	assert.Equal(t, "EMV-QR-PAYLOAD", paymentQR)
	assert.Equal(t, "order-1", order.ID)
	assert.Equal(t, models.OrderCreated, order.Status)
	assert.True(t, order.Amount.Equal(pass.Price))
	assert.NotEmpty(t, order.GatewayRef)
}

func TestPaymentService_HandleVerification_Settles(t *testing.T) {
	service, mock, st, gw := setupTestPaymentService()
	defer mock.ClearExpect()

	ctx := context.Background()
	order := createdOrder()
	stored := &models.Ticket{ID: "ticket-1", RegistrationID: "reg-1", EventID: "event-1", AttendeeID: "user-1", CodeDigest: "stored-digest"}

	st.On("GetOrderByRef", ctx, "GPREF1").Return(order, nil)
	gw.On("CheckTransaction", ctx, "GPREF1").Return(&status.Transaction{
		UUID:   "GPREF1",
		Amount: decimal.NewFromInt(150),
	}, nil)
	st.On("MarkOrderVerified", ctx, "order-1").Return(nil)
	st.On("SetRegistrationStatus", ctx, "reg-1", models.RegistrationConfirmed).Return(nil)

	// issuance path
	st.On("GetRegistration", ctx, "reg-1").Return(&models.Registration{
		ID: "reg-1", EventID: "event-1", AttendeeID: "user-1", Status: models.RegistrationConfirmed,
	}, nil)
	st.On("GetTicketByRegistration", ctx, "reg-1").Return(nil, status.ErrTicketNotFound).Once()
	mock.ExpectSetNX("ticket:issue:reg-1", "1", issueLockTTL).SetVal(true)
	mock.ExpectIncr("ticket:seq:event-1").SetVal(1)
	st.On("MintTicket", tmock.Anything, tmock.Anything).Return(stored, true, nil)
	mock.ExpectSet("scancode:stored-digest", "ticket-1", 0).SetVal("OK")
	mock.ExpectHSet("checkin:state:ticket-1", "checked_in", "0").SetVal(1)
	mock.ExpectIncr("ticket:total:event-1").SetVal(1)
	mock.ExpectDel("ticket:issue:reg-1").SetVal(1)

	ticket, err := service.HandleVerification(ctx, "GPREF1")

	require.NoError(t, err)
	assert.Equal(t, stored, ticket)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_HandleVerification_RedeliveredCallback(t *testing.T) {
	service, mock, st, gw := setupTestPaymentService()
	defer mock.ClearExpect()

	ctx := context.Background()
	order := createdOrder()
	order.Status = models.OrderVerified
	existing := &models.Ticket{ID: "ticket-1", RegistrationID: "reg-1"}

	st.On("GetOrderByRef", ctx, "GPREF1").Return(order, nil)
	st.On("GetTicketByRegistration", ctx, "reg-1").Return(existing, nil)

	ticket, err := service.HandleVerification(ctx, "GPREF1")

	require.NoError(t, err)
	assert.Equal(t, existing, ticket)

	// a re-delivered callback never goes back to the gateway or mints
	gw.AssertNotCalled(t, "CheckTransaction", tmock.Anything, tmock.Anything)
	st.AssertNotCalled(t, "MintTicket", tmock.Anything, tmock.Anything)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_HandleVerification_AmountMismatch(t *testing.T) {
	service, mock, st, gw := setupTestPaymentService()
	defer mock.ClearExpect()

	ctx := context.Background()
	order := createdOrder()

	st.On("GetOrderByRef", ctx, "GPREF1").Return(order, nil)
	gw.On("CheckTransaction", ctx, "GPREF1").Return(&status.Transaction{
		UUID:   "GPREF1",
		Amount: decimal.NewFromInt(1),
	}, nil)

	ticket, err := service.HandleVerification(ctx, "GPREF1")

	assert.Nil(t, ticket)
	assert.ErrorIs(t, err, status.ErrPaymentUnverified)
	st.AssertNotCalled(t, "MarkOrderVerified", tmock.Anything, tmock.Anything)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_HandleVerification_GatewayRejects(t *testing.T) {
	service, mock, st, gw := setupTestPaymentService()
	defer mock.ClearExpect()

	ctx := context.Background()
	order := createdOrder()

	st.On("GetOrderByRef", ctx, "GPREF1").Return(order, nil)
	gw.On("CheckTransaction", ctx, "GPREF1").Return(nil, errors.New("payment not found"))

	ticket, err := service.HandleVerification(ctx, "GPREF1")

	assert.Nil(t, ticket)
	assert.ErrorIs(t, err, status.ErrPaymentUnverified)
	st.AssertNotCalled(t, "SetRegistrationStatus", tmock.Anything, tmock.Anything, tmock.Anything)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_HandleVerification_UnknownRef(t *testing.T) {
	service, mock, st, _ := setupTestPaymentService()
	defer mock.ClearExpect()

	ctx := context.Background()

	st.On("GetOrderByRef", ctx, "nope").Return(nil, status.ErrOrderNotFound)

	ticket, err := service.HandleVerification(ctx, "nope")

	assert.Nil(t, ticket)
	assert.ErrorIs(t, err, status.ErrOrderNotFound)
}
