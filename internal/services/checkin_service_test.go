package services

import (
	"context"
	"testing"
	"time"

	"gatepass/internal/status"
	"gatepass/models"
	"gatepass/utils"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testScanCodeKey = "test-scan-code-key"

func setupTestCheckInService() (*CheckInService, redismock.ClientMock, *mockStore) {
	db, mock := redismock.NewClientMock()
	st := &mockStore{}

	service := NewCheckInService(db, st, nil, nil, testScanCodeKey)
	service.now = func() time.Time {
		return time.Date(2026, 9, 1, 19, 30, 0, 0, time.UTC)
	}

	return service, mock, st
}

func gateTicket() *models.Ticket {
	return &models.Ticket{
		ID:             "ticket-1",
		RegistrationID: "reg-1",
		EventID:        "event-1",
		AttendeeID:     "user-1",
		Number:         "GP-0001",
	}
}

func TestCheckInService_Scan_FirstScan(t *testing.T) {
	service, mock, st := setupTestCheckInService()
	defer mock.ClearExpect()

	ctx := context.Background()
	ticket := gateTicket()
	rawCode := "A1B2C3D4E5F6A7B8C9D0A1B2C3D4E5F6A7B8C9D0"
	digest := utils.Hmac256([]byte(rawCode), []byte(testScanCodeKey))

	mock.ExpectGet("scancode:" + digest).SetVal(ticket.ID)
	st.On("GetTicket", ctx, ticket.ID).Return(ticket, nil)

	at := service.now().UTC().Format(time.RFC3339)
	mock.ExpectEval(checkInScript, []string{
		"checkin:state:ticket-1",
		"checkin:count:event-1",
		"ticket:total:event-1",
	}, at, "qr").SetVal([]interface{}{int64(0), int64(5), int64(12), "qr"})

	st.On("UpdateTicketCheckIn", tmock.Anything, ticket.ID, tmock.Anything).Return(nil).Maybe()

	result, err := service.Scan(ctx, rawCode, Operator{UserID: "op-1", EventID: "event-1"})

	require.NoError(t, err)
	assert.True(t, result.CheckedIn)
	assert.False(t, result.Already)
	assert.Equal(t, "qr", result.Via)
	assert.Equal(t, int64(5), result.CheckedInCount)
	assert.Equal(t, int64(12), result.Total)

	// let the projection goroutine run
	time.Sleep(100 * time.Millisecond)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInService_Scan_ReplayIsIdempotent(t *testing.T) {
	service, mock, st := setupTestCheckInService()
	defer mock.ClearExpect()

	ctx := context.Background()
	ticket := gateTicket()
	rawCode := "A1B2C3D4E5F6A7B8C9D0A1B2C3D4E5F6A7B8C9D0"
	digest := utils.Hmac256([]byte(rawCode), []byte(testScanCodeKey))

	mock.ExpectGet("scancode:" + digest).SetVal(ticket.ID)
	st.On("GetTicket", ctx, ticket.ID).Return(ticket, nil)

	at := service.now().UTC().Format(time.RFC3339)
	mock.ExpectEval(checkInScript, []string{
		"checkin:state:ticket-1",
		"checkin:count:event-1",
		"ticket:total:event-1",
	}, at, "qr").SetVal([]interface{}{int64(1), int64(5), int64(12), "qr"})

	result, err := service.Scan(ctx, rawCode, Operator{UserID: "op-1", EventID: "event-1"})

	require.NoError(t, err)
	assert.True(t, result.Already)
	assert.Equal(t, int64(5), result.CheckedInCount)

	// a replay must not project or publish anything
	st.AssertNotCalled(t, "UpdateTicketCheckIn", tmock.Anything, tmock.Anything, tmock.Anything)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInService_Scan_UnknownCode(t *testing.T) {
	service, mock, st := setupTestCheckInService()
	defer mock.ClearExpect()

	rawCode := "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF"
	digest := utils.Hmac256([]byte(rawCode), []byte(testScanCodeKey))

	mock.ExpectGet("scancode:" + digest).RedisNil()

	result, err := service.Scan(context.Background(), rawCode, Operator{UserID: "op-1", EventID: "event-1"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, status.ErrInvalidCode)
	st.AssertNotCalled(t, "GetTicket", tmock.Anything, tmock.Anything)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInService_Scan_WrongEvent(t *testing.T) {
	service, mock, st := setupTestCheckInService()
	defer mock.ClearExpect()

	ctx := context.Background()
	ticket := gateTicket()
	rawCode := "A1B2C3D4E5F6A7B8C9D0A1B2C3D4E5F6A7B8C9D0"
	digest := utils.Hmac256([]byte(rawCode), []byte(testScanCodeKey))

	mock.ExpectGet("scancode:" + digest).SetVal(ticket.ID)
	st.On("GetTicket", ctx, ticket.ID).Return(ticket, nil)

	result, err := service.Scan(ctx, rawCode, Operator{UserID: "op-1", EventID: "other-event"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, status.ErrWrongEvent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInService_ManualSet_CheckOut(t *testing.T) {
	service, mock, st := setupTestCheckInService()
	defer mock.ClearExpect()

	ctx := context.Background()
	ticket := gateTicket()

	st.On("GetTicket", ctx, ticket.ID).Return(ticket, nil)

	at := service.now().UTC().Format(time.RFC3339)
	mock.ExpectEval(checkOutScript, []string{
		"checkin:state:ticket-1",
		"checkin:count:event-1",
		"ticket:total:event-1",
	}, at, "manual").SetVal([]interface{}{int64(0), int64(4), int64(12), ""})

	st.On("UpdateTicketCheckIn", tmock.Anything, ticket.ID, tmock.Anything).Return(nil).Maybe()

	result, err := service.ManualSet(ctx, ticket.ID, Operator{UserID: "op-1", EventID: "event-1"}, "checkout")

	require.NoError(t, err)
	assert.False(t, result.CheckedIn)
	assert.False(t, result.Already)
	assert.Equal(t, int64(4), result.CheckedInCount)

	time.Sleep(100 * time.Millisecond)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInService_ManualSet_CheckOutTwice(t *testing.T) {
	service, mock, st := setupTestCheckInService()
	defer mock.ClearExpect()

	ctx := context.Background()
	ticket := gateTicket()

	st.On("GetTicket", ctx, ticket.ID).Return(ticket, nil)

	at := service.now().UTC().Format(time.RFC3339)
	mock.ExpectEval(checkOutScript, []string{
		"checkin:state:ticket-1",
		"checkin:count:event-1",
		"ticket:total:event-1",
	}, at, "manual").SetVal([]interface{}{int64(1), int64(4), int64(12), ""})

	result, err := service.ManualSet(ctx, ticket.ID, Operator{UserID: "op-1", EventID: "event-1"}, "checkout")

	require.NoError(t, err)
	assert.True(t, result.Already)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInService_ManualSet_UnknownAction(t *testing.T) {
	service, mock, st := setupTestCheckInService()
	defer mock.ClearExpect()

	ctx := context.Background()
	ticket := gateTicket()

	st.On("GetTicket", ctx, ticket.ID).Return(ticket, nil)

	_, err := service.ManualSet(ctx, ticket.ID, Operator{UserID: "op-1", EventID: "event-1"}, "eject")

	assert.Error(t, err)
}
