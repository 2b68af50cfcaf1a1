package services

import (
	"context"
	"testing"
	"time"

	"gatepass/internal/status"
	"gatepass/models"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupTestOperatorService() (*OperatorService, redismock.ClientMock, *mockStore) {
	db, mock := redismock.NewClientMock()
	st := &mockStore{}

	return NewOperatorService(db, st, 18*time.Hour), mock, st
}

func eventWithPIN(t *testing.T, pin string) *models.Event {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	require.NoError(t, err)

	return &models.Event{ID: "event-1", OrganizerID: "org-1", ScannerPINHash: string(hash)}
}

func TestOperatorService_Claim_CorrectPIN(t *testing.T) {
	service, mock, st := setupTestOperatorService()
	defer mock.ClearExpect()

	ctx := context.Background()

	st.On("GetEvent", ctx, "event-1").Return(eventWithPIN(t, "4821"), nil)
	mock.ExpectSet("operator:event-1:helper-1", "1", 18*time.Hour).SetVal("OK")

	err := service.Claim(ctx, "event-1", "helper-1", "4821")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperatorService_Claim_WrongPIN(t *testing.T) {
	service, mock, st := setupTestOperatorService()
	defer mock.ClearExpect()

	ctx := context.Background()

	st.On("GetEvent", ctx, "event-1").Return(eventWithPIN(t, "4821"), nil)

	err := service.Claim(ctx, "event-1", "helper-1", "0000")

	assert.ErrorIs(t, err, status.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperatorService_Claim_NoPINConfigured(t *testing.T) {
	service, mock, st := setupTestOperatorService()
	defer mock.ClearExpect()

	ctx := context.Background()

	st.On("GetEvent", ctx, "event-1").Return(&models.Event{ID: "event-1", OrganizerID: "org-1"}, nil)

	err := service.Claim(ctx, "event-1", "helper-1", "4821")

	assert.ErrorIs(t, err, status.ErrForbidden)
}

func TestOperatorService_Scope_Organizer(t *testing.T) {
	service, mock, st := setupTestOperatorService()
	defer mock.ClearExpect()

	ctx := context.Background()

	st.On("GetEvent", ctx, "event-1").Return(&models.Event{ID: "event-1", OrganizerID: "org-1"}, nil)

	op, err := service.Scope(ctx, "event-1", "org-1")

	require.NoError(t, err)
	assert.Equal(t, Operator{UserID: "org-1", EventID: "event-1"}, op)
}

func TestOperatorService_Scope_GrantedHelper(t *testing.T) {
	service, mock, st := setupTestOperatorService()
	defer mock.ClearExpect()

	ctx := context.Background()

	st.On("GetEvent", ctx, "event-1").Return(&models.Event{ID: "event-1", OrganizerID: "org-1"}, nil)
	mock.ExpectExists("operator:event-1:helper-1").SetVal(1)

	op, err := service.Scope(ctx, "event-1", "helper-1")

	require.NoError(t, err)
	assert.Equal(t, "event-1", op.EventID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperatorService_Scope_NoGrant(t *testing.T) {
	service, mock, st := setupTestOperatorService()
	defer mock.ClearExpect()

	ctx := context.Background()

	st.On("GetEvent", ctx, "event-1").Return(&models.Event{ID: "event-1", OrganizerID: "org-1"}, nil)
	mock.ExpectExists("operator:event-1:stranger").SetVal(0)

	_, err := service.Scope(ctx, "event-1", "stranger")

	assert.ErrorIs(t, err, status.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}
