package services

import (
	"context"
	"testing"

	"gatepass/internal/status"
	"gatepass/models"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRosterService() (*RosterService, redismock.ClientMock, *mockStore) {
	db, mock := redismock.NewClientMock()
	st := &mockStore{}

	return NewRosterService(db, st), mock, st
}

func rosterEvent() *models.Event {
	return &models.Event{ID: "event-1", Title: "Community Meetup", OrganizerID: "org-1"}
}

func TestRosterService_Stats_Consistent(t *testing.T) {
	service, mock, st := setupTestRosterService()
	defer mock.ClearExpect()

	ctx := context.Background()

	st.On("GetEvent", ctx, "event-1").Return(rosterEvent(), nil)
	mock.ExpectMGet("checkin:count:event-1", "ticket:total:event-1").SetVal([]interface{}{"5", "12"})

	stats, err := service.Stats(ctx, "event-1", "org-1")

	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.Total)
	assert.Equal(t, int64(5), stats.CheckedIn)
	assert.Equal(t, int64(7), stats.Pending)
	assert.Equal(t, stats.Total, stats.CheckedIn+stats.Pending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterService_Stats_FallsBackToStore(t *testing.T) {
	service, mock, st := setupTestRosterService()
	defer mock.ClearExpect()

	ctx := context.Background()

	st.On("GetEvent", ctx, "event-1").Return(rosterEvent(), nil)
	mock.ExpectMGet("checkin:count:event-1", "ticket:total:event-1").SetVal([]interface{}{nil, nil})
	st.On("CountTickets", ctx, "event-1").Return(int64(3), nil)
	st.On("CountCheckedIn", ctx, "event-1").Return(int64(1), nil)

	stats, err := service.Stats(ctx, "event-1", "org-1")

	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.CheckedIn)
	assert.Equal(t, int64(2), stats.Pending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterService_Stats_Forbidden(t *testing.T) {
	service, mock, st := setupTestRosterService()
	defer mock.ClearExpect()

	ctx := context.Background()

	st.On("GetEvent", ctx, "event-1").Return(rosterEvent(), nil)
	mock.ExpectExists("operator:event-1:user-9").SetVal(0)

	stats, err := service.Stats(ctx, "event-1", "user-9")

	assert.Nil(t, stats)
	assert.ErrorIs(t, err, status.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterService_List_OverlaysLiveState(t *testing.T) {
	service, mock, st := setupTestRosterService()
	defer mock.ClearExpect()

	ctx := context.Background()

	st.On("GetEvent", ctx, "event-1").Return(rosterEvent(), nil)
	st.On("ListRoster", ctx, "event-1").Return([]models.RosterEntry{
		{RegistrationID: "reg-1", TicketID: "ticket-1", AttendeeName: "Alex", Status: models.RegistrationConfirmed},
		{RegistrationID: "reg-2", AttendeeName: "Sam", Status: models.RegistrationPendingPayment},
	}, nil)

	mock.ExpectHGetAll("checkin:state:ticket-1").SetVal(map[string]string{
		"checked_in":    "1",
		"via":           "qr",
		"checked_in_at": "2026-09-01T19:30:00Z",
	})

	entries, err := service.List(ctx, "event-1", "org-1")

	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.True(t, entries[0].CheckIn.CheckedIn)
	assert.Equal(t, "qr", entries[0].CheckIn.Via)
	require.NotNil(t, entries[0].CheckIn.CheckedInAt)

	// no ticket yet, nothing to overlay
	assert.False(t, entries[1].CheckIn.CheckedIn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterService_List_OperatorGrantAllowed(t *testing.T) {
	service, mock, st := setupTestRosterService()
	defer mock.ClearExpect()

	ctx := context.Background()

	st.On("GetEvent", ctx, "event-1").Return(rosterEvent(), nil)
	mock.ExpectExists("operator:event-1:helper-1").SetVal(1)
	st.On("ListRoster", ctx, "event-1").Return([]models.RosterEntry{}, nil)

	entries, err := service.List(ctx, "event-1", "helper-1")

	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterService_GuestList(t *testing.T) {
	service, mock, st := setupTestRosterService()
	defer mock.ClearExpect()

	ctx := context.Background()
	event := rosterEvent()
	event.GuestListPublic = true

	st.On("GetEvent", ctx, "event-1").Return(event, nil)
	st.On("ListRoster", ctx, "event-1").Return([]models.RosterEntry{
		{RegistrationID: "reg-1", AttendeeName: "Alex", Status: models.RegistrationConfirmed},
		{RegistrationID: "reg-2", AttendeeName: "Sam", Status: models.RegistrationPendingPayment},
	}, nil)

	names, err := service.GuestList(ctx, "event-1")

	require.NoError(t, err)
	assert.Equal(t, []string{"Alex"}, names)
}

func TestRosterService_GuestList_Private(t *testing.T) {
	service, mock, st := setupTestRosterService()
	defer mock.ClearExpect()

	ctx := context.Background()

	st.On("GetEvent", ctx, "event-1").Return(rosterEvent(), nil)

	names, err := service.GuestList(ctx, "event-1")

	assert.Nil(t, names)
	assert.ErrorIs(t, err, status.ErrForbidden)
}
