package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassFree(t *testing.T) {
	free := &Pass{Name: "General"}
	assert.True(t, free.Free())

	priced := &Pass{Name: "VIP", Price: decimal.NewFromInt(150)}
	assert.False(t, priced.Free())
}

func TestTicketJSONHidesDigest(t *testing.T) {
	ticket := Ticket{
		ID:         "ticket-1",
		Number:     "GP-0001",
		CodeDigest: "secret-digest",
	}

	data, err := json.Marshal(ticket)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "secret-digest")
	assert.Contains(t, string(data), "GP-0001")
}

func TestEventJSONHidesScannerPIN(t *testing.T) {
	event := Event{
		ID:             "event-1",
		Title:          "Community Meetup",
		ScannerPINHash: "$2a$10$hash",
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "$2a$10$hash")
}
