package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gatepass/internal/status"
	"gatepass/internal/store"
	"gatepass/models"
	"gatepass/monitoring"
	"gatepass/utils"

	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
)

// checkInScript flips a ticket to checked-in unless it already is, and
// reads the event tally inside the same atomic section. Returns
// {already, checked_in_count, total, via}.
const checkInScript = `
local state = KEYS[1]
local count = KEYS[2]
local total = KEYS[3]

if redis.call('HGET', state, 'checked_in') == '1' then
	local c = tonumber(redis.call('GET', count) or '0')
	local t = tonumber(redis.call('GET', total) or '0')
	local via = redis.call('HGET', state, 'via') or ''
	return {1, c, t, via}
end

redis.call('HSET', state, 'checked_in', '1', 'checked_in_at', ARGV[1], 'via', ARGV[2])
redis.call('HDEL', state, 'checked_out_at')
local c = redis.call('INCR', count)
local t = tonumber(redis.call('GET', total) or '0')
return {0, c, t, ARGV[2]}
`

// checkOutScript is the reverse transition. The count never goes below
// zero even if state keys were rebuilt out of band.
const checkOutScript = `
local state = KEYS[1]
local count = KEYS[2]
local total = KEYS[3]

if redis.call('HGET', state, 'checked_in') ~= '1' then
	local c = tonumber(redis.call('GET', count) or '0')
	local t = tonumber(redis.call('GET', total) or '0')
	return {1, c, t, ''}
end

redis.call('HSET', state, 'checked_in', '0', 'checked_out_at', ARGV[1])
redis.call('HDEL', state, 'checked_in_at', 'via')
local c = redis.call('DECR', count)
if c < 0 then
	redis.call('SET', count, '0')
	c = 0
end
local t = tonumber(redis.call('GET', total) or '0')
return {0, c, t, ''}
`

// Operator identifies who is driving a gate action and which event they
// are scoped to. Handlers resolve it from the session or an operator
// grant before calling in.
type Operator struct {
	UserID  string
	EventID string
}

// CheckInService owns the live check-in state. Redis is the authority
// for presence and tallies; the store columns are an asynchronous
// projection for roster reads and recovery.
type CheckInService struct {
	Redis   *redis.Client
	Store   store.Store
	PubNub  *pubnub.PubNub
	Monitor *monitoring.Monitor

	hmacKey []byte
	now     func() time.Time
}

func NewCheckInService(redisClient *redis.Client, st store.Store, pn *pubnub.PubNub, monitor *monitoring.Monitor, scanCodeKey string) *CheckInService {
	return &CheckInService{
		Redis:   redisClient,
		Store:   st,
		PubNub:  pn,
		Monitor: monitor,
		hmacKey: []byte(scanCodeKey),
		now:     time.Now,
	}
}

// Scan resolves a raw scan code and checks the ticket in. A replayed
// scan of an already checked-in ticket is a success with Already set,
// never an error; an unknown code and a code for another event are
// errors and change nothing.
func (s *CheckInService) Scan(ctx context.Context, rawCode string, op Operator) (*models.ScanResult, error) {
	digest := utils.Hmac256([]byte(rawCode), s.hmacKey)

	ticketID, err := s.Redis.Get(ctx, fmt.Sprintf("scancode:%s", digest)).Result()
	if err == redis.Nil {
		s.recordScan(op.EventID, "invalid")
		return nil, status.ErrInvalidCode
	} else if err != nil {
		return nil, fmt.Errorf("resolve scan code: %w", err)
	}

	ticket, err := s.Store.GetTicket(ctx, ticketID)
	if err != nil {
		// the index outlived its ticket; treat as an unknown code
		if errors.Is(err, status.ErrTicketNotFound) {
			s.recordScan(op.EventID, "invalid")
			return nil, status.ErrInvalidCode
		}
		return nil, err
	}

	if op.EventID != "" && ticket.EventID != op.EventID {
		s.recordScan(op.EventID, "wrong_event")
		return nil, status.ErrWrongEvent
	}

	return s.transition(ctx, ticket, models.CheckInViaQR, true)
}

// ManualSet checks a ticket in or out from the roster view. action is
// "checkin" or "checkout"; both directions are idempotent.
func (s *CheckInService) ManualSet(ctx context.Context, ticketID string, op Operator, action string) (*models.ScanResult, error) {
	ticket, err := s.Store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if op.EventID != "" && ticket.EventID != op.EventID {
		return nil, status.ErrWrongEvent
	}

	switch action {
	case "checkin":
		return s.transition(ctx, ticket, models.CheckInViaManual, true)
	case "checkout":
		return s.transition(ctx, ticket, models.CheckInViaManual, false)
	default:
		return nil, fmt.Errorf("unknown check-in action %q", action)
	}
}

func (s *CheckInService) transition(ctx context.Context, ticket *models.Ticket, via string, checkIn bool) (*models.ScanResult, error) {
	script := checkInScript
	if !checkIn {
		script = checkOutScript
	}

	keys := []string{
		fmt.Sprintf("checkin:state:%s", ticket.ID),
		fmt.Sprintf("checkin:count:%s", ticket.EventID),
		fmt.Sprintf("ticket:total:%s", ticket.EventID),
	}

	at := s.now().UTC().Format(time.RFC3339)
	raw, err := s.Redis.Eval(ctx, script, keys, at, via).Result()
	if err != nil {
		return nil, fmt.Errorf("check-in transition: %w", err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 4 {
		return nil, fmt.Errorf("check-in transition: unexpected reply %v", raw)
	}

	already := toInt64(reply[0]) == 1
	result := &models.ScanResult{
		TicketID:       ticket.ID,
		EventID:        ticket.EventID,
		CheckedIn:      checkIn,
		Already:        already,
		Via:            toString(reply[3]),
		CheckedInCount: toInt64(reply[1]),
		Total:          toInt64(reply[2]),
	}

	if !checkIn {
		result.Via = ""
	}

	if already {
		s.recordScan(ticket.EventID, "duplicate")
		return result, nil
	}

	s.recordScan(ticket.EventID, "ok")
	if s.Monitor != nil {
		s.Monitor.SetCheckedIn(ticket.EventID, result.CheckedInCount)
	}

	s.projectAndNotify(ticket, result, via, checkIn, at)

	return result, nil
}

// projectAndNotify mirrors a real transition into the store and pushes
// the tally to the event channel. Both are best effort; the Redis state
// already committed.
func (s *CheckInService) projectAndNotify(ticket *models.Ticket, result *models.ScanResult, via string, checkIn bool, at string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		st := models.CheckInState{CheckedIn: checkIn}
		when, _ := time.Parse(time.RFC3339, at)
		if checkIn {
			st.CheckedInAt = &when
			st.Via = via
		} else {
			st.CheckedOutAt = &when
		}

		if err := s.Store.UpdateTicketCheckIn(ctx, ticket.ID, st); err != nil {
			log.Printf("check-in projection failed for ticket %s: %v", ticket.ID, err)
		}

		if s.PubNub != nil {
			s.PubNub.Publish().
				Channel(fmt.Sprintf("event-%s-checkin", ticket.EventID)).
				Message(map[string]any{
					"type":             "checkin_update",
					"ticket_id":        ticket.ID,
					"checked_in":       checkIn,
					"via":              via,
					"checked_in_count": result.CheckedInCount,
					"total":            result.Total,
				}).
				Execute()
		}
	}()
}

func (s *CheckInService) recordScan(eventID, outcome string) {
	if s.Monitor != nil {
		s.Monitor.RecordScan(eventID, outcome)
	}
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		var out int64
		fmt.Sscan(n, &out)
		return out
	default:
		return 0
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func parseCounter(v interface{}) int64 {
	if v == nil {
		return 0
	}
	return toInt64(v)
}
