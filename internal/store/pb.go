package store

import (
	"context"
	"encoding/json"
	"fmt"

	"gatepass/internal/status"
	"gatepass/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

// PBStore is the PocketBase-backed Store.
type PBStore struct {
	app core.App
}

func NewPBStore(app core.App) *PBStore {
	return &PBStore{app: app}
}

func (s *PBStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	rec, err := s.app.FindRecordById("events", id)
	if err != nil {
		return nil, status.ErrEventNotFound
	}
	return eventFromRecord(rec), nil
}

func (s *PBStore) GetPass(ctx context.Context, id string) (*models.Pass, error) {
	rec, err := s.app.FindRecordById("passes", id)
	if err != nil {
		return nil, status.ErrPassNotFound
	}
	return passFromRecord(rec), nil
}

func (s *PBStore) FindActiveRegistration(ctx context.Context, eventID, attendeeID string) (*models.Registration, error) {
	rec, err := s.app.FindFirstRecordByFilter(
		"registrations",
		"event = {:event} && attendee = {:attendee} && (status = 'confirmed' || status = 'pending_payment')",
		dbx.Params{"event": eventID, "attendee": attendeeID},
	)
	if err != nil {
		return nil, status.ErrRegistrationNotFound
	}
	return registrationFromRecord(rec), nil
}

func (s *PBStore) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	rec, err := s.app.FindRecordById("registrations", id)
	if err != nil {
		return nil, status.ErrRegistrationNotFound
	}
	return registrationFromRecord(rec), nil
}

func (s *PBStore) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	collection, err := s.app.FindCollectionByNameOrId("registrations")
	if err != nil {
		return fmt.Errorf("create registration: %w", err)
	}

	rec := core.NewRecord(collection)
	rec.Set("event", reg.EventID)
	rec.Set("attendee", reg.AttendeeID)
	rec.Set("pass", reg.PassID)
	rec.Set("status", reg.Status)
	if reg.Survey != nil {
		rec.Set("survey", reg.Survey)
	}

	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}

	reg.ID = rec.Id
	reg.CreatedAt = rec.GetDateTime("created").Time()
	return nil
}

func (s *PBStore) SetRegistrationStatus(ctx context.Context, id, regStatus string) error {
	rec, err := s.app.FindRecordById("registrations", id)
	if err != nil {
		return status.ErrRegistrationNotFound
	}
	rec.Set("status", regStatus)
	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("set registration status: %w", err)
	}
	return nil
}

func (s *PBStore) CreateOrder(ctx context.Context, order *models.PaymentOrder) error {
	collection, err := s.app.FindCollectionByNameOrId("orders")
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	rec := core.NewRecord(collection)
	rec.Set("registration", order.RegistrationID)
	rec.Set("amount", order.Amount.InexactFloat64())
	rec.Set("currency", order.Currency)
	rec.Set("gateway_ref", order.GatewayRef)
	rec.Set("status", order.Status)

	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	order.ID = rec.Id
	order.CreatedAt = rec.GetDateTime("created").Time()
	return nil
}

func (s *PBStore) GetOrderByRef(ctx context.Context, gatewayRef string) (*models.PaymentOrder, error) {
	rec, err := s.app.FindFirstRecordByFilter(
		"orders",
		"gateway_ref = {:ref}",
		dbx.Params{"ref": gatewayRef},
	)
	if err != nil {
		return nil, status.ErrOrderNotFound
	}
	return orderFromRecord(rec), nil
}

func (s *PBStore) GetOrderByRegistration(ctx context.Context, registrationID string) (*models.PaymentOrder, error) {
	rec, err := s.app.FindFirstRecordByFilter(
		"orders",
		"registration = {:reg}",
		dbx.Params{"reg": registrationID},
	)
	if err != nil {
		return nil, status.ErrOrderNotFound
	}
	return orderFromRecord(rec), nil
}

func (s *PBStore) MarkOrderVerified(ctx context.Context, id string) error {
	rec, err := s.app.FindRecordById("orders", id)
	if err != nil {
		return status.ErrOrderNotFound
	}

	// one-way transition; re-delivered callbacks land here
	if rec.GetString("status") == models.OrderVerified {
		return nil
	}

	rec.Set("status", models.OrderVerified)
	rec.Set("verified_at", types.NowDateTime())
	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("mark order verified: %w", err)
	}
	return nil
}

func (s *PBStore) MintTicket(ctx context.Context, ticket *models.Ticket) (*models.Ticket, bool, error) {
	var stored *models.Ticket
	created := false

	err := s.app.RunInTransaction(func(txApp core.App) error {
		existing, err := txApp.FindFirstRecordByFilter(
			"tickets",
			"registration = {:reg}",
			dbx.Params{"reg": ticket.RegistrationID},
		)
		if err == nil {
			stored = ticketFromRecord(existing)
			return nil
		}

		collection, err := txApp.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}

		rec := core.NewRecord(collection)
		rec.Set("registration", ticket.RegistrationID)
		rec.Set("event", ticket.EventID)
		rec.Set("attendee", ticket.AttendeeID)
		rec.Set("pass", ticket.PassID)
		rec.Set("number", ticket.Number)
		rec.Set("code_digest", ticket.CodeDigest)
		rec.Set("issued_at", ticket.IssuedAt)
		rec.Set("checked_in", false)

		if err := txApp.Save(rec); err != nil {
			// a concurrent mint won the unique index; surface its ticket
			winner, findErr := txApp.FindFirstRecordByFilter(
				"tickets",
				"registration = {:reg}",
				dbx.Params{"reg": ticket.RegistrationID},
			)
			if findErr != nil {
				return err
			}
			stored = ticketFromRecord(winner)
			return nil
		}

		stored = ticketFromRecord(rec)
		created = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("mint ticket: %w", err)
	}

	return stored, created, nil
}

func (s *PBStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	rec, err := s.app.FindRecordById("tickets", id)
	if err != nil {
		return nil, status.ErrTicketNotFound
	}
	return ticketFromRecord(rec), nil
}

func (s *PBStore) GetTicketByRegistration(ctx context.Context, registrationID string) (*models.Ticket, error) {
	rec, err := s.app.FindFirstRecordByFilter(
		"tickets",
		"registration = {:reg}",
		dbx.Params{"reg": registrationID},
	)
	if err != nil {
		return nil, status.ErrTicketNotFound
	}
	return ticketFromRecord(rec), nil
}

func (s *PBStore) CountTickets(ctx context.Context, eventID string) (int64, error) {
	var total int64
	err := s.app.DB().
		NewQuery("SELECT COUNT(*) FROM tickets WHERE event = {:event}").
		Bind(dbx.Params{"event": eventID}).
		Row(&total)
	if err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return total, nil
}

func (s *PBStore) CountCheckedIn(ctx context.Context, eventID string) (int64, error) {
	var total int64
	err := s.app.DB().
		NewQuery("SELECT COUNT(*) FROM tickets WHERE event = {:event} AND checked_in = 1").
		Bind(dbx.Params{"event": eventID}).
		Row(&total)
	if err != nil {
		return 0, fmt.Errorf("count checked in: %w", err)
	}
	return total, nil
}

func (s *PBStore) UpdateTicketCheckIn(ctx context.Context, ticketID string, st models.CheckInState) error {
	rec, err := s.app.FindRecordById("tickets", ticketID)
	if err != nil {
		return status.ErrTicketNotFound
	}

	rec.Set("checked_in", st.CheckedIn)
	rec.Set("checked_in_via", st.Via)
	if st.CheckedInAt != nil {
		rec.Set("checked_in_at", *st.CheckedInAt)
	} else {
		rec.Set("checked_in_at", nil)
	}
	if st.CheckedOutAt != nil {
		rec.Set("checked_out_at", *st.CheckedOutAt)
	} else {
		rec.Set("checked_out_at", nil)
	}

	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("update ticket check-in: %w", err)
	}
	return nil
}

func (s *PBStore) ListRoster(ctx context.Context, eventID string) ([]models.RosterEntry, error) {
	var rows []dbx.NullStringMap
	err := s.app.DB().
		NewQuery(`
			SELECT
				r.id          AS registration_id,
				r.attendee    AS attendee_id,
				r.pass        AS pass_id,
				r.status      AS status,
				t.id          AS ticket_id,
				t.number      AS ticket_number,
				t.checked_in  AS checked_in,
				t.checked_in_via AS checked_in_via,
				u.name        AS attendee_name,
				u.email       AS attendee_email
			FROM registrations r
			LEFT JOIN tickets t ON t.registration = r.id
			LEFT JOIN users u   ON u.id = r.attendee
			WHERE r.event = {:event} AND r.status != 'cancelled'
			ORDER BY r.created ASC`).
		Bind(dbx.Params{"event": eventID}).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}

	entries := make([]models.RosterEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.RosterEntry{
			RegistrationID: row["registration_id"].String,
			TicketID:       row["ticket_id"].String,
			TicketNumber:   row["ticket_number"].String,
			AttendeeID:     row["attendee_id"].String,
			AttendeeName:   row["attendee_name"].String,
			AttendeeEmail:  row["attendee_email"].String,
			PassID:         row["pass_id"].String,
			Status:         row["status"].String,
			CheckIn: models.CheckInState{
				CheckedIn: row["checked_in"].String == "1" || row["checked_in"].String == "true",
				Via:       row["checked_in_via"].String,
			},
		})
	}

	return entries, nil
}

func eventFromRecord(rec *core.Record) *models.Event {
	return &models.Event{
		ID:              rec.Id,
		Title:           rec.GetString("title"),
		StartsAt:        rec.GetDateTime("starts_at").Time(),
		Location:        rec.GetString("location"),
		WomenOnly:       rec.GetBool("women_only"),
		GuestListPublic: rec.GetBool("guest_list_public"),
		OrganizerID:     rec.GetString("organizer"),
		ScannerPINHash:  rec.GetString("scanner_pin_hash"),
	}
}

func passFromRecord(rec *core.Record) *models.Pass {
	return &models.Pass{
		ID:       rec.Id,
		EventID:  rec.GetString("event"),
		Name:     rec.GetString("name"),
		Price:    decimal.NewFromFloat(rec.GetFloat("price")),
		Currency: rec.GetString("currency"),
		Capacity: rec.GetInt("capacity"),
	}
}

func registrationFromRecord(rec *core.Record) *models.Registration {
	reg := &models.Registration{
		ID:         rec.Id,
		EventID:    rec.GetString("event"),
		AttendeeID: rec.GetString("attendee"),
		PassID:     rec.GetString("pass"),
		Status:     rec.GetString("status"),
		CreatedAt:  rec.GetDateTime("created").Time(),
	}

	if raw := rec.GetString("survey"); raw != "" {
		var survey map[string]any
		if err := json.Unmarshal([]byte(raw), &survey); err == nil {
			reg.Survey = survey
		}
	}

	return reg
}

func orderFromRecord(rec *core.Record) *models.PaymentOrder {
	order := &models.PaymentOrder{
		ID:             rec.Id,
		RegistrationID: rec.GetString("registration"),
		Amount:         decimal.NewFromFloat(rec.GetFloat("amount")),
		Currency:       rec.GetString("currency"),
		GatewayRef:     rec.GetString("gateway_ref"),
		Status:         rec.GetString("status"),
		CreatedAt:      rec.GetDateTime("created").Time(),
	}

	if dt := rec.GetDateTime("verified_at"); !dt.IsZero() {
		t := dt.Time()
		order.VerifiedAt = &t
	}

	return order
}

func ticketFromRecord(rec *core.Record) *models.Ticket {
	ticket := &models.Ticket{
		ID:             rec.Id,
		RegistrationID: rec.GetString("registration"),
		EventID:        rec.GetString("event"),
		AttendeeID:     rec.GetString("attendee"),
		PassID:         rec.GetString("pass"),
		Number:         rec.GetString("number"),
		CodeDigest:     rec.GetString("code_digest"),
		IssuedAt:       rec.GetDateTime("issued_at").Time(),
		CheckIn: models.CheckInState{
			CheckedIn: rec.GetBool("checked_in"),
			Via:       rec.GetString("checked_in_via"),
		},
	}

	if dt := rec.GetDateTime("checked_in_at"); !dt.IsZero() {
		t := dt.Time()
		ticket.CheckIn.CheckedInAt = &t
	}
	if dt := rec.GetDateTime("checked_out_at"); !dt.IsZero() {
		t := dt.Time()
		ticket.CheckIn.CheckedOutAt = &t
	}

	return ticket
}
