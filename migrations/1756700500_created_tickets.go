package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		registrations, err := app.FindCollectionByNameOrId("registrations")
		if err != nil {
			return err
		}
		events, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}
		passes, err := app.FindCollectionByNameOrId("passes")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("tickets")

		collection.Fields.Add(
			&core.RelationField{Name: "registration", CollectionId: registrations.Id, MaxSelect: 1, Required: true},
			&core.RelationField{Name: "event", CollectionId: events.Id, MaxSelect: 1, Required: true},
			&core.RelationField{Name: "attendee", CollectionId: users.Id, MaxSelect: 1, Required: true},
			&core.RelationField{Name: "pass", CollectionId: passes.Id, MaxSelect: 1},
			&core.TextField{Name: "number", Required: true},
			// digest of the scan code; the raw code is never stored
			&core.TextField{Name: "code_digest", Hidden: true},
			&core.DateField{Name: "issued_at"},
			&core.BoolField{Name: "checked_in"},
			&core.DateField{Name: "checked_in_at"},
			&core.SelectField{Name: "checked_in_via", MaxSelect: 1, Values: []string{"qr", "manual"}},
			&core.DateField{Name: "checked_out_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		// the idempotent-mint backstop: one ticket per registration
		collection.AddIndex("idx_tickets_registration", true, "registration", "")
		collection.AddIndex("idx_tickets_code_digest", true, "code_digest", "")
		collection.AddIndex("idx_tickets_event", false, "event", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return nil
		}
		return app.Delete(collection)
	})
}
