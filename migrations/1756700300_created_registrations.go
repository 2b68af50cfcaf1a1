package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
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

		collection := core.NewBaseCollection("registrations")

		collection.Fields.Add(
			&core.RelationField{Name: "event", CollectionId: events.Id, MaxSelect: 1, Required: true},
			&core.RelationField{Name: "attendee", CollectionId: users.Id, MaxSelect: 1, Required: true},
			&core.RelationField{Name: "pass", CollectionId: passes.Id, MaxSelect: 1},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"pending_payment", "confirmed", "failed", "cancelled"},
			},
			&core.JSONField{Name: "survey"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		// at most one confirmed registration per attendee per event
		collection.AddIndex("idx_registrations_confirmed_once", true, "event, attendee", "status = 'confirmed'")
		collection.AddIndex("idx_registrations_event", false, "event", "")
		collection.AddIndex("idx_registrations_attendee", false, "attendee", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("registrations")
		if err != nil {
			return nil
		}
		return app.Delete(collection)
	})
}
