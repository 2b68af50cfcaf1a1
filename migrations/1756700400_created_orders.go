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

		collection := core.NewBaseCollection("orders")

		collection.Fields.Add(
			&core.RelationField{Name: "registration", CollectionId: registrations.Id, MaxSelect: 1, Required: true},
			&core.NumberField{Name: "amount"},
			&core.TextField{Name: "currency"},
			&core.TextField{Name: "gateway_ref", Required: true},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"created", "verified", "failed"},
			},
			&core.DateField{Name: "verified_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_orders_gateway_ref", true, "gateway_ref", "")
		collection.AddIndex("idx_orders_registration", false, "registration", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("orders")
		if err != nil {
			return nil
		}
		return app.Delete(collection)
	})
}
