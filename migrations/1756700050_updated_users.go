package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		// registration policy gates read this
		users.Fields.Add(
			&core.SelectField{
				Name:      "gender",
				MaxSelect: 1,
				Values:    []string{"female", "male", "other"},
			},
		)

		return app.Save(users)
	}, func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return nil
		}

		users.Fields.RemoveByName("gender")

		return app.Save(users)
	})
}
