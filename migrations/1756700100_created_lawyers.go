package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("lawyers")

		collection.Fields.Add(
			&core.TextField{Name: "user_id", Required: true},
			&core.TextField{Name: "name", Required: true},
			&core.NumberField{Name: "consultation_fee", OnlyInt: true, Required: true},
			&core.BoolField{Name: "verified"},
			&core.TextField{Name: "specialization"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_lawyers_user_id", true, "user_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("lawyers")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
