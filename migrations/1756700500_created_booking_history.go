package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("booking_history")

		collection.Fields.Add(
			&core.TextField{Name: "booking_id", Required: true},
			&core.TextField{Name: "from_status"},
			&core.TextField{Name: "to_status", Required: true},
			&core.TextField{Name: "changed_by"},
			&core.TextField{Name: "note"},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		collection.AddIndex("idx_booking_history_booking_id", false, "booking_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("booking_history")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
