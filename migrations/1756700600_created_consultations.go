package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("consultations")

		collection.Fields.Add(
			&core.TextField{Name: "booking_id", Required: true},
			&core.TextField{Name: "channel_name", Required: true},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"active", "completed"},
			},
			&core.DateField{Name: "started_at"},
			&core.DateField{Name: "ended_at"},
			&core.NumberField{Name: "duration_seconds", OnlyInt: true},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_consultations_booking_id", true, "booking_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("consultations")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
