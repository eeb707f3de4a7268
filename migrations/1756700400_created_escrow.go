package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("escrow")

		collection.Fields.Add(
			&core.TextField{Name: "booking_id", Required: true},
			&core.NumberField{Name: "amount", OnlyInt: true, Required: true},
			&core.DateField{Name: "held_until"},
			&core.DateField{Name: "released_at"},
			&core.SelectField{
				Name:      "payout_status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"pending", "released", "refunded"},
			},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_escrow_booking_id", true, "booking_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("escrow")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
