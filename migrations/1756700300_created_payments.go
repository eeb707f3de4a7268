package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("payments")

		collection.Fields.Add(
			&core.TextField{Name: "booking_id", Required: true},
			&core.NumberField{Name: "amount", OnlyInt: true, Required: true},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"pending", "captured", "failed", "refunded"},
			},
			&core.TextField{Name: "external_order_id", Required: true},
			&core.TextField{Name: "external_payment_id"},
			&core.TextField{Name: "external_signature"},
			&core.DateField{Name: "captured_at"},
			&core.TextField{Name: "refund_id"},
			&core.DateField{Name: "refunded_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		// The unique order index is what makes confirmation idempotent under
		// concurrent retries: the second insert for the same gateway order
		// fails instead of double-booking.
		collection.AddIndex("idx_payments_external_order_id", true, "external_order_id", "")
		collection.AddIndex("idx_payments_booking_id", false, "booking_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("payments")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
