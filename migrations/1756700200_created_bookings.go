package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("bookings")

		collection.Fields.Add(
			&core.TextField{Name: "user_id", Required: true},
			&core.TextField{Name: "lawyer_id", Required: true},
			&core.TextField{Name: "court_id"},
			&core.TextField{Name: "police_station_id"},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values: []string{
					"pending",
					"accepted",
					"rejected",
					"rescheduled",
					"cancelled",
					"completed",
				},
			},
			&core.TextField{Name: "original_description"},
			&core.TextField{Name: "ai_summary"},
			&core.NumberField{Name: "consultation_fee", OnlyInt: true, Required: true},
			&core.NumberField{Name: "platform_commission", OnlyInt: true},
			&core.NumberField{Name: "lawyer_payout", OnlyInt: true},
			&core.DateField{Name: "scheduled_time"},
			&core.DateField{Name: "completed_at"},
			&core.TextField{Name: "cancellation_reason"},
			&core.NumberField{Name: "reschedule_count", OnlyInt: true},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_bookings_user_id", false, "user_id", "")
		collection.AddIndex("idx_bookings_lawyer_id", false, "lawyer_id", "")
		collection.AddIndex("idx_bookings_status", false, "status", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("bookings")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
