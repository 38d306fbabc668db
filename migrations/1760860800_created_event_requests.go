package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

const (
	datePattern  = `^\d{4}-\d{2}-\d{2}$`
	clockPattern = `^\d{2}:\d{2}:\d{2}$`
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("event_requests")

		collection.Fields.Add(
			&core.TextField{Name: "department_id", Required: true, Max: 64},
			&core.TextField{Name: "event_name", Required: true, Max: 200},
			&core.TextField{Name: "description", Max: 2000},
			&core.TextField{Name: "location", Required: true, Max: 200},
			&core.TextField{Name: "date", Required: true, Pattern: datePattern},
			&core.TextField{Name: "start_time", Required: true, Pattern: clockPattern},
			&core.TextField{Name: "end_time", Required: true, Pattern: clockPattern},
			&core.NumberField{Name: "participant_limit", OnlyInt: true},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"Pending", "Approved", "Rejected", "Cancelled"},
			},
			&core.DateField{Name: "created_at"},
		)

		collection.AddIndex("idx_event_requests_department", false, "department_id, status", "")
		collection.AddIndex("idx_event_requests_slot", false, "location, date", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("event_requests")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
