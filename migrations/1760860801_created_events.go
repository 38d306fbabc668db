package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("events")

		collection.Fields.Add(
			&core.TextField{Name: "event_request_id", Max: 64},
			&core.TextField{Name: "event_name", Required: true, Max: 200},
			&core.TextField{Name: "description", Max: 2000},
			&core.TextField{Name: "location", Required: true, Max: 200},
			&core.TextField{Name: "date", Required: true, Pattern: datePattern},
			&core.TextField{Name: "start_time", Required: true, Pattern: clockPattern},
			&core.TextField{Name: "end_time", Required: true, Pattern: clockPattern},
			&core.NumberField{Name: "participant_limit", OnlyInt: true},
			&core.TextField{Name: "department_id", Required: true, Max: 64},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"Active", "Completed", "Cancelled"},
			},
		)

		// at most one event per approved request
		collection.AddIndex("idx_events_event_request", true, "event_request_id", "event_request_id != ''")
		collection.AddIndex("idx_events_slot", false, "location, date, status", "")
		collection.AddIndex("idx_events_department", false, "department_id, status", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
