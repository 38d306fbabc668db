package services

import (
	"context"
	"time"

	"event-workflow/internal/store"
	"event-workflow/models"

	ical "github.com/arran4/golang-ical"
)

const calendarProductID = "-//Campus Events//event-workflow//EN"

// CalendarExporter renders Active events as an iCalendar feed.
type CalendarExporter struct {
	db       store.Store
	location *time.Location
	now      func() time.Time
}

func NewCalendarExporter(db store.Store, loc *time.Location) *CalendarExporter {
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarExporter{db: db, location: loc, now: time.Now}
}

// Export returns the ICS document for the Active events visible to caller.
// A department only gets its own events.
func (c *CalendarExporter) Export(ctx context.Context, caller models.Caller) (string, error) {
	filter := EventFilter{Status: models.EventActive}
	if caller.IsDepartment() {
		filter.DepartmentID = caller.DepartmentID
	}

	events, err := NewEventStore(c.db).List(ctx, filter)
	if err != nil {
		return "", storeFault("export_calendar", err)
	}
	return c.render(events), nil
}

func (c *CalendarExporter) render(events []*models.Event) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName("Campus Events")
	cal.SetXWRTimezone(c.location.String())

	stamp := c.now().UTC()
	for _, ev := range events {
		start, end, ok := c.bounds(ev)
		if !ok {
			continue
		}

		vevent := cal.AddEvent(ev.ID + "@event-workflow")
		vevent.SetDtStampTime(stamp)
		vevent.SetStartAt(start)
		vevent.SetEndAt(end)
		vevent.SetSummary(ev.EventName)
		vevent.SetLocation(ev.Location)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		vevent.SetStatus(ical.ObjectStatusConfirmed)
	}
	return cal.Serialize()
}

func (c *CalendarExporter) bounds(ev *models.Event) (time.Time, time.Time, bool) {
	slot := ev.Slot()
	start, err := slot.StartsAt(c.location)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := slot.EndsAt(c.location)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
