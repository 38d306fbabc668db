package services

import (
	"context"
	"log/slog"
	"time"

	"event-workflow/internal/status"
	"event-workflow/internal/store"
	"event-workflow/models"

	"github.com/spf13/cast"
)

type EventStore struct {
	db store.Store
}

func NewEventStore(db store.Store) *EventStore {
	return &EventStore{db: db}
}

type EventFilter struct {
	DepartmentID string
	Status       models.EventStatus
}

func (s *EventStore) Create(ctx context.Context, ev *models.Event) (*models.Event, error) {
	rec, err := s.db.Insert(ctx, store.TableEvents, encodeEvent(ev))
	if err != nil {
		return nil, err
	}
	return decodeEvent(rec), nil
}

func (s *EventStore) Get(ctx context.Context, id string) (*models.Event, error) {
	rows, err := s.db.Find(ctx, store.TableEvents, store.Filter{"id": id}, store.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, status.NotFound("Event")
	}
	return decodeEvent(rows[0]), nil
}

// FindByRequest returns the event materialized from requestID, or nil.
func (s *EventStore) FindByRequest(ctx context.Context, requestID string) (*models.Event, error) {
	rows, err := s.db.Find(ctx, store.TableEvents, store.Filter{"event_request_id": requestID}, store.Limit(1))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return decodeEvent(rows[0]), nil
}

// ListActiveAt returns the Active events booked at location on date.
func (s *EventStore) ListActiveAt(ctx context.Context, location, date string) ([]*models.Event, error) {
	return s.find(ctx, store.Filter{
		"location": location,
		"date":     date,
		"status":   string(models.EventActive),
	})
}

// List returns matching events ordered by date then start time.
func (s *EventStore) List(ctx context.Context, f EventFilter) ([]*models.Event, error) {
	filter := store.Filter{}
	if f.DepartmentID != "" {
		filter["department_id"] = f.DepartmentID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	return s.find(ctx, filter)
}

func (s *EventStore) find(ctx context.Context, filter store.Filter) ([]*models.Event, error) {
	rows, err := s.db.Find(ctx, store.TableEvents, filter,
		store.OrderBy("date", false),
		store.OrderBy("start_time", false),
	)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, decodeEvent(row))
	}
	return out, nil
}

func (s *EventStore) TransitionStatus(ctx context.Context, id string, from, to models.EventStatus) (bool, error) {
	n, err := s.db.Update(ctx, store.TableEvents,
		store.Filter{"id": id, "status": string(from)},
		store.Record{"status": string(to)},
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CompleteElapsed marks ev Completed only while it is still Active at the
// schedule ev was read with. An event rescheduled since then is untouched.
func (s *EventStore) CompleteElapsed(ctx context.Context, ev *models.Event) (bool, error) {
	n, err := s.db.Update(ctx, store.TableEvents,
		store.Filter{
			"id":         ev.ID,
			"status":     string(models.EventActive),
			"date":       ev.Date,
			"start_time": ev.StartTime,
			"end_time":   ev.EndTime,
		},
		store.Record{"status": string(models.EventCompleted)},
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Reschedule moves an Active event to a new date and time window.
func (s *EventStore) Reschedule(ctx context.Context, id, date, start, end string) (bool, error) {
	n, err := s.db.Update(ctx, store.TableEvents,
		store.Filter{"id": id, "status": string(models.EventActive)},
		store.Record{"date": date, "start_time": start, "end_time": end},
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListElapsed returns Active events whose end instant, read in loc, is not
// after now. Events with unparseable schedules are skipped and logged.
func (s *EventStore) ListElapsed(ctx context.Context, now time.Time, loc *time.Location) ([]*models.Event, error) {
	active, err := s.find(ctx, store.Filter{"status": string(models.EventActive)})
	if err != nil {
		return nil, err
	}

	var out []*models.Event
	for _, ev := range active {
		endsAt, err := ev.Slot().EndsAt(loc)
		if err != nil {
			slog.Warn("Skipping event with malformed schedule", "eventID", ev.ID, "error", err)
			continue
		}
		if !endsAt.After(now) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *EventStore) CountByStatus(ctx context.Context, departmentID string) (models.EventCounts, error) {
	filter := store.Filter{}
	if departmentID != "" {
		filter["department_id"] = departmentID
	}
	rows, err := s.db.Find(ctx, store.TableEvents, filter)
	if err != nil {
		return nil, err
	}

	counts := models.NewEventCounts()
	for _, row := range rows {
		st := models.EventStatus(cast.ToString(row["status"]))
		if st == "" {
			st = models.EventActive
		}
		counts[st]++
	}
	return counts, nil
}

func slotsOf(events []*models.Event) []models.Slot {
	slots := make([]models.Slot, len(events))
	for i, ev := range events {
		slots[i] = ev.Slot()
	}
	return slots
}
