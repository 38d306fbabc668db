package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"event-workflow/internal/status"
	"event-workflow/internal/store"
	"event-workflow/models"
	"event-workflow/utils"
)

const (
	MsgEventCancelled = "Event cancelled."
	MsgEventPostponed = "Event rescheduled."
)

// PostponeInput is the new slot for an event. The location never changes.
type PostponeInput struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
}

// EventLifecycle cancels and reschedules events. OSAS may act on any event,
// a department only on its own.
type EventLifecycle struct {
	db       store.Store
	locker   utils.Locker
	notifier Notifier
	tracker  OperationTracker
	location *time.Location
	now      func() time.Time
}

func NewEventLifecycle(db store.Store, locker utils.Locker, notifier Notifier, tracker OperationTracker, loc *time.Location) *EventLifecycle {
	if notifier == nil {
		notifier = NopNotifier()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &EventLifecycle{
		db:       db,
		locker:   locker,
		notifier: notifier,
		tracker:  trackerOrNop(tracker),
		location: loc,
		now:      time.Now,
	}
}

// Cancel moves an Active event to Cancelled. The event is re-read and
// guarded inside the transaction that writes it.
func (l *EventLifecycle) Cancel(ctx context.Context, caller models.Caller, eventID string) (ev *models.Event, err error) {
	defer func() { l.tracker.TrackOperation("cancel_event", outcomeLabel(err)) }()
	defer recoverFault("cancel_event", &err)

	if err := checkEventRole(caller); err != nil {
		return nil, err
	}

	err = l.db.RunInTransaction(ctx, func(tx store.Store) error {
		events := NewEventStore(tx)

		current, err := events.Get(ctx, eventID)
		if err != nil {
			return err
		}
		if !caller.CanManage(current.DepartmentID) {
			return status.Forbidden("You can only manage your own department's events.")
		}
		if err := cancelGuard(current.Status); err != nil {
			return err
		}

		ok, err := events.TransitionStatus(ctx, eventID, models.EventActive, models.EventCancelled)
		if err != nil {
			return err
		}
		if !ok {
			latest, err := events.Get(ctx, eventID)
			if err != nil {
				return err
			}
			if err := cancelGuard(latest.Status); err != nil {
				return err
			}
			return status.InvalidTransition("Event changed while it was being cancelled.")
		}

		current.Status = models.EventCancelled
		ev = current
		return nil
	})
	if err != nil {
		return nil, storeFault("cancel_event", err)
	}

	l.notifier.Notify(ev.DepartmentID, NoticeEventCancelled, map[string]any{
		"event_id":   ev.ID,
		"event_name": ev.EventName,
		"date":       ev.Date,
	})
	slog.Info("Event cancelled", "eventID", ev.ID, "by", string(caller.Role))
	return ev, nil
}

// Postpone moves an Active event to a new date and time window at the same
// location, failing with ScheduleConflict if the new window overlaps another
// Active event there.
func (l *EventLifecycle) Postpone(ctx context.Context, caller models.Caller, eventID string, in PostponeInput) (ev *models.Event, err error) {
	defer func() { l.tracker.TrackOperation("postpone", outcomeLabel(err)) }()
	defer recoverFault("postpone", &err)

	if err := checkEventRole(caller); err != nil {
		return nil, err
	}

	events := NewEventStore(l.db)
	ev, err = events.Get(ctx, eventID)
	if err != nil {
		return nil, storeFault("postpone", err)
	}
	if !caller.CanManage(ev.DepartmentID) {
		return nil, status.Forbidden("You can only manage your own department's events.")
	}
	if err := postponeGuard(ev.Status); err != nil {
		return nil, err
	}

	in.Date = strings.TrimSpace(in.Date)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndTime = strings.TrimSpace(in.EndTime)
	if err := validateStruct(&in); err != nil {
		return nil, err
	}
	sched, err := checkSchedule(in.Date, in.StartTime, in.EndTime, l.now(), l.location)
	if err != nil {
		return nil, err
	}

	unlock, err := lockSlot(ctx, l.locker, l.tracker, "postpone", ev.Location, sched.Date)
	if err != nil {
		return nil, storeFault("postpone", err)
	}
	defer unlock()

	err = l.db.RunInTransaction(ctx, func(tx store.Store) error {
		events := NewEventStore(tx)

		current, err := events.Get(ctx, eventID)
		if err != nil {
			return err
		}
		if !caller.CanManage(current.DepartmentID) {
			return status.Forbidden("You can only manage your own department's events.")
		}
		if err := postponeGuard(current.Status); err != nil {
			return err
		}

		candidate := models.Slot{
			ID:       current.ID,
			Location: current.Location,
			Date:     sched.Date,
			Start:    sched.Start,
			End:      sched.End,
		}
		active, err := events.ListActiveAt(ctx, current.Location, sched.Date)
		if err != nil {
			return err
		}
		if HasConflict(candidate, slotsOf(active), current.ID) {
			return status.ScheduleConflict("The new schedule conflicts with another event at this location.")
		}

		ok, err := events.Reschedule(ctx, current.ID, sched.Date, sched.Start, sched.End)
		if err != nil {
			return err
		}
		if !ok {
			latest, err := events.Get(ctx, current.ID)
			if err != nil {
				return err
			}
			if err := postponeGuard(latest.Status); err != nil {
				return err
			}
			return status.InvalidTransition("Event changed while it was being rescheduled.")
		}

		current.Date, current.StartTime, current.EndTime = sched.Date, sched.Start, sched.End
		ev = current
		return nil
	})
	if err != nil {
		return nil, storeFault("postpone", err)
	}

	l.notifier.Notify(ev.DepartmentID, NoticeEventPostponed, map[string]any{
		"event_id":   ev.ID,
		"event_name": ev.EventName,
		"date":       ev.Date,
		"start_time": ev.StartTime,
		"end_time":   ev.EndTime,
	})
	slog.Info("Event rescheduled", "eventID", ev.ID, "date", ev.Date, "by", string(caller.Role))
	return ev, nil
}

// List returns events visible to the caller: everything for OSAS, the
// caller's own for a department and Active events for students.
func (l *EventLifecycle) List(ctx context.Context, caller models.Caller, f EventFilter) ([]*models.Event, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, status.Validation(map[string]string{"status": "status is invalid."})
	}
	switch {
	case caller.IsOSAS():
	case caller.IsDepartment():
		f.DepartmentID = caller.DepartmentID
	case caller.Role == models.RoleStudent:
		f.Status = models.EventActive
	default:
		return nil, status.Forbidden("You are not allowed to view events.")
	}

	out, err := NewEventStore(l.db).List(ctx, f)
	if err != nil {
		return nil, storeFault("list_events", err)
	}
	return out, nil
}

func (l *EventLifecycle) Counts(ctx context.Context, caller models.Caller) (models.EventCounts, error) {
	var departmentID string
	switch {
	case caller.IsOSAS():
	case caller.IsDepartment():
		departmentID = caller.DepartmentID
	default:
		return nil, status.Forbidden("You are not allowed to view event counts.")
	}

	counts, err := NewEventStore(l.db).CountByStatus(ctx, departmentID)
	if err != nil {
		return nil, storeFault("event_counts", err)
	}
	return counts, nil
}

// EventCounts reports totals across all departments for the metrics gauges.
func (l *EventLifecycle) EventCounts(ctx context.Context) (models.EventCounts, error) {
	return NewEventStore(l.db).CountByStatus(ctx, "")
}

func checkEventRole(caller models.Caller) error {
	if caller.IsOSAS() || caller.IsDepartment() {
		return nil
	}
	return status.Forbidden("Only OSAS or the owning department can manage events.")
}

func cancelGuard(st models.EventStatus) error {
	switch st {
	case models.EventCancelled:
		return status.InvalidTransition("Event already cancelled.")
	case models.EventCompleted:
		return status.InvalidTransition("Cannot cancel a completed event.")
	}
	return nil
}

func postponeGuard(st models.EventStatus) error {
	switch st {
	case models.EventCancelled:
		return status.InvalidTransition("Cannot reschedule a cancelled event.")
	case models.EventCompleted:
		return status.InvalidTransition("Cannot reschedule a completed event.")
	}
	return nil
}
