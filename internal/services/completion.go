package services

import (
	"context"
	"log/slog"
	"time"

	"event-workflow/internal/store"
)

// CompletionSweeper marks Active events Completed once their end time has
// passed. Nothing else ever moves an event to Completed.
type CompletionSweeper struct {
	db       store.Store
	notifier Notifier
	tracker  OperationTracker
	location *time.Location
	now      func() time.Time
}

func NewCompletionSweeper(db store.Store, notifier Notifier, tracker OperationTracker, loc *time.Location) *CompletionSweeper {
	if notifier == nil {
		notifier = NopNotifier()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CompletionSweeper{
		db:       db,
		notifier: notifier,
		tracker:  trackerOrNop(tracker),
		location: loc,
		now:      time.Now,
	}
}

// Sweep completes every elapsed Active event and returns how many it moved.
// An event cancelled or rescheduled concurrently is left alone.
func (s *CompletionSweeper) Sweep(ctx context.Context) (completed int, err error) {
	defer recoverFault("complete_events", &err)

	events := NewEventStore(s.db)
	elapsed, err := events.ListElapsed(ctx, s.now(), s.location)
	if err != nil {
		return 0, storeFault("complete_events", err)
	}

	for _, ev := range elapsed {
		ok, err := events.CompleteElapsed(ctx, ev)
		if err != nil {
			return completed, storeFault("complete_events", err)
		}
		if !ok {
			continue
		}
		completed++
		s.tracker.TrackOperation("complete_event", "success")
		s.notifier.Notify(ev.DepartmentID, NoticeEventCompleted, map[string]any{
			"event_id":   ev.ID,
			"event_name": ev.EventName,
		})
	}

	if completed > 0 {
		slog.Info("Completed elapsed events", "count", completed)
	}
	return completed, nil
}
