package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"event-workflow/internal/status"
	"event-workflow/utils"
)

// maxSlotAttempts bounds how often approve re-locks when a concurrent edit
// moved the request to another slot between the read and the lock.
const maxSlotAttempts = 3

var errSlotMoved = errors.New("slot moved while waiting for lock")

// OperationTracker records lifecycle outcomes and slot lock waits.
// *monitoring.Monitor satisfies it.
type OperationTracker interface {
	TrackOperation(operation, outcome string)
	TrackLockWait(operation string, d time.Duration)
}

type nopTracker struct{}

func (nopTracker) TrackOperation(string, string) {}
func (nopTracker) TrackLockWait(string, time.Duration) {}

func trackerOrNop(t OperationTracker) OperationTracker {
	if t == nil {
		return nopTracker{}
	}
	return t
}

// storeFault passes business errors through and turns everything else into
// a generic StoreError, logging the cause.
func storeFault(operation string, err error) error {
	if err == nil {
		return nil
	}
	var se *status.Error
	if errors.As(err, &se) {
		return se
	}
	slog.Error("Lifecycle operation failed", "operation", operation, "error", err)
	return status.Store(err)
}

// recoverFault converts a panic escaping an operation into a StoreError.
// Deferred with a pointer to the operation's named error result.
func recoverFault(operation string, err *error) {
	if r := recover(); r != nil {
		slog.Error("Recovered panic in lifecycle operation", "operation", operation, "panic", r)
		*err = status.Store(fmt.Errorf("panic: %v", r))
	}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return status.KindOf(err).String()
}

func lockSlot(ctx context.Context, locker utils.Locker, tracker OperationTracker, operation, location, date string) (func(), error) {
	started := time.Now()
	unlock, err := locker.Lock(ctx, utils.SlotKey(location, date))
	tracker.TrackLockWait(operation, time.Since(started))
	if err != nil {
		return nil, err
	}
	return unlock, nil
}
