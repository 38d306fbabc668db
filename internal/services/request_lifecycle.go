package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"event-workflow/internal/status"
	"event-workflow/internal/store"
	"event-workflow/models"
	"event-workflow/utils"
)

const (
	MsgRequestApproved     = "Request approved. The event is now scheduled."
	MsgRequestAutoRejected = "Request auto-rejected due to a schedule conflict."
	MsgRequestRejected     = "Request rejected."
)

// ApprovalResult is the outcome of a successful approve call. AutoRejected
// is set when a schedule conflict turned the approval into a rejection; the
// call still succeeded.
type ApprovalResult struct {
	Request      *models.EventRequest `json:"request"`
	Event        *models.Event        `json:"event,omitempty"`
	AutoRejected bool                 `json:"auto_rejected"`
	Message      string               `json:"message"`
}

// RequestLifecycle applies OSAS decisions to Pending event requests.
type RequestLifecycle struct {
	db       store.Store
	locker   utils.Locker
	notifier Notifier
	tracker  OperationTracker
}

func NewRequestLifecycle(db store.Store, locker utils.Locker, notifier Notifier, tracker OperationTracker) *RequestLifecycle {
	if notifier == nil {
		notifier = NopNotifier()
	}
	return &RequestLifecycle{
		db:       db,
		locker:   locker,
		notifier: notifier,
		tracker:  trackerOrNop(tracker),
	}
}

// Approve checks the request against Active events at its location and date.
// A conflict rejects the request; otherwise the request becomes Approved and
// its Active event is created in the same transaction.
func (l *RequestLifecycle) Approve(ctx context.Context, caller models.Caller, requestID string) (res *ApprovalResult, err error) {
	defer func() {
		outcome := outcomeLabel(err)
		if err == nil && res.AutoRejected {
			outcome = "auto_rejected"
		}
		l.tracker.TrackOperation("approve", outcome)
	}()
	defer recoverFault("approve", &err)

	if !caller.IsOSAS() {
		return nil, status.Forbidden("Only OSAS can approve requests.")
	}

	req, err := NewRequestStore(l.db).Get(ctx, requestID)
	if err != nil {
		return nil, storeFault("approve", err)
	}
	if req.Status != models.RequestPending {
		return nil, status.AlreadyProcessed(string(req.Status))
	}

	for attempt := 0; attempt < maxSlotAttempts; attempt++ {
		res, err = l.approveInSlot(ctx, requestID, req.Slot())
		if errors.Is(err, errSlotMoved) {
			req = res.Request
			continue
		}
		if err != nil {
			return nil, storeFault("approve", err)
		}

		l.notifyApproval(res)
		return res, nil
	}

	slog.Warn("Request kept moving between slots during approval", "requestID", requestID)
	return nil, status.Store(errSlotMoved)
}

// approveInSlot holds the lock for slot while approveLocked runs. The lock is
// released even if approveLocked panics.
func (l *RequestLifecycle) approveInSlot(ctx context.Context, requestID string, slot models.Slot) (*ApprovalResult, error) {
	unlock, err := lockSlot(ctx, l.locker, l.tracker, "approve", slot.Location, slot.Date)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return l.approveLocked(ctx, requestID, slot)
}

// approveLocked runs with the slot lock held. It returns errSlotMoved, along
// with the fresh request, if the request no longer sits in the locked slot.
func (l *RequestLifecycle) approveLocked(ctx context.Context, requestID string, locked models.Slot) (*ApprovalResult, error) {
	var res *ApprovalResult

	err := l.db.RunInTransaction(ctx, func(tx store.Store) error {
		requests := NewRequestStore(tx)
		events := NewEventStore(tx)

		req, err := requests.Get(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestPending {
			return status.AlreadyProcessed(string(req.Status))
		}
		if utils.SlotKey(req.Location, req.Date) != utils.SlotKey(locked.Location, locked.Date) {
			res = &ApprovalResult{Request: req}
			return errSlotMoved
		}

		active, err := events.ListActiveAt(ctx, req.Location, req.Date)
		if err != nil {
			return err
		}

		if HasConflict(req.Slot(), slotsOf(active), "") {
			if err := transitionRequest(ctx, requests, req, models.RequestRejected); err != nil {
				return err
			}
			res = &ApprovalResult{Request: req, AutoRejected: true, Message: MsgRequestAutoRejected}
			return nil
		}

		existing, err := events.FindByRequest(ctx, req.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("pending request %s already has event %s", req.ID, existing.ID)
		}

		if err := transitionRequest(ctx, requests, req, models.RequestApproved); err != nil {
			return err
		}
		ev, err := events.Create(ctx, models.NewEventFromRequest(req))
		if err != nil {
			return err
		}
		res = &ApprovalResult{Request: req, Event: ev, Message: MsgRequestApproved}
		return nil
	})

	if errors.Is(err, errSlotMoved) {
		return res, err
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Reject moves a Pending request to Rejected. No conflict check runs and no
// event is created.
func (l *RequestLifecycle) Reject(ctx context.Context, caller models.Caller, requestID string) (req *models.EventRequest, err error) {
	defer func() { l.tracker.TrackOperation("reject", outcomeLabel(err)) }()
	defer recoverFault("reject", &err)

	if !caller.IsOSAS() {
		return nil, status.Forbidden("Only OSAS can reject requests.")
	}

	requests := NewRequestStore(l.db)
	req, err = requests.Get(ctx, requestID)
	if err != nil {
		return nil, storeFault("reject", err)
	}
	if req.Status != models.RequestPending {
		return nil, status.AlreadyProcessed(string(req.Status))
	}
	if err := transitionRequest(ctx, requests, req, models.RequestRejected); err != nil {
		return nil, storeFault("reject", err)
	}

	l.notifier.Notify(req.DepartmentID, NoticeRequestRejected, map[string]any{
		"request_id": req.ID,
		"event_name": req.EventName,
	})
	return req, nil
}

func (l *RequestLifecycle) notifyApproval(res *ApprovalResult) {
	payload := map[string]any{
		"request_id": res.Request.ID,
		"event_name": res.Request.EventName,
		"date":       res.Request.Date,
	}
	if res.AutoRejected {
		l.notifier.Notify(res.Request.DepartmentID, NoticeRequestAutoRejected, payload)
		return
	}
	payload["event_id"] = res.Event.ID
	l.notifier.Notify(res.Request.DepartmentID, NoticeRequestApproved, payload)
}

// transitionRequest flips a Pending request to `to` and updates req in place.
// When another caller got there first the request is re-read and the status
// that won is reported as AlreadyProcessed.
func transitionRequest(ctx context.Context, requests *RequestStore, req *models.EventRequest, to models.EventRequestStatus) error {
	ok, err := requests.TransitionStatus(ctx, req.ID, models.RequestPending, to)
	if err != nil {
		return err
	}
	if !ok {
		current, err := requests.Get(ctx, req.ID)
		if err != nil {
			return err
		}
		return status.AlreadyProcessed(string(current.Status))
	}
	req.Status = to
	return nil
}
