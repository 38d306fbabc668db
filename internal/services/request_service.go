package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"event-workflow/internal/status"
	"event-workflow/internal/store"
	"event-workflow/models"
)

// SubmitInput is what a department fills in to request an event. Edits use
// the same shape.
type SubmitInput struct {
	EventName        string `json:"event_name" validate:"required,max=200"`
	Description      string `json:"description" validate:"max=2000"`
	Location         string `json:"location" validate:"required,max=200"`
	Date             string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime        string `json:"start_time" validate:"required,clock"`
	EndTime          string `json:"end_time" validate:"required,clock"`
	ParticipantLimit *int   `json:"participant_limit" validate:"omitempty,gt=0"`
}

func (in *SubmitInput) trim() {
	in.EventName = strings.TrimSpace(in.EventName)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Date = strings.TrimSpace(in.Date)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndTime = strings.TrimSpace(in.EndTime)
}

// RequestService is the department side of the request workflow: submitting,
// editing and withdrawing requests while they are still Pending.
type RequestService struct {
	db       store.Store
	tracker  OperationTracker
	location *time.Location
	now      func() time.Time
}

func NewRequestService(db store.Store, tracker OperationTracker, loc *time.Location) *RequestService {
	if loc == nil {
		loc = time.UTC
	}
	return &RequestService{
		db:       db,
		tracker:  trackerOrNop(tracker),
		location: loc,
		now:      time.Now,
	}
}

func (s *RequestService) Submit(ctx context.Context, caller models.Caller, in SubmitInput) (req *models.EventRequest, err error) {
	defer func() { s.tracker.TrackOperation("submit", outcomeLabel(err)) }()
	defer recoverFault("submit", &err)

	if !caller.IsDepartment() {
		return nil, status.Forbidden("Only departments can submit event requests.")
	}
	sched, err := s.validate(&in)
	if err != nil {
		return nil, err
	}

	req, err = NewRequestStore(s.db).Create(ctx, &models.EventRequest{
		DepartmentID:     caller.DepartmentID,
		EventName:        in.EventName,
		Description:      in.Description,
		Location:         in.Location,
		Date:             sched.Date,
		StartTime:        sched.Start,
		EndTime:          sched.End,
		ParticipantLimit: in.ParticipantLimit,
		Status:           models.RequestPending,
		CreatedAt:        s.now().UTC(),
	})
	if err != nil {
		return nil, storeFault("submit", err)
	}

	slog.Info("Event request submitted", "requestID", req.ID, "departmentID", req.DepartmentID)
	return req, nil
}

// Edit replaces the details of a Pending request owned by the caller.
func (s *RequestService) Edit(ctx context.Context, caller models.Caller, requestID string, in SubmitInput) (req *models.EventRequest, err error) {
	defer func() { s.tracker.TrackOperation("edit", outcomeLabel(err)) }()
	defer recoverFault("edit", &err)

	requests := NewRequestStore(s.db)
	if _, err := s.ownPending(ctx, requests, caller, requestID); err != nil {
		return nil, err
	}
	sched, err := s.validate(&in)
	if err != nil {
		return nil, err
	}

	ok, err := requests.UpdateDetails(ctx, requestID, caller.DepartmentID, RequestDetails{
		EventName:        in.EventName,
		Description:      in.Description,
		Location:         in.Location,
		Date:             sched.Date,
		StartTime:        sched.Start,
		EndTime:          sched.End,
		ParticipantLimit: in.ParticipantLimit,
	})
	if err != nil {
		return nil, storeFault("edit", err)
	}
	if !ok {
		return nil, s.reclassify(ctx, requests, requestID)
	}

	req, err = requests.Get(ctx, requestID)
	if err != nil {
		return nil, storeFault("edit", err)
	}
	return req, nil
}

// Cancel withdraws a Pending request. Only the owning department may do it.
func (s *RequestService) Cancel(ctx context.Context, caller models.Caller, requestID string) (req *models.EventRequest, err error) {
	defer func() { s.tracker.TrackOperation("cancel_request", outcomeLabel(err)) }()
	defer recoverFault("cancel_request", &err)

	requests := NewRequestStore(s.db)
	req, err = s.ownPending(ctx, requests, caller, requestID)
	if err != nil {
		return nil, err
	}
	if err := transitionRequest(ctx, requests, req, models.RequestCancelled); err != nil {
		return nil, storeFault("cancel_request", err)
	}
	return req, nil
}

// Delete removes a Pending request owned by the caller. Decided requests are
// kept as history.
func (s *RequestService) Delete(ctx context.Context, caller models.Caller, requestID string) (err error) {
	defer func() { s.tracker.TrackOperation("delete_request", outcomeLabel(err)) }()
	defer recoverFault("delete_request", &err)

	requests := NewRequestStore(s.db)
	if _, err := s.ownPending(ctx, requests, caller, requestID); err != nil {
		return err
	}
	ok, err := requests.Delete(ctx, requestID, caller.DepartmentID)
	if err != nil {
		return storeFault("delete_request", err)
	}
	if !ok {
		return s.reclassify(ctx, requests, requestID)
	}
	return nil
}

// ListForDepartment returns the caller's requests, newest first. An empty
// st lists every status.
func (s *RequestService) ListForDepartment(ctx context.Context, caller models.Caller, st models.EventRequestStatus) ([]*models.EventRequest, error) {
	if !caller.IsDepartment() {
		return nil, status.Forbidden("Only departments have their own requests.")
	}
	if st != "" && !st.Valid() {
		return nil, status.Validation(map[string]string{"status": "status is invalid."})
	}
	out, err := NewRequestStore(s.db).List(ctx, RequestFilter{DepartmentID: caller.DepartmentID, Status: st})
	if err != nil {
		return nil, storeFault("list_requests", err)
	}
	return out, nil
}

// ListPending is the OSAS review queue, newest first.
func (s *RequestService) ListPending(ctx context.Context, caller models.Caller) ([]*models.EventRequest, error) {
	if !caller.IsOSAS() {
		return nil, status.Forbidden("Only OSAS can review pending requests.")
	}
	out, err := NewRequestStore(s.db).List(ctx, RequestFilter{Status: models.RequestPending})
	if err != nil {
		return nil, storeFault("list_pending", err)
	}
	return out, nil
}

// Counts returns requests per status: all of them for OSAS, the caller's own
// for a department.
func (s *RequestService) Counts(ctx context.Context, caller models.Caller) (models.RequestCounts, error) {
	var departmentID string
	switch {
	case caller.IsOSAS():
	case caller.IsDepartment():
		departmentID = caller.DepartmentID
	default:
		return nil, status.Forbidden("You are not allowed to view request counts.")
	}

	counts, err := NewRequestStore(s.db).CountByStatus(ctx, departmentID)
	if err != nil {
		return nil, storeFault("request_counts", err)
	}
	return counts, nil
}

// RequestCounts reports totals across all departments for the metrics gauges.
func (s *RequestService) RequestCounts(ctx context.Context) (models.RequestCounts, error) {
	return NewRequestStore(s.db).CountByStatus(ctx, "")
}

func (s *RequestService) validate(in *SubmitInput) (schedule, error) {
	in.trim()
	if err := validateStruct(in); err != nil {
		return schedule{}, err
	}
	return checkSchedule(in.Date, in.StartTime, in.EndTime, s.now(), s.location)
}

func (s *RequestService) ownPending(ctx context.Context, requests *RequestStore, caller models.Caller, requestID string) (*models.EventRequest, error) {
	if !caller.IsDepartment() {
		return nil, status.Forbidden("Only the owning department can change a request.")
	}
	req, err := requests.Get(ctx, requestID)
	if err != nil {
		return nil, storeFault("load_request", err)
	}
	if req.DepartmentID != caller.DepartmentID {
		return nil, status.Forbidden("You can only manage your own department's requests.")
	}
	if req.Status != models.RequestPending {
		return nil, status.AlreadyProcessed(string(req.Status))
	}
	return req, nil
}

// reclassify explains a conditional write that matched no row.
func (s *RequestService) reclassify(ctx context.Context, requests *RequestStore, requestID string) error {
	current, err := requests.Get(ctx, requestID)
	if err != nil {
		return storeFault("load_request", err)
	}
	return status.AlreadyProcessed(string(current.Status))
}
