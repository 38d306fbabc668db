package services

import (
	"context"

	"event-workflow/internal/status"
	"event-workflow/internal/store"
	"event-workflow/models"

	"github.com/spf13/cast"
)

// RequestStore reads and writes event requests. It never caches: every call
// goes to the underlying store.
type RequestStore struct {
	db store.Store
}

func NewRequestStore(db store.Store) *RequestStore {
	return &RequestStore{db: db}
}

type RequestFilter struct {
	DepartmentID string
	Status       models.EventRequestStatus
}

// RequestDetails are the fields a department may edit while a request is Pending.
type RequestDetails struct {
	EventName        string
	Description      string
	Location         string
	Date             string
	StartTime        string
	EndTime          string
	ParticipantLimit *int
}

func (s *RequestStore) Create(ctx context.Context, req *models.EventRequest) (*models.EventRequest, error) {
	rec, err := s.db.Insert(ctx, store.TableEventRequests, encodeRequest(req))
	if err != nil {
		return nil, err
	}
	return decodeRequest(rec), nil
}

// Get returns a status.ErrNotFound error when no request has the id.
func (s *RequestStore) Get(ctx context.Context, id string) (*models.EventRequest, error) {
	rows, err := s.db.Find(ctx, store.TableEventRequests, store.Filter{"id": id}, store.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, status.NotFound("Request")
	}
	return decodeRequest(rows[0]), nil
}

// List returns matching requests, newest first.
func (s *RequestStore) List(ctx context.Context, f RequestFilter) ([]*models.EventRequest, error) {
	filter := store.Filter{}
	if f.DepartmentID != "" {
		filter["department_id"] = f.DepartmentID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}

	rows, err := s.db.Find(ctx, store.TableEventRequests, filter, store.OrderBy("created_at", true))
	if err != nil {
		return nil, err
	}
	out := make([]*models.EventRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, decodeRequest(row))
	}
	return out, nil
}

// TransitionStatus moves a request from one status to another only if it
// still holds the expected status. It reports whether the write applied.
func (s *RequestStore) TransitionStatus(ctx context.Context, id string, from, to models.EventRequestStatus) (bool, error) {
	n, err := s.db.Update(ctx, store.TableEventRequests,
		store.Filter{"id": id, "status": string(from)},
		store.Record{"status": string(to)},
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RequestStore) UpdateDetails(ctx context.Context, id, departmentID string, d RequestDetails) (bool, error) {
	n, err := s.db.Update(ctx, store.TableEventRequests,
		store.Filter{"id": id, "department_id": departmentID, "status": string(models.RequestPending)},
		store.Record{
			"event_name":        d.EventName,
			"description":       d.Description,
			"location":          d.Location,
			"date":              d.Date,
			"start_time":        d.StartTime,
			"end_time":          d.EndTime,
			"participant_limit": limitValue(d.ParticipantLimit),
		},
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes a Pending request owned by departmentID.
func (s *RequestStore) Delete(ctx context.Context, id, departmentID string) (bool, error) {
	n, err := s.db.Delete(ctx, store.TableEventRequests,
		store.Filter{"id": id, "department_id": departmentID, "status": string(models.RequestPending)},
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountByStatus counts requests per status, optionally for one department.
func (s *RequestStore) CountByStatus(ctx context.Context, departmentID string) (models.RequestCounts, error) {
	filter := store.Filter{}
	if departmentID != "" {
		filter["department_id"] = departmentID
	}
	rows, err := s.db.Find(ctx, store.TableEventRequests, filter)
	if err != nil {
		return nil, err
	}

	counts := models.NewRequestCounts()
	for _, row := range rows {
		st := models.EventRequestStatus(cast.ToString(row["status"]))
		if st == "" {
			st = models.RequestPending
		}
		counts[st]++
	}
	return counts, nil
}
