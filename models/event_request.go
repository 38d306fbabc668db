package models

import (
	"time"
)

type EventRequestStatus string

const (
	RequestPending   EventRequestStatus = "Pending"
	RequestApproved  EventRequestStatus = "Approved"
	RequestRejected  EventRequestStatus = "Rejected"
	RequestCancelled EventRequestStatus = "Cancelled"
)

// RequestStatuses lists every request status in dashboard order.
var RequestStatuses = []EventRequestStatus{RequestPending, RequestApproved, RequestRejected, RequestCancelled}

func (s EventRequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected, RequestCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the request can no longer change status.
func (s EventRequestStatus) IsTerminal() bool {
	return s != RequestPending
}

type EventRequest struct {
	ID               string             `json:"id"`
	DepartmentID     string             `json:"department_id"`
	EventName        string             `json:"event_name"`
	Description      string             `json:"description,omitempty"`
	Location         string             `json:"location"`
	Date             string             `json:"date"`       // YYYY-MM-DD
	StartTime        string             `json:"start_time"` // HH:MM:SS
	EndTime          string             `json:"end_time"`   // HH:MM:SS
	ParticipantLimit *int               `json:"participant_limit,omitempty"`
	Status           EventRequestStatus `json:"status"`
	CreatedAt        time.Time          `json:"created_at"`
}

func (r *EventRequest) Slot() Slot {
	return Slot{
		ID:       r.ID,
		Location: r.Location,
		Date:     r.Date,
		Start:    r.StartTime,
		End:      r.EndTime,
	}
}

// RequestCounts holds the number of requests per status.
type RequestCounts map[EventRequestStatus]int

func NewRequestCounts() RequestCounts {
	counts := make(RequestCounts, len(RequestStatuses))
	for _, s := range RequestStatuses {
		counts[s] = 0
	}
	return counts
}
