package models

type EventStatus string

const (
	EventActive    EventStatus = "Active"
	EventCompleted EventStatus = "Completed"
	EventCancelled EventStatus = "Cancelled"
)

var EventStatuses = []EventStatus{EventActive, EventCompleted, EventCancelled}

func (s EventStatus) Valid() bool {
	switch s {
	case EventActive, EventCompleted, EventCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the event can no longer be cancelled or moved.
func (s EventStatus) IsTerminal() bool {
	return s == EventCompleted || s == EventCancelled
}

type Event struct {
	ID               string      `json:"id"`
	EventRequestID   *string     `json:"event_request_id"`
	EventName        string      `json:"event_name"`
	Description      string      `json:"description,omitempty"`
	Location         string      `json:"location"`
	Date             string      `json:"date"`
	StartTime        string      `json:"start_time"`
	EndTime          string      `json:"end_time"`
	ParticipantLimit *int        `json:"participant_limit,omitempty"`
	DepartmentID     string      `json:"department_id"`
	Status           EventStatus `json:"status"`
}

// NewEventFromRequest materializes the Active event for an approved request.
func NewEventFromRequest(req *EventRequest) *Event {
	requestID := req.ID
	var limit *int
	if req.ParticipantLimit != nil {
		v := *req.ParticipantLimit
		limit = &v
	}
	return &Event{
		EventRequestID:   &requestID,
		EventName:        req.EventName,
		Description:      req.Description,
		Location:         req.Location,
		Date:             req.Date,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		ParticipantLimit: limit,
		DepartmentID:     req.DepartmentID,
		Status:           EventActive,
	}
}

func (e *Event) Slot() Slot {
	return Slot{
		ID:       e.ID,
		Location: e.Location,
		Date:     e.Date,
		Start:    e.StartTime,
		End:      e.EndTime,
	}
}

type EventCounts map[EventStatus]int

func NewEventCounts() EventCounts {
	counts := make(EventCounts, len(EventStatuses))
	for _, s := range EventStatuses {
		counts[s] = 0
	}
	return counts
}
