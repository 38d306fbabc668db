package services

import (
	"event-workflow/internal/store"
	"event-workflow/models"

	"github.com/spf13/cast"
)

func optionalLimit(v any) *int {
	n := cast.ToInt(v)
	if n == 0 {
		return nil
	}
	return &n
}

func limitValue(limit *int) int {
	if limit == nil {
		return 0
	}
	return *limit
}

func decodeRequest(rec store.Record) *models.EventRequest {
	return &models.EventRequest{
		ID:               cast.ToString(rec["id"]),
		DepartmentID:     cast.ToString(rec["department_id"]),
		EventName:        cast.ToString(rec["event_name"]),
		Description:      cast.ToString(rec["description"]),
		Location:         cast.ToString(rec["location"]),
		Date:             cast.ToString(rec["date"]),
		StartTime:        cast.ToString(rec["start_time"]),
		EndTime:          cast.ToString(rec["end_time"]),
		ParticipantLimit: optionalLimit(rec["participant_limit"]),
		Status:           models.EventRequestStatus(cast.ToString(rec["status"])),
		CreatedAt:        cast.ToTime(rec["created_at"]),
	}
}

func encodeRequest(r *models.EventRequest) store.Record {
	return store.Record{
		"department_id":     r.DepartmentID,
		"event_name":        r.EventName,
		"description":       r.Description,
		"location":          r.Location,
		"date":              r.Date,
		"start_time":        r.StartTime,
		"end_time":          r.EndTime,
		"participant_limit": limitValue(r.ParticipantLimit),
		"status":            string(r.Status),
		"created_at":        r.CreatedAt,
	}
}

func decodeEvent(rec store.Record) *models.Event {
	var requestID *string
	if id := cast.ToString(rec["event_request_id"]); id != "" {
		requestID = &id
	}
	return &models.Event{
		ID:               cast.ToString(rec["id"]),
		EventRequestID:   requestID,
		EventName:        cast.ToString(rec["event_name"]),
		Description:      cast.ToString(rec["description"]),
		Location:         cast.ToString(rec["location"]),
		Date:             cast.ToString(rec["date"]),
		StartTime:        cast.ToString(rec["start_time"]),
		EndTime:          cast.ToString(rec["end_time"]),
		ParticipantLimit: optionalLimit(rec["participant_limit"]),
		DepartmentID:     cast.ToString(rec["department_id"]),
		Status:           models.EventStatus(cast.ToString(rec["status"])),
	}
}

func encodeEvent(e *models.Event) store.Record {
	requestID := ""
	if e.EventRequestID != nil {
		requestID = *e.EventRequestID
	}
	return store.Record{
		"event_request_id":  requestID,
		"event_name":        e.EventName,
		"description":       e.Description,
		"location":          e.Location,
		"date":              e.Date,
		"start_time":        e.StartTime,
		"end_time":          e.EndTime,
		"participant_limit": limitValue(e.ParticipantLimit),
		"department_id":     e.DepartmentID,
		"status":            string(e.Status),
	}
}
