package handlers

import (
	"net/http"

	"event-workflow/internal/services"
	"event-workflow/models"

	"github.com/pocketbase/pocketbase/core"
)

type EventHandler struct {
	events   *services.EventLifecycle
	calendar *services.CalendarExporter
}

func NewEventHandler(events *services.EventLifecycle, calendar *services.CalendarExporter) *EventHandler {
	return &EventHandler{events: events, calendar: calendar}
}

// List returns the events visible to the caller. ?status= filters.
func (h *EventHandler) List(e *core.RequestEvent) error {
	caller, err := callerFrom(e)
	if err != nil {
		return err
	}

	events, err := h.events.List(e.Request.Context(), caller, services.EventFilter{
		Status: models.EventStatus(e.Request.URL.Query().Get("status")),
	})
	if err != nil {
		return failure(e, err)
	}

	data := map[string]any{"events": events}
	if !caller.IsDepartment() && !caller.IsOSAS() {
		return success(e, http.StatusOK, "", data)
	}

	counts, err := h.events.Counts(e.Request.Context(), caller)
	if err != nil {
		return failure(e, err)
	}
	data["counts"] = counts
	return success(e, http.StatusOK, "", data)
}

func (h *EventHandler) Cancel(e *core.RequestEvent) error {
	caller, err := callerFrom(e)
	if err != nil {
		return err
	}

	ev, err := h.events.Cancel(e.Request.Context(), caller, e.Request.PathValue("id"))
	if err != nil {
		return failure(e, err)
	}
	return success(e, http.StatusOK, services.MsgEventCancelled, ev)
}

func (h *EventHandler) Postpone(e *core.RequestEvent) error {
	caller, err := callerFrom(e)
	if err != nil {
		return err
	}

	var in services.PostponeInput
	if err := e.BindBody(&in); err != nil {
		return failure(e, errInvalidBody)
	}

	ev, err := h.events.Postpone(e.Request.Context(), caller, e.Request.PathValue("id"), in)
	if err != nil {
		return failure(e, err)
	}
	return success(e, http.StatusOK, services.MsgEventPostponed, ev)
}

// Calendar serves Active events as an iCalendar feed.
func (h *EventHandler) Calendar(e *core.RequestEvent) error {
	caller, err := callerFrom(e)
	if err != nil {
		return err
	}

	body, err := h.calendar.Export(e.Request.Context(), caller)
	if err != nil {
		return failure(e, err)
	}
	e.Response.Header().Set("Content-Disposition", `inline; filename="events.ics"`)
	return e.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}
