package handlers

import (
	"net/http"

	"event-workflow/internal/services"
	"event-workflow/models"

	"github.com/pocketbase/pocketbase/core"
)

// RequestHandler serves the department side of event requests.
type RequestHandler struct {
	requests *services.RequestService
}

func NewRequestHandler(requests *services.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

func (h *RequestHandler) Submit(e *core.RequestEvent) error {
	caller, err := callerFrom(e)
	if err != nil {
		return err
	}

	var in services.SubmitInput
	if err := e.BindBody(&in); err != nil {
		return failure(e, errInvalidBody)
	}

	req, err := h.requests.Submit(e.Request.Context(), caller, in)
	if err != nil {
		return failure(e, err)
	}
	return success(e, http.StatusCreated, "Event request submitted.", req)
}

// List returns the caller's requests with per-status counts. ?status= filters.
func (h *RequestHandler) List(e *core.RequestEvent) error {
	caller, err := callerFrom(e)
	if err != nil {
		return err
	}
	ctx := e.Request.Context()

	st := models.EventRequestStatus(e.Request.URL.Query().Get("status"))
	requests, err := h.requests.ListForDepartment(ctx, caller, st)
	if err != nil {
		return failure(e, err)
	}
	counts, err := h.requests.Counts(ctx, caller)
	if err != nil {
		return failure(e, err)
	}

	return success(e, http.StatusOK, "", map[string]any{
		"requests": requests,
		"counts":   counts,
	})
}

func (h *RequestHandler) Edit(e *core.RequestEvent) error {
	caller, err := callerFrom(e)
	if err != nil {
		return err
	}

	var in services.SubmitInput
	if err := e.BindBody(&in); err != nil {
		return failure(e, errInvalidBody)
	}

	req, err := h.requests.Edit(e.Request.Context(), caller, e.Request.PathValue("id"), in)
	if err != nil {
		return failure(e, err)
	}
	return success(e, http.StatusOK, "Event request updated.", req)
}

func (h *RequestHandler) Cancel(e *core.RequestEvent) error {
	caller, err := callerFrom(e)
	if err != nil {
		return err
	}

	req, err := h.requests.Cancel(e.Request.Context(), caller, e.Request.PathValue("id"))
	if err != nil {
		return failure(e, err)
	}
	return success(e, http.StatusOK, "Event request cancelled.", req)
}

func (h *RequestHandler) Delete(e *core.RequestEvent) error {
	caller, err := callerFrom(e)
	if err != nil {
		return err
	}

	if err := h.requests.Delete(e.Request.Context(), caller, e.Request.PathValue("id")); err != nil {
		return failure(e, err)
	}
	return success(e, http.StatusOK, "Event request deleted.", nil)
}
