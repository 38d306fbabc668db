package handlers

import (
	"net/http"

	"event-workflow/internal/services"

	"github.com/pocketbase/pocketbase/core"
)

// OSASHandler serves the review queue and approval decisions.
type OSASHandler struct {
	requests  *services.RequestService
	lifecycle *services.RequestLifecycle
}

func NewOSASHandler(requests *services.RequestService, lifecycle *services.RequestLifecycle) *OSASHandler {
	return &OSASHandler{requests: requests, lifecycle: lifecycle}
}

func (h *OSASHandler) ListPending(e *core.RequestEvent) error {
	caller, err := callerFrom(e)
	if err != nil {
		return err
	}
	ctx := e.Request.Context()

	pending, err := h.requests.ListPending(ctx, caller)
	if err != nil {
		return failure(e, err)
	}
	counts, err := h.requests.Counts(ctx, caller)
	if err != nil {
		return failure(e, err)
	}

	return success(e, http.StatusOK, "", map[string]any{
		"requests": pending,
		"counts":   counts,
	})
}

// Approve answers 200 for both outcomes of a successful approval; the
// auto_rejected flag in the payload tells them apart.
func (h *OSASHandler) Approve(e *core.RequestEvent) error {
	caller, err := callerFrom(e)
	if err != nil {
		return err
	}

	res, err := h.lifecycle.Approve(e.Request.Context(), caller, e.Request.PathValue("id"))
	if err != nil {
		return failure(e, err)
	}
	return success(e, http.StatusOK, res.Message, res)
}

func (h *OSASHandler) Reject(e *core.RequestEvent) error {
	caller, err := callerFrom(e)
	if err != nil {
		return err
	}

	req, err := h.lifecycle.Reject(e.Request.Context(), caller, e.Request.PathValue("id"))
	if err != nil {
		return failure(e, err)
	}
	return success(e, http.StatusOK, services.MsgRequestRejected, req)
}
