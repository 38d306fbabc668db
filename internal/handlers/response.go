package handlers

import (
	"errors"

	"event-workflow/internal/status"
	"event-workflow/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

var errInvalidBody = status.Validation(map[string]string{"body": "Invalid request body."})

type response struct {
	status.Outcome
	Data   any               `json:"data,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// callerFrom builds the caller context from the authenticated users record.
// Department accounts act for the department whose id is the record id.
func callerFrom(e *core.RequestEvent) (models.Caller, error) {
	if e.Auth == nil {
		return models.Caller{}, apis.NewUnauthorizedError("Please sign in to continue.", nil)
	}

	switch models.Role(e.Auth.GetString("role")) {
	case models.RoleOSAS:
		return models.OSAS(), nil
	case models.RoleDepartment:
		return models.Department(e.Auth.Id), nil
	}
	return models.Caller{Role: models.RoleStudent}, nil
}

func success(e *core.RequestEvent, code int, message string, data any) error {
	return e.JSON(code, response{Outcome: status.Succeeded(message), Data: data})
}

// failure renders a lifecycle error as a failed outcome. Only business
// messages reach the client; store faults carry the generic message.
func failure(e *core.RequestEvent, err error) error {
	res := response{Outcome: status.OutcomeOf(err)}
	var se *status.Error
	if errors.As(err, &se) {
		res.Fields = se.Fields
	}
	return e.JSON(status.HTTPCode(err), res)
}
