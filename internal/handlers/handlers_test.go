package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"event-workflow/internal/services"
	"event-workflow/internal/store"
	"event-workflow/models"
	"event-workflow/utils"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const futureDate = "2099-05-10"

type testBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Fields  map[string]string `json:"fields"`
}

type testHandlers struct {
	db       store.Store
	requests *RequestHandler
	osas     *OSASHandler
	events   *EventHandler
}

func setupTestHandlers(t *testing.T) *testHandlers {
	t.Helper()

	db := store.NewMemoryStore()
	locker := utils.NewLocalLocker()
	requestService := services.NewRequestService(db, nil, time.UTC)

	return &testHandlers{
		db:       db,
		requests: NewRequestHandler(requestService),
		osas:     NewOSASHandler(requestService, services.NewRequestLifecycle(db, locker, nil, nil)),
		events: NewEventHandler(
			services.NewEventLifecycle(db, locker, nil, nil, time.UTC),
			services.NewCalendarExporter(db, time.UTC),
		),
	}
}

func authRecord(id string, role models.Role) *core.Record {
	users := core.NewAuthCollection("users")
	users.Fields.Add(&core.TextField{Name: "role"})

	rec := core.NewRecord(users)
	rec.Id = id
	rec.Set("role", string(role))
	return rec
}

func newTestEvent(method, target, body string, auth *core.Record, id string) (*core.RequestEvent, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if id != "" {
		req.SetPathValue("id", id)
	}
	rec := httptest.NewRecorder()

	e := &core.RequestEvent{}
	e.Request = req
	e.Response = rec
	e.Auth = auth
	return e, rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) testBody {
	t.Helper()
	var body testBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (h *testHandlers) submit(t *testing.T, departmentID, start, end string) string {
	t.Helper()
	payload := `{"event_name":"Career Fair","location":"Main Hall","date":"` + futureDate +
		`","start_time":"` + start + `","end_time":"` + end + `"}`
	e, rec := newTestEvent(http.MethodPost, "/api/v1/requests", payload, authRecord(departmentID, models.RoleDepartment), "")
	require.NoError(t, h.requests.Submit(e))
	require.Equal(t, http.StatusCreated, rec.Code)

	var req models.EventRequest
	require.NoError(t, json.Unmarshal(decodeBody(t, rec).Data, &req))
	return req.ID
}

func TestSubmitRequest(t *testing.T) {
	h := setupTestHandlers(t)
	payload := `{"event_name":"Career Fair","location":"Main Hall","date":"` + futureDate +
		`","start_time":"09:00","end_time":"11:00","participant_limit":80}`

	e, rec := newTestEvent(http.MethodPost, "/api/v1/requests", payload, authRecord("dept-a", models.RoleDepartment), "")
	require.NoError(t, h.requests.Submit(e))

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "Event request submitted.", body.Message)

	var req models.EventRequest
	require.NoError(t, json.Unmarshal(body.Data, &req))
	assert.Equal(t, models.RequestPending, req.Status)
	assert.Equal(t, "dept-a", req.DepartmentID)
	assert.Equal(t, "09:00:00", req.StartTime)
}

func TestSubmitRequest_Failures(t *testing.T) {
	h := setupTestHandlers(t)

	e, rec := newTestEvent(http.MethodPost, "/api/v1/requests", `{"event_name":`, authRecord("dept-a", models.RoleDepartment), "")
	require.NoError(t, h.requests.Submit(e))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodeBody(t, rec).Success)

	e, rec = newTestEvent(http.MethodPost, "/api/v1/requests",
		`{"event_name":"x","location":"Gym","date":"`+futureDate+`","start_time":"10:00","end_time":"09:00"}`,
		authRecord("dept-a", models.RoleDepartment), "")
	require.NoError(t, h.requests.Submit(e))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "end_time must be after start_time.", body.Message)
	assert.Contains(t, body.Fields, "end_time")

	e, rec = newTestEvent(http.MethodPost, "/api/v1/requests", `{}`, authRecord("osas-1", models.RoleOSAS), "")
	require.NoError(t, h.requests.Submit(e))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnauthenticated(t *testing.T) {
	h := setupTestHandlers(t)

	e, _ := newTestEvent(http.MethodGet, "/api/v1/events", "", nil, "")
	err := h.events.List(e)

	var apiErr *router.ApiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestApproveRequest(t *testing.T) {
	h := setupTestHandlers(t)
	first := h.submit(t, "dept-a", "09:00", "10:00")
	second := h.submit(t, "dept-b", "09:30", "10:30")
	osas := authRecord("osas-1", models.RoleOSAS)

	e, rec := newTestEvent(http.MethodPost, "/api/v1/osas/requests/"+first+"/approve", "", osas, first)
	require.NoError(t, h.osas.Approve(e))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, services.MsgRequestApproved, body.Message)

	var res services.ApprovalResult
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.False(t, res.AutoRejected)
	require.NotNil(t, res.Event)
	assert.Equal(t, models.EventActive, res.Event.Status)

	e, rec = newTestEvent(http.MethodPost, "/api/v1/osas/requests/"+second+"/approve", "", osas, second)
	require.NoError(t, h.osas.Approve(e))
	assert.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.True(t, body.Success, "auto-reject is reported as success")
	assert.Equal(t, services.MsgRequestAutoRejected, body.Message)

	e, rec = newTestEvent(http.MethodPost, "/api/v1/osas/requests/"+first+"/approve", "", osas, first)
	require.NoError(t, h.osas.Approve(e))
	assert.Equal(t, http.StatusConflict, rec.Code)
	body = decodeBody(t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, "Request already approved.", body.Message)
}

func TestApproveRequest_Forbidden(t *testing.T) {
	h := setupTestHandlers(t)
	id := h.submit(t, "dept-a", "09:00", "10:00")

	e, rec := newTestEvent(http.MethodPost, "/", "", authRecord("dept-a", models.RoleDepartment), id)
	require.NoError(t, h.osas.Approve(e))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	e, rec = newTestEvent(http.MethodPost, "/", "", authRecord("osas-1", models.RoleOSAS), "missing")
	require.NoError(t, h.osas.Reject(e))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostponeAndCancelEvent(t *testing.T) {
	h := setupTestHandlers(t)
	ctx := context.Background()
	eventStore := services.NewEventStore(h.db)

	blocker, err := eventStore.Create(ctx, &models.Event{
		EventName: "Board Meeting", Location: "Main Hall", Date: futureDate,
		StartTime: "13:00:00", EndTime: "14:00:00", DepartmentID: "dept-b", Status: models.EventActive,
	})
	require.NoError(t, err)
	ev, err := eventStore.Create(ctx, &models.Event{
		EventName: "Career Fair", Location: "Main Hall", Date: futureDate,
		StartTime: "09:00:00", EndTime: "10:00:00", DepartmentID: "dept-a", Status: models.EventActive,
	})
	require.NoError(t, err)
	owner := authRecord("dept-a", models.RoleDepartment)

	e, rec := newTestEvent(http.MethodPost, "/", `{"date":"`+futureDate+`","start_time":"13:30","end_time":"14:30"}`, owner, ev.ID)
	require.NoError(t, h.events.Postpone(e))
	assert.Equal(t, http.StatusConflict, rec.Code)

	e, rec = newTestEvent(http.MethodPost, "/", "", owner, blocker.ID)
	require.NoError(t, h.events.Cancel(e))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	e, rec = newTestEvent(http.MethodPost, "/", `{"date":"`+futureDate+`","start_time":"15:00","end_time":"16:00"}`, owner, ev.ID)
	require.NoError(t, h.events.Postpone(e))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.MsgEventPostponed, decodeBody(t, rec).Message)

	e, rec = newTestEvent(http.MethodPost, "/", "", owner, ev.ID)
	require.NoError(t, h.events.Cancel(e))
	assert.Equal(t, http.StatusOK, rec.Code)

	e, rec = newTestEvent(http.MethodPost, "/", "", owner, ev.ID)
	require.NoError(t, h.events.Cancel(e))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Event already cancelled.", decodeBody(t, rec).Message)
}

func TestListEndpoints(t *testing.T) {
	h := setupTestHandlers(t)
	h.submit(t, "dept-a", "09:00", "10:00")
	h.submit(t, "dept-b", "11:00", "12:00")

	e, rec := newTestEvent(http.MethodGet, "/api/v1/requests?status=Pending", "", authRecord("dept-a", models.RoleDepartment), "")
	require.NoError(t, h.requests.List(e))
	require.Equal(t, http.StatusOK, rec.Code)

	var own struct {
		Requests []models.EventRequest `json:"requests"`
		Counts   map[string]int        `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(decodeBody(t, rec).Data, &own))
	assert.Len(t, own.Requests, 1)
	assert.Equal(t, 1, own.Counts["Pending"])

	e, rec = newTestEvent(http.MethodGet, "/api/v1/osas/requests", "", authRecord("osas-1", models.RoleOSAS), "")
	require.NoError(t, h.osas.ListPending(e))
	require.Equal(t, http.StatusOK, rec.Code)

	var pending struct {
		Requests []models.EventRequest `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(decodeBody(t, rec).Data, &pending))
	assert.Len(t, pending.Requests, 2)

	e, rec = newTestEvent(http.MethodGet, "/api/v1/osas/requests", "", authRecord("dept-a", models.RoleDepartment), "")
	require.NoError(t, h.osas.ListPending(e))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCalendarFeed(t *testing.T) {
	h := setupTestHandlers(t)
	_, err := services.NewEventStore(h.db).Create(context.Background(), &models.Event{
		EventName: "Career Fair", Location: "Main Hall", Date: futureDate,
		StartTime: "09:00:00", EndTime: "10:00:00", DepartmentID: "dept-a", Status: models.EventActive,
	})
	require.NoError(t, err)

	e, rec := newTestEvent(http.MethodGet, "/api/v1/events/calendar.ics", "", authRecord("student-1", models.RoleStudent), "")
	require.NoError(t, h.events.Calendar(e))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, rec.Body.String(), "SUMMARY:Career Fair")
}
