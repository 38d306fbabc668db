package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"event-workflow/internal/status"
	"event-workflow/internal/store"
	_ "event-workflow/migrations"
	"event-workflow/models"
	"event-workflow/utils"

	"github.com/pocketbase/pocketbase/tests"
	"github.com/stretchr/testify/require"
)

const (
	testLocation = "Main Hall"
	testDate     = "2026-11-02"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type notice struct {
	DepartmentID string
	Kind         string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) Notify(departmentID, kind string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{DepartmentID: departmentID, Kind: kind})
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.notices))
	for i, nt := range n.notices {
		out[i] = nt.Kind
	}
	return out
}

type testServices struct {
	db        store.Store
	approvals *RequestLifecycle
	events    *EventLifecycle
	requests  *RequestService
	sweeper   *CompletionSweeper
	notifier  *recordingNotifier
	locker    *utils.LocalLocker
}

func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	return setupTestServicesWithStore(t, store.NewMemoryStore())
}

// setupPocketBaseServices runs the services against a migrated PocketBase
// test app.
func setupPocketBaseServices(t *testing.T) *testServices {
	t.Helper()
	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)
	return setupTestServicesWithStore(t, store.NewPocketBaseStore(app))
}

func setupTestServicesWithStore(t *testing.T, db store.Store) *testServices {
	t.Helper()

	notifier := &recordingNotifier{}
	locker := utils.NewLocalLocker()
	clock := func() time.Time { return testNow }

	s := &testServices{
		db:        db,
		approvals: NewRequestLifecycle(db, locker, notifier, nil),
		events:    NewEventLifecycle(db, locker, notifier, nil, time.UTC),
		requests:  NewRequestService(db, nil, time.UTC),
		sweeper:   NewCompletionSweeper(db, notifier, nil, time.UTC),
		notifier:  notifier,
		locker:    locker,
	}
	s.events.now = clock
	s.requests.now = clock
	s.sweeper.now = clock
	return s
}

func (s *testServices) seedRequest(t *testing.T, departmentID, start, end string) *models.EventRequest {
	t.Helper()
	req, err := NewRequestStore(s.db).Create(context.Background(), &models.EventRequest{
		DepartmentID: departmentID,
		EventName:    "Orientation " + start,
		Location:     testLocation,
		Date:         testDate,
		StartTime:    start,
		EndTime:      end,
		Status:       models.RequestPending,
		CreatedAt:    testNow,
	})
	require.NoError(t, err)
	return req
}

func (s *testServices) seedEvent(t *testing.T, departmentID, start, end string, st models.EventStatus) *models.Event {
	t.Helper()
	ev, err := NewEventStore(s.db).Create(context.Background(), &models.Event{
		EventName:    "Seminar " + start,
		Location:     testLocation,
		Date:         testDate,
		StartTime:    start,
		EndTime:      end,
		DepartmentID: departmentID,
		Status:       st,
	})
	require.NoError(t, err)
	return ev
}

func (s *testServices) request(t *testing.T, id string) *models.EventRequest {
	t.Helper()
	req, err := NewRequestStore(s.db).Get(context.Background(), id)
	require.NoError(t, err)
	return req
}

func (s *testServices) event(t *testing.T, id string) *models.Event {
	t.Helper()
	ev, err := NewEventStore(s.db).Get(context.Background(), id)
	require.NoError(t, err)
	return ev
}

func (s *testServices) allEvents(t *testing.T) []*models.Event {
	t.Helper()
	events, err := NewEventStore(s.db).List(context.Background(), EventFilter{})
	require.NoError(t, err)
	return events
}

func requireKind(t *testing.T, err error, kind status.Kind) *status.Error {
	t.Helper()
	require.Error(t, err)
	var se *status.Error
	require.ErrorAs(t, err, &se)
	require.Equal(t, kind, se.Kind, "unexpected error: %v", err)
	return se
}

func intPtr(n int) *int {
	return &n
}

// failingEventInsert fails every insert into the events table, inside and
// outside transactions.
type failingEventInsert struct {
	store.Store
}

func (f failingEventInsert) Insert(ctx context.Context, table string, rec store.Record) (store.Record, error) {
	if table == store.TableEvents {
		return nil, errors.New("disk I/O error")
	}
	return f.Store.Insert(ctx, table, rec)
}

func (f failingEventInsert) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.RunInTransaction(ctx, func(tx store.Store) error {
		return fn(failingEventInsert{tx})
	})
}

type panickingStore struct {
	store.Store
}

func (panickingStore) Find(ctx context.Context, table string, filter store.Filter, opts ...store.FindOption) ([]store.Record, error) {
	panic("connection pool corrupted")
}

// panickingEventInsert panics on every insert into the events table made
// inside a transaction.
type panickingEventInsert struct {
	store.Store
}

func (p panickingEventInsert) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return p.Store.RunInTransaction(ctx, func(tx store.Store) error {
		return fn(panicOnEventInsert{tx})
	})
}

type panicOnEventInsert struct {
	store.Store
}

func (p panicOnEventInsert) Insert(ctx context.Context, table string, rec store.Record) (store.Record, error) {
	if table == store.TableEvents {
		panic("events table is corrupt")
	}
	return p.Store.Insert(ctx, table, rec)
}

// autocommitStore gives transactions no isolation: every call inside fn is
// applied on its own and event reads are slowed down. Only the slot lock
// keeps concurrent approvals of one slot apart.
type autocommitStore struct {
	store.Store
}

func (a autocommitStore) Find(ctx context.Context, table string, filter store.Filter, opts ...store.FindOption) ([]store.Record, error) {
	if table == store.TableEvents {
		time.Sleep(2 * time.Millisecond)
	}
	return a.Store.Find(ctx, table, filter, opts...)
}

func (a autocommitStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(a)
}

// beforeUpdateStore runs hook once, right before the first update of table.
type beforeUpdateStore struct {
	store.Store
	table string
	once  *sync.Once
	hook  func()
}

func (b beforeUpdateStore) Update(ctx context.Context, table string, filter store.Filter, patch store.Record) (int64, error) {
	if table == b.table {
		b.once.Do(b.hook)
	}
	return b.Store.Update(ctx, table, filter, patch)
}
