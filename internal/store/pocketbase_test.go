package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "event-workflow/migrations"

	"github.com/pocketbase/pocketbase/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPocketBaseStore(t *testing.T) *PocketBaseStore {
	t.Helper()
	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)
	return NewPocketBaseStore(app)
}

func pendingRequest(name string) Record {
	return Record{
		"department_id": "dept-a",
		"event_name":    name,
		"location":      "Main Hall",
		"date":          "2026-11-02",
		"start_time":    "09:00:00",
		"end_time":      "10:00:00",
		"status":        "Pending",
		"created_at":    time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}
}

func TestPocketBaseStore_InsertAndFind(t *testing.T) {
	s := newTestPocketBaseStore(t)
	ctx := context.Background()

	first, err := s.Insert(ctx, TableEventRequests, pendingRequest("Orientation"))
	require.NoError(t, err)
	assert.NotEmpty(t, first["id"])

	second := pendingRequest("Seminar")
	second["department_id"] = "dept-b"
	_, err = s.Insert(ctx, TableEventRequests, second)
	require.NoError(t, err)

	rows, err := s.Find(ctx, TableEventRequests, Filter{"department_id": "dept-a"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, first["id"], rows[0]["id"])
	assert.Equal(t, "Orientation", rows[0]["event_name"])

	none, err := s.Find(ctx, TableEventRequests, Filter{"id": "missing"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPocketBaseStore_UpdateChecksFilter(t *testing.T) {
	s := newTestPocketBaseStore(t)
	ctx := context.Background()

	rec, err := s.Insert(ctx, TableEventRequests, pendingRequest("Orientation"))
	require.NoError(t, err)
	id := rec["id"]

	n, err := s.Update(ctx, TableEventRequests, Filter{"id": id, "status": "Pending"}, Record{"status": "Approved"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// a writer that still believes the request is Pending must not win
	n, err = s.Update(ctx, TableEventRequests, Filter{"id": id, "status": "Pending"}, Record{"status": "Rejected"})
	require.NoError(t, err)
	assert.Zero(t, n)

	rows, err := s.Find(ctx, TableEventRequests, Filter{"id": id})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Approved", rows[0]["status"])
}

func TestPocketBaseStore_ConcurrentConditionalUpdates(t *testing.T) {
	s := newTestPocketBaseStore(t)
	ctx := context.Background()

	rec, err := s.Insert(ctx, TableEventRequests, pendingRequest("Orientation"))
	require.NoError(t, err)
	id := rec["id"]

	targets := []string{"Approved", "Rejected", "Cancelled"}
	var applied atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			<-start
			n, err := s.Update(ctx, TableEventRequests, Filter{"id": id, "status": "Pending"}, Record{"status": to})
			if assert.NoError(t, err) {
				applied.Add(n)
			}
		}(targets[i%len(targets)])
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), applied.Load())

	rows, err := s.Find(ctx, TableEventRequests, Filter{"id": id})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEqual(t, "Pending", rows[0]["status"])
}

func TestPocketBaseStore_DeleteChecksFilter(t *testing.T) {
	s := newTestPocketBaseStore(t)
	ctx := context.Background()

	rec, err := s.Insert(ctx, TableEventRequests, pendingRequest("Orientation"))
	require.NoError(t, err)
	id := rec["id"]

	_, err = s.Update(ctx, TableEventRequests, Filter{"id": id}, Record{"status": "Approved"})
	require.NoError(t, err)

	n, err := s.Delete(ctx, TableEventRequests, Filter{"id": id, "status": "Pending"})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Delete(ctx, TableEventRequests, Filter{"id": id, "status": "Approved"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := s.Find(ctx, TableEventRequests, Filter{"id": id})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPocketBaseStore_TransactionRollback(t *testing.T) {
	s := newTestPocketBaseStore(t)
	ctx := context.Background()

	rec, err := s.Insert(ctx, TableEventRequests, pendingRequest("Orientation"))
	require.NoError(t, err)
	id := rec["id"]

	boom := errors.New("event insert failed")
	err = s.RunInTransaction(ctx, func(tx Store) error {
		n, err := tx.Update(ctx, TableEventRequests, Filter{"id": id, "status": "Pending"}, Record{"status": "Approved"})
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := s.Find(ctx, TableEventRequests, Filter{"id": id})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Pending", rows[0]["status"])
}

func TestPocketBaseStore_UniqueEventPerRequest(t *testing.T) {
	s := newTestPocketBaseStore(t)
	ctx := context.Background()

	event := Record{
		"event_request_id": "req-1",
		"event_name":       "Orientation",
		"location":         "Main Hall",
		"date":             "2026-11-02",
		"start_time":       "09:00:00",
		"end_time":         "10:00:00",
		"department_id":    "dept-a",
		"status":           "Active",
	}
	_, err := s.Insert(ctx, TableEvents, event)
	require.NoError(t, err)

	_, err = s.Insert(ctx, TableEvents, event)
	assert.Error(t, err)
}
