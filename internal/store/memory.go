package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Transactions are serialized and roll
// back by restoring a snapshot of every table.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string][]Record
}

func NewMemoryStore(tables ...string) *MemoryStore {
	if len(tables) == 0 {
		tables = []string{TableEventRequests, TableEvents}
	}
	s := &MemoryStore{tables: make(map[string][]Record, len(tables))}
	for _, t := range tables {
		s.tables[t] = nil
	}
	return s
}

func (s *MemoryStore) Find(ctx context.Context, table string, filter Filter, opts ...FindOption) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memoryTx)(s).Find(ctx, table, filter, opts...)
}

func (s *MemoryStore) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memoryTx)(s).Insert(ctx, table, rec)
}

func (s *MemoryStore) Update(ctx context.Context, table string, filter Filter, patch Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memoryTx)(s).Update(ctx, table, filter, patch)
}

func (s *MemoryStore) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memoryTx)(s).Delete(ctx, table, filter)
}

func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memoryTx)(s).RunInTransaction(ctx, fn)
}

// memoryTx is the MemoryStore seen from inside a held lock.
type memoryTx MemoryStore

func (t *memoryTx) rows(table string) ([]Record, error) {
	rows, ok := t.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return rows, nil
}

func (t *memoryTx) Find(ctx context.Context, table string, filter Filter, opts ...FindOption) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := t.rows(table)
	if err != nil {
		return nil, err
	}

	out := []Record{}
	for _, row := range rows {
		if matches(row, filter) {
			out = append(out, copyRecord(row))
		}
	}

	o := collectOptions(opts)
	if len(o.orders) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, ord := range o.orders {
				c := compareValues(out[i][ord.field], out[j][ord.field])
				if c == 0 {
					continue
				}
				if ord.desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if o.limit > 0 && len(out) > o.limit {
		out = out[:o.limit]
	}
	return out, nil
}

func (t *memoryTx) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := t.rows(table)
	if err != nil {
		return nil, err
	}

	row := copyRecord(rec)
	row["id"] = uuid.NewString()
	t.tables[table] = append(rows, row)
	return copyRecord(row), nil
}

func (t *memoryTx) Update(ctx context.Context, table string, filter Filter, patch Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rows, err := t.rows(table)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, row := range rows {
		if !matches(row, filter) {
			continue
		}
		for k, v := range patch {
			if k != "id" {
				row[k] = v
			}
		}
		n++
	}
	return n, nil
}

func (t *memoryTx) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rows, err := t.rows(table)
	if err != nil {
		return 0, err
	}

	kept := rows[:0:0]
	var n int64
	for _, row := range rows {
		if matches(row, filter) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	t.tables[table] = kept
	return n, nil
}

func (t *memoryTx) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	snapshot := make(map[string][]Record, len(t.tables))
	for name, rows := range t.tables {
		copied := make([]Record, len(rows))
		for i, row := range rows {
			copied[i] = copyRecord(row)
		}
		snapshot[name] = copied
	}

	defer func() {
		if r := recover(); r != nil {
			t.tables = snapshot
			panic(r)
		}
	}()

	if err := fn(t); err != nil {
		t.tables = snapshot
		return err
	}
	return nil
}

func matches(row Record, filter Filter) bool {
	for k, want := range filter {
		if compareValues(row[k], want) != 0 {
			return false
		}
	}
	return true
}

func compareValues(a, b any) int {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	as, bs := valueString(a), valueString(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func valueString(v any) string {
	if v == nil {
		return ""
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

func copyRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
