package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/spf13/cast"
)

// PocketBaseStore keeps records in PocketBase collections named after tables.
type PocketBaseStore struct {
	app core.App
}

func NewPocketBaseStore(app core.App) *PocketBaseStore {
	return &PocketBaseStore{app: app}
}

func (s *PocketBaseStore) Find(ctx context.Context, table string, filter Filter, opts ...FindOption) ([]Record, error) {
	records, err := s.findRecords(ctx, table, filter, collectOptions(opts))
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, toRecord(r))
	}
	return out, nil
}

func (s *PocketBaseStore) findRecords(ctx context.Context, table string, filter Filter, o findOptions) ([]*core.Record, error) {
	q := s.app.RecordQuery(table).WithContext(ctx)
	if len(filter) > 0 {
		q = q.AndWhere(dbx.HashExp(filter))
	}
	for _, ord := range o.orders {
		dir := "ASC"
		if ord.desc {
			dir = "DESC"
		}
		q = q.AndOrderBy(ord.field + " " + dir)
	}
	if o.limit > 0 {
		q = q.Limit(int64(o.limit))
	}

	records := []*core.Record{}
	if err := q.All(&records); err != nil {
		return nil, fmt.Errorf("find %s: %w", table, err)
	}
	return records, nil
}

func (s *PocketBaseStore) Insert(ctx context.Context, table string, rec Record) (Record, error) {
	collection, err := s.app.FindCollectionByNameOrId(table)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}

	record := core.NewRecord(collection)
	for k, v := range rec {
		if k == "id" {
			continue
		}
		record.Set(k, v)
	}
	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return toRecord(record), nil
}

// Update patches every record matching filter. The read and the writes share
// one transaction and each loaded record is checked against filter again, so
// a status filter guards the write even when the caller holds no transaction.
func (s *PocketBaseStore) Update(ctx context.Context, table string, filter Filter, patch Record) (int64, error) {
	var n int64
	err := s.app.RunInTransaction(func(txApp core.App) error {
		tx := &PocketBaseStore{app: txApp}
		records, err := tx.findRecords(ctx, table, filter, findOptions{})
		if err != nil {
			return err
		}

		for _, record := range records {
			if !recordMatches(record, filter) {
				continue
			}
			for k, v := range patch {
				if k != "id" {
					record.Set(k, v)
				}
			}
			if err := txApp.SaveWithContext(ctx, record); err != nil {
				return fmt.Errorf("update %s %s: %w", table, record.Id, err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PocketBaseStore) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	var n int64
	err := s.app.RunInTransaction(func(txApp core.App) error {
		tx := &PocketBaseStore{app: txApp}
		records, err := tx.findRecords(ctx, table, filter, findOptions{})
		if err != nil {
			return err
		}

		for _, record := range records {
			if !recordMatches(record, filter) {
				continue
			}
			if err := txApp.DeleteWithContext(ctx, record); err != nil {
				return fmt.Errorf("delete %s %s: %w", table, record.Id, err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PocketBaseStore) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		return fn(&PocketBaseStore{app: txApp})
	})
}

func recordMatches(r *core.Record, filter Filter) bool {
	for k, want := range filter {
		var got any
		if k == "id" {
			got = r.Id
		} else {
			got = r.Get(k)
		}
		if cast.ToString(got) != cast.ToString(want) {
			return false
		}
	}
	return true
}

func toRecord(r *core.Record) Record {
	out := Record{"id": r.Id}
	for _, field := range r.Collection().Fields {
		name := field.GetName()
		if name == "id" || strings.HasPrefix(name, "@") {
			continue
		}
		value := r.Get(name)
		if dt, ok := value.(types.DateTime); ok {
			value = dt.Time()
		}
		out[name] = value
	}
	return out
}
