// Package store is the narrow persistence boundary used by the lifecycle
// services: equality filters, ordered reads and all-or-nothing transactions.
package store

import (
	"context"
	"errors"
)

const (
	TableEventRequests = "event_requests"
	TableEvents        = "events"
)

var ErrUnknownTable = errors.New("store: unknown table")

// Record is a flat field map. The store assigns "id" on insert.
type Record map[string]any

// Filter matches records whose fields equal every given value.
type Filter map[string]any

type order struct {
	field string
	desc  bool
}

type findOptions struct {
	orders []order
	limit  int
}

type FindOption func(*findOptions)

func OrderBy(field string, desc bool) FindOption {
	return func(o *findOptions) {
		o.orders = append(o.orders, order{field: field, desc: desc})
	}
}

func Limit(n int) FindOption {
	return func(o *findOptions) {
		o.limit = n
	}
}

func collectOptions(opts []FindOption) findOptions {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type Store interface {
	Find(ctx context.Context, table string, filter Filter, opts ...FindOption) ([]Record, error)
	Insert(ctx context.Context, table string, rec Record) (Record, error)
	Update(ctx context.Context, table string, filter Filter, patch Record) (int64, error)
	Delete(ctx context.Context, table string, filter Filter) (int64, error)
	// RunInTransaction runs fn against a transactional view of the store.
	// Every write made through tx is discarded if fn returns an error.
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error
}
