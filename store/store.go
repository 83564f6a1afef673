// Package store defines the table-scoped contract every relief backend
// implements: insert, update, delete and select with equality filters,
// ordering, inclusive ranges and exact counts.
package store

import (
	"context"
)

// Store is implemented by memstore, gormstore and the supabase client.
//
// Rows are passed as structs whose json tags name the store's columns. out
// arguments are pointers the backend decodes the affected row(s) into; they may
// be nil when the caller does not need the representation back.
type Store interface {
	// Insert writes a single row. A unique constraint violation is reported as an
	// error matching ErrConflict.
	Insert(ctx context.Context, table string, row interface{}, out interface{}) error

	// Update applies patch to exactly one row matching filters and decodes the
	// updated row into out. No matching row is reported as ErrNotFound.
	Update(ctx context.Context, table string, filters []Filter, patch map[string]interface{}, out interface{}) error

	// Delete removes every row matching filters.
	Delete(ctx context.Context, table string, filters []Filter) error

	// Select decodes the rows matching query into out (a pointer to a slice). When
	// query.Count is set it also returns the exact number of rows matching the
	// filters, ignoring the range.
	Select(ctx context.Context, table string, query Query, out interface{}) (int64, error)

	// SelectOne decodes the single row matching filters into out. No matching row
	// is reported as ErrNotFound.
	SelectOne(ctx context.Context, table string, filters []Filter, out interface{}) error
}

// Filter is an equality condition on a column.
type Filter struct {
	Column string
	Value  interface{}
}

func Eq(column string, value interface{}) Filter {
	return Filter{Column: column, Value: value}
}

type Order struct {
	Column    string
	Ascending bool
}

func Asc(column string) Order {
	return Order{Column: column, Ascending: true}
}

func Desc(column string) Order {
	return Order{Column: column}
}

// Range selects rows From..To, both inclusive and zero based.
type Range struct {
	From int
	To   int
}

func (r Range) Limit() int {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}

type Query struct {
	Filters []Filter
	Orders  []Order
	Range   *Range
	Count   bool
}
