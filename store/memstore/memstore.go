// Package memstore is an in-memory store.Store. Rows are kept in their column
// (json) shape and unique keys are enforced the way a relational store would.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Daskott/relief/store"
)

type row map[string]interface{}

type MemStore struct {
	mu         sync.RWMutex
	tables     map[string][]row
	uniqueKeys map[string][][]string
}

// New creates a store enforcing uniqueKeys, a map of table name to the column
// sets that must be unique in it.
func New(uniqueKeys map[string][][]string) *MemStore {
	return &MemStore{
		tables:     make(map[string][]row),
		uniqueKeys: uniqueKeys,
	}
}

func (m *MemStore) Insert(ctx context.Context, table string, value interface{}, out interface{}) error {
	newRow, err := toRow(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if conflict := m.conflictingKey(table, newRow, -1); conflict != "" {
		return store.ConflictError(table, conflict)
	}

	m.tables[table] = append(m.tables[table], newRow)
	return decode(newRow, out)
}

func (m *MemStore) Update(ctx context.Context, table string, filters []store.Filter, patch map[string]interface{}, out interface{}) error {
	patchRow, err := toRow(patch)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.singleIndex(table, filters)
	if err != nil {
		return err
	}

	updated := copyRow(m.tables[table][idx])
	for column, value := range patchRow {
		updated[column] = value
	}

	if conflict := m.conflictingKey(table, updated, idx); conflict != "" {
		return store.ConflictError(table, conflict)
	}

	m.tables[table][idx] = updated
	return decode(updated, out)
}

func (m *MemStore) Delete(ctx context.Context, table string, filters []store.Filter) error {
	normalized, err := normalizeFilters(filters)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := []row{}
	for _, r := range m.tables[table] {
		if !matches(r, normalized) {
			kept = append(kept, r)
		}
	}
	m.tables[table] = kept

	return nil
}

func (m *MemStore) Select(ctx context.Context, table string, query store.Query, out interface{}) (int64, error) {
	normalized, err := normalizeFilters(query.Filters)
	if err != nil {
		return 0, err
	}

	m.mu.RLock()
	matched := []row{}
	for _, r := range m.tables[table] {
		if matches(r, normalized) {
			matched = append(matched, copyRow(r))
		}
	}
	m.mu.RUnlock()

	if len(query.Orders) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return less(matched[i], matched[j], query.Orders)
		})
	}

	var total int64
	if query.Count {
		total = int64(len(matched))
	}

	if query.Range != nil {
		matched = applyRange(matched, *query.Range)
	}

	return total, decode(matched, out)
}

func (m *MemStore) SelectOne(ctx context.Context, table string, filters []store.Filter, out interface{}) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, err := m.singleIndex(table, filters)
	if err != nil {
		return err
	}

	return decode(m.tables[table][idx], out)
}

// Len returns the number of rows in table.
func (m *MemStore) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.tables[table])
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

// singleIndex returns the position of the one row matching filters. Must be
// called with the lock held.
func (m *MemStore) singleIndex(table string, filters []store.Filter) (int, error) {
	normalized, err := normalizeFilters(filters)
	if err != nil {
		return -1, err
	}

	found := -1
	for i, r := range m.tables[table] {
		if !matches(r, normalized) {
			continue
		}

		if found >= 0 {
			return -1, &store.Error{
				Code:    store.CodeNoRows,
				Message: fmt.Sprintf("multiple rows in '%v' match a single row request", table),
				Status:  406,
			}
		}
		found = i
	}

	if found < 0 {
		return -1, store.NotFoundError(table)
	}
	return found, nil
}

// conflictingKey returns a description of the first unique key candidate shares
// with a row other than the one at skipIdx. Must be called with the lock held.
func (m *MemStore) conflictingKey(table string, candidate row, skipIdx int) string {
	for _, key := range m.uniqueKeys[table] {
		for i, existing := range m.tables[table] {
			if i == skipIdx {
				continue
			}

			if sameKey(existing, candidate, key) {
				return fmt.Sprintf("Key (%v) already exists", strings.Join(key, ", "))
			}
		}
	}
	return ""
}

func sameKey(a, b row, columns []string) bool {
	for _, column := range columns {
		av, bv := a[column], b[column]
		if av == nil || bv == nil {
			return false
		}

		if fmt.Sprint(av) != fmt.Sprint(bv) {
			return false
		}
	}
	return true
}

func matches(r row, filters []store.Filter) bool {
	for _, filter := range filters {
		if fmt.Sprint(r[filter.Column]) != fmt.Sprint(filter.Value) {
			return false
		}
	}
	return true
}

func less(a, b row, orders []store.Order) bool {
	for _, order := range orders {
		cmp := compare(a[order.Column], b[order.Column])
		if cmp == 0 {
			continue
		}

		if order.Ascending {
			return cmp < 0
		}
		return cmp > 0
	}
	return false
}

// compare orders column values; nulls sort last in ascending order.
func compare(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return compareFloat(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok && av != bv {
			if !av {
				return -1
			}
			return 1
		}
		return 0
	case string:
		bv, _ := b.(string)
		at, aErr := time.Parse(time.RFC3339Nano, av)
		bt, bErr := time.Parse(time.RFC3339Nano, bv)
		if aErr == nil && bErr == nil {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			}
			return 0
		}
		return strings.Compare(av, bv)
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func applyRange(rows []row, r store.Range) []row {
	if r.From >= len(rows) || r.Limit() == 0 {
		return []row{}
	}

	end := r.To + 1
	if end > len(rows) {
		end = len(rows)
	}
	return rows[r.From:end]
}

func normalizeFilters(filters []store.Filter) ([]store.Filter, error) {
	normalized := make([]store.Filter, 0, len(filters))
	for _, filter := range filters {
		value, err := normalizeValue(filter.Value)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, store.Filter{Column: filter.Column, Value: value})
	}
	return normalized, nil
}

// normalizeValue round trips v through JSON so filter values compare equal to
// stored column values.
func normalizeValue(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var normalized interface{}
	err = json.Unmarshal(b, &normalized)
	return normalized, err
}

func toRow(v interface{}) (row, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("memstore: encode row: %v", err)
	}

	r := row{}
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("memstore: decode row: %v", err)
	}
	return r, nil
}

func copyRow(r row) row {
	c := make(row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

func decode(v interface{}, out interface{}) error {
	if out == nil {
		return nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
