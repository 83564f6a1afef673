package memstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Daskott/relief/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type province struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      *string   `json:"code"`
	Order     int       `json:"display_order"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

var keys = map[string][][]string{
	"provinces":     {{"id"}, {"name"}},
	"help_supports": {{"id"}, {"help_record_id", "team_id"}},
}

func code(s string) *string {
	return &s
}

func seededStore(t *testing.T) *MemStore {
	ms := New(keys)
	base := time.Date(2024, 11, 1, 8, 0, 0, 0, time.UTC)

	rows := []province{
		{ID: "p1", Name: "Phú Yên", Code: code("PY"), Order: 1, IsActive: true, CreatedAt: base},
		{ID: "p2", Name: "Bình Định", Code: code("BD"), Order: 2, IsActive: true, CreatedAt: base.Add(time.Hour)},
		{ID: "p3", Name: "Khánh Hòa", Order: 3, IsActive: false, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "p4", Name: "Quảng Nam", Order: 3, IsActive: true, CreatedAt: base.Add(3 * time.Hour)},
	}
	for _, r := range rows {
		require.Nil(t, ms.Insert(context.Background(), "provinces", r, nil))
	}
	return ms
}

func TestInsertEnforcesUniqueKeys(t *testing.T) {
	ms := seededStore(t)
	ctx := context.Background()

	err := ms.Insert(ctx, "provinces", province{ID: "p5", Name: "Phú Yên"}, nil)
	assert.True(t, store.IsConflict(err))
	assert.Contains(t, err.Error(), "Key (name) already exists")

	err = ms.Insert(ctx, "provinces", province{ID: "p1", Name: "Gia Lai"}, nil)
	assert.True(t, store.IsConflict(err))
	assert.Equal(t, 4, ms.Len("provinces"))

	// composite keys only clash when every column matches
	require.Nil(t, ms.Insert(ctx, "help_supports", map[string]interface{}{"id": "s1", "help_record_id": "hr-1", "team_id": "+84900000001"}, nil))
	require.Nil(t, ms.Insert(ctx, "help_supports", map[string]interface{}{"id": "s2", "help_record_id": "hr-1", "team_id": "+84900000002"}, nil))
	err = ms.Insert(ctx, "help_supports", map[string]interface{}{"id": "s3", "help_record_id": "hr-1", "team_id": "+84900000001"}, nil)
	assert.True(t, store.IsConflict(err))
}

func TestInsertReturnsRepresentation(t *testing.T) {
	ms := New(keys)

	var created province
	err := ms.Insert(context.Background(), "provinces", province{ID: "p1", Name: "Phú Yên", Code: code("PY")}, &created)
	require.Nil(t, err)
	assert.Equal(t, "PY", *created.Code)
	assert.Equal(t, "Phú Yên", created.Name)
}

func TestSelectOne(t *testing.T) {
	ms := seededStore(t)
	ctx := context.Background()

	var found province
	require.Nil(t, ms.SelectOne(ctx, "provinces", []store.Filter{store.Eq("name", "Khánh Hòa")}, &found))
	assert.Equal(t, "p3", found.ID)
	assert.Nil(t, found.Code)

	err := ms.SelectOne(ctx, "provinces", []store.Filter{store.Eq("name", "Gia Lai")}, &found)
	assert.True(t, store.IsNotFound(err))

	// more than one row is refused like PostgREST does
	err = ms.SelectOne(ctx, "provinces", []store.Filter{store.Eq("display_order", 3)}, &found)
	require.NotNil(t, err)
	assert.True(t, store.IsNotFound(err))
	assert.Contains(t, err.Error(), "multiple rows")

	require.Nil(t, ms.SelectOne(ctx, "provinces", []store.Filter{store.Eq("display_order", 3), store.Eq("is_active", false)}, &found))
	assert.Equal(t, "p3", found.ID)

	require.Nil(t, ms.SelectOne(ctx, "provinces", []store.Filter{store.Eq("code", nil), store.Eq("is_active", false)}, &found))
	assert.Equal(t, "p3", found.ID)
}

func TestSelectOrdersRangesAndCounts(t *testing.T) {
	ms := seededStore(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		query store.Query
		ids   []string
		total int64
	}{
		{
			name:  "newest first",
			query: store.Query{Orders: []store.Order{store.Desc("created_at")}},
			ids:   []string{"p4", "p3", "p2", "p1"},
		},
		{
			name:  "order then name",
			query: store.Query{Orders: []store.Order{store.Desc("display_order"), store.Asc("name")}},
			ids:   []string{"p3", "p4", "p2", "p1"},
		},
		{
			name:  "nulls last",
			query: store.Query{Orders: []store.Order{store.Asc("code")}},
			ids:   []string{"p2", "p1", "p3", "p4"},
		},
		{
			name: "filtered page with count",
			query: store.Query{
				Filters: []store.Filter{store.Eq("is_active", true)},
				Orders:  []store.Order{store.Asc("display_order")},
				Range:   &store.Range{From: 1, To: 1},
				Count:   true,
			},
			ids:   []string{"p2"},
			total: 3,
		},
		{
			name: "range past the end",
			query: store.Query{
				Range: &store.Range{From: 10, To: 19},
				Count: true,
			},
			ids:   []string{},
			total: 4,
		},
		{
			name: "range clipped",
			query: store.Query{
				Orders: []store.Order{store.Asc("display_order")},
				Range:  &store.Range{From: 2, To: 9},
			},
			ids: []string{"p3", "p4"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rows []province
			total, err := ms.Select(ctx, "provinces", tc.query, &rows)
			require.Nil(t, err)
			assert.Equal(t, tc.total, total)

			ids := []string{}
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tc.ids, ids)
		})
	}
}

func TestUpdate(t *testing.T) {
	ms := seededStore(t)
	ctx := context.Background()

	var updated province
	err := ms.Update(ctx, "provinces", []store.Filter{store.Eq("id", "p3")}, map[string]interface{}{"is_active": true, "code": "KH"}, &updated)
	require.Nil(t, err)
	assert.True(t, updated.IsActive)
	assert.Equal(t, "KH", *updated.Code)
	assert.Equal(t, "Khánh Hòa", updated.Name)

	err = ms.Update(ctx, "provinces", []store.Filter{store.Eq("id", "p3")}, map[string]interface{}{"name": "Phú Yên"}, nil)
	assert.True(t, store.IsConflict(err))

	// a row may keep its own unique values
	err = ms.Update(ctx, "provinces", []store.Filter{store.Eq("id", "p3")}, map[string]interface{}{"name": "Khánh Hòa"}, nil)
	assert.Nil(t, err)

	err = ms.Update(ctx, "provinces", []store.Filter{store.Eq("id", "p9")}, map[string]interface{}{"name": "Gia Lai"}, nil)
	assert.True(t, store.IsNotFound(err))
}

func TestDelete(t *testing.T) {
	ms := seededStore(t)
	ctx := context.Background()

	require.Nil(t, ms.Delete(ctx, "provinces", []store.Filter{store.Eq("display_order", 3)}))
	assert.Equal(t, 2, ms.Len("provinces"))

	// deleting nothing is not an error
	require.Nil(t, ms.Delete(ctx, "provinces", []store.Filter{store.Eq("id", "p9")}))
	assert.Equal(t, 2, ms.Len("provinces"))
}

func TestRowsAreCopied(t *testing.T) {
	ms := seededStore(t)
	ctx := context.Background()

	var rows []map[string]interface{}
	_, err := ms.Select(ctx, "provinces", store.Query{}, &rows)
	require.Nil(t, err)
	rows[0]["name"] = "changed"

	var found province
	require.Nil(t, ms.SelectOne(ctx, "provinces", []store.Filter{store.Eq("id", "p1")}, &found))
	assert.Equal(t, "Phú Yên", found.Name)
}

func TestConcurrentInsertsKeepOneRowPerKey(t *testing.T) {
	ms := New(keys)
	ctx := context.Background()

	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(i int) {
			errs <- ms.Insert(ctx, "help_supports", map[string]interface{}{
				"id":             fmt.Sprintf("s%v", i),
				"help_record_id": "hr-1",
				"team_id":        "+84900000001",
			}, nil)
		}(i)
	}

	conflicts := 0
	for i := 0; i < 10; i++ {
		if err := <-errs; err != nil {
			assert.True(t, store.IsConflict(err))
			conflicts++
		}
	}
	assert.Equal(t, 9, conflicts)
	assert.Equal(t, 1, ms.Len("help_supports"))
}
