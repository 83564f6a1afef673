package gormstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Daskott/relief/models"
	"github.com/Daskott/relief/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *GormStore {
	gs, err := Open("test-passphrase", t.TempDir())
	require.Nil(t, err)
	t.Cleanup(func() { gs.Close() })
	return gs
}

func provinceRow(id, name string, order int, createdAt time.Time) *models.ProvinceRow {
	return &models.ProvinceRow{
		ID:           id,
		Name:         name,
		DisplayOrder: order,
		IsActive:     true,
		Timestamps:   models.Timestamps{CreatedAt: createdAt, UpdatedAt: createdAt},
	}
}

func TestOpenCreatesDbUnderRootDir(t *testing.T) {
	root := t.TempDir()
	gs, err := Open("test-passphrase", root)
	require.Nil(t, err)
	defer gs.Close()

	assert.Equal(t, filepath.Join(root, "db", DB_NAME), gs.Path())
	_, err = os.Stat(gs.Path())
	assert.Nil(t, err)
	assert.Nil(t, gs.Checkpoint(context.Background()))
}

func TestInsertAndSelectOne(t *testing.T) {
	gs := openTestStore(t)
	ctx := context.Background()

	var created models.ProvinceRow
	err := gs.Insert(ctx, models.TableProvinces, provinceRow("p1", "Phú Yên", 1, time.Now()), &created)
	require.Nil(t, err)
	assert.Equal(t, "p1", created.ID)

	err = gs.Insert(ctx, models.TableProvinces, provinceRow("p2", "Phú Yên", 2, time.Now()), nil)
	assert.True(t, store.IsConflict(err))

	var found models.ProvinceRow
	require.Nil(t, gs.SelectOne(ctx, models.TableProvinces, []store.Filter{store.Eq("name", "Phú Yên")}, &found))
	assert.Equal(t, "p1", found.ID)
	assert.Nil(t, found.Code)

	err = gs.SelectOne(ctx, models.TableProvinces, []store.Filter{store.Eq("name", "Gia Lai")}, &found)
	assert.True(t, store.IsNotFound(err))
}

func TestSelectPagesAndCounts(t *testing.T) {
	gs := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 11, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		row := &models.HelpSupportRow{
			ID:           fmt.Sprintf("s%02d", i),
			HelpRecordID: fmt.Sprintf("hr-%02d", i),
			TeamID:       "+84900000001",
			Status:       models.PENDING_SUPPORT,
			Timestamps:   models.Timestamps{CreatedAt: base.Add(time.Duration(i) * time.Minute)},
		}
		require.Nil(t, gs.Insert(ctx, models.TableHelpSupports, row, nil))
	}

	var rows []models.HelpSupportRow
	total, err := gs.Select(ctx, models.TableHelpSupports, store.Query{
		Filters: []store.Filter{store.Eq("team_id", "+84900000001")},
		Orders:  []store.Order{store.Desc("created_at")},
		Range:   &store.Range{From: 20, To: 29},
		Count:   true,
	}, &rows)
	require.Nil(t, err)
	assert.Equal(t, int64(25), total)
	require.Len(t, rows, 5)
	assert.Equal(t, "s04", rows[0].ID)
	assert.Equal(t, "s00", rows[4].ID)

	rows = nil
	total, err = gs.Select(ctx, models.TableHelpSupports, store.Query{
		Filters: []store.Filter{store.Eq("team_id", "+84900000002")},
		Count:   true,
	}, &rows)
	require.Nil(t, err)
	assert.Equal(t, int64(0), total)
	assert.Len(t, rows, 0)
}

func TestUpdate(t *testing.T) {
	gs := openTestStore(t)
	ctx := context.Background()

	require.Nil(t, gs.Insert(ctx, models.TableProvinces, provinceRow("p1", "Phú Yên", 1, time.Now()), nil))
	require.Nil(t, gs.Insert(ctx, models.TableProvinces, provinceRow("p2", "Bình Định", 2, time.Now()), nil))

	var updated models.ProvinceRow
	err := gs.Update(ctx, models.TableProvinces, []store.Filter{store.Eq("id", "p2")}, map[string]interface{}{"display_order": 5, "code": "BD"}, &updated)
	require.Nil(t, err)
	assert.Equal(t, 5, updated.DisplayOrder)
	assert.Equal(t, "BD", models.StringValue(updated.Code))

	// the row is found again after its filtered column changes
	err = gs.Update(ctx, models.TableProvinces, []store.Filter{store.Eq("name", "Bình Định")}, map[string]interface{}{"name": "Quảng Nam"}, &updated)
	require.Nil(t, err)
	assert.Equal(t, "p2", updated.ID)
	assert.Equal(t, "Quảng Nam", updated.Name)

	err = gs.Update(ctx, models.TableProvinces, []store.Filter{store.Eq("id", "p2")}, map[string]interface{}{"name": "Phú Yên"}, nil)
	assert.True(t, store.IsConflict(err))

	// an update guarded on a value only applies while the value still holds
	guarded := []store.Filter{store.Eq("id", "p1"), store.Eq("display_order", 1)}
	require.Nil(t, gs.Update(ctx, models.TableProvinces, guarded, map[string]interface{}{"display_order": 2}, nil))
	err = gs.Update(ctx, models.TableProvinces, guarded, map[string]interface{}{"display_order": 3}, nil)
	assert.True(t, store.IsNotFound(err))

	err = gs.Update(ctx, models.TableProvinces, []store.Filter{store.Eq("id", "p9")}, map[string]interface{}{"name": "Gia Lai"}, nil)
	assert.True(t, store.IsNotFound(err))

	err = gs.Update(ctx, models.TableProvinces, []store.Filter{store.Eq("is_active", true)}, map[string]interface{}{"is_active": false}, nil)
	assert.True(t, store.IsNotFound(err))
	assert.Contains(t, err.Error(), "multiple rows")
}

func TestDelete(t *testing.T) {
	gs := openTestStore(t)
	ctx := context.Background()

	require.Nil(t, gs.Insert(ctx, models.TableProvinces, provinceRow("p1", "Phú Yên", 1, time.Now()), nil))
	require.Nil(t, gs.Insert(ctx, models.TableProvinces, provinceRow("p2", "Bình Định", 2, time.Now()), nil))

	assert.NotNil(t, gs.Delete(ctx, models.TableProvinces, nil))
	require.Nil(t, gs.Delete(ctx, models.TableProvinces, []store.Filter{store.Eq("id", "p1")}))

	var rows []models.ProvinceRow
	total, err := gs.Select(ctx, models.TableProvinces, store.Query{Count: true}, &rows)
	require.Nil(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "p2", rows[0].ID)
}
