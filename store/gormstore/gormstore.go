// Package gormstore is the self-hosted store.Store, backed by gorm over an
// encrypted sqlite database.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Daskott/relief/models"
	"github.com/Daskott/relief/server/logger"
	"github.com/Daskott/relief/store"
	"github.com/Daskott/relief/utils"
	sqliteEncrypt "github.com/Daskott/gorm-sqlite-cipher"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

const DB_NAME = "relief.db"

var logg = logger.NewLogger()

type GormStore struct {
	db     *gorm.DB
	dbPath string
}

// Open opens (creating when missing) the encrypted sqlite db under
// '<dbRootDir>/db', migrates the schema and returns the store.
func Open(passPhrase string, dbRootDir string) (*GormStore, error) {
	dbDir, err := DbDirectory(dbRootDir)
	if err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dbDir, DB_NAME)

	db, err := gorm.Open(sqliteEncrypt.Open(dbDSN(passPhrase, dbPath)), &gorm.Config{
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				LogLevel:                  gormLogger.Silent,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(models.Tables()...)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %v", err)
	}

	logg.Debugf("sqlite store ready at %v", dbPath)
	return &GormStore{db: db, dbPath: dbPath}, nil
}

// Path returns the location of the sqlite file, e.g. for backups.
func (gs *GormStore) Path() string {
	return gs.dbPath
}

func (gs *GormStore) Close() error {
	sqlDB, err := gs.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (gs *GormStore) Insert(ctx context.Context, table string, row interface{}, out interface{}) error {
	err := gs.db.WithContext(ctx).Table(table).Create(row).Error
	if err != nil {
		return translateError(table, err)
	}

	if out == nil {
		return nil
	}
	return copyInto(row, out)
}

func (gs *GormStore) Update(ctx context.Context, table string, filters []store.Filter, patch map[string]interface{}, out interface{}) error {
	var count int64
	err := gs.db.WithContext(ctx).Table(table).Scopes(where(filters)).Count(&count).Error
	if err != nil {
		return translateError(table, err)
	}

	if count == 0 {
		return store.NotFoundError(table)
	}

	if count > 1 {
		return &store.Error{
			Code:    store.CodeNoRows,
			Message: fmt.Sprintf("multiple rows in '%v' match a single row request", table),
			Status:  406,
		}
	}

	result := gs.db.WithContext(ctx).Table(table).Scopes(where(filters)).Updates(patch)
	if result.Error != nil {
		return translateError(table, result.Error)
	}

	// another writer changed the row between the count and the update
	if result.RowsAffected == 0 {
		return store.NotFoundError(table)
	}

	if out == nil {
		return nil
	}

	// the patch may have changed a filtered column
	lookup := filters
	if changed := changedFilters(filters, patch); changed != nil {
		lookup = changed
	}
	return gs.SelectOne(ctx, table, lookup, out)
}

func (gs *GormStore) Delete(ctx context.Context, table string, filters []store.Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("refusing to delete every row in '%v'", table)
	}

	err := gs.db.WithContext(ctx).Table(table).Scopes(where(filters)).Delete(map[string]interface{}{}).Error
	return translateError(table, err)
}

func (gs *GormStore) Select(ctx context.Context, table string, query store.Query, out interface{}) (int64, error) {
	var total int64

	if query.Count {
		err := gs.db.WithContext(ctx).Table(table).Scopes(where(query.Filters)).Count(&total).Error
		if err != nil {
			return 0, translateError(table, err)
		}
	}

	err := gs.db.WithContext(ctx).Table(table).
		Scopes(where(query.Filters), orderBy(query.Orders), paginate(query.Range)).
		Find(out).Error
	if err != nil {
		return 0, translateError(table, err)
	}

	return total, nil
}

func (gs *GormStore) SelectOne(ctx context.Context, table string, filters []store.Filter, out interface{}) error {
	err := gs.db.WithContext(ctx).Table(table).Scopes(where(filters)).Take(out).Error
	return translateError(table, err)
}

// ---------------------------------------------------------------------------------//
// Scopes
// --------------------------------------------------------------------------------//

func where(filters []store.Filter) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, filter := range filters {
			if filter.Value == nil {
				db = db.Where(clause.Eq{Column: clause.Column{Name: filter.Column}, Value: nil})
				continue
			}
			db = db.Where(map[string]interface{}{filter.Column: filter.Value})
		}
		return db
	}
}

func orderBy(orders []store.Order) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, order := range orders {
			db = db.Order(clause.OrderByColumn{
				Column: clause.Column{Name: order.Column},
				Desc:   !order.Ascending,
			})
		}
		return db
	}
}

func paginate(r *store.Range) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if r == nil {
			return db
		}
		return db.Offset(r.From).Limit(r.Limit())
	}
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func dbDSN(passPhrase string, dbFilePath string) string {
	return fmt.Sprintf(
		"file:%v?_pragma_key=%s&_pragma_cipher_page_size=4096&_journal_mode=WAL",
		dbFilePath,
		passPhrase,
	)
}

func DbDirectory(dbRootDir string) (string, error) {
	dbDir := filepath.Join(dbRootDir, "db")

	err := utils.CreateDirIfNotExist(dbDir)
	if err != nil {
		return "", err
	}

	return dbDir, nil
}

func translateError(table string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.NotFoundError(table)
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return store.ConflictError(table, err.Error())
	}
	return err
}

func changedFilters(filters []store.Filter, patch map[string]interface{}) []store.Filter {
	changed := false
	lookup := make([]store.Filter, 0, len(filters))

	for _, filter := range filters {
		if value, ok := patch[filter.Column]; ok {
			changed = true
			lookup = append(lookup, store.Eq(filter.Column, value))
			continue
		}
		lookup = append(lookup, filter)
	}

	if !changed {
		return nil
	}
	return lookup
}

// copyInto decodes the written row into out through its column (json) shape.
func copyInto(row interface{}, out interface{}) error {
	b, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// Checkpoint flushes the write ahead log into the db file, so the file alone
// is a complete copy of the store.
func (gs *GormStore) Checkpoint(ctx context.Context) error {
	return gs.db.WithContext(ctx).Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error
}
