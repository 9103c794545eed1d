// Package store persists daily market statistics and tickers with gorm.
// Writes are field-level merges: a row is created on first write and
// later writes only touch the columns they carry.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"twmarket/internal/config"
	apperrors "twmarket/internal/errors"
	"twmarket/pkg/contracts/domain"
)

// Open connects to the configured database and migrates the tables
func Open(cfg config.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported database driver %q", cfg.Driver), nil)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(slogWriter{logger}, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, apperrors.NewStorageError("open database", err).WithContext("driver", cfg.Driver)
	}
	if _, ok := dialector.(*sqlite.Dialector); ok {
		// sqlite allows one writer; in-memory databases are per connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, apperrors.NewStorageError("open database", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the tables
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.MarketStats{}, &domain.Ticker{}); err != nil {
		return apperrors.NewStorageError("migrate", err)
	}
	return nil
}

type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn(fmt.Sprintf(format, args...), slog.String("component", "gorm"))
}

// mergeColumns lists the non-key columns value carries
type mergeColumns struct {
	fields []*schema.Field
}

func newMergeColumns(db *gorm.DB, model interface{}) (*mergeColumns, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, apperrors.NewStorageError("parse model schema", err)
	}
	m := &mergeColumns{}
	for _, f := range stmt.Schema.Fields {
		if f.PrimaryKey || f.DBName == "" {
			continue
		}
		m.fields = append(m.fields, f)
	}
	return m, nil
}

// present returns the columns whose values are set, in schema order
func (m *mergeColumns) present(ctx context.Context, value interface{}) []string {
	rv := reflectValue(value)
	var cols []string
	for _, f := range m.fields {
		if _, zero := f.ValueOf(ctx, rv); !zero {
			cols = append(cols, f.DBName)
		}
	}
	return cols
}

// onConflict builds the merge clause: present columns overwrite, the rest
// keep their stored values.
func onConflict(keys []string, cols []string) clause.OnConflict {
	c := clause.OnConflict{}
	for _, k := range keys {
		c.Columns = append(c.Columns, clause.Column{Name: k})
	}
	if len(cols) == 0 {
		c.DoNothing = true
		return c
	}
	c.DoUpdates = clause.AssignmentColumns(cols)
	return c
}

func signature(cols []string) string {
	sorted := append([]string(nil), cols...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func reflectValue(v interface{}) reflect.Value {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	return rv
}
