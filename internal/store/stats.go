package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"twmarket/internal/derive"
	apperrors "twmarket/internal/errors"
	"twmarket/pkg/contracts/domain"
)

// DefaultWindowDays is the trailing window served when none is requested
const DefaultWindowDays = 30

// StatsStore persists MarketStats rows keyed by date
type StatsStore struct {
	db   *gorm.DB
	cols *mergeColumns
}

// NewStatsStore builds a store on db
func NewStatsStore(db *gorm.DB) (*StatsStore, error) {
	cols, err := newMergeColumns(db, &domain.MarketStats{})
	if err != nil {
		return nil, err
	}
	return &StatsStore{db: db, cols: cols}, nil
}

// Upsert merges the set fields of stats into the row for stats.Date
func (s *StatsStore) Upsert(ctx context.Context, stats domain.MarketStats) error {
	if stats.Date == "" {
		return apperrors.NewAppValidationError("market stats date is required")
	}
	cols := s.cols.present(ctx, &stats)
	err := s.db.WithContext(ctx).
		Clauses(onConflict([]string{"date"}, cols)).
		Create(&stats).Error
	if err != nil {
		return apperrors.NewStorageError("upsert market stats", err).WithContext("date", stats.Date)
	}
	return nil
}

// Get returns the row for date
func (s *StatsStore) Get(ctx context.Context, date string) (*domain.MarketStats, error) {
	var row domain.MarketStats
	err := s.db.WithContext(ctx).Where("date = ?", date).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("market stats " + date)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get market stats", err)
	}
	return &row, nil
}

// Recent returns up to n rows dated on or before date, newest first
func (s *StatsStore) Recent(ctx context.Context, date string, n int) ([]domain.MarketStats, error) {
	var rows []domain.MarketStats
	err := s.db.WithContext(ctx).
		Where("date <= ?", date).
		Order("date DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.NewStorageError("query market stats", err)
	}
	return rows, nil
}

// Window returns days derived rows ending at date, newest first. One extra
// row is read as the baseline of the oldest delta.
func (s *StatsStore) Window(ctx context.Context, date string, days int) ([]domain.MarketStatsRow, error) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	rows, err := s.Recent(ctx, date, days+1)
	if err != nil {
		return nil, err
	}
	return derive.MarketStatsWindow(rows), nil
}
