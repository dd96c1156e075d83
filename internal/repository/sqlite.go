package repository

import (
	"context"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"linkedin-scout/internal/core"
)

// SQLiteRepository implements RepositoryPort using SQLite via GORM
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository opens (or creates) the database and migrates the
// schema.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), config)
	if err != nil {
		return nil, err
	}

	repo := &SQLiteRepository{db: db}

	if err := repo.Migrate(context.Background()); err != nil {
		return nil, err
	}

	return repo, nil
}

// Migrate runs database migrations
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&core.ScrapeRecord{},
		&core.ActionLog{},
	)
}

// SaveScrape upserts a scrape record by target URL. Re-scrapes of the same
// profile replace the stored fields and bump the scrape counter.
func (r *SQLiteRepository) SaveScrape(ctx context.Context, record *core.ScrapeRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing core.ScrapeRecord
		err := tx.Where("target_url = ?", record.TargetURL).First(&existing).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				record.ScrapeCount = 1
				if record.CreatedAt.IsZero() {
					record.CreatedAt = time.Now()
				}
				record.UpdatedAt = time.Now()
				return tx.Create(record).Error
			}
			return err
		}

		record.ID = existing.ID
		record.ScrapeCount = existing.ScrapeCount + 1
		record.CreatedAt = existing.CreatedAt
		record.UpdatedAt = time.Now()
		return tx.Save(record).Error
	})
}

// GetScrapeByURL retrieves a scrape record by target URL; a missing record
// is not an error.
func (r *SQLiteRepository) GetScrapeByURL(ctx context.Context, url string) (*core.ScrapeRecord, error) {
	var record core.ScrapeRecord
	result := r.db.WithContext(ctx).Where("target_url = ?", url).First(&record)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}

	return &record, nil
}

// ListRecentScrapes returns the most recently scraped records.
func (r *SQLiteRepository) ListRecentScrapes(ctx context.Context, limit int) ([]*core.ScrapeRecord, error) {
	var records []*core.ScrapeRecord
	result := r.db.WithContext(ctx).
		Order("last_scraped_at DESC").
		Limit(limit).
		Find(&records)

	if result.Error != nil {
		return nil, result.Error
	}

	return records, nil
}

// LogAction appends an entry to the action ledger.
func (r *SQLiteRepository) LogAction(ctx context.Context, entry *core.ActionLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	result := r.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		return result.Error
	}

	return nil
}

// GetTodayActionCount counts actions of a specific type performed today
func (r *SQLiteRepository) GetTodayActionCount(ctx context.Context, actionType string) (int64, error) {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var count int64
	result := r.db.WithContext(ctx).
		Model(&core.ActionLog{}).
		Where("action_type = ? AND timestamp >= ?", actionType, startOfDay).
		Count(&count)

	if result.Error != nil {
		return 0, result.Error
	}

	return count, nil
}

// GetActionsByDateRange retrieves ledger entries within a date range
func (r *SQLiteRepository) GetActionsByDateRange(ctx context.Context, start, end time.Time) ([]*core.ActionLog, error) {
	var entries []*core.ActionLog
	result := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", start, end).
		Order("timestamp DESC").
		Find(&entries)

	if result.Error != nil {
		return nil, result.Error
	}

	return entries, nil
}

// CanPerformAction checks if an action can be performed based on daily limits
func (r *SQLiteRepository) CanPerformAction(ctx context.Context, actionType string, dailyLimit int) (bool, error) {
	count, err := r.GetTodayActionCount(ctx, actionType)
	if err != nil {
		return false, err
	}

	return count < int64(dailyLimit), nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
