package kvstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry is one persisted key within a profile
type Entry struct {
	Profile   string `gorm:"primaryKey;size:128"`
	Key       string `gorm:"column:entry_key;primaryKey;size:255"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "kv_entries"
}

// GormStore implements Store on a SQL database through gorm. Several profiles can
// share one table; every query is scoped to the store's profile.
type GormStore struct {
	db      *gorm.DB
	profile string
}

// OpenGorm opens a gorm connection for the sqlite or postgres driver
func OpenGorm(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "adwise.db"
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// NewGormStore migrates the entries table and returns a store for profile
func NewGormStore(db *gorm.DB, profile string) (*GormStore, error) {
	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv_entries: %w", err)
	}
	return &GormStore{db: db, profile: profile}, nil
}

func (s *GormStore) Get(key string) (mo.Option[string], error) {
	var entry Entry
	result := s.db.Where("profile = ? AND entry_key = ?", s.profile, key).First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return mo.None[string](), nil
		}
		return mo.None[string](), fmt.Errorf("failed to get %s: %w", key, result.Error)
	}
	return mo.Some(entry.Value), nil
}

func (s *GormStore) Set(key, value string) error {
	entry := Entry{
		Profile:   s.profile,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "profile"}, {Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry)
	if result.Error != nil {
		return fmt.Errorf("failed to set %s: %w", key, result.Error)
	}
	return nil
}

func (s *GormStore) Remove(key string) error {
	result := s.db.Where("profile = ? AND entry_key = ?", s.profile, key).Delete(&Entry{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove %s: %w", key, result.Error)
	}
	return nil
}

// Close releases the underlying connection pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	return sqlDB.Close()
}
