package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kjstillabower/weather-record-service/internal/models"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("weather record not found")

// Store persists weather records through gorm.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New wraps an open gorm handle.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates or migrates the weather_records table.
func EnsureSchema(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&models.WeatherRecord{}); err != nil {
		return fmt.Errorf("migrate weather_records: %w", err)
	}
	return nil
}

// ListOptions selects a page of records. Location, when set, is a
// case-insensitive substring filter.
type ListOptions struct {
	Skip     int
	Limit    int
	Location string
}

// Create inserts rec, assigning its id and created_at. updated_at stays null.
func (s *Store) Create(ctx context.Context, rec *models.WeatherRecord) error {
	rec.ID = 0
	rec.CreatedAt = s.timestamp()
	rec.UpdatedAt = nil
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert weather record: %w", err)
	}
	return nil
}

// Get returns the record with the given id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id uint) (models.WeatherRecord, error) {
	var rec models.WeatherRecord
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.WeatherRecord{}, ErrNotFound
	}
	if err != nil {
		return models.WeatherRecord{}, fmt.Errorf("get weather record %d: %w", id, err)
	}
	return rec, nil
}

// List returns records newest first, filtered and paginated per opts.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.WeatherRecord, error) {
	q := s.db.WithContext(ctx).Model(&models.WeatherRecord{})
	if opts.Location != "" {
		q = q.Where(`LOWER(location) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(opts.Location))+"%")
	}
	q = q.Order("created_at DESC").Order("id DESC").Offset(opts.Skip)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	records := make([]models.WeatherRecord, 0)
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list weather records: %w", err)
	}
	return records, nil
}

// All returns every record in id order, for export.
func (s *Store) All(ctx context.Context) ([]models.WeatherRecord, error) {
	records := make([]models.WeatherRecord, 0)
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("export weather records: %w", err)
	}
	return records, nil
}

// Update applies the supplied fields of u to record id, sets updated_at, and
// returns the stored result. Fields not supplied are left unchanged. The write
// is a single UPDATE statement, so concurrent updates never hold a read lock
// while waiting for the write lock.
func (s *Store) Update(ctx context.Context, id uint, u models.RecordUpdate) (models.WeatherRecord, error) {
	changes := u.Changes()
	changes["updated_at"] = s.timestamp()

	res := s.db.WithContext(ctx).Model(&models.WeatherRecord{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return models.WeatherRecord{}, fmt.Errorf("update weather record %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.WeatherRecord{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes record id or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.WeatherRecord{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete weather record %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// timestamp is the store clock in UTC, truncated to the microsecond
// precision every supported database keeps.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
