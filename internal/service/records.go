package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-record-service/internal/models"
	"github.com/kjstillabower/weather-record-service/internal/observability"
	"github.com/kjstillabower/weather-record-service/internal/store"
	"github.com/kjstillabower/weather-record-service/internal/validation"
)

// RecordStore is the persistence used by the record and range-fetch services.
// *store.Store implements it.
type RecordStore interface {
	Create(ctx context.Context, rec *models.WeatherRecord) error
	Get(ctx context.Context, id uint) (models.WeatherRecord, error)
	List(ctx context.Context, opts store.ListOptions) ([]models.WeatherRecord, error)
	Update(ctx context.Context, id uint, u models.RecordUpdate) (models.WeatherRecord, error)
	Delete(ctx context.Context, id uint) error
	All(ctx context.Context) ([]models.WeatherRecord, error)
}

// RecordService validates requests and applies them to the store. Validation
// failures are returned as *validation.Error before the store is touched.
type RecordService struct {
	store  RecordStore
	logger *zap.Logger
}

// NewRecordService creates a RecordService over st.
func NewRecordService(st RecordStore, logger *zap.Logger) *RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{store: st, logger: logger}
}

// ListParams selects a page of records.
type ListParams struct {
	Skip     int
	Limit    int
	Location string
}

// Create validates in and stores a new record.
func (s *RecordService) Create(ctx context.Context, in models.RecordCreate) (models.WeatherRecord, error) {
	if err := validation.ValidateCreate(&in); err != nil {
		return models.WeatherRecord{}, err
	}
	rec := in.Record()
	if err := s.store.Create(ctx, &rec); err != nil {
		return models.WeatherRecord{}, err
	}
	observability.RecordsPersistedTotal.WithLabelValues("api").Inc()
	observability.LoggerFromContext(ctx, s.logger).Info("weather record created",
		zap.Uint("id", rec.ID),
		zap.String("location", rec.Location),
	)
	return rec, nil
}

// List returns records newest first. A blank location means no filter.
func (s *RecordService) List(ctx context.Context, p ListParams) ([]models.WeatherRecord, error) {
	if err := validation.ValidatePage(p.Skip, p.Limit); err != nil {
		return nil, err
	}
	return s.store.List(ctx, store.ListOptions{
		Skip:     p.Skip,
		Limit:    p.Limit,
		Location: strings.TrimSpace(p.Location),
	})
}

// Get returns record id or store.ErrNotFound.
func (s *RecordService) Get(ctx context.Context, id uint) (models.WeatherRecord, error) {
	return s.store.Get(ctx, id)
}

// Update validates the supplied fields and applies them to record id.
func (s *RecordService) Update(ctx context.Context, id uint, in models.RecordUpdate) (models.WeatherRecord, error) {
	if err := validation.ValidateUpdate(&in); err != nil {
		return models.WeatherRecord{}, err
	}
	rec, err := s.store.Update(ctx, id, in)
	if err != nil {
		return models.WeatherRecord{}, err
	}
	observability.LoggerFromContext(ctx, s.logger).Info("weather record updated", zap.Uint("id", id))
	return rec, nil
}

// Delete removes record id.
func (s *RecordService) Delete(ctx context.Context, id uint) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	observability.LoggerFromContext(ctx, s.logger).Info("weather record deleted", zap.Uint("id", id))
	return nil
}

// Export returns every record in id order.
func (s *RecordService) Export(ctx context.Context) ([]models.WeatherRecord, error) {
	return s.store.All(ctx)
}
