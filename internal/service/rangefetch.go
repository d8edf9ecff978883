package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-record-service/internal/client"
	"github.com/kjstillabower/weather-record-service/internal/models"
	"github.com/kjstillabower/weather-record-service/internal/observability"
	"github.com/kjstillabower/weather-record-service/internal/validation"
)

var (
	// ErrNotConfigured is returned when no forecast client is available (missing API key).
	ErrNotConfigured = errors.New("weather API key not configured")
	// ErrUpstream wraps any forecast API failure.
	ErrUpstream = errors.New("weather API request failed")
)

// MaxLocationLength bounds the range-fetch location query.
const MaxLocationLength = 100

// forecastDays is how many days (starting today) are requested upstream.
const forecastDays = 3

// RecordCreator persists new records.
type RecordCreator interface {
	Create(ctx context.Context, rec *models.WeatherRecord) error
}

// FetchService pulls forecast days from the upstream API and stores one
// record per requested day.
type FetchService struct {
	client client.ForecastClient
	store  RecordCreator
	logger *zap.Logger
	now    func() time.Time
}

// NewFetchService creates a FetchService. A nil fc makes every FetchRange
// fail with ErrNotConfigured once the request itself is valid.
func NewFetchService(fc client.ForecastClient, st RecordCreator, logger *zap.Logger, now func() time.Time) *FetchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &FetchService{client: fc, store: st, logger: logger, now: now}
}

// FetchRange validates the request, fetches the forecast once, and persists a
// record for each day in [startDate, endDate] that the forecast contains.
// Days missing from the forecast and days that fail to persist are skipped;
// the result lists only the stored days, in date order.
func (s *FetchService) FetchRange(ctx context.Context, location, startDate, endDate string) (models.RangeFetchResult, error) {
	loc, err := validation.ValidateLocation(location, MaxLocationLength)
	if err != nil {
		return models.RangeFetchResult{}, &validation.RangeError{Code: validation.CodeInvalidLocation, Message: err.Error()}
	}
	from, to, err := validation.ParseFetchRange(startDate, endDate, models.NewDate(s.now().UTC()))
	if err != nil {
		return models.RangeFetchResult{}, err
	}
	if s.client == nil {
		return models.RangeFetchResult{}, ErrNotConfigured
	}

	logger := observability.LoggerFromContext(ctx, s.logger).With(zap.String("location", loc))
	// Inbound cancellation reaches neither the upstream call nor the writes.
	ctx = context.WithoutCancel(ctx)

	forecast, err := s.client.GetForecast(ctx, loc, forecastDays)
	if err != nil {
		logger.Error("forecast fetch failed", zap.Error(err))
		return models.RangeFetchResult{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	byDate := make(map[string]models.ForecastDay, len(forecast.Days))
	for _, day := range forecast.Days {
		byDate[day.Date] = day
	}

	result := models.RangeFetchResult{
		Location:  loc,
		StartDate: from.String(),
		EndDate:   to.String(),
		Data:      make([]models.DaySummary, 0, from.DaysUntil(to)+1),
	}
	for d := from; !d.After(to.Time); d = d.AddDays(1) {
		day, ok := byDate[d.String()]
		if !ok {
			observability.RangeFetchSkippedDaysTotal.WithLabelValues("missing").Inc()
			logger.Debug("forecast day not in response", zap.String("date", d.String()))
			continue
		}

		rec := forecastRecord(loc, d, forecast.Location, day)
		if err := s.store.Create(ctx, &rec); err != nil {
			observability.RangeFetchSkippedDaysTotal.WithLabelValues("persist_failed").Inc()
			logger.Warn("persist forecast day failed", zap.String("date", d.String()), zap.Error(err))
			continue
		}
		observability.RecordsPersistedTotal.WithLabelValues("range_fetch").Inc()

		result.Data = append(result.Data, models.DaySummary{
			Date:        d.String(),
			Temperature: rec.Temperature,
			TempMin:     rec.TempMin,
			TempMax:     rec.TempMax,
			Condition:   rec.WeatherCondition,
			Humidity:    rec.Humidity,
			WindSpeed:   rec.WindSpeed,
		})
	}

	logger.Info("range fetch completed",
		zap.String("start_date", result.StartDate),
		zap.String("end_date", result.EndDate),
		zap.Int("stored", len(result.Data)),
	)
	return result, nil
}

// forecastRecord maps one forecast day to a record spanning that single day.
func forecastRecord(location string, d models.Date, fl models.ForecastLocation, day models.ForecastDay) models.WeatherRecord {
	cond := day.Condition
	if cond == "" {
		cond = "Unknown"
	}
	desc := cond
	rec := models.WeatherRecord{
		Location:           location,
		Latitude:           fl.Latitude,
		Longitude:          fl.Longitude,
		DateFrom:           d,
		DateTo:             d,
		Temperature:        day.AvgTempC,
		TempMin:            day.MinTempC,
		TempMax:            day.MaxTempC,
		WeatherCondition:   cond,
		WeatherDescription: &desc,
		Humidity:           day.AvgHumidity,
		WindSpeed:          kphToMetersPerSecond(day.MaxWindKph),
	}
	if fl.Country != "" {
		country := fl.Country
		rec.Country = &country
	}
	if day.AvgVisKm != nil {
		meters := *day.AvgVisKm * 1000
		rec.Visibility = &meters
	}
	return rec
}

// kphToMetersPerSecond converts km/h to m/s rounded to two decimals; nil stays nil.
func kphToMetersPerSecond(kph *float64) *float64 {
	if kph == nil {
		return nil
	}
	ms := math.Round(*kph/3.6*100) / 100
	return &ms
}
