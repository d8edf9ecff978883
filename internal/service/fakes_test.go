package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kjstillabower/weather-record-service/internal/models"
	"github.com/kjstillabower/weather-record-service/internal/store"
)

func ptr[T any](v T) *T { return &v }

// memStore is an in-memory RecordStore. failDates makes Create fail for
// records whose DateFrom matches.
type memStore struct {
	mu        sync.Mutex
	nextID    uint
	records   []models.WeatherRecord
	failDates map[string]bool
	listOpts  store.ListOptions
	calls     int
}

func (m *memStore) Create(ctx context.Context, rec *models.WeatherRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failDates[rec.DateFrom.String()] {
		return errors.New("disk full")
	}
	m.nextID++
	rec.ID = m.nextID
	m.records = append(m.records, *rec)
	return nil
}

func (m *memStore) Get(ctx context.Context, id uint) (models.WeatherRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return models.WeatherRecord{}, store.ErrNotFound
}

func (m *memStore) List(ctx context.Context, opts store.ListOptions) ([]models.WeatherRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.listOpts = opts
	out := make([]models.WeatherRecord, 0)
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if opts.Location != "" && !strings.Contains(strings.ToLower(r.Location), strings.ToLower(opts.Location)) {
			continue
		}
		out = append(out, r)
	}
	if opts.Skip >= len(out) {
		return []models.WeatherRecord{}, nil
	}
	out = out[opts.Skip:]
	if opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memStore) Update(ctx context.Context, id uint, u models.RecordUpdate) (models.WeatherRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for i, r := range m.records {
		if r.ID != id {
			continue
		}
		if u.Temperature != nil {
			r.Temperature = *u.Temperature
		}
		if u.Location != nil {
			r.Location = *u.Location
		}
		m.records[i] = r
		return r, nil
	}
	return models.WeatherRecord{}, store.ErrNotFound
}

func (m *memStore) Delete(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) All(ctx context.Context) ([]models.WeatherRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return append([]models.WeatherRecord(nil), m.records...), nil
}

// fakeForecastClient returns a canned forecast and records each call.
type fakeForecastClient struct {
	forecast models.Forecast
	err      error
	calls    int
	location string
	days     int
	ctxErr   error
}

func (f *fakeForecastClient) GetForecast(ctx context.Context, location string, days int) (models.Forecast, error) {
	f.calls++
	f.location = location
	f.days = days
	f.ctxErr = ctx.Err()
	return f.forecast, f.err
}
