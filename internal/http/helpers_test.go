package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-record-service/internal/client"
	"github.com/kjstillabower/weather-record-service/internal/models"
	"github.com/kjstillabower/weather-record-service/internal/service"
	"github.com/kjstillabower/weather-record-service/internal/store"
)

type mockForecastClient struct {
	forecast models.Forecast
	err      error
	// started and release, when set, hold the call until release is closed.
	started chan struct{}
	release chan struct{}
}

func (m *mockForecastClient) GetForecast(ctx context.Context, location string, days int) (models.Forecast, error) {
	if m.release != nil {
		close(m.started)
		<-m.release
	}
	return m.forecast, m.err
}

type testServer struct {
	router http.Handler
	store  *store.Store
}

type serverOption func(*serverSetup)

type serverSetup struct {
	forecast client.ForecastClient
	limiter  *rate.Limiter
	logger   *zap.Logger
	inFlight *InFlightTracker
}

func withForecast(fc client.ForecastClient) serverOption {
	return func(s *serverSetup) { s.forecast = fc }
}

func withLimiter(l *rate.Limiter) serverOption {
	return func(s *serverSetup) { s.limiter = l }
}

func withInFlight(tr *InFlightTracker) serverOption {
	return func(s *serverSetup) { s.inFlight = tr }
}

func withLogger(l *zap.Logger) serverOption {
	return func(s *serverSetup) { s.logger = l }
}

// testNow falls on 2026-10-19.
func testNow() time.Time {
	return time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
}

// newTestServer builds the full router over a temporary SQLite database.
func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	setup := serverSetup{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&setup)
	}

	url := "sqlite:///" + filepath.Join(t.TempDir(), "weather.db")
	db, err := store.Open(url, store.PoolConfig{MaxOpenConns: 1}, setup.logger, false)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	if err := store.EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	clock := testNow()
	st := store.New(db, store.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	t.Cleanup(func() { _ = st.Close() })

	records := service.NewRecordService(st, setup.logger)
	fetcher := service.NewFetchService(setup.forecast, st, setup.logger, testNow)
	handler := NewHandler(records, fetcher, st, setup.logger)
	router := NewRouter(handler, setup.logger, RouterConfig{
		CORSOrigins:    []string{"http://localhost:5173"},
		RequestTimeout: 5 * time.Second,
		Limiter:        setup.limiter,
		InFlight:       setup.inFlight,
	})
	return &testServer{router: router, store: st}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}
