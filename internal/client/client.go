package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-record-service/internal/models"
	"github.com/kjstillabower/weather-record-service/internal/observability"
)

// ForecastClient fetches daily forecasts for a location.
type ForecastClient interface {
	GetForecast(ctx context.Context, location string, days int) (models.Forecast, error)
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrCircuitOpen      = errors.New("circuit breaker open")
)

// WeatherAPI error code for an unmatched q parameter.
const weatherAPINoLocation = 1006

// WeatherAPIClient calls the WeatherAPI.com forecast endpoint. Requests are
// not retried; an optional circuit breaker stops calls to a failing upstream.
type WeatherAPIClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewWeatherAPIClient returns a client for apiURL (e.g. https://api.weatherapi.com/v1).
func NewWeatherAPIClient(apiKey, apiURL string, timeout time.Duration) (*WeatherAPIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}

	return &WeatherAPIClient{
		apiKey:  apiKey,
		apiURL:  strings.TrimRight(apiURL, "/"),
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker wraps every upstream call in cb. Transport errors, 429 and
// 5xx responses count as failures; other 4xx responses do not.
func (c *WeatherAPIClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.breaker = cb
}

// NewCircuitBreaker builds a breaker that opens after failureThreshold
// consecutive failures and half-opens after timeout.
func NewCircuitBreaker(failureThreshold int, timeout time.Duration, onStateChange func(from, to string)) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weatherapi",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failureThreshold)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			if onStateChange != nil {
				onStateChange(from.String(), to.String())
			}
		},
	})
}

type forecastResponse struct {
	Location struct {
		Name    string   `json:"name"`
		Country string   `json:"country"`
		Lat     *float64 `json:"lat"`
		Lon     *float64 `json:"lon"`
	} `json:"location"`
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				AvgTempC    float64  `json:"avgtemp_c"`
				MinTempC    *float64 `json:"mintemp_c"`
				MaxTempC    *float64 `json:"maxtemp_c"`
				AvgHumidity *float64 `json:"avghumidity"`
				MaxWindKph  *float64 `json:"maxwind_kph"`
				AvgVisKm    *float64 `json:"avgvis_km"`
				Condition   struct {
					Text string `json:"text"`
				} `json:"condition"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GetForecast requests days of forecast starting today for location.
func (c *WeatherAPIClient) GetForecast(ctx context.Context, location string, days int) (models.Forecast, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, location, days)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("build request: %w", err)
	}
	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.do(req)
	if err != nil {
		observability.ForecastAPIErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
		return models.Forecast{}, err
	}
	defer resp.Body.Close()

	if err := c.handleErrorResponse(resp); err != nil {
		observability.ForecastAPIErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
		return models.Forecast{}, err
	}

	var apiResp forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		err = fmt.Errorf("parse response: %w", err)
		observability.ForecastAPIErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
		return models.Forecast{}, err
	}

	return mapResponse(apiResp), nil
}

// do sends req through the circuit breaker when one is configured.
func (c *WeatherAPIClient) do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.send(req)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		observability.ForecastAPICallsTotal.WithLabelValues("circuit_open").Inc()
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return nil, err
	}
	return out.(*http.Response), nil
}

// send performs one HTTP round trip. 429 and 5xx responses are returned as
// errors with the body closed; any other response is returned to the caller.
func (c *WeatherAPIClient) send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		observability.ForecastAPICallsTotal.WithLabelValues("error").Inc()
		observability.ForecastAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		// url.Error carries the request URL, which holds the API key.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	status := statusLabel(resp.StatusCode)
	observability.ForecastAPICallsTotal.WithLabelValues(status).Inc()
	observability.ForecastAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		defer resp.Body.Close()
		return nil, c.handleErrorResponse(resp)
	}
	return resp, nil
}

func (c *WeatherAPIClient) buildRequest(ctx context.Context, location string, days int) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL + "/forecast.json")
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", location)
	params.Set("days", strconv.Itoa(days))
	params.Set("aqi", "no")
	params.Set("alerts", "no")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

// handleErrorResponse maps a non-2xx response to a sentinel error carrying
// the upstream message.
func (c *WeatherAPIClient) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var body errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	msg := body.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, msg)
	case resp.StatusCode == http.StatusNotFound, body.Error.Code == weatherAPINoLocation:
		return fmt.Errorf("%w: %s", ErrLocationNotFound, msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", ErrUpstreamFailure, resp.StatusCode, msg)
	}
}

func mapResponse(apiResp forecastResponse) models.Forecast {
	out := models.Forecast{
		Location: models.ForecastLocation{
			Name:      apiResp.Location.Name,
			Country:   apiResp.Location.Country,
			Latitude:  apiResp.Location.Lat,
			Longitude: apiResp.Location.Lon,
		},
		Days: make([]models.ForecastDay, 0, len(apiResp.Forecast.ForecastDay)),
	}
	for _, fd := range apiResp.Forecast.ForecastDay {
		out.Days = append(out.Days, models.ForecastDay{
			Date:        fd.Date,
			AvgTempC:    fd.Day.AvgTempC,
			MinTempC:    fd.Day.MinTempC,
			MaxTempC:    fd.Day.MaxTempC,
			Condition:   fd.Day.Condition.Text,
			AvgHumidity: fd.Day.AvgHumidity,
			MaxWindKph:  fd.Day.MaxWindKph,
			AvgVisKm:    fd.Day.AvgVisKm,
		})
	}
	return out
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// ValidateAPIKey issues a one-day forecast request to confirm the key is accepted.
func (c *WeatherAPIClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, "London", 1)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: API key is invalid or disabled", ErrInvalidAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}
	return nil
}
