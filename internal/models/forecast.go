package models

// Forecast is the upstream forecast for one location, reduced to the fields
// the service persists.
type Forecast struct {
	Location ForecastLocation
	Days     []ForecastDay
}

// ForecastLocation is the location the upstream resolved the query to.
type ForecastLocation struct {
	Name      string
	Country   string
	Latitude  *float64
	Longitude *float64
}

// ForecastDay holds one day of forecast. Date is the upstream "YYYY-MM-DD" string.
type ForecastDay struct {
	Date        string
	AvgTempC    float64
	MinTempC    *float64
	MaxTempC    *float64
	Condition   string
	AvgHumidity *float64
	MaxWindKph  *float64
	AvgVisKm    *float64
}

// DaySummary is one entry of a range-fetch response.
type DaySummary struct {
	Date        string   `json:"date"`
	Temperature float64  `json:"temperature"`
	TempMin     *float64 `json:"temp_min"`
	TempMax     *float64 `json:"temp_max"`
	Condition   string   `json:"condition"`
	Humidity    *float64 `json:"humidity"`
	WindSpeed   *float64 `json:"wind_speed"`
}

// RangeFetchResult is the response of a range-fetch.
type RangeFetchResult struct {
	Location  string       `json:"location"`
	StartDate string       `json:"start_date"`
	EndDate   string       `json:"end_date"`
	Data      []DaySummary `json:"data"`
}
