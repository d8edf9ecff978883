package models

import (
	"encoding/json"
	"time"
)

// WeatherRecord is a stored weather observation for a location and date range.
// Optional measurements are pointers so that absent values round-trip as null.
type WeatherRecord struct {
	ID        uint     `json:"id" gorm:"primaryKey"`
	Location  string   `json:"location" gorm:"not null;index"`
	Country   *string  `json:"country"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	DateFrom Date `json:"date_from" gorm:"not null"`
	DateTo   Date `json:"date_to" gorm:"not null"`

	Temperature        float64  `json:"temperature" gorm:"not null"`
	FeelsLike          *float64 `json:"feels_like"`
	TempMin            *float64 `json:"temp_min"`
	TempMax            *float64 `json:"temp_max"`
	WeatherCondition   string   `json:"weather_condition" gorm:"not null"`
	WeatherDescription *string  `json:"weather_description"`

	Humidity   *float64 `json:"humidity"`
	Pressure   *float64 `json:"pressure"`
	WindSpeed  *float64 `json:"wind_speed"`
	Cloudiness *float64 `json:"cloudiness"`
	Visibility *float64 `json:"visibility"`

	// Timestamps are assigned by the store, not by gorm callbacks, so that
	// updated_at stays null until the first update.
	CreatedAt time.Time  `json:"created_at" gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt *time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`
}

// TableName returns the table name for gorm.
func (WeatherRecord) TableName() string {
	return "weather_records"
}

// RecordCreate is the request body for creating a record.
type RecordCreate struct {
	Location  string   `json:"location" validate:"required"`
	Country   *string  `json:"country"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`

	DateFrom *Date `json:"date_from" validate:"required"`
	DateTo   *Date `json:"date_to" validate:"required"`

	Temperature        *float64 `json:"temperature" validate:"required"`
	FeelsLike          *float64 `json:"feels_like"`
	TempMin            *float64 `json:"temp_min"`
	TempMax            *float64 `json:"temp_max"`
	WeatherCondition   string   `json:"weather_condition" validate:"required"`
	WeatherDescription *string  `json:"weather_description"`

	Humidity   *float64 `json:"humidity" validate:"omitempty,gte=0,lte=100"`
	Pressure   *float64 `json:"pressure"`
	WindSpeed  *float64 `json:"wind_speed" validate:"omitempty,gte=0"`
	Cloudiness *float64 `json:"cloudiness" validate:"omitempty,gte=0,lte=100"`
	Visibility *float64 `json:"visibility" validate:"omitempty,gte=0"`
}

// Record converts a validated create request into a record ready for insert.
// Required pointer fields must be non-nil; call after validation.
func (c RecordCreate) Record() WeatherRecord {
	return WeatherRecord{
		Location:           c.Location,
		Country:            c.Country,
		Latitude:           c.Latitude,
		Longitude:          c.Longitude,
		DateFrom:           *c.DateFrom,
		DateTo:             *c.DateTo,
		Temperature:        *c.Temperature,
		FeelsLike:          c.FeelsLike,
		TempMin:            c.TempMin,
		TempMax:            c.TempMax,
		WeatherCondition:   c.WeatherCondition,
		WeatherDescription: c.WeatherDescription,
		Humidity:           c.Humidity,
		Pressure:           c.Pressure,
		WindSpeed:          c.WindSpeed,
		Cloudiness:         c.Cloudiness,
		Visibility:         c.Visibility,
	}
}

// RecordUpdate is the request body for a partial update. A nil field was not
// supplied (absent or null in JSON) and is left unchanged.
type RecordUpdate struct {
	Location  *string  `json:"location" validate:"omitempty,min=1"`
	Country   *string  `json:"country"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`

	DateFrom *Date `json:"date_from"`
	DateTo   *Date `json:"date_to"`

	Temperature        *float64 `json:"temperature"`
	FeelsLike          *float64 `json:"feels_like"`
	TempMin            *float64 `json:"temp_min"`
	TempMax            *float64 `json:"temp_max"`
	WeatherCondition   *string  `json:"weather_condition" validate:"omitempty,min=1"`
	WeatherDescription *string  `json:"weather_description"`

	Humidity   *float64 `json:"humidity" validate:"omitempty,gte=0,lte=100"`
	Pressure   *float64 `json:"pressure"`
	WindSpeed  *float64 `json:"wind_speed" validate:"omitempty,gte=0"`
	Cloudiness *float64 `json:"cloudiness" validate:"omitempty,gte=0,lte=100"`
	Visibility *float64 `json:"visibility" validate:"omitempty,gte=0"`
}

// Changes returns the supplied fields keyed by column name.
func (u RecordUpdate) Changes() map[string]interface{} {
	changes := make(map[string]interface{})
	setString := func(col string, v *string) {
		if v != nil {
			changes[col] = *v
		}
	}
	setFloat := func(col string, v *float64) {
		if v != nil {
			changes[col] = *v
		}
	}
	setDate := func(col string, v *Date) {
		if v != nil {
			changes[col] = *v
		}
	}

	setString("location", u.Location)
	setString("country", u.Country)
	setFloat("latitude", u.Latitude)
	setFloat("longitude", u.Longitude)
	setDate("date_from", u.DateFrom)
	setDate("date_to", u.DateTo)
	setFloat("temperature", u.Temperature)
	setFloat("feels_like", u.FeelsLike)
	setFloat("temp_min", u.TempMin)
	setFloat("temp_max", u.TempMax)
	setString("weather_condition", u.WeatherCondition)
	setString("weather_description", u.WeatherDescription)
	setFloat("humidity", u.Humidity)
	setFloat("pressure", u.Pressure)
	setFloat("wind_speed", u.WindSpeed)
	setFloat("cloudiness", u.Cloudiness)
	setFloat("visibility", u.Visibility)
	return changes
}

// FieldError reports a request field whose value could not be decoded.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// UnmarshalJSON decodes the dates separately so a malformed date is reported
// against its field.
func (c *RecordCreate) UnmarshalJSON(data []byte) error {
	type Alias RecordCreate
	aux := struct {
		*Alias
		DateFrom json.RawMessage `json:"date_from"`
		DateTo   json.RawMessage `json:"date_to"`
	}{Alias: (*Alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var err error
	if c.DateFrom, err = decodeDateField("date_from", aux.DateFrom); err != nil {
		return err
	}
	c.DateTo, err = decodeDateField("date_to", aux.DateTo)
	return err
}

// UnmarshalJSON decodes the dates separately so a malformed date is reported
// against its field.
func (u *RecordUpdate) UnmarshalJSON(data []byte) error {
	type Alias RecordUpdate
	aux := struct {
		*Alias
		DateFrom json.RawMessage `json:"date_from"`
		DateTo   json.RawMessage `json:"date_to"`
	}{Alias: (*Alias)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var err error
	if u.DateFrom, err = decodeDateField("date_from", aux.DateFrom); err != nil {
		return err
	}
	u.DateTo, err = decodeDateField("date_to", aux.DateTo)
	return err
}

// decodeDateField returns nil for an absent or null date.
func decodeDateField(field string, raw json.RawMessage) (*Date, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var d Date
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, &FieldError{Field: field, Err: err}
	}
	return &d, nil
}
