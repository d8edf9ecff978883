package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/kjstillabower/weather-record-service/internal/models"
)

// Header is the fixed CSV column order.
var Header = []string{
	"id", "location", "country", "latitude", "longitude",
	"date_from", "date_to", "temperature", "feels_like",
	"weather_condition", "humidity", "pressure", "wind_speed",
	"created_at",
}

// Filename is suggested to clients via Content-Disposition.
const Filename = "weather_data.csv"

// WriteCSV writes Header followed by one row per record. Nothing is written
// for an empty slice. Absent optional values become empty cells.
func WriteCSV(w io.Writer, records []models.WeatherRecord) error {
	if len(records) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.Location,
			str(r.Country),
			num(r.Latitude),
			num(r.Longitude),
			r.DateFrom.String(),
			r.DateTo.String(),
			formatFloat(r.Temperature),
			num(r.FeelsLike),
			r.WeatherCondition,
			num(r.Humidity),
			num(r.Pressure),
			num(r.WindSpeed),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func num(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
