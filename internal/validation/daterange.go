package validation

import (
	"fmt"

	"github.com/kjstillabower/weather-record-service/internal/models"
)

// Forecast window limits of the upstream free tier.
const (
	MaxRangeDays = 3
	MaxLeadDays  = 3
)

// Range-fetch rule codes, in the order the rules are checked.
const (
	CodeInvalidLocation   = "INVALID_LOCATION"
	CodeInvalidDateFormat = "INVALID_DATE_FORMAT"
	CodeInvalidDateRange  = "INVALID_DATE_RANGE"
	CodeHistoricalData    = "HISTORICAL_DATA_UNSUPPORTED"
	CodeRangeTooLarge     = "RANGE_TOO_LARGE"
	CodeTooFarAhead       = "TOO_FAR_AHEAD"
)

// RangeError is a client-side violation of the range-fetch rules.
type RangeError struct {
	Code    string
	Message string
}

func (e *RangeError) Error() string {
	return e.Message
}

// ParseFetchRange parses start and end ("YYYY-MM-DD") and applies the
// range-fetch rules against today. The first failing rule wins.
func ParseFetchRange(start, end string, today models.Date) (models.Date, models.Date, error) {
	from, err := models.ParseDate(start)
	if err != nil {
		return models.Date{}, models.Date{}, &RangeError{Code: CodeInvalidDateFormat, Message: "start_date: " + err.Error()}
	}
	to, err := models.ParseDate(end)
	if err != nil {
		return models.Date{}, models.Date{}, &RangeError{Code: CodeInvalidDateFormat, Message: "end_date: " + err.Error()}
	}

	if from.After(to.Time) {
		return models.Date{}, models.Date{}, &RangeError{
			Code:    CodeInvalidDateRange,
			Message: "start_date must be before or equal to end_date",
		}
	}
	if from.Before(today.Time) {
		return models.Date{}, models.Date{}, &RangeError{
			Code:    CodeHistoricalData,
			Message: fmt.Sprintf("historical data is not available, start_date must be on or after %s", today),
		}
	}
	if from.DaysUntil(to) > MaxRangeDays {
		return models.Date{}, models.Date{}, &RangeError{
			Code:    CodeRangeTooLarge,
			Message: fmt.Sprintf("date range cannot exceed %d days", MaxRangeDays),
		}
	}
	if today.DaysUntil(to) > MaxLeadDays {
		return models.Date{}, models.Date{}, &RangeError{
			Code:    CodeTooFarAhead,
			Message: fmt.Sprintf("end_date cannot be more than %d days from today (%s)", MaxLeadDays, today),
		}
	}
	return from, to, nil
}
