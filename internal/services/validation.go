package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"event-workflow/internal/status"
	"event-workflow/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// clock accepts HH:MM and HH:MM:SS
	if err := v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := models.ParseClock(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// validateStruct runs the struct tags of in and maps failures to a
// ValidationError keyed by JSON field name.
func validateStruct(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return status.Validation(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", fe.Field())
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format.", fe.Field())
	case "clock":
		return fmt.Sprintf("%s must be a time in HH:MM or HH:MM:SS format.", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s.", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid.", fe.Field())
}

// schedule is a validated date and time window with normalized times.
type schedule struct {
	Date  string
	Start string
	End   string
}

// checkSchedule assumes the fields already passed tag validation. It
// normalizes times to HH:MM:SS, requires start < end and rejects dates
// before today in loc.
func checkSchedule(date, start, end string, now time.Time, loc *time.Location) (schedule, error) {
	day, err := models.ParseDate(date)
	if err != nil {
		return schedule{}, status.Validation(map[string]string{"date": "date must be a date in YYYY-MM-DD format."})
	}
	startClock, err := models.NormalizeClock(start)
	if err != nil {
		return schedule{}, status.Validation(map[string]string{"start_time": "start_time must be a time in HH:MM or HH:MM:SS format."})
	}
	endClock, err := models.NormalizeClock(end)
	if err != nil {
		return schedule{}, status.Validation(map[string]string{"end_time": "end_time must be a time in HH:MM or HH:MM:SS format."})
	}

	if startClock >= endClock {
		return schedule{}, status.Validation(map[string]string{"end_time": "end_time must be after start_time."})
	}

	today := now.In(loc).Format(models.DateLayout)
	if day.Format(models.DateLayout) < today {
		return schedule{}, status.Validation(map[string]string{"date": "date cannot be in the past."})
	}

	return schedule{Date: day.Format(models.DateLayout), Start: startClock, End: endClock}, nil
}
