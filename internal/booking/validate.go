package booking

import (
	"regexp"
	"strings"
	"time"

	"document-assistant/internal/models"
)

var (
	emailPattern = regexp.MustCompile(models.EmailRegex)
	phonePattern = regexp.MustCompile(models.PhoneRegex)
)

// Validate applies the booking rules in order and returns the first failure:
// past date, missing fields, email, phone, time, date. The past-date rule
// only applies when the date parses; otherwise the later rules report it.
func Validate(f models.BookingFields, now time.Time) error {
	if f.Date != nil {
		if d, err := time.Parse(models.DateLayout, *f.Date); err == nil {
			y, m, day := now.UTC().Date()
			if d.Before(time.Date(y, m, day, 0, 0, 0, 0, time.UTC)) {
				return invalid(models.CodePastDate, "date cannot be in the past: %s", *f.Date)
			}
		}
	}

	if missing := f.Missing(); len(missing) > 0 {
		return invalid(models.CodeMissingFields, "missing required information: %s", strings.Join(missing, ", "))
	}
	if !emailPattern.MatchString(*f.Email) {
		return invalid(models.CodeInvalidEmail, "invalid email format: %s", *f.Email)
	}
	if !phonePattern.MatchString(*f.PhoneNumber) {
		return invalid(models.CodeInvalidPhone, "invalid phone number format: %s", *f.PhoneNumber)
	}
	if _, err := time.Parse(models.TimeLayout, *f.Time); err != nil {
		return invalid(models.CodeInvalidTime, "invalid time format: %s (expected HH:MM)", *f.Time)
	}
	if _, err := time.Parse(models.DateLayout, *f.Date); err != nil {
		return invalid(models.CodeInvalidDate, "invalid date format: %s (expected YYYY-MM-DD)", *f.Date)
	}
	return nil
}

func invalid(code models.Code, format string, args ...any) error {
	err := models.NewValidation(code, format, args...)
	err.Stage = models.StageValidated
	return err
}
