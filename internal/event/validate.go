package event

import (
	"errors"
	"time"
)

// ErrInvalid is wrapped by every draft validation failure.
var ErrInvalid = errors.New("invalid event")

// ValidationError names the offending field of a rejected draft.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Validate checks a normalized draft. It never mutates e.
func (e Event) Validate() error {
	if e.Title == "" {
		return invalid("title", "is required")
	}
	if e.Date == "" {
		return invalid("date", "is required")
	}
	start, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return invalid("date", "must be YYYY-MM-DD")
	}
	end, err := time.Parse(DateLayout, e.LastDate())
	if err != nil {
		return invalid("endDate", "must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return invalid("endDate", "cannot be before start date")
	}
	if (e.Start == "") != (e.End == "") {
		return invalid("start", "set both start and end, or neither")
	}
	if !e.Timed() {
		return nil
	}
	st, err := time.Parse(TimeLayout, e.Start)
	if err != nil {
		return invalid("start", "must be HH:MM")
	}
	et, err := time.Parse(TimeLayout, e.End)
	if err != nil {
		return invalid("end", "must be HH:MM")
	}
	if e.Date == e.LastDate() && !et.After(st) {
		return invalid("end", "must be after start time")
	}
	return nil
}
