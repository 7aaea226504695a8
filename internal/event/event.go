package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Event is a single calendar entry. Date and time fields are kept in their
// wire form (YYYY-MM-DD and HH:MM) and interpreted in one local wall-clock
// location.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Date        string     `json:"date"`
	EndDate     string     `json:"endDate"`
	Start       string     `json:"start,omitempty"`
	End         string     `json:"end,omitempty"`
	Description string     `json:"description"`
	RemindMode  RemindMode `json:"remindMode"`
	Color       string     `json:"color,omitempty"`
}

// NewID returns a fresh opaque event id.
func NewID() string {
	return uuid.NewString()
}

// DateKey formats t as the canonical calendar-date key in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// LastDate returns EndDate, or Date when EndDate is unset.
func (e Event) LastDate() string {
	if e.EndDate == "" {
		return e.Date
	}
	return e.EndDate
}

// Timed reports whether the event carries both a start and an end time.
func (e Event) Timed() bool {
	return e.Start != "" && e.End != ""
}

// StartAt combines Date and Start into an instant in loc.
func (e Event) StartAt(loc *time.Location) (time.Time, bool) {
	if e.Start == "" {
		return time.Time{}, false
	}
	return combine(e.Date, e.Start, loc)
}

// EndAt combines the last date and End into an instant in loc.
func (e Event) EndAt(loc *time.Location) (time.Time, bool) {
	if e.End == "" {
		return time.Time{}, false
	}
	return combine(e.LastDate(), e.End, loc)
}

// Normalize trims free text and fills EndDate. It is applied to every draft
// before validation.
func (e *Event) Normalize() {
	e.Title = strings.TrimSpace(e.Title)
	e.Description = strings.TrimSpace(e.Description)
	e.Start = strings.TrimSpace(e.Start)
	e.End = strings.TrimSpace(e.End)
	if e.EndDate == "" {
		e.EndDate = e.Date
	}
	if e.Color == "" {
		e.Color = "default"
	}
}

// ParseDate parses a YYYY-MM-DD key at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

func combine(date, clock string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
