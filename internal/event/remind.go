package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	appLog "calendar-app/internal/log"
)

type RemindKind int

const (
	RemindOff RemindKind = iota
	RemindPopup
	RemindMinutesBefore
)

// RemindMode selects how an event reminds its owner: not at all, with the
// once-a-day popup summary, or with a notification N minutes before start.
type RemindMode struct {
	Kind    RemindKind
	Minutes int
}

var (
	Off   = RemindMode{Kind: RemindOff}
	Popup = RemindMode{Kind: RemindPopup}
)

// MinutesBefore returns a passive reminder firing n minutes before start.
func MinutesBefore(n int) RemindMode {
	return RemindMode{Kind: RemindMinutesBefore, Minutes: n}
}

// ParseRemindMode parses the wire form: "off", "popup" or a non-negative
// integer number of minutes. An empty string means off.
func ParseRemindMode(s string) (RemindMode, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "off":
		return Off, nil
	case "popup":
		return Popup, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Off, fmt.Errorf("%w: remind mode %q must be off, popup or minutes", ErrInvalid, s)
	}
	return MinutesBefore(n), nil
}

// Threshold returns the lead time in minutes for passive reminders.
func (m RemindMode) Threshold() (int, bool) {
	if m.Kind != RemindMinutesBefore {
		return 0, false
	}
	return m.Minutes, true
}

func (m RemindMode) String() string {
	switch m.Kind {
	case RemindPopup:
		return "popup"
	case RemindMinutesBefore:
		return strconv.Itoa(m.Minutes)
	default:
		return "off"
	}
}

func (m RemindMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// DecodeRemindMode strictly decodes a JSON remind mode: "off", "popup", a
// minutes string or a non-negative number. Missing or null means off.
func DecodeRemindMode(data []byte) (RemindMode, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Off, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int
		if nerr := json.Unmarshal(data, &n); nerr != nil || n < 0 {
			return Off, invalid("remindMode", "must be off, popup or minutes")
		}
		return MinutesBefore(n), nil
	}
	mode, err := ParseRemindMode(s)
	if err != nil {
		return Off, invalid("remindMode", "must be off, popup or minutes")
	}
	return mode, nil
}

// UnmarshalJSON is lenient: stored data that is not a known mode decodes to
// Off instead of failing the whole collection.
func (m *RemindMode) UnmarshalJSON(data []byte) error {
	mode, err := DecodeRemindMode(data)
	if err != nil {
		appLog.Warn("unknown remind mode, treating as off", "value", string(data))
	}
	*m = mode
	return nil
}
