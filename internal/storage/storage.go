package storage

import (
	"calendar-app/internal/event"
	"calendar-app/internal/ledger"
)

// Storage defines the interface for durable persistence of the three
// calendar records: the ordered event list, the reminder ledger and the
// popup-seen map. Each record is loaded and saved wholesale.
type Storage interface {
	// Event operations
	LoadEvents() ([]event.Event, error)
	SaveEvents(events []event.Event) error

	// Ledger operations
	LoadLedger() (ledger.Ledger, error)
	SaveLedger(l ledger.Ledger) error

	// Popup-seen operations
	LoadPopupSeen() (map[string]bool, error)
	SavePopupSeen(seen map[string]bool) error
}

func cloneEvents(in []event.Event) []event.Event {
	out := make([]event.Event, len(in))
	copy(out, in)
	return out
}

func cloneSeen(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
