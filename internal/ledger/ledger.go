package ledger

import (
	"strconv"
	"strings"
)

// Ledger records which reminders already fired today. Keys have the form
// {dateKey}_{eventId}_{thresholdMinutes}.
type Ledger map[string]bool

func New() Ledger {
	return Ledger{}
}

// Key builds the dedup key for one event/threshold pair on dateKey.
func Key(dateKey, eventID string, threshold int) string {
	return dateKey + "_" + eventID + "_" + strconv.Itoa(threshold)
}

// Fired reports whether key has been marked.
func (l Ledger) Fired(key string) bool {
	return l[key]
}

func (l Ledger) Mark(key string) {
	l[key] = true
}

// Prune removes every key not prefixed by todayKey and reports whether
// anything was removed.
func (l Ledger) Prune(todayKey string) bool {
	removed := false
	for k := range l {
		if !strings.HasPrefix(k, todayKey) {
			delete(l, k)
			removed = true
		}
	}
	return removed
}

// Merge marks every key of other prefixed by todayKey and reports whether l
// gained a key. Stale days of other are ignored.
func (l Ledger) Merge(other Ledger, todayKey string) bool {
	added := false
	for k, v := range other {
		if !v || l[k] || !strings.HasPrefix(k, todayKey) {
			continue
		}
		l[k] = true
		added = true
	}
	return added
}

func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}
