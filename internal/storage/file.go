package storage

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"calendar-app/internal/event"
	"calendar-app/internal/ledger"
	appLog "calendar-app/internal/log"
)

const (
	EventsFile    = "events.json"
	LedgerFile    = "notif-sent.json"
	PopupSeenFile = "popup-seen.json"
)

// FileStorage keeps each record in its own JSON file under dir.
type FileStorage struct {
	eventsFile    string
	ledgerFile    string
	popupSeenFile string
	mu            sync.Mutex
}

func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{
		eventsFile:    filepath.Join(dir, EventsFile),
		ledgerFile:    filepath.Join(dir, LedgerFile),
		popupSeenFile: filepath.Join(dir, PopupSeenFile),
	}
}

// Helper functions for file IO

// loadJSON decodes the record at path. A missing or empty file yields
// empty(); a malformed one is logged and also yields empty().
func loadJSON[T any](path string, empty func() T) (T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return empty(), nil
		}
		var zero T
		return zero, err
	}
	if len(data) == 0 {
		return empty(), nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		appLog.Error("malformed stored record, treating as empty", err, "path", path)
		return empty(), nil
	}
	return v, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".calendar-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Event operations
func (fs *FileStorage) LoadEvents() ([]event.Event, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	events, err := loadJSON(fs.eventsFile, func() []event.Event { return []event.Event{} })
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []event.Event{}
	}
	return events, nil
}

func (fs *FileStorage) SaveEvents(events []event.Event) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if events == nil {
		events = []event.Event{}
	}
	return writeJSON(fs.eventsFile, events)
}

// Ledger operations
func (fs *FileStorage) LoadLedger() (ledger.Ledger, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	l, err := loadJSON(fs.ledgerFile, ledger.New)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = ledger.New()
	}
	return l, nil
}

func (fs *FileStorage) SaveLedger(l ledger.Ledger) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if l == nil {
		l = ledger.New()
	}
	return writeJSON(fs.ledgerFile, l)
}

// Popup-seen operations
func (fs *FileStorage) LoadPopupSeen() (map[string]bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	seen, err := loadJSON(fs.popupSeenFile, func() map[string]bool { return make(map[string]bool) })
	if err != nil {
		return nil, err
	}
	if seen == nil {
		seen = make(map[string]bool)
	}
	return seen, nil
}

func (fs *FileStorage) SavePopupSeen(seen map[string]bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if seen == nil {
		seen = make(map[string]bool)
	}
	return writeJSON(fs.popupSeenFile, seen)
}
