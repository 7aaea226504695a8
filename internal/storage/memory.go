package storage

import (
	"sync"

	"calendar-app/internal/event"
	"calendar-app/internal/ledger"
)

type MemoryStorage struct {
	events    []event.Event
	ledger    ledger.Ledger
	popupSeen map[string]bool
	mu        sync.Mutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		events:    []event.Event{},
		ledger:    ledger.New(),
		popupSeen: make(map[string]bool),
	}
}

// Event operations
func (m *MemoryStorage) LoadEvents() ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneEvents(m.events), nil
}

func (m *MemoryStorage) SaveEvents(events []event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = cloneEvents(events)
	return nil
}

// Ledger operations
func (m *MemoryStorage) LoadLedger() (ledger.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Clone(), nil
}

func (m *MemoryStorage) SaveLedger(l ledger.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = l.Clone()
	return nil
}

// Popup-seen operations
func (m *MemoryStorage) LoadPopupSeen() (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSeen(m.popupSeen), nil
}

func (m *MemoryStorage) SavePopupSeen(seen map[string]bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.popupSeen = cloneSeen(seen)
	return nil
}
