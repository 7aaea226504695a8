package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"calendar-app/internal/event"
	"calendar-app/internal/ledger"
	appLog "calendar-app/internal/log"
)

// MongoStorage implements the Storage interface using MongoDB
type MongoStorage struct {
	client              *mongo.Client
	database            *mongo.Database
	eventCollection     *mongo.Collection
	ledgerCollection    *mongo.Collection
	popupSeenCollection *mongo.Collection
	mu                  sync.Mutex
}

// eventDoc is the stored shape of an event; Position keeps list order.
type eventDoc struct {
	Position    int    `bson:"position"`
	ID          string `bson:"id"`
	Title       string `bson:"title"`
	Date        string `bson:"date"`
	EndDate     string `bson:"end_date"`
	Start       string `bson:"start,omitempty"`
	End         string `bson:"end,omitempty"`
	Description string `bson:"description"`
	RemindMode  string `bson:"remind_mode"`
	Color       string `bson:"color,omitempty"`
}

// flagDoc stores one ledger key or popup-seen date.
type flagDoc struct {
	Key   string `bson:"_id"`
	Value bool   `bson:"value"`
}

// NewMongoStorage creates a new MongoDB storage instance
func NewMongoStorage(connectionString, databaseName string) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Test the connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(databaseName)

	ms := &MongoStorage{
		client:              client,
		database:            database,
		eventCollection:     database.Collection("events"),
		ledgerCollection:    database.Collection("reminder_ledger"),
		popupSeenCollection: database.Collection("popup_seen"),
	}

	return ms, nil
}

// Close closes the MongoDB connection
func (ms *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

// Event operations

func (ms *MongoStorage) LoadEvents() ([]event.Event, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ctx := context.Background()

	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}})
	cursor, err := ms.eventCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer cursor.Close(ctx)

	events := []event.Event{}
	for cursor.Next(ctx) {
		var d eventDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, d.toEvent())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return events, nil
}

func (ms *MongoStorage) SaveEvents(events []event.Event) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ctx := context.Background()

	if _, err := ms.eventCollection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(events))
	for i, e := range events {
		docs = append(docs, newEventDoc(i, e))
	}
	if _, err := ms.eventCollection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert events: %w", err)
	}

	return nil
}

// Ledger operations

func (ms *MongoStorage) LoadLedger() (ledger.Ledger, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	l := ledger.New()
	if err := ms.loadFlags(ms.ledgerCollection, func(k string, v bool) { l[k] = v }); err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return l, nil
}

func (ms *MongoStorage) SaveLedger(l ledger.Ledger) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if err := ms.replaceFlags(ms.ledgerCollection, l); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}

// Popup-seen operations

func (ms *MongoStorage) LoadPopupSeen() (map[string]bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	seen := make(map[string]bool)
	if err := ms.loadFlags(ms.popupSeenCollection, func(k string, v bool) { seen[k] = v }); err != nil {
		return nil, fmt.Errorf("failed to load popup-seen: %w", err)
	}
	return seen, nil
}

func (ms *MongoStorage) SavePopupSeen(seen map[string]bool) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if err := ms.replaceFlags(ms.popupSeenCollection, seen); err != nil {
		return fmt.Errorf("failed to save popup-seen: %w", err)
	}
	return nil
}

// Helper methods

func (ms *MongoStorage) loadFlags(coll *mongo.Collection, put func(string, bool)) error {
	ctx := context.Background()

	cursor, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var d flagDoc
		if err := cursor.Decode(&d); err != nil {
			return err
		}
		put(d.Key, d.Value)
	}
	return cursor.Err()
}

func (ms *MongoStorage) replaceFlags(coll *mongo.Collection, flags map[string]bool) error {
	ctx := context.Background()

	if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
		return err
	}
	if len(flags) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(flags))
	for k, v := range flags {
		docs = append(docs, flagDoc{Key: k, Value: v})
	}
	_, err := coll.InsertMany(ctx, docs)
	return err
}

func newEventDoc(position int, e event.Event) eventDoc {
	return eventDoc{
		Position:    position,
		ID:          e.ID,
		Title:       e.Title,
		Date:        e.Date,
		EndDate:     e.LastDate(),
		Start:       e.Start,
		End:         e.End,
		Description: e.Description,
		RemindMode:  e.RemindMode.String(),
		Color:       e.Color,
	}
}

func (d eventDoc) toEvent() event.Event {
	mode, err := event.ParseRemindMode(d.RemindMode)
	if err != nil {
		appLog.Error("stored remind mode unreadable, using off", err, "id", d.ID)
	}
	return event.Event{
		ID:          d.ID,
		Title:       d.Title,
		Date:        d.Date,
		EndDate:     d.EndDate,
		Start:       d.Start,
		End:         d.End,
		Description: d.Description,
		RemindMode:  mode,
		Color:       d.Color,
	}
}
