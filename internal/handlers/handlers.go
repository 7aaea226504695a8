package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"calendar-app/internal/bus"
	"calendar-app/internal/calendar"
	"calendar-app/internal/event"
	"calendar-app/internal/foreground"
	"calendar-app/internal/ics"
	appLog "calendar-app/internal/log"
	"calendar-app/internal/notify"

	"github.com/gorilla/mux"
)

var (
	App *foreground.App
	// Location is the wall-clock zone used by the iCalendar export.
	Location = time.Local
)

// Register installs the API routes on r. Literal paths under /events come
// before /events/{id} so they are not captured as ids.
func Register(r *mux.Router) {
	r.HandleFunc("/health", HealthHandler).Methods("GET")

	r.HandleFunc("/events", ListEventsHandler).Methods("GET")
	r.HandleFunc("/events", CreateEventHandler).Methods("POST")
	r.HandleFunc("/events", ClearEventsHandler).Methods("DELETE")
	r.HandleFunc("/events/conflicts", ConflictsHandler).Methods("POST")
	r.HandleFunc("/events/export.ics", ExportICSHandler).Methods("GET")
	r.HandleFunc("/events/export.txt", ExportTextHandler).Methods("GET")
	r.HandleFunc("/events/{id}", GetEventHandler).Methods("GET")
	r.HandleFunc("/events/{id}", UpdateEventHandler).Methods("PUT")
	r.HandleFunc("/events/{id}", DeleteEventHandler).Methods("DELETE")

	r.HandleFunc("/reminders/check", CheckRemindersHandler).Methods("POST")
	r.HandleFunc("/notifications/permission", PermissionHandler).Methods("GET")
	r.HandleFunc("/notifications/permission", RequestPermissionHandler).Methods("POST")
	r.HandleFunc("/notifications/click", ClickHandler).Methods("POST")
}

func logRequest(r *http.Request, status int, detail ...any) {
	kv := []any{"method", r.Method, "path", r.URL.Path, "ua", r.UserAgent(), "status", status}
	kv = append(kv, detail...)
	switch {
	case status >= 500:
		appLog.Warn("request failed", kv...)
	case status >= 400:
		appLog.Info("request rejected", kv...)
	default:
		appLog.Info("request", kv...)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
	logRequest(r, status)
}

type errorBody struct {
	Error     string        `json:"error"`
	Field     string        `json:"field,omitempty"`
	Conflicts []event.Event `json:"conflicts,omitempty"`
}

// writeError maps foreground and validation errors to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: err.Error()}
	status := http.StatusInternalServerError

	var verr *event.ValidationError
	var cerr *foreground.ConflictError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body.Field = verr.Field
	case errors.Is(err, event.ErrInvalid):
		status = http.StatusBadRequest
	case errors.As(err, &cerr):
		status = http.StatusConflict
		body.Conflicts = cerr.Conflicts
	case errors.Is(err, foreground.ErrNotFound):
		status = http.StatusNotFound
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
	logRequest(r, status, "error", err.Error())
}

// eventRequest is the wire form of a draft. The remind mode is kept raw so
// an unknown value is rejected instead of falling back to off.
type eventRequest struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Date        string          `json:"date"`
	EndDate     string          `json:"endDate"`
	Start       string          `json:"start"`
	End         string          `json:"end"`
	Description string          `json:"description"`
	RemindMode  json.RawMessage `json:"remindMode"`
	Color       string          `json:"color"`
}

func (req eventRequest) event() (event.Event, error) {
	mode, err := event.DecodeRemindMode(req.RemindMode)
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{
		ID:          req.ID,
		Title:       req.Title,
		Date:        req.Date,
		EndDate:     req.EndDate,
		Start:       req.Start,
		End:         req.End,
		Description: req.Description,
		RemindMode:  mode,
		Color:       req.Color,
	}, nil
}

// decodeEvent reads a draft from the request body.
func decodeEvent(w http.ResponseWriter, r *http.Request) (event.Event, bool) {
	var req eventRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		logRequest(r, http.StatusBadRequest, "error", err.Error())
		return event.Event{}, false
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		logRequest(r, http.StatusBadRequest, "error", err.Error(), "body", string(body))
		return event.Event{}, false
	}
	ev, err := req.event()
	if err != nil {
		writeError(w, r, err)
		return event.Event{}, false
	}
	return ev, true
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK"))
	logRequest(r, http.StatusOK)
}

// ListEventsHandler lists every event, the events active on ?date= or the
// events matching ?q=.
func ListEventsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var list []event.Event
	switch {
	case q.Get("date") != "":
		date := q.Get("date")
		if _, err := time.Parse(event.DateLayout, date); err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			logRequest(r, http.StatusBadRequest, "date", date)
			return
		}
		list = App.ActiveOn(date)
	case q.Get("q") != "":
		list = App.Search(q.Get("q"))
	default:
		list = App.Events()
		if q.Get("sort") == "date" {
			calendar.Sort(list)
		}
	}
	if list == nil {
		list = []event.Event{}
	}
	writeJSON(w, r, http.StatusOK, list)
}

func CreateEventHandler(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeEvent(w, r)
	if !ok {
		return
	}
	// Ids are assigned by the store.
	draft.ID = ""
	saved, err := App.Save(r.Context(), draft, r.URL.Query().Get("confirm") == "true")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, saved)
}

func GetEventHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ev, err := App.Event(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ev)
}

func UpdateEventHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	draft, ok := decodeEvent(w, r)
	if !ok {
		return
	}
	saved, err := App.Update(r.Context(), id, draft, r.URL.Query().Get("confirm") == "true")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, saved)
}

func DeleteEventHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := App.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	logRequest(r, http.StatusNoContent, "id", id)
}

func ClearEventsHandler(w http.ResponseWriter, r *http.Request) {
	if err := App.Clear(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	logRequest(r, http.StatusNoContent)
}

// ConflictsHandler reports the events a draft would overlap. ?exclude=
// names the event being edited.
func ConflictsHandler(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeEvent(w, r)
	if !ok {
		return
	}
	list := App.Conflicts(draft, r.URL.Query().Get("exclude"))
	if list == nil {
		list = []event.Event{}
	}
	writeJSON(w, r, http.StatusOK, list)
}

func ExportICSHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	io.WriteString(w, ics.Export(App.Events(), Location, time.Now()))
	logRequest(r, http.StatusOK)
}

func ExportTextHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar-events.txt"`)
	io.WriteString(w, ics.ExportText(App.Events()))
	logRequest(r, http.StatusOK)
}

type checkResponse struct {
	Forwarded bool     `json:"forwarded"`
	Shown     []string `json:"shown"`
}

// CheckRemindersHandler asks the worker for a pass and runs one here too.
func CheckRemindersHandler(w http.ResponseWriter, r *http.Request) {
	resp := checkResponse{Shown: []string{}}
	switch err := App.RequestCheck(r.Context()); {
	case err == nil:
		resp.Forwarded = true
	case errors.Is(err, notify.ErrNoChannel), errors.Is(err, bus.ErrNoSubscriber):
	default:
		appLog.Warn("check request not forwarded", "error", err.Error())
	}

	res, err := App.Tick(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	for _, d := range res.Due {
		resp.Shown = append(resp.Shown, d.Tag)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

type permissionResponse struct {
	Permission notify.Permission `json:"permission"`
}

func PermissionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, permissionResponse{Permission: App.Permission()})
}

// RequestPermissionHandler starts a permission prompt and returns at once
// with the state as it was.
func RequestPermissionHandler(w http.ResponseWriter, r *http.Request) {
	App.RequestPermission(r.Context())
	writeJSON(w, r, http.StatusAccepted, permissionResponse{Permission: App.Permission()})
}

func ClickHandler(w http.ResponseWriter, r *http.Request) {
	var n notify.Notification
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			logRequest(r, http.StatusBadRequest, "error", err.Error())
			return
		}
	}
	if err := App.Click(r.Context(), n); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	logRequest(r, http.StatusNoContent, "title", n.Title)
}
