package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// calendar-sim is an in-memory stand-in for the calendar provider, for local
// development without real credentials. It speaks the subset of the events
// API that site-service uses.

type eventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
	Status      string    `json:"status,omitempty"`
}

type store struct {
	mu     sync.Mutex
	nextID int
	events map[string]event
}

func newStore() *store {
	return &store{nextID: 1, events: make(map[string]event)}
}

func (s *store) add(ev event) event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = fmt.Sprintf("evt-%d", s.nextID)
	s.nextID++
	if ev.Status == "" {
		ev.Status = "confirmed"
	}
	s.events[ev.ID] = ev
	return ev
}

func (s *store) list() []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	return out
}

func (s *store) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return false
	}
	delete(s.events, id)
	return true
}

func eventBounds(ev event) (time.Time, time.Time, bool) {
	parse := func(et eventTime) (time.Time, bool) {
		if et.DateTime != "" {
			t, err := time.Parse(time.RFC3339, et.DateTime)
			return t, err == nil
		}
		if et.Date != "" {
			t, err := time.Parse("2006-01-02", et.Date)
			return t, err == nil
		}
		return time.Time{}, false
	}
	start, ok := parse(ev.Start)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, ok := parse(ev.End)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func main() {
	var (
		addr       = flag.String("addr", getenv("ADDR", ":9090"), "listen address")
		token      = flag.String("token", getenv("CALENDAR_TOKEN", "dev-token"), "expected bearer token")
		calendarID = flag.String("calendar-id", getenv("CALENDAR_ID", "studio"), "calendar id to serve")
	)
	flag.Parse()

	st := newStore()
	eventsPath := "/calendars/" + *calendarID + "/events"

	mux := http.NewServeMux()
	mux.HandleFunc(eventsPath, func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, *token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			listEvents(w, r, st)
		case http.MethodPost:
			createEvent(w, r, st)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc(eventsPath+"/", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, *token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, eventsPath+"/")
		if id == "" || !st.delete(id) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	log.Printf("calendar-sim listening on %s (calendar %s)", *addr, *calendarID)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatal(err)
	}
}

func listEvents(w http.ResponseWriter, r *http.Request, st *store) {
	var timeMin, timeMax time.Time
	if raw := r.URL.Query().Get("timeMin"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid timeMin", http.StatusBadRequest)
			return
		}
		timeMin = t
	}
	if raw := r.URL.Query().Get("timeMax"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid timeMax", http.StatusBadRequest)
			return
		}
		timeMax = t
	}

	var items []event
	for _, ev := range st.list() {
		start, end, ok := eventBounds(ev)
		if !ok {
			continue
		}
		if !timeMin.IsZero() && !end.After(timeMin) {
			continue
		}
		if !timeMax.IsZero() && !start.Before(timeMax) {
			continue
		}
		items = append(items, ev)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
}

func createEvent(w http.ResponseWriter, r *http.Request, st *store) {
	var ev event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if _, _, ok := eventBounds(ev); !ok {
		http.Error(w, "start and end are required", http.StatusBadRequest)
		return
	}
	created := st.add(ev)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(created)
}

func authorized(r *http.Request, token string) bool {
	return r.Header.Get("Authorization") == "Bearer "+token
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
