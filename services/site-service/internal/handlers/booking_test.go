package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ateliernova/site-backend/services/site-service/internal/availability"
	"github.com/ateliernova/site-backend/services/site-service/internal/model"
	"github.com/ateliernova/site-backend/services/site-service/internal/storage"
	"github.com/jackc/pgx/v5"
)

type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

// fakeBookingStore serves stored idempotency records and fails any write,
// pinning down which storage calls a request path makes.
type fakeBookingStore struct {
	records map[string]storage.IdempotencyRecord
	creates int
}

func (f *fakeBookingStore) Begin(ctx context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (f *fakeBookingStore) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error) {
	f.creates++
	return "", errors.New("unexpected create")
}

func (f *fakeBookingStore) SetCalendarEventID(ctx context.Context, bookingID, eventID string) error {
	return errors.New("unexpected write")
}

func (f *fakeBookingStore) GetByReference(ctx context.Context, reference string) (model.Booking, error) {
	return model.Booking{}, pgx.ErrNoRows
}

func (f *fakeBookingStore) GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (model.Booking, error) {
	return model.Booking{}, pgx.ErrNoRows
}

func (f *fakeBookingStore) Cancel(ctx context.Context, tx pgx.Tx, bookingID string) (time.Time, error) {
	return time.Time{}, errors.New("unexpected cancel")
}

func (f *fakeBookingStore) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (storage.IdempotencyRecord, bool, error) {
	rec, ok := f.records[key]
	return rec, ok, nil
}

func (f *fakeBookingStore) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, key, bookingID string, statusCode int, response []byte) error {
	return errors.New("unexpected finalize")
}

func newTestBookingHandler(t *testing.T, busy availability.BusySource) *BookingHandler {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return NewBookingHandler(&fakeBookingStore{}, nil, busy, nil, availability.Policy{StartHour: 9, EndHour: 20}, loc, slog.Default())
}

func postBooking(h *BookingHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	return rec
}

func TestCreateBookingRejectsBadRequests(t *testing.T) {
	h := newTestBookingHandler(t, emptySource())

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"missing slot id", `{"customer_name":"Ada","customer_email":"ada@example.com"}`},
		{"missing email", `{"slot_id":"2026-09-01_10:00_11:00","customer_name":"Ada"}`},
		{"bad email", `{"slot_id":"2026-09-01_10:00_11:00","customer_name":"Ada","customer_email":"nope"}`},
		{"malformed slot id", `{"slot_id":"not-a-slot","customer_name":"Ada","customer_email":"ada@example.com"}`},
		{"two hour slot", `{"slot_id":"2026-09-01_10:00_12:00","customer_name":"Ada","customer_email":"ada@example.com"}`},
	}
	for _, tc := range cases {
		rec := postBooking(h, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", tc.name, rec.Code, rec.Body.String())
		}
	}
}

func TestCreateBookingRejectsUnbookableSlots(t *testing.T) {
	h := newTestBookingHandler(t, emptySource())

	// 2026-09-05 is a Saturday; 2020 dates are long past.
	cases := []struct {
		name   string
		slotID string
	}{
		{"past slot", "2020-01-06_10:00_11:00"},
		{"weekend slot", "2026-09-05_10:00_11:00"},
		{"before opening", futureWeekdaySlot(t, 7, 8)},
		{"after closing", futureWeekdaySlot(t, 7, 20)},
	}
	for _, tc := range cases {
		body := fmt.Sprintf(`{"slot_id":%q,"customer_name":"Ada","customer_email":"ada@example.com"}`, tc.slotID)
		rec := postBooking(h, body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s (%s): expected 422, got %d: %s", tc.name, tc.slotID, rec.Code, rec.Body.String())
		}
	}
}

func TestCreateBookingConflictsWithBusyCalendar(t *testing.T) {
	busy := availability.SourceFunc(func(ctx context.Context, from, to time.Time) ([]availability.Interval, error) {
		return []availability.Interval{{Start: from, End: to}}, nil
	})
	h := newTestBookingHandler(t, busy)

	body := fmt.Sprintf(`{"slot_id":%q,"customer_name":"Ada","customer_email":"ada@example.com"}`, futureWeekdaySlot(t, 7, 10))
	rec := postBooking(h, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for occupied slot, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateBookingReplaysIdempotencyBeforeBusyCheck(t *testing.T) {
	// After a successful create the booking occupies its own slot. A retry
	// with the same key must get the stored response, not a 409.
	stored := []byte(`{"reference":"BK-1234567890","status":"confirmed"}`)
	store := &fakeBookingStore{records: map[string]storage.IdempotencyRecord{
		"retry-key": {
			IdempotencyKey:  "retry-key",
			BookingID:       "b-1",
			StatusCode:      http.StatusCreated,
			ResponsePayload: stored,
		},
	}}
	allBusy := availability.SourceFunc(func(ctx context.Context, from, to time.Time) ([]availability.Interval, error) {
		return []availability.Interval{{Start: from, End: to}}, nil
	})
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	h := NewBookingHandler(store, nil, allBusy, nil, availability.Policy{StartHour: 9, EndHour: 20}, loc, slog.Default())

	body := fmt.Sprintf(`{"slot_id":%q,"customer_name":"Ada","customer_email":"ada@example.com"}`, futureWeekdaySlot(t, 7, 10))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "retry-key")
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected stored 201 on retry, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != string(stored) {
		t.Fatalf("expected stored payload, got %s", rec.Body.String())
	}
	if store.creates != 0 {
		t.Fatalf("retry must not create a second booking, got %d creates", store.creates)
	}
}

func TestCancelBookingRejectsBadRequests(t *testing.T) {
	h := newTestBookingHandler(t, emptySource())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/cancel", strings.NewReader(`{"reference":""}`))
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty reference, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/bookings/cancel", nil)
	rec = httptest.NewRecorder()
	h.Cancel(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestGetBookingRequiresReference(t *testing.T) {
	h := newTestBookingHandler(t, emptySource())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without reference, got %d", rec.Code)
	}
}

// futureWeekdaySlot builds a slot id at the given hour on a weekday at least
// daysAhead days out, so tests stay valid regardless of when they run.
func futureWeekdaySlot(t *testing.T, daysAhead, hour int) string {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	day := time.Now().In(loc).AddDate(0, 0, daysAhead)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	date := day.Format(availability.DateLayout)
	return availability.SlotID(date, fmt.Sprintf("%02d:00", hour), fmt.Sprintf("%02d:00", hour+1))
}
