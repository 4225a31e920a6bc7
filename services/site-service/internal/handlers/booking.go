package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ateliernova/site-backend/services/site-service/internal/availability"
	"github.com/ateliernova/site-backend/services/site-service/internal/calendar"
	"github.com/ateliernova/site-backend/services/site-service/internal/model"
	"github.com/ateliernova/site-backend/services/site-service/internal/outbox"
	"github.com/ateliernova/site-backend/services/site-service/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BookingStore is the storage surface Create/Get/Cancel need. Satisfied by
// storage.BookingRepository.
type BookingStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error)
	SetCalendarEventID(ctx context.Context, bookingID, eventID string) error
	GetByReference(ctx context.Context, reference string) (model.Booking, error)
	GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (model.Booking, error)
	Cancel(ctx context.Context, tx pgx.Tx, bookingID string) (time.Time, error)
	LockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (storage.IdempotencyRecord, bool, error)
	FinalizeIdempotency(ctx context.Context, tx pgx.Tx, key, bookingID string, statusCode int, response []byte) error
}

var _ BookingStore = (*storage.BookingRepository)(nil)

type BookingHandler struct {
	repo       BookingStore
	outboxRepo *outbox.Repository
	busy       availability.BusySource
	cal        *calendar.Client
	policy     availability.Policy
	loc        *time.Location
	logger     *slog.Logger
}

func NewBookingHandler(repo BookingStore, outboxRepo *outbox.Repository, busy availability.BusySource, cal *calendar.Client, policy availability.Policy, loc *time.Location, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		repo:       repo,
		outboxRepo: outboxRepo,
		busy:       busy,
		cal:        cal,
		policy:     policy,
		loc:        loc,
		logger:     logger,
	}
}

type createBookingRequest struct {
	SlotID        string `json:"slot_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Message       string `json:"message"`
}

type bookingResponse struct {
	Reference   string `json:"reference"`
	SlotID      string `json:"slot_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type cancelBookingRequest struct {
	Reference string `json:"reference"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SlotID = strings.TrimSpace(req.SlotID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	if req.SlotID == "" || req.CustomerName == "" || req.CustomerEmail == "" {
		http.Error(w, "slot_id, customer_name and customer_email are required", http.StatusBadRequest)
		return
	}
	if !strings.Contains(req.CustomerEmail, "@") {
		http.Error(w, "invalid customer_email", http.StatusBadRequest)
		return
	}

	startTime, endTime, err := h.resolveSlot(req.SlotID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if reason, ok := h.validateSlotBookable(startTime, endTime, time.Now()); !ok {
		http.Error(w, reason, http.StatusUnprocessableEntity)
		return
	}

	ctx := r.Context()

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Replay before the busy check: after a successful create the booking
	// occupies its own slot, so a retried key would otherwise see 409 instead
	// of the stored response.
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 && len(rec.ResponsePayload) > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponsePayload)
			return
		}
	}

	// Reject slots that already collide with the studio calendar or an existing
	// booking. The DB exclusion constraint still backstops concurrent requests.
	// Busy lookup errors do not finalize the key; the client may retry.
	taken, err := h.slotTaken(ctx, startTime, endTime)
	if err != nil {
		h.logger.Error("busy lookup failed", "err", err)
		http.Error(w, "availability check unavailable", http.StatusServiceUnavailable)
		return
	}
	if taken {
		http.Error(w, "slot is no longer available", http.StatusConflict)
		return
	}

	booking := &model.Booking{
		Reference:     newBookingReference(),
		SlotID:        req.SlotID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Message:       strings.TrimSpace(req.Message),
		StartTime:     startTime,
		EndTime:       endTime,
		Status:        "confirmed",
	}

	id, err := h.repo.Create(ctx, tx, booking)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "slot is no longer available", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create booking", http.StatusInternalServerError)
		return
	}
	booking.ID = id

	evtPayload, err := json.Marshal(map[string]any{
		"booking_id":     id,
		"reference":      booking.Reference,
		"slot_id":        booking.SlotID,
		"customer_name":  booking.CustomerName,
		"customer_email": booking.CustomerEmail,
		"start_time":     booking.StartTime.UTC().Format(time.RFC3339),
		"end_time":       booking.EndTime.UTC().Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   id,
		EventType:     outbox.TopicBookingConfirmed,
		Payload:       evtPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	respBody, err := json.Marshal(bookingResponse{
		Reference: booking.Reference,
		SlotID:    booking.SlotID,
		StartTime: booking.StartTime.Format(time.RFC3339),
		EndTime:   booking.EndTime.Format(time.RFC3339),
		Status:    booking.Status,
	})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, tx, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "slot is no longer available", http.StatusConflict)
			return
		}
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	// Calendar write happens after commit so a calendar outage never loses the
	// booking. A missed event is reconciled by hand from the bookings table.
	h.createCalendarEvent(ctx, booking)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reference := strings.TrimSpace(r.URL.Query().Get("reference"))
	if reference == "" {
		// Also served as /api/v1/bookings/{reference}.
		if i := strings.LastIndex(r.URL.Path, "/"); i >= 0 {
			tail := strings.TrimSpace(r.URL.Path[i+1:])
			if tail != "" && tail != "bookings" {
				reference = tail
			}
		}
	}
	if reference == "" {
		http.Error(w, "reference required", http.StatusBadRequest)
		return
	}

	booking, err := h.repo.GetByReference(r.Context(), reference)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}

	resp := bookingResponse{
		Reference: booking.Reference,
		SlotID:    booking.SlotID,
		StartTime: booking.StartTime.In(h.loc).Format(time.RFC3339),
		EndTime:   booking.EndTime.In(h.loc).Format(time.RFC3339),
		Status:    booking.Status,
		CreatedAt: booking.CreatedAt.UTC().Format(time.RFC3339),
	}
	if booking.CancelledAt != nil {
		resp.CancelledAt = booking.CancelledAt.UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Reference = strings.TrimSpace(req.Reference)
	if req.Reference == "" {
		http.Error(w, "reference required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := h.repo.GetByReferenceForUpdate(ctx, tx, req.Reference)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}

	if booking.Status == "cancelled" && booking.CancelledAt != nil {
		h.writeCancelResponse(w, booking, booking.CancelledAt.UTC())
		return
	}
	if booking.Status != "confirmed" {
		http.Error(w, "booking cannot be cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.repo.Cancel(ctx, tx, booking.ID)
	if err != nil {
		http.Error(w, "failed to cancel booking", http.StatusInternalServerError)
		return
	}

	cancelPayload, err := json.Marshal(map[string]any{
		"booking_id":     booking.ID,
		"reference":      booking.Reference,
		"slot_id":        booking.SlotID,
		"customer_name":  booking.CustomerName,
		"customer_email": booking.CustomerEmail,
		"start_time":     booking.StartTime.UTC().Format(time.RFC3339),
		"end_time":       booking.EndTime.UTC().Format(time.RFC3339),
		"cancelled_at":   cancelledAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   booking.ID,
		EventType:     outbox.TopicBookingCancelled,
		Payload:       cancelPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	if h.cal != nil && booking.CalendarEventID != "" {
		if err := h.cal.DeleteEvent(ctx, booking.CalendarEventID); err != nil {
			h.logger.Warn("calendar event delete failed", "booking_id", booking.ID, "err", err)
		}
	}

	h.writeCancelResponse(w, booking, cancelledAt.UTC())
}

// resolveSlot turns a slot id back into concrete interval bounds in the
// studio timezone.
func (h *BookingHandler) resolveSlot(slotID string) (time.Time, time.Time, error) {
	date, startClock, endClock, err := availability.ParseSlotID(slotID)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := time.ParseInLocation(availability.DateLayout+" 15:04", date+" "+startClock, h.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.ParseInLocation(availability.DateLayout+" 15:04", date+" "+endClock, h.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func (h *BookingHandler) validateSlotBookable(start, end, now time.Time) (string, bool) {
	local := start.In(h.loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return "slot falls on a weekend", false
	}
	if local.Minute() != 0 {
		return "slot must start on the hour", false
	}
	if local.Hour() < h.policy.StartHour || end.In(h.loc).Hour() > h.policy.EndHour {
		return "slot is outside working hours", false
	}
	if !start.After(now) {
		return "slot is in the past", false
	}
	return "", true
}

func (h *BookingHandler) slotTaken(ctx context.Context, start, end time.Time) (bool, error) {
	if h.busy == nil {
		return false, nil
	}
	busy, err := h.busy.BusyIntervals(ctx, start, end)
	if err != nil {
		return false, err
	}
	for _, b := range busy {
		if b.Start.Before(end) && b.End.After(start) {
			return true, nil
		}
	}
	return false, nil
}

func (h *BookingHandler) createCalendarEvent(ctx context.Context, booking *model.Booking) {
	if h.cal == nil {
		return
	}
	ev := calendar.Event{
		Summary:     "Consultation: " + booking.CustomerName,
		Description: "Booking " + booking.Reference + " (" + booking.CustomerEmail + ")",
		Start:       calendar.EventTime{DateTime: booking.StartTime.Format(time.RFC3339), TimeZone: h.loc.String()},
		End:         calendar.EventTime{DateTime: booking.EndTime.Format(time.RFC3339), TimeZone: h.loc.String()},
	}
	created, err := h.cal.CreateEvent(ctx, ev)
	if err != nil {
		h.logger.Warn("calendar event create failed", "booking_id", booking.ID, "err", err)
		return
	}
	if err := h.repo.SetCalendarEventID(ctx, booking.ID, created.ID); err != nil {
		h.logger.Warn("calendar event id persist failed", "booking_id", booking.ID, "err", err)
	}
}

func (h *BookingHandler) writeCancelResponse(w http.ResponseWriter, booking model.Booking, cancelledAt time.Time) {
	body, err := json.Marshal(bookingResponse{
		Reference:   booking.Reference,
		SlotID:      booking.SlotID,
		StartTime:   booking.StartTime.In(h.loc).Format(time.RFC3339),
		EndTime:     booking.EndTime.In(h.loc).Format(time.RFC3339),
		Status:      "cancelled",
		CancelledAt: cancelledAt.Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func newBookingReference() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "BK-" + strings.ToUpper(raw[:10])
}
