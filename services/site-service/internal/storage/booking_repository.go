package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ateliernova/site-backend/libs/db"
	"github.com/ateliernova/site-backend/services/site-service/internal/availability"
	"github.com/ateliernova/site-backend/services/site-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// IsConflict reports a unique or exclusion constraint violation, which for
// bookings means the slot was taken concurrently.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" || pgErr.Code == "23P01"
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings
			(reference, slot_id, customer_name, customer_email, customer_phone, message, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, b.Reference, b.SlotID, b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.Message,
		b.StartTime, b.EndTime, b.Status).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// SetCalendarEventID records the remote calendar event backing a booking.
// Runs outside the booking tx: the event is created after commit.
func (r *BookingRepository) SetCalendarEventID(ctx context.Context, bookingID, eventID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE bookings SET calendar_event_id = $2 WHERE id = $1
	`, bookingID, eventID)
	return err
}

func (r *BookingRepository) GetByReference(ctx context.Context, reference string) (model.Booking, error) {
	var b model.Booking
	err := r.pool.QueryRow(ctx, `
		SELECT id, reference, slot_id, customer_name, customer_email, customer_phone, message,
			start_time, end_time, status, calendar_event_id, cancelled_at, created_at
		FROM bookings
		WHERE reference = $1
	`, reference).Scan(
		&b.ID, &b.Reference, &b.SlotID, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone, &b.Message,
		&b.StartTime, &b.EndTime, &b.Status, &b.CalendarEventID, &b.CancelledAt, &b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (model.Booking, error) {
	var b model.Booking
	err := tx.QueryRow(ctx, `
		SELECT id, reference, slot_id, customer_name, customer_email, customer_phone, message,
			start_time, end_time, status, calendar_event_id, cancelled_at, created_at
		FROM bookings
		WHERE reference = $1
		FOR UPDATE
	`, reference).Scan(
		&b.ID, &b.Reference, &b.SlotID, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone, &b.Message,
		&b.StartTime, &b.EndTime, &b.Status, &b.CalendarEventID, &b.CancelledAt, &b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, bookingID string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = now()
		WHERE id = $1
		RETURNING cancelled_at
	`, bookingID).Scan(&cancelledAt)
	return cancelledAt, err
}

// BusyIntervals returns the confirmed bookings overlapping [from, to) as busy
// time, making the repository a second availability.BusySource alongside the
// remote calendar.
func (r *BookingRepository) BusyIntervals(ctx context.Context, from, to time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM bookings
		WHERE status = 'confirmed'
			AND start_time < $2
			AND end_time > $1
		ORDER BY start_time ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return intervals, nil
}

var _ availability.BusySource = (*BookingRepository)(nil)
