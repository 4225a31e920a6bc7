package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRecord caches the final response of a booking attempt so a
// retried request with the same Idempotency-Key replays it instead of
// double-booking.
type IdempotencyRecord struct {
	IdempotencyKey  string
	BookingID       string
	StatusCode      int
	ResponsePayload []byte
}

func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key)
		VALUES ($1)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, key, bookingID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = $2,
			status_code = $3,
			response_payload = $4,
			updated_at = now()
		WHERE idempotency_key = $1
	`, key, bookingID, statusCode, response)
	return err
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var bookingID *string
	var statusCode *int
	err := tx.QueryRow(ctx, `
		SELECT idempotency_key, booking_id, status_code, response_payload
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(&rec.IdempotencyKey, &bookingID, &statusCode, &rec.ResponsePayload)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if bookingID != nil {
		rec.BookingID = *bookingID
	}
	if statusCode != nil {
		rec.StatusCode = *statusCode
	}
	return rec, nil
}
