package storage

import (
	"context"

	"github.com/ateliernova/site-backend/libs/db"
)

// Notification is one delivery attempt. SourceType names the aggregate that
// triggered the email (booking, contact_message, intake_request).
type Notification struct {
	SourceType    string
	SourceID      string
	Recipient     string
	Subject       string
	Status        string
	FailureReason string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (source_type, source_id, recipient, subject, status, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.SourceType, n.SourceID, n.Recipient, n.Subject, n.Status, n.FailureReason)
	return err
}
