package storage

import (
	"context"

	"github.com/ateliernova/site-backend/libs/db"
	"github.com/ateliernova/site-backend/services/site-service/internal/model"
	"github.com/jackc/pgx/v5"
)

// MessageRepository stores contact-form and project-intake submissions.
type MessageRepository struct {
	pool *db.Pool
}

func NewMessageRepository(pool *db.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *MessageRepository) InsertContact(ctx context.Context, tx pgx.Tx, m *model.ContactMessage) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO contact_messages (name, email, subject, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, m.Name, m.Email, m.Subject, m.Body).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *MessageRepository) InsertIntake(ctx context.Context, tx pgx.Tx, m *model.IntakeRequest) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO intake_requests (company_name, name, email, project_type, budget_range, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, m.CompanyName, m.Name, m.Email, m.ProjectType, m.BudgetRange, m.Description).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
