package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ateliernova/site-backend/services/site-service/internal/model"
	"github.com/ateliernova/site-backend/services/site-service/internal/outbox"
	"github.com/ateliernova/site-backend/services/site-service/internal/storage"
)

type FormsHandler struct {
	repo       *storage.MessageRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func NewFormsHandler(repo *storage.MessageRepository, outboxRepo *outbox.Repository, logger *slog.Logger) *FormsHandler {
	return &FormsHandler{repo: repo, outboxRepo: outboxRepo, logger: logger}
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type intakeRequest struct {
	CompanyName string `json:"company_name"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	ProjectType string `json:"project_type"`
	BudgetRange string `json:"budget_range"`
	Description string `json:"description"`
}

type formResponse struct {
	ID string `json:"id"`
}

func (h *FormsHandler) Contact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Body = strings.TrimSpace(req.Body)
	if req.Name == "" || req.Email == "" || req.Body == "" {
		http.Error(w, "name, email and body are required", http.StatusBadRequest)
		return
	}
	if !strings.Contains(req.Email, "@") {
		http.Error(w, "invalid email", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	msg := &model.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Body:    req.Body,
	}
	id, err := h.repo.InsertContact(ctx, tx, msg)
	if err != nil {
		http.Error(w, "failed to store message", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"contact_id": id,
		"name":       msg.Name,
		"email":      msg.Email,
		"subject":    msg.Subject,
		"body":       msg.Body,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "contact_message",
		AggregateID:   id,
		EventType:     outbox.TopicContactReceived,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeCreated(w, formResponse{ID: id})
}

func (h *FormsHandler) Intake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req intakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.ProjectType = strings.TrimSpace(req.ProjectType)
	req.BudgetRange = strings.TrimSpace(req.BudgetRange)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" || req.Email == "" || req.ProjectType == "" || req.Description == "" {
		http.Error(w, "name, email, project_type and description are required", http.StatusBadRequest)
		return
	}
	if !strings.Contains(req.Email, "@") {
		http.Error(w, "invalid email", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	intake := &model.IntakeRequest{
		CompanyName: req.CompanyName,
		Name:        req.Name,
		Email:       req.Email,
		ProjectType: req.ProjectType,
		BudgetRange: req.BudgetRange,
		Description: req.Description,
	}
	id, err := h.repo.InsertIntake(ctx, tx, intake)
	if err != nil {
		http.Error(w, "failed to store intake request", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"intake_id":    id,
		"company_name": intake.CompanyName,
		"name":         intake.Name,
		"email":        intake.Email,
		"project_type": intake.ProjectType,
		"budget_range": intake.BudgetRange,
		"description":  intake.Description,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "intake_request",
		AggregateID:   id,
		EventType:     outbox.TopicIntakeReceived,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeCreated(w, formResponse{ID: id})
}

func writeCreated(w http.ResponseWriter, resp any) {
	body, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}
