package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ateliernova/site-backend/services/notify-service/internal/email"
	"github.com/ateliernova/site-backend/services/notify-service/internal/storage"
)

const (
	TopicBookingConfirmed = "site.booking.confirmed.v1"
	TopicBookingCancelled = "site.booking.cancelled.v1"
	TopicContactReceived  = "site.contact.received.v1"
	TopicIntakeReceived   = "site.intake.received.v1"
)

// Log persists the outcome of each delivery attempt.
type Log interface {
	Insert(ctx context.Context, n storage.Notification) error
}

// Notifier turns site events into emails: the customer gets an
// acknowledgement, the studio inbox gets a heads-up.
type Notifier struct {
	sender      email.Sender
	log         Log
	logger      *slog.Logger
	studioEmail string
	loc         *time.Location
}

func New(sender email.Sender, log Log, logger *slog.Logger, studioEmail string, loc *time.Location) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{
		sender:      sender,
		log:         log,
		logger:      logger,
		studioEmail: strings.TrimSpace(studioEmail),
		loc:         loc,
	}
}

type bookingPayload struct {
	BookingID     string `json:"booking_id"`
	Reference     string `json:"reference"`
	SlotID        string `json:"slot_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	CancelledAt   string `json:"cancelled_at"`
}

type contactPayload struct {
	ContactID string `json:"contact_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

type intakePayload struct {
	IntakeID    string `json:"intake_id"`
	CompanyName string `json:"company_name"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	ProjectType string `json:"project_type"`
	BudgetRange string `json:"budget_range"`
	Description string `json:"description"`
}

// Handle routes one event to its email flow. Unknown topics and malformed
// payloads are logged and dropped; retrying them cannot succeed.
func (n *Notifier) Handle(ctx context.Context, topic string, payload []byte) error {
	switch topic {
	case TopicBookingConfirmed:
		return n.handleBookingConfirmed(ctx, payload)
	case TopicBookingCancelled:
		return n.handleBookingCancelled(ctx, payload)
	case TopicContactReceived:
		return n.handleContact(ctx, payload)
	case TopicIntakeReceived:
		return n.handleIntake(ctx, payload)
	default:
		n.logger.Error("unknown topic", "topic", topic)
		return nil
	}
}

func (n *Notifier) handleBookingConfirmed(ctx context.Context, payload []byte) error {
	var p bookingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		n.logger.Error("invalid booking payload", "err", err)
		return nil
	}
	if p.BookingID == "" || p.Reference == "" || p.CustomerEmail == "" {
		n.logger.Error("missing booking fields", "booking_id", p.BookingID)
		return nil
	}

	when := n.formatSlotTime(p.StartTime)
	clientBody := fmt.Sprintf(
		"Hello %s,\n\nYour consultation with Atelier Nova is confirmed for %s.\n\nBooking reference: %s\n\nNeed to reschedule? Reply to this email or cancel online with your reference.\n",
		p.CustomerName, when, p.Reference,
	)
	if err := n.deliver(ctx, "booking", p.BookingID, p.CustomerEmail, "Your consultation is confirmed", clientBody); err != nil {
		return err
	}

	studioBody := fmt.Sprintf(
		"New booking %s\n\nClient: %s <%s>\nSlot: %s (%s)\n",
		p.Reference, p.CustomerName, p.CustomerEmail, p.SlotID, when,
	)
	return n.deliverToStudio(ctx, "booking", p.BookingID, "New booking "+p.Reference, studioBody)
}

func (n *Notifier) handleBookingCancelled(ctx context.Context, payload []byte) error {
	var p bookingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		n.logger.Error("invalid booking payload", "err", err)
		return nil
	}
	if p.BookingID == "" || p.Reference == "" || p.CustomerEmail == "" {
		n.logger.Error("missing booking fields", "booking_id", p.BookingID)
		return nil
	}

	clientBody := fmt.Sprintf(
		"Hello %s,\n\nYour consultation %s scheduled for %s has been cancelled.\n\nYou can book a new slot on our website at any time.\n",
		p.CustomerName, p.Reference, n.formatSlotTime(p.StartTime),
	)
	if err := n.deliver(ctx, "booking", p.BookingID, p.CustomerEmail, "Your consultation was cancelled", clientBody); err != nil {
		return err
	}

	studioBody := fmt.Sprintf(
		"Booking %s cancelled\n\nClient: %s <%s>\nSlot: %s\nCancelled at: %s\n",
		p.Reference, p.CustomerName, p.CustomerEmail, p.SlotID, p.CancelledAt,
	)
	return n.deliverToStudio(ctx, "booking", p.BookingID, "Booking cancelled "+p.Reference, studioBody)
}

func (n *Notifier) handleContact(ctx context.Context, payload []byte) error {
	var p contactPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		n.logger.Error("invalid contact payload", "err", err)
		return nil
	}
	if p.ContactID == "" || p.Email == "" {
		n.logger.Error("missing contact fields", "contact_id", p.ContactID)
		return nil
	}

	ackBody := fmt.Sprintf(
		"Hello %s,\n\nThanks for reaching out to Atelier Nova. We received your message and will get back to you within one business day.\n",
		p.Name,
	)
	if err := n.deliver(ctx, "contact_message", p.ContactID, p.Email, "We received your message", ackBody); err != nil {
		return err
	}

	subject := p.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	studioBody := fmt.Sprintf(
		"Contact form message from %s <%s>\n\nSubject: %s\n\n%s\n",
		p.Name, p.Email, subject, p.Body,
	)
	return n.deliverToStudio(ctx, "contact_message", p.ContactID, "Contact form: "+subject, studioBody)
}

func (n *Notifier) handleIntake(ctx context.Context, payload []byte) error {
	var p intakePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		n.logger.Error("invalid intake payload", "err", err)
		return nil
	}
	if p.IntakeID == "" || p.Email == "" {
		n.logger.Error("missing intake fields", "intake_id", p.IntakeID)
		return nil
	}

	ackBody := fmt.Sprintf(
		"Hello %s,\n\nThanks for telling us about your project. We review every brief personally and will reply with next steps shortly.\n",
		p.Name,
	)
	if err := n.deliver(ctx, "intake_request", p.IntakeID, p.Email, "We received your project brief", ackBody); err != nil {
		return err
	}

	studioBody := fmt.Sprintf(
		"Project brief from %s <%s>\n\nCompany: %s\nProject type: %s\nBudget: %s\n\n%s\n",
		p.Name, p.Email, p.CompanyName, p.ProjectType, p.BudgetRange, p.Description,
	)
	return n.deliverToStudio(ctx, "intake_request", p.IntakeID, "New project brief: "+p.ProjectType, studioBody)
}

func (n *Notifier) deliver(ctx context.Context, sourceType, sourceID, recipient, subject, body string) error {
	record := storage.Notification{
		SourceType: sourceType,
		SourceID:   sourceID,
		Recipient:  recipient,
		Subject:    subject,
		Status:     "sent",
	}
	if err := n.sender.Send(recipient, subject, body); err != nil {
		n.logger.Error("email send failed", "err", err, "recipient", recipient, "source_id", sourceID)
		record.Status = "failed"
		record.FailureReason = err.Error()
	}
	return n.log.Insert(ctx, record)
}

func (n *Notifier) deliverToStudio(ctx context.Context, sourceType, sourceID, subject, body string) error {
	if n.studioEmail == "" {
		return nil
	}
	return n.deliver(ctx, sourceType, sourceID, n.studioEmail, subject, body)
}

// formatSlotTime renders an RFC 3339 timestamp for email copy in the studio
// timezone. Producers emit UTC.
func (n *Notifier) formatSlotTime(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.In(n.loc).Format("Monday 2 January 2006, 15:04 MST")
}
