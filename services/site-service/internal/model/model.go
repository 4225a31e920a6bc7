package model

import "time"

// Booking is a confirmed intake-call reservation made from the website.
type Booking struct {
	ID              string
	Reference       string
	SlotID          string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	Message         string
	StartTime       time.Time
	EndTime         time.Time
	Status          string
	CalendarEventID string
	CancelledAt     *time.Time
	CreatedAt       time.Time
}

// ContactMessage is a submission of the site's contact form.
type ContactMessage struct {
	ID        string
	Name      string
	Email     string
	Subject   string
	Body      string
	CreatedAt time.Time
}

// IntakeRequest is a submission of the project-intake form.
type IntakeRequest struct {
	ID          string
	CompanyName string
	Name        string
	Email       string
	ProjectType string
	BudgetRange string
	Description string
	CreatedAt   time.Time
}
