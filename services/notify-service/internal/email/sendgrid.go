package email

import (
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender delivers mail through the SendGrid API. Used in production
// where no SMTP relay is available.
type SendGridSender struct {
	apiKey    string
	fromName  string
	fromEmail string
}

func NewSendGridSender(apiKey, fromName, fromEmail string) (*SendGridSender, error) {
	apiKey = strings.TrimSpace(apiKey)
	fromEmail = strings.TrimSpace(fromEmail)
	if apiKey == "" || fromEmail == "" {
		return nil, fmt.Errorf("sendgrid: api key and from email are required")
	}
	if strings.TrimSpace(fromName) == "" {
		fromName = "Atelier Nova"
	}
	return &SendGridSender{apiKey: apiKey, fromName: fromName, fromEmail: fromEmail}, nil
}

func (s *SendGridSender) Send(to string, subject string, body string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), body, "")

	client := sendgrid.NewSendClient(s.apiKey)
	resp, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
