package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

type Sender interface {
	Send(to string, subject string, body string) error
}

// SMTPSender delivers mail over unauthenticated SMTP. Local development runs
// against Mailpit; production points at an internal relay.
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(addr string, from string) *SMTPSender {
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@ateliernova.fr"
	}
	return &SMTPSender{addr: strings.TrimSpace(addr), from: from}
}

func (s *SMTPSender) Send(to string, subject string, body string) error {
	// Minimal RFC 5322 message, plain text only.
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		s.from, to, subject, body,
	)
	return smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg))
}
