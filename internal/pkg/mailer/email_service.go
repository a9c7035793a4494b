package mailer

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"gopkg.in/gomail.v2"
)

var ErrNotConfigured = errors.New("mailer: smtp host not configured")

type IEmailService interface {
	SendAgentReply(toEmail, subject, body string) error
}

// Sender abstracts gomail's dialer so messages can be captured in tests.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type emailService struct {
	sender      Sender
	senderEmail string
	senderName  string
}

func NewEmailService(host string, port int, username, password, senderName string) IEmailService {
	var sender Sender
	if host != "" {
		sender = gomail.NewDialer(host, port, username, password)
	}
	return NewEmailServiceWithSender(sender, username, senderName)
}

func NewEmailServiceWithSender(sender Sender, senderEmail, senderName string) IEmailService {
	return &emailService{
		sender:      sender,
		senderEmail: senderEmail,
		senderName:  senderName,
	}
}

// SendAgentReply mails a generated reply. The body is sent as plain text
// with an HTML alternative keeping paragraph breaks.
func (s *emailService) SendAgentReply(toEmail, subject, body string) error {
	if s.sender == nil {
		return ErrNotConfigured
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	m.AddAlternative("text/html", renderHTML(body))

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send agent reply to %s: %w", toEmail, err)
	}
	return nil
}

func renderHTML(body string) string {
	var sb strings.Builder
	sb.WriteString(`<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">`)
	for _, para := range strings.Split(body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		sb.WriteString("</p>")
	}
	sb.WriteString("</div>")
	return sb.String()
}
