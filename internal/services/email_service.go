package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v2"
	"github.com/sjperalta/covenantops-api/pkg/logger"
)

//go:embed templates/email/*.html
var emailTemplates embed.FS

// Mailer delivers one HTML email
type Mailer interface {
	Send(ctx context.Context, to []string, subject, html string) error
}

// ResendMailer sends through the Resend API
type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey), from: from}
}

func (m *ResendMailer) Send(ctx context.Context, to []string, subject, html string) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      to,
		Subject: subject,
		Html:    html,
	}
	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	logger.FromContext(ctx).Info("email sent", "id", sent.Id, "to", to, "subject", subject)
	return nil
}

// LogMailer only logs; used when no Resend API key is configured
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to []string, subject, html string) error {
	logger.FromContext(ctx).Info("email not sent, no RESEND_API_KEY configured", "to", to, "subject", subject, "bytes", len(html))
	return nil
}

// NewMailer picks Resend when an API key is present
func NewMailer(apiKey, from string) Mailer {
	if apiKey == "" {
		return LogMailer{}
	}
	return NewResendMailer(apiKey, from)
}

// EmailService renders the embedded templates and hands them to a Mailer
type EmailService struct {
	mailer Mailer
}

func NewEmailService(mailer Mailer) *EmailService {
	return &EmailService{mailer: mailer}
}

// SendDigest emails a reminder digest
func (s *EmailService) SendDigest(ctx context.Context, to []string, digest *Digest) error {
	body, err := s.renderTemplate("digest.html", digest)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("[CovenantOps] %s: %d overdue, %d due soon", digest.LoanTitle, len(digest.Overdue), len(digest.DueSoon))
	return s.mailer.Send(ctx, to, subject, body)
}

func (s *EmailService) renderTemplate(name string, data interface{}) (string, error) {
	tmpl, err := template.ParseFS(emailTemplates, "templates/email/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}
