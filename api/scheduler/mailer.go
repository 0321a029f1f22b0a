package scheduler

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Email is an outgoing mail
type Email struct {
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Attachment is a file carried by an Email
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Mailer delivers e-mail
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SendgridMailer sends mail through the SendGrid v3 API
type SendgridMailer struct {
	APIKey    string
	FromName  string
	FromEmail string
}

// Send delivers email. SendGrid status codes of 400 and above are errors.
func (m SendgridMailer) Send(_ context.Context, email Email) error {
	if m.APIKey == "" {
		return fmt.Errorf("sendgrid api key is not set")
	}
	from := mail.NewEmail(m.FromName, m.FromEmail)
	to := mail.NewEmail("", email.To)
	message := mail.NewSingleEmail(from, email.Subject, to, email.Text, email.HTML)
	for _, a := range email.Attachments {
		att := mail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Content))
		att.SetType(a.ContentType)
		att.SetFilename(a.Filename)
		att.SetDisposition("attachment")
		message.AddAttachment(att)
	}

	client := sendgrid.NewSendClient(m.APIKey)
	response, err := client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}
	return nil
}
