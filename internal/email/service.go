package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/rxledger/statements/internal/config"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
)

const statementTemplate = `<p>Dear {{recipient_name}},</p>
<p>Please find attached your statement for {{period}}.</p>
<p>If you have any questions about this statement, reply to this email or call us at {{business_phone}}.</p>
<p>{{business_name}}</p>`

const statementText = `Dear {{recipient_name}},

Please find attached your statement for {{period}}.

{{business_name}}`

// Sender delivers statement files by email
type Sender interface {
	SendStatement(ctx context.Context, req *StatementEmail) (string, error)
}

// Email handles email operations
type Email struct {
	client *EmailClient
	from   config.BusinessInfo
	prefix string
	logger *logger.Logger
}

// NewEmail creates a new email service
func NewEmail(client *EmailClient, cfg *config.Configuration, logger *logger.Logger) Sender {
	return &Email{
		client: client,
		from:   cfg.Statement.From,
		prefix: cfg.Statement.AttachmentPrefix,
		logger: logger,
	}
}

// SendStatement emails the statement file as an attachment and returns the
// provider message id. A disabled client is a delivery failure.
func (s *Email) SendStatement(ctx context.Context, req *StatementEmail) (string, error) {
	if !s.client.IsEnabled() {
		s.logger.Warnw("email client is disabled, statement not sent",
			"to", req.ToAddress,
			"file", req.Filename,
		)
		return "", ierr.NewError("email client is disabled").
			WithHint("Email delivery is not configured").
			Mark(ierr.ErrInvalidOperation)
	}

	data := map[string]interface{}{
		"recipient_name": req.RecipientName,
		"period":         req.Period,
		"business_name":  s.from.Name,
		"business_phone": s.from.Phone,
	}

	subject := fmt.Sprintf("%s statement for %s", s.from.Name, req.Period)
	msg := &Message{
		To:      req.ToAddress,
		Subject: subject,
		HTML:    s.replacePlaceholders(statementTemplate, data),
		Text:    s.replacePlaceholders(statementText, data),
		Attachments: []Attachment{{
			Filename: s.attachmentName(req.Filename),
			Content:  req.Content,
		}},
	}

	messageID, err := s.client.SendEmail(ctx, msg)
	if err != nil {
		s.logger.Errorw("failed to send statement email",
			"error", err,
			"to", req.ToAddress,
			"subject", subject,
		)
		return "", ierr.WithError(err).
			WithHint("Failed to send statement email").
			Mark(ierr.ErrHTTPClient)
	}

	s.logger.Infow("statement email sent successfully",
		"message_id", messageID,
		"to", req.ToAddress,
		"subject", subject,
	)
	return messageID, nil
}

// attachmentName prefixes the stored file name, for example Statement_ORG_7_20240401093000.xlsx
func (s *Email) attachmentName(filename string) string {
	if s.prefix == "" {
		return filename
	}
	return s.prefix + "_" + filename
}

// replacePlaceholders replaces placeholders in the template with actual data
func (s *Email) replacePlaceholders(template string, data map[string]interface{}) string {
	result := template
	for key, value := range data {
		placeholder := fmt.Sprintf("{{%s}}", key)
		result = strings.ReplaceAll(result, placeholder, fmt.Sprintf("%v", value))
	}
	return result
}
