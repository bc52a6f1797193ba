package email

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/resend/resend-go/v2"
	"github.com/rxledger/statements/internal/config"
	"golang.org/x/time/rate"
)

// EmailClient represents an email client wrapper
type EmailClient struct {
	client      *resend.Client
	enabled     bool
	fromAddress string
	replyTo     string
	limiter     *rate.Limiter
}

// NewEmailClient creates a new email client. A missing API key disables it.
func NewEmailClient(cfg *config.Configuration) *EmailClient {
	if !cfg.Email.Enabled || cfg.Email.APIKey == "" {
		return &EmailClient{
			enabled: false,
		}
	}

	from := cfg.Email.FromAddress
	if cfg.Email.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.Email.FromName, cfg.Email.FromAddress)
	}

	return &EmailClient{
		client:      resend.NewClient(cfg.Email.APIKey),
		enabled:     true,
		fromAddress: from,
		replyTo:     cfg.Email.ReplyTo,
		limiter:     newLimiter(cfg.Email.RateLimit),
	}
}

// newLimiter paces sends to the provider's request rate. Zero means unlimited.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// IsEnabled returns whether the email client is enabled
func (c *EmailClient) IsEnabled() bool {
	return c.enabled
}

// GetFromAddress returns the default from address
func (c *EmailClient) GetFromAddress() string {
	return c.fromAddress
}

// SendEmail sends an HTML and text email with optional attachments
func (c *EmailClient) SendEmail(ctx context.Context, msg *Message) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("email client is disabled")
	}

	params := &resend.SendEmailRequest{
		From:    c.fromAddress,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	for _, a := range msg.Attachments {
		params.Attachments = append(params.Attachments, &resend.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: ContentType(a.Filename),
		})
	}

	if c.replyTo != "" {
		params.ReplyTo = c.replyTo
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for send slot: %w", err)
	}

	sent, err := c.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	return sent.Id, nil
}

// ContentType returns the MIME type registered for the file's extension, or
// an empty string when the extension is unknown
func ContentType(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	kind := filetype.GetType(ext)
	if kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}
