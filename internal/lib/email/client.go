// Package email renders the embedded HTML templates and sends them through
// Resend.
package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sync"

	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/deppfellow/partners/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

type Client struct {
	client *resend.Client
	from   string
	appURL string

	logger *zerolog.Logger

	mu        sync.Mutex
	templates map[Template]*template.Template
}

func NewClient(cfg *config.Config, logger *zerolog.Logger) *Client {
	return &Client{
		client:    resend.NewClient(cfg.Integration.ResendAPIKey),
		from:      cfg.Integration.EmailFrom,
		appURL:    cfg.Integration.AppURL,
		logger:    logger,
		templates: make(map[Template]*template.Template),
	}
}

// Render executes templateName with data. AppURL is always available to
// templates for building links.
func (c *Client) Render(templateName Template, data map[string]string) (string, error) {
	tmpl, err := c.lookup(templateName)
	if err != nil {
		return "", err
	}

	vars := make(map[string]string, len(data)+1)
	vars["AppURL"] = c.appURL
	for k, v := range data {
		vars[k] = v
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, vars); err != nil {
		return "", errors.Wrapf(err, "failed to execute email template %s", templateName)
	}
	return body.String(), nil
}

func (c *Client) lookup(name Template) (*template.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tmpl, ok := c.templates[name]; ok {
		return tmpl, nil
	}

	tmpl, err := template.ParseFS(templateFS, fmt.Sprintf("templates/%s.html", name))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse email template %s", name)
	}
	c.templates[name] = tmpl
	return tmpl, nil
}

func (c *Client) SendEmail(to, subject string, templateName Template, data map[string]string) error {
	html, err := c.Render(templateName, data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}

	sent, err := c.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Debug().
		Str("template", string(templateName)).
		Str("email_id", sent.Id).
		Msg("email accepted by resend")

	return nil
}
