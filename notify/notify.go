// Package notify turns lifecycle events into outbound mail. The core
// hands it event values; it renders them through templates and passes
// the finished message to a Sender. Delivery is fire and forget:
// failures are the caller's to log, never to retry.
package notify

import (
	"context"
	"fmt"

	"github.com/lborres/tanod/core"
)

// Message is the mail payload handed to a Sender.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	HTML    string `json:"html"`
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds the sender-independent mail settings.
type Config struct {
	From     string
	SiteName string
}

// Mailer implements core.Notifier by rendering each event kind to a
// mail message.
type Mailer struct {
	cfg       Config
	sender    Sender
	templates map[core.EventKind]*mailTemplate
}

var _ core.Notifier = (*Mailer)(nil)

func NewMailer(cfg Config, sender Sender) *Mailer {
	if cfg.SiteName == "" {
		cfg.SiteName = "our site"
	}
	return &Mailer{
		cfg:       cfg,
		sender:    sender,
		templates: defaultTemplates(),
	}
}

// Notify renders and sends the mail for one lifecycle event.
// Events without a mail template (guest flows) are ignored.
func (m *Mailer) Notify(ctx context.Context, ev core.Event) error {
	tmpl, ok := m.templates[ev.Kind]
	if !ok {
		return nil
	}
	if ev.Email == "" {
		return fmt.Errorf("event %s has no recipient", ev.Kind)
	}

	body, err := tmpl.render(mailParams{
		Email:    ev.Email,
		Token:    ev.Token,
		SiteName: m.cfg.SiteName,
	})
	if err != nil {
		return fmt.Errorf("failed to render %s mail: %w", ev.Kind, err)
	}

	return m.sender.Send(ctx, Message{
		From:    m.cfg.From,
		To:      ev.Email,
		Subject: tmpl.subject,
		Body:    body,
		HTML:    body,
	})
}
