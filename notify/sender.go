package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"github.com/lborres/tanod/logging"
)

// LogSender writes messages to the log instead of delivering them.
// Useful in development and as the default when no SMTP relay is
// configured.
type LogSender struct {
	log logging.Logger
}

var _ Sender = (*LogSender)(nil)

func NewLogSender(log logging.Logger) *LogSender {
	if log == nil {
		log = logging.Default()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.log.Info(ctx, "mail (not delivered)", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

// SMTPConfig holds relay settings for SMTPSender.
type SMTPConfig struct {
	Addr     string // host:port
	Username string
	Password string
}

// SMTPSender delivers messages through a plain SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
}

var _ Sender = (*SMTPSender)(nil)

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	var auth smtp.Auth
	if s.cfg.Username != "" {
		host := s.cfg.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, host)
	}

	data := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		msg.From, msg.To, msg.Subject, msg.Body)

	if err := smtp.SendMail(s.cfg.Addr, auth, msg.From, []string{msg.To}, []byte(data)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// RecordingSender collects sent messages in memory. Test helper.
type RecordingSender struct {
	mu       sync.Mutex
	messages []Message
}

var _ Sender = (*RecordingSender)(nil)

func NewRecordingSender() *RecordingSender {
	return &RecordingSender{}
}

func (s *RecordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (s *RecordingSender) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}
