// Package mail sends the account emails (password reset, address
// verification) through a pluggable backend.
package mail

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/apikit/internal/logging"
)

// Backend names accepted by New.
const (
	BackendConsole = "console"
	BackendSMTP    = "smtp"
	BackendMemory  = "memory"
)

type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Settings select and configure the backend.
type Settings struct {
	Backend  string
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// New returns the Sender for s.Backend.
func New(s Settings, logger logging.Logger) (Sender, error) {
	switch s.Backend {
	case BackendConsole, "":
		return NewConsoleSender(logger), nil
	case BackendSMTP:
		if s.Host == "" {
			return nil, fmt.Errorf("smtp backend requires a host")
		}
		return NewSMTPSender(s.Host, s.Port, s.Username, s.Password), nil
	case BackendMemory:
		return NewMemorySender(), nil
	default:
		return nil, fmt.Errorf("unknown email backend %q", s.Backend)
	}
}

// ConsoleSender writes messages to the log instead of delivering them.
type ConsoleSender struct {
	logger logging.Logger
}

func NewConsoleSender(logger logging.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger.With("module", "mail")}
}

func (s *ConsoleSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info(ctx, "email", "from", msg.From, "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

// MemorySender keeps messages in memory. Safe for concurrent use.
type MemorySender struct {
	mu   sync.Mutex
	sent []Message
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

// Sent returns a copy of the messages sent so far.
func (s *MemorySender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
