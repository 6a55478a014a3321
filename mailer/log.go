package mailer

import (
	"context"
	"sync"

	accounts "github.com/goliatone/go-accounts"
)

// Message is a delivered email as seen by LogSender
type Message struct {
	To      string
	Subject string
	Body    string
}

// LogSender writes emails to the logger instead of delivering them. Use it
// in development when no relay is configured.
type LogSender struct {
	logger accounts.Logger

	mu   sync.Mutex
	sent []Message
}

var _ accounts.Mailer = (*LogSender)(nil)

func NewLogSender(logger accounts.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.sent = append(s.sent, Message{To: to, Subject: subject, Body: body})
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("====== SENDING EMAIL ======\nto: %s\nsubject: %s\n%s", to, subject, body)
	}

	return nil
}

// Sent returns a copy of every message seen so far
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}
