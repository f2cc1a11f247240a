// Package notify holds Notifier implementations for authcore.Engine.
//
// Delivery through a real provider (SMTP, SES, a push service) belongs to
// the host application. The notifiers here log or retain messages and are
// what the bundled server and tests use.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrEthical07/authcore"
)

// Logger writes one structured record per message. Token values are never
// logged.
type Logger struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogger logs at Info on logger (slog.Default when nil).
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With("component", "notify"), level: slog.LevelInfo}
}

func (l *Logger) Send(ctx context.Context, msg authcore.Message) error {
	attrs := []slog.Attr{
		slog.String("kind", string(msg.Kind)),
		slog.String("user_id", msg.UserID),
		slog.String("to", MaskEmail(msg.To)),
		slog.Bool("has_token", msg.Token != ""),
	}
	for k, v := range msg.Data {
		attrs = append(attrs, slog.String("data."+k, v))
	}
	l.logger.LogAttrs(ctx, l.level, "notification", attrs...)
	return nil
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		if email == "" {
			return ""
		}
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// Outbox retains the most recent messages in memory.
type Outbox struct {
	mu   sync.Mutex
	max  int
	msgs []authcore.Message
}

// NewOutbox keeps at most max messages (100 when max <= 0).
func NewOutbox(max int) *Outbox {
	if max <= 0 {
		max = 100
	}
	return &Outbox{max: max}
}

func (o *Outbox) Send(_ context.Context, msg authcore.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.msgs) == o.max {
		copy(o.msgs, o.msgs[1:])
		o.msgs = o.msgs[:len(o.msgs)-1]
	}
	o.msgs = append(o.msgs, cloneMessage(msg))
	return nil
}

// Messages returns a copy of the retained messages, oldest first.
func (o *Outbox) Messages() []authcore.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]authcore.Message, len(o.msgs))
	for i, m := range o.msgs {
		out[i] = cloneMessage(m)
	}
	return out
}

// Last returns the newest message of kind sent to to.
func (o *Outbox) Last(kind authcore.MessageKind, to string) (authcore.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].Kind == kind && o.msgs[i].To == to {
			return cloneMessage(o.msgs[i]), true
		}
	}
	return authcore.Message{}, false
}

func cloneMessage(m authcore.Message) authcore.Message {
	if m.Data != nil {
		data := make(map[string]string, len(m.Data))
		for k, v := range m.Data {
			data[k] = v
		}
		m.Data = data
	}
	return m
}

// Multi sends to every notifier and returns the first error.
type Multi []authcore.Notifier

func (m Multi) Send(ctx context.Context, msg authcore.Message) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ authcore.Notifier = (*Logger)(nil)
	_ authcore.Notifier = (*Outbox)(nil)
	_ authcore.Notifier = Multi(nil)
)
