// Package notify delivers transient user notifications. Every sink is
// fire-and-forget: Notify never blocks on the consumer.
package notify

import (
	"context"
	"log/slog"

	"site-creator/internal/domain"
)

// Logger writes notifications to a structured logger.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (l *Logger) Notify(n domain.Notification) {
	level := slog.LevelInfo
	if n.Variant == domain.VariantDestructive {
		level = slog.LevelWarn
	}
	l.logger.Log(context.Background(), level, "notification", "title", n.Title, "description", n.Description, "variant", string(n.Variant))
}

// Channel hands notifications to a reader such as the terminal UI. When the
// buffer is full the notification is dropped.
type Channel struct {
	ch chan domain.Notification
}

func NewChannel(size int) *Channel {
	if size <= 0 {
		size = 8
	}
	return &Channel{ch: make(chan domain.Notification, size)}
}

func (c *Channel) Notify(n domain.Notification) {
	select {
	case c.ch <- n:
	default:
	}
}

// C exposes the receive side.
func (c *Channel) C() <-chan domain.Notification {
	return c.ch
}

// Sink is anything that accepts notifications.
type Sink interface {
	Notify(n domain.Notification)
}

// Fanout forwards every notification to each sink in order.
type Fanout []Sink

func (f Fanout) Notify(n domain.Notification) {
	for _, s := range f {
		if s != nil {
			s.Notify(n)
		}
	}
}

// Func adapts a plain function to Sink.
type Func func(domain.Notification)

func (f Func) Notify(n domain.Notification) { f(n) }
