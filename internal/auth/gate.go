// Package auth implements the access-code gate in front of the provisioning
// UI. It is a single shared secret with no lockout; it only decides whether a
// session identity is issued.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"site-creator/internal/domain"
	"site-creator/internal/session"
)

// ErrAccessDenied is returned when the code does not match.
var ErrAccessDenied = errors.New("auth: access denied")

type Notifier interface {
	Notify(n domain.Notification)
}

var (
	welcomeNotification = domain.Notification{
		Title:       "🚀 Добро пожаловать!",
		Description: "Вы успешно вошли в ЮРА БЕСПЛАТНО",
		Variant:     domain.VariantDefault,
	}
	deniedNotification = domain.Notification{
		Title:       "❌ Неверный код",
		Description: "Проверьте код доступа и попробуйте снова",
		Variant:     domain.VariantDestructive,
	}
)

// Gate compares user input against the configured access code.
type Gate struct {
	secret   string
	notifier Notifier
	logger   *slog.Logger
	issue    func() (session.Identity, error)
}

func NewGate(secret string, n Notifier, logger *slog.Logger) (*Gate, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: access code must not be empty")
	}
	if n == nil {
		return nil, errors.New("auth: notifier must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{secret: secret, notifier: n, logger: logger, issue: session.Issue}, nil
}

// Authenticate issues a fresh identity when code equals the access code
// exactly. A mismatch fires a destructive notification and changes nothing.
func (g *Gate) Authenticate(code string) (session.Identity, error) {
	if subtle.ConstantTimeCompare([]byte(code), []byte(g.secret)) != 1 {
		g.logger.Warn("access code rejected")
		g.notifier.Notify(deniedNotification)
		return session.Identity{}, ErrAccessDenied
	}
	id, err := g.issue()
	if err != nil {
		return session.Identity{}, fmt.Errorf("auth: %w", err)
	}
	g.logger.Info("session started", "session", id.Token().String())
	g.notifier.Notify(welcomeNotification)
	return id, nil
}
