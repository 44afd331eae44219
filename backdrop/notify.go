package backdrop

import (
	"context"
	"log/slog"
	"time"
)

// NotificationLevel is the severity of a user-visible notification.
type NotificationLevel int

const (
	NotifyInfo NotificationLevel = iota
	NotifyError
)

func (l NotificationLevel) String() string {
	if l == NotifyError {
		return "error"
	}
	return "info"
}

// Notification is a banner shown to the user.
type Notification struct {
	Level   NotificationLevel
	Message string
	Dismiss time.Duration // Auto-dismiss delay
}

// Notifier displays notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to a logger. Used when the host has no UI.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Level == NotifyError {
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, "notification", "message", n.Message, "dismiss", n.Dismiss)
}

// Messages for the two failure classes that reach the user.
const (
	msgFallbackActive = "Your device does not support the full 3D backdrop. Showing a simplified version."
	msgStartupFailed  = "The background animation could not start. Try reloading the page."
)

const (
	fallbackNoticeDismiss = 5 * time.Second
	failureNoticeDismiss  = 10 * time.Second
)
