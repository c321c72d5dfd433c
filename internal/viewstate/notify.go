package viewstate

import (
	log "github.com/sirupsen/logrus"
)

// Level: важность уведомления.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Notification: сообщение пользователю о результате операции.
type Notification struct {
	Level   Level
	Message string
	OrderID string
	Err     error
}

// Notifier доставляет уведомления в интерфейс.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc адаптирует функцию к Notifier.
type NotifierFunc func(n Notification)

// Notify вызывает f.
func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier пишет уведомления в logrus.
type LogNotifier struct {
	logger *log.Entry
}

// NewLogNotifier создаёт notifier поверх logger.
func NewLogNotifier(logger *log.Entry) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify пишет уведомление с уровнем, соответствующим Level.
func (l *LogNotifier) Notify(n Notification) {
	entry := l.logger
	if n.OrderID != "" {
		entry = entry.WithField("order_id", n.OrderID)
	}
	if n.Err != nil {
		entry = entry.WithError(n.Err)
	}
	if n.Level == LevelError {
		entry.Error(n.Message)
		return
	}
	entry.Info(n.Message)
}
