// Package notify delivers renewal reminders to drivers and guards them
// against duplicates.
package notify

import (
	"context"
	"time"

	"taxidocs/pkg/logger"
)

//go:generate mockgen -source=notify.go -destination=mocks/mocks.go -package=mocks Notifier

// Notification is a single reminder addressed to a driver.
type Notification struct {
	ID         string    `json:"id"`
	DocumentID int64     `json:"document_id"`
	DriverID   int64     `json:"driver_id"`
	DocType    string    `json:"doc_type"`
	ExpiryDate time.Time `json:"expiry_date"`
	Message    string    `json:"message"`
	// Key is the dedupe key the reminder was admitted under.
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier only writes reminders to the log.
type LogNotifier struct {
	log logger.ILogger
}

func NewLogNotifier(log logger.ILogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.log.Info("reminder",
		logger.String("id", n.ID),
		logger.Int64("document_id", n.DocumentID),
		logger.Int64("driver_id", n.DriverID),
		logger.String("doc_type", n.DocType),
		logger.String("message", n.Message),
	)
	return nil
}
