package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/expiry"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/metrics"
	"taxidocs/pkg/models"
	"taxidocs/pkg/notify"
	"taxidocs/storage"
)

type ReminderResult string

const (
	ReminderQueued    ReminderResult = "queued"
	ReminderDuplicate ReminderResult = "duplicate"
)

// markerTTL outlives the calendar day encoded in the key.
const markerTTL = 48 * time.Hour

type SweepResult struct {
	Scanned    int `json:"scanned"`
	Queued     int `json:"queued"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

type ReminderService interface {
	SendReminder(ctx context.Context, actor models.Actor, id int64) (ReminderResult, error)
	SweepReminders(ctx context.Context, now time.Time) (SweepResult, error)
}

type reminderService struct {
	docs       storage.IDocumentStorage
	caps       CapabilityResolver
	marker     notify.Marker
	dispatcher *Dispatcher
	log        logger.ILogger
	now        func() time.Time
}

// ReminderKey is the dedupe key for a document on the calendar day of now.
func ReminderKey(documentID int64, now time.Time) string {
	return fmt.Sprintf("reminder:%d:%s", documentID, expiry.FormatDate(now))
}

func (s *reminderService) SendReminder(ctx context.Context, actor models.Actor, id int64) (res ReminderResult, err error) {
	ctx, span := startSpan(ctx, "reminder.SendReminder", actor, attribute.Int64("document.id", id))
	defer func() { endSpan(span, err) }()

	if err = s.caps.Require(ctx, actor, models.ModuleDocuments, models.CapEdit); err != nil {
		return "", err
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	now := s.now()
	if !expiry.ReminderAvailable(doc, now) {
		return "", fmt.Errorf("no reminder available for document %d: %w", id, errs.ErrValidation)
	}
	return s.enqueue(ctx, doc, now)
}

// SweepReminders queues a reminder for every reviewed document whose expiry
// falls inside the window at now. Documents already reminded today count as
// duplicates.
func (s *reminderService) SweepReminders(ctx context.Context, now time.Time) (res SweepResult, err error) {
	actor := models.SystemActor
	ctx, span := startSpan(ctx, "reminder.SweepReminders", actor)
	defer func() { endSpan(span, err) }()

	if err = s.caps.Require(ctx, actor, models.ModuleDocuments, models.CapEdit); err != nil {
		return res, err
	}
	from, to := expiry.WindowBounds(now)
	docs, err := s.docs.ListExpiring(ctx, from, to)
	if err != nil {
		return res, err
	}
	for _, doc := range docs {
		res.Scanned++
		if !expiry.ReminderAvailable(doc, now) {
			continue
		}
		r, err := s.enqueue(ctx, doc, now)
		switch {
		case err != nil:
			res.Failed++
			s.log.Warning("sweep could not queue reminder", logger.Int64("document_id", doc.ID), logger.Error(err))
			if errors.Is(err, context.Canceled) {
				return res, err
			}
		case r == ReminderDuplicate:
			res.Duplicates++
		default:
			res.Queued++
		}
	}
	s.log.Info("reminder sweep finished",
		logger.Int("scanned", res.Scanned),
		logger.Int("queued", res.Queued),
		logger.Int("duplicates", res.Duplicates),
		logger.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *reminderService) enqueue(ctx context.Context, doc *models.Document, now time.Time) (ReminderResult, error) {
	key := ReminderKey(doc.ID, now)
	ok, err := s.marker.Acquire(ctx, key, markerTTL)
	if err != nil {
		return "", err
	}
	if !ok {
		metrics.RemindersTotal.WithLabelValues("duplicate").Inc()
		return ReminderDuplicate, nil
	}

	days := expiry.DaysUntil(*doc.ExpiryDate, now)
	n := notify.Notification{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		DriverID:   doc.OwnerID,
		DocType:    doc.DocType,
		ExpiryDate: *doc.ExpiryDate,
		Message: fmt.Sprintf("Your %s expires on %s (%d days left). Please upload a renewed copy.",
			doc.DocType, expiry.FormatDate(*doc.ExpiryDate), days),
		Key:       key,
		CreatedAt: now.UTC(),
	}
	if !s.dispatcher.Enqueue(n) {
		if rerr := s.marker.Release(ctx, key); rerr != nil {
			s.log.Error("failed to release reminder marker", logger.String("key", key), logger.Error(rerr))
		}
		metrics.RemindersTotal.WithLabelValues("dropped").Inc()
		return "", fmt.Errorf("reminder queue is full: %w", errs.ErrStorageUnavailable)
	}
	metrics.RemindersTotal.WithLabelValues("queued").Inc()
	return ReminderQueued, nil
}
