package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/metrics"
	"taxidocs/pkg/models"
	"taxidocs/storage"
)

type VerificationService interface {
	Approve(ctx context.Context, actor models.Actor, id int64, expectedVersion int) (*models.Document, error)
	Reject(ctx context.Context, actor models.Actor, id int64, reason string, expectedVersion int) (*models.Document, error)
}

// stateMachine owns every write to a document. Each write is a
// compare-and-swap on the ledger length plus one appended version.
type stateMachine struct {
	docs storage.IDocumentStorage
	log  logger.ILogger
	now  func() time.Time
}

// canTransition lists the legal status moves per event. Archiving keeps the
// status as is.
func canTransition(event models.Event, from, to models.Status) bool {
	switch event {
	case models.EventApproved:
		return from == models.StatusPending && to == models.StatusApproved
	case models.EventRejected:
		return from == models.StatusPending && to == models.StatusRejected
	case models.EventResubmitted:
		return to == models.StatusPending
	case models.EventArchived:
		return from == to
	}
	return false
}

// apply loads document id, lets mutate change a copy, checks the resulting
// move and stores it under the expected version. expected == 0 means the
// version just read.
func (m *stateMachine) apply(ctx context.Context, actor models.Actor, id int64, expected int, event models.Event,
	mutate func(d *models.Document) error) (*models.Document, error) {
	cur, err := m.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expected < 0 {
		return nil, fmt.Errorf("expected version %d: %w", expected, errs.ErrValidation)
	}
	if expected == 0 {
		expected = cur.Version
	}
	if expected != cur.Version {
		metrics.StaleWrites.Inc()
		return nil, fmt.Errorf("document %d is at version %d, caller saw %d: %w",
			id, cur.Version, expected, errs.ErrInvalidTransition)
	}
	if cur.Archived {
		return nil, fmt.Errorf("document %d is archived: %w", id, errs.ErrInvalidTransition)
	}

	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if !canTransition(event, cur.Status, next.Status) {
		return nil, fmt.Errorf("%s: %s -> %s: %w", event, cur.Status, next.Status, errs.ErrInvalidTransition)
	}

	now := m.now().UTC()
	next.Version = expected + 1
	next.UpdatedAt = now
	from := cur.Status
	version := &models.DocumentVersion{
		DocumentID:   id,
		VersionIndex: next.Version,
		Event:        event,
		Actor:        actor.String(),
		FromStatus:   &from,
		ToStatus:     next.Status,
		Snapshot:     next.Snapshot(),
		CreatedAt:    now,
	}
	if err := m.docs.Update(ctx, next, expected, version); err != nil {
		if errors.Is(err, errs.ErrInvalidTransition) {
			metrics.StaleWrites.Inc()
		}
		return nil, err
	}

	metrics.DocumentEvents.WithLabelValues(string(event), string(next.Category)).Inc()
	m.log.Info("document transition",
		logger.Int64("document_id", id),
		logger.String("event", string(event)),
		logger.String("from", string(from)),
		logger.String("to", string(next.Status)),
		logger.Int("version", next.Version),
		logger.String("actor", actor.String()),
	)
	return next, nil
}

type verificationService struct {
	sm   *stateMachine
	caps CapabilityResolver
}

func newVerificationService(sm *stateMachine, caps CapabilityResolver) VerificationService {
	return &verificationService{sm: sm, caps: caps}
}

func (s *verificationService) Approve(ctx context.Context, actor models.Actor, id int64, expectedVersion int) (doc *models.Document, err error) {
	ctx, span := startSpan(ctx, "verification.Approve", actor, attribute.Int64("document.id", id))
	defer func() { endSpan(span, err) }()

	if err = s.caps.Require(ctx, actor, models.ModuleDocuments, models.CapEdit); err != nil {
		return nil, err
	}
	return s.sm.apply(ctx, actor, id, expectedVersion, models.EventApproved, func(d *models.Document) error {
		d.Status = models.StatusApproved
		d.RejectionReason = nil
		return nil
	})
}

func (s *verificationService) Reject(ctx context.Context, actor models.Actor, id int64, reason string, expectedVersion int) (doc *models.Document, err error) {
	ctx, span := startSpan(ctx, "verification.Reject", actor, attribute.Int64("document.id", id))
	defer func() { endSpan(span, err) }()

	if err = s.caps.Require(ctx, actor, models.ModuleDocuments, models.CapEdit); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("rejection reason is required: %w", errs.ErrValidation)
	}
	return s.sm.apply(ctx, actor, id, expectedVersion, models.EventRejected, func(d *models.Document) error {
		d.Status = models.StatusRejected
		d.RejectionReason = &reason
		return nil
	})
}
