package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"taxidocs/pkg/models"
	"taxidocs/storage"
)

// LedgerService reads the append-only version history of a document. Writes
// happen only through the state machine.
type LedgerService interface {
	Versions(ctx context.Context, actor models.Actor, id int64) ([]*models.DocumentVersion, error)
	AsOf(ctx context.Context, actor models.Actor, id int64, versionIndex int) (*models.Document, error)
}

type ledgerService struct {
	registry *documentService
	versions storage.IVersionStorage
}

func (s *ledgerService) Versions(ctx context.Context, actor models.Actor, id int64) (vs []*models.DocumentVersion, err error) {
	ctx, span := startSpan(ctx, "ledger.Versions", actor, attribute.Int64("document.id", id))
	defer func() { endSpan(span, err) }()

	if _, err = s.registry.getVisible(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.versions.List(ctx, id)
}

// AsOf rebuilds the document as it stood right after versionIndex was written.
func (s *ledgerService) AsOf(ctx context.Context, actor models.Actor, id int64, versionIndex int) (doc *models.Document, err error) {
	ctx, span := startSpan(ctx, "ledger.AsOf", actor,
		attribute.Int64("document.id", id), attribute.Int("version.index", versionIndex))
	defer func() { endSpan(span, err) }()

	cur, err := s.registry.getVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	v, err := s.versions.Get(ctx, id, versionIndex)
	if err != nil {
		return nil, err
	}
	return v.Apply(cur), nil
}
