package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"taxidocs/pkg/blob"
	"taxidocs/pkg/errs"
	"taxidocs/pkg/expiry"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/metrics"
	"taxidocs/pkg/models"
	"taxidocs/storage"
)

type SubmitInput struct {
	DriverID       int64             `json:"driver_id"`
	Category       models.Category   `json:"category"`
	DocType        string            `json:"doc_type"`
	FileLabel      string            `json:"file_label"`
	DocumentNumber *string           `json:"document_number,omitempty"`
	FileRef        string            `json:"file_ref"`
	ExpiryDate     *time.Time        `json:"expiry_date,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ResubmitInput replaces the file and, optionally, the descriptive fields.
// Nil fields keep their current value.
type ResubmitInput struct {
	FileRef         *string           `json:"file_ref,omitempty"`
	DocumentNumber  *string           `json:"document_number,omitempty"`
	ExpiryDate      *time.Time        `json:"expiry_date,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	ExpectedVersion int               `json:"expected_version"`
}

type ListFilter struct {
	Category        *models.Category
	IncludeArchived bool
}

type DocumentService interface {
	Submit(ctx context.Context, actor models.Actor, in SubmitInput) (*models.Document, error)
	Resubmit(ctx context.Context, actor models.Actor, id int64, in ResubmitInput) (int, error)
	Get(ctx context.Context, actor models.Actor, id int64) (*models.Document, error)
	ListByDriver(ctx context.Context, actor models.Actor, driverID int64, filter ListFilter) ([]*models.Document, error)
	Archive(ctx context.Context, actor models.Actor, id int64, expectedVersion int) (*models.Document, error)
	FileURL(ctx context.Context, actor models.Actor, id int64) (string, error)
	PresignUpload(ctx context.Context, actor models.Actor, driverID int64, category models.Category) (fileRef, url string, err error)
}

type documentService struct {
	drivers   storage.IDriverStorage
	docs      storage.IDocumentStorage
	sm        *stateMachine
	caps      CapabilityResolver
	blob      blob.Store
	checkBlob bool
	log       logger.ILogger
	now       func() time.Time
	// onSubmit is called after a document is created; the reviewer bot
	// hooks in here.
	onSubmit func(ctx context.Context, doc *models.Document)
}

func (s *documentService) Submit(ctx context.Context, actor models.Actor, in SubmitInput) (doc *models.Document, err error) {
	ctx, span := startSpan(ctx, "registry.Submit", actor,
		attribute.Int64("driver.id", in.DriverID), attribute.String("document.category", string(in.Category)))
	defer func() { endSpan(span, err) }()

	if err = s.caps.Require(ctx, actor, models.ModuleDocuments, models.CapAdd); err != nil {
		return nil, err
	}
	if err = requireOwner(actor, in.DriverID); err != nil {
		return nil, err
	}
	if !in.Category.Valid() {
		return nil, fmt.Errorf("category %q: %w", in.Category, errs.ErrInvalidCategory)
	}
	in.DocType = strings.TrimSpace(in.DocType)
	in.FileRef = strings.TrimSpace(in.FileRef)
	if in.DocType == "" {
		return nil, fmt.Errorf("doc type is required: %w", errs.ErrValidation)
	}
	if in.FileRef == "" {
		return nil, fmt.Errorf("file reference is required: %w", errs.ErrValidation)
	}
	if _, err = s.drivers.GetByID(ctx, in.DriverID); err != nil {
		return nil, err
	}
	if err = s.checkFile(ctx, in.FileRef); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	doc = &models.Document{
		OwnerID:        in.DriverID,
		Category:       in.Category,
		DocType:        in.DocType,
		FileLabel:      in.FileLabel,
		DocumentNumber: in.DocumentNumber,
		FileRef:        in.FileRef,
		Status:         models.StatusPending,
		ExpiryDate:     expiry.Normalize(in.ExpiryDate),
		Metadata:       in.Metadata,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	first := &models.DocumentVersion{
		VersionIndex: 1,
		Event:        models.EventSubmitted,
		Actor:        actor.String(),
		ToStatus:     models.StatusPending,
		Snapshot:     doc.Snapshot(),
		CreatedAt:    now,
	}
	if err = s.docs.Create(ctx, doc, first); err != nil {
		return nil, err
	}

	metrics.DocumentEvents.WithLabelValues(string(models.EventSubmitted), string(doc.Category)).Inc()
	s.log.Info("document submitted",
		logger.Int64("document_id", doc.ID),
		logger.Int64("driver_id", doc.OwnerID),
		logger.String("category", string(doc.Category)),
		logger.String("doc_type", doc.DocType),
	)
	if s.onSubmit != nil {
		s.onSubmit(ctx, doc.Clone())
	}
	return doc, nil
}

func (s *documentService) Resubmit(ctx context.Context, actor models.Actor, id int64, in ResubmitInput) (index int, err error) {
	ctx, span := startSpan(ctx, "registry.Resubmit", actor, attribute.Int64("document.id", id))
	defer func() { endSpan(span, err) }()

	if err = s.caps.Require(ctx, actor, models.ModuleDocuments, models.CapAdd); err != nil {
		return 0, err
	}
	cur, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if err = requireOwner(actor, cur.OwnerID); err != nil {
		return 0, err
	}
	if in.FileRef != nil {
		ref := strings.TrimSpace(*in.FileRef)
		if ref == "" {
			return 0, fmt.Errorf("file reference is empty: %w", errs.ErrValidation)
		}
		if err = s.checkFile(ctx, ref); err != nil {
			return 0, err
		}
		in.FileRef = &ref
	}

	doc, err := s.sm.apply(ctx, actor, id, in.ExpectedVersion, models.EventResubmitted, func(d *models.Document) error {
		d.Status = models.StatusPending
		d.RejectionReason = nil
		if in.FileRef != nil {
			d.FileRef = *in.FileRef
		}
		if in.DocumentNumber != nil {
			d.DocumentNumber = in.DocumentNumber
		}
		if in.ExpiryDate != nil {
			d.ExpiryDate = expiry.Normalize(in.ExpiryDate)
		}
		if in.Metadata != nil {
			d.Metadata = in.Metadata
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if s.onSubmit != nil {
		s.onSubmit(ctx, doc.Clone())
	}
	return doc.Version, nil
}

func (s *documentService) Get(ctx context.Context, actor models.Actor, id int64) (doc *models.Document, err error) {
	ctx, span := startSpan(ctx, "registry.Get", actor, attribute.Int64("document.id", id))
	defer func() { endSpan(span, err) }()

	return s.getVisible(ctx, actor, id)
}

// getVisible loads a document the actor may view.
func (s *documentService) getVisible(ctx context.Context, actor models.Actor, id int64) (*models.Document, error) {
	if err := s.caps.Require(ctx, actor, models.ModuleDocuments, models.CapView); err != nil {
		return nil, err
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, doc.OwnerID); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *documentService) ListByDriver(ctx context.Context, actor models.Actor, driverID int64, filter ListFilter) (docs []*models.Document, err error) {
	ctx, span := startSpan(ctx, "registry.ListByDriver", actor, attribute.Int64("driver.id", driverID))
	defer func() { endSpan(span, err) }()

	if err = s.caps.Require(ctx, actor, models.ModuleDocuments, models.CapView); err != nil {
		return nil, err
	}
	if err = requireOwner(actor, driverID); err != nil {
		return nil, err
	}
	if filter.Category != nil && !filter.Category.Valid() {
		return nil, fmt.Errorf("category %q: %w", *filter.Category, errs.ErrInvalidCategory)
	}
	if _, err = s.drivers.GetByID(ctx, driverID); err != nil {
		return nil, err
	}
	return s.docs.ListByOwner(ctx, driverID, storage.DocumentFilter{
		Category:        filter.Category,
		IncludeArchived: filter.IncludeArchived,
	})
}

func (s *documentService) Archive(ctx context.Context, actor models.Actor, id int64, expectedVersion int) (doc *models.Document, err error) {
	ctx, span := startSpan(ctx, "registry.Archive", actor, attribute.Int64("document.id", id))
	defer func() { endSpan(span, err) }()

	if err = s.caps.Require(ctx, actor, models.ModuleDocuments, models.CapDelete); err != nil {
		return nil, err
	}
	return s.sm.apply(ctx, actor, id, expectedVersion, models.EventArchived, func(d *models.Document) error {
		d.Archived = true
		return nil
	})
}

func (s *documentService) FileURL(ctx context.Context, actor models.Actor, id int64) (url string, err error) {
	ctx, span := startSpan(ctx, "registry.FileURL", actor, attribute.Int64("document.id", id))
	defer func() { endSpan(span, err) }()

	doc, err := s.getVisible(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if s.blob == nil {
		return doc.FileRef, nil
	}
	return s.blob.PresignGet(ctx, doc.FileRef)
}

func (s *documentService) PresignUpload(ctx context.Context, actor models.Actor, driverID int64, category models.Category) (fileRef, url string, err error) {
	ctx, span := startSpan(ctx, "registry.PresignUpload", actor, attribute.Int64("driver.id", driverID))
	defer func() { endSpan(span, err) }()

	if err = s.caps.Require(ctx, actor, models.ModuleDocuments, models.CapAdd); err != nil {
		return "", "", err
	}
	if err = requireOwner(actor, driverID); err != nil {
		return "", "", err
	}
	if !category.Valid() {
		return "", "", fmt.Errorf("category %q: %w", category, errs.ErrInvalidCategory)
	}
	if s.blob == nil {
		return "", "", fmt.Errorf("no blob storage configured: %w", errs.ErrStorageUnavailable)
	}
	fileRef = blob.Key(driverID, category)
	url, err = s.blob.PresignPut(ctx, fileRef)
	if err != nil {
		return "", "", err
	}
	return fileRef, url, nil
}

func (s *documentService) checkFile(ctx context.Context, ref string) error {
	if s.blob == nil || !s.checkBlob {
		return nil
	}
	return s.blob.Exists(ctx, ref)
}
