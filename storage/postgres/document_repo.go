package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
	"taxidocs/storage"
)

type documentRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewDocumentRepo(db *pgxpool.Pool, log logger.ILogger) storage.IDocumentStorage {
	return &documentRepo{db: db, log: log}
}

const documentColumns = `id, owner_id, category, doc_type, file_label, document_number, file_ref, status,
	rejection_reason, expiry_date, archived, metadata, version, created_at, updated_at`

func (r *documentRepo) Create(ctx context.Context, doc *models.Document, first *models.DocumentVersion) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO documents (owner_id, category, doc_type, file_label, document_number, file_ref, status,
				rejection_reason, expiry_date, archived, metadata, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
			RETURNING id
		`
		err := tx.QueryRow(ctx, query,
			doc.OwnerID,
			string(doc.Category),
			doc.DocType,
			doc.FileLabel,
			doc.DocumentNumber,
			doc.FileRef,
			string(doc.Status),
			doc.RejectionReason,
			doc.ExpiryDate,
			doc.Archived,
			metadataArg(doc.Metadata),
			doc.Version,
			doc.CreatedAt,
		).Scan(&doc.ID)
		if err != nil {
			return err
		}
		first.DocumentID = doc.ID
		return insertVersion(ctx, tx, first)
	})
	if err != nil {
		r.log.Error("failed to create document", logger.Int64("owner_id", doc.OwnerID), logger.Error(err))
		return wrapErr("create document", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	row := r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get document %d", id), err)
	}
	return doc, nil
}

func (r *documentRepo) ListByOwner(ctx context.Context, ownerID int64, filter storage.DocumentFilter) ([]*models.Document, error) {
	var (
		conds = []string{"owner_id = $1"}
		args  = []interface{}{ownerID}
	)
	if filter.Category != nil {
		args = append(args, string(*filter.Category))
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if !filter.IncludeArchived {
		conds = append(conds, "archived = FALSE")
	}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY category, created_at, id`
	return r.scanDocuments(ctx, query, args...)
}

func (r *documentRepo) ListExpiring(ctx context.Context, from, to time.Time) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE status <> 'pending' AND archived = FALSE AND expiry_date BETWEEN $1 AND $2
		ORDER BY expiry_date, id`
	return r.scanDocuments(ctx, query, from, to)
}

func (r *documentRepo) Update(ctx context.Context, doc *models.Document, expected int, next *models.DocumentVersion) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			UPDATE documents
			SET file_label = $1, document_number = $2, file_ref = $3, status = $4, rejection_reason = $5,
				expiry_date = $6, archived = $7, metadata = $8, version = $9, updated_at = $10
			WHERE id = $11 AND version = $12
		`
		tag, err := tx.Exec(ctx, query,
			doc.FileLabel,
			doc.DocumentNumber,
			doc.FileRef,
			string(doc.Status),
			doc.RejectionReason,
			doc.ExpiryDate,
			doc.Archived,
			metadataArg(doc.Metadata),
			doc.Version,
			doc.UpdatedAt,
			doc.ID,
			expected,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, doc.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("document %d: %w", doc.ID, errs.ErrNotFound)
			}
			return fmt.Errorf("document %d: stale version %d: %w", doc.ID, expected, errs.ErrInvalidTransition)
		}
		return insertVersion(ctx, tx, next)
	})
	if err != nil {
		if isTaxonomy(err) {
			return err
		}
		r.log.Error("failed to update document", logger.Int64("document_id", doc.ID), logger.Error(err))
		return wrapErr("update document", err)
	}
	return nil
}

func (r *documentRepo) scanDocuments(ctx context.Context, query string, args ...interface{}) ([]*models.Document, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list documents", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, wrapErr("scan document", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list documents", err)
	}
	return docs, nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var (
		d        models.Document
		category string
		status   string
	)
	err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&category,
		&d.DocType,
		&d.FileLabel,
		&d.DocumentNumber,
		&d.FileRef,
		&status,
		&d.RejectionReason,
		&d.ExpiryDate,
		&d.Archived,
		&d.Metadata,
		&d.Version,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Category = models.Category(category)
	d.Status = models.Status(status)
	return &d, nil
}

func metadataArg(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func isTaxonomy(err error) bool {
	return errs.Kind(err) != "internal"
}
