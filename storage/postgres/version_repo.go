package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
	"taxidocs/storage"
)

// document_versions is insert-only; a trigger in the schema rejects UPDATE
// and DELETE.
type versionRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewVersionRepo(db *pgxpool.Pool, log logger.ILogger) storage.IVersionStorage {
	return &versionRepo{db: db, log: log}
}

const versionColumns = `document_id, version_index, event, actor, from_status, to_status, snapshot, created_at`

func insertVersion(ctx context.Context, tx pgx.Tx, v *models.DocumentVersion) error {
	var from *string
	if v.FromStatus != nil {
		s := string(*v.FromStatus)
		from = &s
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO document_versions (`+versionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.DocumentID,
		v.VersionIndex,
		string(v.Event),
		v.Actor,
		from,
		string(v.ToStatus),
		v.Snapshot,
		v.CreatedAt,
	)
	return err
}

func (r *versionRepo) List(ctx context.Context, documentID int64) ([]*models.DocumentVersion, error) {
	rows, err := r.db.Query(ctx, `SELECT `+versionColumns+` FROM document_versions
		WHERE document_id = $1 ORDER BY version_index`, documentID)
	if err != nil {
		r.log.Error("failed to list versions", logger.Int64("document_id", documentID), logger.Error(err))
		return nil, wrapErr("list versions", err)
	}
	defer rows.Close()

	var versions []*models.DocumentVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, wrapErr("scan version", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list versions", err)
	}
	return versions, nil
}

func (r *versionRepo) Get(ctx context.Context, documentID int64, index int) (*models.DocumentVersion, error) {
	row := r.db.QueryRow(ctx, `SELECT `+versionColumns+` FROM document_versions
		WHERE document_id = $1 AND version_index = $2`, documentID, index)
	v, err := scanVersion(row)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get version %d/%d", documentID, index), err)
	}
	return v, nil
}

func scanVersion(row pgx.Row) (*models.DocumentVersion, error) {
	var (
		v     models.DocumentVersion
		event string
		from  *string
		to    string
	)
	err := row.Scan(&v.DocumentID, &v.VersionIndex, &event, &v.Actor, &from, &to, &v.Snapshot, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	v.Event = models.Event(event)
	v.ToStatus = models.Status(to)
	if from != nil {
		s := models.Status(*from)
		v.FromStatus = &s
	}
	return &v, nil
}
