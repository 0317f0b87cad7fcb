package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"taxidocs/pkg/logger"
	"taxidocs/storage"
)

type permissionRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewPermissionRepo(db *pgxpool.Pool, log logger.ILogger) storage.IPermissionStorage {
	return &permissionRepo{db: db, log: log}
}

func (r *permissionRepo) ListPermissions(ctx context.Context, role, module string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		"SELECT permission FROM role_permissions WHERE role = $1 AND module = $2 ORDER BY permission",
		role, module)
	if err != nil {
		r.log.Error("failed to list permissions", logger.String("role", role), logger.Error(err))
		return nil, wrapErr("list permissions", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, wrapErr("scan permission", err)
		}
		perms = append(perms, p)
	}
	return perms, wrapErr("list permissions", rows.Err())
}
