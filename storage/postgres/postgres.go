package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxidocs/config"
	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/storage"
)

type Store struct {
	pool *pgxpool.Pool
	log  logger.ILogger
}

func New(ctx context.Context, cfg config.Config, log logger.ILogger) (storage.IStorage, error) {
	url := cfg.PostgresURL()

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		log.Error("error while parsing Postgres config", logger.Error(err))
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error("failed to connect Postgres", logger.Error(err))
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("Postgres ping failed", logger.Error(err))
		return nil, fmt.Errorf("ping postgres: %w", errs.ErrStorageUnavailable)
	}

	if err := Migrate(url, migrationsPath(cfg.MigrationsPath), log); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("Postgres connected")

	return NewWithPool(pool, log), nil
}

// NewWithPool wraps an already connected pool; used by integration tests.
func NewWithPool(pool *pgxpool.Pool, log logger.ILogger) *Store {
	return &Store{
		pool: pool,
		log:  log,
	}
}

// Migrate applies every pending migration found in dir.
func Migrate(url, dir string, log logger.ILogger) error {
	m, err := migrate.New("file://"+dir, url)
	if err != nil {
		log.Error("migration init error", logger.String("path", dir), logger.Error(err))
		return err
	}
	defer m.Close()

	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return nil
		}
		log.Error("migration up error", logger.Error(err))
		return err
	}
	return nil
}

func migrationsPath(configured string) string {
	if filepath.IsAbs(configured) {
		return configured
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, configured)
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) GetPool() *pgxpool.Pool {
	return s.pool
}

// Reset wipes onboarding data but keeps seeded role permissions.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE TABLE document_versions, documents, onboarding_sessions,
		bank_profiles, vehicle_profiles, driver_profiles, drivers RESTART IDENTITY CASCADE`)
	return wrapErr("reset", err)
}

func (s *Store) Driver() storage.IDriverStorage         { return NewDriverRepo(s.pool, s.log) }
func (s *Store) Document() storage.IDocumentStorage     { return NewDocumentRepo(s.pool, s.log) }
func (s *Store) Version() storage.IVersionStorage       { return NewVersionRepo(s.pool, s.log) }
func (s *Store) Onboarding() storage.IOnboardingStorage { return NewOnboardingRepo(s.pool, s.log) }
func (s *Store) Permission() storage.IPermissionStorage { return NewPermissionRepo(s.pool, s.log) }

// wrapErr maps pgx failures onto the errs taxonomy.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23503": // foreign_key_violation
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, errs.ErrNotFound)
		case pgErr.Code == "23514", pgErr.Code == "22007", pgErr.Code == "22008": // check, datetime
			return fmt.Errorf("%s: %s: %w", op, pgErr.Message, errs.ErrValidation)
		case len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "40" ||
			pgErr.Code[:2] == "53" || pgErr.Code[:2] == "57"):
			return fmt.Errorf("%s: %s: %w", op, pgErr.Message, errs.ErrStorageUnavailable)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	// Anything else is a connection or timeout problem below the SQL layer.
	return fmt.Errorf("%s: %v: %w", op, err, errs.ErrStorageUnavailable)
}
