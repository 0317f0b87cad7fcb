package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
	"taxidocs/storage"
)

type onboardingRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewOnboardingRepo(db *pgxpool.Pool, log logger.ILogger) storage.IOnboardingStorage {
	return &onboardingRepo{db: db, log: log}
}

func (r *onboardingRepo) GetOrCreate(ctx context.Context, driverID int64) (*models.OnboardingSession, error) {
	query := `
		INSERT INTO onboarding_sessions (driver_id, current_stage, completed_stages)
		VALUES ($1, $2, '{}')
		ON CONFLICT (driver_id) DO UPDATE SET driver_id = EXCLUDED.driver_id
		RETURNING driver_id, current_stage, completed_stages, driver_profile_id, vehicle_profile_id,
			bank_profile_id, version, updated_at
	`
	var (
		s         models.OnboardingSession
		stage     string
		completed []string
	)
	err := r.db.QueryRow(ctx, query, driverID, string(models.StageDriverInfo)).Scan(
		&s.DriverID, &stage, &completed, &s.DriverProfileID, &s.VehicleProfileID, &s.BankProfileID, &s.Version, &s.UpdatedAt,
	)
	if err != nil {
		r.log.Error("failed to get onboarding session", logger.Int64("driver_id", driverID), logger.Error(err))
		return nil, wrapErr("get onboarding session", err)
	}
	s.CurrentStage = models.Stage(stage)
	for _, c := range completed {
		s.CompletedStages = append(s.CompletedStages, models.Stage(c))
	}
	return &s, nil
}

func (r *onboardingRepo) Save(ctx context.Context, s *models.OnboardingSession) error {
	completed := make([]string, 0, len(s.CompletedStages))
	for _, c := range s.CompletedStages {
		completed = append(completed, string(c))
	}
	query := `
		UPDATE onboarding_sessions
		SET current_stage = $2,
			completed_stages = $3,
			driver_profile_id = $4,
			vehicle_profile_id = $5,
			bank_profile_id = $6,
			updated_at = $7,
			version = version + 1
		WHERE driver_id = $1 AND version = $8
	`
	tag, err := r.db.Exec(ctx, query,
		s.DriverID, string(s.CurrentStage), completed, s.DriverProfileID, s.VehicleProfileID, s.BankProfileID,
		s.UpdatedAt, s.Version,
	)
	if err != nil {
		r.log.Error("failed to save onboarding session", logger.Int64("driver_id", s.DriverID), logger.Error(err))
		return wrapErr("save onboarding session", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM onboarding_sessions WHERE driver_id = $1)`, s.DriverID).Scan(&exists); err != nil {
			return wrapErr("save onboarding session", err)
		}
		if !exists {
			return fmt.Errorf("onboarding session %d: %w", s.DriverID, errs.ErrNotFound)
		}
		return fmt.Errorf("onboarding session %d: stale version %d: %w", s.DriverID, s.Version, errs.ErrInvalidTransition)
	}
	s.Version++
	return nil
}
