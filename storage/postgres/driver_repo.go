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

type driverRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewDriverRepo(db *pgxpool.Pool, log logger.ILogger) storage.IDriverStorage {
	return &driverRepo{db: db, log: log}
}

const driverColumns = `id, telegram_id, full_name, phone, status, created_at, updated_at`

func (r *driverRepo) GetOrCreate(ctx context.Context, teleID int64, fullname string, phone *string) (*models.Driver, error) {
	var d models.Driver
	query := `
		INSERT INTO drivers (telegram_id, full_name, phone, status)
		VALUES ($1, $2, $3, 'pending')
		ON CONFLICT (telegram_id) DO UPDATE
		SET full_name = EXCLUDED.full_name,
			phone = COALESCE(EXCLUDED.phone, drivers.phone),
			updated_at = NOW()
		RETURNING ` + driverColumns
	err := r.db.QueryRow(ctx, query, teleID, fullname, phone).Scan(
		&d.ID, &d.TelegramID, &d.FullName, &d.Phone, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		r.log.Error("failed to get or create driver", logger.Int64("telegram_id", teleID), logger.Error(err))
		return nil, wrapErr("get or create driver", err)
	}
	return &d, nil
}

func (r *driverRepo) GetByID(ctx context.Context, id int64) (*models.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
}

func (r *driverRepo) GetByTelegramID(ctx context.Context, teleID int64) (*models.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE telegram_id = $1`, teleID)
}

func (r *driverRepo) getOne(ctx context.Context, query string, arg int64) (*models.Driver, error) {
	var d models.Driver
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&d.ID, &d.TelegramID, &d.FullName, &d.Phone, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get driver %d", arg), err)
	}
	return &d, nil
}

func (r *driverRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.db.Exec(ctx, "UPDATE drivers SET status=$1, updated_at=NOW() WHERE id=$2", status, id)
	if err != nil {
		return wrapErr("update driver status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("driver %d: %w", id, errs.ErrNotFound)
	}
	return nil
}

func (r *driverRepo) UpsertDriverProfile(ctx context.Context, p *models.DriverProfile) error {
	query := `
		INSERT INTO driver_profiles (driver_id, full_name, date_of_birth, license_number, address)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (driver_id) DO UPDATE
		SET full_name = EXCLUDED.full_name,
			date_of_birth = EXCLUDED.date_of_birth,
			license_number = EXCLUDED.license_number,
			address = EXCLUDED.address
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, p.DriverID, p.FullName, p.DateOfBirth, p.LicenseNumber, p.Address).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		r.log.Error("failed to upsert driver profile", logger.Int64("driver_id", p.DriverID), logger.Error(err))
		return wrapErr("upsert driver profile", err)
	}
	return nil
}

func (r *driverRepo) GetDriverProfile(ctx context.Context, driverID int64) (*models.DriverProfile, error) {
	var p models.DriverProfile
	query := `SELECT id, driver_id, full_name, date_of_birth, license_number, address, created_at
		FROM driver_profiles WHERE driver_id = $1`
	err := r.db.QueryRow(ctx, query, driverID).Scan(
		&p.ID, &p.DriverID, &p.FullName, &p.DateOfBirth, &p.LicenseNumber, &p.Address, &p.CreatedAt,
	)
	if err != nil {
		return nil, wrapErr("get driver profile", err)
	}
	return &p, nil
}

func (r *driverRepo) UpsertVehicleProfile(ctx context.Context, p *models.VehicleProfile) error {
	query := `
		INSERT INTO vehicle_profiles (driver_id, driver_profile_id, brand, model, year, color, license_plate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (driver_id) DO UPDATE
		SET driver_profile_id = EXCLUDED.driver_profile_id,
			brand = EXCLUDED.brand,
			model = EXCLUDED.model,
			year = EXCLUDED.year,
			color = EXCLUDED.color,
			license_plate = EXCLUDED.license_plate
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		p.DriverID, p.DriverProfileID, p.Brand, p.Model, p.Year, p.Color, p.LicensePlate,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		r.log.Error("failed to upsert vehicle profile", logger.Int64("driver_id", p.DriverID), logger.Error(err))
		return wrapErr("upsert vehicle profile", err)
	}
	return nil
}

func (r *driverRepo) GetVehicleProfile(ctx context.Context, driverID int64) (*models.VehicleProfile, error) {
	var p models.VehicleProfile
	query := `SELECT id, driver_id, driver_profile_id, brand, model, year, color, license_plate, created_at
		FROM vehicle_profiles WHERE driver_id = $1`
	err := r.db.QueryRow(ctx, query, driverID).Scan(
		&p.ID, &p.DriverID, &p.DriverProfileID, &p.Brand, &p.Model, &p.Year, &p.Color, &p.LicensePlate, &p.CreatedAt,
	)
	if err != nil {
		return nil, wrapErr("get vehicle profile", err)
	}
	return &p, nil
}

func (r *driverRepo) UpsertBankProfile(ctx context.Context, p *models.BankProfile) error {
	query := `
		INSERT INTO bank_profiles (driver_id, account_holder, account_number, ifsc, bank_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (driver_id) DO UPDATE
		SET account_holder = EXCLUDED.account_holder,
			account_number = EXCLUDED.account_number,
			ifsc = EXCLUDED.ifsc,
			bank_name = EXCLUDED.bank_name
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, p.DriverID, p.AccountHolder, p.AccountNumber, p.IFSC, p.BankName).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		r.log.Error("failed to upsert bank profile", logger.Int64("driver_id", p.DriverID), logger.Error(err))
		return wrapErr("upsert bank profile", err)
	}
	return nil
}

func (r *driverRepo) GetBankProfile(ctx context.Context, driverID int64) (*models.BankProfile, error) {
	var p models.BankProfile
	query := `SELECT id, driver_id, account_holder, account_number, ifsc, bank_name, created_at
		FROM bank_profiles WHERE driver_id = $1`
	err := r.db.QueryRow(ctx, query, driverID).Scan(
		&p.ID, &p.DriverID, &p.AccountHolder, &p.AccountNumber, &p.IFSC, &p.BankName, &p.CreatedAt,
	)
	if err != nil {
		return nil, wrapErr("get bank profile", err)
	}
	return &p, nil
}
