package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
	"taxidocs/storage"
)

type DriverService interface {
	Register(ctx context.Context, actor models.Actor, teleID int64, fullname string, phone *string) (*models.Driver, error)
	Get(ctx context.Context, actor models.Actor, id int64) (*models.Driver, error)
	// GetByTelegramID is for trusted transports (the bots); it skips
	// capability checks.
	GetByTelegramID(ctx context.Context, teleID int64) (*models.Driver, error)
}

type driverService struct {
	stg  storage.IDriverStorage
	caps CapabilityResolver
	log  logger.ILogger
}

func NewDriverService(stg storage.IStorage, caps CapabilityResolver, log logger.ILogger) DriverService {
	return &driverService{
		stg:  stg.Driver(),
		caps: caps,
		log:  log,
	}
}

func (s *driverService) Register(ctx context.Context, actor models.Actor, teleID int64, fullname string, phone *string) (d *models.Driver, err error) {
	ctx, span := startSpan(ctx, "driver.Register", actor, attribute.Int64("telegram.id", teleID))
	defer func() { endSpan(span, err) }()

	if err = s.caps.Require(ctx, actor, models.ModuleDrivers, models.CapAdd); err != nil {
		return nil, err
	}
	fullname = strings.TrimSpace(fullname)
	if teleID == 0 || fullname == "" {
		return nil, fmt.Errorf("telegram id and full name are required: %w", errs.ErrValidation)
	}
	d, err = s.stg.GetOrCreate(ctx, teleID, fullname, phone)
	if err != nil {
		return nil, err
	}
	s.log.Info("driver registered", logger.Int64("driver_id", d.ID), logger.Int64("telegram_id", teleID))
	return d, nil
}

func (s *driverService) Get(ctx context.Context, actor models.Actor, id int64) (d *models.Driver, err error) {
	ctx, span := startSpan(ctx, "driver.Get", actor, attribute.Int64("driver.id", id))
	defer func() { endSpan(span, err) }()

	if err = s.caps.Require(ctx, actor, models.ModuleDrivers, models.CapView); err != nil {
		return nil, err
	}
	if err = requireOwner(actor, id); err != nil {
		return nil, err
	}
	return s.stg.GetByID(ctx, id)
}

func (s *driverService) GetByTelegramID(ctx context.Context, teleID int64) (*models.Driver, error) {
	return s.stg.GetByTelegramID(ctx, teleID)
}
