package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/metrics"
	"taxidocs/pkg/models"
	"taxidocs/storage"
)

type OnboardingService interface {
	GetStage(ctx context.Context, actor models.Actor, driverID int64) (*models.OnboardingSession, error)
	SubmitDriverInfo(ctx context.Context, actor models.Actor, driverID int64, profile models.DriverProfile) (*models.OnboardingSession, error)
	SubmitDriverDocuments(ctx context.Context, actor models.Actor, driverID int64, uploads []models.DocumentUpload) (*models.BatchResult, error)
	SubmitVehicleInfo(ctx context.Context, actor models.Actor, driverID int64, vehicle models.VehicleProfile, uploads []models.DocumentUpload) (*models.BatchResult, error)
	SubmitBankDocuments(ctx context.Context, actor models.Actor, driverID int64, bank models.BankProfile, uploads []models.DocumentUpload) (*models.BatchResult, error)
	AdvanceStage(ctx context.Context, actor models.Actor, driverID int64) (*models.OnboardingSession, error)
}

type onboardingService struct {
	drivers     storage.IDriverStorage
	sessions    storage.IOnboardingStorage
	docs        storage.IDocumentStorage
	registry    DocumentService
	caps        CapabilityResolver
	concurrency int
	log         logger.ILogger
	now         func() time.Time
}

// NormalizePlate upper-cases a license plate and strips spaces and dashes.
func NormalizePlate(plate string) string {
	r := strings.NewReplacer(" ", "", "-", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(plate)))
}

func (s *onboardingService) session(ctx context.Context, actor models.Actor, driverID int64, c models.Capability) (*models.OnboardingSession, error) {
	if err := s.caps.Require(ctx, actor, models.ModuleOnboarding, c); err != nil {
		return nil, err
	}
	if err := requireOwner(actor, driverID); err != nil {
		return nil, err
	}
	return s.sessions.GetOrCreate(ctx, driverID)
}

// complete marks stage done and moves the session past it. The current
// stage only ever moves forward.
func (s *onboardingService) complete(sess *models.OnboardingSession, stage models.Stage) {
	found := false
	for _, st := range sess.CompletedStages {
		if st == stage {
			found = true
			break
		}
	}
	if !found {
		sess.CompletedStages = append(sess.CompletedStages, stage)
	}
	if sess.CurrentStage.Index() <= stage.Index() {
		s.moveTo(sess, stage.Next())
	}
}

func (s *onboardingService) moveTo(sess *models.OnboardingSession, stage models.Stage) {
	if stage.Index() <= sess.CurrentStage.Index() {
		return
	}
	s.log.Info("onboarding stage changed",
		logger.Int64("driver_id", sess.DriverID),
		logger.String("from", string(sess.CurrentStage)),
		logger.String("to", string(stage)),
	)
	sess.CurrentStage = stage
	metrics.StageTransitions.WithLabelValues(string(stage)).Inc()
}

// maxSessionSaves bounds how often commit reapplies a change after losing a
// race with another save of the same session.
const maxSessionSaves = 5

// commit applies change to sess and saves it. When another request saved the
// session first, the stored session is reloaded and change is applied again,
// so concurrent stage operations never drop each other's updates.
func (s *onboardingService) commit(ctx context.Context, sess *models.OnboardingSession,
	change func(*models.OnboardingSession)) (*models.OnboardingSession, error) {
	for attempt := 1; ; attempt++ {
		change(sess)
		sess.UpdatedAt = s.now().UTC()
		err := s.sessions.Save(ctx, sess)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, errs.ErrInvalidTransition) || attempt == maxSessionSaves {
			return nil, err
		}
		s.log.Debug("onboarding session changed concurrently, reapplying",
			logger.Int64("driver_id", sess.DriverID), logger.Int("attempt", attempt))
		if sess, err = s.sessions.GetOrCreate(ctx, sess.DriverID); err != nil {
			return nil, err
		}
	}
}

func (s *onboardingService) GetStage(ctx context.Context, actor models.Actor, driverID int64) (sess *models.OnboardingSession, err error) {
	ctx, span := startSpan(ctx, "onboarding.GetStage", actor, attribute.Int64("driver.id", driverID))
	defer func() { endSpan(span, err) }()

	return s.session(ctx, actor, driverID, models.CapView)
}

func (s *onboardingService) SubmitDriverInfo(ctx context.Context, actor models.Actor, driverID int64, profile models.DriverProfile) (sess *models.OnboardingSession, err error) {
	ctx, span := startSpan(ctx, "onboarding.SubmitDriverInfo", actor, attribute.Int64("driver.id", driverID))
	defer func() { endSpan(span, err) }()

	sess, err = s.session(ctx, actor, driverID, models.CapAdd)
	if err != nil {
		return nil, err
	}

	profile.FullName = strings.TrimSpace(profile.FullName)
	profile.LicenseNumber = strings.ToUpper(strings.TrimSpace(profile.LicenseNumber))
	if profile.FullName == "" || profile.LicenseNumber == "" {
		return nil, fmt.Errorf("full name and license number are required: %w", errs.ErrValidation)
	}
	if profile.DateOfBirth != nil && profile.DateOfBirth.After(s.now()) {
		return nil, fmt.Errorf("date of birth is in the future: %w", errs.ErrValidation)
	}

	profile.DriverID = driverID
	if err = s.drivers.UpsertDriverProfile(ctx, &profile); err != nil {
		return nil, err
	}
	sess, err = s.commit(ctx, sess, func(x *models.OnboardingSession) {
		x.DriverProfileID = &profile.ID
		s.complete(x, models.StageDriverInfo)
	})
	if err != nil {
		return nil, err
	}
	s.setDriverStatus(ctx, driverID, models.DriverStatusOnboarding)
	return sess, nil
}

func (s *onboardingService) SubmitDriverDocuments(ctx context.Context, actor models.Actor, driverID int64, uploads []models.DocumentUpload) (res *models.BatchResult, err error) {
	ctx, span := startSpan(ctx, "onboarding.SubmitDriverDocuments", actor,
		attribute.Int64("driver.id", driverID), attribute.Int("batch.size", len(uploads)))
	defer func() { endSpan(span, err) }()

	sess, err := s.session(ctx, actor, driverID, models.CapAdd)
	if err != nil {
		return nil, err
	}
	if sess.DriverProfileID == nil {
		return nil, fmt.Errorf("driver %d has no driver profile: %w", driverID, errs.ErrPrerequisiteMissing)
	}
	if len(uploads) == 0 {
		return nil, fmt.Errorf("no documents in batch: %w", errs.ErrValidation)
	}

	res = &models.BatchResult{Items: s.uploadBatch(ctx, actor, driverID, models.CategoryDriver, models.StageDriverDocuments, uploads)}
	sess, err = s.commit(ctx, sess, func(x *models.OnboardingSession) {
		if res.Failed() == 0 {
			s.complete(x, models.StageDriverDocuments)
		}
	})
	if err != nil {
		return nil, err
	}
	res.Session = sess
	return res, nil
}

func (s *onboardingService) SubmitVehicleInfo(ctx context.Context, actor models.Actor, driverID int64, vehicle models.VehicleProfile, uploads []models.DocumentUpload) (res *models.BatchResult, err error) {
	ctx, span := startSpan(ctx, "onboarding.SubmitVehicleInfo", actor,
		attribute.Int64("driver.id", driverID), attribute.Int("batch.size", len(uploads)))
	defer func() { endSpan(span, err) }()

	sess, err := s.session(ctx, actor, driverID, models.CapAdd)
	if err != nil {
		return nil, err
	}
	if sess.DriverProfileID == nil {
		return nil, fmt.Errorf("driver %d has no driver profile: %w", driverID, errs.ErrPrerequisiteMissing)
	}

	vehicle.Brand = strings.TrimSpace(vehicle.Brand)
	vehicle.Model = strings.TrimSpace(vehicle.Model)
	vehicle.LicensePlate = NormalizePlate(vehicle.LicensePlate)
	if vehicle.Brand == "" || vehicle.Model == "" || vehicle.LicensePlate == "" {
		return nil, fmt.Errorf("brand, model and license plate are required: %w", errs.ErrValidation)
	}
	if vehicle.Year < 1980 || vehicle.Year > s.now().Year()+1 {
		return nil, fmt.Errorf("vehicle year %d: %w", vehicle.Year, errs.ErrValidation)
	}

	vehicle.DriverID = driverID
	vehicle.DriverProfileID = *sess.DriverProfileID
	if err = s.drivers.UpsertVehicleProfile(ctx, &vehicle); err != nil {
		return nil, err
	}

	res = &models.BatchResult{Items: s.uploadBatch(ctx, actor, driverID, models.CategoryVehicle, models.StageVehicleInfo, uploads)}
	sess, err = s.commit(ctx, sess, func(x *models.OnboardingSession) {
		x.VehicleProfileID = &vehicle.ID
		s.complete(x, models.StageVehicleInfo)
	})
	if err != nil {
		return nil, err
	}
	res.Session = sess
	return res, nil
}

func (s *onboardingService) SubmitBankDocuments(ctx context.Context, actor models.Actor, driverID int64, bank models.BankProfile, uploads []models.DocumentUpload) (res *models.BatchResult, err error) {
	ctx, span := startSpan(ctx, "onboarding.SubmitBankDocuments", actor,
		attribute.Int64("driver.id", driverID), attribute.Int("batch.size", len(uploads)))
	defer func() { endSpan(span, err) }()

	sess, err := s.session(ctx, actor, driverID, models.CapAdd)
	if err != nil {
		return nil, err
	}
	if sess.VehicleProfileID == nil || !sess.Passed(models.StageVehicleInfo) {
		return nil, fmt.Errorf("driver %d has not finished the vehicle stage: %w", driverID, errs.ErrPrerequisiteMissing)
	}

	bank.AccountHolder = strings.TrimSpace(bank.AccountHolder)
	bank.AccountNumber = strings.ReplaceAll(strings.TrimSpace(bank.AccountNumber), " ", "")
	bank.IFSC = strings.ToUpper(strings.TrimSpace(bank.IFSC))
	if bank.AccountHolder == "" || bank.AccountNumber == "" || bank.IFSC == "" {
		return nil, fmt.Errorf("account holder, account number and IFSC are required: %w", errs.ErrValidation)
	}

	bank.DriverID = driverID
	if err = s.drivers.UpsertBankProfile(ctx, &bank); err != nil {
		return nil, err
	}

	res = &models.BatchResult{Items: s.uploadBatch(ctx, actor, driverID, models.CategoryBank, models.StageBankDocuments, uploads)}
	sess, err = s.commit(ctx, sess, func(x *models.OnboardingSession) {
		x.BankProfileID = &bank.ID
		s.complete(x, models.StageBankDocuments)
	})
	if err != nil {
		return nil, err
	}
	s.setDriverStatus(ctx, driverID, models.DriverStatusPendingReview)
	res.Session = sess
	return res, nil
}

// AdvanceStage moves the session one stage forward when the record the
// next stage builds on exists.
func (s *onboardingService) AdvanceStage(ctx context.Context, actor models.Actor, driverID int64) (sess *models.OnboardingSession, err error) {
	ctx, span := startSpan(ctx, "onboarding.AdvanceStage", actor, attribute.Int64("driver.id", driverID))
	defer func() { endSpan(span, err) }()

	sess, err = s.session(ctx, actor, driverID, models.CapAdd)
	if err != nil {
		return nil, err
	}
	if sess.CurrentStage == models.StageComplete {
		return sess, nil
	}
	if err = s.stageSatisfied(ctx, sess); err != nil {
		return nil, err
	}
	stage := sess.CurrentStage
	sess, err = s.commit(ctx, sess, func(x *models.OnboardingSession) {
		s.complete(x, stage)
	})
	if err != nil {
		return nil, err
	}
	if sess.CurrentStage == models.StageComplete {
		s.setDriverStatus(ctx, driverID, models.DriverStatusPendingReview)
	}
	return sess, nil
}

func (s *onboardingService) stageSatisfied(ctx context.Context, sess *models.OnboardingSession) error {
	missing := func(what string) error {
		return fmt.Errorf("stage %s needs %s: %w", sess.CurrentStage, what, errs.ErrPrerequisiteMissing)
	}
	switch sess.CurrentStage {
	case models.StageDriverInfo:
		if sess.DriverProfileID == nil {
			return missing("a driver profile")
		}
	case models.StageDriverDocuments:
		if sess.DriverProfileID == nil {
			return missing("a driver profile")
		}
		cat := models.CategoryDriver
		docs, err := s.docs.ListByOwner(ctx, sess.DriverID, storage.DocumentFilter{Category: &cat})
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return missing("at least one driver document")
		}
	case models.StageVehicleInfo:
		if sess.VehicleProfileID == nil {
			return missing("a vehicle profile")
		}
	case models.StageBankDocuments:
		if sess.BankProfileID == nil {
			return missing("a bank profile")
		}
	}
	return nil
}

// uploadBatch submits every upload independently. Each goroutine records its
// own outcome and returns nil so one failure never cancels the others.
func (s *onboardingService) uploadBatch(ctx context.Context, actor models.Actor, driverID int64, category models.Category,
	stage models.Stage, uploads []models.DocumentUpload) []models.UploadResult {
	results := make([]models.UploadResult, len(uploads))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, up := range uploads {
		g.Go(func() error {
			r := models.UploadResult{Index: i, DocType: up.DocType, FileLabel: up.FileLabel}
			var (
				doc *models.Document
				err = up.Invalid
			)
			if err == nil {
				doc, err = s.registry.Submit(ctx, actor, SubmitInput{
					DriverID:       driverID,
					Category:       category,
					DocType:        up.DocType,
					FileLabel:      up.FileLabel,
					DocumentNumber: up.DocumentNumber,
					FileRef:        up.FileRef,
					ExpiryDate:     up.ExpiryDate,
					Metadata:       up.Metadata,
				})
			}
			r.At = s.now().UTC()
			if err != nil {
				r.Err = err
				r.Error = err.Error()
				r.ErrorKind = errs.Kind(err)
				r.Retryable = errs.Retryable(err)
				metrics.BatchItems.WithLabelValues(string(stage), "failed").Inc()
				s.log.Warning("batch item failed",
					logger.Int64("driver_id", driverID),
					logger.String("stage", string(stage)),
					logger.Int("index", i),
					logger.Error(err),
				)
			} else {
				r.DocumentID = doc.ID
				metrics.BatchItems.WithLabelValues(string(stage), "ok").Inc()
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *onboardingService) setDriverStatus(ctx context.Context, driverID int64, status string) {
	d, err := s.drivers.GetByID(ctx, driverID)
	if err != nil {
		s.log.Warning("cannot load driver for status update", logger.Int64("driver_id", driverID), logger.Error(err))
		return
	}
	if d.Status == status || d.Status == models.DriverStatusActive || d.Status == models.DriverStatusBlocked {
		return
	}
	if status == models.DriverStatusOnboarding && d.Status != models.DriverStatusPending {
		return
	}
	if err := s.drivers.UpdateStatus(ctx, driverID, status); err != nil && !errors.Is(err, errs.ErrNotFound) {
		s.log.Warning("failed to update driver status", logger.Int64("driver_id", driverID), logger.Error(err))
	}
}
