package service

import (
	"context"
	"time"

	"taxidocs/pkg/blob"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
	"taxidocs/pkg/notify"
	"taxidocs/storage"
)

type IServiceManager interface {
	Driver() DriverService
	Document() DocumentService
	Verification() VerificationService
	Ledger() LedgerService
	Reminder() ReminderService
	Onboarding() OnboardingService
	Capabilities() CapabilityResolver
}

// Options carries the collaborators and tunables of the service layer. Zero
// values fall back to in-process defaults.
type Options struct {
	Blob              blob.Store
	CheckBlobOnSubmit bool
	Marker            notify.Marker
	Dispatcher        *Dispatcher
	CapabilityTTL     time.Duration
	UploadConcurrency int
	// OnSubmit is called with every newly submitted or resubmitted document.
	OnSubmit func(ctx context.Context, doc *models.Document)
	Now      func() time.Time
}

type service struct {
	driverService       DriverService
	documentService     DocumentService
	verificationService VerificationService
	ledgerService       LedgerService
	reminderService     ReminderService
	onboardingService   OnboardingService
	capabilities        CapabilityResolver
}

func New(stg storage.IStorage, log logger.ILogger, opts Options) IServiceManager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Marker == nil {
		opts.Marker = notify.NewMemoryMarker()
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = NewDispatcher(notify.NewLogNotifier(log), opts.Marker, DispatcherConfig{}, log)
		opts.Dispatcher.Start(context.Background())
	}
	if opts.UploadConcurrency <= 0 {
		opts.UploadConcurrency = 4
	}

	caps := NewCapabilityResolver(stg, log, opts.CapabilityTTL)
	sm := &stateMachine{docs: stg.Document(), log: log, now: opts.Now}
	registry := &documentService{
		drivers:   stg.Driver(),
		docs:      stg.Document(),
		sm:        sm,
		caps:      caps,
		blob:      opts.Blob,
		checkBlob: opts.CheckBlobOnSubmit,
		log:       log,
		now:       opts.Now,
		onSubmit:  opts.OnSubmit,
	}

	return &service{
		driverService:       NewDriverService(stg, caps, log),
		documentService:     registry,
		verificationService: newVerificationService(sm, caps),
		ledgerService:       &ledgerService{registry: registry, versions: stg.Version()},
		reminderService: &reminderService{
			docs:       stg.Document(),
			caps:       caps,
			marker:     opts.Marker,
			dispatcher: opts.Dispatcher,
			log:        log,
			now:        opts.Now,
		},
		onboardingService: &onboardingService{
			drivers:     stg.Driver(),
			sessions:    stg.Onboarding(),
			docs:        stg.Document(),
			registry:    registry,
			caps:        caps,
			concurrency: opts.UploadConcurrency,
			log:         log,
			now:         opts.Now,
		},
		capabilities: caps,
	}
}

func (s *service) Driver() DriverService {
	return s.driverService
}

func (s *service) Document() DocumentService {
	return s.documentService
}

func (s *service) Verification() VerificationService {
	return s.verificationService
}

func (s *service) Ledger() LedgerService {
	return s.ledgerService
}

func (s *service) Reminder() ReminderService {
	return s.reminderService
}

func (s *service) Onboarding() OnboardingService {
	return s.onboardingService
}

func (s *service) Capabilities() CapabilityResolver {
	return s.capabilities
}
