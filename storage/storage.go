package storage

import (
	"context"
	"time"

	"taxidocs/pkg/models"
)

// IStorage groups the repositories of one backend. Implementations return
// errs.ErrNotFound for missing rows and wrap transient backend failures with
// errs.ErrStorageUnavailable.
type IStorage interface {
	Driver() IDriverStorage
	Document() IDocumentStorage
	Version() IVersionStorage
	Onboarding() IOnboardingStorage
	Permission() IPermissionStorage
	Reset(ctx context.Context) error
	Close()
}

type IDriverStorage interface {
	GetOrCreate(ctx context.Context, teleID int64, fullname string, phone *string) (*models.Driver, error)
	GetByID(ctx context.Context, id int64) (*models.Driver, error)
	GetByTelegramID(ctx context.Context, teleID int64) (*models.Driver, error)
	UpdateStatus(ctx context.Context, id int64, status string) error

	UpsertDriverProfile(ctx context.Context, profile *models.DriverProfile) error
	GetDriverProfile(ctx context.Context, driverID int64) (*models.DriverProfile, error)
	UpsertVehicleProfile(ctx context.Context, profile *models.VehicleProfile) error
	GetVehicleProfile(ctx context.Context, driverID int64) (*models.VehicleProfile, error)
	UpsertBankProfile(ctx context.Context, profile *models.BankProfile) error
	GetBankProfile(ctx context.Context, driverID int64) (*models.BankProfile, error)
}

// DocumentFilter narrows ListByOwner. A nil Category matches every category.
type DocumentFilter struct {
	Category        *models.Category
	IncludeArchived bool
}

type IDocumentStorage interface {
	// Create inserts doc together with its first ledger entry and fills in
	// the generated ids.
	Create(ctx context.Context, doc *models.Document, first *models.DocumentVersion) error
	GetByID(ctx context.Context, id int64) (*models.Document, error)
	ListByOwner(ctx context.Context, ownerID int64, filter DocumentFilter) ([]*models.Document, error)
	// Update writes doc and appends next atomically, provided the stored
	// version still equals expected. A stale expected version yields
	// errs.ErrInvalidTransition.
	Update(ctx context.Context, doc *models.Document, expected int, next *models.DocumentVersion) error
	// ListExpiring returns reviewed, non-archived documents whose expiry
	// date lies in [from, to].
	ListExpiring(ctx context.Context, from, to time.Time) ([]*models.Document, error)
}

type IVersionStorage interface {
	List(ctx context.Context, documentID int64) ([]*models.DocumentVersion, error)
	Get(ctx context.Context, documentID int64, index int) (*models.DocumentVersion, error)
}

type IOnboardingStorage interface {
	GetOrCreate(ctx context.Context, driverID int64) (*models.OnboardingSession, error)
	// Save writes session provided the stored version still equals
	// session.Version, then bumps session.Version. A stale version yields
	// errs.ErrInvalidTransition.
	Save(ctx context.Context, session *models.OnboardingSession) error
}

type IPermissionStorage interface {
	// ListPermissions returns the permission names ("view", "add", ...)
	// granted to role on module.
	ListPermissions(ctx context.Context, role, module string) ([]string, error)
}
