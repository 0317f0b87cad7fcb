//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
	"taxidocs/storage"
)

type StoreSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
	store     *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := tcpostgres.Run(s.ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("taxidocs"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	url, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	log := logger.NewNop()
	s.Require().NoError(Migrate(url, "../../migrations/postgres", log))

	s.pool, err = pgxpool.New(s.ctx, url)
	s.Require().NoError(err)
	s.store = NewWithPool(s.pool, log)
}

func (s *StoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *StoreSuite) SetupTest() {
	s.Require().NoError(s.store.Reset(s.ctx))
}

func (s *StoreSuite) newDriver() *models.Driver {
	d, err := s.store.Driver().GetOrCreate(s.ctx, 9001, "Meena", nil)
	s.Require().NoError(err)
	return d
}

func (s *StoreSuite) newDocument(ownerID int64) *models.Document {
	now := time.Now().UTC().Truncate(time.Microsecond)
	expiry := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	doc := &models.Document{
		OwnerID:    ownerID,
		Category:   models.CategoryVehicle,
		DocType:    "insurance",
		FileRef:    "drivers/1/vehicle/a.pdf",
		Status:     models.StatusPending,
		ExpiryDate: &expiry,
		Metadata:   map[string]string{"insurer": "acme"},
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	first := &models.DocumentVersion{
		VersionIndex: 1,
		Event:        models.EventSubmitted,
		Actor:        "driver:1",
		ToStatus:     models.StatusPending,
		Snapshot:     doc.Snapshot(),
		CreatedAt:    now,
	}
	s.Require().NoError(s.store.Document().Create(s.ctx, doc, first))
	s.Require().NotZero(doc.ID)
	return doc
}

func (s *StoreSuite) TestDriverGetOrCreateIsIdempotent() {
	a := s.newDriver()
	b, err := s.store.Driver().GetOrCreate(s.ctx, 9001, "Other name", nil)
	s.Require().NoError(err)
	s.Equal(a.ID, b.ID)
	s.Equal(models.DriverStatusPending, b.Status)

	_, err = s.store.Driver().GetByID(s.ctx, a.ID+100)
	s.ErrorIs(err, errs.ErrNotFound)
}

func (s *StoreSuite) TestDocumentCompareAndSwap() {
	d := s.newDriver()
	doc := s.newDocument(d.ID)

	got, err := s.store.Document().GetByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal("acme", got.Metadata["insurer"])
	s.Equal(1, got.Version)

	pending := models.StatusPending
	got.Status = models.StatusApproved
	got.Version = 2
	got.UpdatedAt = time.Now().UTC()
	next := &models.DocumentVersion{
		DocumentID:   doc.ID,
		VersionIndex: 2,
		Event:        models.EventApproved,
		Actor:        "reviewer:r1",
		FromStatus:   &pending,
		ToStatus:     models.StatusApproved,
		Snapshot:     got.Snapshot(),
		CreatedAt:    got.UpdatedAt,
	}
	s.Require().NoError(s.store.Document().Update(s.ctx, got, 1, next))

	err = s.store.Document().Update(s.ctx, got, 1, next)
	s.ErrorIs(err, errs.ErrInvalidTransition)

	missing := got.Clone()
	missing.ID = doc.ID + 999
	err = s.store.Document().Update(s.ctx, missing, 2, next)
	s.ErrorIs(err, errs.ErrNotFound)

	versions, err := s.store.Version().List(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().Len(versions, 2)
	s.Equal(models.EventSubmitted, versions[0].Event)
	s.Require().NotNil(versions[1].FromStatus)
	s.Equal(models.StatusPending, *versions[1].FromStatus)

	v, err := s.store.Version().Get(s.ctx, doc.ID, 1)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, v.Snapshot.Status)

	_, err = s.store.Version().Get(s.ctx, doc.ID, 3)
	s.ErrorIs(err, errs.ErrNotFound)
}

func (s *StoreSuite) TestVersionsAreImmutable() {
	doc := s.newDocument(s.newDriver().ID)

	_, err := s.pool.Exec(s.ctx, `UPDATE document_versions SET actor = 'x' WHERE document_id = $1`, doc.ID)
	s.Error(err)
	_, err = s.pool.Exec(s.ctx, `DELETE FROM document_versions WHERE document_id = $1`, doc.ID)
	s.Error(err)
}

func (s *StoreSuite) TestListExpiringSkipsPending() {
	d := s.newDriver()
	doc := s.newDocument(d.ID)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	docs, err := s.store.Document().ListExpiring(s.ctx, from, to)
	s.Require().NoError(err)
	s.Empty(docs)

	_, err = s.pool.Exec(s.ctx, `UPDATE documents SET status = 'approved' WHERE id = $1`, doc.ID)
	s.Require().NoError(err)
	docs, err = s.store.Document().ListExpiring(s.ctx, from, to)
	s.Require().NoError(err)
	s.Len(docs, 1)

	vehicle := models.CategoryVehicle
	listed, err := s.store.Document().ListByOwner(s.ctx, d.ID, storage.DocumentFilter{Category: &vehicle})
	s.Require().NoError(err)
	s.Len(listed, 1)
}

func (s *StoreSuite) TestOnboardingSession() {
	d := s.newDriver()
	sess, err := s.store.Onboarding().GetOrCreate(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(models.StageDriverInfo, sess.CurrentStage)

	profile := &models.DriverProfile{DriverID: d.ID, FullName: "Meena", LicenseNumber: "KA01"}
	s.Require().NoError(s.store.Driver().UpsertDriverProfile(s.ctx, profile))

	sess.CurrentStage = models.StageDriverDocuments
	sess.CompletedStages = []models.Stage{models.StageDriverInfo}
	sess.DriverProfileID = &profile.ID
	stale := *sess
	s.Require().NoError(s.store.Onboarding().Save(s.ctx, sess))

	stale.CurrentStage = models.StageVehicleInfo
	s.ErrorIs(s.store.Onboarding().Save(s.ctx, &stale), errs.ErrInvalidTransition)

	again, err := s.store.Onboarding().GetOrCreate(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(1, again.Version)
	s.Equal(models.StageDriverDocuments, again.CurrentStage)
	s.Equal([]models.Stage{models.StageDriverInfo}, again.CompletedStages)
	s.Require().NotNil(again.DriverProfileID)
	s.Equal(profile.ID, *again.DriverProfileID)

	_, err = s.store.Onboarding().GetOrCreate(s.ctx, d.ID+100)
	s.ErrorIs(err, errs.ErrNotFound)
}

func (s *StoreSuite) TestSeededPermissionsSurviveReset() {
	s.Require().NoError(s.store.Reset(s.ctx))
	perms, err := s.store.Permission().ListPermissions(s.ctx, models.RoleReviewer, models.ModuleDocuments)
	s.Require().NoError(err)
	s.Equal([]string{"edit", "view"}, perms)
}
