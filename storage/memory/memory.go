// Package memory is an in-process IStorage used by tests and by
// STORAGE_BACKEND=memory. Every read returns a copy.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/models"
	"taxidocs/storage"
)

type Store struct {
	mu sync.RWMutex

	drivers         map[int64]*models.Driver
	driverProfiles  map[int64]*models.DriverProfile
	vehicleProfiles map[int64]*models.VehicleProfile
	bankProfiles    map[int64]*models.BankProfile
	documents       map[int64]*models.Document
	versions        map[int64][]*models.DocumentVersion
	sessions        map[int64]*models.OnboardingSession
	permissions     map[string][]string

	seq int64
}

// DefaultPermissions mirrors the role_permissions seed migration.
var DefaultPermissions = map[string]map[string][]string{
	models.RoleAdmin: {
		models.ModuleDocuments:  {"view", "add", "edit", "delete"},
		models.ModuleOnboarding: {"view", "add", "edit"},
		models.ModuleDrivers:    {"view", "add", "edit"},
	},
	models.RoleReviewer: {
		models.ModuleDocuments:  {"view", "edit"},
		models.ModuleOnboarding: {"view"},
		models.ModuleDrivers:    {"view"},
	},
	models.RoleDriver: {
		models.ModuleDocuments:  {"view", "add"},
		models.ModuleOnboarding: {"view", "add"},
		models.ModuleDrivers:    {"view"},
	},
	models.RoleSystem: {
		models.ModuleDocuments: {"view", "edit"},
	},
}

func New() *Store {
	s := &Store{}
	s.init()
	for role, modules := range DefaultPermissions {
		for module, perms := range modules {
			s.SetPermissions(role, module, perms...)
		}
	}
	return s
}

func (s *Store) init() {
	s.drivers = map[int64]*models.Driver{}
	s.driverProfiles = map[int64]*models.DriverProfile{}
	s.vehicleProfiles = map[int64]*models.VehicleProfile{}
	s.bankProfiles = map[int64]*models.BankProfile{}
	s.documents = map[int64]*models.Document{}
	s.versions = map[int64][]*models.DocumentVersion{}
	s.sessions = map[int64]*models.OnboardingSession{}
	if s.permissions == nil {
		s.permissions = map[string][]string{}
	}
}

// SetPermissions replaces the permissions granted to role on module.
func (s *Store) SetPermissions(role, module string, perms ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[role+"/"+module] = append([]string(nil), perms...)
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *Store) Driver() storage.IDriverStorage         { return driverRepo{s} }
func (s *Store) Document() storage.IDocumentStorage     { return documentRepo{s} }
func (s *Store) Version() storage.IVersionStorage       { return versionRepo{s} }
func (s *Store) Onboarding() storage.IOnboardingStorage { return onboardingRepo{s} }
func (s *Store) Permission() storage.IPermissionStorage { return permissionRepo{s} }

func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.seq = 0
	return nil
}

func (s *Store) Close() {}

type driverRepo struct{ s *Store }

func (r driverRepo) GetOrCreate(ctx context.Context, teleID int64, fullname string, phone *string) (*models.Driver, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	for _, d := range r.s.drivers {
		if d.TelegramID == teleID {
			d.FullName = fullname
			if phone != nil {
				p := *phone
				d.Phone = &p
			}
			d.UpdatedAt = now
			c := *d
			return &c, nil
		}
	}
	d := &models.Driver{
		ID:         r.s.nextID(),
		TelegramID: teleID,
		FullName:   fullname,
		Status:     models.DriverStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if phone != nil {
		p := *phone
		d.Phone = &p
	}
	r.s.drivers[d.ID] = d
	c := *d
	return &c, nil
}

func (r driverRepo) GetByID(ctx context.Context, id int64) (*models.Driver, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.drivers[id]
	if !ok {
		return nil, fmt.Errorf("driver %d: %w", id, errs.ErrNotFound)
	}
	c := *d
	return &c, nil
}

func (r driverRepo) GetByTelegramID(ctx context.Context, teleID int64) (*models.Driver, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, d := range r.s.drivers {
		if d.TelegramID == teleID {
			c := *d
			return &c, nil
		}
	}
	return nil, fmt.Errorf("driver with telegram id %d: %w", teleID, errs.ErrNotFound)
}

func (r driverRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.drivers[id]
	if !ok {
		return fmt.Errorf("driver %d: %w", id, errs.ErrNotFound)
	}
	d.Status = status
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r driverRepo) UpsertDriverProfile(ctx context.Context, p *models.DriverProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.drivers[p.DriverID]; !ok {
		return fmt.Errorf("driver %d: %w", p.DriverID, errs.ErrNotFound)
	}
	if old, ok := r.s.driverProfiles[p.DriverID]; ok {
		p.ID, p.CreatedAt = old.ID, old.CreatedAt
	} else {
		p.ID, p.CreatedAt = r.s.nextID(), time.Now().UTC()
	}
	c := *p
	r.s.driverProfiles[p.DriverID] = &c
	return nil
}

func (r driverRepo) GetDriverProfile(ctx context.Context, driverID int64) (*models.DriverProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.driverProfiles[driverID]
	if !ok {
		return nil, fmt.Errorf("driver profile %d: %w", driverID, errs.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (r driverRepo) UpsertVehicleProfile(ctx context.Context, p *models.VehicleProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.drivers[p.DriverID]; !ok {
		return fmt.Errorf("driver %d: %w", p.DriverID, errs.ErrNotFound)
	}
	if prof, ok := r.s.driverProfiles[p.DriverID]; !ok || prof.ID != p.DriverProfileID {
		return fmt.Errorf("driver profile %d: %w", p.DriverProfileID, errs.ErrNotFound)
	}
	if old, ok := r.s.vehicleProfiles[p.DriverID]; ok {
		p.ID, p.CreatedAt = old.ID, old.CreatedAt
	} else {
		p.ID, p.CreatedAt = r.s.nextID(), time.Now().UTC()
	}
	c := *p
	r.s.vehicleProfiles[p.DriverID] = &c
	return nil
}

func (r driverRepo) GetVehicleProfile(ctx context.Context, driverID int64) (*models.VehicleProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.vehicleProfiles[driverID]
	if !ok {
		return nil, fmt.Errorf("vehicle profile %d: %w", driverID, errs.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (r driverRepo) UpsertBankProfile(ctx context.Context, p *models.BankProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.drivers[p.DriverID]; !ok {
		return fmt.Errorf("driver %d: %w", p.DriverID, errs.ErrNotFound)
	}
	if old, ok := r.s.bankProfiles[p.DriverID]; ok {
		p.ID, p.CreatedAt = old.ID, old.CreatedAt
	} else {
		p.ID, p.CreatedAt = r.s.nextID(), time.Now().UTC()
	}
	c := *p
	r.s.bankProfiles[p.DriverID] = &c
	return nil
}

func (r driverRepo) GetBankProfile(ctx context.Context, driverID int64) (*models.BankProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.bankProfiles[driverID]
	if !ok {
		return nil, fmt.Errorf("bank profile %d: %w", driverID, errs.ErrNotFound)
	}
	c := *p
	return &c, nil
}

type documentRepo struct{ s *Store }

func (r documentRepo) Create(ctx context.Context, doc *models.Document, first *models.DocumentVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.drivers[doc.OwnerID]; !ok {
		return fmt.Errorf("owner %d: %w", doc.OwnerID, errs.ErrNotFound)
	}
	doc.ID = r.s.nextID()
	first.DocumentID = doc.ID
	r.s.documents[doc.ID] = doc.Clone()
	r.s.versions[doc.ID] = []*models.DocumentVersion{first.Clone()}
	return nil
}

func (r documentRepo) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, errs.ErrNotFound)
	}
	return d.Clone(), nil
}

func (r documentRepo) ListByOwner(ctx context.Context, ownerID int64, filter storage.DocumentFilter) ([]*models.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.Document
	for _, d := range r.s.documents {
		if d.OwnerID != ownerID {
			continue
		}
		if filter.Category != nil && d.Category != *filter.Category {
			continue
		}
		if d.Archived && !filter.IncludeArchived {
			continue
		}
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r documentRepo) Update(ctx context.Context, doc *models.Document, expected int, next *models.DocumentVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.documents[doc.ID]
	if !ok {
		return fmt.Errorf("document %d: %w", doc.ID, errs.ErrNotFound)
	}
	if cur.Version != expected {
		return fmt.Errorf("document %d: stale version %d: %w", doc.ID, expected, errs.ErrInvalidTransition)
	}
	r.s.documents[doc.ID] = doc.Clone()
	r.s.versions[doc.ID] = append(r.s.versions[doc.ID], next.Clone())
	return nil
}

func (r documentRepo) ListExpiring(ctx context.Context, from, to time.Time) ([]*models.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.Document
	for _, d := range r.s.documents {
		if d.Status == models.StatusPending || d.Archived || d.ExpiryDate == nil {
			continue
		}
		if d.ExpiryDate.Before(from) || d.ExpiryDate.After(to) {
			continue
		}
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type versionRepo struct{ s *Store }

func (r versionRepo) List(ctx context.Context, documentID int64) ([]*models.DocumentVersion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	vs := r.s.versions[documentID]
	out := make([]*models.DocumentVersion, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Clone())
	}
	return out, nil
}

func (r versionRepo) Get(ctx context.Context, documentID int64, index int) (*models.DocumentVersion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	vs := r.s.versions[documentID]
	if index < 1 || index > len(vs) {
		return nil, fmt.Errorf("version %d/%d: %w", documentID, index, errs.ErrNotFound)
	}
	return vs[index-1].Clone(), nil
}

type onboardingRepo struct{ s *Store }

func (r onboardingRepo) GetOrCreate(ctx context.Context, driverID int64) (*models.OnboardingSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.drivers[driverID]; !ok {
		return nil, fmt.Errorf("driver %d: %w", driverID, errs.ErrNotFound)
	}
	sess, ok := r.s.sessions[driverID]
	if !ok {
		sess = &models.OnboardingSession{
			DriverID:     driverID,
			CurrentStage: models.StageDriverInfo,
			UpdatedAt:    time.Now().UTC(),
		}
		r.s.sessions[driverID] = sess
	}
	return cloneSession(sess), nil
}

func (r onboardingRepo) Save(ctx context.Context, sess *models.OnboardingSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.drivers[sess.DriverID]; !ok {
		return fmt.Errorf("driver %d: %w", sess.DriverID, errs.ErrNotFound)
	}
	stored, ok := r.s.sessions[sess.DriverID]
	if ok && stored.Version != sess.Version || !ok && sess.Version != 0 {
		return fmt.Errorf("onboarding session %d: stale version %d: %w", sess.DriverID, sess.Version, errs.ErrInvalidTransition)
	}
	sess.Version++
	r.s.sessions[sess.DriverID] = cloneSession(sess)
	return nil
}

func cloneSession(s *models.OnboardingSession) *models.OnboardingSession {
	c := *s
	c.CompletedStages = append([]models.Stage(nil), s.CompletedStages...)
	c.DriverProfileID = cloneID(s.DriverProfileID)
	c.VehicleProfileID = cloneID(s.VehicleProfileID)
	c.BankProfileID = cloneID(s.BankProfileID)
	return &c
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

type permissionRepo struct{ s *Store }

func (r permissionRepo) ListPermissions(ctx context.Context, role, module string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]string(nil), r.s.permissions[role+"/"+module]...), nil
}
