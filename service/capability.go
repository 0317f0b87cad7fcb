package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
	"taxidocs/storage"
)

// CapabilityResolver answers what an actor may do on a module. Sets are
// looked up once per (role, module) and kept for a TTL.
type CapabilityResolver interface {
	Resolve(ctx context.Context, actor models.Actor, module string) (models.CapabilitySet, error)
	Require(ctx context.Context, actor models.Actor, module string, c models.Capability) error
	Invalidate()
}

type cacheEntry struct {
	set     models.CapabilitySet
	expires time.Time
}

type capabilityResolver struct {
	stg storage.IPermissionStorage
	log logger.ILogger
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func NewCapabilityResolver(stg storage.IStorage, log logger.ILogger, ttl time.Duration) CapabilityResolver {
	return &capabilityResolver{
		stg:   stg.Permission(),
		log:   log,
		ttl:   ttl,
		now:   time.Now,
		cache: map[string]cacheEntry{},
	}
}

func (r *capabilityResolver) Resolve(ctx context.Context, actor models.Actor, module string) (models.CapabilitySet, error) {
	if actor.Role == "" {
		return 0, fmt.Errorf("anonymous actor: %w", errs.ErrUnauthorized)
	}
	key := actor.Role + "/" + module

	r.mu.RLock()
	e, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && r.now().Before(e.expires) {
		return e.set, nil
	}

	perms, err := r.stg.ListPermissions(ctx, actor.Role, module)
	if err != nil {
		return 0, err
	}
	var set models.CapabilitySet
	for _, p := range perms {
		c, ok := models.ParseCapability(p)
		if !ok {
			r.log.Warning("unknown permission", logger.String("role", actor.Role), logger.String("permission", p))
			continue
		}
		set |= models.NewCapabilitySet(c)
	}

	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[key] = cacheEntry{set: set, expires: r.now().Add(r.ttl)}
		r.mu.Unlock()
	}
	return set, nil
}

func (r *capabilityResolver) Require(ctx context.Context, actor models.Actor, module string, c models.Capability) error {
	set, err := r.Resolve(ctx, actor, module)
	if err != nil {
		return err
	}
	if !set.Has(c) {
		return fmt.Errorf("%s lacks %s on %s: %w", actor, c, module, errs.ErrForbidden)
	}
	return nil
}

// Invalidate drops every cached set, e.g. after role_permissions changed.
func (r *capabilityResolver) Invalidate() {
	r.mu.Lock()
	r.cache = map[string]cacheEntry{}
	r.mu.Unlock()
}

// requireOwner keeps drivers inside their own records. Staff roles are
// limited by capabilities only.
func requireOwner(actor models.Actor, driverID int64) error {
	if actor.Role != models.RoleDriver {
		return nil
	}
	if actor.DriverID == nil || *actor.DriverID != driverID {
		return fmt.Errorf("%s cannot access driver %d: %w", actor, driverID, errs.ErrForbidden)
	}
	return nil
}
