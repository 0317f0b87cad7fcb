package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
	"taxidocs/storage/memory"
)

func TestCapabilityResolverCaches(t *testing.T) {
	stg := memory.New()
	r := NewCapabilityResolver(stg, logger.NewNop(), time.Minute).(*capabilityResolver)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	set, err := r.Resolve(ctx, reviewer, models.ModuleDocuments)
	require.NoError(t, err)
	assert.True(t, set.Has(models.CapView))
	assert.True(t, set.Has(models.CapEdit))
	assert.False(t, set.Has(models.CapDelete))

	stg.SetPermissions(models.RoleReviewer, models.ModuleDocuments, "view")
	set, err = r.Resolve(ctx, reviewer, models.ModuleDocuments)
	require.NoError(t, err)
	assert.True(t, set.Has(models.CapEdit), "served from cache")

	now = now.Add(2 * time.Minute)
	set, err = r.Resolve(ctx, reviewer, models.ModuleDocuments)
	require.NoError(t, err)
	assert.False(t, set.Has(models.CapEdit), "refreshed after the TTL")

	stg.SetPermissions(models.RoleReviewer, models.ModuleDocuments, "view", "edit", "bogus")
	r.Invalidate()
	require.NoError(t, r.Require(ctx, reviewer, models.ModuleDocuments, models.CapEdit))
}

func TestCapabilityRequire(t *testing.T) {
	r := NewCapabilityResolver(memory.New(), logger.NewNop(), 0)
	ctx := context.Background()

	require.ErrorIs(t, r.Require(ctx, models.Actor{}, models.ModuleDocuments, models.CapView), errs.ErrUnauthorized)
	require.ErrorIs(t, r.Require(ctx, models.Actor{ID: "x", Role: "guest"}, models.ModuleDocuments, models.CapView), errs.ErrForbidden)
	require.NoError(t, r.Require(ctx, models.SystemActor, models.ModuleDocuments, models.CapEdit))
	require.ErrorIs(t, r.Require(ctx, models.SystemActor, models.ModuleDocuments, models.CapDelete), errs.ErrForbidden)
}

func TestRequireOwner(t *testing.T) {
	require.NoError(t, requireOwner(admin, 5))
	require.NoError(t, requireOwner(driverActor(5), 5))
	require.ErrorIs(t, requireOwner(driverActor(6), 5), errs.ErrForbidden)
	require.ErrorIs(t, requireOwner(models.Actor{ID: "d", Role: models.RoleDriver}, 5), errs.ErrForbidden)
}
