package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
	"taxidocs/pkg/notify"
	"taxidocs/storage/memory"
)

var (
	testNow  = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	admin    = models.Actor{ID: "admin-1", Role: models.RoleAdmin}
	reviewer = models.Actor{ID: "rev-1", Role: models.RoleReviewer}
)

type testEnv struct {
	stg        *memory.Store
	svc        IServiceManager
	marker     *notify.MemoryMarker
	dispatcher *Dispatcher
	driver     *models.Driver
	driverAct  models.Actor
	now        time.Time
}

// newTestEnv wires the services on the in-memory store with a dispatcher
// that is never started, so queued reminders stay observable.
func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()
	env := &testEnv{
		stg:    memory.New(),
		marker: notify.NewMemoryMarker(),
		now:    testNow,
	}
	log := logger.NewNop()
	env.dispatcher = NewDispatcher(notify.NewLogNotifier(log), env.marker, DispatcherConfig{QueueSize: 4}, log)
	opts := Options{
		Marker:        env.marker,
		Dispatcher:    env.dispatcher,
		CapabilityTTL: time.Minute,
		Now:           func() time.Time { return env.now },
	}
	for _, m := range mutate {
		m(&opts)
	}
	env.svc = New(env.stg, log, opts)

	d, err := env.svc.Driver().Register(context.Background(), admin, 5551234, "Ravi Kumar", nil)
	require.NoError(t, err)
	env.driver = d
	env.driverAct = driverActor(d.ID)
	return env
}

func driverActor(id int64) models.Actor {
	return models.Actor{ID: "drv", Role: models.RoleDriver, DriverID: &id}
}

func (e *testEnv) submit(t *testing.T, category models.Category, docType string, expiry *time.Time) *models.Document {
	t.Helper()
	doc, err := e.svc.Document().Submit(context.Background(), e.driverAct, SubmitInput{
		DriverID:   e.driver.ID,
		Category:   category,
		DocType:    docType,
		FileLabel:  "front",
		FileRef:    "drivers/1/" + docType + ".jpg",
		ExpiryDate: expiry,
	})
	require.NoError(t, err)
	return doc
}

func datePtr(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func strPtr(s string) *string { return &s }
