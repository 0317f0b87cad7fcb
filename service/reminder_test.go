package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
	"taxidocs/pkg/notify"
	"taxidocs/pkg/notify/mocks"
)

// Insurance expiring in 20 days may be reminded about only once reviewed.
func TestInsuranceReminderAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.submit(t, models.CategoryVehicle, "insurance", datePtr(testNow.AddDate(0, 0, 20)))

	_, err := env.svc.Reminder().SendReminder(ctx, reviewer, doc.ID)
	require.ErrorIs(t, err, errs.ErrValidation, "pending documents get no reminder")

	_, err = env.svc.Verification().Approve(ctx, reviewer, doc.ID, 0)
	require.NoError(t, err)

	res, err := env.svc.Reminder().SendReminder(ctx, reviewer, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, ReminderQueued, res)

	n := <-env.dispatcher.queue
	assert.Equal(t, doc.ID, n.DocumentID)
	assert.Equal(t, env.driver.ID, n.DriverID)
	assert.Equal(t, "reminder:"+itoa(doc.ID)+":2025-03-10", n.Key)
	assert.Contains(t, n.Message, "20 days left")

	// Resubmission puts it back to pending and the reminder goes away.
	_, err = env.svc.Document().Resubmit(ctx, env.driverAct, doc.ID, ResubmitInput{})
	require.NoError(t, err)
	env.now = env.now.AddDate(0, 0, 1)
	_, err = env.svc.Reminder().SendReminder(ctx, reviewer, doc.ID)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestSendReminderOncePerDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.submit(t, models.CategoryDriver, "license", datePtr(testNow.AddDate(0, 0, 3)))
	_, err := env.svc.Verification().Reject(ctx, reviewer, doc.ID, "faded", 0)
	require.NoError(t, err)

	res, err := env.svc.Reminder().SendReminder(ctx, reviewer, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, ReminderQueued, res)

	env.now = env.now.Add(6 * time.Hour)
	res, err = env.svc.Reminder().SendReminder(ctx, reviewer, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, ReminderDuplicate, res)
	assert.Len(t, env.dispatcher.queue, 1)

	env.now = testNow.AddDate(0, 0, 1)
	res, err = env.svc.Reminder().SendReminder(ctx, reviewer, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, ReminderQueued, res)
	assert.Len(t, env.dispatcher.queue, 2)
}

func TestSendReminderRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	far := env.submit(t, models.CategoryVehicle, "permit", datePtr(testNow.AddDate(0, 0, 45)))
	_, err := env.svc.Verification().Approve(ctx, reviewer, far.ID, 0)
	require.NoError(t, err)
	_, err = env.svc.Reminder().SendReminder(ctx, reviewer, far.ID)
	require.ErrorIs(t, err, errs.ErrValidation)

	expired := env.submit(t, models.CategoryVehicle, "puc", datePtr(testNow.AddDate(0, 0, -1)))
	_, err = env.svc.Verification().Approve(ctx, reviewer, expired.ID, 0)
	require.NoError(t, err)
	_, err = env.svc.Reminder().SendReminder(ctx, reviewer, expired.ID)
	require.ErrorIs(t, err, errs.ErrValidation)

	noExpiry := env.submit(t, models.CategoryDriver, "pan", nil)
	_, err = env.svc.Verification().Approve(ctx, reviewer, noExpiry.ID, 0)
	require.NoError(t, err)
	_, err = env.svc.Reminder().SendReminder(ctx, reviewer, noExpiry.ID)
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = env.svc.Reminder().SendReminder(ctx, env.driverAct, far.ID)
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = env.svc.Reminder().SendReminder(ctx, reviewer, 9999)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSendReminderQueueFull(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var docs []*models.Document
	for i := 0; i < 5; i++ {
		d := env.submit(t, models.CategoryVehicle, "insurance", datePtr(testNow.AddDate(0, 0, 10)))
		_, err := env.svc.Verification().Approve(ctx, reviewer, d.ID, 0)
		require.NoError(t, err)
		docs = append(docs, d)
	}
	for _, d := range docs[:4] {
		_, err := env.svc.Reminder().SendReminder(ctx, reviewer, d.ID)
		require.NoError(t, err)
	}

	_, err := env.svc.Reminder().SendReminder(ctx, reviewer, docs[4].ID)
	require.ErrorIs(t, err, errs.ErrStorageUnavailable)
	assert.True(t, errs.Retryable(err))
	assert.False(t, env.marker.Held(ReminderKey(docs[4].ID, testNow)), "marker released for a retry")
}

func TestSweepReminders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	soon := env.submit(t, models.CategoryVehicle, "insurance", datePtr(testNow.AddDate(0, 0, 20)))
	_, err := env.svc.Verification().Approve(ctx, reviewer, soon.ID, 0)
	require.NoError(t, err)

	env.submit(t, models.CategoryVehicle, "rc", datePtr(testNow.AddDate(0, 0, 5))) // pending

	later := env.submit(t, models.CategoryDriver, "license", datePtr(testNow.AddDate(0, 0, 90)))
	_, err = env.svc.Verification().Approve(ctx, reviewer, later.ID, 0)
	require.NoError(t, err)

	res, err := env.svc.Reminder().SweepReminders(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 1, Queued: 1}, res)

	res, err = env.svc.Reminder().SweepReminders(ctx, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 1, Duplicates: 1}, res)
}

func TestDispatcherRetriesThenReleases(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	marker := notify.NewMemoryMarker()
	ctx := context.Background()

	ok, err := marker.Acquire(ctx, "reminder:1:2025-03-10", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	var wg sync.WaitGroup
	wg.Add(3)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, notify.Notification) error {
			wg.Done()
			return errors.New("chat not found")
		}).Times(3)

	d := NewDispatcher(notifier, marker, DispatcherConfig{Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond}, logger.NewNop())
	d.Start(ctx)
	require.True(t, d.Enqueue(notify.Notification{DocumentID: 1, Key: "reminder:1:2025-03-10"}))
	wg.Wait()
	d.Stop()

	assert.False(t, marker.Held("reminder:1:2025-03-10"))
}

func TestDispatcherDeliversOnRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	marker := notify.NewMemoryMarker()
	ctx := context.Background()
	_, _ = marker.Acquire(ctx, "k", time.Hour)

	gomock.InOrder(
		notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errs.ErrStorageUnavailable),
		notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil),
	)

	d := NewDispatcher(notifier, marker, DispatcherConfig{Workers: 2, MaxAttempts: 3, Backoff: time.Millisecond}, logger.NewNop())
	d.Start(ctx)
	require.True(t, d.Enqueue(notify.Notification{Key: "k"}))
	d.Stop()

	assert.True(t, marker.Held("k"), "delivered reminders keep their marker")
	assert.False(t, d.Enqueue(notify.Notification{Key: "late"}), "stopped dispatcher refuses work")
}

// Reminders still queued when the service context is cancelled are
// delivered before Stop returns, so no marker stays held for a reminder
// that was never sent.
func TestDispatcherDrainsQueueOnShutdown(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	marker := notify.NewMemoryMarker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sent atomic.Int32
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ notify.Notification) error {
			time.Sleep(5 * time.Millisecond)
			if err := ctx.Err(); err != nil {
				return err
			}
			sent.Add(1)
			return nil
		}).Times(5)

	d := NewDispatcher(notifier, marker, DispatcherConfig{Workers: 1, QueueSize: 8, MaxAttempts: 1}, logger.NewNop())
	d.Start(ctx)
	for i := 1; i <= 5; i++ {
		key := "reminder:" + itoa(int64(i)) + ":2025-03-10"
		ok, err := marker.Acquire(ctx, key, time.Hour)
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, d.Enqueue(notify.Notification{DocumentID: int64(i), Key: key}))
	}
	cancel()
	d.Stop()

	assert.Equal(t, int32(5), sent.Load())
	for i := 1; i <= 5; i++ {
		assert.True(t, marker.Held("reminder:"+itoa(int64(i))+":2025-03-10"))
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
