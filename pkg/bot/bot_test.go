package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
	"taxidocs/pkg/notify"
	"taxidocs/service"
	"taxidocs/storage/memory"
)

const (
	reviewerTeleID = int64(1001)
	driverTeleID   = int64(2002)
)

type sent struct {
	to   string
	what interface{}
	opts []interface{}
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, sent{to: to.Recipient(), what: what, opts: opts})
	return &tele.Message{}, nil
}

type botEnv struct {
	stg    *memory.Store
	svc    service.IServiceManager
	bot    *Bot
	out    *fakeSender
	driver *models.Driver
}

func newBotEnv(t *testing.T, botType BotType) *botEnv {
	t.Helper()
	log := logger.NewNop()
	env := &botEnv{stg: memory.New(), out: &fakeSender{}}
	env.svc = service.New(env.stg, log, service.Options{})

	b, err := newBot(botType, tele.Settings{Offline: true}, []int64{reviewerTeleID}, env.svc, log)
	require.NoError(t, err)
	b.out = env.out
	env.bot = b

	env.driver, err = env.svc.Driver().Register(context.Background(), registrar, driverTeleID, "Suresh", nil)
	require.NoError(t, err)
	return env
}

func (e *botEnv) submit(t *testing.T) *models.Document {
	t.Helper()
	id := e.driver.ID
	actor := models.Actor{ID: "drv", Role: models.RoleDriver, DriverID: &id}
	expiry := time.Now().UTC().AddDate(1, 0, 0)
	doc, err := e.svc.Document().Submit(context.Background(), actor, service.SubmitInput{
		DriverID:   id,
		Category:   models.CategoryDriver,
		DocType:    "license",
		FileLabel:  "front",
		FileRef:    "drivers/1/driver/front.jpg",
		ExpiryDate: &expiry,
	})
	require.NoError(t, err)
	return doc
}

func TestNotifySubmission(t *testing.T) {
	env := newBotEnv(t, BotTypeReviewer)
	env.bot.AdminIDs = []int64{reviewerTeleID, 3003}
	doc := env.submit(t)

	env.bot.NotifySubmission(context.Background(), doc)

	require.Len(t, env.out.msgs, 2)
	assert.Equal(t, "1001", env.out.msgs[0].to)
	assert.Contains(t, env.out.msgs[0].what, fmt.Sprintf("#%d", doc.ID))
	require.Len(t, env.out.msgs[0].opts, 1)
	menu, ok := env.out.msgs[0].opts[0].(*tele.ReplyMarkup)
	require.True(t, ok)
	require.Len(t, menu.InlineKeyboard, 1)
	assert.Equal(t, fmt.Sprintf("approve_doc_%d", doc.ID), menu.InlineKeyboard[0][0].Unique)
	assert.Equal(t, fmt.Sprintf("reject_doc_%d", doc.ID), menu.InlineKeyboard[0][1].Unique)
}

func TestReviewApprove(t *testing.T) {
	env := newBotEnv(t, BotTypeReviewer)
	doc := env.submit(t)
	ctx := context.Background()

	reply, err := env.bot.review(ctx, reviewerTeleID, fmt.Sprintf("\fapprove_doc_%d", doc.ID))
	require.NoError(t, err)
	assert.Contains(t, reply, "approved")

	admin := models.Actor{ID: "a", Role: models.RoleAdmin}
	got, err := env.svc.Document().Get(ctx, admin, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)

	reply, err = env.bot.review(ctx, reviewerTeleID, fmt.Sprintf("approve_doc_%d", doc.ID))
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
	assert.Contains(t, reply, "already reviewed")
}

func TestReviewRejectNeedsReason(t *testing.T) {
	env := newBotEnv(t, BotTypeReviewer)
	doc := env.submit(t)
	ctx := context.Background()

	reply, err := env.bot.review(ctx, reviewerTeleID, fmt.Sprintf("reject_doc_%d", doc.ID))
	require.NoError(t, err)
	assert.Contains(t, reply, "rejection reason")

	reply, ok := env.bot.completeRejection(ctx, reviewerTeleID, "   ")
	require.True(t, ok)
	assert.Contains(t, reply, "reason is required")
	assert.Equal(t, StateRejectReason, env.bot.session(reviewerTeleID).State)

	reply, ok = env.bot.completeRejection(ctx, reviewerTeleID, "photo is blurry")
	require.True(t, ok)
	assert.Contains(t, reply, "photo is blurry")
	assert.Equal(t, StateIdle, env.bot.session(reviewerTeleID).State)

	got, err := env.svc.Document().Get(ctx, models.Actor{ID: "a", Role: models.RoleAdmin}, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "photo is blurry", *got.RejectionReason)

	_, ok = env.bot.completeRejection(ctx, reviewerTeleID, "again")
	assert.False(t, ok)
}

func TestReviewRejectsStrangers(t *testing.T) {
	env := newBotEnv(t, BotTypeReviewer)
	doc := env.submit(t)

	_, err := env.bot.review(context.Background(), driverTeleID, fmt.Sprintf("approve_doc_%d", doc.ID))
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = env.bot.review(context.Background(), reviewerTeleID, "approve_doc_x")
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, err = env.bot.review(context.Background(), reviewerTeleID, "take_5")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestDriverTexts(t *testing.T) {
	env := newBotEnv(t, BotTypeDriver)
	ctx := context.Background()

	text, err := env.bot.documentsText(ctx, driverTeleID)
	require.NoError(t, err)
	assert.Equal(t, messages["en"]["no_documents"], text)

	doc := env.submit(t)
	text, err = env.bot.documentsText(ctx, driverTeleID)
	require.NoError(t, err)
	assert.Contains(t, text, fmt.Sprintf("#%d driver/license: <b>pending</b>", doc.ID))

	text, err = env.bot.statusText(ctx, driverTeleID)
	require.NoError(t, err)
	assert.Contains(t, text, "Current stage: <b>driver_info</b>")

	_, err = env.bot.documentsText(ctx, 999)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestTelegramNotifier(t *testing.T) {
	env := newBotEnv(t, BotTypeDriver)
	n := NewTelegramNotifier(env.bot, env.stg.Driver(), logger.NewNop())
	ctx := context.Background()

	err := n.Notify(ctx, notify.Notification{DriverID: env.driver.ID, DocumentID: 7, Message: "Your license expires soon"})
	require.NoError(t, err)
	require.Len(t, env.out.msgs, 1)
	assert.Equal(t, "2002", env.out.msgs[0].to)
	assert.Equal(t, "⏰ Your license expires soon", env.out.msgs[0].what)

	err = n.Notify(ctx, notify.Notification{DriverID: 404})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	env.out.err = errors.New("telegram: bot was blocked by the user (403)")
	err = n.Notify(ctx, notify.Notification{DriverID: env.driver.ID})
	require.Error(t, err)
	assert.True(t, errs.Retryable(err))
}
