package bot

import (
	"fmt"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"

	"taxidocs/config"
	"taxidocs/pkg/logger"
	"taxidocs/service"
)

type BotType string

const (
	BotTypeDriver   BotType = "driver"
	BotTypeReviewer BotType = "reviewer"
)

const (
	StateIdle         = "idle"
	StateRejectReason = "awaiting_reject_reason"
)

type UserSession struct {
	State string
	DocID int64
}

// sender is the subset of *tele.Bot used for outgoing messages.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type Bot struct {
	Type     BotType
	Bot      *tele.Bot
	Log      logger.ILogger
	Svc      service.IServiceManager
	AdminIDs []int64

	out      sender
	mu       sync.Mutex
	sessions map[int64]*UserSession
}

// New connects a bot to Telegram. Svc must be set before Start.
func New(botType BotType, cfg config.Config, log logger.ILogger) (*Bot, error) {
	token := cfg.DriverBotToken
	if botType == BotTypeReviewer {
		token = cfg.AdminBotToken
	}
	return newBot(botType, tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}, cfg.AdminIDs, nil, log)
}

func newBot(botType BotType, pref tele.Settings, adminIDs []int64, svc service.IServiceManager, log logger.ILogger) (*Bot, error) {
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("telegram %s bot: %w", botType, err)
	}
	bot := &Bot{
		Type:     botType,
		Bot:      b,
		Log:      log.With(logger.String("bot", string(botType))),
		Svc:      svc,
		AdminIDs: adminIDs,
		out:      b,
		sessions: make(map[int64]*UserSession),
	}
	bot.registerHandlers()
	return bot, nil
}

func (b *Bot) Start() {
	b.Log.Info(fmt.Sprintf("%s bot started", b.Type))
	b.Bot.Start()
}

func (b *Bot) Stop() {
	b.Bot.Stop()
}

var messages = map[string]map[string]string{
	"en": {
		"welcome":         "👋 Welcome! Share your phone number to start onboarding.",
		"share_contact":   "📱 Share phone number",
		"own_contact":     "Please share your own phone number.",
		"registered":      "🎉 You are registered. Continue onboarding in the driver app.",
		"blocked":         "🚫 Your account is blocked.",
		"menu_driver":     "🚖 Driver menu:",
		"btn_documents":   "📄 My documents",
		"btn_status":      "🧭 Onboarding status",
		"no_documents":    "📭 No documents uploaded yet.",
		"not_registered":  "Send /start to register first.",
		"no_entry":        "🚫 This bot is for document reviewers only.",
		"menu_reviewer":   "🛠 Reviewer panel. New submissions arrive here.",
		"notif_submitted": "🔔 NEW DOCUMENT #%d\n👤 Driver #%d\n📂 %s / %s\n📎 %s\n📅 Expires: %s",
		"btn_approve":     "✅ Approve",
		"btn_reject":      "❌ Reject",
		"ask_reason":      "✍️ Send the rejection reason for document #%d.",
		"approved":        "✅ Document #%d approved.",
		"rejected":        "❌ Document #%d rejected: %s",
		"failed":          "⚠️ Document #%d: %s",
		"reminder":        "⏰ %s",
	},
}

func (b *Bot) registerHandlers() {
	b.Bot.Handle("/start", b.handleStart)

	if b.Type == BotTypeDriver {
		b.Bot.Handle(tele.OnContact, b.handleContact)
		b.Bot.Handle(messages["en"]["btn_documents"], b.handleMyDocuments)
		b.Bot.Handle(messages["en"]["btn_status"], b.handleStatus)
		return
	}

	b.Bot.Handle(tele.OnCallback, b.handleCallback)
	b.Bot.Handle(tele.OnText, b.handleText)
}

func (b *Bot) session(teleID int64) *UserSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[teleID]
	if !ok {
		s = &UserSession{State: StateIdle}
		b.sessions[teleID] = s
	}
	return s
}

func (b *Bot) setSession(teleID int64, state string, docID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[teleID] = &UserSession{State: state, DocID: docID}
}

func (b *Bot) isAdmin(teleID int64) bool {
	for _, id := range b.AdminIDs {
		if id == teleID {
			return true
		}
	}
	return false
}
