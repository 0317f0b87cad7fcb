package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
	"taxidocs/service"
)

// registrar creates driver records for Telegram users who share their
// own contact.
var registrar = models.Actor{ID: "driver-bot", Role: models.RoleAdmin}

func (b *Bot) handleStart(c tele.Context) error {
	if b.Type == BotTypeReviewer {
		if !b.isAdmin(c.Sender().ID) {
			return c.Send(messages["en"]["no_entry"])
		}
		b.setSession(c.Sender().ID, StateIdle, 0)
		return c.Send(messages["en"]["menu_reviewer"])
	}

	driver, err := b.Svc.Driver().GetByTelegramID(context.Background(), c.Sender().ID)
	if errors.Is(err, errs.ErrNotFound) {
		menu := &tele.ReplyMarkup{ResizeKeyboard: true}
		menu.Reply(menu.Row(menu.Contact(messages["en"]["share_contact"])))
		return c.Send(messages["en"]["welcome"], menu)
	}
	if err != nil {
		b.Log.Error("failed to load driver", logger.Error(err), logger.Int64("telegram_id", c.Sender().ID))
		return err
	}
	if driver.Status == models.DriverStatusBlocked {
		return c.Send(messages["en"]["blocked"])
	}
	return b.showMenu(c)
}

func (b *Bot) handleContact(c tele.Context) error {
	contact := c.Message().Contact
	if contact.UserID != c.Sender().ID {
		return c.Send(messages["en"]["own_contact"])
	}
	fullName := strings.TrimSpace(c.Sender().FirstName + " " + c.Sender().LastName)
	phone := contact.PhoneNumber
	driver, err := b.Svc.Driver().Register(context.Background(), registrar, c.Sender().ID, fullName, &phone)
	if err != nil {
		b.Log.Error("driver registration failed", logger.Error(err), logger.Int64("telegram_id", c.Sender().ID))
		return err
	}
	b.Log.Info("driver registered via telegram", logger.Int64("driver_id", driver.ID))
	if err := c.Send(messages["en"]["registered"], tele.RemoveKeyboard); err != nil {
		return err
	}
	return b.showMenu(c)
}

func (b *Bot) showMenu(c tele.Context) error {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(menu.Row(menu.Text(messages["en"]["btn_documents"])), menu.Row(menu.Text(messages["en"]["btn_status"])))
	return c.Send(messages["en"]["menu_driver"], menu)
}

func (b *Bot) handleMyDocuments(c tele.Context) error {
	text, err := b.documentsText(context.Background(), c.Sender().ID)
	if err != nil {
		return c.Send(messages["en"]["not_registered"])
	}
	return c.Send(text, tele.ModeHTML)
}

func (b *Bot) handleStatus(c tele.Context) error {
	text, err := b.statusText(context.Background(), c.Sender().ID)
	if err != nil {
		return c.Send(messages["en"]["not_registered"])
	}
	return c.Send(text, tele.ModeHTML)
}

// actorFor resolves the driver behind a Telegram account.
func (b *Bot) actorFor(ctx context.Context, teleID int64) (models.Actor, *models.Driver, error) {
	driver, err := b.Svc.Driver().GetByTelegramID(ctx, teleID)
	if err != nil {
		return models.Actor{}, nil, err
	}
	id := driver.ID
	return models.Actor{ID: fmt.Sprintf("tg:%d", teleID), Role: models.RoleDriver, DriverID: &id}, driver, nil
}

func (b *Bot) documentsText(ctx context.Context, teleID int64) (string, error) {
	actor, driver, err := b.actorFor(ctx, teleID)
	if err != nil {
		return "", err
	}
	docs, err := b.Svc.Document().ListByDriver(ctx, actor, driver.ID, service.ListFilter{})
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return messages["en"]["no_documents"], nil
	}

	var sb strings.Builder
	sb.WriteString("<b>📄 Documents</b>\n\n")
	for _, d := range docs {
		fmt.Fprintf(&sb, "#%d %s/%s: <b>%s</b>", d.ID, d.Category, d.DocType, d.Status)
		if d.ExpiryDate != nil {
			fmt.Fprintf(&sb, " (expires %s)", d.ExpiryDate.Format("2006-01-02"))
		}
		if d.RejectionReason != nil {
			fmt.Fprintf(&sb, "\n   reason: %s", *d.RejectionReason)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (b *Bot) statusText(ctx context.Context, teleID int64) (string, error) {
	actor, driver, err := b.actorFor(ctx, teleID)
	if err != nil {
		return "", err
	}
	sess, err := b.Svc.Onboarding().GetStage(ctx, actor, driver.ID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>🧭 Onboarding</b>\nCurrent stage: <b>%s</b>\n", sess.CurrentStage)
	for _, st := range models.Stages {
		mark := "⬜"
		if sess.Passed(st) {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s %s\n", mark, st)
	}
	return sb.String(), nil
}
