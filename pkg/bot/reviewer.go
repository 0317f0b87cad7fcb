package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
)

const (
	approvePrefix = "approve_doc_"
	rejectPrefix  = "reject_doc_"
)

// NotifySubmission pushes a freshly submitted document to every reviewer
// with approve and reject buttons. It is meant to be installed as the
// document service submit hook.
func (b *Bot) NotifySubmission(ctx context.Context, doc *models.Document) {
	expires := "no expiry"
	if doc.ExpiryDate != nil {
		expires = doc.ExpiryDate.Format("2006-01-02")
	}
	label := doc.FileLabel
	if label == "" {
		label = doc.FileRef
	}
	msg := fmt.Sprintf(messages["en"]["notif_submitted"], doc.ID, doc.OwnerID, doc.Category, doc.DocType, label, expires)

	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(
		menu.Data(messages["en"]["btn_approve"], fmt.Sprintf("%s%d", approvePrefix, doc.ID)),
		menu.Data(messages["en"]["btn_reject"], fmt.Sprintf("%s%d", rejectPrefix, doc.ID)),
	))

	sent := 0
	for _, id := range b.AdminIDs {
		if _, err := b.out.Send(&tele.User{ID: id}, msg, menu); err != nil {
			b.Log.Error("failed to notify reviewer", logger.Error(err), logger.Int64("admin_id", id), logger.Int64("document_id", doc.ID))
			continue
		}
		sent++
	}
	b.Log.Debug("submission notifications sent", logger.Int64("document_id", doc.ID), logger.Int("sent_count", sent))
}

func (b *Bot) handleCallback(c tele.Context) error {
	reply, err := b.review(context.Background(), c.Sender().ID, c.Callback().Data)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: reply, ShowAlert: true})
	}
	if c.Callback().Message != nil {
		if _, err := b.Bot.EditReplyMarkup(c.Callback().Message, nil); err != nil {
			b.Log.Warning("failed to clear review buttons", logger.Error(err))
		}
	}
	if err := c.Send(reply); err != nil {
		return err
	}
	return c.Respond()
}

func (b *Bot) handleText(c tele.Context) error {
	reply, ok := b.completeRejection(context.Background(), c.Sender().ID, c.Text())
	if !ok {
		return nil
	}
	return c.Send(reply)
}

// review applies an approve_doc_<id> or reject_doc_<id> callback. Reject
// only records the document and waits for the reason message.
func (b *Bot) review(ctx context.Context, teleID int64, data string) (string, error) {
	if !b.isAdmin(teleID) {
		return messages["en"]["no_entry"], errs.ErrForbidden
	}
	data = strings.TrimPrefix(data, "\f")
	if i := strings.IndexByte(data, '|'); i >= 0 {
		data = data[:i]
	}

	switch {
	case strings.HasPrefix(data, approvePrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, approvePrefix), 10, 64)
		if err != nil {
			return "bad callback", fmt.Errorf("callback %q: %w", data, errs.ErrValidation)
		}
		if _, err := b.Svc.Verification().Approve(ctx, reviewerActor(teleID), id, 0); err != nil {
			return b.failure(id, err), err
		}
		return fmt.Sprintf(messages["en"]["approved"], id), nil
	case strings.HasPrefix(data, rejectPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, rejectPrefix), 10, 64)
		if err != nil {
			return "bad callback", fmt.Errorf("callback %q: %w", data, errs.ErrValidation)
		}
		b.setSession(teleID, StateRejectReason, id)
		return fmt.Sprintf(messages["en"]["ask_reason"], id), nil
	}
	return "unknown action", fmt.Errorf("callback %q: %w", data, errs.ErrValidation)
}

// completeRejection consumes a pending reject prompt. ok is false when the
// reviewer had no prompt open.
func (b *Bot) completeRejection(ctx context.Context, teleID int64, reason string) (reply string, ok bool) {
	sess := b.session(teleID)
	if sess.State != StateRejectReason || !b.isAdmin(teleID) {
		return "", false
	}
	id := sess.DocID
	reason = strings.TrimSpace(reason)

	_, err := b.Svc.Verification().Reject(ctx, reviewerActor(teleID), id, reason, 0)
	if errors.Is(err, errs.ErrValidation) {
		// keep the prompt open for another try
		return b.failure(id, err), true
	}
	b.setSession(teleID, StateIdle, 0)
	if err != nil {
		return b.failure(id, err), true
	}
	return fmt.Sprintf(messages["en"]["rejected"], id, reason), true
}

func (b *Bot) failure(id int64, err error) string {
	b.Log.Warning("review action failed", logger.Int64("document_id", id), logger.Error(err))
	switch {
	case errors.Is(err, errs.ErrInvalidTransition):
		return fmt.Sprintf(messages["en"]["failed"], id, "already reviewed or changed, reload and retry")
	case errors.Is(err, errs.ErrNotFound):
		return fmt.Sprintf(messages["en"]["failed"], id, "not found")
	case errors.Is(err, errs.ErrValidation):
		return fmt.Sprintf(messages["en"]["failed"], id, "a non-empty reason is required")
	}
	return fmt.Sprintf(messages["en"]["failed"], id, errs.Kind(err))
}

func reviewerActor(teleID int64) models.Actor {
	return models.Actor{ID: fmt.Sprintf("tg:%d", teleID), Role: models.RoleReviewer}
}
