package bot

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/notify"
	"taxidocs/storage"
)

// TelegramNotifier delivers expiry reminders through the driver bot.
type TelegramNotifier struct {
	out     sender
	drivers storage.IDriverStorage
	log     logger.ILogger
}

func NewTelegramNotifier(b *Bot, drivers storage.IDriverStorage, log logger.ILogger) *TelegramNotifier {
	return &TelegramNotifier{out: b.out, drivers: drivers, log: log}
}

func (n *TelegramNotifier) Notify(ctx context.Context, msg notify.Notification) error {
	driver, err := n.drivers.GetByID(ctx, msg.DriverID)
	if err != nil {
		return err
	}
	if driver.TelegramID == 0 {
		return fmt.Errorf("driver %d has no telegram account: %w", driver.ID, errs.ErrValidation)
	}
	if _, err := n.out.Send(&tele.User{ID: driver.TelegramID}, fmt.Sprintf(messages["en"]["reminder"], msg.Message)); err != nil {
		return fmt.Errorf("telegram send: %v: %w", err, errs.ErrStorageUnavailable)
	}
	n.log.Info("reminder delivered",
		logger.Int64("document_id", msg.DocumentID),
		logger.Int64("driver_id", msg.DriverID),
		logger.String("key", msg.Key),
	)
	return nil
}
