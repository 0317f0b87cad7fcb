package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"taxidocs/config"
	"taxidocs/pkg/api"
	"taxidocs/pkg/blob"
	"taxidocs/pkg/bot"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
	"taxidocs/pkg/notify"
	"taxidocs/service"
	"taxidocs/storage"
	"taxidocs/storage/memory"
	"taxidocs/storage/postgres"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("service stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("service stopped")
}

func run(ctx context.Context, cfg config.Config, log logger.ILogger) error {
	stg, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stg.Close()

	marker, err := openMarker(ctx, cfg, log)
	if err != nil {
		return err
	}

	store, err := blob.NewS3(ctx, cfg, log)
	if err != nil {
		return err
	}

	var driverBot, reviewerBot *bot.Bot
	if cfg.DriverBotToken != "" {
		if driverBot, err = bot.New(bot.BotTypeDriver, cfg, log); err != nil {
			return err
		}
	}
	if cfg.AdminBotToken != "" {
		if reviewerBot, err = bot.New(bot.BotTypeReviewer, cfg, log); err != nil {
			return err
		}
	}

	notifier, closeNotifier, err := openNotifier(cfg, stg, driverBot, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	dispatcher := service.NewDispatcher(notifier, marker, service.DispatcherConfig{
		Workers:     cfg.ReminderWorkers,
		QueueSize:   cfg.ReminderQueueSize,
		MaxAttempts: cfg.ReminderMaxAttempts,
	}, log)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	opts := service.Options{
		Blob:              store,
		CheckBlobOnSubmit: cfg.BlobCheckOnPut,
		Marker:            marker,
		Dispatcher:        dispatcher,
		CapabilityTTL:     cfg.CapabilityCacheTTL,
		UploadConcurrency: cfg.UploadConcurrency,
	}
	if reviewerBot != nil {
		opts.OnSubmit = reviewerBot.NotifySubmission
	}
	svc := service.New(stg, log, opts)

	g, gctx := errgroup.WithContext(ctx)

	for _, b := range []*bot.Bot{driverBot, reviewerBot} {
		if b == nil {
			continue
		}
		b.Svc = svc
		g.Go(func() error {
			b.Start()
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			b.Stop()
			return nil
		})
	}

	g.Go(func() error {
		sweepLoop(gctx, svc.Reminder(), cfg.ReminderSweepInterval, log)
		return nil
	})

	srv := api.NewServer(cfg.HTTPPort, api.NewRouter(svc, []byte(cfg.JWTSecret), log))
	g.Go(func() error {
		log.Info("http server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStorage(ctx context.Context, cfg config.Config, log logger.ILogger) (storage.IStorage, error) {
	if cfg.StorageBackend == "memory" {
		log.Warning("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	}
	return postgres.New(ctx, cfg, log)
}

func openMarker(ctx context.Context, cfg config.Config, log logger.ILogger) (notify.Marker, error) {
	if cfg.RedisURL == "" {
		log.Warning("REDIS_URL not set, reminder dedupe is per process")
		return notify.NewMemoryMarker(), nil
	}
	client, err := notify.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return notify.NewRedisMarker(client, cfg.ServiceName), nil
}

func openNotifier(cfg config.Config, stg storage.IStorage, driverBot *bot.Bot, log logger.ILogger) (notify.Notifier, func(), error) {
	switch cfg.NotifierBackend {
	case "telegram":
		if driverBot == nil {
			return nil, nil, errors.New("telegram notifier requires DRIVER_BOT_TOKEN")
		}
		return bot.NewTelegramNotifier(driverBot, stg.Driver(), log), func() {}, nil
	case "kafka":
		k, err := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaReminderTopic, log)
		if err != nil {
			return nil, nil, err
		}
		return k, k.Close, nil
	}
	return notify.NewLogNotifier(log), func() {}, nil
}

// sweepLoop queues expiry reminders once at startup and then on every tick.
func sweepLoop(ctx context.Context, reminders service.ReminderService, interval time.Duration, log logger.ILogger) {
	if interval <= 0 {
		log.Warning("reminder sweep disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := reminders.SweepReminders(ctx, time.Now())
		if err != nil {
			log.Error("reminder sweep failed", logger.Error(err), logger.String("actor", models.SystemActor.String()))
		} else {
			log.Info("reminder sweep done",
				logger.Int("scanned", res.Scanned),
				logger.Int("queued", res.Queued),
				logger.Int("duplicates", res.Duplicates),
				logger.Int("failed", res.Failed),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
