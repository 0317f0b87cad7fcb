package service

import (
	"context"
	"sync"
	"time"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/metrics"
	"taxidocs/pkg/notify"
)

type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
}

// Dispatcher delivers queued reminders on a fixed worker pool. Delivery is
// at least once: a failed attempt is retried with exponential backoff, and
// after the last attempt the dedupe marker is released so the reminder can
// be sent again.
type Dispatcher struct {
	notifier notify.Notifier
	marker   notify.Marker
	cfg      DispatcherConfig
	log      logger.ILogger

	mu     sync.RWMutex
	closed bool
	queue  chan notify.Notification
	wg     sync.WaitGroup
}

func NewDispatcher(notifier notify.Notifier, marker notify.Marker, cfg DispatcherConfig, log logger.ILogger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Dispatcher{
		notifier: notifier,
		marker:   marker,
		cfg:      cfg,
		log:      log,
		queue:    make(chan notify.Notification, cfg.QueueSize),
	}
}

// Start launches the workers. Cancelling ctx does not stop them: deliveries
// run on a context detached from ctx's cancellation, and the workers exit
// only after Stop has closed the queue and everything queued was handled.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Enqueue never blocks; it reports false when the queue is full or closed.
func (d *Dispatcher) Enqueue(n notify.Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- n:
		metrics.ReminderQueueDepth.Inc()
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits until every queued reminder has been
// delivered or, after its last attempt, had its marker released.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for n := range d.queue {
		metrics.ReminderQueueDepth.Dec()
		d.deliver(ctx, n)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n notify.Notification) {
	var err error
retry:
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if err = d.notifier.Notify(ctx, n); err == nil {
			metrics.RemindersTotal.WithLabelValues("sent").Inc()
			d.log.Debug("reminder sent", logger.String("key", n.Key), logger.Int("attempt", attempt))
			return
		}
		d.log.Warning("reminder delivery failed",
			logger.String("key", n.Key),
			logger.Int("attempt", attempt),
			logger.Bool("retryable", errs.Retryable(err)),
			logger.Error(err),
		)
		if attempt == d.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			break retry
		case <-time.After(d.cfg.Backoff << (attempt - 1)):
		}
	}

	metrics.RemindersTotal.WithLabelValues("failed").Inc()
	d.log.Error("reminder dropped after retries", logger.String("key", n.Key), logger.Error(err))

	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rerr := d.marker.Release(releaseCtx, n.Key); rerr != nil {
		d.log.Error("failed to release reminder marker", logger.String("key", n.Key), logger.Error(rerr))
	}
}
