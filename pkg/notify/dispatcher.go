package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	sn_metrics "tweetapp/pkg/metrics"
	"tweetapp/pkg/model"
)

var (
	ErrQueueFull        = errors.New("notification queue is full")
	ErrDispatcherClosed = errors.New("notification dispatcher is closed")
)

type job struct {
	ctx   context.Context
	event model.Event
}

// Dispatcher decouples callers from a slow or failing sink. Publish only
// enqueues; a pool of workers delivers events to the sink. When the queue is
// full the event is dropped.
type Dispatcher struct {
	sink    Sink
	logger  *slog.Logger
	timeout time.Duration
	queue   chan job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

func NewDispatcher(sink Sink, logger *slog.Logger, queueSize int, numWorkers int, timeout time.Duration) *Dispatcher {
	if queueSize < 0 {
		queueSize = 0
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	d := &Dispatcher{
		sink:    sink,
		logger:  logger,
		timeout: timeout,
		queue:   make(chan job, queueSize),
	}
	d.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer d.wg.Done()
			d.worker()
		}()
	}
	return d
}

// Publish enqueues event without waiting for delivery. The request context
// is detached from its cancellation so delivery can outlive the request.
func (d *Dispatcher) Publish(ctx context.Context, event model.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		sn_metrics.DroppedNotifications.Get(sn_metrics.EventLabel{Type: string(event.Type)}).Inc()
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	for j := range d.queue {
		ctx := j.ctx
		var cancel context.CancelFunc = func() {}
		if d.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
		}
		err := d.sink.Publish(ctx, j.event)
		cancel()
		if err != nil {
			d.logger.Warn("error delivering notification", "type", j.event.Type, "tweet_id", j.event.Tweet.TweetID, "msg", err.Error())
		}
	}
}

// Close stops accepting events and waits for the queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}
