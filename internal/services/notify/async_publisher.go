package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"ticket-platform/monitoring"
)

var (
	ErrQueueFull = errors.New("notify: queue is full")
	ErrClosed    = errors.New("notify: publisher is closed")
)

type job struct {
	topic   string
	payload any
}

// AsyncPublisher hands payloads to a pool of workers so callers never wait on
// the broker. Each payload is retried until it is delivered or attempts run out.
type AsyncPublisher struct {
	next     Publisher
	driver   string
	monitor  *monitoring.Monitor
	attempts int
	backoff  time.Duration
	timeout  time.Duration

	jobs   chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

type AsyncOption func(*AsyncPublisher)

func WithRetry(attempts int, backoff time.Duration) AsyncOption {
	return func(p *AsyncPublisher) {
		p.attempts = attempts
		p.backoff = backoff
	}
}

func NewAsyncPublisher(next Publisher, driver string, buffer, workers int, monitor *monitoring.Monitor, opts ...AsyncOption) *AsyncPublisher {
	if buffer < 1 {
		buffer = 1
	}
	if workers < 1 {
		workers = 1
	}

	p := &AsyncPublisher{
		next:     next,
		driver:   driver,
		monitor:  monitor,
		attempts: 3,
		backoff:  500 * time.Millisecond,
		timeout:  10 * time.Second,
		jobs:     make(chan job, buffer),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Publish enqueues the payload and returns immediately.
func (p *AsyncPublisher) Publish(ctx context.Context, topic string, payload any) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.jobs <- job{topic: topic, payload: payload}:
		p.monitor.SetNotifyQueueDepth(len(p.jobs))
		return nil
	default:
		p.monitor.TrackNotification(p.driver, topic, "dropped")
		return ErrQueueFull
	}
}

func (p *AsyncPublisher) worker() {
	defer p.wg.Done()

	for j := range p.jobs {
		p.monitor.SetNotifyQueueDepth(len(p.jobs))
		p.deliver(j)
	}
}

func (p *AsyncPublisher) deliver(j job) {
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err = p.next.Publish(ctx, j.topic, j.payload)
		cancel()

		if err == nil {
			p.monitor.TrackNotification(p.driver, j.topic, "sent")
			return
		}

		slog.Warn("notification publish failed", "topic", j.topic, "key", messageKey(j.payload), "attempt", attempt, "error", err)
		if attempt < p.attempts {
			time.Sleep(p.backoff * time.Duration(attempt))
		}
	}

	p.monitor.TrackNotification(p.driver, j.topic, "failed")
	slog.Error("notification dropped after retries", "topic", j.topic, "key", messageKey(j.payload), "error", err)
}

// Close stops accepting payloads and waits for queued ones until ctx ends.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
