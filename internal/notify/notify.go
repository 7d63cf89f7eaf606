// Package notify delivers user-facing notifications from the background
// refresh loop without ever blocking it.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"wheel-tracker/internal/config"
	"wheel-tracker/pkg/utils"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// String returns the display name of the level.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "Info"
	case LevelWarning:
		return "Warning"
	case LevelError:
		return "Error"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Sink receives notifications. Notify must return promptly; slow delivery
// happens elsewhere.
type Sink interface {
	Notify(level Level, message string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(level Level, message string)

// Notify calls f.
func (f SinkFunc) Notify(level Level, message string) { f(level, message) }

// Notification represents a notification message.
type Notification struct {
	Level     Level
	Message   string
	Timestamp time.Time
}

// Channel defines the interface for a notification channel.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// LevelFilter selects which notifications are delivered.
type LevelFilter string

const (
	FilterAll        LevelFilter = "all"
	FilterWarnings   LevelFilter = "warnings"
	FilterErrorsOnly LevelFilter = "errors_only"
)

// Allows reports whether a notification at level passes the filter.
func (f LevelFilter) Allows(level Level) bool {
	switch f {
	case FilterWarnings:
		return level >= LevelWarning
	case FilterErrorsOnly:
		return level >= LevelError
	default:
		return true
	}
}

const (
	defaultQueueSize   = 100
	defaultSendTimeout = 10 * time.Second
)

// Dispatcher implements Sink with a bounded queue and a background worker
// that fans notifications out to its channels. When the queue is full the
// oldest pending notification is dropped.
type Dispatcher struct {
	queue       chan Notification
	filter      LevelFilter
	sendTimeout time.Duration
	retry       utils.RetryConfig
	logger      zerolog.Logger

	mu       sync.RWMutex
	channels []Channel

	dropped atomic.Int64
	wg      sync.WaitGroup
	once    sync.Once
	stop    chan struct{}
}

// NewDispatcher creates a Dispatcher with the channels enabled in cfg.
func NewDispatcher(cfg config.NotificationConfig, logger zerolog.Logger) *Dispatcher {
	d := newDispatcher(cfg.QueueSize, LevelFilter(cfg.Level), logger)
	if cfg.Retries > 0 {
		d.retry.MaxAttempts = cfg.Retries
	}

	if cfg.Terminal.Enabled {
		d.AddChannel(NewTerminalChannel(nil, cfg.Terminal.Color))
	}
	if cfg.Webhook.Enabled {
		d.AddChannel(NewWebhookChannel(cfg.Webhook))
	}
	if cfg.Telegram.Enabled {
		d.AddChannel(NewTelegramChannel(cfg.Telegram))
	}
	if cfg.Email.Enabled {
		d.AddChannel(NewEmailChannel(cfg.Email))
	}

	return d
}

func newDispatcher(queueSize int, filter LevelFilter, logger zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if filter == "" {
		filter = FilterAll
	}
	return &Dispatcher{
		queue:       make(chan Notification, queueSize),
		filter:      filter,
		sendTimeout: defaultSendTimeout,
		retry:       utils.DefaultRetryConfig(),
		logger:      logger.With().Str("component", "notify").Logger(),
		stop:        make(chan struct{}),
	}
}

// AddChannel adds a notification channel.
func (d *Dispatcher) AddChannel(ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, ch)
}

// Notify enqueues a notification. It never blocks.
func (d *Dispatcher) Notify(level Level, message string) {
	if !d.filter.Allows(level) {
		return
	}

	n := Notification{Level: level, Message: message, Timestamp: time.Now()}
	for {
		select {
		case d.queue <- n:
			return
		default:
		}
		// Buffer full, drop oldest notification
		select {
		case <-d.queue:
			d.dropped.Add(1)
		default:
		}
	}
}

// Dropped returns how many notifications were discarded because the queue
// was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Start starts the delivery worker. It stops when ctx is cancelled or Stop is
// called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stop:
				d.drain()
				return
			case n := <-d.queue:
				d.deliver(n)
			}
		}
	}()
}

// Stop delivers what is still queued and waits for the worker to exit.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.stop) })
	d.wg.Wait()
}

func (d *Dispatcher) drain() {
	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(n Notification) {
	d.mu.RLock()
	channels := d.channels
	d.mu.RUnlock()

	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		err := utils.Retry(context.Background(), d.retry, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			defer cancel()
			return ch.Send(ctx, n)
		})
		if err != nil {
			d.logger.Warn().Err(err).Str("channel", ch.Name()).Int("attempts", d.retry.MaxAttempts).Msg("Notification delivery failed")
		}
	}
}

// RecorderSink captures notifications in memory.
type RecorderSink struct {
	mu      sync.Mutex
	entries []Notification
}

// Notify records the notification.
func (r *RecorderSink) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Notification{Level: level, Message: message, Timestamp: time.Now()})
}

// Entries returns a copy of the recorded notifications.
func (r *RecorderSink) Entries() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns the number of recorded notifications at level.
func (r *RecorderSink) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Contains reports whether any recorded message contains substr.
func (r *RecorderSink) Contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// NopSink discards every notification.
type NopSink struct{}

// Notify does nothing.
func (NopSink) Notify(Level, string) {}
