// Package notify is the notification dispatcher every provider reports
// outcomes through: a queue of transient toasts that expire on their own.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
)

// DefaultDuration is how long a notification stays queued unless told otherwise.
const DefaultDuration = 3000 * time.Millisecond

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Item is one queued notification.
type Item struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"type"`
	Title     string        `json:"title,omitempty"`
	Message   string        `json:"message"`
	Duration  time.Duration `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
}

// DurationMs is the duration as the views expect it.
func (i Item) DurationMs() int64 {
	return i.Duration.Milliseconds()
}

// Option adjusts a single notification.
type Option func(*Item)

// WithTitle sets the optional title.
func WithTitle(title string) Option {
	return func(i *Item) { i.Title = title }
}

// WithDuration overrides DefaultDuration. Non-positive values are ignored.
func WithDuration(d time.Duration) Option {
	return func(i *Item) {
		if d > 0 {
			i.Duration = d
		}
	}
}

// Observer is told about every shown notification.
type Observer interface {
	ObserveNotification(kind string)
}

// Dispatcher holds the ordered queue. Show never blocks; removal is timer driven.
type Dispatcher struct {
	clock    clock.Clock
	logger   *slog.Logger
	observer Observer

	mu     sync.Mutex
	items  []Item
	timers map[string]clock.Timer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clk clock.Clock) DispatcherOption {
	return func(d *Dispatcher) { d.clock = clk }
}

// WithLogger sets the logger that records every notification.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithObserver forwards notification counts, typically to telemetry.Metrics.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// NewDispatcher returns an empty dispatcher on the wall clock.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		clock:  clock.WallClock,
		logger: slog.Default(),
		timers: make(map[string]clock.Timer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Show queues a notification and schedules its removal. It returns the id.
func (d *Dispatcher) Show(kind Kind, message string, opts ...Option) string {
	item := Item{
		ID:        "notification-" + uuid.NewString(),
		Kind:      kind,
		Message:   message,
		Duration:  DefaultDuration,
		CreatedAt: d.clock.Now(),
	}
	for _, opt := range opts {
		opt(&item)
	}

	d.mu.Lock()
	d.items = append(d.items, item)
	d.timers[item.ID] = d.clock.AfterFunc(item.Duration, func() {
		d.expire(item.ID)
	})
	d.mu.Unlock()

	d.logger.Info("notification", "kind", string(kind), "message", message, "id", item.ID)
	if d.observer != nil {
		d.observer.ObserveNotification(string(kind))
	}
	return item.ID
}

// Success queues a success notification.
func (d *Dispatcher) Success(message string, opts ...Option) string {
	return d.Show(KindSuccess, message, opts...)
}

// Error queues an error notification.
func (d *Dispatcher) Error(message string, opts ...Option) string {
	return d.Show(KindError, message, opts...)
}

// Info queues an info notification.
func (d *Dispatcher) Info(message string, opts ...Option) string {
	return d.Show(KindInfo, message, opts...)
}

// Dismiss removes a notification before it expires. It reports whether id was queued.
func (d *Dispatcher) Dismiss(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[id]; ok {
		t.Stop()
		delete(d.timers, id)
	}
	return d.removeLocked(id)
}

// Items returns a snapshot of the queue, oldest first.
func (d *Dispatcher) Items() []Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Item, len(d.items))
	copy(out, d.items)
	return out
}

// Len is the number of queued notifications.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

func (d *Dispatcher) expire(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.timers, id)
	d.removeLocked(id)
}

func (d *Dispatcher) removeLocked(id string) bool {
	for i, it := range d.items {
		if it.ID == id {
			d.items = append(d.items[:i], d.items[i+1:]...)
			return true
		}
	}
	return false
}
