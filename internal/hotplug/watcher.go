// Package hotplug turns platform device-change signals into debounced
// notifications for the bridge's hotplug notifier.
package hotplug

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultDebounce coalesces the burst of uevents one plug produces.
const DefaultDebounce = 500 * time.Millisecond

// ErrRegistered is returned by Register while a registration is active.
var ErrRegistered = errors.New("hotplug: watcher already registered")

// Source produces raw change signals until ctx is cancelled. changed may be
// called from any goroutine and as often as the platform reports changes.
type Source interface {
	Name() string
	Run(ctx context.Context, changed func()) error
}

// Watcher runs a Source and delivers one notification per burst of changes.
// It implements bridge.Watcher.
type Watcher struct {
	source   Source
	debounce time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before notifying. Zero notifies on
// every signal.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the watcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a watcher over source.
func New(source Source, opts ...Option) *Watcher {
	w := &Watcher{
		source:   source,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Register starts the source. notify runs on the watcher's goroutine, never
// concurrently with itself.
func (w *Watcher) Register(notify func()) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return ErrRegistered
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan struct{}, 1)
	done := make(chan struct{})
	w.cancel, w.done = cancel, done

	changed := func() {
		select {
		case signals <- struct{}{}:
		default:
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		err := w.source.Run(ctx, changed)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("Hotplug source stopped", "source", w.source.Name(), "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		w.deliver(ctx, signals, notify)
	}()
	go func() {
		wg.Wait()
		close(done)
	}()

	w.logger.Info("Hotplug watcher registered", "source", w.source.Name(), "debounce", w.debounce)
	return nil
}

func (w *Watcher) deliver(ctx context.Context, signals <-chan struct{}, notify func()) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case <-signals:
			if w.debounce <= 0 {
				notify()
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.logger.Debug("Capture devices changed", "source", w.source.Name())
			notify()
		}
	}
}

// Unregister stops the source and waits for delivery to finish. notify is
// not called after it returns.
func (w *Watcher) Unregister() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.logger.Info("Hotplug watcher unregistered", "source", w.source.Name())
}
