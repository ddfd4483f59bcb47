// Package reveal manages the display lifecycle of sensitive license keys:
// masked by default, revealed inside a bounded time window with automatic
// re-masking, and exportable to the platform clipboard without revealing.
package reveal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the widget's visibility state.
type State string

const (
	StateMasked   State = "masked"
	StateRevealed State = "revealed"
)

// Default windows. The reveal window bounds secret exposure; the copied
// window bounds the transient "copied" indicator.
const (
	DefaultRevealWindow = 10 * time.Second
	DefaultCopiedWindow = 2 * time.Second
)

// Clipboard is the platform clipboard capability: write-only text export.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// ClipboardError is a recoverable clipboard failure, surfaced to the user as
// a transient notification rather than thrown to the caller.
type ClipboardError struct {
	Err error
}

func (e *ClipboardError) Error() string {
	return fmt.Sprintf("clipboard unavailable: %v", e.Err)
}

func (e *ClipboardError) Unwrap() error { return e.Err }

// Scheduler abstracts timer scheduling so the auto-hide countdown is testable.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) CancelFunc
}

// CancelFunc cancels a pending scheduled callback.
type CancelFunc func()

// realScheduler schedules on the runtime timer heap.
type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) CancelFunc {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

// Snapshot is the widget's externally visible state.
type Snapshot struct {
	State   State  `json:"state"`
	Display string `json:"display"`
	Copied  bool   `json:"copied"`
}

// Widget manages one license key's visibility lifecycle.
type Widget struct {
	mu  sync.Mutex
	key string

	state  State
	copied bool
	// Generation counters guard against stale timers: a hide scheduled by an
	// earlier reveal must not re-mask a later one.
	revealGen  uint64
	copiedGen  uint64
	cancelHide CancelFunc
	cancelCopy CancelFunc

	revealWindow time.Duration
	copiedWindow time.Duration

	clipboard Clipboard
	scheduler Scheduler
	logger    *slog.Logger
}

// Option configures a Widget.
type Option func(*Widget)

// WithWindows overrides the reveal and copied-indicator windows.
func WithWindows(reveal, copied time.Duration) Option {
	return func(w *Widget) {
		w.revealWindow = reveal
		w.copiedWindow = copied
	}
}

// WithScheduler injects a scheduler, used by tests to control time.
func WithScheduler(s Scheduler) Option {
	return func(w *Widget) { w.scheduler = s }
}

// NewWidget creates a widget for one key, initially masked.
func NewWidget(key string, clipboard Clipboard, logger *slog.Logger, opts ...Option) *Widget {
	w := &Widget{
		key:          key,
		state:        StateMasked,
		revealWindow: DefaultRevealWindow,
		copiedWindow: DefaultCopiedWindow,
		clipboard:    clipboard,
		scheduler:    realScheduler{},
		logger:       logger.With(slog.String("component", "reveal_widget")),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Reveal shows the full key and starts the auto-hide countdown. Re-entering
// reveal resets the countdown; it cannot be paused.
func (w *Widget) Reveal() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancelHide != nil {
		w.cancelHide()
	}
	w.state = StateRevealed
	w.revealGen++
	gen := w.revealGen
	w.cancelHide = w.scheduler.AfterFunc(w.revealWindow, func() {
		w.autoHide(gen)
	})
}

// Mask re-masks the key immediately and cancels any pending countdown.
func (w *Widget) Mask() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.maskLocked()
}

func (w *Widget) maskLocked() {
	if w.cancelHide != nil {
		w.cancelHide()
		w.cancelHide = nil
	}
	w.state = StateMasked
	w.revealGen++
}

// autoHide is the countdown callback. A stale generation means a later
// reveal or mask superseded this timer.
func (w *Widget) autoHide(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.revealGen {
		return
	}
	w.logger.Debug("reveal window expired, re-masking")
	w.maskLocked()
}

// Copy writes the full unmasked key to the clipboard, independent of the
// current visibility state. On success a transient copied indicator shows
// for the copied window; on failure the error is recoverable.
func (w *Widget) Copy(ctx context.Context) error {
	if err := w.clipboard.WriteText(ctx, w.key); err != nil {
		w.logger.WarnContext(ctx, "clipboard write failed", slog.String("error", err.Error()))
		return &ClipboardError{Err: err}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancelCopy != nil {
		w.cancelCopy()
	}
	w.copied = true
	w.copiedGen++
	gen := w.copiedGen
	w.cancelCopy = w.scheduler.AfterFunc(w.copiedWindow, func() {
		w.clearCopied(gen)
	})
	return nil
}

func (w *Widget) clearCopied(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.copiedGen {
		return
	}
	w.copied = false
}

// State returns the current visibility state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Display returns what the UI should render: the full key while revealed,
// the masked form otherwise.
func (w *Widget) Display() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateRevealed {
		return w.key
	}
	return MaskKey(w.key)
}

// Snapshot returns the full externally visible state.
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	display := MaskKey(w.key)
	if w.state == StateRevealed {
		display = w.key
	}
	return Snapshot{State: w.state, Display: display, Copied: w.copied}
}
