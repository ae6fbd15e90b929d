// Package mutation forwards structural change notifications of a host.
package mutation

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/sarchlab/framescope/tree"
)

// ErrAlreadyWatching is returned when a watcher is started twice.
var ErrAlreadyWatching = errors.New("mutation: watcher already started")

// A Watcher subscribes once to a host notifier and calls back on every
// notification.
type Watcher struct {
	notifier    tree.Notifier
	log         zerolog.Logger
	unsubscribe func()
	onMutation  func()
	count       uint64
}

// NewWatcher creates a watcher over notifier.
func NewWatcher(notifier tree.Notifier, logger zerolog.Logger) *Watcher {
	return &Watcher{notifier: notifier, log: logger}
}

// Start subscribes to the notifier. onMutation runs synchronously inside the
// notification callback.
func (w *Watcher) Start(onMutation func()) error {
	if w.unsubscribe != nil {
		return ErrAlreadyWatching
	}

	w.onMutation = onMutation
	w.unsubscribe = w.notifier.Subscribe(w.notified)

	return nil
}

func (w *Watcher) notified() {
	if w.onMutation == nil {
		return
	}

	w.count++
	w.log.Trace().Uint64("notification", w.count).Msg("structure changed")
	w.onMutation()
}

// Stop unsubscribes. Stopping a stopped watcher does nothing.
func (w *Watcher) Stop() {
	if w.unsubscribe == nil {
		return
	}

	w.unsubscribe()
	w.unsubscribe = nil
	w.onMutation = nil
}

// Watching tells whether the watcher is subscribed.
func (w *Watcher) Watching() bool {
	return w.unsubscribe != nil
}

// Notifications returns how many notifications were forwarded.
func (w *Watcher) Notifications() uint64 {
	return w.count
}
