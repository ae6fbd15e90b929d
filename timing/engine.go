// Package timing provides the cooperative event queue every observation,
// instrumented invocation and deferred flush runs on.
package timing

import (
	"time"

	"github.com/sarchlab/framescope/hooking"
)

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTimeInSec
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	TimeTeller

	Schedule(e Event)
}

// An Engine is a unit that keeps the event queue running.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Defer runs fn once, after all the work already queued for the current
	// time and at least delay later.
	Defer(delay time.Duration, fn func())

	// Run will process all the events until the queue is empty.
	Run() error

	// Pause will pause the engine until continue is called.
	Pause()

	// Continue will continue the paused engine.
	Continue()
}
