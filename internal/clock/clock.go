// Package clock abstracts time so the session router's delays, ring timeouts and
// interval jobs can be driven by a virtual clock in tests.
package clock

import "time"

// Clock schedules callbacks and tickers
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer is a pending AfterFunc callback
type Timer interface {
	// Stop cancels the callback; it reports false if the callback already ran or was stopped
	Stop() bool
}

// Ticker delivers ticks on C at a fixed period
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// New returns a Clock backed by the time package
func New() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
