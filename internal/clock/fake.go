package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Timer callbacks run synchronously inside
// Advance, in deadline order, on the goroutine that calls Advance.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	seq     int64
	timers  map[int64]*fakeTimer
	tickers map[int64]*fakeTicker
}

// NewFake returns a Fake clock reading start
func NewFake(start time.Time) *Fake {
	return &Fake{
		now:     start,
		timers:  make(map[int64]*fakeTimer),
		tickers: make(map[int64]*fakeTicker),
	}
}

// Now returns the virtual time
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc registers f to run once the virtual time reaches now+d
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{clock: f, id: f.seq, deadline: f.now.Add(d), fn: fn}
	f.timers[t.id] = t
	return t
}

// NewTicker returns a ticker that fires every d of virtual time
func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTicker{
		clock:    f,
		id:       f.seq,
		period:   d,
		deadline: f.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	f.tickers[t.id] = t
	return t
}

// Pending returns the number of timers that have not fired or been stopped
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// Advance moves the clock forward by d, firing every timer and ticker due on the way.
// Timers scheduled by callbacks fire in the same call when they fall inside the window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		timer, ticker := f.nextDue(target)
		switch {
		case timer != nil:
			f.now = timer.deadline
			delete(f.timers, timer.id)
			f.mu.Unlock()
			timer.fn()
		case ticker != nil:
			f.now = ticker.deadline
			ticker.deadline = ticker.deadline.Add(ticker.period)
			select {
			case ticker.ch <- f.now:
			default:
			}
			f.mu.Unlock()
		default:
			f.now = target
			f.mu.Unlock()
			return
		}
	}
}

// nextDue picks the earliest timer or ticker due at or before target; ties go to
// the one registered first. Caller holds f.mu.
func (f *Fake) nextDue(target time.Time) (*fakeTimer, *fakeTicker) {
	var (
		bestTimer  *fakeTimer
		bestTicker *fakeTicker
		bestAt     time.Time
		bestSeq    int64
	)
	better := func(at time.Time, seq int64) bool {
		if bestTimer == nil && bestTicker == nil {
			return true
		}
		return at.Before(bestAt) || (at.Equal(bestAt) && seq < bestSeq)
	}
	for _, t := range f.timers {
		if t.deadline.After(target) {
			continue
		}
		if better(t.deadline, t.id) {
			bestTimer, bestTicker, bestAt, bestSeq = t, nil, t.deadline, t.id
		}
	}
	for _, t := range f.tickers {
		if t.deadline.After(target) {
			continue
		}
		if better(t.deadline, t.id) {
			bestTimer, bestTicker, bestAt, bestSeq = nil, t, t.deadline, t.id
		}
	}
	return bestTimer, bestTicker
}

type fakeTimer struct {
	clock    *Fake
	id       int64
	deadline time.Time
	fn       func()
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, ok := t.clock.timers[t.id]; !ok {
		return false
	}
	delete(t.clock.timers, t.id)
	return true
}

type fakeTicker struct {
	clock    *Fake
	id       int64
	period   time.Duration
	deadline time.Time
	ch       chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	delete(t.clock.tickers, t.id)
}
