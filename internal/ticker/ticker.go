// Package ticker runs the server's interval jobs: the real_time_stats push and
// the periodic demo calls offered to CRM viewers.
package ticker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/clock"
	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/types"
)

// StatsBroadcaster pushes aggregate counters to every connection
type StatsBroadcaster interface {
	BroadcastStats() types.Stats
}

// DemoPusher offers one demo call to every CRM viewer
type DemoPusher interface {
	PushDemoCalls() int
}

// Ticker runs a job every interval until its context is cancelled
type Ticker struct {
	name     string
	clock    clock.Clock
	interval time.Duration
	job      func(now time.Time)
	logger   zerolog.Logger
}

// NewStatsTicker broadcasts real_time_stats every interval
func NewStatsTicker(src StatsBroadcaster, clk clock.Clock, interval time.Duration, logger zerolog.Logger) *Ticker {
	t := newTicker("stats", clk, interval, logger)
	t.job = func(time.Time) {
		stats := src.BroadcastStats()
		t.logger.Debug().
			Int("active_calls", stats.TotalActiveCalls).
			Int("queue", stats.TotalQueue).
			Int("available_agents", stats.AvailableAgents).
			Msg("broadcasted stats")
	}
	return t
}

// NewDemoTicker pushes demo calls every interval
func NewDemoTicker(src DemoPusher, clk clock.Clock, interval time.Duration, logger zerolog.Logger) *Ticker {
	t := newTicker("demo_calls", clk, interval, logger)
	t.job = func(time.Time) {
		if n := src.PushDemoCalls(); n > 0 {
			t.logger.Debug().Int("viewers", n).Msg("pushed demo calls")
		}
	}
	return t
}

func newTicker(name string, clk clock.Clock, interval time.Duration, logger zerolog.Logger) *Ticker {
	if clk == nil {
		clk = clock.New()
	}
	return &Ticker{
		name:     name,
		clock:    clk,
		interval: interval,
		logger:   logger.With().Str("component", "ticker").Str("job", name).Logger(),
	}
}

// Start runs the job until ctx is done. A non-positive interval disables the job.
func (t *Ticker) Start(ctx context.Context) {
	if t.interval <= 0 {
		t.logger.Info().Msg("ticker disabled")
		return
	}

	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info().Dur("interval", t.interval).Msg("ticker started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("ticker stopped")
			return

		case now := <-ticker.C():
			t.job(now)
		}
	}
}
