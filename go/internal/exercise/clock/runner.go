// Package clock drives the master exercise clock.
package clock

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/excon/go/internal/exercise/metrics"
	"github.com/rs/zerolog/log"
)

// Target is the state the Runner advances. *store.Store satisfies it.
type Target interface {
	IsRunning() bool
	Tick() bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the clock (tests use a fake clock).
func WithClock(c clockwork.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithPeriod sets the tick period. The exercise clock counts seconds, so anything other
// than the default only makes sense in drills that run faster than real time.
func WithPeriod(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.period = d
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Collector) Option {
	return func(r *Runner) { r.metrics = m }
}

// Runner calls Tick once per period while the target is running. It arms its timer when
// the target starts and releases it when the target stops; call Wake after any change
// to the running flag.
type Runner struct {
	target  Target
	clock   clockwork.Clock
	period  time.Duration
	metrics metrics.Collector
	wakeCh  chan struct{}
}

// NewRunner creates a Runner for target.
func NewRunner(target Target, opts ...Option) *Runner {
	r := &Runner{
		target:  target,
		clock:   clockwork.NewRealClock(),
		period:  time.Second,
		metrics: metrics.NoOp{},
		wakeCh:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Wake asks the loop to re-check the running flag. It never blocks.
func (r *Runner) Wake() {
	select {
	case r.wakeCh <- struct{}{}:
	default:
	}
}

// Run ticks until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	log.Info().Dur("period", r.period).Msg("clock runner started")

	var timer clockwork.Timer
	disarm := func() {
		if timer != nil {
			stopAndDrainTimer(timer)
			timer = nil
		}
	}
	defer disarm()

	for {
		running := r.target.IsRunning()
		switch {
		case running && timer == nil:
			timer = r.clock.NewTimer(r.period)
			log.Debug().Msg("clock armed")
		case !running && timer != nil:
			disarm()
			log.Debug().Msg("clock disarmed")
		}

		var fired <-chan time.Time
		if timer != nil {
			fired = timer.Chan()
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("clock runner shutting down")
			return
		case <-r.wakeCh:
		case <-fired:
			// re-arm before ticking so listener work does not stretch the period
			timer.Reset(r.period)
			if r.target.Tick() {
				r.metrics.RecordTick()
			}
		}
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
