// Package scanner drives the poll cycle: query the server, feed the tracker,
// dispatch what changed and sleep for the interval the tick computed.
package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"scanner/internal/events"
	"scanner/internal/presence"
	"scanner/internal/provider"
)

const (
	defaultFallbackInterval = 30 * time.Second
	defaultFlushTimeout     = 30 * time.Second
)

// Recorder observes the loop. pkg/metrics implements it.
type Recorder interface {
	QueryObserved(d time.Duration, err error)
	TickCompleted(tracked, online int, ratio float64, interval, threshold time.Duration)
	TrackedPlayers(n int)
}

type Option func(*Loop)

// WithFallbackInterval sets the sleep after a failed query
func WithFallbackInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.fallback = d
		}
	}
}

// WithQueryTimeout bounds each provider query. Zero leaves it unbounded.
func WithQueryTimeout(d time.Duration) Option {
	return func(l *Loop) {
		l.queryTimeout = d
	}
}

// WithFlushTimeout bounds the shutdown flush
func WithFlushTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.flushTimeout = d
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(l *Loop) {
		if r != nil {
			l.recorder = r
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		l.now = now
	}
}

// WithAfter replaces the timer used between ticks
func WithAfter(after func(time.Duration) (<-chan time.Time, func())) Option {
	return func(l *Loop) {
		l.after = after
	}
}

// Loop is the single cooperative tick loop. Only the loop goroutine mutates
// the tracker; the HTTP API reads it concurrently.
type Loop struct {
	provider provider.Provider
	tracker  *presence.Tracker
	emitter  *events.Emitter
	recorder Recorder

	fallback     time.Duration
	queryTimeout time.Duration
	flushTimeout time.Duration
	now          func() time.Time
	after        func(time.Duration) (<-chan time.Time, func())

	state     atomic.Int32
	flushOnce sync.Once
	flushErr  error

	mu   sync.Mutex
	last TickInfo
}

func New(p provider.Provider, tracker *presence.Tracker, emitter *events.Emitter, opts ...Option) *Loop {
	l := &Loop{
		provider:     p,
		tracker:      tracker,
		emitter:      emitter,
		recorder:     nopRecorder{},
		fallback:     defaultFallbackInterval,
		flushTimeout: defaultFlushTimeout,
		now:          time.Now,
		after:        newTimer,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State reports where the loop is in its lifecycle
func (l *Loop) State() State {
	return State(l.state.Load())
}

// LastTick returns the numbers of the last successful poll. At is zero until
// the first one.
func (l *Loop) LastTick() TickInfo {
	l.mu.Lock()
	info := l.last
	l.mu.Unlock()

	info.State = l.State().String()
	return info
}

// Run ticks until ctx is cancelled, then flushes every tracked player as left
// and returns the flush error, if any. Writes already started when ctx is
// cancelled are allowed to finish.
func (l *Loop) Run(ctx context.Context) error {
	log.Info().
		Dur("fallback_interval", l.fallback).
		Msg("Starting presence poll loop")

	for l.State() == RUNNING {
		wait := l.tick(ctx)

		if !l.sleep(ctx, wait) {
			break
		}
	}

	return l.Shutdown(context.WithoutCancel(ctx))
}

// tick runs one poll and returns how long to wait before the next one
func (l *Loop) tick(ctx context.Context) time.Duration {
	queryCtx := ctx
	if l.queryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, l.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	sample, err := l.provider.Query(queryCtx)
	l.recorder.QueryObserved(time.Since(start), err)

	if err != nil {
		if ctx.Err() == nil {
			log.Warn().
				Err(err).
				Bool("unavailable", errors.Is(err, provider.ErrUnavailable)).
				Dur("retry_in", l.fallback).
				Msg("Status query failed, keeping tracked players")
		}
		return l.fallback
	}

	now := l.now()
	delta := l.tracker.IngestSample(sample, now)
	roster := l.tracker.Roster()
	tracked := len(roster)

	log.Debug().
		Int("online", delta.OnlineCount).
		Int("sample_size", delta.SampleSize).
		Int("tracked", tracked).
		Float64("ratio", delta.Ratio).
		Dur("threshold", delta.Threshold).
		Dur("interval", delta.Interval).
		Msg("Tick")

	// dispatch is never interrupted halfway by shutdown
	if err := l.emitter.Dispatch(context.WithoutCancel(ctx), delta, roster, now); err != nil {
		log.Error().Err(err).Msg("Failed to persist tick")
	}

	l.mu.Lock()
	l.last = TickInfo{
		At:               now,
		OnlineCount:      delta.OnlineCount,
		SampleSize:       delta.SampleSize,
		Ratio:            delta.Ratio,
		IntervalSeconds:  delta.Interval.Seconds(),
		ThresholdSeconds: delta.Threshold.Seconds(),
	}
	l.mu.Unlock()

	l.recorder.TickCompleted(tracked, delta.OnlineCount, delta.Ratio, delta.Interval, delta.Threshold)
	return delta.Interval
}

// sleep waits for d and reports false if ctx ended first
func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}

	ch, stop := l.after(d)
	defer stop()

	select {
	case <-ctx.Done():
		return false
	case <-ch:
		return true
	}
}

// Shutdown flushes every tracked player as left, using each player's last
// confirmed sighting as the leave instant. Only the first call flushes; later
// calls return the first call's result without emitting anything.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.flushOnce.Do(func() {
		l.state.Store(int32(SHUTTING_DOWN))

		flushCtx, cancel := context.WithTimeout(ctx, l.flushTimeout)
		defer cancel()

		players := l.tracker.Drain()
		log.Info().Int("players", len(players)).Msg("Flushing tracked players on shutdown")

		l.flushErr = l.emitter.Flush(flushCtx, players)
		l.recorder.TrackedPlayers(0)

		l.state.Store(int32(STOPPED))
		if l.flushErr != nil {
			log.Error().Err(l.flushErr).Msg("Shutdown flush incomplete")
		} else {
			log.Info().Msg("Presence poll loop stopped")
		}
	})
	return l.flushErr
}

func newTimer(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}

type nopRecorder struct{}

func (nopRecorder) QueryObserved(time.Duration, error)                            {}
func (nopRecorder) TickCompleted(int, int, float64, time.Duration, time.Duration) {}
func (nopRecorder) TrackedPlayers(int)                                            {}
