package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"scanner/internal/events"
	"scanner/internal/model"
	"scanner/internal/presence"
	"scanner/internal/provider"
	"scanner/internal/sampling"
)

type result struct {
	sample model.Sample
	err    error
}

// scriptedProvider replays results in order and cancels the run once they
// are exhausted.
type scriptedProvider struct {
	results []result
	cancel  context.CancelFunc
	calls   int
}

func (p *scriptedProvider) Query(ctx context.Context) (model.Sample, error) {
	p.calls++
	if len(p.results) == 0 {
		p.cancel()
		return model.Sample{}, ctx.Err()
	}
	r := p.results[0]
	p.results = p.results[1:]
	return r.sample, r.err
}

type memoryStore struct {
	mu       sync.Mutex
	known    map[model.PlayerID]bool
	events   []model.Event
	sessions []model.Session
}

func newMemoryStore() *memoryStore {
	return &memoryStore{known: make(map[model.PlayerID]bool)}
}

func (s *memoryStore) UpsertPlayerFirstSeen(_ context.Context, id model.PlayerID, _ string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known[id] {
		return false, nil
	}
	s.known[id] = true
	return true, nil
}

func (s *memoryStore) UpdatePlayerOnLeave(context.Context, model.PlayerID, time.Time, int) error {
	return nil
}

func (s *memoryStore) RecordEvent(_ context.Context, e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *memoryStore) RecordSession(_ context.Context, session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, session)
	return nil
}

func (s *memoryStore) RecordStatusSnapshot(context.Context, model.StatusSnapshot) error {
	return nil
}

func (s *memoryStore) kinds(kind model.EventKind) []model.Event {
	var out []model.Event
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// steppingClock advances by step on every call
type steppingClock struct {
	t    time.Time
	step time.Duration
}

func (c *steppingClock) now() time.Time {
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

type waits struct {
	got []time.Duration
}

func (w *waits) after(d time.Duration) (<-chan time.Time, func()) {
	w.got = append(w.got, d)
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch, func() {}
}

func sample(online int, names ...string) model.Sample {
	s := model.Sample{OnlineCount: online}
	for _, n := range names {
		s.Players = append(s.Players, model.SampleEntry{Name: n, ID: "id-" + n})
	}
	return s
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestLoop(p *scriptedProvider, store *memoryStore, step time.Duration, w *waits) (*Loop, *presence.Tracker) {
	tracker := presence.NewTracker(&sampling.Fixed{Threshold: 90 * time.Second, Interval: 10 * time.Second})
	emitter := events.NewEmitter(store)
	clock := &steppingClock{t: t0, step: step}
	loop := New(p, tracker, emitter,
		WithClock(clock.now),
		WithAfter(w.after),
		WithFallbackInterval(30*time.Second),
	)
	return loop, tracker
}

func TestLoopProviderFailure(t *testing.T) {
	Convey("Given a provider that fails after the first sample", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := &scriptedProvider{cancel: cancel, results: []result{
			{sample: sample(1, "steve")},
			{err: errors.Join(provider.ErrUnavailable, errors.New("i/o timeout"))},
		}}
		store := newMemoryStore()
		w := &waits{}
		loop, _ := newTestLoop(p, store, time.Minute, w)

		err := loop.Run(ctx)

		Convey("The failure sleeps the fallback interval", func() {
			So(err, ShouldBeNil)
			So(w.got, ShouldResemble, []time.Duration{10 * time.Second, 30 * time.Second})
		})

		Convey("The tracked player is not dropped by the failure", func() {
			So(store.kinds(model.NEW_PLAYER), ShouldHaveLength, 1)
			So(store.kinds(model.PLAYER_JOIN), ShouldHaveLength, 1)

			leaves := store.kinds(model.PLAYER_LEAVE)
			So(leaves, ShouldHaveLength, 1)
			So(leaves[0].Timestamp, ShouldEqual, t0)
		})

		Convey("The loop ends stopped", func() {
			So(loop.State(), ShouldEqual, STOPPED)
		})

		Convey("The last tick is the last successful poll", func() {
			info := loop.LastTick()
			So(info.State, ShouldEqual, "STOPPED")
			So(info.At, ShouldEqual, t0)
			So(info.OnlineCount, ShouldEqual, 1)
			So(info.SampleSize, ShouldEqual, 1)
			So(info.IntervalSeconds, ShouldEqual, 10)
			So(info.ThresholdSeconds, ShouldEqual, 90)
		})
	})
}

func TestLoopShutdownFlush(t *testing.T) {
	Convey("Given two tracked players when the run is cancelled", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := &scriptedProvider{cancel: cancel, results: []result{
			{sample: sample(2, "alex", "steve")},
			{sample: sample(2, "alex", "steve")},
		}}
		store := newMemoryStore()
		loop, tracker := newTestLoop(p, store, time.Minute, &waits{})

		So(loop.Run(ctx), ShouldBeNil)

		Convey("Exactly two leaves are emitted at the last sighting", func() {
			leaves := store.kinds(model.PLAYER_LEAVE)
			So(leaves, ShouldHaveLength, 2)
			for _, e := range leaves {
				So(e.Timestamp, ShouldEqual, t0.Add(time.Minute))
			}
			So(store.sessions, ShouldHaveLength, 2)
			So(store.sessions[0].Minutes, ShouldEqual, 1)
		})

		Convey("The tracker is empty", func() {
			So(tracker.Len(), ShouldEqual, 0)
		})

		Convey("A second shutdown emits nothing", func() {
			before := len(store.events)
			So(loop.Shutdown(context.Background()), ShouldBeNil)
			So(store.events, ShouldHaveLength, before)
			So(loop.State(), ShouldEqual, STOPPED)
		})
	})
}

func TestLoopDeclaresLeave(t *testing.T) {
	Convey("Given a player missing for ten ticks of ten seconds", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		results := []result{{sample: sample(1, "steve")}}
		for i := 0; i < 10; i++ {
			results = append(results, result{sample: sample(0)})
		}
		p := &scriptedProvider{cancel: cancel, results: results}
		store := newMemoryStore()
		loop, _ := newTestLoop(p, store, 10*time.Second, &waits{})

		So(loop.Run(ctx), ShouldBeNil)

		Convey("The leave is emitted once at the last sighting", func() {
			leaves := store.kinds(model.PLAYER_LEAVE)
			So(leaves, ShouldHaveLength, 1)
			So(leaves[0].Timestamp, ShouldEqual, t0)
		})

		Convey("The zero minute session is skipped", func() {
			So(store.sessions, ShouldBeEmpty)
		})
	})
}

func TestLoopInterruptsSleep(t *testing.T) {
	Convey("Given a loop sleeping between ticks", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := &scriptedProvider{cancel: cancel, results: []result{{sample: sample(1, "steve")}}}
		store := newMemoryStore()
		tracker := presence.NewTracker(&sampling.Fixed{Threshold: time.Hour, Interval: time.Hour})
		loop := New(p, tracker, events.NewEmitter(store),
			WithClock(func() time.Time { return t0 }),
			WithAfter(func(time.Duration) (<-chan time.Time, func()) {
				cancel()
				return make(chan time.Time), func() {}
			}),
		)

		done := make(chan error, 1)
		go func() { done <- loop.Run(ctx) }()

		Convey("Cancellation wakes it and flushes", func() {
			select {
			case err := <-done:
				So(err, ShouldBeNil)
			case <-time.After(5 * time.Second):
				t.Fatal("loop did not stop")
			}
			So(p.calls, ShouldEqual, 1)
			So(store.kinds(model.PLAYER_LEAVE), ShouldHaveLength, 1)
		})
	})
}

type failingStore struct {
	*memoryStore
}

func (failingStore) RecordEvent(context.Context, model.Event) error {
	return errors.New("connection reset")
}

func TestLoopFlushFailure(t *testing.T) {
	Convey("Given a store that rejects events", t, func() {
		tracker := presence.NewTracker(&sampling.Fixed{Threshold: time.Hour, Interval: time.Hour})
		tracker.IngestSample(sample(1, "steve"), t0)

		loop := New(&scriptedProvider{}, tracker, events.NewEmitter(failingStore{newMemoryStore()}))

		Convey("Shutdown reports the failure once and still empties the tracker", func() {
			err := loop.Shutdown(context.Background())
			So(errors.Is(err, events.ErrStoreWrite), ShouldBeTrue)
			So(tracker.Len(), ShouldEqual, 0)
			So(loop.State(), ShouldEqual, STOPPED)

			So(loop.Shutdown(context.Background()), ShouldEqual, err)
		})
	})
}

// hangingProvider blocks until its query context ends, then cancels the run
type hangingProvider struct {
	cancel context.CancelFunc
	calls  int
}

func (p *hangingProvider) Query(ctx context.Context) (model.Sample, error) {
	p.calls++
	if p.calls > 1 {
		p.cancel()
		return model.Sample{}, ctx.Err()
	}
	<-ctx.Done()
	return model.Sample{}, errors.Join(provider.ErrUnavailable, ctx.Err())
}

func TestLoopQueryTimeout(t *testing.T) {
	Convey("Given a provider that never answers", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := &hangingProvider{cancel: cancel}
		w := &waits{}
		tracker := presence.NewTracker(&sampling.Fixed{Threshold: time.Hour, Interval: 10 * time.Second})
		loop := New(p, tracker, events.NewEmitter(newMemoryStore()),
			WithClock(func() time.Time { return t0 }),
			WithAfter(w.after),
			WithQueryTimeout(20*time.Millisecond),
			WithFallbackInterval(30*time.Second),
		)

		done := make(chan error, 1)
		go func() { done <- loop.Run(ctx) }()

		Convey("The query is cut off and the loop falls back", func() {
			select {
			case err := <-done:
				So(err, ShouldBeNil)
			case <-time.After(5 * time.Second):
				t.Fatal("query timeout not applied")
			}
			So(p.calls, ShouldEqual, 2)
			So(w.got, ShouldResemble, []time.Duration{30 * time.Second})
		})
	})
}
