package swing

import (
	"context"
	"math"
	"sort"
	"time"
)

// PriceSource returns the most recent trade price, or false when none has
// arrived yet.
type PriceSource interface {
	Latest() (float64, bool)
}

// Gate reports whether the scheduled instant has passed.
type Gate interface {
	Elapsed(now time.Time) bool
}

// Stopper is the kill signal as seen by the tracker.
type Stopper interface {
	Killed() bool
	Done() <-chan struct{}
}

// Sink receives observability events. It must not block.
type Sink interface {
	Transition(Transition)
	Snapshot([]Snapshot)
}

// Config holds the tracker cadence.
type Config struct {
	PollInterval      time.Duration // re-read every source
	InitPollInterval  time.Duration // wait for first prices
	HeartbeatInterval time.Duration // emit snapshots
}

// DefaultConfig mirrors the cadence the desk has always traded with.
func DefaultConfig() Config {
	return Config{
		PollInterval:      time.Second,
		InitPollInterval:  100 * time.Millisecond,
		HeartbeatInterval: 5 * time.Second,
	}
}

type entry struct {
	key   ComboKey
	src   PriceSource
	state State
	ready bool
}

// Tracker owns the swing state for every key. It is driven by a single
// goroutine through Run; nothing else touches the states.
type Tracker struct {
	cfg     Config
	sink    Sink
	entries []*entry
	index   map[ComboKey]*entry
	now     func() time.Time
}

// NewTracker creates a tracker. A nil sink discards events.
func NewTracker(cfg Config, sink Sink) *Tracker {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.InitPollInterval <= 0 {
		cfg.InitPollInterval = def.InitPollInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Tracker{
		cfg:   cfg,
		sink:  sink,
		index: make(map[ComboKey]*entry),
		now:   time.Now,
	}
}

// Add registers a key with its price source. Adding an existing key replaces
// its source.
func (t *Tracker) Add(key ComboKey, src PriceSource) {
	if e, ok := t.index[key]; ok {
		e.src = src
		return
	}
	e := &entry{key: key, src: src}
	t.index[key] = e
	t.entries = append(t.entries, e)
	sort.Slice(t.entries, func(i, j int) bool {
		a, b := t.entries[i].key, t.entries[j].key
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Threshold < b.Threshold
	})
}

// Run seeds every key with its first price, then polls until the gate has
// elapsed or kill fires. A kill is a normal exit and yields whatever state
// exists at that moment; keys never seeded report None. Only context
// cancellation produces an error.
func (t *Tracker) Run(ctx context.Context, gate Gate, kill Stopper) (Result, error) {
	if err := t.seed(ctx, kill); err != nil {
		return t.result(), err
	}

	lastBeat := t.now()
	for !gate.Elapsed(t.now()) && !kill.Killed() {
		if err := t.sleep(ctx, kill, t.cfg.PollInterval); err != nil {
			return t.result(), err
		}
		if kill.Killed() {
			break
		}

		t.tick()

		if now := t.now(); now.Sub(lastBeat) >= t.cfg.HeartbeatInterval {
			t.sink.Snapshot(t.snapshots(now))
			lastBeat = now
		}
	}
	return t.result(), nil
}

// seed blocks, polling each source, until it yields a usable price.
func (t *Tracker) seed(ctx context.Context, kill Stopper) error {
	for _, e := range t.entries {
		for !e.ready {
			if kill.Killed() {
				return nil
			}
			if p, ok := e.src.Latest(); ok && usable(p) {
				e.state = NewState(p)
				e.ready = true
				break
			}
			if err := t.sleep(ctx, kill, t.cfg.InitPollInterval); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Tracker) tick() {
	for _, e := range t.entries {
		p, ok := e.src.Latest()
		if !ok || !usable(p) {
			p = e.state.Last
		}
		flipped, from := e.state.Update(p, e.key.Threshold)
		if flipped {
			t.sink.Transition(Transition{
				Key:       e.key,
				Direction: e.state.Direction,
				From:      from,
				To:        p,
				At:        t.now(),
			})
		}
	}
}

// sleep waits d, returning early on kill. It fails only when ctx is done.
func (t *Tracker) sleep(ctx context.Context, kill Stopper, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-kill.Done():
		return nil
	case <-timer.C:
		return nil
	}
}

func (t *Tracker) snapshots(at time.Time) []Snapshot {
	out := make([]Snapshot, 0, len(t.entries))
	for _, e := range t.entries {
		if !e.ready {
			continue
		}
		out = append(out, Snapshot{
			Key:       e.key,
			Price:     e.state.Last,
			Low:       e.state.Low,
			High:      e.state.High,
			Direction: e.state.Direction,
			At:        at,
		})
	}
	return out
}

func (t *Tracker) result() Result {
	res := Result{
		Directions: make(map[ComboKey]Direction, len(t.entries)),
		Prices:     make(map[ComboKey]float64, len(t.entries)),
	}
	for _, e := range t.entries {
		if !e.ready {
			res.Directions[e.key] = None
			continue
		}
		res.Directions[e.key] = e.state.Direction
		res.Prices[e.key] = e.state.Last
	}
	return res
}

func usable(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0)
}
