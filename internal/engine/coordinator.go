package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"swing-trigger/internal/contract"
	"swing-trigger/internal/control"
	"swing-trigger/internal/events"
	"swing-trigger/internal/logging"
	"swing-trigger/internal/market"
	"swing-trigger/internal/monitor"
	"swing-trigger/internal/order"
	"swing-trigger/internal/schedule"
	"swing-trigger/internal/swing"
	"swing-trigger/pkg/config"
	"swing-trigger/pkg/db"
	exchange "swing-trigger/pkg/exchanges/common"
)

var ErrNoValidAccounts = errors.New("no valid accounts")

// Options configures one run.
type Options struct {
	Mode     string
	Accounts []config.AccountConfig
	Clock    schedule.Clock
	Location *time.Location
	// Target pins the execution instant; when zero Clock is resolved on
	// today's date in Location.
	Target   time.Time
	Brackets order.BracketPolicy
	Tracker  swing.Config
	Resolver contract.Resolver
	Pacing   time.Duration
	Metrics  *monitor.Metrics // optional
}

// Coordinator drives a single run. Run is called once; Status may be called
// from any goroutine.
type Coordinator struct {
	opts    Options
	gw      exchange.Gateway
	feed    market.Feed
	signals *control.Signals
	db      *db.Database // optional
	bus     *events.Bus  // optional
	log     zerolog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	status Status
	gate   schedule.Gate
}

// New creates a coordinator.
func New(opts Options, gw exchange.Gateway, feed market.Feed, signals *control.Signals, database *db.Database, bus *events.Bus, log zerolog.Logger) *Coordinator {
	if signals == nil {
		signals = control.NewSignals()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Resolver.Location == nil {
		opts.Resolver.Location = opts.Location
	}
	return &Coordinator{
		opts:    opts,
		gw:      gw,
		feed:    feed,
		signals: signals,
		db:      database,
		bus:     bus,
		log:     logging.Component(log, "engine"),
		now:     time.Now,
		status:  Status{Mode: opts.Mode, Phase: PhaseIdle},
	}
}

// Status returns a snapshot of the run.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	st := c.status
	gate := c.gate
	c.mu.RUnlock()

	if !st.Target.IsZero() {
		st.Remaining = gate.Remaining(c.now()).Round(time.Second).String()
	}
	if dir, ok := c.signals.Override.Get(); ok {
		st.Override = dir.String()
	}
	st.Killed = c.signals.Kill.Killed()
	return st
}

func (c *Coordinator) update(fn func(*Status)) {
	c.mu.Lock()
	fn(&c.status)
	c.mu.Unlock()
}

// Run executes the window. A kill is a normal exit and returns a nil error.
// Per-account submission failures are joined into the returned error; the
// report is always returned.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	log := c.log.With().Str("run_id", runID).Logger()

	gate := schedule.NewGate(c.now(), c.opts.Location, c.opts.Clock)
	if !c.opts.Target.IsZero() {
		gate = schedule.At(c.opts.Target)
	}
	c.mu.Lock()
	c.gate = gate
	c.status.RunID = runID
	c.status.Target = gate.Target()
	c.mu.Unlock()

	rep := &Report{
		RunID:      runID,
		Mode:       c.opts.Mode,
		Target:     gate.Target(),
		Directions: make(map[string]string),
		Prices:     make(map[string]float64),
	}

	c.journalStart(ctx, rep, len(c.opts.Accounts))
	c.publish(events.EventRunStarted, c.Status())
	log.Info().
		Str("mode", c.opts.Mode).
		Time("target", gate.Target()).
		Int("accounts", len(c.opts.Accounts)).
		Msg("run started")

	rep, err := c.run(ctx, log, gate, rep)
	c.finish(ctx, log, rep, err)
	return rep, err
}

func (c *Coordinator) run(ctx context.Context, log zerolog.Logger, gate schedule.Gate, rep *Report) (*Report, error) {
	accounts, err := c.validAccounts(ctx, log, rep)
	if err != nil {
		return rep, err
	}
	c.update(func(s *Status) { s.Accounts = len(accounts); s.Phase = PhaseSubscribing })

	// Feeds live for the run only.
	feedCtx, stopFeeds := context.WithCancel(ctx)
	defer stopFeeds()

	keys := dedup(accounts)
	sink := &journalSink{
		next:    swing.LogSink{Log: logging.Component(log, "swing"), Bus: c.bus},
		db:      c.db,
		metrics: c.opts.Metrics,
		runID:   rep.RunID,
		log:     log,
	}
	tracker := swing.NewTracker(c.opts.Tracker, sink)
	for _, key := range keys {
		con := c.opts.Resolver.Front(key.Symbol)
		cid, err := c.gw.ResolveContract(ctx, con)
		if err != nil {
			return rep, fmt.Errorf("resolve %s: %w", con, err)
		}
		cell, err := c.feed.Subscribe(feedCtx, con, cid)
		if err != nil {
			return rep, fmt.Errorf("subscribe %s: %w", con, err)
		}
		tracker.Add(key, cell)
		log.Info().Str("key", key.String()).Str("contract", con.String()).Str("contract_id", cid).Msg("tracking")
	}
	c.update(func(s *Status) { s.Keys = len(keys); s.Phase = PhaseTracking })

	res, err := tracker.Run(ctx, gate, c.signals.Kill)
	if err != nil {
		return rep, fmt.Errorf("track swings: %w", err)
	}

	dirs := res.Directions
	if dir, ok := c.signals.Override.Get(); ok {
		dirs = make(map[swing.ComboKey]swing.Direction, len(res.Directions))
		for k := range res.Directions {
			dirs[k] = dir
		}
		rep.Override = dir.String()
		log.Warn().Str("direction", dir.String()).Msg("override applied to every key")
	}
	for k, d := range dirs {
		rep.Directions[k.String()] = d.String()
	}
	for k, p := range res.Prices {
		rep.Prices[k.String()] = p
	}

	if c.signals.Kill.Killed() {
		log.Warn().Msg("killed before submission, no orders placed")
		for _, a := range accounts {
			rep.Accounts = append(rep.Accounts, accountResult(a, dirs, OutcomeNotReached))
		}
		return rep, nil
	}

	c.update(func(s *Status) { s.Phase = PhaseSubmitting })
	return rep, c.submitAll(ctx, log, accounts, dirs, res.Prices, rep)
}

func (c *Coordinator) submitAll(ctx context.Context, log zerolog.Logger, accounts []config.AccountConfig, dirs map[swing.ComboKey]swing.Direction, prices map[swing.ComboKey]float64, rep *Report) error {
	exec := order.NewExecutor(c.gw, c.db, c.bus, c.opts.Pacing, logging.Component(log, "executor"))
	exec.Metrics = c.opts.Metrics

	var errs []error
	for i, a := range accounts {
		if c.signals.Kill.Killed() || ctx.Err() != nil {
			for _, rest := range accounts[i:] {
				rep.Accounts = append(rep.Accounts, accountResult(rest, dirs, OutcomeNotReached))
			}
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
			} else {
				log.Warn().Int("remaining", len(accounts)-i).Msg("killed between accounts")
			}
			break
		}

		key := swing.ComboKey{Symbol: a.Symbol, Threshold: a.Swing}
		dir := dirs[key]
		entry, havePrice := prices[key]
		if dir == swing.None || !havePrice {
			log.Info().Str("account", a.Account).Str("key", key.String()).Msg("no signal, skipping")
			r := accountResult(a, dirs, OutcomeSkipped)
			rep.Accounts = append(rep.Accounts, r)
			c.publish(events.EventAccountSkipped, r)
			continue
		}

		r, err := c.submitOne(ctx, log, exec, rep.RunID, a, dir, entry)
		r.Direction = dir.String()
		rep.Accounts = append(rep.Accounts, r)
		if err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", a.Account, err))
			continue
		}
		c.update(func(s *Status) { s.Submitted++ })
	}

	if len(errs) == 0 && !c.signals.Kill.Killed() {
		log.Info().Int("brackets", rep.Count(OutcomeSubmitted)).Msg("all orders sent")
	}
	return errors.Join(errs...)
}

// submitOne builds and sends one account's bracket. Once the first order is
// handed to the gateway the remaining two follow regardless of kill or
// cancellation.
func (c *Coordinator) submitOne(ctx context.Context, log zerolog.Logger, exec *order.Executor, runID string, a config.AccountConfig, dir swing.Direction, entry float64) (AccountResult, error) {
	side := exchange.SideBuy
	if dir == swing.Down {
		side = exchange.SideSell
	}
	r := AccountResult{
		Account: a.Account,
		Symbol:  a.Symbol,
		Qty:     a.Qty,
		Swing:   a.Swing,
		Side:    string(side),
		Entry:   entry,
		Outcome: OutcomeFailed,
	}

	con := c.opts.Resolver.Front(a.Symbol)
	cid, err := c.gw.ResolveContract(ctx, con)
	if err != nil {
		r.Error = err.Error()
		return r, fmt.Errorf("resolve %s: %w", con, err)
	}
	r.ContractID = cid

	start, err := c.gw.NextOrderIDBlock(ctx, order.BracketSize)
	if err != nil {
		r.Error = err.Error()
		return r, fmt.Errorf("reserve order ids: %w", err)
	}
	r.FirstOrderID = start

	bracket := order.Tag(order.BuildBracket(start, side, a.Qty, entry, c.opts.Brackets.For(side)), a.Account)
	log.Info().
		Str("account", a.Account).
		Str("side", string(side)).
		Int("qty", a.Qty).
		Str("symbol", a.Symbol).
		Float64("entry", entry).
		Float64("swing", a.Swing).
		Msg("placing bracket")

	if err := exec.SubmitBracket(context.WithoutCancel(ctx), runID, cid, bracket); err != nil {
		r.Error = err.Error()
		return r, err
	}
	r.Outcome = OutcomeSubmitted
	return r, nil
}

// validAccounts drops configured accounts the gateway does not know and
// returns the rest sorted by account id.
func (c *Coordinator) validAccounts(ctx context.Context, log zerolog.Logger, rep *Report) ([]config.AccountConfig, error) {
	if len(c.opts.Accounts) == 0 {
		return nil, ErrNoValidAccounts
	}
	known, err := c.gw.ValidAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	valid := make(map[string]bool, len(known))
	for _, a := range known {
		valid[a] = true
	}

	var out []config.AccountConfig
	for _, a := range c.opts.Accounts {
		if !valid[a.Account] {
			rep.Dropped = append(rep.Dropped, a.Account)
			continue
		}
		out = append(out, a)
	}
	if len(rep.Dropped) > 0 {
		log.Warn().Strs("accounts", rep.Dropped).Msg("unknown accounts dropped")
	}
	if len(out) == 0 {
		return nil, ErrNoValidAccounts
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out, nil
}

// dedup returns one key per distinct (symbol, threshold) pair.
func dedup(accounts []config.AccountConfig) []swing.ComboKey {
	seen := make(map[swing.ComboKey]bool)
	var keys []swing.ComboKey
	for _, a := range accounts {
		k := swing.ComboKey{Symbol: a.Symbol, Threshold: a.Swing}
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

func accountResult(a config.AccountConfig, dirs map[swing.ComboKey]swing.Direction, o Outcome) AccountResult {
	return AccountResult{
		Account:   a.Account,
		Symbol:    a.Symbol,
		Qty:       a.Qty,
		Swing:     a.Swing,
		Direction: dirs[swing.ComboKey{Symbol: a.Symbol, Threshold: a.Swing}].String(),
		Outcome:   o,
	}
}

func (c *Coordinator) publish(e events.Event, payload any) {
	if c.bus != nil {
		c.bus.Publish(e, payload)
	}
}

func (c *Coordinator) journalStart(ctx context.Context, rep *Report, accounts int) {
	if c.db == nil {
		return
	}
	run := db.Run{ID: rep.RunID, Mode: rep.Mode, TargetAt: rep.Target, Accounts: accounts}
	if err := c.db.CreateRun(ctx, run); err != nil {
		c.log.Warn().Err(err).Msg("journal run start failed")
	}
}

func (c *Coordinator) finish(ctx context.Context, log zerolog.Logger, rep *Report, runErr error) {
	rep.Killed = c.signals.Kill.Killed()
	c.update(func(s *Status) { s.Phase = PhaseDone })

	status := db.RunStatusDone
	switch {
	case runErr != nil:
		status = db.RunStatusFailed
	case rep.Killed:
		status = db.RunStatusKilled
	}

	if c.db != nil {
		errText := ""
		if runErr != nil {
			errText = runErr.Error()
		}
		if err := c.db.FinishRun(context.WithoutCancel(ctx), rep.RunID, status, rep.Override, rep.Killed, errText); err != nil {
			log.Warn().Err(err).Msg("journal run finish failed")
		}
	}
	c.publish(events.EventRunFinished, rep)

	ev := log.Info()
	if runErr != nil {
		ev = log.Error().Err(runErr)
	}
	ev.Str("status", status).
		Bool("killed", rep.Killed).
		Int("submitted", rep.Count(OutcomeSubmitted)).
		Int("skipped", rep.Count(OutcomeSkipped)).
		Int("failed", rep.Count(OutcomeFailed)).
		Int("not_reached", rep.Count(OutcomeNotReached)).
		Msg("run finished")
}

// journalSink records transitions in the run journal before passing events on.
type journalSink struct {
	next    swing.Sink
	db      *db.Database
	metrics *monitor.Metrics
	runID   string
	log     zerolog.Logger
}

func (s *journalSink) Transition(tr swing.Transition) {
	s.next.Transition(tr)
	s.metrics.IncrementTransitions()
	if s.db == nil {
		return
	}
	ev := db.SwingEvent{
		RunID:     s.runID,
		Symbol:    tr.Key.Symbol,
		Threshold: tr.Key.Threshold,
		Direction: tr.Direction.String(),
		From:      tr.From,
		To:        tr.To,
		At:        tr.At,
	}
	start := time.Now()
	err := s.db.RecordSwing(context.Background(), ev)
	s.metrics.ObserveJournal(time.Since(start))
	if err != nil {
		s.log.Warn().Err(err).Msg("journal swing failed")
	}
}

func (s *journalSink) Snapshot(snaps []swing.Snapshot) {
	s.next.Snapshot(snaps)
}
