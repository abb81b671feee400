package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"swing-trigger/internal/contract"
	"swing-trigger/internal/control"
	"swing-trigger/internal/events"
	"swing-trigger/internal/logging"
	"swing-trigger/internal/market"
	"swing-trigger/internal/monitor"
	"swing-trigger/internal/order"
	"swing-trigger/internal/swing"
	"swing-trigger/pkg/config"
	"swing-trigger/pkg/db"
	exchange "swing-trigger/pkg/exchanges/common"
	"swing-trigger/pkg/exchanges/paper"
)

// scriptFeed plays a fixed price path per symbol, one step per interval, and
// then holds the last price.
type scriptFeed struct {
	paths map[string][]float64
	step  time.Duration

	mu   sync.Mutex
	subs []string
}

func (f *scriptFeed) Subscribe(ctx context.Context, c exchange.Contract, _ string) (*market.PriceCell, error) {
	f.mu.Lock()
	f.subs = append(f.subs, c.Symbol)
	f.mu.Unlock()

	path := f.paths[c.Symbol]
	if len(path) == 0 {
		return nil, fmt.Errorf("no path for %s", c.Symbol)
	}
	cell := &market.PriceCell{}
	cell.Set(path[0])
	go func() {
		for _, p := range path[1:] {
			select {
			case <-ctx.Done():
				return
			case <-time.After(f.step):
				cell.Set(p)
			}
		}
	}()
	return cell, nil
}

func (f *scriptFeed) subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subs...)
}

type harness struct {
	gw      *paper.Gateway
	feed    *scriptFeed
	signals *control.Signals
	db      *db.Database
	metrics *monitor.Metrics
	coord   *Coordinator
}

func newHarness(t *testing.T, valid []string, accounts []config.AccountConfig, paths map[string][]float64, window time.Duration) *harness {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	h := &harness{
		gw:      paper.New(paper.Config{Accounts: valid}, logging.Nop()),
		feed:    &scriptFeed{paths: paths, step: 30 * time.Millisecond},
		signals: control.NewSignals(),
		db:      database,
		metrics: monitor.New(),
	}
	opts := Options{
		Mode:     "PAPER",
		Accounts: accounts,
		Location: time.UTC,
		Target:   time.Now().Add(window),
		Brackets: order.BracketPolicy{
			Long:  order.Distances{TakeProfit: 5, StopLoss: 7.5},
			Short: order.Distances{TakeProfit: 5, StopLoss: 5},
		},
		Tracker: swing.Config{
			PollInterval:      10 * time.Millisecond,
			InitPollInterval:  5 * time.Millisecond,
			HeartbeatInterval: 50 * time.Millisecond,
		},
		Resolver: contract.Resolver{Exchange: "CME", Currency: "USD", RollDaysBefore: 8},
		Metrics:  h.metrics,
	}
	h.coord = New(opts, h.gw, h.feed, h.signals, database, events.NewBus(), logging.Nop())
	return h
}

func TestRunEndToEndSwingUp(t *testing.T) {
	h := newHarness(t,
		[]string{"DU1"},
		[]config.AccountConfig{{Account: "DU1", Symbol: "ES", Qty: 1, Swing: 5}},
		map[string][]float64{"ES": {100, 101, 103, 106}},
		300*time.Millisecond,
	)

	rep, err := h.coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Directions["ES@5"] != "UP" || rep.Prices["ES@5"] != 106 {
		t.Fatalf("final direction/price=%s/%v, expected UP/106", rep.Directions["ES@5"], rep.Prices["ES@5"])
	}
	if len(rep.Accounts) != 1 || rep.Accounts[0].Outcome != OutcomeSubmitted || rep.Accounts[0].Side != "BUY" {
		t.Fatalf("unexpected account results: %+v", rep.Accounts)
	}

	orders := h.gw.Orders()
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(orders))
	}
	n := orders[0].OrderID
	entry, tp, sl := orders[0], orders[1], orders[2]
	if entry.Side != exchange.SideBuy || entry.Type != exchange.OrderTypeMarket || entry.Account != "DU1" {
		t.Fatalf("entry=%+v", entry)
	}
	if tp.OrderID != n+1 || tp.ParentID != n || tp.Side != exchange.SideSell || tp.LimitPrice != 111 {
		t.Fatalf("take-profit=%+v", tp)
	}
	if sl.OrderID != n+2 || sl.ParentID != n || sl.Side != exchange.SideSell || sl.StopPrice != 98.5 || !sl.Transmit {
		t.Fatalf("stop-loss=%+v", sl)
	}
	if len(h.gw.Transmitted()) != 1 {
		t.Fatalf("bracket should be transmitted as one group")
	}

	ctx := context.Background()
	swings, err := h.db.SwingsByRun(ctx, rep.RunID)
	if err != nil {
		t.Fatalf("SwingsByRun: %v", err)
	}
	if len(swings) != 1 || swings[0].Direction != "UP" || swings[0].From != 100 || swings[0].To != 106 {
		t.Fatalf("journaled swings=%+v, expected one UP 100->106", swings)
	}
	recs, _ := h.db.OrdersByRun(ctx, rep.RunID)
	if len(recs) != 3 {
		t.Fatalf("journaled orders=%d", len(recs))
	}
	run, err := h.db.GetRun(ctx, rep.RunID)
	if err != nil || run.Status != db.RunStatusDone {
		t.Fatalf("run record=%+v err=%v", run, err)
	}

	st := h.coord.Status()
	if st.Phase != PhaseDone || st.Submitted != 1 || st.Keys != 1 {
		t.Fatalf("status=%+v", st)
	}

	snap := h.metrics.GetSnapshot()
	if snap.OrdersSubmitted != 3 || snap.OrdersRejected != 0 || snap.Transitions != 1 {
		t.Fatalf("metrics=%+v", snap)
	}
}

func TestRunOverrideAppliesToEveryAccount(t *testing.T) {
	h := newHarness(t,
		[]string{"DU1", "DU2"},
		[]config.AccountConfig{
			{Account: "DU2", Symbol: "NQ", Qty: 2, Swing: 10},
			{Account: "DU1", Symbol: "ES", Qty: 1, Swing: 5},
		},
		map[string][]float64{
			"ES": {100, 106},
			"NQ": {200, 215},
		},
		200*time.Millisecond,
	)
	if err := h.signals.Override.Set(swing.Down); err != nil {
		t.Fatalf("Set override: %v", err)
	}

	rep, err := h.coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Override != "DOWN" {
		t.Fatalf("override=%q", rep.Override)
	}
	for _, r := range rep.Accounts {
		if r.Direction != "DOWN" || r.Side != "SELL" || r.Outcome != OutcomeSubmitted {
			t.Fatalf("account %s: %+v", r.Account, r)
		}
	}
	// Accounts are processed in id order.
	if rep.Accounts[0].Account != "DU1" || rep.Accounts[1].Account != "DU2" {
		t.Fatalf("order=%s,%s", rep.Accounts[0].Account, rep.Accounts[1].Account)
	}
	for _, o := range h.gw.Orders() {
		if o.ParentID == 0 && o.Side != exchange.SideSell {
			t.Fatalf("entry %d should be SELL under override", o.OrderID)
		}
	}
	// Short distances: tp = entry-5, sl = entry+5 for ES at 106.
	es := h.gw.Orders()[:3]
	if es[1].LimitPrice != 101 || es[2].StopPrice != 111 {
		t.Fatalf("short bracket prices tp=%v sl=%v", es[1].LimitPrice, es[2].StopPrice)
	}
}

func TestRunKilledBeforeScheduleSubmitsNothing(t *testing.T) {
	h := newHarness(t,
		[]string{"DU1"},
		[]config.AccountConfig{{Account: "DU1", Symbol: "ES", Qty: 1, Swing: 5}},
		map[string][]float64{"ES": {100, 106}},
		time.Hour,
	)

	go func() {
		time.Sleep(80 * time.Millisecond)
		h.signals.Kill.Kill()
	}()

	start := time.Now()
	rep, err := h.coord.Run(context.Background())
	if err != nil {
		t.Fatalf("kill is not an error: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("kill did not end the run early")
	}
	if !rep.Killed {
		t.Fatalf("report should be marked killed")
	}
	if got := len(h.gw.Orders()); got != 0 {
		t.Fatalf("expected zero orders, got %d", got)
	}
	if rep.Count(OutcomeNotReached) != 1 {
		t.Fatalf("account should be not reached: %+v", rep.Accounts)
	}
	run, _ := h.db.GetRun(context.Background(), rep.RunID)
	if run.Status != db.RunStatusKilled || !run.Killed {
		t.Fatalf("run record=%+v", run)
	}
}

func TestRunKillMidBracketFinishesBracket(t *testing.T) {
	h := newHarness(t,
		[]string{"DU1", "DU2"},
		[]config.AccountConfig{
			{Account: "DU1", Symbol: "ES", Qty: 1, Swing: 5},
			{Account: "DU2", Symbol: "ES", Qty: 2, Swing: 5},
		},
		map[string][]float64{"ES": {100, 106}},
		150*time.Millisecond,
	)
	// Kill lands while DU1's entry is being handed to the gateway.
	h.gw.RejectWith(func(_ string, req exchange.OrderRequest) error {
		if req.Account == "DU1" && req.ParentID == 0 {
			h.signals.Kill.Kill()
		}
		return nil
	})

	rep, err := h.coord.Run(context.Background())
	if err != nil {
		t.Fatalf("kill is not an error: %v", err)
	}
	if got := len(h.gw.Orders()); got != 3 {
		t.Fatalf("started bracket should send all 3 orders, got %d", got)
	}
	if h.gw.Pending() != 0 || len(h.gw.Transmitted()) != 1 {
		t.Fatalf("pending=%d transmitted=%d", h.gw.Pending(), len(h.gw.Transmitted()))
	}
	if len(rep.Accounts) != 2 ||
		rep.Accounts[0].Account != "DU1" || rep.Accounts[0].Outcome != OutcomeSubmitted ||
		rep.Accounts[1].Account != "DU2" || rep.Accounts[1].Outcome != OutcomeNotReached {
		t.Fatalf("outcomes=%+v", rep.Accounts)
	}
	run, _ := h.db.GetRun(context.Background(), rep.RunID)
	if run.Status != db.RunStatusKilled || !run.Killed {
		t.Fatalf("run record=%+v", run)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) lines() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var m map[string]any
		if json.Unmarshal(sc.Bytes(), &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

func TestRunLogsBracketAsFields(t *testing.T) {
	h := newHarness(t,
		[]string{"DU1"},
		[]config.AccountConfig{{Account: "DU1", Symbol: "ES", Qty: 2, Swing: 5}},
		map[string][]float64{"ES": {100, 94}},
		150*time.Millisecond,
	)
	out := &lockedBuffer{}
	h.coord.log = zerolog.New(out)

	if _, err := h.coord.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var found map[string]any
	for _, l := range out.lines() {
		if l["message"] == "placing bracket" {
			found = l
		}
	}
	if found == nil {
		t.Fatalf("no placing bracket entry in %d log lines", len(out.lines()))
	}
	if found["account"] != "DU1" || found["side"] != "SELL" || found["symbol"] != "ES" ||
		found["qty"] != float64(2) || found["entry"] != float64(94) || found["swing"] != float64(5) {
		t.Fatalf("log fields=%+v", found)
	}
}

func TestRunNoValidAccounts(t *testing.T) {
	h := newHarness(t,
		[]string{"DU1"},
		[]config.AccountConfig{{Account: "XX9", Symbol: "ES", Qty: 1, Swing: 5}},
		map[string][]float64{"ES": {100}},
		100*time.Millisecond,
	)

	rep, err := h.coord.Run(context.Background())
	if !errors.Is(err, ErrNoValidAccounts) {
		t.Fatalf("expected ErrNoValidAccounts, got %v", err)
	}
	if len(h.feed.subscriptions()) != 0 {
		t.Fatalf("no market data should be requested")
	}
	if len(rep.Dropped) != 1 || rep.Dropped[0] != "XX9" {
		t.Fatalf("dropped=%v", rep.Dropped)
	}
}

func TestRunDedupAndSkipWithoutSignal(t *testing.T) {
	h := newHarness(t,
		[]string{"A", "B", "C"},
		[]config.AccountConfig{
			{Account: "A", Symbol: "ES", Qty: 1, Swing: 5},
			{Account: "B", Symbol: "ES", Qty: 3, Swing: 5},
			{Account: "C", Symbol: "ES", Qty: 1, Swing: 10},
			{Account: "GHOST", Symbol: "ES", Qty: 1, Swing: 5},
		},
		map[string][]float64{"ES": {100, 101, 99}},
		150*time.Millisecond,
	)

	rep, err := h.coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if subs := h.feed.subscriptions(); len(subs) != 2 {
		t.Fatalf("expected one subscription per (symbol, threshold), got %v", subs)
	}
	if rep.Count(OutcomeSkipped) != 3 || len(h.gw.Orders()) != 0 {
		t.Fatalf("all accounts should be skipped: %+v", rep.Accounts)
	}
	// Skipped accounts consume no ids.
	next, _ := h.gw.NextOrderIDBlock(context.Background(), 1)
	if next != 1 {
		t.Fatalf("ids consumed by skipped accounts: next=%d", next)
	}
}

func TestRunContinuesAfterAccountFailure(t *testing.T) {
	h := newHarness(t,
		[]string{"DU1", "DU2"},
		[]config.AccountConfig{
			{Account: "DU1", Symbol: "ES", Qty: 1, Swing: 5},
			{Account: "DU2", Symbol: "ES", Qty: 1, Swing: 5},
		},
		map[string][]float64{"ES": {100, 94}},
		150*time.Millisecond,
	)
	h.gw.RejectWith(func(_ string, req exchange.OrderRequest) error {
		if req.Account == "DU1" && req.Type == exchange.OrderTypeLimit {
			return errors.New("rejected by risk")
		}
		return nil
	})

	rep, err := h.coord.Run(context.Background())
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
	if rep.Accounts[0].Outcome != OutcomeFailed || rep.Accounts[1].Outcome != OutcomeSubmitted {
		t.Fatalf("outcomes=%+v", rep.Accounts)
	}
	if rep.Accounts[1].Side != "SELL" {
		t.Fatalf("fall of 6 should give SELL, got %+v", rep.Accounts[1])
	}
	// Ids never collide across accounts.
	seen := map[int64]bool{}
	for _, o := range h.gw.Orders() {
		if seen[o.OrderID] {
			t.Fatalf("duplicate id %d", o.OrderID)
		}
		seen[o.OrderID] = true
	}
	run, _ := h.db.GetRun(context.Background(), rep.RunID)
	if run.Status != db.RunStatusFailed || run.Error == "" {
		t.Fatalf("run record=%+v", run)
	}
}

func TestRunContextCancelled(t *testing.T) {
	h := newHarness(t,
		[]string{"DU1"},
		[]config.AccountConfig{{Account: "DU1", Symbol: "ES", Qty: 1, Swing: 5}},
		map[string][]float64{"ES": {100}},
		time.Hour,
	)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := h.coord.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if len(h.gw.Orders()) != 0 {
		t.Fatalf("no orders expected")
	}
}
