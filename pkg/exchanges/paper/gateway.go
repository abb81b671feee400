// Package paper is an in-process gateway for dry runs and tests. It accepts
// orders the way a broker would, holding each group until the transmitting
// order arrives, but never contacts a venue.
package paper

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	exchange "swing-trigger/pkg/exchanges/common"
)

var (
	ErrUnknownAccount  = errors.New("unknown account")
	ErrUnknownContract = errors.New("unknown contract")
	ErrUnknownParent   = errors.New("parent order not pending")
	ErrDuplicateID     = errors.New("duplicate order id")
	ErrInvalidQty      = errors.New("quantity must be positive")
)

// Config tunes the simulation.
type Config struct {
	Accounts     []string
	FirstOrderID int64 // defaults to 1
	// Simulated gateway latency bounds per call.
	LatencyMinMs int
	LatencyMaxMs int
}

// Group is a parent order and its children released together.
type Group struct {
	ContractID string
	Orders     []exchange.OrderRequest
	At         time.Time
}

// Gateway implements exchange.Gateway in memory.
type Gateway struct {
	cfg Config
	log zerolog.Logger

	mu        sync.Mutex
	accounts  map[string]bool
	contracts map[string]exchange.Contract
	nextID    int64
	seen      map[int64]bool
	pending   map[int64]*Group // keyed by parent id
	groups    []Group
	orders    []exchange.OrderRequest
	rng       *rand.Rand
	reject    func(contractID string, req exchange.OrderRequest) error
}

// New creates a paper gateway.
func New(cfg Config, log zerolog.Logger) *Gateway {
	if cfg.FirstOrderID <= 0 {
		cfg.FirstOrderID = 1
	}
	if cfg.LatencyMaxMs > 0 && cfg.LatencyMinMs > cfg.LatencyMaxMs {
		cfg.LatencyMinMs, cfg.LatencyMaxMs = cfg.LatencyMaxMs, cfg.LatencyMinMs
	}
	accounts := make(map[string]bool, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		if a = strings.TrimSpace(a); a != "" {
			accounts[a] = true
		}
	}
	return &Gateway{
		cfg:       cfg,
		log:       log,
		accounts:  accounts,
		contracts: make(map[string]exchange.Contract),
		nextID:    cfg.FirstOrderID,
		seen:      make(map[int64]bool),
		pending:   make(map[int64]*Group),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RejectWith installs a hook consulted before each order is accepted.
func (g *Gateway) RejectWith(fn func(contractID string, req exchange.OrderRequest) error) {
	g.mu.Lock()
	g.reject = fn
	g.mu.Unlock()
}

// ResolveContract returns a stable id derived from the descriptor.
func (g *Gateway) ResolveContract(ctx context.Context, c exchange.Contract) (string, error) {
	if err := g.delay(ctx); err != nil {
		return "", err
	}
	if c.Symbol == "" || c.Expiry == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownContract, c)
	}
	id := fmt.Sprintf("%s-%s-%s", c.Symbol, c.Expiry, c.Exchange)

	g.mu.Lock()
	g.contracts[id] = c
	g.mu.Unlock()
	return id, nil
}

// ValidAccounts lists the configured accounts, sorted.
func (g *Gateway) ValidAccounts(ctx context.Context) ([]string, error) {
	if err := g.delay(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.accounts))
	for a := range g.accounts {
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}

// NextOrderIDBlock reserves n ids.
func (g *Gateway) NextOrderIDBlock(ctx context.Context, n int) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid id block size %d", n)
	}
	if err := g.delay(ctx); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	start := g.nextID
	g.nextID += int64(n)
	return start, nil
}

// Submit accepts one order. Orders are held until one carrying Transmit
// arrives for the same group.
func (g *Gateway) Submit(ctx context.Context, contractID string, req exchange.OrderRequest) error {
	if err := g.delay(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.reject != nil {
		if err := g.reject(contractID, req); err != nil {
			return err
		}
	}
	if !g.accounts[req.Account] {
		return fmt.Errorf("%w: %q", ErrUnknownAccount, req.Account)
	}
	if _, ok := g.contracts[contractID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContract, contractID)
	}
	if req.Qty <= 0 {
		return ErrInvalidQty
	}
	if g.seen[req.OrderID] {
		return fmt.Errorf("%w: %d", ErrDuplicateID, req.OrderID)
	}

	groupID := req.OrderID
	if req.ParentID != 0 {
		groupID = req.ParentID
		if _, ok := g.pending[groupID]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownParent, req.ParentID)
		}
	}

	grp, ok := g.pending[groupID]
	if !ok {
		grp = &Group{ContractID: contractID}
		g.pending[groupID] = grp
	}
	grp.Orders = append(grp.Orders, req)
	g.seen[req.OrderID] = true
	g.orders = append(g.orders, req)

	if req.Transmit {
		grp.At = time.Now()
		g.groups = append(g.groups, *grp)
		delete(g.pending, groupID)
		g.log.Info().
			Str("contract", contractID).
			Str("account", req.Account).
			Int64("parent_id", groupID).
			Int("orders", len(grp.Orders)).
			Msg("paper group transmitted")
	}
	return nil
}

// Orders returns every accepted order in arrival order.
func (g *Gateway) Orders() []exchange.OrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]exchange.OrderRequest(nil), g.orders...)
}

// Transmitted returns the groups released so far.
func (g *Gateway) Transmitted() []Group {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Group(nil), g.groups...)
}

// Pending counts groups still waiting for their transmitting order.
func (g *Gateway) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func (g *Gateway) delay(ctx context.Context) error {
	if g.cfg.LatencyMaxMs <= 0 {
		return ctx.Err()
	}
	g.mu.Lock()
	ms := g.cfg.LatencyMinMs
	if span := g.cfg.LatencyMaxMs - g.cfg.LatencyMinMs; span > 0 {
		ms += g.rng.Intn(span + 1)
	}
	g.mu.Unlock()

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ exchange.Gateway = (*Gateway)(nil)
