package market

import (
	"context"
	"math/rand"
	"sync"
	"time"

	exchange "swing-trigger/pkg/exchanges/common"
)

// MockFeed generates a random walk per contract for paper runs.
type MockFeed struct {
	StartPrice float64
	Step       float64
	Interval   time.Duration
	Seed       int64 // 0 picks a time-based seed

	mu  sync.Mutex
	rng *rand.Rand
}

// Subscribe starts a walk for the contract and returns its cell. The first
// price is set before returning.
func (m *MockFeed) Subscribe(ctx context.Context, _ exchange.Contract, _ string) (*PriceCell, error) {
	price := m.StartPrice
	if price == 0 {
		price = 100.0
	}
	step := m.Step
	if step == 0 {
		step = 0.5
	}
	interval := m.Interval
	if interval == 0 {
		interval = time.Second
	}

	cell := &PriceCell{}
	cell.Set(price)

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				// simple random walk, floored at one step
				price += (m.float()*2 - 1) * step
				if price < step {
					price = step
				}
				cell.Set(price)
			}
		}
	}()
	return cell, nil
}

func (m *MockFeed) float() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rng == nil {
		seed := m.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		m.rng = rand.New(rand.NewSource(seed))
	}
	return m.rng.Float64()
}
