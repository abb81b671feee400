package market

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/rs/zerolog"

	exchange "swing-trigger/pkg/exchanges/common"
	"swing-trigger/pkg/market/stream"
)

// PriceCell holds the latest trade price of one contract. Writers are feed
// goroutines; the swing tracker reads it.
type PriceCell struct {
	bits atomic.Uint64
	set  atomic.Bool
}

// Set stores p as the latest price.
func (c *PriceCell) Set(p float64) {
	c.bits.Store(math.Float64bits(p))
	c.set.Store(true)
}

// Latest returns the last price, or false when nothing has arrived yet.
func (c *PriceCell) Latest() (float64, bool) {
	if !c.set.Load() {
		return 0, false
	}
	return math.Float64frombits(c.bits.Load()), true
}

// Feed subscribes to market data for a resolved contract.
type Feed interface {
	Subscribe(ctx context.Context, c exchange.Contract, contractID string) (*PriceCell, error)
}

// StreamFeed fills cells from the bridge trade stream.
type StreamFeed struct {
	Client *stream.StreamClient
	Log    zerolog.Logger
}

// Subscribe dials the contract's stream. The cell is updated until ctx ends.
func (f *StreamFeed) Subscribe(ctx context.Context, c exchange.Contract, contractID string) (*PriceCell, error) {
	trades, stop, err := f.Client.SubscribeTrades(ctx, contractID)
	if err != nil {
		return nil, err
	}
	cell := &PriceCell{}
	go func() {
		defer stop()
		for t := range trades {
			cell.Set(t.Price)
		}
		f.Log.Debug().Str("contract", c.String()).Msg("trade stream closed")
	}()
	f.Log.Info().Str("contract", c.String()).Str("contract_id", contractID).Msg("subscribed to trades")
	return cell, nil
}
