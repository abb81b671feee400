package order

import (
	exchange "swing-trigger/pkg/exchanges/common"
)

// BracketSize is the number of ids one bracket consumes.
const BracketSize = 3

// Distances are the take-profit and stop-loss offsets from the entry price.
type Distances struct {
	TakeProfit float64
	StopLoss   float64
}

// BracketPolicy keeps separate distance pairs for long and short setups.
type BracketPolicy struct {
	Long  Distances
	Short Distances
}

// For returns the pair for an entry side.
func (p BracketPolicy) For(side exchange.Side) Distances {
	if side == exchange.SideBuy {
		return p.Long
	}
	return p.Short
}

// BuildBracket returns entry, take-profit and stop-loss orders for ids
// idStart..idStart+2. The children hang off the entry and only the stop-loss
// transmits, which releases the whole group at once.
func BuildBracket(idStart int64, side exchange.Side, qty int, entry float64, d Distances) [BracketSize]Order {
	exit := side.Opposite()

	tp := entry - d.TakeProfit
	sl := entry + d.StopLoss
	if side == exchange.SideBuy {
		tp = entry + d.TakeProfit
		sl = entry - d.StopLoss
	}

	return [BracketSize]Order{
		{
			ID:   idStart,
			Role: RoleEntry,
			Side: side,
			Type: exchange.OrderTypeMarket,
			Qty:  qty,
		},
		{
			ID:         idStart + 1,
			ParentID:   idStart,
			Role:       RoleTakeProfit,
			Side:       exit,
			Type:       exchange.OrderTypeLimit,
			Qty:        qty,
			LimitPrice: tp,
		},
		{
			ID:        idStart + 2,
			ParentID:  idStart,
			Role:      RoleStopLoss,
			Side:      exit,
			Type:      exchange.OrderTypeStop,
			Qty:       qty,
			StopPrice: sl,
			Transmit:  true,
		},
	}
}

// Tag stamps every order of a bracket with the owning account.
func Tag(b [BracketSize]Order, account string) [BracketSize]Order {
	for i := range b {
		b[i].Account = account
	}
	return b
}
