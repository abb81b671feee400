package order

import (
	exchange "swing-trigger/pkg/exchanges/common"
)

// Role names an order's place inside a bracket.
type Role string

const (
	RoleEntry      Role = "ENTRY"
	RoleTakeProfit Role = "TAKE_PROFIT"
	RoleStopLoss   Role = "STOP_LOSS"
)

// Order is one leg of a bracket.
type Order struct {
	ID         int64
	ParentID   int64 // 0 for the entry
	Account    string
	Role       Role
	Side       exchange.Side
	Type       exchange.OrderType
	Qty        int
	LimitPrice float64
	StopPrice  float64
	Transmit   bool
}

// Request converts the order into the gateway's wire form.
func (o Order) Request() exchange.OrderRequest {
	return exchange.OrderRequest{
		OrderID:    o.ID,
		ParentID:   o.ParentID,
		Account:    o.Account,
		Side:       o.Side,
		Type:       o.Type,
		Qty:        o.Qty,
		LimitPrice: o.LimitPrice,
		StopPrice:  o.StopPrice,
		Transmit:   o.Transmit,
	}
}

// Price returns the price that matters for the order type, 0 for market.
func (o Order) Price() float64 {
	switch o.Type {
	case exchange.OrderTypeLimit:
		return o.LimitPrice
	case exchange.OrderTypeStop:
		return o.StopPrice
	default:
		return 0
	}
}
