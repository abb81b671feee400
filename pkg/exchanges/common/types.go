package common

import "fmt"

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns SELL for BUY and BUY for SELL.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return ""
	}
}

// OrderType denotes the order types a bracket uses.
type OrderType string

const (
	OrderTypeMarket OrderType = "MKT"
	OrderTypeLimit  OrderType = "LMT"
	OrderTypeStop   OrderType = "STP"
)

// SecType is the security type of a contract descriptor.
type SecType string

const SecTypeFuture SecType = "FUT"

// Contract describes an instrument before the venue has qualified it.
type Contract struct {
	Symbol   string
	Expiry   string // yyyymm
	Exchange string
	Currency string
	SecType  SecType
}

func (c Contract) String() string {
	return fmt.Sprintf("%s %s %s/%s", c.Symbol, c.Expiry, c.Exchange, c.Currency)
}

// OrderRequest captures one order of a linked group as sent to the gateway.
type OrderRequest struct {
	OrderID    int64
	ParentID   int64 // 0 when the order has no parent
	Account    string
	Side       Side
	Type       OrderType
	Qty        int
	LimitPrice float64 // LMT only
	StopPrice  float64 // STP only
	// Transmit releases every order of the group held so far; only the last
	// order of a group sets it.
	Transmit bool
}
