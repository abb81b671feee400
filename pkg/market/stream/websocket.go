// Package stream reads the bridge's public trade stream over websockets.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Trade is one print on a contract.
type Trade struct {
	ContractID string
	Price      float64
	Size       int64
	Time       time.Time
}

// StreamClient dials one websocket per contract.
type StreamClient struct {
	StreamURL string
	dialer    *websocket.Dialer
	log       zerolog.Logger
}

// NewStreamClient builds a client for a ws:// or wss:// base URL.
func NewStreamClient(streamURL string, log zerolog.Logger) *StreamClient {
	return &StreamClient{
		StreamURL: strings.TrimRight(streamURL, "/"),
		dialer:    websocket.DefaultDialer,
		log:       log,
	}
}

// SubscribeTrades listens to the trade stream of a contract and pushes parsed
// trades into a channel. It returns the channel and a stop function.
func (c *StreamClient) SubscribeTrades(ctx context.Context, contractID string) (<-chan Trade, func(), error) {
	u := fmt.Sprintf("%s/trades/%s", c.StreamURL, url.PathEscape(contractID))

	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial trade stream %s: %w", contractID, err)
	}

	out := make(chan Trade, 100)
	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() {
			// Ignore errors; connection may already be closed.
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		})
	}

	// Unblock ReadMessage when the caller goes away.
	go func() {
		<-ctx.Done()
		closeConn()
	}()

	go func() {
		defer close(out)
		defer closeConn()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil ||
					websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
					strings.Contains(err.Error(), "use of closed network connection") {
					return
				}
				c.log.Error().Err(err).Str("contract", contractID).Msg("trade stream read error")
				return
			}

			parsed, err := parseTradeMessage(msg)
			if err != nil {
				c.log.Warn().Err(err).Str("contract", contractID).Msg("trade stream parse error")
				continue
			}
			if parsed.ContractID == "" {
				parsed.ContractID = contractID
			}
			select {
			case out <- parsed:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, closeConn, nil
}

// parseTradeMessage accepts prices as JSON strings or numbers.
func parseTradeMessage(msg []byte) (Trade, error) {
	var raw struct {
		ContractID json.Number     `json:"contract_id"`
		Price      decimal.Decimal `json:"price"`
		Size       int64           `json:"size"`
		Time       int64           `json:"time"` // unix ms
	}
	if err := json.Unmarshal(msg, &raw); err != nil {
		return Trade{}, err
	}
	if !raw.Price.IsPositive() {
		return Trade{}, fmt.Errorf("non-positive price %s", raw.Price)
	}
	t := Trade{
		ContractID: raw.ContractID.String(),
		Price:      raw.Price.InexactFloat64(),
		Size:       raw.Size,
	}
	if raw.Time > 0 {
		t.Time = time.UnixMilli(raw.Time)
	}
	return t, nil
}
