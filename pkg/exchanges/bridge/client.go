// Package bridge talks to the broker bridge, a small REST service sitting in
// front of the broker's trading session. Requests are signed with HMAC-SHA256
// over timestamp, method, path and body.
package bridge

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	exchange "swing-trigger/pkg/exchanges/common"
)

const (
	headerKey       = "X-Bridge-Key"
	headerTimestamp = "X-Bridge-Timestamp"
	headerSignature = "X-Bridge-Signature"
	headerWeight    = "X-Bridge-Used-Weight"
)

// Config holds bridge endpoint and credentials.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
	// WeightLimit is the request weight the bridge allows per minute.
	WeightLimit int
}

// Client implements exchange.Gateway over the bridge REST API.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	usage      *exchange.UsageTracker
	now        func() time.Time
}

// NewClient creates a bridge client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.WeightLimit <= 0 {
		cfg.WeightLimit = 600
	}
	return &Client{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		usage:      exchange.NewUsageTracker(cfg.WeightLimit, time.Minute, log),
		now:        time.Now,
	}
}

// Usage reports the request weight last seen from the bridge.
func (c *Client) Usage() (used, limit int, pct float64) {
	return c.usage.Usage()
}

// ValidAccounts lists the accounts the broker session manages.
func (c *Client) ValidAccounts(ctx context.Context) ([]string, error) {
	var out struct {
		Accounts []string `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/accounts", nil, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

// ResolveContract qualifies a futures descriptor.
func (c *Client) ResolveContract(ctx context.Context, con exchange.Contract) (string, error) {
	in := contractReq{
		Symbol:   con.Symbol,
		Expiry:   con.Expiry,
		Exchange: con.Exchange,
		Currency: con.Currency,
		SecType:  string(con.SecType),
	}
	var out struct {
		ContractID json.Number `json:"contract_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/contracts/resolve", in, &out); err != nil {
		return "", err
	}
	if out.ContractID == "" {
		return "", fmt.Errorf("bridge: contract %s not resolved", con)
	}
	return out.ContractID.String(), nil
}

// NextOrderIDBlock reserves n order ids.
func (c *Client) NextOrderIDBlock(ctx context.Context, n int) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("bridge: invalid id block size %d", n)
	}
	var out struct {
		Start int64 `json:"start"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/order-ids", map[string]int{"count": n}, &out); err != nil {
		return 0, err
	}
	if out.Start <= 0 {
		return 0, fmt.Errorf("bridge: invalid order id block start %d", out.Start)
	}
	return out.Start, nil
}

// Submit places one order of a group.
func (c *Client) Submit(ctx context.Context, contractID string, req exchange.OrderRequest) error {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return errors.New("bridge: API key/secret required")
	}
	in := orderReq{
		ContractID: contractID,
		OrderID:    req.OrderID,
		ParentID:   req.ParentID,
		Account:    req.Account,
		Action:     string(req.Side),
		OrderType:  string(req.Type),
		Quantity:   req.Qty,
		Transmit:   req.Transmit,
	}
	switch req.Type {
	case exchange.OrderTypeLimit:
		in.LimitPrice = price(req.LimitPrice)
	case exchange.OrderTypeStop:
		in.StopPrice = price(req.StopPrice)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/orders", in, &out); err != nil {
		return fmt.Errorf("order %d: %w", req.OrderID, err)
	}
	if strings.EqualFold(out.Status, "Rejected") || strings.EqualFold(out.Status, "Inactive") {
		return fmt.Errorf("order %d: bridge status %s", req.OrderID, out.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = b
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	req.Header.Set(headerKey, c.cfg.APIKey)
	req.Header.Set(headerTimestamp, ts)
	req.Header.Set(headerSignature, sign(ts+method+path+string(body), c.cfg.APISecret))
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	c.usage.UpdateFromHeader(res.Header.Get(headerWeight))

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("bridge %s %s status %d: %s", method, path, res.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

type contractReq struct {
	Symbol   string `json:"symbol"`
	Expiry   string `json:"expiry"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
	SecType  string `json:"sec_type"`
}

type orderReq struct {
	ContractID string           `json:"contract_id"`
	OrderID    int64            `json:"order_id"`
	ParentID   int64            `json:"parent_id,omitempty"`
	Account    string           `json:"account"`
	Action     string           `json:"action"`
	OrderType  string           `json:"order_type"`
	Quantity   int              `json:"quantity"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice  *decimal.Decimal `json:"stop_price,omitempty"`
	Transmit   bool             `json:"transmit"`
}

func price(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func sign(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

var _ exchange.Gateway = (*Client)(nil)
