package order

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"swing-trigger/internal/events"
	"swing-trigger/internal/monitor"
	"swing-trigger/pkg/db"
	exchange "swing-trigger/pkg/exchanges/common"
)

// Submission is published on the bus for every order handed to the gateway.
type Submission struct {
	RunID      string `json:"run_id"`
	ContractID string `json:"contract_id"`
	Order      Order  `json:"order"`
	Error      string `json:"error,omitempty"`
}

// Executor sends brackets to a gateway one order at a time, journaling each
// order and emitting bus events.
type Executor struct {
	Gateway exchange.Gateway
	DB      *db.Database     // optional
	Bus     *events.Bus      // optional
	Metrics *monitor.Metrics // optional

	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewExecutor creates an executor that waits pacing between submissions. A
// non-positive pacing disables the wait.
func NewExecutor(gw exchange.Gateway, database *db.Database, bus *events.Bus, pacing time.Duration, log zerolog.Logger) *Executor {
	limit := rate.Inf
	if pacing > 0 {
		limit = rate.Every(pacing)
	}
	return &Executor{
		Gateway: gw,
		DB:      database,
		Bus:     bus,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

// SubmitBracket submits the three orders in order. It stops at the first
// failed order and returns its error; orders already sent are left to the
// gateway.
func (e *Executor) SubmitBracket(ctx context.Context, runID, contractID string, bracket [BracketSize]Order) error {
	if e.Gateway == nil {
		return fmt.Errorf("executor: gateway not configured")
	}
	for _, o := range bracket {
		if err := e.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("pace order %d: %w", o.ID, err)
		}

		start := time.Now()
		err := e.Gateway.Submit(ctx, contractID, o.Request())
		e.Metrics.ObserveSubmit(time.Since(start), err)
		e.record(ctx, runID, contractID, o, err)
		if err != nil {
			return fmt.Errorf("submit %s order %d: %w", o.Role, o.ID, err)
		}
	}
	return nil
}

func (e *Executor) record(ctx context.Context, runID, contractID string, o Order, submitErr error) {
	status := db.OrderStatusSent
	errText := ""
	if submitErr != nil {
		status = db.OrderStatusFailed
		errText = submitErr.Error()
	}

	ev, msg := e.log.Info(), "order submitted"
	if submitErr != nil {
		ev, msg = e.log.Error().Err(submitErr), "order rejected"
	}
	ev.Int64("order_id", o.ID).
		Int64("parent_id", o.ParentID).
		Str("account", o.Account).
		Str("role", string(o.Role)).
		Str("side", string(o.Side)).
		Str("type", string(o.Type)).
		Int("qty", o.Qty).
		Float64("price", o.Price()).
		Bool("transmit", o.Transmit).
		Msg(msg)

	if e.DB != nil {
		rec := db.OrderRecord{
			RunID:      runID,
			OrderID:    o.ID,
			ParentID:   o.ParentID,
			Account:    o.Account,
			ContractID: contractID,
			Role:       string(o.Role),
			Side:       string(o.Side),
			Type:       string(o.Type),
			Qty:        o.Qty,
			LimitPrice: o.LimitPrice,
			StopPrice:  o.StopPrice,
			Transmit:   o.Transmit,
			Status:     status,
			Error:      errText,
		}
		t := monitor.NewTimer(e.journalLatency())
		err := e.DB.RecordOrder(ctx, rec)
		t.Stop()
		if err != nil {
			e.log.Warn().Err(err).Int64("order_id", o.ID).Msg("journal order failed")
		}
	}

	if e.Bus != nil {
		topic := events.EventOrderSubmitted
		if submitErr != nil {
			topic = events.EventOrderRejected
		}
		e.Bus.Publish(topic, Submission{RunID: runID, ContractID: contractID, Order: o, Error: errText})
	}
}

func (e *Executor) journalLatency() *monitor.LatencyHistogram {
	if e.Metrics == nil {
		return nil
	}
	return e.Metrics.JournalLatency
}
