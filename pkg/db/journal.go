package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Run statuses.
const (
	RunStatusRunning  = "RUNNING"
	RunStatusDone     = "DONE"
	RunStatusKilled   = "KILLED"
	RunStatusFailed   = "FAILED"
	OrderStatusSent   = "SUBMITTED"
	OrderStatusFailed = "REJECTED"
)

// Run is one execution window.
type Run struct {
	ID       string
	Mode     string
	TargetAt time.Time
	Accounts int
	Status   string
	Override string
	Killed   bool
	Error    string
}

// SwingEvent is one direction flip seen during a run.
type SwingEvent struct {
	RunID     string
	Symbol    string
	Threshold float64
	Direction string
	From      float64
	To        float64
	At        time.Time
}

// OrderRecord is one order handed to the gateway.
type OrderRecord struct {
	RunID      string
	OrderID    int64
	ParentID   int64
	Account    string
	ContractID string
	Role       string
	Side       string
	Type       string
	Qty        int
	LimitPrice float64
	StopPrice  float64
	Transmit   bool
	Status     string
	Error      string
	At         time.Time
}

// CreateRun inserts a run in RUNNING state.
func (d *Database) CreateRun(ctx context.Context, r Run) error {
	if r.Status == "" {
		r.Status = RunStatusRunning
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO runs (id, mode, target_at, accounts, status, started_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, r.ID, r.Mode, r.TargetAt.UTC(), r.Accounts, r.Status)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the final status of a run.
func (d *Database) FinishRun(ctx context.Context, id, status, override string, killed bool, runErr string) error {
	res, err := d.DB.ExecContext(ctx, `
		UPDATE runs SET status = ?, override = ?, killed = ?, error = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, override, killed, runErr, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun loads a run without its timestamps.
func (d *Database) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := d.DB.QueryRowContext(ctx, `
		SELECT id, mode, accounts, status, override, killed, error FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Mode, &r.Accounts, &r.Status, &r.Override, &r.Killed, &r.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// RecordSwing appends a swing event.
func (d *Database) RecordSwing(ctx context.Context, e SwingEvent) error {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO swing_events (run_id, symbol, threshold, direction, from_price, to_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.RunID, e.Symbol, e.Threshold, e.Direction, e.From, e.To, at.UTC())
	if err != nil {
		return fmt.Errorf("insert swing event: %w", err)
	}
	return nil
}

// RecordOrder appends an order.
func (d *Database) RecordOrder(ctx context.Context, o OrderRecord) error {
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO orders (
			run_id, order_id, parent_id, account, contract_id, role, side, type, qty,
			limit_price, stop_price, transmit, status, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.RunID, o.OrderID, o.ParentID, o.Account, o.ContractID, o.Role, o.Side, o.Type, o.Qty,
		o.LimitPrice, o.StopPrice, o.Transmit, o.Status, o.Error, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert order %d: %w", o.OrderID, err)
	}
	return nil
}

// OrdersByRun returns a run's orders by ascending order id.
func (d *Database) OrdersByRun(ctx context.Context, runID string) ([]OrderRecord, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT run_id, order_id, parent_id, account, contract_id, role, side, type, qty,
		       limit_price, stop_price, transmit, status, error
		FROM orders WHERE run_id = ? ORDER BY order_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(&o.RunID, &o.OrderID, &o.ParentID, &o.Account, &o.ContractID, &o.Role, &o.Side,
			&o.Type, &o.Qty, &o.LimitPrice, &o.StopPrice, &o.Transmit, &o.Status, &o.Error); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SwingsByRun returns a run's swing events in insertion order.
func (d *Database) SwingsByRun(ctx context.Context, runID string) ([]SwingEvent, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT run_id, symbol, threshold, direction, from_price, to_price
		FROM swing_events WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query swing events: %w", err)
	}
	defer rows.Close()

	var out []SwingEvent
	for rows.Next() {
		var e SwingEvent
		if err := rows.Scan(&e.RunID, &e.Symbol, &e.Threshold, &e.Direction, &e.From, &e.To); err != nil {
			return nil, fmt.Errorf("scan swing event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
