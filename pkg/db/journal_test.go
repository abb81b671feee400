package db

import (
	"context"
	"testing"
	"time"
)

func openMemory(t *testing.T) *Database {
	t.Helper()
	database, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestRunLifecycle(t *testing.T) {
	database := openMemory(t)
	ctx := context.Background()

	run := Run{ID: "run-1", Mode: "PAPER", TargetAt: time.Now().Add(time.Minute), Accounts: 2}
	if err := database.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := database.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != RunStatusRunning || got.Accounts != 2 || got.Mode != "PAPER" {
		t.Fatalf("unexpected run after create: %+v", got)
	}

	if err := database.FinishRun(ctx, "run-1", RunStatusKilled, "UP", true, ""); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	got, err = database.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != RunStatusKilled || !got.Killed || got.Override != "UP" {
		t.Fatalf("unexpected run after finish: %+v", got)
	}
}

func TestMissingRun(t *testing.T) {
	database := openMemory(t)
	ctx := context.Background()

	if _, err := database.GetRun(ctx, "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := database.FinishRun(ctx, "nope", RunStatusDone, "", false, ""); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOrdersAndSwingsByRun(t *testing.T) {
	database := openMemory(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := database.CreateRun(ctx, Run{ID: id, Mode: "PAPER", TargetAt: time.Now()}); err != nil {
			t.Fatalf("CreateRun %s: %v", id, err)
		}
	}

	// Insert out of order; reads come back by order id.
	orders := []OrderRecord{
		{RunID: "a", OrderID: 12, ParentID: 10, Account: "DU1", ContractID: "c1", Role: "STOP_LOSS", Side: "SELL", Type: "STP", Qty: 1, StopPrice: 98.5, Transmit: true, Status: OrderStatusSent},
		{RunID: "a", OrderID: 10, Account: "DU1", ContractID: "c1", Role: "ENTRY", Side: "BUY", Type: "MKT", Qty: 1, Status: OrderStatusSent},
		{RunID: "a", OrderID: 11, ParentID: 10, Account: "DU1", ContractID: "c1", Role: "TAKE_PROFIT", Side: "SELL", Type: "LMT", Qty: 1, LimitPrice: 111, Status: OrderStatusSent},
		{RunID: "b", OrderID: 20, Account: "DU2", ContractID: "c2", Role: "ENTRY", Side: "SELL", Type: "MKT", Qty: 3, Status: OrderStatusFailed, Error: "rejected"},
	}
	for _, o := range orders {
		if err := database.RecordOrder(ctx, o); err != nil {
			t.Fatalf("RecordOrder %d: %v", o.OrderID, err)
		}
	}

	got, err := database.OrdersByRun(ctx, "a")
	if err != nil {
		t.Fatalf("OrdersByRun: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 orders for run a, got %d", len(got))
	}
	for i, want := range []int64{10, 11, 12} {
		if got[i].OrderID != want {
			t.Fatalf("order %d: expected id %d, got %d", i, want, got[i].OrderID)
		}
	}
	if !got[2].Transmit || got[2].StopPrice != 98.5 || got[2].ParentID != 10 {
		t.Fatalf("stop-loss not round-tripped: %+v", got[2])
	}
	if got[0].Transmit {
		t.Fatalf("entry should not transmit: %+v", got[0])
	}

	// Duplicate (run, order id) is refused.
	if err := database.RecordOrder(ctx, orders[1]); err == nil {
		t.Fatalf("expected duplicate order id to fail")
	}

	swings := []SwingEvent{
		{RunID: "a", Symbol: "ES", Threshold: 5, Direction: "UP", From: 100, To: 106},
		{RunID: "a", Symbol: "ES", Threshold: 5, Direction: "DOWN", From: 106, To: 100.5},
	}
	for _, e := range swings {
		if err := database.RecordSwing(ctx, e); err != nil {
			t.Fatalf("RecordSwing: %v", err)
		}
	}
	gotSwings, err := database.SwingsByRun(ctx, "a")
	if err != nil {
		t.Fatalf("SwingsByRun: %v", err)
	}
	if len(gotSwings) != 2 || gotSwings[0].Direction != "UP" || gotSwings[1].To != 100.5 {
		t.Fatalf("unexpected swings: %+v", gotSwings)
	}
	if none, _ := database.SwingsByRun(ctx, "b"); len(none) != 0 {
		t.Fatalf("expected no swings for run b, got %d", len(none))
	}
}
