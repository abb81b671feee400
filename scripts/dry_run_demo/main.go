package main

import (
	"context"
	"flag"
	"time"

	"swing-trigger/internal/contract"
	"swing-trigger/internal/control"
	"swing-trigger/internal/engine"
	"swing-trigger/internal/events"
	"swing-trigger/internal/logging"
	"swing-trigger/internal/market"
	"swing-trigger/internal/order"
	"swing-trigger/internal/swing"
	"swing-trigger/pkg/config"
	"swing-trigger/pkg/db"
	"swing-trigger/pkg/exchanges/paper"
)

// dry_run_demo runs one short window end to end against the paper gateway
// and a fast random-walk feed, then prints every bracket that was released.
// It touches no bridge and keeps the journal in memory.
//
// Usage:
//   go run ./scripts/dry_run_demo -window 10s -step 2
//   go run ./scripts/dry_run_demo -override DOWN

func main() {
	log := logging.New(logging.Config{Format: "console", Level: "info"})

	window := flag.Duration("window", 10*time.Second, "time until the execution instant")
	step := flag.Float64("step", 2, "random walk step")
	override := flag.String("override", "", "force UP or DOWN for every account")
	flag.Parse()

	accounts := []config.AccountConfig{
		{Account: "DU100001", Symbol: "ES", Qty: 1, Swing: 3},
		{Account: "DU100002", Symbol: "ES", Qty: 2, Swing: 3},
		{Account: "DU100003", Symbol: "NQ", Qty: 1, Swing: 5},
		{Account: "DU999999", Symbol: "ES", Qty: 1, Swing: 3}, // unknown to the gateway
	}

	database, err := db.Open(":memory:")
	if err != nil {
		log.Fatal().Err(err).Msg("open journal")
	}
	defer database.Close()

	gw := paper.New(paper.Config{
		Accounts:     []string{"DU100001", "DU100002", "DU100003"},
		FirstOrderID: 1000,
	}, logging.Component(log, "paper"))

	signals := control.NewSignals()
	if *override != "" {
		dir, err := swing.ParseDirection(*override)
		if err != nil {
			log.Fatal().Err(err).Msg("bad override")
		}
		_ = signals.Override.Set(dir)
	}

	loc, _ := time.LoadLocation("America/Chicago")
	coord := engine.New(engine.Options{
		Mode:     config.ModePaper,
		Accounts: accounts,
		Location: loc,
		Target:   time.Now().Add(*window),
		Brackets: order.BracketPolicy{
			Long:  order.Distances{TakeProfit: 5, StopLoss: 7.5},
			Short: order.Distances{TakeProfit: 5, StopLoss: 5},
		},
		Tracker: swing.Config{
			PollInterval:      250 * time.Millisecond,
			InitPollInterval:  50 * time.Millisecond,
			HeartbeatInterval: 2 * time.Second,
		},
		Resolver: contract.Resolver{Exchange: "CME", Currency: "USD", RollDaysBefore: 8},
		Pacing:   50 * time.Millisecond,
	}, gw, &market.MockFeed{StartPrice: 100, Step: *step, Interval: 100 * time.Millisecond},
		signals, database, events.NewBus(), log)

	report, err := coord.Run(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("run ended with error")
	}
	if report == nil {
		return
	}

	for _, a := range report.Accounts {
		log.Info().
			Str("account", a.Account).
			Str("direction", a.Direction).
			Str("outcome", string(a.Outcome)).
			Float64("entry", a.Entry).
			Msg("account result")
	}
	for _, g := range gw.Transmitted() {
		for _, o := range g.Orders {
			log.Info().
				Str("contract", g.ContractID).
				Int64("id", o.OrderID).
				Int64("parent", o.ParentID).
				Str("side", string(o.Side)).
				Str("type", string(o.Type)).
				Int("qty", o.Qty).
				Float64("limit", o.LimitPrice).
				Float64("stop", o.StopPrice).
				Msg("released")
		}
	}
	log.Info().Msg("=== DRY-RUN demo finished ===")
}
