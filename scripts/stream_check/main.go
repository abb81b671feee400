package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"swing-trigger/internal/contract"
	"swing-trigger/internal/logging"
	"swing-trigger/pkg/config"
	"swing-trigger/pkg/exchanges/bridge"
	"swing-trigger/pkg/market/stream"
)

// stream_check resolves the front month of one symbol and logs every trade
// seen on the bridge stream until interrupted or the duration elapses.
//
// Usage:
//   go run ./scripts/stream_check -symbol ES -for 30s

func main() {
	log := logging.New(logging.Config{Format: "console", Level: "debug"})

	symbol := flag.String("symbol", "ES", "futures root symbol")
	dur := flag.Duration("for", 30*time.Second, "how long to listen")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if cfg.BridgeURL() == "" || cfg.BridgeStreamURL == "" {
		log.Fatal().Msg("bridge url and BRIDGE_STREAM_URL are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *dur)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	client := bridge.NewClient(bridge.Config{
		BaseURL:   cfg.BridgeURL(),
		APIKey:    cfg.BridgeAPIKey,
		APISecret: cfg.BridgeAPISecret,
	}, logging.Component(log, "bridge"))

	resolver := contract.Resolver{
		Exchange:       cfg.Exchange,
		Currency:       cfg.Currency,
		RollDaysBefore: cfg.RollDaysBefore,
		Location:       cfg.Location,
	}
	c := resolver.Front(*symbol)
	id, err := client.ResolveContract(ctx, c)
	if err != nil {
		log.Fatal().Err(err).Str("contract", c.String()).Msg("resolve failed")
	}

	sc := stream.NewStreamClient(cfg.BridgeStreamURL, logging.Component(log, "stream"))
	trades, unsub, err := sc.SubscribeTrades(ctx, id)
	if err != nil {
		log.Fatal().Err(err).Msg("subscribe failed")
	}
	defer unsub()

	n := 0
	for t := range trades {
		n++
		log.Info().Float64("price", t.Price).Int64("size", t.Size).Time("at", t.Time).Msg("trade")
	}
	log.Info().Int("trades", n).Str("contract", c.String()).Msg("stream check finished")
}
