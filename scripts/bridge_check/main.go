package main

import (
	"context"
	"os"
	"strings"
	"time"

	"swing-trigger/internal/contract"
	"swing-trigger/internal/logging"
	"swing-trigger/pkg/config"
	"swing-trigger/pkg/exchanges/bridge"
)

// bridge_check exercises the read-only bridge endpoints for the configured
// mode: account listing and front-month contract resolution. No order ids are
// reserved and nothing is submitted.
//
// Usage:
//   go run ./scripts/bridge_check
//
// Environment (same as the main binary):
//   MODE, BRIDGE_URL_PAPER / BRIDGE_URL_LIVE, BRIDGE_API_KEY / BRIDGE_API_SECRET
//   CHECK_SYMBOLS (default "ES,NQ")

func main() {
	log := logging.New(logging.Config{Format: "console"})
	log.Info().Msg("=== bridge check starting ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	url := cfg.BridgeURL()
	if url == "" {
		log.Fatal().Str("mode", cfg.Mode).Msg("no bridge url for mode")
	}

	client := bridge.NewClient(bridge.Config{
		BaseURL:   url,
		APIKey:    cfg.BridgeAPIKey,
		APISecret: cfg.BridgeAPISecret,
	}, logging.Component(log, "bridge"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	accounts, err := client.ValidAccounts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list accounts")
	}
	log.Info().Strs("accounts", accounts).Msg("accounts")

	resolver := contract.Resolver{
		Exchange:       cfg.Exchange,
		Currency:       cfg.Currency,
		RollDaysBefore: cfg.RollDaysBefore,
		Location:       cfg.Location,
	}
	failed := false
	for _, sym := range strings.Split(getenv("CHECK_SYMBOLS", "ES,NQ"), ",") {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		c := resolver.Front(sym)
		id, err := client.ResolveContract(ctx, c)
		if err != nil {
			failed = true
			log.Error().Err(err).Str("contract", c.String()).Msg("resolve failed")
			continue
		}
		log.Info().Str("contract", c.String()).Str("contract_id", id).Msg("resolved")
	}

	used, limit, _ := client.Usage()
	log.Info().Int("used_weight", used).Int("weight_limit", limit).Msg("=== bridge check finished ===")
	if failed {
		os.Exit(1)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
