// Package gateway picks the order gateway a run talks to.
package gateway

import (
	"github.com/rs/zerolog"

	"swing-trigger/internal/logging"
	"swing-trigger/pkg/config"
	"swing-trigger/pkg/exchanges/bridge"
	exchange "swing-trigger/pkg/exchanges/common"
	"swing-trigger/pkg/exchanges/paper"
)

// Simulated paper latency bounds per call.
const (
	paperLatencyMinMs = 5
	paperLatencyMaxMs = 25
)

// New returns the bridge client when a bridge URL is configured for the mode
// and the in-process paper gateway otherwise. Without PAPER_ACCOUNTS the paper
// gateway accepts every configured account.
func New(cfg *config.Config, accounts []config.AccountConfig, log zerolog.Logger) exchange.Gateway {
	if url := cfg.BridgeURL(); url != "" {
		log.Info().Str("mode", cfg.Mode).Str("url", url).Msg("using bridge gateway")
		return bridge.NewClient(bridge.Config{
			BaseURL:   url,
			APIKey:    cfg.BridgeAPIKey,
			APISecret: cfg.BridgeAPISecret,
		}, logging.Component(log, "bridge"))
	}

	known := cfg.PaperAccounts
	if len(known) == 0 {
		for _, a := range accounts {
			known = append(known, a.Account)
		}
	}
	log.Info().Strs("accounts", known).Msg("using paper gateway")
	return paper.New(paper.Config{
		Accounts:     known,
		LatencyMinMs: paperLatencyMinMs,
		LatencyMaxMs: paperLatencyMaxMs,
	}, logging.Component(log, "paper"))
}
