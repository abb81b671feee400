package gateway

import (
	"context"
	"testing"

	"swing-trigger/internal/logging"
	"swing-trigger/pkg/config"
	"swing-trigger/pkg/exchanges/bridge"
	"swing-trigger/pkg/exchanges/paper"
)

func TestNewPicksGateway(t *testing.T) {
	accounts := []config.AccountConfig{
		{Account: "DU2", Symbol: "ES", Qty: 1, Swing: 5},
		{Account: "DU1", Symbol: "NQ", Qty: 1, Swing: 10},
	}

	tests := []struct {
		name      string
		cfg       config.Config
		wantPaper bool
		wantAccts []string
	}{
		{"paper from accounts file", config.Config{Mode: config.ModePaper}, true, []string{"DU1", "DU2"}},
		{"paper explicit list", config.Config{Mode: config.ModePaper, PaperAccounts: []string{"DU9"}}, true, []string{"DU9"}},
		{"paper bridge", config.Config{Mode: config.ModePaper, BridgeURLPaper: "http://127.0.0.1:1"}, false, nil},
		{"live bridge", config.Config{Mode: config.ModeLive, BridgeURLLive: "http://127.0.0.1:1", BridgeURLPaper: "http://127.0.0.1:2"}, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := New(&tt.cfg, accounts, logging.Nop())
			switch g := gw.(type) {
			case *paper.Gateway:
				if !tt.wantPaper {
					t.Fatalf("expected bridge gateway, got paper")
				}
				got, err := g.ValidAccounts(context.Background())
				if err != nil {
					t.Fatalf("ValidAccounts: %v", err)
				}
				if len(got) != len(tt.wantAccts) {
					t.Fatalf("accounts=%v, expected %v", got, tt.wantAccts)
				}
				for i := range got {
					if got[i] != tt.wantAccts[i] {
						t.Fatalf("accounts=%v, expected %v", got, tt.wantAccts)
					}
				}
			case *bridge.Client:
				if tt.wantPaper {
					t.Fatalf("expected paper gateway, got bridge")
				}
			default:
				t.Fatalf("unexpected gateway type %T", gw)
			}
		})
	}
}
