package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AccountConfig is one account's trading instructions for the run.
type AccountConfig struct {
	Account string  `yaml:"account"`
	Symbol  string  `yaml:"symbol"`
	Qty     int     `yaml:"qty"`
	Swing   float64 `yaml:"swing"`
}

// AccountsFile represents the top-level YAML structure.
type AccountsFile struct {
	Accounts []AccountConfig `yaml:"accounts"`
}

// LoadAccounts reads and validates accounts from a YAML file.
func LoadAccounts(path string) ([]AccountConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseAccounts(data)
}

// ParseAccounts decodes YAML, normalises symbols and rejects bad rows.
func ParseAccounts(data []byte) ([]AccountConfig, error) {
	var file AccountsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse accounts: %w", err)
	}

	seen := make(map[string]bool, len(file.Accounts))
	out := make([]AccountConfig, 0, len(file.Accounts))
	for i, a := range file.Accounts {
		a.Account = strings.TrimSpace(a.Account)
		a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
		switch {
		case a.Account == "":
			return nil, fmt.Errorf("accounts[%d]: account is empty", i)
		case a.Symbol == "":
			return nil, fmt.Errorf("accounts[%d] %s: symbol is empty", i, a.Account)
		case a.Qty <= 0:
			return nil, fmt.Errorf("accounts[%d] %s: qty must be positive, got %d", i, a.Account, a.Qty)
		case !(a.Swing > 0) || math.IsInf(a.Swing, 0):
			return nil, fmt.Errorf("accounts[%d] %s: swing must be a positive finite number, got %v", i, a.Account, a.Swing)
		case seen[a.Account]:
			return nil, fmt.Errorf("accounts[%d]: duplicate account %s", i, a.Account)
		}
		seen[a.Account] = true
		out = append(out, a)
	}
	return out, nil
}
