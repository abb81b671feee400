package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"swing-trigger/internal/api"
	"swing-trigger/internal/logging"
	"swing-trigger/pkg/config"
)

// mint_token prints an operator bearer token for the control API.
//
// Usage:
//   go run ./scripts/mint_token -operator desk -ttl 12h
//
// The signing secret defaults to JWT_SECRET from the environment / .env.

func main() {
	log := logging.New(logging.Config{Format: "console", Output: os.Stderr})

	operator := flag.String("operator", "operator", "token subject")
	secret := flag.String("secret", "", "signing secret (default JWT_SECRET)")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	if *secret == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("config load failed")
		}
		*secret = cfg.JWTSecret
	}

	expiresAt := time.Now().Add(*ttl)
	token, err := api.GenerateToken(*operator, *secret, expiresAt)
	if err != nil {
		log.Fatal().Err(err).Msg("sign token")
	}
	log.Info().Str("operator", *operator).Time("expires_at", expiresAt).Msg("token minted")
	fmt.Println(token)
}
