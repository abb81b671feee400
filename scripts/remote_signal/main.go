package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"swing-trigger/internal/control"
	"swing-trigger/internal/logging"
	"swing-trigger/pkg/config"
)

// remote_signal publishes one control message for a run listening on the
// Redis control channel.
//
// Usage:
//   go run ./scripts/remote_signal -type OVERRIDE -direction DOWN
//   go run ./scripts/remote_signal -type KILL

func main() {
	log := logging.New(logging.Config{Format: "console"})

	typ := flag.String("type", control.SignalKill, "OVERRIDE, KILL or CANCEL")
	dir := flag.String("direction", "", "UP or DOWN for OVERRIDE")
	from := flag.String("from", "", "sender name (default hostname)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if cfg.RedisAddr == "" {
		log.Fatal().Msg("REDIS_ADDR is not set")
	}
	if *from == "" {
		*from, _ = os.Hostname()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := control.Message{
		Type:      strings.ToUpper(*typ),
		Direction: strings.ToUpper(*dir),
		From:      *from,
	}
	if err := control.Send(ctx, rdb, cfg.ControlChannel, msg); err != nil {
		log.Fatal().Err(err).Msg("publish failed")
	}
	log.Info().Str("channel", cfg.ControlChannel).Str("type", msg.Type).Str("direction", msg.Direction).Msg("sent")
}
