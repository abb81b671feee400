package main

import (
	"context"
	"flag"
	"os"

	"swing-trigger/internal/logging"
	"swing-trigger/pkg/db"
)

// verify_schema opens a journal, applies migrations and checks that every
// journal table and index is present.
//
// Usage:
//   go run ./scripts/verify_schema -db ./data/swing.db

func main() {
	log := logging.New(logging.Config{Format: "console"})
	path := flag.String("db", "./data/swing.db", "journal path")
	flag.Parse()

	database, err := db.Open(*path)
	if err != nil {
		log.Fatal().Err(err).Msg("open journal")
	}
	defer database.Close()

	missing := 0
	for _, obj := range []struct{ kind, name string }{
		{"table", "runs"},
		{"table", "swing_events"},
		{"table", "orders"},
		{"index", "idx_swing_events_run"},
	} {
		var name string
		err := database.DB.QueryRowContext(context.Background(),
			"SELECT name FROM sqlite_master WHERE type = ? AND name = ?", obj.kind, obj.name).Scan(&name)
		if err != nil {
			missing++
			log.Error().Str(obj.kind, obj.name).Msg("missing")
			continue
		}
		log.Info().Str(obj.kind, obj.name).Msg("ok")
	}
	if missing > 0 {
		os.Exit(1)
	}
}
