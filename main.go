package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"swing-trigger/internal/api"
	"swing-trigger/internal/contract"
	"swing-trigger/internal/control"
	"swing-trigger/internal/engine"
	"swing-trigger/internal/events"
	"swing-trigger/internal/gateway"
	"swing-trigger/internal/logging"
	"swing-trigger/internal/market"
	"swing-trigger/internal/monitor"
	"swing-trigger/internal/order"
	"swing-trigger/internal/swing"
	"swing-trigger/pkg/config"
	"swing-trigger/pkg/db"
	"swing-trigger/pkg/market/stream"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New(logging.Config{Format: "console"})
		bootLog.Error().Err(err).Msg("config load failed")
		return err
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Info().
		Str("mode", cfg.Mode).
		Str("exec_time", cfg.ExecTime.String()).
		Str("timezone", cfg.Location.String()).
		Str("db", cfg.DBPath).
		Msg("starting swing-trigger")

	accounts, err := config.LoadAccounts(cfg.AccountsFile)
	if err != nil {
		log.Error().Err(err).Str("file", cfg.AccountsFile).Msg("accounts load failed")
		return err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error().Err(err).Msg("db init failed")
		return err
	}
	defer database.Close()

	bus := events.NewBus()
	signals := control.NewSignals()
	metrics := monitor.New()
	gw := gateway.New(cfg, accounts, log)
	feed := newFeed(cfg, log)

	coord := engine.New(engine.Options{
		Mode:     cfg.Mode,
		Accounts: accounts,
		Clock:    cfg.ExecTime,
		Location: cfg.Location,
		Brackets: order.BracketPolicy{
			Long:  order.Distances{TakeProfit: cfg.TPLong, StopLoss: cfg.SLLong},
			Short: order.Distances{TakeProfit: cfg.TPShort, StopLoss: cfg.SLShort},
		},
		Tracker: swing.Config{
			PollInterval:      cfg.PollInterval,
			InitPollInterval:  cfg.InitPollInterval,
			HeartbeatInterval: cfg.HeartbeatInterval,
		},
		Resolver: contract.Resolver{
			Exchange:       cfg.Exchange,
			Currency:       cfg.Currency,
			RollDaysBefore: cfg.RollDaysBefore,
			Location:       cfg.Location,
		},
		Pacing:  cfg.SubmitPacing,
		Metrics: metrics,
	}, gw, feed, signals, database, bus, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// API
	server := api.NewServer(bus, signals, coord, metrics, cfg.JWTSecret, logging.Component(log, "api"))
	if cfg.ControlAddr != "" {
		go func() {
			if err := server.Start(cfg.ControlAddr); err != nil {
				log.Error().Err(err).Str("addr", cfg.ControlAddr).Msg("control api stopped")
			}
		}()
		log.Info().Str("addr", cfg.ControlAddr).Msg("control api listening")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		defer rdb.Close()
		relay := control.NewRelay(rdb, cfg.ControlChannel, signals, bus, logging.Component(log, "relay"))
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error().Err(err).Str("addr", cfg.RedisAddr).Msg("control relay stopped")
			}
		}()
	}

	// First signal kills the run cleanly, a second one abandons it.
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		log.Warn().Msg("shutdown requested, killing run")
		signals.Kill.Kill()
		select {
		case <-sigChan:
			log.Warn().Msg("second signal, abandoning run")
			cancel()
		case <-ctx.Done():
		}
	}()

	report, runErr := coord.Run(ctx)
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("control api shutdown")
	}

	if report != nil {
		evt := log.Info()
		if runErr != nil {
			evt = log.Error().Err(runErr)
		}
		evt.Str("run_id", report.RunID).
			Bool("killed", report.Killed).
			Int("submitted", report.Count(engine.OutcomeSubmitted)).
			Int("skipped", report.Count(engine.OutcomeSkipped)).
			Int("failed", report.Count(engine.OutcomeFailed)).
			Int("not_reached", report.Count(engine.OutcomeNotReached)).
			Msg("run finished")
	} else if runErr != nil {
		log.Error().Err(runErr).Msg("run aborted")
	}
	return runErr
}

func newFeed(cfg *config.Config, log zerolog.Logger) market.Feed {
	if cfg.BridgeStreamURL != "" {
		l := logging.Component(log, "stream")
		return &market.StreamFeed{Client: stream.NewStreamClient(cfg.BridgeStreamURL, l), Log: l}
	}
	return &market.MockFeed{
		StartPrice: cfg.PaperStartPrice,
		Step:       cfg.PaperStep,
		Interval:   cfg.PollInterval / 2,
	}
}
