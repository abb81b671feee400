package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // exchange timezones without system zoneinfo

	"github.com/joho/godotenv"

	"swing-trigger/internal/schedule"
)

// Trading modes.
const (
	ModePaper = "PAPER"
	ModeLive  = "LIVE"
)

// Config holds environment-driven settings for one run.
type Config struct {
	Mode string // PAPER or LIVE

	// Schedule
	ExecTime schedule.Clock
	Location *time.Location

	AccountsFile string

	// Contract descriptor
	Exchange       string
	Currency       string
	RollDaysBefore int

	// Bracket distances
	TPLong  float64
	SLLong  float64
	TPShort float64
	SLShort float64

	// Tracker cadence
	PollInterval      time.Duration
	InitPollInterval  time.Duration
	HeartbeatInterval time.Duration
	SubmitPacing      time.Duration

	// Bridge
	BridgeURLPaper  string
	BridgeURLLive   string
	BridgeStreamURL string
	BridgeAPIKey    string
	BridgeAPISecret string

	// Paper simulation
	PaperAccounts   []string
	PaperStartPrice float64
	PaperStep       float64

	// Control API
	ControlAddr string
	JWTSecret   string

	// Remote control relay (disabled when RedisAddr is empty)
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ControlChannel string

	// Database
	DBPath string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	clock, err := schedule.ParseClock(getEnv("EXEC_TIME", "12:39:55"))
	if err != nil {
		return nil, err
	}
	tz := getEnv("TIMEZONE", "America/Chicago")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	cfg := &Config{
		Mode:              strings.ToUpper(getEnv("MODE", ModePaper)),
		ExecTime:          clock,
		Location:          loc,
		AccountsFile:      getEnv("ACCOUNTS_FILE", "./accounts.yaml"),
		Exchange:          getEnv("EXCHANGE", "CME"),
		Currency:          getEnv("CURRENCY", "USD"),
		RollDaysBefore:    getEnvInt("ROLL_DAYS_BEFORE", 8),
		TPLong:            getEnvFloat("TP_LONG", 5),
		SLLong:            getEnvFloat("SL_LONG", 7.5),
		TPShort:           getEnvFloat("TP_SHORT", 5),
		SLShort:           getEnvFloat("SL_SHORT", 5),
		PollInterval:      getEnvDuration("POLL_INTERVAL", time.Second),
		InitPollInterval:  getEnvDuration("INIT_POLL_INTERVAL", 100*time.Millisecond),
		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", 5*time.Second),
		SubmitPacing:      getEnvDuration("SUBMIT_PACING", 100*time.Millisecond),
		BridgeURLPaper:    getEnv("BRIDGE_URL_PAPER", ""),
		BridgeURLLive:     getEnv("BRIDGE_URL_LIVE", ""),
		BridgeStreamURL:   getEnv("BRIDGE_STREAM_URL", ""),
		BridgeAPIKey:      os.Getenv("BRIDGE_API_KEY"),
		BridgeAPISecret:   os.Getenv("BRIDGE_API_SECRET"),
		PaperAccounts:     splitAndTrim(getEnv("PAPER_ACCOUNTS", "")),
		PaperStartPrice:   getEnvFloat("PAPER_START_PRICE", 100),
		PaperStep:         getEnvFloat("PAPER_STEP", 0.5),
		ControlAddr:       getEnv("CONTROL_ADDR", "127.0.0.1:8080"),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		ControlChannel:    getEnv("CONTROL_CHANNEL", "swing:control"),
		DBPath:            getEnv("DB_PATH", "./data/swing.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModePaper:
	case ModeLive:
		if c.BridgeURLLive == "" {
			return fmt.Errorf("MODE=LIVE requires BRIDGE_URL_LIVE")
		}
		if c.BridgeStreamURL == "" {
			return fmt.Errorf("MODE=LIVE requires BRIDGE_STREAM_URL")
		}
	default:
		return fmt.Errorf("unknown MODE %q (want PAPER or LIVE)", c.Mode)
	}
	for name, v := range map[string]float64{"TP_LONG": c.TPLong, "SL_LONG": c.SLLong, "TP_SHORT": c.TPShort, "SL_SHORT": c.SLShort} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, v)
		}
	}
	if c.RollDaysBefore < 0 {
		return fmt.Errorf("ROLL_DAYS_BEFORE must not be negative")
	}
	return nil
}

// BridgeURL returns the bridge endpoint for the selected mode, empty when the
// run should use the in-process paper gateway.
func (c *Config) BridgeURL() string {
	if c.Mode == ModeLive {
		return c.BridgeURLLive
	}
	return c.BridgeURLPaper
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
