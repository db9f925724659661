package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	JWTSecret string        `env:"JWT_SECRET,notEmpty"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"sindh"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	InboxSize     int    `env:"NOTIFY_INBOX_SIZE" envDefault:"100"`

	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RateLimit   float64  `env:"RATE_LIMIT_PER_SEC" envDefault:"10"`
	RateBurst   int      `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// MaxAttempts bounds optimistic-concurrency retries per transaction.
	MaxAttempts   int    `env:"TX_MAX_ATTEMPTS" envDefault:"3"`
	RiverWorkers  int    `env:"RIVER_MAX_WORKERS" envDefault:"10"`
	SweepSchedule string `env:"CASCADE_SWEEP_SCHEDULE" envDefault:"*/10 * * * *"`
	AuditSchedule string `env:"LEDGER_AUDIT_SCHEDULE" envDefault:"15 3 * * *"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Load reads an optional .env file (existing variables win) and then the process
// environment.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load(files...)
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	for i, o := range c.CORSOrigins {
		c.CORSOrigins[i] = strings.TrimSpace(o)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("config: TX_MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InboxSize < 1 {
		return fmt.Errorf("config: NOTIFY_INBOX_SIZE must be at least 1, got %d", c.InboxSize)
	}
	if c.RiverWorkers < 1 {
		return fmt.Errorf("config: RIVER_MAX_WORKERS must be at least 1, got %d", c.RiverWorkers)
	}
	return nil
}

func (c Config) Addr() string { return ":" + c.Port }
