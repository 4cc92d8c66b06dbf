package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// DB stores PostgreSQL connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN builds a pgx connection string.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Pass, d.Host, d.Port, d.Name)
}

// Redis stores Redis connection settings for the courier geo index.
type Redis struct {
	Addr string
}

// Kafka stores broker settings and the topics the service talks to.
type Kafka struct {
	Brokers      []string
	StatusTopic  string // order status events, consumed by the worker
	SignalsTopic string // operational signals for alerting
	NotifyTopic  string // courier assignment notifications
	GroupID      string
}

// Dispatch stores the tunables of the assignment engine and its schedulers.
type Dispatch struct {
	ResponseWindow     time.Duration // courier accept window per assignment
	StalenessThreshold time.Duration // max heartbeat age for matching
	RedispatchBudget   time.Duration // total elapsed time before manual escalation
	ConfirmationWindow time.Duration // ready-without-first-dispatch alert window
	SweepInterval      time.Duration
	SearchRadiusKm     float64
	CandidateLimit     int
}

// Pprof stores basic auth credentials for the profiling endpoints.
// Loopback requests are always allowed; remote access requires both set.
type Pprof struct {
	User string
	Pass string
}

// RateLimit stores heartbeat endpoint rate limiting settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Config stores all service settings.
type Config struct {
	Port      int
	DB        DB
	Redis     Redis
	Kafka     Kafka
	Dispatch  Dispatch
	Pprof     Pprof
	RateLimit RateLimit
}

// Load reads configuration from .env (if present), then the environment,
// then flags. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:      DefaultPort(),
		DB:        DefaultDB(),
		Redis:     DefaultRedis(),
		Kafka:     DefaultKafka(),
		Dispatch:  DefaultDispatch(),
		RateLimit: DefaultRateLimit(),
	}

	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Port = p
	}

	readString(&cfg.DB.Host, "POSTGRES_HOST")
	readString(&cfg.DB.Port, "POSTGRES_PORT")
	readString(&cfg.DB.User, "POSTGRES_USER")
	readString(&cfg.DB.Pass, "POSTGRES_PASSWORD")
	readString(&cfg.DB.Name, "POSTGRES_DB")

	readString(&cfg.Redis.Addr, "REDIS_ADDR")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	readString(&cfg.Kafka.StatusTopic, "KAFKA_STATUS_TOPIC")
	readString(&cfg.Kafka.SignalsTopic, "KAFKA_SIGNALS_TOPIC")
	readString(&cfg.Kafka.NotifyTopic, "KAFKA_NOTIFY_TOPIC")
	readString(&cfg.Kafka.GroupID, "KAFKA_GROUP_ID")

	readString(&cfg.Pprof.User, "PPROF_USER")
	readString(&cfg.Pprof.Pass, "PPROF_PASS")

	if err := readDuration(&cfg.Dispatch.ResponseWindow, "DISPATCH_RESPONSE_WINDOW"); err != nil {
		return nil, err
	}
	if err := readDuration(&cfg.Dispatch.StalenessThreshold, "DISPATCH_STALENESS_THRESHOLD"); err != nil {
		return nil, err
	}
	if err := readDuration(&cfg.Dispatch.RedispatchBudget, "DISPATCH_REDISPATCH_BUDGET"); err != nil {
		return nil, err
	}
	if err := readDuration(&cfg.Dispatch.ConfirmationWindow, "DISPATCH_CONFIRMATION_WINDOW"); err != nil {
		return nil, err
	}
	if err := readDuration(&cfg.Dispatch.SweepInterval, "DISPATCH_SWEEP_INTERVAL"); err != nil {
		return nil, err
	}
	if v := os.Getenv("DISPATCH_SEARCH_RADIUS_KM"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid DISPATCH_SEARCH_RADIUS_KM: %q", v)
		}
		cfg.Dispatch.SearchRadiusKm = r
	}

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if _, err := strconv.Atoi(c.DB.Port); err != nil {
		return fmt.Errorf("invalid postgres port: %q", c.DB.Port)
	}
	if c.Dispatch.ResponseWindow <= 0 {
		return fmt.Errorf("invalid response window: %s", c.Dispatch.ResponseWindow)
	}
	if c.Dispatch.StalenessThreshold <= 0 {
		return fmt.Errorf("invalid staleness threshold: %s", c.Dispatch.StalenessThreshold)
	}
	if c.Dispatch.SweepInterval <= 0 {
		return fmt.Errorf("invalid sweep interval: %s", c.Dispatch.SweepInterval)
	}
	if c.Dispatch.SearchRadiusKm <= 0 {
		return fmt.Errorf("invalid search radius: %f", c.Dispatch.SearchRadiusKm)
	}
	return nil
}

func readString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func readDuration(dst *time.Duration, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", env, v)
	}
	*dst = d
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
