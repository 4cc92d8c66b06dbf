package config_test

import (
	"io"
	"os"
	"testing"
	"time"

	"service-dispatch/internal/config"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func resetFlags(t *testing.T) {
	t.Helper()
	old := pflag.CommandLine
	oldArgs := os.Args
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	os.Args = []string{oldArgs[0]}
	t.Cleanup(func() {
		pflag.CommandLine = old
		os.Args = oldArgs
	})
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT",
		"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
		"REDIS_ADDR",
		"KAFKA_BROKERS", "KAFKA_STATUS_TOPIC", "KAFKA_SIGNALS_TOPIC", "KAFKA_NOTIFY_TOPIC", "KAFKA_GROUP_ID",
		"DISPATCH_RESPONSE_WINDOW", "DISPATCH_STALENESS_THRESHOLD", "DISPATCH_REDISPATCH_BUDGET",
		"DISPATCH_CONFIRMATION_WINDOW", "DISPATCH_SWEEP_INTERVAL", "DISPATCH_SEARCH_RADIUS_KM",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	resetFlags(t)
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	require.Equal(t, 8080, cfg.Port)

	require.Equal(t, "127.0.0.1", cfg.DB.Host)
	require.Equal(t, "5432", cfg.DB.Port)
	require.Equal(t, "dispatch", cfg.DB.Name)

	require.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)

	require.Equal(t, "order-status-events", cfg.Kafka.StatusTopic)
	require.Empty(t, cfg.Kafka.Brokers)

	require.Equal(t, 2*time.Minute, cfg.Dispatch.ResponseWindow)
	require.Equal(t, time.Minute, cfg.Dispatch.StalenessThreshold)
	require.Equal(t, 15*time.Minute, cfg.Dispatch.RedispatchBudget)
	require.Equal(t, 5*time.Minute, cfg.Dispatch.ConfirmationWindow)
	require.Equal(t, 10.0, cfg.Dispatch.SearchRadiusKm)
}

func TestLoad_EnvOverrides(t *testing.T) {
	resetFlags(t)
	clearEnv(t)

	t.Setenv("PORT", "9090")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "15432")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("DISPATCH_RESPONSE_WINDOW", "90s")
	t.Setenv("DISPATCH_SEARCH_RADIUS_KM", "25")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "db", cfg.DB.Host)
	require.Equal(t, "15432", cfg.DB.Port)
	require.Equal(t, "redis:6379", cfg.Redis.Addr)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, 90*time.Second, cfg.Dispatch.ResponseWindow)
	require.Equal(t, 25.0, cfg.Dispatch.SearchRadiusKm)
}

func TestLoad_InvalidPort(t *testing.T) {
	resetFlags(t)
	clearEnv(t)

	t.Setenv("PORT", "70000")

	cfg, err := config.Load()
	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestLoad_InvalidPostgresPort(t *testing.T) {
	resetFlags(t)
	clearEnv(t)

	t.Setenv("POSTGRES_PORT", "not-a-number")

	cfg, err := config.Load()
	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestLoad_InvalidResponseWindow(t *testing.T) {
	resetFlags(t)
	clearEnv(t)

	t.Setenv("DISPATCH_RESPONSE_WINDOW", "bad-window")

	cfg, err := config.Load()
	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestLoad_ZeroStalenessRejected(t *testing.T) {
	resetFlags(t)
	clearEnv(t)

	t.Setenv("DISPATCH_STALENESS_THRESHOLD", "0s")

	cfg, err := config.Load()
	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestLoad_FlagsParseError(t *testing.T) {
	oldArgs := os.Args
	oldCommandLine := pflag.CommandLine

	defer func() {
		os.Args = oldArgs
		pflag.CommandLine = oldCommandLine
	}()

	clearEnv(t)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	pflag.CommandLine = fs
	os.Args = []string{"cmd", "--port=not-a-number"}

	cfg, err := config.Load()

	require.Error(t, err)
	require.Nil(t, cfg)
	require.Contains(t, err.Error(), "parse flags")
}

func TestDB_DSN(t *testing.T) {
	d := config.DB{Host: "h", Port: "5432", User: "u", Pass: "p", Name: "n"}
	require.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", d.DSN())
}
