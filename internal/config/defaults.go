package config

import "time"

const defaultPort = 8080

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "dispatch",
	Pass: "dispatch",
	Name: "dispatch",
}

var defaultRedis = Redis{
	Addr: "127.0.0.1:6379",
}

var defaultKafka = Kafka{
	Brokers:      nil, // kafka is optional in local runs
	StatusTopic:  "order-status-events",
	SignalsTopic: "dispatch-signals",
	NotifyTopic:  "courier-notifications",
	GroupID:      "service-dispatch-worker",
}

var defaultDispatch = Dispatch{
	ResponseWindow:     2 * time.Minute,
	StalenessThreshold: time.Minute,
	RedispatchBudget:   15 * time.Minute,
	ConfirmationWindow: 5 * time.Minute,
	SweepInterval:      10 * time.Second,
	SearchRadiusKm:     10,
	CandidateLimit:     16,
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       5, // heartbeats per second per courier ip
	Burst:      10,
	TTL:        10 * time.Minute,
	MaxBuckets: 100_000,
}

// DefaultPort returns the default port.
func DefaultPort() int {
	return defaultPort
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultRedis returns the default redis settings.
func DefaultRedis() Redis {
	return defaultRedis
}

// DefaultKafka returns the default kafka settings.
func DefaultKafka() Kafka {
	return defaultKafka
}

// DefaultDispatch returns the default dispatch engine settings.
func DefaultDispatch() Dispatch {
	return defaultDispatch
}

// DefaultRateLimit returns the default rate limit settings.
func DefaultRateLimit() RateLimit {
	return defaultRateLimit
}
