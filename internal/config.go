package internal

import (
	"time"

	"golang.org/x/time/rate"
)

// Config of the chat server, read from the environment.
type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=2s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	SendRate             float64       `env:"SEND_RATE,default=0"`
	SendBurst            int           `env:"SEND_BURST,default=5"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL,default=30s"`
	MetricsPort          int           `env:"METRICS_PORT,default=0"`
	DebugPort            int           `env:"DEBUG_PORT,default=0"`
	SeedDemo             bool          `env:"SEED_DEMO,default=false"`
}

// Limit is the per-connection send rate, zero when unlimited.
func (c Config) Limit() rate.Limit {
	if c.SendRate <= 0 {
		return 0
	}
	return rate.Limit(c.SendRate)
}
