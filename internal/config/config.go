// Package config is process bootstrap configuration, sourced entirely
// from the environment. It is distinct from queue.Config, which
// parameterizes a single Queue[T] instance rather than the process as
// a whole.
package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-sourced bootstrap configuration shared by
// cmd/worker and cmd/migrate.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"development"`

	AdminAddr string `env:"ADMIN_ADDR,notEmpty" envDefault:":8080"`

	RedisAddr     string `env:"REDIS_ADDR,notEmpty"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	EventLogDSN string `env:"EVENT_LOG_DSN"`

	// WorkerQueues is parsed from WORKER_QUEUES. cmd/worker does not
	// read it: it always services the single queue named "jobs".
	WorkerQueues []string `env:"WORKER_QUEUES" envSeparator:","`

	DequeueTimeout            time.Duration `env:"DEQUEUE_TIMEOUT" envDefault:"30s"`
	WorkItemTimeout           time.Duration `env:"WORK_ITEM_TIMEOUT" envDefault:"10m"`
	Retries                   int           `env:"RETRIES" envDefault:"2"`
	RetryDelay                time.Duration `env:"RETRY_DELAY" envDefault:"60s"`
	MaintenanceAcquireTimeout time.Duration `env:"MAINTENANCE_ACQUIRE_TIMEOUT" envDefault:"30s"`
}

// Load parses Config from the environment, exiting the process on a
// validation failure the way the rest of this codebase's entry points
// do at startup.
func Load() Config {
	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal(err)
	}
	return c
}
