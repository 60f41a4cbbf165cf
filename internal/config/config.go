// Package config loads the control plane's configuration from environment
// variables, applying a default for each one that is unset. Integer
// tunables (ConfiguredInt) also record their env var name and whether the
// operator overrode them; string settings are plain values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfiguredInt is an integer optionally overridden by an environment variable.
type ConfiguredInt struct {
	Value           int
	IsUserSpecified bool
	EnvVarName      string
}

func intFromEnv(envVar string, def int) ConfiguredInt {
	if raw := os.Getenv(envVar); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return ConfiguredInt{Value: v, IsUserSpecified: true, EnvVarName: envVar}
		}
	}
	return ConfiguredInt{Value: def, EnvVarName: envVar}
}

func (c ConfiguredInt) Description() string {
	if c.IsUserSpecified {
		return fmt.Sprintf("%d (from %s)", c.Value, c.EnvVarName)
	}
	return fmt.Sprintf("%d (default; override with %s)", c.Value, c.EnvVarName)
}

func stringFromEnv(envVar, def string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return def
}

// WorkerCapacity sizes the worker cluster the admission engine schedules
// against.
type WorkerCapacity struct {
	TotalInstances        ConfiguredInt
	MaxThreadsPerInstance ConfiguredInt
}

// UserResourceLimit bounds what one user may consume inside the sliding
// quota window.
type UserResourceLimit struct {
	TimeWindowSeconds   ConfiguredInt
	MaxThreadsPerWindow ConfiguredInt
	MaxJobsPerWindow    ConfiguredInt
}

func (u UserResourceLimit) Window() time.Duration {
	return time.Duration(u.TimeWindowSeconds.Value) * time.Second
}

// Config is the full configuration surface of the control plane.
type Config struct {
	Worker            WorkerCapacity
	UserLimit         UserResourceLimit
	DispatchTick      time.Duration
	StatsCleanupEvery time.Duration

	KafkaBrokers       []string
	KafkaTopic         string
	KafkaConsumerGroup string
	KafkaPartitions    int

	RedisAddr string

	PostgresDSN string

	HTTPAddr string
}

// Load reads the full configuration surface from the process environment,
// applying defaults wherever a variable is unset.
func Load() Config {
	dispatchMs := intFromEnv("CRAWLCTL_DISPATCH_TICK_MS", 2000)
	statsMs := intFromEnv("CRAWLCTL_STATS_CLEANUP_MS", 300000)

	return Config{
		Worker: WorkerCapacity{
			TotalInstances:        intFromEnv("CRAWLER_WORKER_TOTAL_INSTANCES", 1),
			MaxThreadsPerInstance: intFromEnv("CRAWLER_WORKER_MAX_THREADS_PER_INSTANCE", 10),
		},
		UserLimit: UserResourceLimit{
			TimeWindowSeconds:   intFromEnv("CRAWLER_USER_LIMIT_WINDOW_SECONDS", 3600),
			MaxThreadsPerWindow: intFromEnv("CRAWLER_USER_LIMIT_MAX_THREADS", 50),
			MaxJobsPerWindow:    intFromEnv("CRAWLER_USER_LIMIT_MAX_JOBS", 10),
		},
		DispatchTick:      time.Duration(dispatchMs.Value) * time.Millisecond,
		StatsCleanupEvery: time.Duration(statsMs.Value) * time.Millisecond,

		KafkaBrokers:       splitCSV(stringFromEnv("CRAWLCTL_KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         stringFromEnv("CRAWLCTL_KAFKA_TOPIC", "crawl-jobs"),
		KafkaConsumerGroup: stringFromEnv("CRAWLCTL_KAFKA_GROUP", "crawlctl-ape"),
		KafkaPartitions:    intFromEnv("CRAWLCTL_KAFKA_PARTITIONS", 3).Value,

		RedisAddr: stringFromEnv("CRAWLCTL_REDIS_ADDR", "localhost:6379"),

		PostgresDSN: stringFromEnv("CRAWLCTL_POSTGRES_DSN", "postgres://localhost:5432/crawlctl"),

		HTTPAddr: stringFromEnv("CRAWLCTL_HTTP_ADDR", ":8080"),
	}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
