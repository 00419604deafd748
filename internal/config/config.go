package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"
)

const (
	StoreModeMemory = "memory"
	StoreModeScylla = "scylla"
)

// Config aggregates application configuration loaded from environment
// variables. STORE_MODE=memory runs everything in process (no Scylla, Mongo
// or Kafka needed), the mode the test suite and local development use.
type Config struct {
	Env      string
	HTTPAddr string

	StoreMode string

	MongoURI string
	MongoDB  string

	ScyllaHosts       []string
	ScyllaKeyspace    string
	ScyllaUsername    string
	ScyllaPassword    string
	ScyllaConsistency gocql.Consistency
	ScyllaTimeout     time.Duration
	ScyllaReplication int

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	SessionTTL  time.Duration
	CallTimeout time.Duration
}

// Load parses the current environment into a Config.
func Load() (Config, error) {
	cfg := Config{
		Env:            getEnv("APP_ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		StoreMode:      strings.ToLower(getEnv("STORE_MODE", StoreModeMemory)),
		MongoURI:       os.Getenv("MONGO_URI"),
		MongoDB:        getEnv("MONGO_DB", "filmtorget"),
		ScyllaHosts:    splitAndTrim(getEnv("SCYLLA_HOSTS", "localhost")),
		ScyllaKeyspace: strings.TrimSpace(getEnv("SCYLLA_KEYSPACE", "filmtorget_chat")),
		ScyllaUsername: strings.TrimSpace(os.Getenv("SCYLLA_USERNAME")),
		ScyllaPassword: strings.TrimSpace(os.Getenv("SCYLLA_PASSWORD")),
		ScyllaReplication: parseIntWithDefault(
			strings.TrimSpace(os.Getenv("SCYLLA_REPLICATION_FACTOR")), 1),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "chat.events.v1"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "filmtorget-chat"),
	}
	if cfg.StoreMode != StoreModeMemory && cfg.StoreMode != StoreModeScylla {
		return Config{}, fmt.Errorf("unsupported STORE_MODE: %s", cfg.StoreMode)
	}

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}

	scyllaTimeout, err := parseDuration("SCYLLA_TIMEOUT", "5s")
	if err != nil {
		return Config{}, err
	}
	cfg.ScyllaTimeout = scyllaTimeout

	consistency, err := parseConsistency(getEnv("SCYLLA_CONSISTENCY", "quorum"))
	if err != nil {
		return Config{}, err
	}
	cfg.ScyllaConsistency = consistency
	if cfg.ScyllaReplication < 1 {
		cfg.ScyllaReplication = 1
	}

	poll, err := parseDuration("OUTBOX_POLL_INTERVAL", "500ms")
	if err != nil {
		return Config{}, err
	}
	cfg.OutboxPollInterval = poll

	sessionTTL, err := parseDuration("SESSION_TTL", "168h")
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL = sessionTTL

	callTimeout, err := parseDuration("CALL_TIMEOUT", "5s")
	if err != nil {
		return Config{}, err
	}
	cfg.CallTimeout = callTimeout

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if cfg.StoreMode == StoreModeScylla {
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORE_MODE=scylla")
		}
		if len(cfg.KafkaBrokers) == 0 {
			return Config{}, fmt.Errorf("KAFKA_BROKERS is required when STORE_MODE=scylla")
		}
		if len(cfg.ScyllaHosts) == 0 {
			return Config{}, fmt.Errorf("SCYLLA_HOSTS is required when STORE_MODE=scylla")
		}
		if cfg.ScyllaKeyspace == "" {
			return Config{}, fmt.Errorf("SCYLLA_KEYSPACE is required when STORE_MODE=scylla")
		}
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func parseDuration(key, def string) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return dur, nil
}

func parseIntWithDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v == 0 {
		return def
	}
	return v
}

func parseConsistency(raw string) (gocql.Consistency, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "quorum":
		return gocql.Quorum, nil
	case "one":
		return gocql.One, nil
	case "local_quorum", "localquorum":
		return gocql.LocalQuorum, nil
	case "all":
		return gocql.All, nil
	default:
		return gocql.Quorum, fmt.Errorf("unsupported SCYLLA_CONSISTENCY: %s", raw)
	}
}
