package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EventSourceDirect = "direct"
	EventSourceKafka  = "kafka"

	// KafkaRoleIngest replicas subscribe to the chain and publish to Kafka.
	KafkaRoleIngest = "ingest"
	// KafkaRoleConsumer replicas only read the topic.
	KafkaRoleConsumer = "consumer"
)

// Config holds all app configuration
type Config struct {
	Env string

	// Server
	HTTPPort string

	// Chain
	RPCURL            string
	CurveAddress      string
	ChainPollInterval time.Duration
	ChainReadTimeout  time.Duration

	// Aggregator
	TradeRetention  int
	EventBufferSize int
	EventSource     string

	// Redis
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	SnapshotInterval time.Duration
	SnapshotTTL      time.Duration

	// ClickHouse
	ClickhouseAddr     string
	ClickhouseDatabase string
	ClickhouseUsername string
	ClickhousePassword string
	ClickhouseTimeout  int
	WarmStart          bool

	// Kafka
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaConsumerGroup string // prefix; each replica appends its own suffix
	KafkaRole          string
	KafkaBatchSize     int
	KafkaBatchTimeout  int // milliseconds

	Demo bool
}

// LoadConfig loads configuration from environment variables, with optional .env file.
// A missing .env is not an error.
func LoadConfig(envFiles ...string) *Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	return &Config{
		Env:      getEnv("ENV", "local"),
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		RPCURL:            getEnv("RPC_URL", "http://localhost:8545"),
		CurveAddress:      getEnv("CURVE_ADDRESS", ""),
		ChainPollInterval: getEnvAsDuration("CHAIN_POLL_INTERVAL", 5*time.Second),
		ChainReadTimeout:  getEnvAsDuration("CHAIN_READ_TIMEOUT", 10*time.Second),

		TradeRetention:  getEnvAsInt("TRADE_RETENTION", 1000),
		EventBufferSize: getEnvAsInt("EVENT_BUFFER_SIZE", 1024),
		EventSource:     strings.ToLower(getEnv("EVENT_SOURCE", EventSourceDirect)),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvAsInt("REDIS_DB", 0),
		SnapshotInterval: getEnvAsDuration("SNAPSHOT_INTERVAL", 10*time.Second),
		SnapshotTTL:      getEnvAsDuration("SNAPSHOT_TTL", time.Minute),

		ClickhouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickhouseDatabase: getEnv("CLICKHOUSE_DATABASE", "default"),
		ClickhouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickhousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		ClickhouseTimeout:  getEnvAsInt("CLICKHOUSE_TIMEOUT", 10),
		WarmStart:          getEnvAsBool("WARM_START", false),

		KafkaBrokers:       getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}, ","),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "curve-events"),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "curvestat-group"),
		KafkaRole:          strings.ToLower(getEnv("KAFKA_ROLE", KafkaRoleIngest)),
		KafkaBatchSize:     getEnvAsInt("KAFKA_BATCH_SIZE", 100),
		KafkaBatchTimeout:  getEnvAsInt("KAFKA_BATCH_TIMEOUT", 1000),

		Demo: getEnvAsBool("DEMO", false),
	}
}

// Validate reports the first setting that would make the service misbehave. A malformed
// CURVE_ADDRESS is not one of them: the service still starts and serves empty stats.
func (c *Config) Validate() error {
	if c.TradeRetention <= 0 {
		return errors.New("config: TRADE_RETENTION must be positive")
	}
	if c.EventBufferSize <= 0 {
		return errors.New("config: EVENT_BUFFER_SIZE must be positive")
	}
	if c.EventSource != EventSourceDirect && c.EventSource != EventSourceKafka {
		return fmt.Errorf("config: unknown EVENT_SOURCE %q", c.EventSource)
	}
	if c.EventSource == EventSourceKafka && c.KafkaRole != KafkaRoleIngest && c.KafkaRole != KafkaRoleConsumer {
		return fmt.Errorf("config: unknown KAFKA_ROLE %q", c.KafkaRole)
	}
	if c.ChainPollInterval <= 0 {
		return errors.New("config: CHAIN_POLL_INTERVAL must be positive")
	}
	return nil
}

// Helper functions for parsing environment variables
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := getEnv(key, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valStr := getEnv(key, "")
	if val, err := time.ParseDuration(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	return strings.Split(valStr, sep)
}
