package config

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type Config struct {
	AppName                       string        `env:"APP_NAME" envDefault:"fern-registry"`
	Version                       string        `env:"APP_VERSION" envDefault:"dev"`
	Port                          int           `env:"PORT" envDefault:"8000"`
	LogLevel                      string        `env:"LOG_LEVEL" envDefault:"info"`
	PrettyLogs                    bool          `env:"PRETTY_LOGS" envDefault:"false"`
	APIBase                       string        `env:"API_BASE" envDefault:"/api/v1"`
	Debugging                     bool          `env:"REGISTRY_DEBUGGING" envDefault:"false"`
	HttpServerWriteTimeoutSeconds int           `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" envDefault:"10"`
	HttpServerReadTimeoutSeconds  int           `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" envDefault:"10"`
	HttpServerIdleTimeoutSeconds  int           `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" envDefault:"10"`
	ShutdownTimeout               time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowOrigins                  []string      `env:"HTTP_SERVER_ALLOW_ORIGINS" envDefault:"*"`
	StartupMaxAttempts            int           `env:"STARTUP_MAX_ATTEMPTS" envDefault:"5"`
	StartupBackoffUnit            time.Duration `env:"STARTUP_BACKOFF_UNIT" envDefault:"1s"`
	SeedGlobalProject             bool          `env:"SEED_GLOBAL_PROJECT" envDefault:"false"`

	// Registry store. DB_CONNECTION_STRING wins over the individual postgres fields.
	DatabaseDriver                string        `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseConnectionString      string        `env:"DB_CONNECTION_STRING" envDefault:""`
	DatabaseHost                  string        `env:"DB_HOST" envDefault:"localhost"`
	DatabasePort                  int           `env:"DB_PORT" envDefault:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" envDefault:""`
	DatabasePassword              string        `env:"DB_PASSWORD" envDefault:""`
	DatabaseName                  string        `env:"DB_NAME" envDefault:"fern"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" envDefault:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"10s"`
	DatabaseReadRetries           int           `env:"DB_READ_RETRIES" envDefault:"3"`
	DatabaseReadRetryDelay        time.Duration `env:"DB_READ_RETRY_DELAY" envDefault:"1s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" envDefault:"db/pg"`
	DatabaseMigrationVersion      uint          `env:"DB_MIGRATION_VERSION" envDefault:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" envDefault:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" envDefault:"true"`

	// Tracing
	TracingEnabled  bool          `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint string        `env:"TRACING_ENDPOINT" envDefault:"localhost:4317"`
	TracingProtocol string        `env:"TRACING_PROTOCOL" envDefault:"grpc"`
	TracingInsecure bool          `env:"TRACING_INSECURE" envDefault:"true"`
	TracingTimeout  time.Duration `env:"TRACING_TIMEOUT" envDefault:"5s"`

	// Redis creation lock
	LockEnabled   bool          `env:"LOCK_ENABLED" envDefault:"false"`
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	LockKeyPrefix string        `env:"LOCK_KEY_PREFIX" envDefault:"fern:lock:"`
	LockTTL       time.Duration `env:"LOCK_TTL" envDefault:"10s"`
	LockWait      time.Duration `env:"LOCK_WAIT" envDefault:"5s"`

	// Kafka change events
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" envDefault:"registry-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" envDefault:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" envDefault:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" envDefault:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" envDefault:"snappy"`

	// Graph mirror (Memgraph or Neo4j)
	GraphEnabled    bool   `env:"GRAPH_ENABLED" envDefault:"false"`
	GraphDBHost     string `env:"GRAPH_DB_HOST" envDefault:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" envDefault:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" envDefault:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" envDefault:""`

	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsPath    string `env:"METRICS_PATH" envDefault:"/metrics"`
}

// Load reads the given .env files, when present, and parses the environment.
// Variables already set in the environment win over the files.
func Load(files ...string) (*Config, error) {
	for _, file := range files {
		_ = godotenv.Load(file)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if _, err := database.ParseDialect(cfg.DatabaseDriver); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DatabaseConfig builds the store settings. SQLite without a connection string
// runs in memory.
func (c *Config) DatabaseConfig() (database.Config, error) {
	dialect, err := database.ParseDialect(c.DatabaseDriver)
	if err != nil {
		return database.Config{}, err
	}

	dsn := c.DatabaseConnectionString
	if dsn == "" {
		switch dialect {
		case database.DialectSQLite:
			dsn = ":memory:"
		default:
			u := url.URL{
				Scheme:   "postgres",
				User:     url.UserPassword(c.DatabaseUserName, c.DatabasePassword),
				Host:     c.DatabaseHost + ":" + strconv.Itoa(c.DatabasePort),
				Path:     c.DatabaseName,
				RawQuery: "sslmode=" + c.DatabaseSSLMode,
			}
			dsn = u.String()
		}
	}

	return database.Config{
		Dialect:         dialect,
		DSN:             dsn,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
		ReadRetries:     c.DatabaseReadRetries,
		ReadRetryDelay:  c.DatabaseReadRetryDelay,
	}, nil
}

func (c *Config) MigrationConfig() *database.MigrationConfig {
	return &database.MigrationConfig{
		MigrationFolderPath: c.DatabaseMigrationFolderPath,
		Version:             c.DatabaseMigrationVersion,
		Force:               c.DatabaseMigrationForce,
		AutoRollback:        c.DatabaseMigrationAutoRollback,
	}
}

func (c *Config) TracingConfig() tracing.ExporterConfig {
	return tracing.ExporterConfig{
		ServiceName: c.AppName,
		Endpoint:    c.TracingEndpoint,
		Protocol:    c.TracingProtocol,
		Insecure:    c.TracingInsecure,
		Timeout:     c.TracingTimeout,
	}
}

func (c *Config) RedisConfig() redis.Config {
	return redis.Config{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c *Config) KafkaConfig() kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:      c.KafkaBrokers,
		Topic:        c.KafkaOutputTopic,
		BatchSize:    c.KafkaBatchSize,
		BatchTimeout: time.Duration(c.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: c.KafkaRequiredAcks,
		Compression:  c.KafkaCompression,
	}
}

func (c *Config) GraphConfig() graph.Config {
	return graph.Config{
		Host:     c.GraphDBHost,
		Port:     c.GraphDBPort,
		Username: c.GraphDBUser,
		Password: c.GraphDBPassword,
	}
}
