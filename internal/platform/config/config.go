package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment variable name.
const Prefix = "AGEGATE_"

// Config is the process configuration. FromEnv fills it from AGEGATE_* variables.
type Config struct {
	Server   Server
	Policy   Policy
	Camera   Camera
	Document Document
	Events   Events
	Redis    RedisConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr      string `env:"ADDR" envDefault:":8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LaneID    string `env:"LANE_ID" envDefault:"lane-1"`
	// RetainFinished is how long a finished run stays readable.
	RetainFinished time.Duration `env:"RETAIN_FINISHED" envDefault:"2m"`
	// AdminToken guards the operator event log. Empty disables those routes.
	AdminToken string `env:"ADMIN_TOKEN"`
}

// Policy holds the verification policy values. When File is set the YAML file
// is used instead and the remaining fields are ignored.
type Policy struct {
	File                 string        `env:"POLICY_FILE"`
	LegalAge             int           `env:"LEGAL_AGE" envDefault:"20"`
	ConfidentAge         int           `env:"CONFIDENT_AGE" envDefault:"25"`
	SamplingInterval     time.Duration `env:"SAMPLING_INTERVAL" envDefault:"30ms"`
	SamplingTimeout      time.Duration `env:"SAMPLING_TIMEOUT" envDefault:"60s"`
	LookupTimeout        time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"5s"`
	AutoDecide           bool          `env:"AUTO_DECIDE" envDefault:"false"`
	MaxEstimatorFailures int           `env:"MAX_ESTIMATOR_FAILURES" envDefault:"10"`
}

// Camera selects the frame source and age estimator.
type Camera struct {
	Mode             string        `env:"CAMERA_MODE" envDefault:"scripted"`
	ScriptBrackets   []int         `env:"CAMERA_SCRIPT" envSeparator:"," envDefault:"4"`
	EstimatorURL     string        `env:"ESTIMATOR_URL"`
	EstimatorTimeout time.Duration `env:"ESTIMATOR_TIMEOUT" envDefault:"500ms"`
}

// Document selects the document registry backend.
type Document struct {
	Store       string        `env:"DOCUMENT_STORE" envDefault:"memory"`
	Latency     time.Duration `env:"DOCUMENT_LATENCY" envDefault:"1500ms"`
	PostgresDSN string        `env:"POSTGRES_DSN"`
	SeedFixture bool          `env:"DOCUMENT_SEED" envDefault:"true"`
}

// Events configures the event log and Kafka forwarding.
type Events struct {
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"agegate.verifications"`
	Buffer       int      `env:"EVENT_BUFFER" envDefault:"256"`
	HashKey      string   `env:"CARD_HASH_KEY" envDefault:"dev-card-hash-key"`
	Persist      bool     `env:"EVENT_PERSIST" envDefault:"false"`
}

// RedisConfig configures the optional Redis connection.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"2s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"1s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"1s"`
}

// FromEnv builds the config from the environment so main stays lean.
// A .env file in the working directory is loaded first when present.
func FromEnv() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
	return Parse(env.Options{Prefix: Prefix})
}

// Parse reads the config with explicit options. Tests pass Environment.
func Parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements of the backends.
func (c Config) Validate() error {
	switch c.Camera.Mode {
	case "scripted":
	case "remote":
		if c.Camera.EstimatorURL == "" {
			return fmt.Errorf("config: %sESTIMATOR_URL is required for remote camera mode", Prefix)
		}
	default:
		return fmt.Errorf("config: unknown camera mode %q", c.Camera.Mode)
	}
	for _, b := range c.Camera.ScriptBrackets {
		if b < -1 || b > 7 {
			return fmt.Errorf("config: camera script bracket %d out of range", b)
		}
	}

	switch c.Document.Store {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("config: %sREDIS_URL is required for the redis document store", Prefix)
		}
	case "postgres":
		if c.Document.PostgresDSN == "" {
			return fmt.Errorf("config: %sPOSTGRES_DSN is required for the postgres document store", Prefix)
		}
	default:
		return fmt.Errorf("config: unknown document store %q", c.Document.Store)
	}

	if c.Events.Persist && c.Document.PostgresDSN == "" {
		return fmt.Errorf("config: %sPOSTGRES_DSN is required to persist events", Prefix)
	}
	return nil
}
