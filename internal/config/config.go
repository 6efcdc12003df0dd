package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; defaults are applied for everything except the
// JWT secret.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"development"` // application environment (development/production)
	Port string `env:"APP_PORT" envDefault:"8080"`       // HTTP port to listen on

	DB DBConfig

	JWTSecret string `env:"JWT_SECRET,required,notEmpty"` // secret used to verify access tokens

	SweepSchedule string `env:"SWEEP_SCHEDULE" envDefault:"@every 5m"` // cron schedule for the expiration sweeper

	RabbitMQURL   string `env:"RABBITMQ_URL"`                                        // empty disables the broker
	NotifyQueue   string `env:"NOTIFY_QUEUE" envDefault:"booking.confirmed"`         // queue for confirmation events
	NotifyLogPath string `env:"NOTIFY_LOG_PATH" envDefault:"logs/notifications.log"` // consumer output

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`          // empty disables tracing
	ServiceName  string `env:"SERVICE_NAME" envDefault:"pool-booking"` // resource name reported to the collector
}

// DBConfig selects and parameterises the relational store.
type DBConfig struct {
	Driver     string `env:"DB_DRIVER" envDefault:"mysql"` // mysql or sqlite
	User       string `env:"DB_USER"`
	Pass       string `env:"DB_PASS"`
	Host       string `env:"DB_HOST"`
	Port       string `env:"DB_PORT" envDefault:"3306"`
	Name       string `env:"DB_NAME"`
	SQLitePath string `env:"DB_SQLITE_PATH" envDefault:"data/pool.db"`
}

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Load reads an optional .env file and then parses the environment into a
// Config.  A missing .env file is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c Config) Validate() error {
	switch c.DB.Driver {
	case DriverMySQL:
		var missing []string
		if c.DB.User == "" {
			missing = append(missing, "DB_USER")
		}
		if c.DB.Host == "" {
			missing = append(missing, "DB_HOST")
		}
		if c.DB.Name == "" {
			missing = append(missing, "DB_NAME")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required env vars for mysql: %s", strings.Join(missing, ", "))
		}
	case DriverSQLite:
		if strings.TrimSpace(c.DB.SQLitePath) == "" {
			return errors.New("DB_SQLITE_PATH is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool { return c.Env == "production" }
