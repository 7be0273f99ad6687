package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"github.com/rl1809/vending-machine/internal/core/domain"
)

const (
	ArchiveNone  = "none"
	ArchiveMySQL = "mysql"
	ArchiveMongo = "mongo"
)

type Config struct {
	Server    ServerConfig
	Machine   MachineConfig
	Archive   ArchiveConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

type ServerConfig struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr        string        `env:"GRPC_ADDR" envDefault:":50051"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

type MachineConfig struct {
	ID            string `env:"MACHINE_ID" envDefault:"vending-1"`
	CatalogFile   string `env:"CATALOG_FILE"`
	Denominations string `env:"ACCEPTED_DENOMINATIONS" envDefault:"0.25,0.50,1.00,2.00"`
}

type ArchiveConfig struct {
	Driver    string `env:"ARCHIVE_DRIVER" envDefault:"none"`
	MySQLDSN  string `env:"MYSQL_DSN"`
	MongoURI  string `env:"MONGODB_URI"`
	MongoDB   string `env:"MONGODB_DB_NAME" envDefault:"vending"`
	Workers   int    `env:"ARCHIVE_WORKERS" envDefault:"2"`
	QueueSize int    `env:"ARCHIVE_QUEUE_SIZE" envDefault:"1024"`
}

// RedisConfig enables the stock mirror and request idempotency when Addr is set.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type SchedulerConfig struct {
	StockSyncSchedule string `env:"STOCK_SYNC_SCHEDULE" envDefault:"@every 1m"`
}

// Load reads an optional env file, then the environment, and validates the
// result. A missing envFile is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.HTTPAddr == "" {
		return errors.New("HTTP_ADDR must be provided")
	}
	if c.Machine.ID == "" {
		return errors.New("MACHINE_ID must be provided")
	}
	if _, err := c.AcceptedDenominations(); err != nil {
		return err
	}

	switch c.Archive.Driver {
	case ArchiveNone:
	case ArchiveMySQL:
		if c.Archive.MySQLDSN == "" {
			return errors.New("MYSQL_DSN must be provided when ARCHIVE_DRIVER=mysql")
		}
		dsn, err := mysql.ParseDSN(c.Archive.MySQLDSN)
		if err != nil {
			return fmt.Errorf("MYSQL_DSN: %w", err)
		}
		// created_at is scanned into time.Time
		dsn.ParseTime = true
		c.Archive.MySQLDSN = dsn.FormatDSN()
	case ArchiveMongo:
		if c.Archive.MongoURI == "" {
			return errors.New("MONGODB_URI must be provided when ARCHIVE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unknown ARCHIVE_DRIVER %q", c.Archive.Driver)
	}

	if c.Archive.Workers <= 0 {
		return errors.New("ARCHIVE_WORKERS must be positive")
	}
	if c.Archive.QueueSize <= 0 {
		return errors.New("ARCHIVE_QUEUE_SIZE must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// AcceptedDenominations parses ACCEPTED_DENOMINATIONS.
func (c *Config) AcceptedDenominations() ([]domain.Money, error) {
	var out []domain.Money
	for _, part := range strings.Split(c.Machine.Denominations, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m, err := domain.ParseMoney(part)
		if err != nil {
			return nil, fmt.Errorf("ACCEPTED_DENOMINATIONS: %w", err)
		}
		if m <= 0 {
			return nil, fmt.Errorf("ACCEPTED_DENOMINATIONS: %s is not positive", part)
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, errors.New("ACCEPTED_DENOMINATIONS must list at least one amount")
	}
	return out, nil
}
