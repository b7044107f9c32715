package internal

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	StoreBadger = "badger"
	StoreSQLite = "sqlite"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=12345"`
	StoreDriver          string        `env:"STORE_DRIVER,default=badger"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,default=./data/badger"`
	SQLiteFilepath       string        `env:"SQLITE_FILEPATH,default=./data/chat-relay.db"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	MaxFrameSize         uint32        `env:"MAX_FRAME_SIZE,default=1048576"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=100"`
	MaxConnections       int           `env:"MAX_CONNECTIONS,default=0"`
	ReadIdleTimeout      time.Duration `env:"READ_IDLE_TIMEOUT,default=0s"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL,default=15s"`
	AdminPort            int           `env:"ADMIN_PORT,default=0"`
	HealthPort           int           `env:"HEALTH_PORT,default=0"`
	CensoredWordsDir     string        `env:"CENSORED_WORDS_DIR"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
}

// LoadConfig reads an optional .env file then the process environment.
func LoadConfig() (Config, error) {
	// A missing .env file is fine, real deployments use the environment.
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreBadger, StoreSQLite:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreBadger, StoreSQLite, c.StoreDriver)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.MaxFrameSize == 0 {
		return fmt.Errorf("MAX_FRAME_SIZE must be positive")
	}
	if c.ConnectionBufferSize <= 0 {
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("MAX_CONNECTIONS must not be negative, got %d", c.MaxConnections)
	}
	if c.CensoredWordsDir != "" {
		if _, err := CharacterRune(c.CharReplacement); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// AdminAddress is empty when the admin HTTP server is disabled.
func (c Config) AdminAddress() string {
	if c.AdminPort == 0 {
		return ""
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.AdminPort))
}

// HealthAddress is empty when the gRPC health server is disabled.
func (c Config) HealthAddress() string {
	if c.HealthPort == 0 {
		return ""
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.HealthPort))
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
