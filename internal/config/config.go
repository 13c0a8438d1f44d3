// Package config содержит логику чтения конфигурации сервиса заказа еды и его клиента.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

const defaultRunAddress = "localhost:8080"

// Config содержит параметры конфигурации HTTP-сервера.
type Config struct {
	RunAddress              string   `env:"RUN_ADDRESS"`
	DatabaseURI             string   `env:"DATABASE_URI"`
	MongoDatabase           string   `env:"MONGO_DATABASE" envDefault:"foodorder"`
	RedisAddress            string   `env:"REDIS_ADDRESS"`
	JWTSecret               string   `env:"JWT_SECRET"`
	CORSAllowedOrigins      []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	StrictStatusTransitions bool     `env:"STRICT_STATUS_TRANSITIONS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRedisAddress := cfg.RedisAddress
	envJWTSecret := cfg.JWTSecret

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI (postgres:// or mongodb://)")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for menu cache")
	flag.StringVar(&cfg.JWTSecret, "s", "", "secret for signing access tokens")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}
	if envJWTSecret != "" {
		cfg.JWTSecret = envJWTSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI is required")
	}

	return cfg, nil
}

// ClientConfig содержит параметры консольного клиента.
type ClientConfig struct {
	APIAddress       string `env:"FOODCLI_API_ADDRESS" envDefault:"http://localhost:8080"`
	CartFile         string `env:"FOODCLI_CART_FILE"`
	CartRedisAddress string `env:"FOODCLI_CART_REDIS_ADDRESS"`
	SessionFile      string `env:"FOODCLI_SESSION_FILE"`
	Verbose          bool   `env:"FOODCLI_VERBOSE"`
}

// ParseClient считывает конфигурацию клиента из переменных окружения.
// Пути к файлам по умолчанию лежат в пользовательском каталоге конфигурации.
func ParseClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.CartFile == "" || cfg.SessionFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		dir = filepath.Join(dir, "foodcli")
		if cfg.CartFile == "" {
			cfg.CartFile = filepath.Join(dir, "cartItems.json")
		}
		if cfg.SessionFile == "" {
			cfg.SessionFile = filepath.Join(dir, "session.json")
		}
	}

	return cfg, nil
}
