package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser  string
	DBPass  string
	DBHost  string
	DBPort  string
	DBName  string
	SSLMode string

	RedisHost string
	RedisPort string

	NatsHost string
	NatsPort string

	ApiPort string
}

// New loads configuration from the environment (a .env file is honored when
// present). Postgres and Redis are required; NATS is optional — with no
// WINGO_NATS_HOST the service runs HTTP-only and publishes nothing.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:    os.Getenv("WINGO_POSTGRES_USER"),
		DBPass:    os.Getenv("WINGO_POSTGRES_PASSWORD"),
		DBHost:    os.Getenv("WINGO_POSTGRES_HOST"),
		DBPort:    getEnv("WINGO_POSTGRES_PORT", "5432"),
		DBName:    os.Getenv("WINGO_POSTGRES_DB"),
		SSLMode:   getEnv("WINGO_POSTGRES_SSLMODE", "disable"),
		RedisHost: os.Getenv("WINGO_REDIS_HOST"),
		RedisPort: getEnv("WINGO_REDIS_PORT", "6379"),
		NatsHost:  os.Getenv("WINGO_NATS_HOST"),
		NatsPort:  getEnv("WINGO_NATS_PORT", "4222"),
		ApiPort:   getEnv("WINGO_API_PORT", "8080"),
	}

	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("missing required env for database: WINGO_POSTGRES_USER/HOST/DB")
	}
	if cfg.RedisHost == "" {
		return nil, fmt.Errorf("missing required env: WINGO_REDIS_HOST")
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsAddr() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

func (c *Config) NatsEnabled() bool {
	return c.NatsHost != ""
}

func (c *Config) ApiAddr() string {
	return ":" + c.ApiPort
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
