package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Config holds everything the server needs at construction time.
type Config struct {
	AppPort     string
	Environment string
	Database    DatabaseConfig
	Auth        AuthConfig
	Inventory   InventoryConfig
	CORS        CORSConfig
	RabbitMQ    RabbitMQConfig
}

// DatabaseConfig selects the gorm dialector and its DSN.
type DatabaseConfig struct {
	Driver   string // sqlite, postgres or mysql
	DSN      string
	LogLevel string // silent, error, warn or info
}

// AuthConfig holds the token signing and password hashing settings.
type AuthConfig struct {
	JWTSecret       string
	TokenLifetime   time.Duration
	BcryptCost      int
	GeneratedSecret bool // true when JWTSecret was generated for this process
}

// InventoryConfig holds the query and aggregation limits.
type InventoryConfig struct {
	LowStockThreshold int
	DefaultPageSize   int
	MaxPageSize       int
}

type CORSConfig struct {
	AllowOrigins string
}

// RabbitMQConfig holds broker details. An empty URL disables event publishing.
type RabbitMQConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// New returns a viper instance with every default registered and
// environment variables bound.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "erp.db")
	v.SetDefault("DB_LOG_LEVEL", "warn")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_LIFETIME_MINUTES", 30)
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	v.SetDefault("LOW_STOCK_THRESHOLD", 10)
	v.SetDefault("DEFAULT_PAGE_SIZE", 100)
	v.SetDefault("MAX_PAGE_SIZE", 100)
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "inventory")
	v.SetDefault("RABBITMQ_QUEUE", "inventory_events")
	v.AutomaticEnv()
	return v
}

// Load reads the configuration from v. A config file is read when
// configFile is non-empty. In development a .env file in the working
// directory is loaded first if present.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if env := os.Getenv("ENVIRONMENT"); env == "" || strings.EqualFold(env, "development") {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Printf("Could not load .env file: %v", err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		AppPort:     v.GetString("APP_PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:      v.GetString("DATABASE_DSN"),
			LogLevel: strings.ToLower(v.GetString("DB_LOG_LEVEL")),
		},
		Auth: AuthConfig{
			JWTSecret:     v.GetString("JWT_SECRET"),
			TokenLifetime: time.Duration(v.GetInt("TOKEN_LIFETIME_MINUTES")) * time.Minute,
			BcryptCost:    v.GetInt("BCRYPT_COST"),
		},
		Inventory: InventoryConfig{
			LowStockThreshold: v.GetInt("LOW_STOCK_THRESHOLD"),
			DefaultPageSize:   v.GetInt("DEFAULT_PAGE_SIZE"),
			MaxPageSize:       v.GetInt("MAX_PAGE_SIZE"),
		},
		CORS: CORSConfig{
			AllowOrigins: v.GetString("CORS_ALLOW_ORIGINS"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("RABBITMQ_URL"),
			Exchange: v.GetString("RABBITMQ_EXCHANGE"),
			Queue:    v.GetString("RABBITMQ_QUEUE"),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		secret, err := generateSecret(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.Auth.JWTSecret = secret
		cfg.Auth.GeneratedSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that would otherwise surface as confusing
// runtime behaviour.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Auth.TokenLifetime <= 0 {
		return fmt.Errorf("TOKEN_LIFETIME_MINUTES must be positive")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Inventory.LowStockThreshold <= 0 {
		return fmt.Errorf("LOW_STOCK_THRESHOLD must be positive")
	}
	if c.Inventory.MaxPageSize <= 0 || c.Inventory.DefaultPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive")
	}
	if c.Inventory.DefaultPageSize > c.Inventory.MaxPageSize {
		c.Inventory.DefaultPageSize = c.Inventory.MaxPageSize
	}
	return nil
}

func generateSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
