package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig          `envPrefix:"APP_"`
	Server       ServerConfig       `envPrefix:"SERVER_"`
	Log          LogConfig          `envPrefix:"LOG_"`
	Database     DatabaseConfig     `envPrefix:"DATABASE_"`
	Auth         AuthConfig         `envPrefix:"AUTH_"`
	JWT          JWTConfig          `envPrefix:"JWT_"`
	RefreshToken RefreshTokenConfig `envPrefix:"REFRESH_TOKEN_"`
	Guard        GuardConfig        `envPrefix:"GUARD_"`
	RateLimit    RateLimitConfig    `envPrefix:"RATE_LIMIT_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"authcore"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Host           string   `env:"HOST" envDefault:"localhost"`
	Port           string   `env:"PORT" envDefault:"8080"`
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"authcore.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type AuthConfig struct {
	MinLength      int  `env:"MIN_LENGTH" envDefault:"8"`
	RequireUpper   bool `env:"REQUIRE_UPPER" envDefault:"true"`
	RequireLower   bool `env:"REQUIRE_LOWER" envDefault:"true"`
	RequireNumber  bool `env:"REQUIRE_NUMBER" envDefault:"true"`
	RequireSpecial bool `env:"REQUIRE_SPECIAL" envDefault:"false"`
	BcryptCost     int  `env:"BCRYPT_COST" envDefault:"10"`
}

type JWTConfig struct {
	SecretKey    string        `env:"SECRET_KEY"`
	Issuer       string        `env:"ISSUER" envDefault:"authcore"`
	Algorithm    string        `env:"ALGORITHM" envDefault:"HS256"`
	AccessExpiry time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
}

type RefreshTokenConfig struct {
	// Secret is the server-side key used to HMAC refresh secrets before
	// storage. Raw secrets are never persisted.
	Secret       string        `env:"SECRET"`
	Expiry       time.Duration `env:"EXPIRY" envDefault:"720h"`
	SecretLength int           `env:"SECRET_LENGTH" envDefault:"32"`
}

type GuardConfig struct {
	// RotationSkew absorbs clock drift when comparing an access token's
	// issue time to the session's last rotation time.
	RotationSkew   time.Duration `env:"ROTATION_SKEW" envDefault:"5s"`
	PlatformHeader string        `env:"PLATFORM_HEADER" envDefault:"X-Client-Platform"`
}

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type RateLimitConfig struct {
	Enabled     bool          `env:"ENABLED" envDefault:"true"`
	Store       string        `env:"STORE" envDefault:"memory"`
	LoginRate   int           `env:"LOGIN_RATE" envDefault:"10"`
	LoginPeriod time.Duration `env:"LOGIN_PERIOD" envDefault:"1m"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}

func (c *Config) Validate() error {
	if err := c.JWT.Validate(); err != nil {
		return err
	}
	return c.RefreshToken.Validate()
}

func (c *JWTConfig) Validate() error {
	if len(c.SecretKey) < 32 {
		return fmt.Errorf("JWT secret key must be at least 32 characters, got %d", len(c.SecretKey))
	}
	if c.Algorithm != "HS256" {
		return fmt.Errorf("unsupported JWT algorithm: %s (supported: HS256)", c.Algorithm)
	}
	if c.AccessExpiry <= 0 {
		return fmt.Errorf("JWT access expiry must be positive")
	}
	return nil
}

func (c *RefreshTokenConfig) Validate() error {
	if len(c.Secret) < 32 {
		return fmt.Errorf("refresh token secret must be at least 32 characters, got %d", len(c.Secret))
	}
	if c.SecretLength < 32 {
		return fmt.Errorf("refresh secret length must be at least 32 bytes, got %d", c.SecretLength)
	}
	if c.Expiry <= 0 {
		return fmt.Errorf("refresh token expiry must be positive")
	}
	return nil
}
