// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`
	DBPath     string `mapstructure:"DB_PATH"`

	RedisURL string `mapstructure:"REDIS_URL"`

	// Identity provider (Cognito user pool).
	CognitoRegion     string        `mapstructure:"COGNITO_REGION"`
	CognitoUserPoolID string        `mapstructure:"COGNITO_USER_POOL_ID"`
	CognitoClientID   string        `mapstructure:"COGNITO_CLIENT_ID"`
	AuthIssuer        string        `mapstructure:"AUTH_ISSUER"`
	TrustedIssuers    string        `mapstructure:"AUTH_TRUSTED_ISSUERS"`
	JWKSCacheTTL      time.Duration `mapstructure:"AUTH_JWKS_CACHE_TTL"`
	JWKSFetchTimeout  time.Duration `mapstructure:"AUTH_JWKS_FETCH_TIMEOUT"`
	ClockSkew         time.Duration `mapstructure:"AUTH_CLOCK_SKEW"`

	// Downstream integrations; empty disables the sink.
	PostServiceURL string `mapstructure:"POST_SERVICE_URL"`
	KafkaBrokers   string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic     string `mapstructure:"KAFKA_TOPIC"`

	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TracingSampler  float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults(env)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(env string) {
	viper.SetDefault("PORT", "8083")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")

	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "commentdb")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_PATH", "file::memory:?cache=shared")
	if env == "test" {
		viper.SetDefault("DB_DRIVER", "sqlite")
	}

	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("COGNITO_REGION", "ap-northeast-2")
	viper.SetDefault("COGNITO_USER_POOL_ID", "")
	viper.SetDefault("COGNITO_CLIENT_ID", "")
	viper.SetDefault("AUTH_ISSUER", "")
	viper.SetDefault("AUTH_TRUSTED_ISSUERS", "")
	viper.SetDefault("AUTH_JWKS_CACHE_TTL", time.Hour)
	viper.SetDefault("AUTH_JWKS_FETCH_TIMEOUT", 10*time.Second)
	viper.SetDefault("AUTH_CLOCK_SKEW", time.Duration(0))

	viper.SetDefault("POST_SERVICE_URL", "")
	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_TOPIC", "comments.events")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

// Issuer returns the identity provider's primary issuer URL. AUTH_ISSUER wins
// over the Cognito region/pool pair.
func (c *Config) Issuer() string {
	if c.AuthIssuer != "" {
		return strings.TrimRight(c.AuthIssuer, "/")
	}
	if c.CognitoUserPoolID == "" {
		return ""
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.CognitoRegion, c.CognitoUserPoolID)
}

// TrustedIssuerList returns the comma-separated AUTH_TRUSTED_ISSUERS as a slice.
func (c *Config) TrustedIssuerList() []string {
	return splitList(c.TrustedIssuers)
}

// KafkaBrokerList returns the comma-separated KAFKA_BROKERS as a slice.
func (c *Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

// IsProduction reports whether the service runs with the production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimRight(strings.TrimSpace(part), "/"); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.JWKSCacheTTL < 0 {
		return errors.New("AUTH_JWKS_CACHE_TTL must be non-negative")
	}
	if c.JWKSFetchTimeout <= 0 {
		return errors.New("AUTH_JWKS_FETCH_TIMEOUT must be positive")
	}
	if c.ClockSkew < 0 {
		return errors.New("AUTH_CLOCK_SKEW must be non-negative")
	}

	if c.IsProduction() {
		if c.Issuer() == "" {
			return errors.New("AUTH_ISSUER or COGNITO_USER_POOL_ID is required in production")
		}
		if c.CognitoClientID == "" {
			return errors.New("COGNITO_CLIENT_ID is required in production")
		}
		if c.DBDriver != "postgres" {
			return errors.New("DB_DRIVER must be postgres in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.TrustedIssuers == "" {
			log.Println("WARNING: AUTH_TRUSTED_ISSUERS is empty; tokens from any issuer may select their own key set.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if c.CognitoClientID == "" {
		log.Println("WARNING: COGNITO_CLIENT_ID is empty; the server cannot verify tokens and will refuse to start.")
	}

	return nil
}
