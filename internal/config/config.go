package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"3000"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// StorageDriver selects the repository backend: "dynamo" or "memory".
	StorageDriver  string `env:"STORAGE_DRIVER" envDefault:"dynamo"`
	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	DynamoTables   DynamoTables

	JWTSecret       string        `env:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"noreply@example.com"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	SNSRegion   string `env:"SNS_REGION" envDefault:"us-east-1"`
	SNSTopicARN string `env:"SNS_TOPIC_ARN"` // identity events are only published when set

	GoogleClientID string   `env:"GOOGLE_CLIENT_ID"`
	AdminAPIKey    string   `env:"ADMIN_API_KEY"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Identities    string `env:"DYNAMO_TABLE_IDENTITIES" envDefault:"identities"`
	Accounts      string `env:"DYNAMO_TABLE_ACCOUNTS" envDefault:"accounts"`
	AccountEmails string `env:"DYNAMO_TABLE_ACCOUNT_EMAILS" envDefault:"account_emails"`
	Integrations  string `env:"DYNAMO_TABLE_INTEGRATIONS" envDefault:"integrations"`
	RecoveryCodes string `env:"DYNAMO_TABLE_RECOVERY_CODES" envDefault:"recovery_codes"`
	Tokens        string `env:"DYNAMO_TABLE_TOKENS" envDefault:"tokens"`
	Clients       string `env:"DYNAMO_TABLE_CLIENTS" envDefault:"clients"`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.StorageDriver {
	case "dynamo", "memory":
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	return &cfg, nil
}
