package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Webhook      WebhookConfig
	Payments     PaymentsConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TABLETALLY_APP_ENV" required:"true"`
	Port         string `envconfig:"TABLETALLY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TABLETALLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TABLETALLY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TABLETALLY_DB_DSN"`
	Driver string `envconfig:"TABLETALLY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TABLETALLY_DB_HOST"`
	LegacyPort     int    `envconfig:"TABLETALLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TABLETALLY_DB_USER"`
	LegacyPassword string `envconfig:"TABLETALLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"TABLETALLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"TABLETALLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TABLETALLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TABLETALLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TABLETALLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TABLETALLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TABLETALLY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TABLETALLY_REDIS_ADDR"`
	Password     string        `envconfig:"TABLETALLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"TABLETALLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TABLETALLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TABLETALLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TABLETALLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TABLETALLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TABLETALLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TABLETALLY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TABLETALLY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TABLETALLY_JWT_EXPIRATION_MINUTES" default:"720"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TABLETALLY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TABLETALLY_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TABLETALLY_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TABLETALLY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TABLETALLY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ManagementTopic    string `envconfig:"TABLETALLY_PUBSUB_MANAGEMENT_TOPIC" default:"tt-management-events"`
	RealtimeTopic      string `envconfig:"TABLETALLY_PUBSUB_REALTIME_TOPIC" default:"tt-realtime-push"`
	DomainTopic        string `envconfig:"TABLETALLY_PUBSUB_DOMAIN_TOPIC" required:"true"`
	DomainSubscription string `envconfig:"TABLETALLY_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
}

// WebhookConfig covers the inbound bank-transfer notification endpoint.
type WebhookConfig struct {
	BankAPIKey     string        `envconfig:"TABLETALLY_WEBHOOK_BANK_API_KEY" required:"true"`
	IdempotencyTTL time.Duration `envconfig:"TABLETALLY_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

// PaymentsConfig drives payment-instruction rendering at checkout.
type PaymentsConfig struct {
	InstructionBaseURL string `envconfig:"TABLETALLY_PAYMENTS_INSTRUCTION_BASE_URL" default:"https://qr.tabletally.app/pay"`
	BankAccountNumber  string `envconfig:"TABLETALLY_PAYMENTS_BANK_ACCOUNT"`
	BankCode           string `envconfig:"TABLETALLY_PAYMENTS_BANK_CODE"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TABLETALLY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TABLETALLY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TABLETALLY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   "/" + db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
