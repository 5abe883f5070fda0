package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "chopnow"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "CHOPNOW_DB_DSN"
	EnvDBHost = "CHOPNOW_DB_HOST"
	EnvDBUser = "CHOPNOW_DB_USER"
	EnvDBName = "CHOPNOW_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	GCP         GCPConfig
	PubSub      PubSubConfig
	Outbox      OutboxConfig
	Eventing    EventingConfig
	Auth        AuthConfig
	Flutterwave FlutterwaveConfig
	Payments    PaymentsConfig
	Pickup      PickupConfig
	Payout      PayoutConfig
	Cron        CronConfig
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
	Env          string `envconfig:"CHOPNOW_APP_ENV" required:"true"`
	Port         string `envconfig:"CHOPNOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CHOPNOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHOPNOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CHOPNOW_DB_DSN"`
	Driver string `envconfig:"CHOPNOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CHOPNOW_DB_HOST"`
	LegacyPort     int    `envconfig:"CHOPNOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CHOPNOW_DB_USER"`
	LegacyPassword string `envconfig:"CHOPNOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"CHOPNOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"CHOPNOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHOPNOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHOPNOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHOPNOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHOPNOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"CHOPNOW_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHOPNOW_REDIS_URL" required:"true"`
	Password     string        `envconfig:"CHOPNOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHOPNOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHOPNOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHOPNOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHOPNOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHOPNOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHOPNOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CHOPNOW_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CHOPNOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CHOPNOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic          string `envconfig:"CHOPNOW_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription   string `envconfig:"CHOPNOW_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	PaymentsTopic        string `envconfig:"CHOPNOW_PUBSUB_PAYMENTS_TOPIC" required:"true"`
	PaymentsSubscription string `envconfig:"CHOPNOW_PUBSUB_PAYMENTS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CHOPNOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CHOPNOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CHOPNOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"CHOPNOW_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type AuthConfig struct {
	Secret            string `envconfig:"CHOPNOW_AUTH_SECRET" required:"true"`
	Issuer            string `envconfig:"CHOPNOW_AUTH_ISSUER" default:"chopnow"`
	ExpirationMinutes int    `envconfig:"CHOPNOW_AUTH_EXPIRATION_MINUTES" default:"60"`
}

type FlutterwaveConfig struct {
	BaseURL       string        `envconfig:"CHOPNOW_FLW_BASE_URL" default:"https://api.flutterwave.com/v3"`
	SecretKey     string        `envconfig:"CHOPNOW_FLW_SECRET_KEY" required:"true"`
	WebhookSecret string        `envconfig:"CHOPNOW_FLW_WEBHOOK_SECRET" required:"true"`
	RedirectURL   string        `envconfig:"CHOPNOW_FLW_REDIRECT_URL"`
	Timeout       time.Duration `envconfig:"CHOPNOW_FLW_TIMEOUT" default:"15s"`
	MaxAttempts   int           `envconfig:"CHOPNOW_FLW_MAX_ATTEMPTS" default:"3"`
}

type PaymentsConfig struct {
	PlatformFeeRate string        `envconfig:"CHOPNOW_PLATFORM_FEE_RATE" default:"0.10"`
	PaymentTTL      time.Duration `envconfig:"CHOPNOW_PAYMENT_TTL" default:"30m"`
	Currency        string        `envconfig:"CHOPNOW_PAYMENT_CURRENCY" default:"NGN"`
}

type PickupConfig struct {
	Secret      string        `envconfig:"CHOPNOW_PICKUP_TOKEN_SECRET" required:"true"`
	Issuer      string        `envconfig:"CHOPNOW_PICKUP_TOKEN_ISSUER" default:"chopnow"`
	TTL         time.Duration `envconfig:"CHOPNOW_PICKUP_CODE_TTL" default:"30m"`
	MaxAttempts int           `envconfig:"CHOPNOW_PICKUP_MAX_ATTEMPTS" default:"5"`
}

type PayoutConfig struct {
	MinItemAge        time.Duration `envconfig:"CHOPNOW_PAYOUT_MIN_ITEM_AGE" default:"1h"`
	MinBatchTotal     string        `envconfig:"CHOPNOW_PAYOUT_MIN_BATCH_TOTAL" default:"0"`
	WorkerConcurrency int           `envconfig:"CHOPNOW_PAYOUT_WORKER_CONCURRENCY" default:"4"`
	MaxAttempts       int           `envconfig:"CHOPNOW_PAYOUT_MAX_ATTEMPTS" default:"5"`
	VisibilityTimeout time.Duration `envconfig:"CHOPNOW_PAYOUT_VISIBILITY_TIMEOUT" default:"5m"`
	PollInterval      time.Duration `envconfig:"CHOPNOW_PAYOUT_POLL_INTERVAL" default:"10s"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"CHOPNOW_CRON_INTERVAL" default:"5m"`
	LockKey  string        `envconfig:"CHOPNOW_CRON_LOCK_KEY" default:"chopnow:cron:lock"`
	LockTTL  time.Duration `envconfig:"CHOPNOW_CRON_LOCK_TTL" default:"10m"`
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
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
