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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Orders       OrdersConfig
	GBPrimePay   GBPrimePayConfig
	Omise        OmiseConfig
	SMTP         SMTPConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Eventing     EventingConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Orders.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SKSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"SKSHOP_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SKSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SKSHOP_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is a comma separated list of storefront origins.
	CORSOrigins []string `envconfig:"SKSHOP_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SKSHOP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"SKSHOP_DB_DSN"`

	Host     string `envconfig:"SKSHOP_DB_HOST"`
	Port     int    `envconfig:"SKSHOP_DB_PORT" default:"5432"`
	User     string `envconfig:"SKSHOP_DB_USER"`
	Password string `envconfig:"SKSHOP_DB_PASSWORD"`
	Name     string `envconfig:"SKSHOP_DB_NAME"`
	SSLMode  string `envconfig:"SKSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SKSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SKSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SKSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SKSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SKSHOP_REDIS_URL"`
	Address      string        `envconfig:"SKSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"SKSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"SKSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SKSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SKSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SKSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SKSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SKSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"SKSHOP_JWT_SECRET" required:"true"`
	Issuer string        `envconfig:"SKSHOP_JWT_ISSUER" default:"sk-shopping"`
	TTL    time.Duration `envconfig:"SKSHOP_JWT_TTL" default:"1h"`
}

// OrdersConfig holds the order placement business rules.
type OrdersConfig struct {
	// ReservationHoldWindow bounds how long an unpaid order keeps its stock.
	ReservationHoldWindow time.Duration `envconfig:"SKSHOP_RESERVATION_HOLD_WINDOW" default:"30m"`
	DeliveryFee           int64         `envconfig:"SKSHOP_DELIVERY_FEE" default:"50"`
	SchoolPickupFee       int64         `envconfig:"SKSHOP_SCHOOL_PICKUP_FEE" default:"0"`
	GatewayTimeout        time.Duration `envconfig:"SKSHOP_GATEWAY_TIMEOUT" default:"15s"`
	PaymentProvider       string        `envconfig:"SKSHOP_PAYMENT_PROVIDER" default:"gbprimepay"`
	AutoCancelLapsed      bool          `envconfig:"SKSHOP_AUTO_CANCEL_LAPSED_ORDERS" default:"false"`
}

func (o OrdersConfig) validate() error {
	if o.ReservationHoldWindow <= 0 {
		return fmt.Errorf("%s must be positive", EnvReservationHoldWindow)
	}
	if o.DeliveryFee <= 0 {
		return fmt.Errorf("%s must be positive", EnvDeliveryFee)
	}
	if o.SchoolPickupFee < 0 {
		return fmt.Errorf("%s must not be negative", EnvSchoolPickupFee)
	}
	return nil
}

type GBPrimePayConfig struct {
	Token         string `envconfig:"SKSHOP_GBPRIMEPAY_TOKEN"`
	BaseURL       string `envconfig:"SKSHOP_GBPRIMEPAY_BASE_URL" default:"https://api.gbprimepay.com"`
	BackgroundURL string `envconfig:"SKSHOP_GBPRIMEPAY_BACKGROUND_URL"`
	WebhookSecret string `envconfig:"SKSHOP_GBPRIMEPAY_WEBHOOK_SECRET"`
}

type OmiseConfig struct {
	SecretKey     string `envconfig:"SKSHOP_OMISE_SECRET_KEY"`
	BaseURL       string `envconfig:"SKSHOP_OMISE_BASE_URL" default:"https://api.omise.co"`
	WebhookSecret string `envconfig:"SKSHOP_OMISE_WEBHOOK_SECRET"`
}

type SMTPConfig struct {
	Host     string `envconfig:"SKSHOP_SMTP_HOST"`
	Port     int    `envconfig:"SKSHOP_SMTP_PORT" default:"587"`
	Username string `envconfig:"SKSHOP_SMTP_USERNAME"`
	Password string `envconfig:"SKSHOP_SMTP_PASSWORD"`
	From     string `envconfig:"SKSHOP_SMTP_FROM" default:"no-reply@skshopping.app"`
	// TLSPolicy is one of mandatory, opportunistic, none.
	TLSPolicy string `envconfig:"SKSHOP_SMTP_TLS_POLICY" default:"mandatory"`
}

// Enabled reports whether outbound email is configured.
func (s SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Host) != ""
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SKSHOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SKSHOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SKSHOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"SKSHOP_OUTBOX_RETENTION_DAYS" default:"30"`
}

// CronConfig drives cmd/cron-worker. The lock TTL should outlive one cycle.
type CronConfig struct {
	Interval       time.Duration `envconfig:"SKSHOP_CRON_INTERVAL" default:"5m"`
	LockTTL        time.Duration `envconfig:"SKSHOP_CRON_LOCK_TTL" default:"10m"`
	SweepBatchSize int           `envconfig:"SKSHOP_RESERVATION_SWEEP_BATCH_SIZE" default:"200"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"SKSHOP_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	RequestIdempotencyTTL time.Duration `envconfig:"SKSHOP_REQUEST_IDEMPOTENCY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SKSHOP_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
