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
	MercadoPago  MercadoPagoConfig
	Commission   CommissionConfig
	Vault        VaultConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ENTRENA_APP_ENV" required:"true"`
	Port         string `envconfig:"ENTRENA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ENTRENA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ENTRENA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ENTRENA_DB_DSN"`
	Driver string `envconfig:"ENTRENA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ENTRENA_DB_HOST"`
	LegacyPort     int    `envconfig:"ENTRENA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ENTRENA_DB_USER"`
	LegacyPassword string `envconfig:"ENTRENA_DB_PASSWORD"`
	LegacyName     string `envconfig:"ENTRENA_DB_NAME"`
	LegacySSLMode  string `envconfig:"ENTRENA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ENTRENA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ENTRENA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ENTRENA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ENTRENA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ENTRENA_REDIS_URL"`
	Address      string        `envconfig:"ENTRENA_REDIS_ADDR"`
	Password     string        `envconfig:"ENTRENA_REDIS_PASSWORD"`
	DB           int           `envconfig:"ENTRENA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ENTRENA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ENTRENA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ENTRENA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ENTRENA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ENTRENA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ENTRENA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ENTRENA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ENTRENA_JWT_EXPIRATION_MINUTES" default:"60"`
}

// MercadoPagoConfig carries the platform-level gateway settings. The
// platform token authenticates payment lookups during webhook
// reconciliation; coach tokens live encrypted per account and are resolved
// per request.
type MercadoPagoConfig struct {
	PlatformAccessToken string        `envconfig:"ENTRENA_MP_PLATFORM_ACCESS_TOKEN" required:"true"`
	BaseURL             string        `envconfig:"ENTRENA_MP_BASE_URL" default:"https://api.mercadopago.com"`
	NotificationURL     string        `envconfig:"ENTRENA_MP_NOTIFICATION_URL" required:"true"`
	SuccessURL          string        `envconfig:"ENTRENA_MP_BACK_URL_SUCCESS" required:"true"`
	FailureURL          string        `envconfig:"ENTRENA_MP_BACK_URL_FAILURE" required:"true"`
	PendingURL          string        `envconfig:"ENTRENA_MP_BACK_URL_PENDING" required:"true"`
	RequestTimeout      time.Duration `envconfig:"ENTRENA_MP_REQUEST_TIMEOUT" default:"5s"`
}

// CommissionConfig defines the marketplace commission schedule: a
// percentage of the purchase total expressed in basis points plus an
// optional minimum fee.
type CommissionConfig struct {
	PercentBps int    `envconfig:"ENTRENA_COMMISSION_PERCENT_BPS" default:"1000"`
	Minimum    string `envconfig:"ENTRENA_COMMISSION_MIN" default:"0"`
}

type VaultConfig struct {
	// Base64-encoded 32-byte key sealing stored coach gateway tokens.
	TokenKey string `envconfig:"ENTRENA_VAULT_TOKEN_KEY" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ENTRENA_AUTO_MIGRATE" default:"false"`
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
