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
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	Payments     PaymentsConfig
	Reconcile    ReconcileConfig
	Bootstrap    BootstrapConfig
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
	Env          string `envconfig:"SCRIBEWELL_APP_ENV" required:"true"`
	Port         string `envconfig:"SCRIBEWELL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SCRIBEWELL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SCRIBEWELL_LOG_WARN_STACK" default:"false"`

	// Comma-separated list of origins allowed to call the admin surface.
	CORSOrigins []string `envconfig:"SCRIBEWELL_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SCRIBEWELL_DB_DSN"`
	Driver string `envconfig:"SCRIBEWELL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SCRIBEWELL_DB_HOST"`
	LegacyPort     int    `envconfig:"SCRIBEWELL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SCRIBEWELL_DB_USER"`
	LegacyPassword string `envconfig:"SCRIBEWELL_DB_PASSWORD"`
	LegacyName     string `envconfig:"SCRIBEWELL_DB_NAME"`
	LegacySSLMode  string `envconfig:"SCRIBEWELL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SCRIBEWELL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SCRIBEWELL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SCRIBEWELL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SCRIBEWELL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SCRIBEWELL_REDIS_URL"`
	Address      string        `envconfig:"SCRIBEWELL_REDIS_ADDR"`
	Password     string        `envconfig:"SCRIBEWELL_REDIS_PASSWORD"`
	DB           int           `envconfig:"SCRIBEWELL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SCRIBEWELL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SCRIBEWELL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SCRIBEWELL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SCRIBEWELL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SCRIBEWELL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured at all. The gateway
// falls back to process-local rate limiting when it is not.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"SCRIBEWELL_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SCRIBEWELL_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SCRIBEWELL_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SCRIBEWELL_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SCRIBEWELL_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SCRIBEWELL_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SCRIBEWELL_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SCRIBEWELL_ARGON_KEY_LEN" default:"32"`
}

type RateLimitConfig struct {
	TenantWindow   time.Duration `envconfig:"SCRIBEWELL_RATE_LIMIT_TENANT_WINDOW" default:"1m"`
	TenantLimit    int           `envconfig:"SCRIBEWELL_RATE_LIMIT_TENANT_LIMIT" default:"100"`
	RegisterWindow time.Duration `envconfig:"SCRIBEWELL_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterLimit  int           `envconfig:"SCRIBEWELL_RATE_LIMIT_REGISTER_LIMIT" default:"10"`
}

type PaymentsConfig struct {
	StripeAPIKey   string        `envconfig:"SCRIBEWELL_STRIPE_API_KEY"`
	StripeEnv      string        `envconfig:"SCRIBEWELL_STRIPE_ENV" default:"test"`
	RequestTimeout time.Duration `envconfig:"SCRIBEWELL_PAYMENTS_REQUEST_TIMEOUT" default:"5s"`
	IntentExpiry   time.Duration `envconfig:"SCRIBEWELL_PAYMENTS_INTENT_EXPIRY" default:"24h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (p PaymentsConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.StripeEnv))
	if env == "" {
		return "test"
	}
	return env
}

type ReconcileConfig struct {
	Interval time.Duration `envconfig:"SCRIBEWELL_RECONCILE_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"SCRIBEWELL_RECONCILE_LOCK_TTL" default:"55m"`
}

// BootstrapConfig seeds the first operator account at startup. Both values
// must be set for seeding to run; an existing account with the email wins.
type BootstrapConfig struct {
	AdminEmail    string `envconfig:"SCRIBEWELL_BOOTSTRAP_ADMIN_EMAIL"`
	AdminPassword string `envconfig:"SCRIBEWELL_BOOTSTRAP_ADMIN_PASSWORD"`
}

func (b BootstrapConfig) Enabled() bool {
	return strings.TrimSpace(b.AdminEmail) != "" && b.AdminPassword != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SCRIBEWELL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SCRIBEWELL_AUTO_MIGRATE" default:"false"`
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
