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
	Lending      LendingConfig
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
	if err := cfg.Lending.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHELFSTACK_APP_ENV" required:"true"`
	Port         string `envconfig:"SHELFSTACK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHELFSTACK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHELFSTACK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHELFSTACK_DB_DSN"`
	Driver string `envconfig:"SHELFSTACK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHELFSTACK_DB_HOST"`
	LegacyPort     int    `envconfig:"SHELFSTACK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHELFSTACK_DB_USER"`
	LegacyPassword string `envconfig:"SHELFSTACK_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHELFSTACK_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHELFSTACK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHELFSTACK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHELFSTACK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHELFSTACK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHELFSTACK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHELFSTACK_REDIS_URL"`
	Address      string        `envconfig:"SHELFSTACK_REDIS_ADDR"`
	Password     string        `envconfig:"SHELFSTACK_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHELFSTACK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHELFSTACK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHELFSTACK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHELFSTACK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHELFSTACK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHELFSTACK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint is configured at all. The
// idempotency layer is skipped entirely when it is not.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

// LendingConfig carries the circulation policy knobs. These are deliberate
// configuration points, not hidden defaults.
type LendingConfig struct {
	// DeletePolicy controls when members/books referenced by borrowings may
	// be deleted: "restrict" blocks while any borrowing references the row,
	// "restrict_open" blocks only while an open borrowing exists.
	DeletePolicy string `envconfig:"SHELFSTACK_LENDING_DELETE_POLICY" default:"restrict"`
	// AllowFutureDates lifts the borrow_date <= today check.
	AllowFutureDates bool `envconfig:"SHELFSTACK_LENDING_ALLOW_FUTURE_DATES" default:"false"`
	// MaxOpenLoans caps concurrently open borrowings per member. 0 = unlimited.
	MaxOpenLoans int `envconfig:"SHELFSTACK_LENDING_MAX_OPEN_LOANS" default:"0"`
}

func (l LendingConfig) validate() error {
	switch l.DeletePolicy {
	case DeletePolicyRestrict, DeletePolicyRestrictOpen:
	default:
		return fmt.Errorf("invalid %s: %q (expected %s or %s)",
			EnvLendingDeletePolicy, l.DeletePolicy, DeletePolicyRestrict, DeletePolicyRestrictOpen)
	}
	if l.MaxOpenLoans < 0 {
		return fmt.Errorf("%s must be >= 0", EnvLendingMaxOpenLoans)
	}
	return nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHELFSTACK_AUTO_MIGRATE" default:"false"`
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
