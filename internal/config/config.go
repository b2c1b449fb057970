package config // package config loads application configuration from environment variables

import (
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/caarlos0/env/v11"

    "github.com/iliyamo/sports-calendar/internal/database"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable; required ones fail Load when unset.
type Config struct {
    Env  string `env:"APP_ENV"  envDefault:"dev"`
    Port string `env:"APP_PORT" envDefault:"8080"`

    LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
    LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

    DBUser        string `env:"DB_USER,required"`
    DBPass        string `env:"DB_PASS"`
    DBHost        string `env:"DB_HOST,required"`
    DBPort        string `env:"DB_PORT" envDefault:"3306"`
    DBName        string `env:"DB_NAME,required"`
    MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"internal/database/migrations"`

    JWTSecret      string `env:"JWT_SECRET,required,notEmpty"`
    AccessTTLMin   int    `env:"ACCESS_TOKEN_TTL_MIN"   envDefault:"15"`
    RefreshTTLDays int    `env:"REFRESH_TOKEN_TTL_DAYS" envDefault:"7"`
    BcryptCost     int    `env:"BCRYPT_COST"            envDefault:"12"`

    // Calendar
    CalendarTZ    string `env:"CALENDAR_TZ"              envDefault:"Local"`
    VisiblePerDay int    `env:"CALENDAR_VISIBLE_PER_DAY" envDefault:"2"`

    // Detail views held by the JSON API
    ViewIdleTTL       time.Duration `env:"VIEW_IDLE_TTL"       envDefault:"30m"`
    ViewSweepInterval time.Duration `env:"VIEW_SWEEP_INTERVAL" envDefault:"1m"`

    CSRFKey    string `env:"CSRF_KEY,required"`
    CSRFSecure bool   `env:"CSRF_SECURE" envDefault:"false"`

    RabbitURL       string `env:"RABBITMQ_URL"`
    CancellationLog string `env:"CANCELLATION_LOG" envDefault:"logs/cancellations.log"`

    ResendAPIKey string `env:"RESEND_API_KEY"`
    EmailFrom    string `env:"EMAIL_FROM" envDefault:"Sports Calendar <calendar@localhost>"`

    OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
    ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"sports-calendar"`

    Cache     CacheConfig
    RateLimit RateLimitConfig
    Redis     RedisConfig
}

// Load parses the environment into a Config and checks the values that
// the tag syntax cannot express.
func Load() (Config, error) {
    var cfg Config
    if err := env.Parse(&cfg); err != nil {
        return Config{}, fmt.Errorf("parse env: %w", err)
    }
    if len(cfg.CSRFKey) != 32 {
        return Config{}, errors.New("CSRF_KEY must be exactly 32 bytes")
    }
    if cfg.VisiblePerDay < 1 {
        return Config{}, fmt.Errorf("CALENDAR_VISIBLE_PER_DAY must be positive, got %d", cfg.VisiblePerDay)
    }
    if cfg.AccessTTLMin < 1 || cfg.RefreshTTLDays < 1 {
        return Config{}, errors.New("token TTLs must be positive")
    }
    if cfg.ViewIdleTTL <= 0 || cfg.ViewSweepInterval <= 0 {
        return Config{}, errors.New("VIEW_IDLE_TTL and VIEW_SWEEP_INTERVAL must be positive")
    }
    if _, err := cfg.Location(); err != nil {
        return Config{}, fmt.Errorf("CALENDAR_TZ: %w", err)
    }
    cfg.Cache.normalize()
    cfg.RateLimit.normalize()
    return cfg, nil
}

// IsProd reports whether the service runs in production.
func (c Config) IsProd() bool {
    return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

// AccessTTL is the lifetime of an access token.
func (c Config) AccessTTL() time.Duration { return time.Duration(c.AccessTTLMin) * time.Minute }

// RefreshTTL is the lifetime of a refresh token.
func (c Config) RefreshTTL() time.Duration { return time.Duration(c.RefreshTTLDays) * 24 * time.Hour }

// Location resolves CALENDAR_TZ.  "Local" and "" use the host zone.
func (c Config) Location() (*time.Location, error) {
    switch c.CalendarTZ {
    case "", "Local":
        return time.Local, nil
    }
    return time.LoadLocation(c.CalendarTZ)
}

// Database returns the connection options for database.Open.
func (c Config) Database() database.Options {
    return database.Options{
        User:     c.DBUser,
        Password: c.DBPass,
        Host:     c.DBHost,
        Port:     c.DBPort,
        Name:     c.DBName,
    }
}
