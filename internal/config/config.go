package config // package config loads application configuration from environment variables

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Variables tagged required cause Load to fail
// when they are unset or empty.
type Config struct {
	Env            string        `env:"APP_ENV" envDefault:"dev"`                  // application environment (dev/test/prod)
	Port           string        `env:"APP_PORT" envDefault:"8080"`                // HTTP port to listen on
	DBUser         string        `env:"DB_USER,required,notEmpty"`                 // database username
	DBPass         string        `env:"DB_PASS"`                                   // database password (optional)
	DBHost         string        `env:"DB_HOST,required,notEmpty"`                 // database host address
	DBPort         string        `env:"DB_PORT" envDefault:"3306"`                 // database port number
	DBName         string        `env:"DB_NAME,required,notEmpty"`                 // database name
	JWTSecret      string        `env:"JWT_SECRET,required,notEmpty"`              // secret used to sign JWTs
	AccessTTL      time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"168h"`        // access token lifetime (7 days)
	RefreshTTLDays int           `env:"REFRESH_TOKEN_TTL_DAYS" envDefault:"30"`    // refresh token lifetime in days
	BcryptCost     int           `env:"BCRYPT_COST" envDefault:"10"`               // bcrypt cost for password hashing
	CookieName     string        `env:"COOKIE_NAME" envDefault:"token"`            // session cookie carrying the access token
	CookieSecure   bool          `env:"COOKIE_SECURE" envDefault:"false"`          // mark the session cookie Secure
	ResetTTL       time.Duration `env:"RESET_TOKEN_TTL" envDefault:"15m"`          // password-reset token lifetime
	CORSOrigins    []string      `env:"CORS_ORIGINS" envSeparator:","`             // allowed browser origins
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`               // logrus level
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"json"`              // json or text
	RabbitURL      string        `env:"RABBITMQ_URL"`                              // broker for order events; empty disables publishing
	PurgeSchedule  string        `env:"TOKEN_PURGE_SCHEDULE" envDefault:"@hourly"` // cron spec for refresh token cleanup
}

// Load reads a .env file when present and then parses the environment into
// a Config.  Missing required variables are fatal, as the service cannot
// start without a database and a signing secret.
func Load() Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Parse is the non-fatal form of Load.
func Parse() (Config, error) {
	_ = godotenv.Load() // .env is optional
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BcryptCost < 4 {
		cfg.BcryptCost = 10
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 7 * 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 15 * time.Minute
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with APP_ENV=prod.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// RefreshTTL converts RefreshTTLDays into a duration.
func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}
