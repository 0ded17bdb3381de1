package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Config is built once in main and passed to the
// constructors that need it; nothing reads the environment after startup.
type Config struct {
	Env            string        // application environment (development, test, production)
	Port           string        // HTTP port to listen on
	MongoURI       string        // MongoDB connection string
	MongoDB        string        // database name
	JWTSecret      string        // secret used to sign session tokens
	JWTExpiresIn   time.Duration // session token lifetime
	BcryptCost     int           // bcrypt cost for password hashing
	ResetTokenTTL  time.Duration // password reset token lifetime
	ClientURL      string        // frontend origin, used for CORS and reset links
	UploadDir      string        // directory uploaded files are written to
	UploadURLPath  string        // URL prefix the upload directory is served from
	MaxUploadBytes int64         // per-file upload size limit
	LogLevel       string        // zerolog level name
	RabbitURL      string        // AMQP URL; empty disables the mail queue

	// RestrictStaffSignup limits self-registration as admin or manager to
	// the very first account.
	RestrictStaffSignup bool
}

// IsProduction reports whether the service runs in production mode.
// Outside production the reset link is echoed back in the forgot-password
// response.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// Load reads configuration values from the environment. A .env file in the
// working directory is loaded first when present; variables already set in
// the environment win. Missing required variables are reported together.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:            getenv("APP_ENV", "development"),
		Port:           getenv("APP_PORT", "5000"),
		MongoURI:       os.Getenv("MONGO_URI"),
		MongoDB:        getenv("MONGO_DB", "reqtrack"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpiresIn:   envDur("JWT_EXPIRES_IN", 7*24*time.Hour),
		BcryptCost:     envInt("BCRYPT_COST", 12),
		ResetTokenTTL:  envDur("RESET_TOKEN_TTL", time.Hour),
		ClientURL:      strings.TrimRight(getenv("CLIENT_URL", "http://localhost:3000"), "/"),
		UploadDir:      getenv("UPLOAD_DIR", "uploads"),
		UploadURLPath:  "/" + strings.Trim(getenv("UPLOAD_URL_PATH", "/uploads"), "/"),
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_MB", 50)) << 20,
		LogLevel:       getenv("LOG_LEVEL", "info"),
		RabbitURL:      RabbitURL(),

		RestrictStaffSignup: envBool("RESTRICT_STAFF_SIGNUP", false),
	}

	var missing []string
	if cfg.MongoURI == "" {
		missing = append(missing, "MONGO_URI")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return Config{}, errors.New("BCRYPT_COST must be between 4 and 31")
	}
	return cfg, nil
}

// MustLoad is Load for main: a configuration error is fatal.
func MustLoad(log zerolog.Logger) Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	return cfg
}

// RabbitURL returns the broker URL from RABBITMQ_URL or AMQP_URL.
func RabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}
