package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Origins allowed on the realtime gateway outside production.
var devOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

type Config struct {
	Env            string `mapstructure:"APP_ENV" validate:"oneof=development test production"`
	Port           string `mapstructure:"PORT" validate:"required"`
	DatabaseURL    string `mapstructure:"DATABASE_URL" validate:"required"`
	JWTSecret      string `mapstructure:"JWT_SECRET" validate:"required"`
	LogLevel       string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	AppBaseURL     string `mapstructure:"APP_BASE_URL" validate:"required,url"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT" validate:"min=1,max=65535"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM" validate:"required,email"`

	FCMServiceAccount string `mapstructure:"FCM_SERVICE_ACCOUNT"`

	DigestCron      string `mapstructure:"DIGEST_CRON" validate:"required"`
	DigestTimezone  string `mapstructure:"DIGEST_TIMEZONE" validate:"required"`
	DigestBatchSize int    `mapstructure:"DIGEST_BATCH_SIZE" validate:"min=1"`
	ReminderPoll    string `mapstructure:"REMINDER_POLL" validate:"required"`

	QueueSize    int `mapstructure:"QUEUE_SIZE" validate:"min=1"`
	QueueWorkers int `mapstructure:"QUEUE_WORKERS" validate:"min=1"`
}

var defaults = map[string]interface{}{
	"APP_ENV":             "development",
	"PORT":                "8080",
	"DATABASE_URL":        "partnerhub.db",
	"JWT_SECRET":          "your-secret-key-change-in-production",
	"LOG_LEVEL":           "info",
	"APP_BASE_URL":        "http://localhost:5173",
	"ALLOWED_ORIGINS":     "",
	"SMTP_HOST":           "",
	"SMTP_PORT":           587,
	"SMTP_USERNAME":       "",
	"SMTP_PASSWORD":       "",
	"SMTP_FROM":           "noreply@partnerhub.local",
	"FCM_SERVICE_ACCOUNT": "",
	"DIGEST_CRON":         "0 8 * * *",
	"DIGEST_TIMEZONE":     "UTC",
	"DIGEST_BATCH_SIZE":   50,
	"REMINDER_POLL":       "@every 1m",
	"QUEUE_SIZE":          256,
	"QUEUE_WORKERS":       4,
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.IsProduction() && len(cfg.Origins()) == 0 {
		return nil, errors.New("invalid config: ALLOWED_ORIGINS is required in production")
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Origins returns the websocket origin allow-list. Production uses the explicit
// ALLOWED_ORIGINS list, everything else the local development hosts.
func (c *Config) Origins() []string {
	if !c.IsProduction() {
		return devOrigins
	}
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// SMTPEnabled reports whether outbound email has a transport configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}
