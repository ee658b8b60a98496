package config

import (
	"errors"
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"log"
	"strings"
	"time"
)

type AppConfig struct {
	BotToken        string        `env:"BOT_TOKEN" env-required:"true"`
	BotName         string        `env:"BOT_NAME" env-default:"ZyVPN"`
	APIURL          string        `env:"API_URL" env-default:"http://localhost:8080"`
	AdminTelegramID int64         `env:"ADMIN_TELEGRAM_ID" env-default:"0"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	SQLitePath      string        `env:"SQLITE_PATH" env-default:"miniapp.db"`
	RedisURL        string        `env:"REDIS_URL"`
	HTTPAddr        string        `env:"HTTP_ADDR" env-default:":8081"`
	PollInterval    time.Duration `env:"POLL_INTERVAL" env-default:"3s"`
	PollMaxAttempts int           `env:"POLL_MAX_ATTEMPTS" env-default:"200"`
	TxValidity      time.Duration `env:"TX_VALIDITY" env-default:"600s"`
	InvoiceTimeout  time.Duration `env:"INVOICE_TIMEOUT" env-default:"15m"`
	InitDataTTL     time.Duration `env:"INIT_DATA_TTL" env-default:"50m"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" env-default:"15s"`
	SessionIdle     time.Duration `env:"SESSION_IDLE" env-default:"30m"`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
}

var AppCfg AppConfig

// Load читает .env (если есть) и переменные окружения
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, relying on environment variables")
	}
	var cfg AppConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return errors.New("BOT_TOKEN is empty")
	}
	if c.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	if c.PollMaxAttempts < 0 {
		return errors.New("POLL_MAX_ATTEMPTS must be >= 0")
	}
	if c.TxValidity < time.Minute {
		return errors.New("TX_VALIDITY must be at least 1m")
	}
	return nil
}

// LoadConfig заполняет AppCfg, при ошибке бот завершается
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Critical environment variables are missing. Bot will exit: %v", err)
	}
	AppCfg = cfg
}
