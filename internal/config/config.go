package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken   string
	DBDSN           string
	Environment     string
	MetricsAddr     string
	DefaultTimezone string

	RecommendWindowDays int
	RecommendCount      int

	MonitorInterval time.Duration
	StaleAfter      time.Duration

	// EnvFileLoaded конфигурация частично прочитана из .env
	EnvFileLoaded bool
}

// ErrTelegramTokenMissing токен обязателен только для запуска бота
var ErrTelegramTokenMissing = errors.New("TELEGRAM_TOKEN is required but not set")

// Load читает .env (если есть) и переменные окружения.
// Все отсутствующие и некорректные переменные возвращаются одной ошибкой.
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	loaded := godotenv.Load(".env") == nil

	cfg := &Config{
		TelegramToken:       env("TELEGRAM_TOKEN"),
		DBDSN:               env("DB_DSN"),
		Environment:         env("ENV"),
		MetricsAddr:         env("METRICS_ADDR"),
		DefaultTimezone:     env("DEFAULT_TIMEZONE"),
		RecommendWindowDays: 14,
		RecommendCount:      5,
		MonitorInterval:     10 * time.Minute,
		StaleAfter:          24 * time.Hour,
		EnvFileLoaded:       loaded,
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9090"
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}

	var missing, invalid []string

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}

	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		invalid = append(invalid, "DEFAULT_TIMEZONE")
	}
	if !positiveInt("RECOMMEND_WINDOW_DAYS", &cfg.RecommendWindowDays) {
		invalid = append(invalid, "RECOMMEND_WINDOW_DAYS")
	}
	if !positiveInt("RECOMMEND_COUNT", &cfg.RecommendCount) {
		invalid = append(invalid, "RECOMMEND_COUNT")
	}
	if !positiveDuration("MONITOR_INTERVAL", &cfg.MonitorInterval) {
		invalid = append(invalid, "MONITOR_INTERVAL")
	}
	if !positiveDuration("STALE_AFTER", &cfg.StaleAfter) {
		invalid = append(invalid, "STALE_AFTER")
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", ")))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RequireTelegram проверяет настройки, нужные для запуска бота
func (c *Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return ErrTelegramTokenMissing
	}
	return nil
}

// Location часовой пояс по умолчанию для новых пользователей
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func positiveInt(name string, dst *int) bool {
	v := env(name)
	if v == "" {
		return true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return false
	}
	*dst = n
	return true
}

func positiveDuration(name string, dst *time.Duration) bool {
	v := env(name)
	if v == "" {
		return true
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return false
	}
	*dst = d
	return true
}
