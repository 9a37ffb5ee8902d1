// Пакет config — загрузка и валидация конфигурации сервера ProCheck
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервера ProCheck.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Аутентификация ---

	// Секрет подписи JWT (HMAC)
	JWTSecret string
	// Время жизни токена сессии
	TokenTTL time.Duration
	// Размер LRU-кэша пользователей в auth middleware
	UserCacheSize int
	// TTL записи в кэше пользователей
	UserCacheTTL time.Duration

	// --- Хранилище документов ---

	// Каталог для артефактов отчётов
	ReportsDir string

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// PC_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("PC_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("PC_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PC_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// PC_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PC_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PC_LOG_LEVEL: %w", err)
	}

	// PC_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("PC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PC_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// PC_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("PC_DB_HOST")
	if err != nil {
		return nil, err
	}

	// PC_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("PC_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("PC_DB_PORT: %w", err)
	}

	// PC_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("PC_DB_NAME")
	if err != nil {
		return nil, err
	}

	// PC_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("PC_DB_USER")
	if err != nil {
		return nil, err
	}

	// PC_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("PC_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// PC_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("PC_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("PC_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Аутентификация ---

	// PC_JWT_SECRET — обязательный
	cfg.JWTSecret, err = getEnvRequired("PC_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < 16 {
		return nil, fmt.Errorf("PC_JWT_SECRET: длина секрета должна быть не менее 16 символов")
	}

	// PC_TOKEN_TTL — время жизни токена сессии (по умолчанию 24h)
	cfg.TokenTTL, err = getEnvDuration("PC_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("PC_TOKEN_TTL: %w", err)
	}

	// PC_USER_CACHE_SIZE — размер LRU-кэша пользователей (по умолчанию 256)
	cfg.UserCacheSize, err = getEnvInt("PC_USER_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("PC_USER_CACHE_SIZE: %w", err)
	}
	if cfg.UserCacheSize < 1 {
		return nil, fmt.Errorf("PC_USER_CACHE_SIZE: значение %d должно быть положительным", cfg.UserCacheSize)
	}

	// PC_USER_CACHE_TTL — TTL записи кэша пользователей (по умолчанию 30s)
	cfg.UserCacheTTL, err = getEnvDuration("PC_USER_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PC_USER_CACHE_TTL: %w", err)
	}

	// --- Хранилище документов ---

	// PC_REPORTS_DIR — каталог артефактов отчётов (по умолчанию reports)
	cfg.ReportsDir = getEnvDefault("PC_REPORTS_DIR", "reports")

	// --- Graceful shutdown ---

	// PC_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("PC_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PC_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
