package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Security     SecurityConfig
	Exchange     ExchangeConfig
	Notification NotificationConfig
	Bot          BotConfig
	Metrics      MetricsConfig
	Logging      LoggingConfig
}

// ServerConfig - настройки операторского HTTP API
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	EncryptionKey     string // ключ AES-256 для API секрета биржи
	OperatorTokenHash string // bcrypt хеш токена операторского API
}

// ExchangeConfig - настройки клиента биржи GMO Coin
type ExchangeConfig struct {
	PublicURL  string
	PrivateURL string
	APIKey     string
	APISecret  string // зашифрован ENCRYPTION_KEY (base64)

	RateLimit      float64 // запросов в секунду
	MaxRetries     int
	RetryBackoff   time.Duration
	RequestTimeout time.Duration

	// Постраничная загрузка сделок: биржа отдает данные от новых к старым
	TradesPageSize int
	TradesMaxPages int
}

// NotificationConfig - настройки Slack
type NotificationConfig struct {
	SlackURL     string
	SlackToken   string
	ChannelInfo  string
	ChannelError string
}

// BotConfig - настройки одного запуска торгового цикла
type BotConfig struct {
	Env               string
	ProductIDs        []string
	InvocationTimeout time.Duration
}

// MetricsConfig - выгрузка метрик одноразового процесса
type MetricsConfig struct {
	PushgatewayURL string
	JobName        string
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "vcautotrade"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey:     getEnv("ENCRYPTION_KEY", ""),
			OperatorTokenHash: getEnv("OPERATOR_TOKEN_HASH", ""),
		},
		Exchange: ExchangeConfig{
			PublicURL:      getEnv("GMO_PUBLIC_URL", "https://api.coin.z.com/public"),
			PrivateURL:     getEnv("GMO_PRIVATE_URL", "https://api.coin.z.com/private"),
			APIKey:         getEnv("GMO_API_KEY", ""),
			APISecret:      getEnv("GMO_API_SECRET", ""),
			RateLimit:      getEnvAsFloat("EXCHANGE_RATE_LIMIT", 5),
			MaxRetries:     getEnvAsInt("EXCHANGE_MAX_RETRIES", 3),
			RetryBackoff:   getEnvAsDuration("EXCHANGE_RETRY_BACKOFF", 500*time.Millisecond),
			RequestTimeout: getEnvAsDuration("EXCHANGE_REQUEST_TIMEOUT", 10*time.Second),
			TradesPageSize: getEnvAsInt("TRADES_PAGE_SIZE", 30),
			TradesMaxPages: getEnvAsInt("TRADES_MAX_PAGES", 10),
		},
		Notification: NotificationConfig{
			SlackURL:     getEnv("SLACK_URL", "https://slack.com/api/chat.postMessage"),
			SlackToken:   getEnv("SLACK_BOT_TOKEN", ""),
			ChannelInfo:  getEnv("SLACK_CHANNEL_INFO", ""),
			ChannelError: getEnv("SLACK_CHANNEL_ERROR", ""),
		},
		Bot: BotConfig{
			Env:               getEnv("ENV", "dev"),
			ProductIDs:        getEnvAsList("PRODUCT_IDS", []string{"GMO-BTC"}),
			InvocationTimeout: getEnvAsDuration("INVOCATION_TIMEOUT", 50*time.Second),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: getEnv("PUSHGATEWAY_URL", ""),
			JobName:        getEnv("METRICS_JOB", "vcautotrade"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// Секрет биржи хранится только в зашифрованном виде
	if c.Exchange.APISecret != "" && c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required to decrypt GMO_API_SECRET")
	}

	if c.Security.EncryptionKey != "" && len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	if c.Security.OperatorTokenHash != "" && !strings.HasPrefix(c.Security.OperatorTokenHash, "$2") {
		return fmt.Errorf("OPERATOR_TOKEN_HASH must be a bcrypt hash")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Exchange.MaxRetries < 0 {
		return fmt.Errorf("EXCHANGE_MAX_RETRIES cannot be negative, got %d", c.Exchange.MaxRetries)
	}

	if c.Exchange.MaxRetries > 10 {
		return fmt.Errorf("EXCHANGE_MAX_RETRIES should not exceed 10, got %d", c.Exchange.MaxRetries)
	}

	if c.Exchange.RateLimit <= 0 {
		return fmt.Errorf("EXCHANGE_RATE_LIMIT must be positive, got %v", c.Exchange.RateLimit)
	}

	if c.Exchange.RequestTimeout <= 0 {
		return fmt.Errorf("EXCHANGE_REQUEST_TIMEOUT must be positive, got %v", c.Exchange.RequestTimeout)
	}

	if c.Exchange.TradesPageSize < 1 || c.Exchange.TradesPageSize > 100 {
		return fmt.Errorf("TRADES_PAGE_SIZE must be between 1 and 100, got %d", c.Exchange.TradesPageSize)
	}

	if c.Exchange.TradesMaxPages < 1 {
		return fmt.Errorf("TRADES_MAX_PAGES must be positive, got %d", c.Exchange.TradesMaxPages)
	}

	// Запуск должен укладываться в минутный интервал планировщика
	if c.Bot.InvocationTimeout <= 0 || c.Bot.InvocationTimeout > time.Minute {
		return fmt.Errorf("INVOCATION_TIMEOUT must be in (0, 1m], got %v", c.Bot.InvocationTimeout)
	}

	if len(c.Bot.ProductIDs) == 0 {
		return fmt.Errorf("PRODUCT_IDS must list at least one product")
	}

	return nil
}

// ValidateTrader проверяет параметры, без которых торговый запуск невозможен
func (c *Config) ValidateTrader() error {
	if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
		return fmt.Errorf("GMO_API_KEY and GMO_API_SECRET are required")
	}
	_, err := c.Products()
	return err
}

// ValidateOperator проверяет параметры операторского API
func (c *Config) ValidateOperator() error {
	if c.Security.OperatorTokenHash == "" {
		return fmt.Errorf("OPERATOR_TOKEN_HASH is required for the operator API")
	}
	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList читает список через запятую, пустые элементы отбрасываются
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
