package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // 実行環境にタイムゾーンDBがなくても TIMEZONE を解決できるようにする
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Telegram
	BotToken        string
	BotUsername     string
	TelegramAppID   int
	TelegramAppHash string
	TelegramRate    float64

	// Business
	TimeZone        *time.Location
	ConversationTTL time.Duration

	// Reminder
	ReminderSweepInterval time.Duration
	ReminderTolerance     time.Duration
	ReminderSendRate      float64

	// Mirror
	GoogleCredentialsFile string
	MirrorMaxConcurrent   int
	MirrorTimeout         time.Duration

	// Server
	ServerPort    string
	WebAppBaseURL string
	TrustProxy    bool

	// Observability
	SentryDSN string
	AppEnv    string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、または設定値が矛盾する場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BotToken = os.Getenv("BOT_TOKEN")
	if cfg.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}

	cfg.TelegramAppID = getEnvInt("TELEGRAM_APP_ID", 0)
	if cfg.TelegramAppID == 0 {
		missing = append(missing, "TELEGRAM_APP_ID")
	}

	cfg.TelegramAppHash = os.Getenv("TELEGRAM_APP_HASH")
	if cfg.TelegramAppHash == "" {
		missing = append(missing, "TELEGRAM_APP_HASH")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	tzName := getEnvString("TIMEZONE", "Europe/Moscow")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}
	cfg.TimeZone = loc

	// Optional fields with defaults
	cfg.BotUsername = getEnvString("BOT_USERNAME", "")
	cfg.TelegramRate = getEnvFloat("TELEGRAM_SEND_RATE", 25)
	cfg.ConversationTTL = getEnvDuration("CONVERSATION_TTL", 24*time.Hour)
	cfg.ReminderSweepInterval = getEnvDuration("REMINDER_SWEEP_INTERVAL", 60*time.Second)
	cfg.ReminderTolerance = getEnvDuration("REMINDER_TOLERANCE", 40*time.Second)
	cfg.ReminderSendRate = getEnvFloat("REMINDER_SEND_RATE", 20)
	cfg.GoogleCredentialsFile = getEnvString("GOOGLE_CREDENTIALS_FILE", "")
	cfg.MirrorMaxConcurrent = getEnvInt("MIRROR_MAX_CONCURRENT", 4)
	cfg.MirrorTimeout = getEnvDuration("MIRROR_TIMEOUT", 20*time.Second)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.WebAppBaseURL = strings.TrimRight(getEnvString("WEBAPP_BASE_URL", ""), "/")
	cfg.TrustProxy = getEnvBool("TRUST_PROXY", false)
	cfg.SentryDSN = getEnvString("SENTRY_DSN", "")
	cfg.AppEnv = getEnvString("APP_ENV", "production")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値同士の整合性を検証する。
// スイープ間隔が許容幅の2倍以上だと、どのスイープにも一致しないリマインダーが生じる。
func (c *Config) Validate() error {
	if c.ReminderTolerance <= 0 {
		return fmt.Errorf("REMINDER_TOLERANCE must be positive: %v", c.ReminderTolerance)
	}
	if c.ReminderSweepInterval <= 0 {
		return fmt.Errorf("REMINDER_SWEEP_INTERVAL must be positive: %v", c.ReminderSweepInterval)
	}
	if c.ReminderSweepInterval >= 2*c.ReminderTolerance {
		return fmt.Errorf("REMINDER_SWEEP_INTERVAL (%v) must be shorter than twice REMINDER_TOLERANCE (%v)",
			c.ReminderSweepInterval, c.ReminderTolerance)
	}
	if c.MirrorMaxConcurrent < 1 {
		return fmt.Errorf("MIRROR_MAX_CONCURRENT must be at least 1: %d", c.MirrorMaxConcurrent)
	}
	if c.ReminderSendRate <= 0 || c.TelegramRate <= 0 {
		return fmt.Errorf("send rates must be positive")
	}
	return nil
}

// WebAppURL は時刻選択ページのURLを返す。WEBAPP_BASE_URL が未設定なら空文字。
func (c *Config) WebAppURL() string {
	if c.WebAppBaseURL == "" {
		return ""
	}
	return c.WebAppBaseURL + "/webapp/time"
}

// MirrorEnabled はスプレッドシート連携の認証情報が設定されているかどうかを返す。
func (c *Config) MirrorEnabled() bool {
	return c.GoogleCredentialsFile != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
