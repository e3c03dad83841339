package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string
	APIKey   string // required; compared against the x-api-key header

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	CountryPrefix        string
	Channels             []string
	OTPChannel           string
	NotificationsChannel string

	PollerEnabled       bool
	PollInterval        time.Duration
	DispatchItemTimeout time.Duration
	OTPMessageTemplate  string

	ReconnectDelay        time.Duration
	SessionDir            string
	SessionBackupBucket   string // empty disables S3 credential backup
	SessionBackupInterval time.Duration

	RedisAddr            string // empty keeps the subscription cache in-process
	RedisPassword        string
	RedisDB              int
	SubscriptionCacheTTL time.Duration // 0 = no expiry

	RabbitMQURL    string // empty disables outcome events
	OTPEventsQueue string

	SNSRegion     string
	AlertTopicARN string
	AlertEmailTo  string
	SMTPHost      string
	SMTPPort      string
	SMTPFrom      string
	SMTPUsername  string
	SMTPPassword  string

	CommandsFile   string
	AllowedOrigins []string // CORS allowed origins
	// TrustProxyHeaders keys rate limits on X-Forwarded-For; set only behind a proxy that overwrites it.
	TrustProxyHeaders bool
}

// DynamoTables holds the DynamoDB table name for each collection.
type DynamoTables struct {
	Users         string
	Subscriptions string
	OTPLogs       string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("PORT", getEnv("APP_PORT", "3000")),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		APIKey:   getEnv("API_KEY", ""),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			Subscriptions: getEnv("DYNAMO_TABLE_SUBSCRIPTIONS", "subscriptions"),
			OTPLogs:       getEnv("DYNAMO_TABLE_OTP_LOGS", "otp_logs"),
		},

		CountryPrefix:        getEnv("COUNTRY_PREFIX", "249"),
		Channels:             splitList(getEnv("CHANNELS", "otp,notifications")),
		OTPChannel:           getEnv("OTP_CHANNEL", "otp"),
		NotificationsChannel: getEnv("NOTIFICATIONS_CHANNEL", "notifications"),

		PollerEnabled:       getEnvBool("POLLER_ENABLED", true),
		PollInterval:        getEnvDuration("POLL_INTERVAL", 5*time.Second),
		DispatchItemTimeout: getEnvDuration("DISPATCH_ITEM_TIMEOUT", 30*time.Second),
		OTPMessageTemplate:  getEnv("OTP_MESSAGE_TEMPLATE", "رمز التحقق الخاص بك في وصل-لي هو: {OTP}"),

		ReconnectDelay:        getEnvDuration("RECONNECT_DELAY", 5*time.Second),
		SessionDir:            getEnv("SESSION_DIR", "./sessions"),
		SessionBackupBucket:   getEnv("SESSION_BACKUP_BUCKET", ""),
		SessionBackupInterval: getEnvDuration("SESSION_BACKUP_INTERVAL", 5*time.Minute),

		RedisAddr:            redisAddr(),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		SubscriptionCacheTTL: getEnvDuration("SUBSCRIPTION_CACHE_TTL", 0),

		RabbitMQURL:    getEnv("RABBITMQ_URL", getEnv("AMQP_URL", "")),
		OTPEventsQueue: getEnv("OTP_EVENTS_QUEUE", "otp.outcomes"),

		SNSRegion:     getEnv("SNS_REGION", getEnv("AWS_REGION", "us-east-1")),
		AlertTopicARN: getEnv("ALERT_TOPIC_ARN", ""),
		AlertEmailTo:  getEnv("ALERT_EMAIL_TO", ""),
		SMTPHost:      getEnv("SMTP_HOST", "localhost"),
		SMTPPort:      getEnv("SMTP_PORT", "1025"),
		SMTPFrom:      getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),

		CommandsFile:   getEnv("COMMANDS_FILE", ""),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),

		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
	}
}

// Validate reports configuration errors that must stop the process at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("API_KEY is required"))
	}
	if c.CountryPrefix == "" || strings.Trim(c.CountryPrefix, "0123456789") != "" {
		errs = append(errs, fmt.Errorf("COUNTRY_PREFIX must be digits, got %q", c.CountryPrefix))
	}
	if len(c.Channels) == 0 {
		errs = append(errs, errors.New("CHANNELS must name at least one channel"))
	}
	if c.PollerEnabled && !c.HasChannel(c.OTPChannel) {
		errs = append(errs, fmt.Errorf("OTP_CHANNEL %q is not listed in CHANNELS", c.OTPChannel))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if !strings.Contains(c.OTPMessageTemplate, "{OTP}") {
		errs = append(errs, errors.New("OTP_MESSAGE_TEMPLATE must contain {OTP}"))
	}
	return errors.Join(errs...)
}

// HasChannel reports whether name is one of the configured channels.
func (c *Config) HasChannel(name string) bool {
	for _, ch := range c.Channels {
		if ch == name {
			return true
		}
	}
	return false
}

func redisAddr() string {
	host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
	if host != "" && port != "" {
		return host + ":" + port
	}
	return getEnv("REDIS_ADDR", "")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("5s") or bare milliseconds ("5000").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
