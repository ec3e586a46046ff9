package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	ProviderTwilio = "twilio"
	ProviderSNS    = "aws_sns"
)

type Config struct {
	Server   ServerConfig
	App      AppConfig
	DynamoDB DynamoDBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	OTP      OTPConfig
	SMS      SMSConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type AppConfig struct {
	Env      string
	LogLevel string
}

func (c AppConfig) IsProduction() bool {
	return c.Env == EnvProduction
}

type DynamoDBConfig struct {
	Endpoint  string
	Region    string
	TableName string
}

// RedisConfig describes the shared store. An empty Endpoint means no shared
// store is configured.
type RedisConfig struct {
	Endpoint    string
	Password    string
	DB          int
	DialTimeout time.Duration
	OpTimeout   time.Duration
}

type JWTConfig struct {
	SecretKey     string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type OTPConfig struct {
	Length            int
	Expiry            time.Duration
	MaxVerifyAttempts int
	MaxPerHour        int
	MaxPerDay         int
	HashCost          int
}

type SMSConfig struct {
	// Providers is the order in which delivery channels are tried.
	Providers []string
	Timeout   time.Duration
	// AllowLogFallback lets the dispatcher report success through the
	// log-only channel when every real provider failed.
	AllowLogFallback bool
	Twilio           TwilioConfig
	SNS              SNSConfig
}

type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

func (c TwilioConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.PhoneNumber != ""
}

type SNSConfig struct {
	Enabled  bool
	Region   string
	Endpoint string
}

func Load() (*Config, error) {
	env := strings.ToLower(getEnv("APP_ENV", EnvDevelopment))

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		App: AppConfig{
			Env:      env,
			LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
		DynamoDB: DynamoDBConfig{
			Endpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			Region:    getEnv("DYNAMODB_REGION", "us-east-1"),
			TableName: getEnv("DYNAMODB_TABLE_NAME", "ChemTrack"),
		},
		Redis: RedisConfig{
			Endpoint:    redisEndpoint(),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			OpTimeout:   getEnvAsDuration("REDIS_OP_TIMEOUT", 5*time.Second),
		},
		JWT: JWTConfig{
			SecretKey:     getEnv("JWT_SECRET_KEY", ""),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		OTP: OTPConfig{
			Length:            getEnvAsInt("OTP_LENGTH", 6),
			Expiry:            time.Duration(getEnvAsInt("OTP_EXPIRY_MINUTES", 10)) * time.Minute,
			MaxVerifyAttempts: getEnvAsInt("OTP_MAX_VERIFY_ATTEMPTS", 3),
			MaxPerHour:        getEnvAsInt("MAX_OTP_ATTEMPTS_PER_HOUR", 5),
			MaxPerDay:         getEnvAsInt("MAX_OTP_ATTEMPTS_PER_DAY", 20),
			HashCost:          getEnvAsInt("OTP_HASH_COST", bcrypt.DefaultCost),
		},
		SMS: SMSConfig{
			Providers:        parseProviders(smsProviders()),
			Timeout:          getEnvAsDuration("SMS_TIMEOUT", 10*time.Second),
			AllowLogFallback: env != EnvProduction,
			Twilio: TwilioConfig{
				AccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
				AuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
				PhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
			},
			SNS: SNSConfig{
				Enabled:  getEnvAsBool("SNS_ENABLED", false),
				Region:   getEnv("AWS_REGION", "us-east-1"),
				Endpoint: getEnv("SNS_ENDPOINT", ""),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}

	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 bytes (256 bits)")
	}

	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 10, got %d", c.OTP.Length)
	}
	if c.OTP.Expiry <= 0 {
		return fmt.Errorf("OTP_EXPIRY_MINUTES must be positive")
	}
	if c.OTP.MaxVerifyAttempts <= 0 {
		return fmt.Errorf("OTP_MAX_VERIFY_ATTEMPTS must be positive")
	}
	if c.OTP.MaxPerHour <= 0 || c.OTP.MaxPerDay <= 0 {
		return fmt.Errorf("OTP rate limits must be positive (hour=%d, day=%d)", c.OTP.MaxPerHour, c.OTP.MaxPerDay)
	}
	if c.OTP.HashCost < bcrypt.MinCost || c.OTP.HashCost > bcrypt.MaxCost {
		return fmt.Errorf("OTP_HASH_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	return nil
}

// redisEndpoint prefers REDIS_ENDPOINT and falls back to REDIS_HOST/REDIS_PORT.
func redisEndpoint() string {
	if endpoint := getEnv("REDIS_ENDPOINT", ""); endpoint != "" {
		return endpoint
	}
	host := getEnv("REDIS_HOST", "")
	if host == "" {
		return ""
	}
	return host + ":" + getEnv("REDIS_PORT", "6379")
}

func smsProviders() string {
	if value := getEnv("SMS_PROVIDERS", ""); value != "" {
		return value
	}
	// SMS_PROVIDER names a single preferred provider; the other one still
	// acts as a fallback.
	switch strings.ToLower(strings.TrimSpace(getEnv("SMS_PROVIDER", ""))) {
	case ProviderSNS:
		return ProviderSNS + "," + ProviderTwilio
	default:
		return ProviderTwilio + "," + ProviderSNS
	}
}

func parseProviders(raw string) []string {
	names := lo.Map(strings.Split(raw, ","), func(name string, _ int) string {
		return strings.ToLower(strings.TrimSpace(name))
	})
	return lo.Uniq(lo.Filter(names, func(name string, _ int) bool {
		return name != ""
	}))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
