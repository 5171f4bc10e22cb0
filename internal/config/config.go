package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	Secret    SecretConfig
	RateLimit RateLimitConfig
	Pin       PinConfig
	Otp       OtpConfig
	Push      PushConfig
	Session   SessionConfig
	Risk      RiskConfig
	Events    EventsConfig
	WebAuthn  WebAuthnConfig
	Chain     ChainConfig
}

type ServerConfig struct {
	Port        string
	MetricsPort string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	URL string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type SecretConfig struct {
	AppSecret       string
	ChallengeExpiry time.Duration
}

type RateLimitConfig struct {
	Window      time.Duration
	MaxAttempts int
}

type PinConfig struct {
	MaxAttempts     int
	LockoutDuration time.Duration
}

type OtpConfig struct {
	Length      int
	Expiry      time.Duration
	MaxAttempts int
}

type PushConfig struct {
	Timeout time.Duration
}

type SessionConfig struct {
	TTL time.Duration
}

type RiskConfig struct {
	MediumThreshold float64
	HighThreshold   float64
	BlockThreshold  float64
	FingerprintSalt string
}

type EventsConfig struct {
	QueueSize      int
	ExportInterval time.Duration
}

type WebAuthnConfig struct {
	RPDisplayName string
	RPID          string
	RPOrigins     []string
}

type ChainConfig struct {
	// Methods is the ordered fallback chain, e.g. "platform,pin,sms,push".
	Methods []string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			MetricsPort: getEnv("METRICS_PORT", "9090"),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "sentra"),
			Password: getEnv("DB_PASSWORD", "sentra_secret"),
			Name:     getEnv("DB_NAME", "sentra_auth"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "sentra"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "sentra_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "sentra-security-events"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Secret: SecretConfig{
			AppSecret:       getEnv("APP_SECRET", "change-me-in-production"),
			ChallengeExpiry: getEnvAsDuration("CHALLENGE_TOKEN_EXPIRY", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Window:      getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			MaxAttempts: getEnvAsInt("RATE_LIMIT_MAX_ATTEMPTS", 10),
		},
		Pin: PinConfig{
			MaxAttempts:     getEnvAsInt("PIN_MAX_ATTEMPTS", 5),
			LockoutDuration: getEnvAsDuration("PIN_LOCKOUT_DURATION", 15*time.Minute),
		},
		Otp: OtpConfig{
			Length:      getEnvAsInt("OTP_LENGTH", 6),
			Expiry:      getEnvAsDuration("OTP_EXPIRY", 5*time.Minute),
			MaxAttempts: getEnvAsInt("OTP_MAX_ATTEMPTS", 3),
		},
		Push: PushConfig{
			Timeout: getEnvAsDuration("PUSH_TIMEOUT", 2*time.Minute),
		},
		Session: SessionConfig{
			TTL: getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		},
		Risk: RiskConfig{
			MediumThreshold: getEnvAsFloat("RISK_MEDIUM_THRESHOLD", 0.3),
			HighThreshold:   getEnvAsFloat("RISK_HIGH_THRESHOLD", 0.6),
			BlockThreshold:  getEnvAsFloat("RISK_BLOCK_THRESHOLD", 0.8),
			FingerprintSalt: getEnv("FINGERPRINT_SALT", "sentra-device-fp-v1"),
		},
		Events: EventsConfig{
			QueueSize:      getEnvAsInt("EVENT_QUEUE_SIZE", 1000),
			ExportInterval: getEnvAsDuration("EVENT_EXPORT_INTERVAL", 1*time.Hour),
		},
		WebAuthn: WebAuthnConfig{
			RPDisplayName: getEnv("WEBAUTHN_RP_DISPLAY_NAME", "Sentra"),
			RPID:          getEnv("WEBAUTHN_RP_ID", "localhost"),
			RPOrigins:     getEnvAsList("WEBAUTHN_RP_ORIGINS", "http://localhost:3001"),
		},
		Chain: ChainConfig{
			Methods: getEnvAsList("AUTH_FALLBACK_CHAIN", "platform,pin,sms,push"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
