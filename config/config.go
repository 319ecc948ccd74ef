package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Payment     PaymentConfig
	Transfer    TransferConfig
	Catalog     CatalogConfig
	Reservation ReservationConfig
	Breaker     BreakerConfig
	Idempotency IdempotencyConfig
	Queue       QueueConfig
	LogLevel    string
}

type ServerConfig struct {
	Port      string
	JWTSecret string
	GinMode   string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// PaymentConfig Stripe 金流設定
type PaymentConfig struct {
	StripeSecretKey string
	StripeBaseURL   string // 空字串代表使用 Stripe 官方 API
	Timeout         time.Duration
}

// TransferConfig 票務系統轉讓 API 設定
type TransferConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// CatalogConfig 票務系統活動目錄 API 設定
type CatalogConfig struct {
	BaseURL    string
	APIKey     string
	SeasonCode string
	Timeout    time.Duration
}

// ReservationConfig 保留逾時與回收排程
type ReservationConfig struct {
	TTL          time.Duration
	ReapInterval time.Duration
	ReapBatch    int
}

type BreakerConfig struct {
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration
}

type IdempotencyConfig struct {
	TTL time.Duration
}

type QueueConfig struct {
	ClaimMinIdleTime   time.Duration
	MaxRetryCount      int
	ReadGroupBlockTime time.Duration
}

var AppConfig *Config

func LoadConfig() *Config {
	// .env 不存在時忽略，環境變數優先
	_ = godotenv.Load()

	AppConfig = &Config{
		Server:      GetServerConfig(),
		Database:    GetDatabaseConfig(),
		Redis:       GetRedisConfig(),
		Payment:     GetPaymentConfig(),
		Transfer:    GetTransferConfig(),
		Catalog:     GetCatalogConfig(),
		Reservation: GetReservationConfig(),
		Breaker:     GetBreakerConfig(),
		Idempotency: IdempotencyConfig{TTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour)},
		Queue:       GetQueueConfig(),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	return AppConfig
}

func LoadTestConfig() *Config {
	testConfig := &DatabaseConfig{
		Host:     "localhost",
		Port:     "5433", // 測試 DB 用 5433 port
		User:     "postgres",
		Password: "postgres",
		DBName:   "test_db",
		SSLMode:  "disable",
		MaxConns: 10,
		MinConns: 1,
	}

	testRedisConfig := RedisConfig{
		Host:     "localhost",
		Port:     "6380", // 測試 Redis 用 6380 port
		Password: "",
		DB:       1,
	}

	return &Config{
		Server:   ServerConfig{Port: "0", JWTSecret: "test-secret", GinMode: "test"},
		Database: *testConfig,
		Redis:    testRedisConfig,
		Payment:  PaymentConfig{StripeSecretKey: "sk_test_dummy", Timeout: 2 * time.Second},
		Transfer: TransferConfig{Timeout: 2 * time.Second},
		Catalog:  CatalogConfig{SeasonCode: "TEST", Timeout: 2 * time.Second},
		Reservation: ReservationConfig{
			TTL:          time.Minute,
			ReapInterval: 100 * time.Millisecond,
			ReapBatch:    10,
		},
		Breaker:     BreakerConfig{MaxConsecutiveFailures: 5, OpenTimeout: time.Second},
		Idempotency: IdempotencyConfig{TTL: time.Minute},
		Queue: QueueConfig{
			ClaimMinIdleTime:   time.Second,
			MaxRetryCount:      3,
			ReadGroupBlockTime: 200 * time.Millisecond,
		},
		LogLevel: "debug",
	}
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", "change-me"),
		GinMode:   getEnv("GIN_MODE", "release"),
	}
}

func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "postgres"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
		MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
	}
}

func GetRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

func GetPaymentConfig() PaymentConfig {
	return PaymentConfig{
		StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
		StripeBaseURL:   getEnv("STRIPE_BASE_URL", ""),
		Timeout:         getEnvDuration("PAYMENT_TIMEOUT", 10*time.Second),
	}
}

func GetTransferConfig() TransferConfig {
	return TransferConfig{
		BaseURL: getEnv("TRANSFER_BASE_URL", "http://localhost:3002"),
		APIKey:  getEnv("TRANSFER_API_KEY", ""),
		Timeout: getEnvDuration("TRANSFER_TIMEOUT", 10*time.Second),
	}
}

func GetCatalogConfig() CatalogConfig {
	return CatalogConfig{
		BaseURL:    getEnv("CATALOG_BASE_URL", "http://localhost:3002"),
		APIKey:     getEnv("CATALOG_API_KEY", ""),
		SeasonCode: getEnv("CATALOG_SEASON_CODE", ""),
		Timeout:    getEnvDuration("CATALOG_TIMEOUT", 5*time.Second),
	}
}

func GetReservationConfig() ReservationConfig {
	return ReservationConfig{
		TTL:          getEnvDuration("RESERVATION_TTL", 15*time.Minute),
		ReapInterval: getEnvDuration("RESERVATION_REAP_INTERVAL", time.Minute),
		ReapBatch:    getEnvInt("RESERVATION_REAP_BATCH", 100),
	}
}

func GetBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxConsecutiveFailures: uint32(getEnvInt("BREAKER_MAX_FAILURES", 5)),
		OpenTimeout:            getEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
	}
}

func GetQueueConfig() QueueConfig {
	return QueueConfig{
		ClaimMinIdleTime:   getEnvDuration("QUEUE_CLAIM_MIN_IDLE", 5*time.Second),
		MaxRetryCount:      getEnvInt("QUEUE_MAX_RETRY", 5),
		ReadGroupBlockTime: getEnvDuration("QUEUE_READ_BLOCK", 2*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		panic(err)
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		panic(err)
	}
	return d
}
