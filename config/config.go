package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	liveAPIEndpoint    = "https://mws.amazonservices.com/OffAmazonPayments/2013-01-01"
	sandboxAPIEndpoint = "https://mws.amazonservices.com/OffAmazonPayments_Sandbox/2013-01-01"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	AmazonPayments    AmazonPaymentsConfig
	Checkout          CheckoutConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type AmazonPaymentsConfig struct {
	AccessKey         string
	SecretKey         string
	SellerID          string
	ClientID          string
	APIEndpoint       string
	APIVersion        string
	IsLive            bool
	Currency          string
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
	RequestBurst      int
}

type CheckoutConfig struct {
	ShippingCountries []string
	SourceType        string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	isLive := getBoolEnv("AMAZON_PAYMENTS_IS_LIVE", false)
	defaultEndpoint := sandboxAPIEndpoint
	if isLive {
		defaultEndpoint = liveAPIEndpoint
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "amazon-payments-service"),
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		AmazonPayments: AmazonPaymentsConfig{
			AccessKey:         getEnv("AMAZON_PAYMENTS_ACCESS_KEY", ""),
			SecretKey:         getEnv("AMAZON_PAYMENTS_SECRET_KEY", ""),
			SellerID:          getEnv("AMAZON_PAYMENTS_SELLER_ID", ""),
			ClientID:          getEnv("AMAZON_PAYMENTS_CLIENT_ID", ""),
			APIEndpoint:       getEnv("AMAZON_PAYMENTS_API_ENDPOINT", defaultEndpoint),
			APIVersion:        getEnv("AMAZON_PAYMENTS_API_VERSION", "2013-01-01"),
			IsLive:            isLive,
			Currency:          strings.ToUpper(getEnv("AMAZON_PAYMENTS_CURRENCY", "USD")),
			HTTPTimeout:       getSecondsEnv("AMAZON_PAYMENTS_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			RequestsPerSecond: getFloatEnv("AMAZON_PAYMENTS_REQUESTS_PER_SECOND", 2),
			RequestBurst:      getIntEnv("AMAZON_PAYMENTS_REQUEST_BURST", 10),
		},
		Checkout: CheckoutConfig{
			ShippingCountries: getListEnv("CHECKOUT_SHIPPING_COUNTRIES", []string{"US"}),
			SourceType:        getEnv("CHECKOUT_SOURCE_TYPE", "Amazon Payments"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	items := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
