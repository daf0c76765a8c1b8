package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
// Values are layered: defaults, then an optional YAML file, then environment variables
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Order     OrderConfig     `yaml:"order"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Showcase  ShowcaseConfig  `yaml:"showcase"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	LogLevel  string          `yaml:"log_level"`
}

type ServerConfig struct {
	Port            string   `yaml:"port"`
	Host            string   `yaml:"host"`
	ReadTimeout     int      `yaml:"read_timeout"`
	WriteTimeout    int      `yaml:"write_timeout"`
	ShutdownTimeout int      `yaml:"shutdown_timeout"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"` // Valid API keys for the stats and metrics endpoints
}

// OrderConfig configures the order submission pipeline and its outbound transport
type OrderConfig struct {
	EndpointURL       string `yaml:"endpoint_url"`
	Transport         string `yaml:"transport"` // http or amqp
	AMQPURL           string `yaml:"amqp_url"`
	AMQPQueue         string `yaml:"amqp_queue"`
	OptimisticDelayMS int    `yaml:"optimistic_delay_ms"`
	DispatchTimeout   int    `yaml:"dispatch_timeout"`
	MaxAttachmentMB   int    `yaml:"max_attachment_mb"`
	SessionIdleMins   int    `yaml:"session_idle_mins"`
}

// PricingConfig configures the single offer's price and its discount codes
type PricingConfig struct {
	ProductTitle  string           `yaml:"product_title"`
	BasePrice     int64            `yaml:"base_price"`
	Currency      string           `yaml:"currency"`
	DiscountCodes map[string]int64 `yaml:"discount_codes"`
	DiscountFiles []string         `yaml:"discount_files"`
	DiscountURLs  []string         `yaml:"discount_urls"`
	SampleCode    string           `yaml:"sample_code"`
}

// ShowcaseConfig configures the social-proof counters, all intervals in seconds
type ShowcaseConfig struct {
	CounterInterval  int `yaml:"counter_interval"`
	StockInterval    int `yaml:"stock_interval"`
	PurchaseInterval int `yaml:"purchase_interval"`
	PurchaseVisible  int `yaml:"purchase_visible"`
	CountdownHours   int `yaml:"countdown_hours"`
}

type TelemetryConfig struct {
	TracingEndpoint string `yaml:"tracing_endpoint"`
	ServiceName     string `yaml:"service_name"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ReadTimeout:     15,
			WriteTimeout:    15,
			ShutdownTimeout: 30,
			AllowedOrigins:  []string{"*"},
		},
		Auth: AuthConfig{
			APIKeys: []string{"apitest"},
		},
		Order: OrderConfig{
			Transport:         "http",
			AMQPQueue:         "landing.orders",
			OptimisticDelayMS: 50,
			DispatchTimeout:   30,
			MaxAttachmentMB:   10,
			SessionIdleMins:   30,
		},
		Pricing: PricingConfig{
			ProductTitle: "Wizard E-book",
			BasePrice:    135,
			Currency:     "฿",
			DiscountCodes: map[string]int64{
				"WIZ20": 20,
				"WIZ30": 30,
			},
			SampleCode: "WIZ20",
		},
		Showcase: ShowcaseConfig{
			CounterInterval:  5,
			StockInterval:    30,
			PurchaseInterval: 15,
			PurchaseVisible:  4,
			CountdownHours:   24,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "ebook-landing",
		},
		LogLevel: "info",
	}
}

// Load reads configuration from .env, the file named by CONFIG_FILE, and environment variables
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit YAML path; an empty path falls back to CONFIG_FILE
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.ReadTimeout = getEnvAsInt("READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsInt("WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvAsInt("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.AllowedOrigins = getEnvAsSlice("ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Auth.APIKeys = getEnvAsSlice("API_KEYS", c.Auth.APIKeys)

	c.Order.EndpointURL = getEnv("ORDER_ENDPOINT_URL", c.Order.EndpointURL)
	c.Order.Transport = getEnv("ORDER_TRANSPORT", c.Order.Transport)
	c.Order.AMQPURL = getEnv("AMQP_URL", c.Order.AMQPURL)
	c.Order.AMQPQueue = getEnv("AMQP_QUEUE", c.Order.AMQPQueue)
	c.Order.OptimisticDelayMS = getEnvAsInt("ORDER_OPTIMISTIC_DELAY_MS", c.Order.OptimisticDelayMS)
	c.Order.DispatchTimeout = getEnvAsInt("ORDER_DISPATCH_TIMEOUT", c.Order.DispatchTimeout)
	c.Order.MaxAttachmentMB = getEnvAsInt("ORDER_MAX_ATTACHMENT_MB", c.Order.MaxAttachmentMB)
	c.Order.SessionIdleMins = getEnvAsInt("ORDER_SESSION_IDLE_MINS", c.Order.SessionIdleMins)

	c.Pricing.ProductTitle = getEnv("PRODUCT_TITLE", c.Pricing.ProductTitle)
	c.Pricing.BasePrice = int64(getEnvAsInt("PRICE_BASE", int(c.Pricing.BasePrice)))
	c.Pricing.Currency = getEnv("PRICE_CURRENCY", c.Pricing.Currency)
	c.Pricing.DiscountFiles = getEnvAsSlice("DISCOUNT_FILES", c.Pricing.DiscountFiles)
	c.Pricing.DiscountURLs = getEnvAsSlice("DISCOUNT_URLS", c.Pricing.DiscountURLs)
	c.Pricing.SampleCode = getEnv("SAMPLE_DISCOUNT_CODE", c.Pricing.SampleCode)

	if raw := os.Getenv("DISCOUNT_CODES"); raw != "" {
		codes, err := ParseDiscountCodes(raw)
		if err != nil {
			return err
		}
		c.Pricing.DiscountCodes = codes
	}

	c.Showcase.CounterInterval = getEnvAsInt("SHOWCASE_COUNTER_INTERVAL", c.Showcase.CounterInterval)
	c.Showcase.StockInterval = getEnvAsInt("SHOWCASE_STOCK_INTERVAL", c.Showcase.StockInterval)
	c.Showcase.PurchaseInterval = getEnvAsInt("SHOWCASE_PURCHASE_INTERVAL", c.Showcase.PurchaseInterval)
	c.Showcase.PurchaseVisible = getEnvAsInt("SHOWCASE_PURCHASE_VISIBLE", c.Showcase.PurchaseVisible)
	c.Showcase.CountdownHours = getEnvAsInt("SHOWCASE_COUNTDOWN_HOURS", c.Showcase.CountdownHours)

	c.Telemetry.TracingEndpoint = getEnv("TRACING_ENDPOINT", c.Telemetry.TracingEndpoint)
	c.Telemetry.ServiceName = getEnv("SERVICE_NAME", c.Telemetry.ServiceName)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("at least one API key must be configured")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	switch c.Order.Transport {
	case "http":
		u, err := url.Parse(c.Order.EndpointURL)
		if c.Order.EndpointURL == "" || err != nil || !u.IsAbs() {
			return fmt.Errorf("ORDER_ENDPOINT_URL must be an absolute URL")
		}
	case "amqp":
		if c.Order.AMQPURL == "" || c.Order.AMQPQueue == "" {
			return fmt.Errorf("AMQP_URL and AMQP_QUEUE are required for amqp transport")
		}
	default:
		return fmt.Errorf("invalid order transport: %s (must be http or amqp)", c.Order.Transport)
	}

	if c.Order.OptimisticDelayMS <= 0 {
		return fmt.Errorf("ORDER_OPTIMISTIC_DELAY_MS must be positive")
	}
	if c.Order.MaxAttachmentMB <= 0 {
		return fmt.Errorf("ORDER_MAX_ATTACHMENT_MB must be positive")
	}

	if c.Pricing.BasePrice <= 0 {
		return fmt.Errorf("PRICE_BASE must be positive")
	}
	if c.Pricing.Currency == "" {
		return fmt.Errorf("PRICE_CURRENCY is required")
	}
	sc := c.Showcase
	if sc.CounterInterval <= 0 || sc.StockInterval <= 0 || sc.PurchaseInterval <= 0 || sc.PurchaseVisible <= 0 || sc.CountdownHours <= 0 {
		return fmt.Errorf("showcase intervals must be positive")
	}

	for code, amount := range c.Pricing.DiscountCodes {
		if amount <= 0 || amount >= c.Pricing.BasePrice {
			return fmt.Errorf("discount %s must be between 0 and the base price, got %d", code, amount)
		}
	}

	return nil
}

// OptimisticDelay is the delay before the pipeline commits to success
func (o OrderConfig) OptimisticDelay() time.Duration {
	return time.Duration(o.OptimisticDelayMS) * time.Millisecond
}

// MaxAttachmentBytes is the attachment size limit in bytes
func (o OrderConfig) MaxAttachmentBytes() int64 {
	return int64(o.MaxAttachmentMB) << 20
}

// ParseDiscountCodes parses "CODE:AMOUNT,CODE:AMOUNT"
func ParseDiscountCodes(raw string) (map[string]int64, error) {
	codes := make(map[string]int64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, amountStr, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("malformed discount code entry: %q", pair)
		}
		amount, err := strconv.ParseInt(strings.TrimSpace(amountStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed discount amount in %q: %w", pair, err)
		}
		codes[strings.ToUpper(strings.TrimSpace(code))] = amount
	}
	return codes, nil
}

// Helper functions for reading environment variables

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

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
