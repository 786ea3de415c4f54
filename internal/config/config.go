package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Carrier   CarrierConfig
	Shopify   ShopifyConfig
	Breaker   BreakerConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Streams   StreamsConfig
	Calendar  CalendarConfig
	Logging   LoggingConfig
	Tracing   TracingConfig
}

type ServerConfig struct {
	Port           int
	Host           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	TrustedProxies []string
}

type PostgresConfig struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	DB                    string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// DSN returns a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DB, sslMode)
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
	PoolSize  int
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// CarrierConfig points at the HubOn external API. ClientID is not secret.
type CarrierConfig struct {
	APIURL       string
	ClientID     string
	WebURL       string
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff []time.Duration
}

// ShopifyConfig drives provisioning of the local pickup products through the
// Shopify Admin GraphQL API.
type ShopifyConfig struct {
	APIVersion  string
	ProductName string
	MediaURL    string
	HTTPTimeout time.Duration
}

type BreakerConfig struct {
	FailureThreshold    int
	SuccessThreshold    int
	Timeout             time.Duration
	MaxRequestsHalfOpen int
}

type CacheConfig struct {
	HubSettingsTTL time.Duration
	CustomerTTL    time.Duration
	RetryLockTTL   time.Duration
}

// RateLimitConfig bounds storefront requests per shop and client IP within a
// fixed window.
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

type CORSConfig struct {
	AllowOrigins []string
}

type StreamsConfig struct {
	TransportEvents string
}

// CalendarConfig selects the time zone pickup dates are computed in.
type CalendarConfig struct {
	TimeZone string
}

type LoggingConfig struct {
	Level    string
	Encoding string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "10s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_MAX_CONNECTIONS", 10)
	viper.SetDefault("POSTGRES_MAX_IDLE_CONNECTIONS", 5)
	viper.SetDefault("POSTGRES_CONNECTION_MAX_LIFETIME", "1h")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_KEY_PREFIX", "hubon")
	viper.SetDefault("HUBON_HTTP_TIMEOUT", "10s")
	viper.SetDefault("HUBON_MAX_RETRIES", 2)
	viper.SetDefault("HUBON_RETRY_BACKOFF", "200ms,500ms")
	viper.SetDefault("CARRIER_BREAKER_FAILURE_THRESHOLD", 5)
	viper.SetDefault("CARRIER_BREAKER_SUCCESS_THRESHOLD", 2)
	viper.SetDefault("CARRIER_BREAKER_TIMEOUT", "30s")
	viper.SetDefault("CARRIER_BREAKER_HALF_OPEN_MAX", 3)
	viper.SetDefault("HUB_SETTINGS_CACHE_TTL", "300s")
	viper.SetDefault("CUSTOMER_CACHE_TTL", "60s")
	viper.SetDefault("RETRY_LOCK_TTL", "60s")
	viper.SetDefault("SHOPIFY_API_VERSION", "2024-10")
	viper.SetDefault("HUBON_SHIPPING_NAME", "HubOn Local Pickup")
	viper.SetDefault("SHOPIFY_PRODUCT_MEDIA_URL", "https://dev-hubon.s3.us-east-2.amazonaws.com/static/Local.png")
	viper.SetDefault("SHOPIFY_HTTP_TIMEOUT", "15s")
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 120)
	viper.SetDefault("RATE_LIMIT_WINDOW", "60s")
	viper.SetDefault("CORS_ALLOW_ORIGINS", "*")
	viper.SetDefault("STREAM_TRANSPORT_EVENTS", "hubon:transport_events")
	viper.SetDefault("CALENDAR_TIME_ZONE", "UTC")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_ENCODING", "json")
	viper.SetDefault("TRACING_SERVICE_NAME", "hubon-pickup")

	readTimeout, err := parseDurationWithDefault(viper.GetString("SERVER_READ_TIMEOUT"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := parseDurationWithDefault(viper.GetString("SERVER_WRITE_TIMEOUT"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}
	httpTimeout, err := parseDurationWithDefault(viper.GetString("HUBON_HTTP_TIMEOUT"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid HUBON_HTTP_TIMEOUT: %w", err)
	}
	breakerTimeout, err := parseDurationWithDefault(viper.GetString("CARRIER_BREAKER_TIMEOUT"), 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid CARRIER_BREAKER_TIMEOUT: %w", err)
	}
	hubTTL, err := parseDurationWithDefault(viper.GetString("HUB_SETTINGS_CACHE_TTL"), 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid HUB_SETTINGS_CACHE_TTL: %w", err)
	}
	customerTTL, err := parseDurationWithDefault(viper.GetString("CUSTOMER_CACHE_TTL"), time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid CUSTOMER_CACHE_TTL: %w", err)
	}
	retryLockTTL, err := parseDurationWithDefault(viper.GetString("RETRY_LOCK_TTL"), time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_LOCK_TTL: %w", err)
	}
	shopifyTimeout, err := parseDurationWithDefault(viper.GetString("SHOPIFY_HTTP_TIMEOUT"), 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHOPIFY_HTTP_TIMEOUT: %w", err)
	}
	rateLimitWindow, err := parseDurationWithDefault(viper.GetString("RATE_LIMIT_WINDOW"), time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           viper.GetInt("SERVER_PORT"),
			Host:           viper.GetString("SERVER_HOST"),
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			TrustedProxies: splitList(viper.GetString("TRUSTED_PROXIES")),
		},
		Postgres: func() PostgresConfig {
			connMaxLifetime, _ := parseDurationWithDefault(viper.GetString("POSTGRES_CONNECTION_MAX_LIFETIME"), time.Hour)
			return PostgresConfig{
				Host:                  viper.GetString("POSTGRES_HOST"),
				Port:                  viper.GetInt("POSTGRES_PORT"),
				User:                  viper.GetString("POSTGRES_USER"),
				Password:              viper.GetString("POSTGRES_PASSWORD"),
				DB:                    viper.GetString("POSTGRES_DB"),
				SSLMode:               viper.GetString("POSTGRES_SSL_MODE"),
				MaxConnections:        viper.GetInt("POSTGRES_MAX_CONNECTIONS"),
				MaxIdleConnections:    viper.GetInt("POSTGRES_MAX_IDLE_CONNECTIONS"),
				ConnectionMaxLifetime: connMaxLifetime,
			}
		}(),
		Redis: RedisConfig{
			Host:      viper.GetString("REDIS_HOST"),
			Port:      viper.GetInt("REDIS_PORT"),
			Password:  viper.GetString("REDIS_PASSWORD"),
			DB:        viper.GetInt("REDIS_DB"),
			KeyPrefix: viper.GetString("REDIS_KEY_PREFIX"),
			PoolSize:  viper.GetInt("REDIS_POOL_SIZE"),
		},
		Carrier: CarrierConfig{
			APIURL:       strings.TrimRight(viper.GetString("HUBON_API_URL"), "/"),
			ClientID:     viper.GetString("HUBON_CLIENT_ID"),
			WebURL:       viper.GetString("HUBON_WEB_URL"),
			HTTPTimeout:  httpTimeout,
			MaxRetries:   viper.GetInt("HUBON_MAX_RETRIES"),
			RetryBackoff: parseBackoffDurations(viper.GetString("HUBON_RETRY_BACKOFF")),
		},
		Shopify: ShopifyConfig{
			APIVersion:  viper.GetString("SHOPIFY_API_VERSION"),
			ProductName: viper.GetString("HUBON_SHIPPING_NAME"),
			MediaURL:    viper.GetString("SHOPIFY_PRODUCT_MEDIA_URL"),
			HTTPTimeout: shopifyTimeout,
		},
		Breaker: BreakerConfig{
			FailureThreshold:    viper.GetInt("CARRIER_BREAKER_FAILURE_THRESHOLD"),
			SuccessThreshold:    viper.GetInt("CARRIER_BREAKER_SUCCESS_THRESHOLD"),
			Timeout:             breakerTimeout,
			MaxRequestsHalfOpen: viper.GetInt("CARRIER_BREAKER_HALF_OPEN_MAX"),
		},
		Cache: CacheConfig{
			HubSettingsTTL: hubTTL,
			CustomerTTL:    customerTTL,
			RetryLockTTL:   retryLockTTL,
		},
		RateLimit: RateLimitConfig{
			Enabled:  viper.GetBool("RATE_LIMIT_ENABLED"),
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   rateLimitWindow,
		},
		CORS: CORSConfig{
			AllowOrigins: splitList(viper.GetString("CORS_ALLOW_ORIGINS")),
		},
		Streams: StreamsConfig{
			TransportEvents: viper.GetString("STREAM_TRANSPORT_EVENTS"),
		},
		Calendar: CalendarConfig{
			TimeZone: viper.GetString("CALENDAR_TIME_ZONE"),
		},
		Logging: LoggingConfig{
			Level:    viper.GetString("LOG_LEVEL"),
			Encoding: viper.GetString("LOG_ENCODING"),
		},
		Tracing: TracingConfig{
			Enabled:     viper.GetBool("TRACING_ENABLED"),
			ServiceName: viper.GetString("TRACING_SERVICE_NAME"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.validatePostgres(); err != nil {
		return fmt.Errorf("postgres config: %w", err)
	}
	if err := c.validateRedis(); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}
	if err := c.validateCarrier(); err != nil {
		return fmt.Errorf("carrier config: %w", err)
	}
	if err := c.validateShopify(); err != nil {
		return fmt.Errorf("shopify config: %w", err)
	}
	if err := c.validateBreaker(); err != nil {
		return fmt.Errorf("breaker config: %w", err)
	}
	if err := c.validateRateLimit(); err != nil {
		return fmt.Errorf("rate limit config: %w", err)
	}
	if err := c.validateCalendar(); err != nil {
		return fmt.Errorf("calendar config: %w", err)
	}
	return nil
}

func (c *Config) validateServer() error {
	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			return fmt.Errorf("trusted proxy %q is not an IP or CIDR", proxy)
		}
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if c.Postgres.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Postgres.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Postgres.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.Postgres.DB == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Redis.Port == 0 {
		return fmt.Errorf("port is required")
	}
	return nil
}

func (c *Config) validateCarrier() error {
	if c.Carrier.APIURL == "" {
		return fmt.Errorf("api url is required")
	}
	u, err := url.Parse(c.Carrier.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api url must be absolute, got %q", c.Carrier.APIURL)
	}
	if c.Carrier.ClientID == "" {
		return fmt.Errorf("client id is required")
	}
	if c.Carrier.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be greater than 0")
	}
	if c.Carrier.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if len(c.Carrier.RetryBackoff) < c.Carrier.MaxRetries {
		return fmt.Errorf("retry backoff array length (%d) must be >= max retries (%d)", len(c.Carrier.RetryBackoff), c.Carrier.MaxRetries)
	}
	return nil
}

func (c *Config) validateShopify() error {
	if c.Shopify.APIVersion == "" {
		return fmt.Errorf("api version is required")
	}
	if strings.TrimSpace(c.Shopify.ProductName) == "" {
		return fmt.Errorf("product name is required")
	}
	if c.Shopify.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be greater than 0")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if !c.RateLimit.Enabled {
		return nil
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("requests must be greater than 0")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("window must be greater than 0")
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("failure threshold must be greater than 0")
	}
	if c.Breaker.SuccessThreshold <= 0 {
		return fmt.Errorf("success threshold must be greater than 0")
	}
	if c.Breaker.MaxRequestsHalfOpen < c.Breaker.SuccessThreshold {
		return fmt.Errorf("half-open max requests (%d) must be >= success threshold (%d)", c.Breaker.MaxRequestsHalfOpen, c.Breaker.SuccessThreshold)
	}
	return nil
}

func (c *Config) validateCalendar() error {
	if _, err := c.Calendar.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured time zone.
func (c CalendarConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func parseBackoffDurations(backoffStr string) []time.Duration {
	defaults := []time.Duration{200 * time.Millisecond, 500 * time.Millisecond}
	if backoffStr == "" {
		return defaults
	}
	parts := strings.Split(backoffStr, ",")
	durations := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		duration, err := parseDuration(part)
		if err != nil {
			continue
		}
		durations = append(durations, duration)
	}
	if len(durations) == 0 {
		return defaults
	}
	return durations
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	return time.ParseDuration(s)
}

func parseDurationWithDefault(s string, defaultVal time.Duration) (time.Duration, error) {
	if s == "" {
		return defaultVal, nil
	}
	return parseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
