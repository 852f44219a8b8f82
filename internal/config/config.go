package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Logging     LoggingConfig   `yaml:"logging"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Geocoding   GeocodingConfig `yaml:"geocoding"`
	Widget      WidgetConfig    `yaml:"widget"`
	Tracing     TracingConfig   `yaml:"tracing"`
	CSRF        CSRFConfig      `yaml:"csrf"`
	Auth        AuthConfig      `yaml:"auth"`
	Environment string          `yaml:"environment"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConnections int    `yaml:"max_connections"`
	MigrationsPath string `yaml:"migrations_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RateLimitConfig struct {
	PublicPerMinute   int      `yaml:"public_per_minute"`
	GeocodePerMinute  int      `yaml:"geocode_per_minute"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`
}

// GeocodingConfig configures the upstream Nominatim client.
type GeocodingConfig struct {
	// ServiceURL is used when a widget instance does not override it.
	ServiceURL string        `yaml:"service_url"`
	Email      string        `yaml:"email"`
	RateLimit  float64       `yaml:"rate_limit"`
	Timeout    time.Duration `yaml:"timeout"`
}

// WidgetConfig holds the site-wide defaults for newly created widget settings.
type WidgetConfig struct {
	Zoom               int           `yaml:"zoom"`
	CenterLat          float64       `yaml:"center_lat"`
	CenterLng          float64       `yaml:"center_lng"`
	TileServerURL      string        `yaml:"tile_server_url"`
	SuppressClickFor   time.Duration `yaml:"suppress_click_for"`
	NearestWithinM     float64       `yaml:"nearest_within_m"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

type CSRFConfig struct {
	AuthKey string `yaml:"auth_key"`
	Secure  bool   `yaml:"secure"`
}

// AuthConfig guards the admin pages with a signed session cookie.
type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	JWTExpiry         time.Duration `yaml:"jwt_expiry"`
	AdminUsername     string        `yaml:"admin_username"`
	AdminPasswordHash string        `yaml:"admin_password_hash"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; existing variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvInt("SERVER_PORT", 8080),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 10),
			MigrationsPath: getEnv("DATABASE_MIGRATIONS_PATH", "internal/storage/postgres/migrations"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute:   getEnvInt("RATE_LIMIT_PUBLIC", 120),
			GeocodePerMinute:  getEnvInt("RATE_LIMIT_GEOCODE", 30),
			TrustedProxyCIDRs: getEnvList("TRUSTED_PROXY_CIDRS"),
		},
		Geocoding: GeocodingConfig{
			ServiceURL: getEnv("GEOCODING_SERVICE_URL", "https://nominatim.openstreetmap.org/"),
			Email:      getEnv("GEOCODING_EMAIL", "geowidget@localhost"),
			RateLimit:  getEnvFloat("GEOCODING_RATE_LIMIT", 1.0),
			Timeout:    getEnvDuration("GEOCODING_TIMEOUT", 5*time.Second),
		},
		Widget: WidgetConfig{
			Zoom:               getEnvInt("WIDGET_DEFAULT_ZOOM", 12),
			CenterLat:          getEnvFloat("WIDGET_DEFAULT_CENTER_LAT", 0),
			CenterLng:          getEnvFloat("WIDGET_DEFAULT_CENTER_LNG", 0),
			TileServerURL:      getEnv("WIDGET_TILE_SERVER_URL", "http://{s}.tile.osm.org/{z}/{x}/{y}.png"),
			SuppressClickFor:   getEnvDuration("WIDGET_SUPPRESS_CLICK_FOR", 500*time.Millisecond),
			NearestWithinM:     getEnvFloat("WIDGET_NEAREST_WITHIN_M", 0),
			SessionIdleTimeout: getEnvDuration("WIDGET_SESSION_IDLE_TIMEOUT", 30*time.Minute),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			Exporter:     getEnv("TRACING_EXPORTER", "stdout"),
			ServiceName:  getEnv("TRACING_SERVICE_NAME", "geowidget"),
			OTLPEndpoint: getEnv("TRACING_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		CSRF: CSRFConfig{
			AuthKey: getEnv("CSRF_AUTH_KEY", ""),
			Secure:  getEnvBool("CSRF_SECURE", false),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", ""),
			JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
			AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads the environment configuration and overlays the YAML file at path.
// Keys absent from the file keep their environment value.
func LoadFile(path string) (Config, error) {
	cfg, err := Load()
	if err != nil {
		return Config{}, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Widget.Zoom < 0 || c.Widget.Zoom > 18 {
		return fmt.Errorf("WIDGET_DEFAULT_ZOOM must be between 0 and 18, got %d", c.Widget.Zoom)
	}
	if c.Geocoding.RateLimit <= 0 {
		return fmt.Errorf("GEOCODING_RATE_LIMIT must be positive")
	}
	if c.IsProduction() && len(c.CSRF.AuthKey) != 32 {
		return fmt.Errorf("CSRF_AUTH_KEY must be exactly 32 bytes in production")
	}
	if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes in production")
	}
	return nil
}

// IsProduction reports whether the server runs with production safeguards.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
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
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
