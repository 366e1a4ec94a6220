package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the API and the CLI read from the environment.
type Config struct {
	Port        string
	GinMode     string
	Database    DatabaseConfig
	JWTSecret   []byte
	CORSOrigins []string
	Storage     StorageConfig
	CPanel      CPanelConfig

	// SecureCookies switches auth cookies to Secure + SameSite=None for cross-origin hosting.
	SecureCookies bool

	ApprovalCodeTTL time.Duration
	StatsSchedule   string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the postgres connection URL.
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

// StorageConfig points at the object storage project serving the image buckets.
type StorageConfig struct {
	URL        string
	ServiceKey string
}

func (s StorageConfig) Enabled() bool {
	return s.URL != "" && s.ServiceKey != ""
}

// CPanelConfig carries the hosting control-panel credentials used to create staff mailboxes.
// Any missing credential switches provisioning to record-only mode.
type CPanelConfig struct {
	Host     string
	User     string
	APIToken string
	Domain   string
	QuotaMB  int
}

func (c CPanelConfig) Enabled() bool {
	return c.Host != "" && c.User != "" && c.APIToken != ""
}

// Load reads the dotenv file at path (if any) and then the process environment.
func Load(path string) *Config {
	if err := godotenv.Load(path); err != nil {
		log.Printf("No %s file found or error loading it", path)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment.
func FromEnv() *Config {
	return &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: os.Getenv("GIN_MODE"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "postgres"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWTSecret:     jwtSecret(),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
		SecureCookies: os.Getenv("GIN_MODE") == "release" || os.Getenv("RENDER") != "",
		Storage: StorageConfig{
			URL:        strings.TrimRight(os.Getenv("STORAGE_URL"), "/"),
			ServiceKey: os.Getenv("STORAGE_SERVICE_KEY"),
		},
		CPanel: CPanelConfig{
			Host:     os.Getenv("CPANEL_HOST"),
			User:     os.Getenv("CPANEL_USER"),
			APIToken: os.Getenv("CPANEL_API_TOKEN"),
			Domain:   strings.ToLower(os.Getenv("CPANEL_DOMAIN")),
			QuotaMB:  getEnvInt("CPANEL_QUOTA_MB", 250),
		},
		ApprovalCodeTTL: getEnvDuration("APPROVAL_CODE_TTL", 30*time.Second),
		StatsSchedule:   getEnv("STATS_BROADCAST_SCHEDULE", "@every 30s"),
	}
}

func jwtSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		secret = "default_super_secret_key" // development only
	}
	return []byte(secret)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[CONFIG] %s=%q is not an integer, using %d", key, v, def)
		return def
	}
	return i
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[CONFIG] %s=%q is not a valid duration, using %s", key, v, def)
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
