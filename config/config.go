package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig holds environment driven configuration values.
// Secrets never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Redis for caching and cross-instance comment relay
	RedisHost         string
	RedisPort         int
	RedisDB           int
	RedisPassword     string
	RedisRelayEnabled bool
	RedisRelayChannel string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Content classifier used by the admission gate. An empty key disables moderation.
	ClassifierAPIKey     string
	ClassifierModel      string
	ClassifierBaseURL    string
	ClassifierTimeoutSec int
}

// ClassifierTimeout returns the bound on a single classification call.
func (c AppConfig) ClassifierTimeout() time.Duration {
	return time.Duration(c.ClassifierTimeoutSec) * time.Second
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// .env only seeds variables that are not already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}

	c, err := LoadFrom(filepath.Join("config", "config.json"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if c.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// LoadFrom builds a configuration with precedence config file -> defaults -> environment.
// A missing file is not an error.
func LoadFrom(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return c, err
	}
	applyDefaults(&c)
	if err := applyEnvOverrides(&c); err != nil {
		return c, err
	}
	return c, nil
}

// loadJSONConfig reads the grouped JSON config file into out.
func loadJSONConfig(path string, out *AppConfig) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("parse %s: %w", path, err)
	}

	out.AppPort = v.GetString("app.AppPort")
	out.JWTSecret = v.GetString("app.JWTSecret")
	out.RateLimitPerMinute = v.GetInt("app.RateLimitPerMinute")
	out.AllowedOrigins = v.GetStringSlice("app.AllowedOrigins")

	out.GinMode = v.GetString("gin.Mode")
	out.GinPath = v.GetString("gin.LogPath")

	out.DBDriver = v.GetString("database.Driver")
	out.DatabaseURI = v.GetString("database.DatabaseURI")
	out.DBHost = v.GetString("database.DBHost")
	out.DBPort = v.GetString("database.DBPort")
	out.DBUser = v.GetString("database.DBUser")
	out.DBPassword = v.GetString("database.DBPassword")
	out.DBName = v.GetString("database.DBName")

	out.RedisHost = v.GetString("redis.RedisHost")
	out.RedisPort = v.GetInt("redis.RedisPort")
	out.RedisDB = v.GetInt("redis.RedisDB")
	out.RedisPassword = v.GetString("redis.RedisPassword")
	out.RedisRelayEnabled = v.GetBool("redis.RelayEnabled")
	out.RedisRelayChannel = v.GetString("redis.RelayChannel")

	out.LogLevel = v.GetString("log.Level")
	out.LogPath = v.GetString("log.Path")
	out.LogMaxSizeMB = v.GetInt("log.MaxSizeMB")
	out.LogMaxBackups = v.GetInt("log.MaxBackups")
	out.LogMaxAgeDays = v.GetInt("log.MaxAgeDays")
	out.LogCompress = v.GetBool("log.Compress")
	// Gin settings may also live under log
	if s := v.GetString("log.GinMode"); s != "" {
		out.GinMode = s
	}
	if s := v.GetString("log.GinPath"); s != "" {
		out.GinPath = s
	}

	out.ClassifierAPIKey = v.GetString("classifier.APIKey")
	out.ClassifierModel = v.GetString("classifier.Model")
	out.ClassifierBaseURL = v.GetString("classifier.BaseURL")
	out.ClassifierTimeoutSec = v.GetInt("classifier.TimeoutSec")

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "versevilla"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.RedisRelayChannel == "" {
		c.RedisRelayChannel = "forum:comments"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.ClassifierModel == "" {
		c.ClassifierModel = "gemini-1.5-flash"
	}
	if c.ClassifierBaseURL == "" {
		c.ClassifierBaseURL = "https://generativelanguage.googleapis.com"
	}
	if c.ClassifierTimeoutSec == 0 {
		c.ClassifierTimeoutSec = 8
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	var errs []error
	setInt := func(key string, dst *int) {
		if v := getEnv(key, ""); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid integer value %s=%q: %w", key, v, err))
				return
			}
			*dst = i
		}
	}
	setString := func(key string, dst *string) {
		if v := getEnv(key, ""); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := getEnv(key, ""); v != "" {
			*dst = v == "true"
		}
	}

	setString("APP_PORT", &c.AppPort)
	setString("PORT", &c.AppPort)
	setString("JWT_SECRET", &c.JWTSecret)
	setInt("RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute)
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	setString("GIN_MODE", &c.GinMode)
	setString("GIN_PATH", &c.GinPath)

	setString("DB_DRIVER", &c.DBDriver)
	setString("DATABASE_URI", &c.DatabaseURI)
	setString("DB_HOST", &c.DBHost)
	setString("DB_PORT", &c.DBPort)
	setString("DB_USER", &c.DBUser)
	setString("DB_PASSWORD", &c.DBPassword)
	setString("DB_NAME", &c.DBName)

	setString("REDIS_HOST", &c.RedisHost)
	setInt("REDIS_PORT", &c.RedisPort)
	setInt("REDIS_DB", &c.RedisDB)
	setString("REDIS_PASSWORD", &c.RedisPassword)
	setBool("REDIS_RELAY_ENABLED", &c.RedisRelayEnabled)
	setString("REDIS_RELAY_CHANNEL", &c.RedisRelayChannel)

	setString("LOG_LEVEL", &c.LogLevel)
	setString("LOG_PATH", &c.LogPath)
	setInt("LOG_MAX_SIZE_MB", &c.LogMaxSizeMB)
	setInt("LOG_MAX_BACKUPS", &c.LogMaxBackups)
	setInt("LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays)
	setBool("LOG_COMPRESS", &c.LogCompress)

	setString("GEMINI_API_KEY", &c.ClassifierAPIKey)
	setString("CLASSIFIER_MODEL", &c.ClassifierModel)
	setString("CLASSIFIER_BASE_URL", &c.ClassifierBaseURL)
	setInt("CLASSIFIER_TIMEOUT_SEC", &c.ClassifierTimeoutSec)

	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
