package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values. Sensitive data
// has no in-code defaults and must come from the config file or environment.
type AppConfig struct {
	AppPort   string
	GinMode   string
	GinPath   string
	JWTSecret string
	TokenTTL  int // hours

	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	AllowedOrigins     []string
	RateLimitPerMinute int

	// Blog rendering knobs
	PageSize       int
	ExcerptLength  int
	LoginPath      string
	UploadDir      string
	IndexCacheTTLS int // seconds, index/list cache lifetime

	AdminUsernames []string
}

var cfg AppConfig
var loaded bool

// Load reads configuration once during boot. Precedence: config/config.json,
// then defaults for zero values, then environment variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	if err := loadJSON(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Fatalf("invalid config file: %v", err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

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

// Override replaces the cached configuration. Intended for tests.
func Override(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

// loadJSON fills out from a JSON file when present. A missing file is fine;
// malformed JSON is not.
func loadJSON(path string, out *AppConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return json.Unmarshal(b, out)
}

func applyDefaults(c *AppConfig) {
	setIfEmpty(&c.AppPort, "8080")
	setIfEmpty(&c.GinMode, "release")
	setIfEmpty(&c.GinPath, "logs/gin.log")
	setIfEmpty(&c.DBHost, "127.0.0.1")
	setIfEmpty(&c.DBPort, "3306")
	setIfEmpty(&c.DBUser, "pulse")
	setIfEmpty(&c.DBName, "pulse")
	setIfEmpty(&c.RedisHost, "127.0.0.1")
	setIfEmpty(&c.LogLevel, "info")
	setIfEmpty(&c.LogPath, "logs/app.log")
	setIfEmpty(&c.LoginPath, "/auth/login")
	setIfEmpty(&c.UploadDir, filepath.Join("static", "uploads"))
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 72
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
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = 60
	}
	if c.PageSize <= 0 {
		c.PageSize = 10
	}
	if c.ExcerptLength <= 0 {
		c.ExcerptLength = 15
	}
	if c.IndexCacheTTLS <= 0 {
		c.IndexCacheTTLS = 20
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}

func applyEnvOverrides(c *AppConfig) {
	overrideString(&c.AppPort, "APP_PORT")
	overrideString(&c.GinMode, "GIN_MODE")
	overrideString(&c.GinPath, "GIN_LOG_PATH")
	overrideString(&c.JWTSecret, "JWT_SECRET")
	overrideInt(&c.TokenTTL, "TOKEN_TTL_HOURS")

	overrideString(&c.DatabaseURI, "DATABASE_URI")
	overrideString(&c.DBHost, "DB_HOST")
	overrideString(&c.DBPort, "DB_PORT")
	overrideString(&c.DBUser, "DB_USER")
	overrideString(&c.DBPassword, "DB_PASSWORD")
	overrideString(&c.DBName, "DB_NAME")

	overrideString(&c.RedisHost, "REDIS_HOST")
	overrideInt(&c.RedisPort, "REDIS_PORT")
	overrideInt(&c.RedisDB, "REDIS_DB")
	overrideString(&c.RedisPassword, "REDIS_PASSWORD")

	overrideString(&c.LogLevel, "LOG_LEVEL")
	overrideString(&c.LogPath, "LOG_PATH")
	overrideInt(&c.LogMaxSizeMB, "LOG_MAX_SIZE_MB")
	overrideInt(&c.LogMaxBackups, "LOG_MAX_BACKUPS")
	overrideInt(&c.LogMaxAgeDays, "LOG_MAX_AGE_DAYS")
	overrideBool(&c.LogCompress, "LOG_COMPRESS")

	overrideList(&c.AllowedOrigins, "ALLOWED_ORIGINS")
	overrideInt(&c.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")

	overrideInt(&c.PageSize, "PAGE_SIZE")
	overrideInt(&c.ExcerptLength, "EXCERPT_LENGTH")
	overrideString(&c.LoginPath, "LOGIN_PATH")
	overrideString(&c.UploadDir, "UPLOAD_DIR")
	overrideInt(&c.IndexCacheTTLS, "INDEX_CACHE_TTL_SECONDS")

	overrideList(&c.AdminUsernames, "ADMIN_USERNAMES")
}

func setIfEmpty(target *string, val string) {
	if *target == "" {
		*target = val
	}
}

func overrideString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func overrideInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func overrideBool(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

func overrideList(target *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var items []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			items = append(items, p)
		}
	}
	if len(items) > 0 {
		*target = items
	}
}
