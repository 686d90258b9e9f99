package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config files or the environment.
type AppConfig struct {
	AppPort            string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database
	DBDriver    string // mysql or sqlite
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string
	// Sessions
	SessionSecret         string
	SessionStore          string // database, redis or memory
	SessionTTLMinutes     int    // inactivity window
	SessionMaxAgeHours    int    // absolute token lifetime
	SessionCleanupMinutes int
	SessionCookieName     string
	SessionCookieSecure   bool
	// Redis for the redis session store
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// SessionTTL is the sliding inactivity window of a session.
func (c AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// SessionMaxAge bounds how long a session token stays valid regardless of activity.
func (c AppConfig) SessionMaxAge() time.Duration {
	return time.Duration(c.SessionMaxAgeHours) * time.Hour
}

// SessionCleanupInterval is how often expired database sessions are swept.
func (c AppConfig) SessionCleanupInterval() time.Duration {
	return time.Duration(c.SessionCleanupMinutes) * time.Minute
}

// ErrMissingSessionSecret is returned when no session signing secret is configured.
var ErrMissingSessionSecret = errors.New("SESSION_SECRET must be set in config or environment")

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	c, err := load(filepath.Join("config", "config.json"))
	if err != nil {
		log.Fatal(err)
	}

	cfg = c
	loaded = true
	return cfg
}

// load applies the precedence: JSON file -> defaults -> environment variable overrides.
func load(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return c, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&c)
	if err := applyEnvOverrides(&c); err != nil {
		return c, err
	}
	if c.SessionSecret == "" {
		return c, ErrMissingSessionSecret
	}
	return c, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			if f, ok := v.(float64); ok {
				return int(f)
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}

	section := func(name string) map[string]any {
		if m, ok := raw[name].(map[string]any); ok {
			return m
		}
		// flat files keep every key at the top level
		return raw
	}

	app := section("app")
	out.AppPort = getString(app, "AppPort")
	out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
	out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
	out.GinMode = getString(app, "GinMode")
	out.GinPath = getString(app, "GinPath")

	db := section("database")
	out.DBDriver = getString(db, "DBDriver")
	out.DatabaseURI = getString(db, "DatabaseURI")
	out.DBHost = getString(db, "DBHost")
	out.DBPort = getString(db, "DBPort")
	out.DBUser = getString(db, "DBUser")
	out.DBPassword = getString(db, "DBPassword")
	out.DBName = getString(db, "DBName")
	out.SQLitePath = getString(db, "SQLitePath")

	sess := section("session")
	out.SessionSecret = getString(sess, "SessionSecret")
	out.SessionStore = getString(sess, "SessionStore")
	out.SessionTTLMinutes = getInt(sess, "SessionTTLMinutes")
	out.SessionMaxAgeHours = getInt(sess, "SessionMaxAgeHours")
	out.SessionCleanupMinutes = getInt(sess, "SessionCleanupMinutes")
	out.SessionCookieName = getString(sess, "SessionCookieName")
	out.SessionCookieSecure = getBool(sess, "SessionCookieSecure")

	rds := section("redis")
	out.RedisHost = getString(rds, "RedisHost")
	out.RedisPort = getInt(rds, "RedisPort")
	out.RedisDB = getInt(rds, "RedisDB")
	out.RedisPassword = getString(rds, "RedisPassword")

	lg := section("log")
	out.LogLevel = getString(lg, "LogLevel")
	out.LogPath = getString(lg, "LogPath")
	out.LogMaxSizeMB = getInt(lg, "LogMaxSizeMB")
	out.LogMaxBackups = getInt(lg, "LogMaxBackups")
	out.LogMaxAgeDays = getInt(lg, "LogMaxAgeDays")
	out.LogCompress = getBool(lg, "LogCompress")
	return nil
}

// applyDefaults fills zero values.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "3000"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.GinPath == "" {
		c.GinPath = "logs/gin.log"
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
		c.DBName = "techblog"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "techblog.db"
	}
	if c.SessionStore == "" {
		c.SessionStore = "database"
	}
	if c.SessionTTLMinutes == 0 {
		c.SessionTTLMinutes = 24 * 60
	}
	if c.SessionMaxAgeHours == 0 {
		c.SessionMaxAgeHours = 30 * 24
	}
	if c.SessionCleanupMinutes == 0 {
		c.SessionCleanupMinutes = 15
	}
	if c.SessionCookieName == "" {
		c.SessionCookieName = "techblog_session"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
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
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	var firstErr error
	setInt := func(key string, dst *int) {
		v := getEnv(key, "")
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("config: invalid integer value %s=%q: %w", key, v, err)
			}
			return
		}
		*dst = n
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
	setString("GIN_MODE", &c.GinMode)
	setString("GIN_PATH", &c.GinPath)
	setInt("RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute)
	c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)

	setString("DB_DRIVER", &c.DBDriver)
	setString("DATABASE_URI", &c.DatabaseURI)
	setString("DB_HOST", &c.DBHost)
	setString("DB_PORT", &c.DBPort)
	setString("DB_USER", &c.DBUser)
	setString("DB_PASSWORD", &c.DBPassword)
	setString("DB_NAME", &c.DBName)
	setString("SQLITE_PATH", &c.SQLitePath)

	setString("SESSION_SECRET", &c.SessionSecret)
	setString("SESSION_STORE", &c.SessionStore)
	setInt("SESSION_TTL_MINUTES", &c.SessionTTLMinutes)
	setInt("SESSION_MAX_AGE_HOURS", &c.SessionMaxAgeHours)
	setInt("SESSION_CLEANUP_MINUTES", &c.SessionCleanupMinutes)
	setString("SESSION_COOKIE_NAME", &c.SessionCookieName)
	setBool("SESSION_COOKIE_SECURE", &c.SessionCookieSecure)

	setString("REDIS_HOST", &c.RedisHost)
	setInt("REDIS_PORT", &c.RedisPort)
	setInt("REDIS_DB", &c.RedisDB)
	setString("REDIS_PASSWORD", &c.RedisPassword)

	setString("LOG_LEVEL", &c.LogLevel)
	setString("LOG_PATH", &c.LogPath)
	setInt("LOG_MAX_SIZE_MB", &c.LogMaxSizeMB)
	setInt("LOG_MAX_BACKUPS", &c.LogMaxBackups)
	setInt("LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays)
	setBool("LOG_COMPRESS", &c.LogCompress)
	return firstErr
}

func readListEnv(key string, defaults []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaults
	}
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
