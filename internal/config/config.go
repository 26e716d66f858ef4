// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/makersgallery/internal/logger"
	"github.com/joho/godotenv"
	"golang.org/x/net/idna"
)

// StorageBackend は永続化先の種類。
type StorageBackend string

const (
	// StoragePostgres はPostgreSQLに保存する。
	StoragePostgres StorageBackend = "postgres"
	// StorageMemory はプロセス内メモリに保存する。開発用。
	StorageMemory StorageBackend = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageBackend    StorageBackend
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Session
	SessionMaxAge int
	BcryptCost    int

	// Auth
	AuthAddressDomain   string
	SignupRedirectDelay time.Duration
	LoginRedirectDelay  time.Duration

	// Site
	WebRoot        string
	MakersFile     string
	ProtectedPages []string

	// Contact
	ContactEndpoint  string
	ContactAccessKey string
	ContactTimeout   time.Duration

	// Worker
	ReconcileInterval time.Duration

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel slog.Level
}

// LoadDotEnv はカレントディレクトリの.envを読み込む。
// 既に設定されている環境変数は上書きしない。ファイルがなければ何もしない。
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	slog.Info("loaded environment file", slog.String("path", path))
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.StorageBackend = StorageBackend(strings.ToLower(getEnvString("STORAGE_BACKEND", string(StoragePostgres))))
	switch cfg.StorageBackend {
	case StoragePostgres, StorageMemory:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q (must be postgres or memory)", cfg.StorageBackend)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StorageBackend == StoragePostgres {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	domain, err := normalizeDomain(getEnvString("AUTH_ADDRESS_DOMAIN", "makergallery.local"))
	if err != nil {
		return nil, err
	}
	cfg.AuthAddressDomain = domain

	level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 0)
	cfg.SignupRedirectDelay = getEnvDuration("SIGNUP_REDIRECT_DELAY", 2*time.Second)
	cfg.LoginRedirectDelay = getEnvDuration("LOGIN_REDIRECT_DELAY", 1500*time.Millisecond)
	cfg.WebRoot = getEnvString("WEB_ROOT", "web")
	cfg.MakersFile = getEnvString("MAKERS_FILE", "web/makers.json")
	cfg.ProtectedPages = getEnvList("PROTECTED_PAGES", []string{"profile.html"})
	cfg.ContactEndpoint = getEnvString("CONTACT_ENDPOINT", "https://api.web3forms.com/submit")
	cfg.ContactAccessKey = getEnvString("CONTACT_ACCESS_KEY", "")
	cfg.ContactTimeout = getEnvDuration("CONTACT_TIMEOUT", 10*time.Second)
	cfg.ReconcileInterval = getEnvDuration("RECONCILE_INTERVAL", 24*time.Hour)
	if cfg.ReconcileInterval <= 0 {
		return nil, fmt.Errorf("invalid RECONCILE_INTERVAL %s (must be positive)", cfg.ReconcileInterval)
	}
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")

	return cfg, nil
}

// normalizeDomain は合成アドレスのドメインをASCII（Punycode）の小文字に正規化する。
func normalizeDomain(domain string) (string, error) {
	ascii, err := idna.Lookup.ToASCII(strings.TrimSpace(domain))
	if err != nil || ascii == "" {
		return "", fmt.Errorf("invalid AUTH_ADDRESS_DOMAIN %q: %v", domain, err)
	}
	return strings.ToLower(ascii), nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの値を読み込む。空要素は除く。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var list []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
