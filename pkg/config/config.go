// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// OAuthClient holds the OAuth application settings for one connector.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

type Config struct {
	Env      string
	HTTPAddr string

	// Secret encryption. EncryptionKey is mandatory in prod unless
	// InsecureKeyless is set explicitly (dev-only plaintext mode).
	EncryptionKey   string
	InsecureKeyless bool

	// Stores
	MongoURL    string
	MongoDB     string
	RedisURL    string
	DatabaseURL string // tenants registry (postgres); empty -> in-memory

	// OAuth clients per connector id
	Jira       OAuthClient
	Confluence OAuthClient

	// Ephemeral OAuth sessions
	SessionTTL time.Duration

	// Outbound vendor calls
	VendorTimeout time.Duration

	// Optional bearer auth on the exposed surface
	Issuer   string
	Audience string
	JWKSURL  string

	// Optional connector catalog overrides (yaml)
	CatalogPath string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:             env("HUB_ENV", "dev"),
		HTTPAddr:        env("HUB_HTTP_ADDR", ":8080"),
		EncryptionKey:   env("ENCRYPTION_KEY", ""),
		InsecureKeyless: envBool("INSECURE_KEYLESS", false),
		MongoURL:        env("MONGODB_URL", ""),
		MongoDB:         env("MONGODB_DB", "connectorhub"),
		RedisURL:        env("REDIS_URL", ""),
		DatabaseURL:     env("DATABASE_URL", ""),
		Jira: OAuthClient{
			ClientID:     env("JIRA_CLIENT_ID", ""),
			ClientSecret: env("JIRA_CLIENT_SECRET", ""),
			RedirectURI:  env("JIRA_REDIRECT_URI", ""),
		},
		Confluence: OAuthClient{
			ClientID:     env("CONFLUENCE_CLIENT_ID", ""),
			ClientSecret: env("CONFLUENCE_CLIENT_SECRET", ""),
			RedirectURI:  env("CONFLUENCE_REDIRECT_URI", ""),
		},
		SessionTTL:    envDur("OAUTH_SESSION_TTL_SEC", 600) * time.Second,
		VendorTimeout: envDur("VENDOR_TIMEOUT_SEC", 20) * time.Second,
		Issuer:        env("OIDC_ISSUER", ""),
		Audience:      env("OIDC_AUDIENCE", "connectorhub"),
		JWKSURL:       env("JWKS_URL", ""),
		CatalogPath:   env("CONNECTOR_CATALOG_PATH", ""),
	}
	if cfg.EncryptionKey == "" {
		if cfg.Env == "prod" && !cfg.InsecureKeyless {
			log.Fatal("ENCRYPTION_KEY not set, refusing to start in prod (set INSECURE_KEYLESS=true only for local development)")
		}
		log.Println("[WARN] ENCRYPTION_KEY not set, stored tokens will NOT be encrypted (dev insecure mode)")
	}
	if cfg.MongoURL == "" {
		log.Println("[WARN] MONGODB_URL not set, using in-memory credential store for dev")
	}
	if cfg.RedisURL == "" {
		log.Println("[WARN] REDIS_URL not set, using in-memory OAuth session store for dev")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, _ := strconv.ParseBool(v)
		return b
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
