// cmd/connector-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"connectorhub/internal/gateway"
	"connectorhub/pkg/config"
	"connectorhub/pkg/connectors"
	"connectorhub/pkg/connectors/atlassian"
	"connectorhub/pkg/credentials"
	"connectorhub/pkg/db"
	"connectorhub/pkg/logger"
	"connectorhub/pkg/middleware"
	"connectorhub/pkg/oauth2flow"
	"connectorhub/pkg/secrets"
	"connectorhub/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	var box *secrets.Box
	if cfg.EncryptionKey != "" {
		b, err := secrets.NewBox(cfg.EncryptionKey)
		if err != nil {
			log.Fatalw("encryption key", "err", err)
		}
		box = b
	} else {
		// config.Load already refused this in prod.
		log.Warnw("ENCRYPTION_KEY not set, storing tokens in plaintext (dev only)")
		box = secrets.NewInsecureBox()
	}

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)
	mdb := db.MustMongo(cfg, log)

	var prov tenants.Provider
	if pool != nil {
		prov = tenants.NewPostgresProvider(pool, log)
		if err := tenants.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		if err := tenants.SeedFromEnv(context.Background(), pool, os.Getenv("TENANT_SEED_JSON")); err != nil {
			log.Warnw("seed", "err", err)
		}
	} else {
		prov = tenants.NewMemoryProviderFromEnv(log)
	}

	var creds credentials.Store
	if mdb != nil {
		s, err := credentials.NewMongoStore(mdb)
		if err != nil {
			log.Fatalw("credential store", "err", err)
		}
		creds = s
	} else {
		log.Warnw("MONGODB_URL not set, credentials held in memory only")
		creds = credentials.NewMemoryStore()
	}

	var sessions oauth2flow.SessionStore
	if rdb != nil {
		sessions = oauth2flow.NewRedisSessionStore(rdb, cfg.SessionTTL)
	} else {
		sessions = oauth2flow.NewMemorySessionStore(cfg.SessionTTL)
	}

	lc := oauth2flow.NewLifecycle(creds, box, log, cfg.VendorTimeout)
	deps := atlassian.Deps{
		Lifecycle:   lc,
		Sessions:    sessions,
		Credentials: creds,
		Log:         log,
		HTTPTimeout: cfg.VendorTimeout,
	}

	reg := connectors.NewRegistry(creds)
	reg.Register(atlassian.NewJira(cfg.Jira, deps))
	reg.Register(atlassian.NewConfluence(cfg.Confluence, deps))

	catalog, err := gateway.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatalw("catalog", "err", err, "path", cfg.CatalogPath)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing(cfg))
	r.Use(middleware.JWTAuth(cfg))
	r.Use(middleware.WithTenant(prov))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	gateway.NewHandler(reg, catalog, log).Routes(r)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("connector-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("connector-service stopped")
}
