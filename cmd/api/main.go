package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pawbase.org/internal/auth"
	"pawbase.org/internal/config"
	"pawbase.org/internal/httpapi"
	"pawbase.org/internal/obs"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var db *sql.DB
	var store auth.Store
	if dsn := cfg.DSN(); dsn != "" {
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
	} else {
		log.Println("no database configured, using in-memory store")
		store = auth.NewInMemoryStore()
	}

	codec, err := auth.NewTokenCodec(cfg.SecretKey)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	opts := []auth.ServiceOption{
		auth.WithAccessTTL(cfg.AccessTTL()),
		auth.WithRefreshTTL(cfg.RefreshTTL()),
		auth.WithBcryptCost(cfg.BcryptCost),
	}
	// Without a database the configured administrator authenticates against
	// config directly; with one, the principal is seeded below instead.
	if db == nil && cfg.AdminEmail != "" {
		opts = append(opts, auth.WithStaticAdmin(cfg.AdminEmail, cfg.AdminPassword))
	}
	svc, err := auth.NewService(store, codec, opts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	if db != nil && cfg.AdminEmail != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := svc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			cancel()
			log.Fatalf("seed admin: %v", err)
		}
		cancel()
	}

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, version,
		httpapi.WithRateLimit(cfg.RatePerSec, cfg.RateBurst))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting pawbase-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
