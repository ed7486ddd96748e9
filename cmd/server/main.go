package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"balcaopos/backend/internal/cache"
	"balcaopos/backend/internal/config"
	"balcaopos/backend/internal/domain"
	"balcaopos/backend/internal/httpapi"
	"balcaopos/backend/internal/service"
	"balcaopos/backend/internal/store"
	"balcaopos/backend/internal/store/memory"
	pgstore "balcaopos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
		bootstrapAdmin(ctx, repo)
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	drafts := cache.DraftCache(cache.NoopDraftCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisDraftCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop draft cache", err)
		} else {
			drafts = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("draft cache: redis")
		}
	} else {
		log.Println("draft cache: noop")
	}

	svc := service.New(repo, drafts, time.Duration(cfg.DraftTTLMinutes)*time.Minute, cfg.StoreName)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	root := http.NewServeMux()
	root.Handle("/", api.Handler())
	if cfg.MetricsEnabled {
		root.Handle("/metrics", promhttp.Handler())
		log.Println("metrics: enabled on /metrics")
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// bootstrapAdmin seeds a first admin account into an empty users table so a
// fresh database is not locked out. The password comes from
// SEED_ADMIN_PASSWORD; without it nothing is created.
func bootstrapAdmin(ctx context.Context, repo store.Repository) {
	users, err := repo.ListUsers(ctx)
	if err != nil || len(users) > 0 {
		return
	}

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		log.Println("WARNING: users table is empty and SEED_ADMIN_PASSWORD is unset; no account can log in")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("bootstrap admin: hash failed: %v", err)
		return
	}
	if err := repo.CreateUser(ctx, domain.UserAccount{
		Username:  "admin",
		Password:  string(hash),
		Role:      domain.RoleAdmin,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("bootstrap admin: create failed: %v", err)
		return
	}
	log.Println("bootstrap admin account created")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
