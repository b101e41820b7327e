package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storefront/backend/internal/cache"
	"storefront/backend/internal/config"
	"storefront/backend/internal/httpapi"
	"storefront/backend/internal/invoice"
	"storefront/backend/internal/ratelimit"
	"storefront/backend/internal/recommendation"
	"storefront/backend/internal/service"
	"storefront/backend/internal/store"
	"storefront/backend/internal/store/memory"
	pgstore "storefront/backend/internal/store/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(config.Load())
		},
	}

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Metro storefront backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve)
	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	return root
}

// app is the wired HTTP handler plus whatever must be closed on shutdown.
type app struct {
	handler http.Handler
	closers []func() error
}

func (a *app) close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}
}

func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	built := &app{closers: make([]func() error, 0, 2)}

	var repo store.Repository
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback: %w", err)
		}
		repo = pg
		built.closers = append(built.closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	var cacheStore cache.RecommendationCache = cache.NewMemoryRecommendationCache()
	var limiter ratelimit.Limiter = ratelimit.NewMemory(5, time.Minute)
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		redisCache := cache.NewRedisRecommendationCache(client)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using in-process cache and limiter", err)
			_ = client.Close()
		} else {
			cacheStore = redisCache
			limiter = ratelimit.NewRedis(client, "auth", 5, time.Minute)
			built.closers = append(built.closers, client.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: in-process")
	}

	recommender := recommendation.NewEngine(repo, cacheStore, time.Duration(cfg.RecommendationTTLSecs)*time.Second)
	svc := service.New(repo, recommender, cfg.LowStockThreshold)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, svc)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin:       cfg.AllowedOrigin,
		AuthLimiter:         limiter,
		Invoices:            invoice.NewRenderer(cfg.StoreName),
		RecommendationLimit: cfg.RecommendationLimit,
	})
	built.handler = api.Handler()
	return built, nil
}

func runServer(cfg config.Config) error {
	if err := validateSecurityConfig(cfg); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	built, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer built.close()

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           built.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("storefront backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	log.Println("server stopped")
	return nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.SeedAdminPassword != "" {
		if err := validatePasswordStrength(cfg.SeedAdminPassword); err != nil {
			return fmt.Errorf("SEED_ADMIN_PASSWORD is too weak: %w", err)
		}
	}
	return nil
}

// validatePasswordStrength rejects short, single-character and well-known passwords.
func validatePasswordStrength(password string) error {
	if len(password) < 10 {
		return fmt.Errorf("at least 10 characters required")
	}
	known := map[string]bool{
		"password123": true, "admin12345": true, "1234567890": true,
		"qwertyuiop": true, "letmein123": true, "changeme123": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}
	if strings.Count(password, password[:1]) == len(password) {
		return fmt.Errorf("single-character password not allowed")
	}
	return nil
}
