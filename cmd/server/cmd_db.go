package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"storefront/backend/internal/config"
	"storefront/backend/internal/domain"
	"storefront/backend/internal/httpapi"
	"storefront/backend/internal/store"
	"storefront/backend/internal/store/memory"
	pgstore "storefront/backend/internal/store/postgres"
)

// openPostgres loads config and connects; both db commands need DATABASE_URL.
func openPostgres(ctx context.Context) (*pgstore.Store, config.Config, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, cfg, errors.New("DATABASE_URL must be set")
	}
	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, cfg, err
	}
	return pg, cfg, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pg, _, err := openPostgres(ctx)
			if err != nil {
				return err
			}
			defer pg.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "Running migrations…")
			return pg.Migrate(ctx)
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog and bootstrap the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pg, cfg, err := openPostgres(ctx)
			if err != nil {
				return err
			}
			defer pg.Close()

			if cfg.SeedAdminPassword == "" {
				return errors.New("SEED_ADMIN_PASSWORD must be set to seed the admin account")
			}
			if err := validatePasswordStrength(cfg.SeedAdminPassword); err != nil {
				return fmt.Errorf("SEED_ADMIN_PASSWORD is too weak: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Running seeders…")
			return seed(ctx, pg, cfg)
		},
	}
}

// seed is idempotent: products are only loaded into an empty catalog and an
// existing admin email is left alone.
func seed(ctx context.Context, repo store.Repository, cfg config.Config) error {
	products, err := repo.ListProducts(ctx)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		for _, p := range memory.DemoProducts() {
			if _, err := repo.CreateProduct(ctx, p); err != nil {
				return fmt.Errorf("seed product %s: %w", p.Name, err)
			}
		}
		log.Printf("[seed] loaded %d products", len(memory.DemoProducts()))
	} else {
		log.Printf("[seed] catalog has %d products, skipping", len(products))
	}

	hash, err := httpapi.HashPassword(cfg.SeedAdminPassword)
	if err != nil {
		return err
	}
	admin := domain.Employee{FirstName: "Store", LastName: "Admin", Email: cfg.SeedAdminEmail, Role: domain.RoleAdmin}
	_, err = repo.CreateEmployee(ctx, admin, hash)
	switch {
	case errors.Is(err, store.ErrConflict):
		log.Printf("[seed] admin %s already exists", cfg.SeedAdminEmail)
	case err != nil:
		return fmt.Errorf("seed admin: %w", err)
	default:
		log.Printf("[seed] created admin %s", cfg.SeedAdminEmail)
	}
	return nil
}
