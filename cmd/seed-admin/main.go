// seed-admin creates or resets the admin login.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	SEED_ADMIN_PASSWORD=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/models"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminName     = "Administrator"
)

func envOr(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	ctx := context.Background()

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "SEED_ADMIN_PASSWORD is required")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	user, err := models.UpsertUser(ctx, &models.NewUser{
		Username: envOr("SEED_ADMIN_USERNAME", defaultAdminUsername),
		Name:     envOr("SEED_ADMIN_NAME", defaultAdminName),
		Password: password,
		Role:     models.UserRoleAdmin,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded admin user: username=%q id=%d\n", user.Username, user.ID)
}
