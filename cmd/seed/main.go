// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"auth-session-engine/internal/config"
	"auth-session-engine/internal/credential/domain"
	"auth-session-engine/internal/credential/repository"
	"auth-session-engine/internal/db"
	"auth-session-engine/internal/security"
)

const (
	devUserID       = "d0000000-0000-4000-8000-000000000001"
	devUserEmail    = "dev@example.com"
	devPassword     = "password123"
	unverifiedID    = "d0000000-0000-4000-8000-000000000002"
	unverifiedEmail = "unverified@example.com"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	creds := repository.NewPostgresRepository(pool)

	existing, err := creds.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	if err := creds.Create(ctx, &domain.Credential{
		ID:            devUserID,
		Email:         devUserEmail,
		PasswordHash:  passwordHash,
		EmailVerified: true,
		Roles:         []string{"admin"},
	}); err != nil {
		log.Fatalf("create dev user: %v", err)
	}
	if err := creds.Create(ctx, &domain.Credential{
		ID:            unverifiedID,
		Email:         unverifiedEmail,
		PasswordHash:  passwordHash,
		EmailVerified: false,
	}); err != nil {
		log.Fatalf("create unverified user: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s (user id %s)\n", devUserEmail, devPassword, devUserID)
	fmt.Printf("Unverified login: %s / %s (user id %s)\n", unverifiedEmail, devPassword, unverifiedID)
}
