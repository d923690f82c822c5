// seed inserts development members for local testing.
// Idempotent: a member whose login id already exists is skipped.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"member-service/internal/config"
	"member-service/internal/db"
	"member-service/internal/db/migrate"
	identitydomain "member-service/internal/identity/domain"
	identityrepo "member-service/internal/identity/repository"
	"member-service/internal/security"
	userdomain "member-service/internal/user/domain"
	userrepo "member-service/internal/user/repository"
)

const (
	devPassword  = "password123"
	devCompanyID = "acme"
)

type seedMember struct {
	id      string
	loginID string
	name    string
	role    string
}

var members = []seedMember{
	{id: "00000000-0000-0000-0000-00000000a11c", loginID: "alice@example.com", name: "Alice", role: userdomain.RoleAdmin},
	{id: "00000000-0000-0000-0000-0000000000b0", loginID: "bob@example.com", name: "Bob", role: userdomain.RoleMember},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if err := migrate.Run(cfg.DatabaseURL, migrate.Up); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	users := userrepo.NewPostgresRepository(pool)
	shadows := identityrepo.NewPostgresRepository(pool)
	tx := db.NewTransactor(pool)
	hasher := security.NewHasher(cfg.BcryptCost)

	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	for _, m := range members {
		existing, err := users.GetByLoginID(ctx, m.loginID)
		if err != nil {
			log.Fatalf("seed check %s: %v", m.loginID, err)
		}
		if existing != nil {
			log.Printf("seed: %s exists, skipping", m.loginID)
			continue
		}
		now := time.Now().UTC()
		err = tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := users.Create(ctx, &userdomain.User{
				ID:        m.id,
				LoginID:   m.loginID,
				Status:    userdomain.UserStatusActive,
				Role:      m.role,
				CompanyID: devCompanyID,
				CreatedAt: now,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
			if err := users.CreateProfile(ctx, &userdomain.Profile{
				UserID:    m.id,
				Name:      m.name,
				Email:     m.loginID,
				CreatedAt: now,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
			return shadows.Create(ctx, &identitydomain.Shadow{
				UserID:       m.id,
				PasswordHash: passwordHash,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		})
		if err != nil {
			log.Fatalf("create %s: %v", m.loginID, err)
		}
		log.Printf("seed: created %s (%s)", m.loginID, m.role)
	}

	log.Println("Seed completed successfully.")
	for _, m := range members {
		fmt.Printf("Login: %s / %s\n", m.loginID, devPassword)
	}
}
