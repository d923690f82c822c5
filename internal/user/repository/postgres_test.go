package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"member-service/internal/db/dbtest"
	"member-service/internal/platform/apperr"
	"member-service/internal/user/domain"
)

func TestMain(m *testing.M) {
	os.Exit(dbtest.Main(m, 15435))
}

func TestPostgresRepository_CreateAndLookup(t *testing.T) {
	repo := NewPostgresRepository(dbtest.Pool(t))
	ctx := context.Background()
	now := time.Now().UTC()
	u := &domain.User{ID: uuid.New().String(), LoginID: "alice@example.com", CompanyID: "acme", CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Role != domain.RoleMember || u.Status != domain.UserStatusActive {
		t.Errorf("defaults not applied: role=%q status=%q", u.Role, u.Status)
	}

	byLogin, err := repo.GetByLoginID(ctx, "alice@example.com")
	if err != nil || byLogin == nil || byLogin.ID != u.ID || byLogin.CompanyID != "acme" {
		t.Fatalf("GetByLoginID = %+v, %v", byLogin, err)
	}
	byID, err := repo.GetByID(ctx, u.ID)
	if err != nil || byID == nil || !byID.Active() {
		t.Fatalf("GetByID = %+v, %v", byID, err)
	}
	missing, err := repo.GetByLoginID(ctx, "nobody@example.com")
	if err != nil || missing != nil {
		t.Errorf("GetByLoginID(missing) = %v, %v", missing, err)
	}

	dup := &domain.User{ID: uuid.New().String(), LoginID: "alice@example.com", CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(ctx, dup); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate login id err = %v, want ErrAlreadyExists", err)
	}
	if err := repo.Create(ctx, &domain.User{ID: uuid.New().String()}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("empty login id err = %v, want ErrInvalidArgument", err)
	}
}

func TestPostgresRepository_Profile(t *testing.T) {
	repo := NewPostgresRepository(dbtest.Pool(t))
	ctx := context.Background()
	now := time.Now().UTC()
	u := &domain.User{ID: uuid.New().String(), LoginID: "bob@example.com", CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	p := &domain.Profile{UserID: u.ID, Name: "Bob", Email: "bob@example.com", CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	got, err := repo.GetProfile(ctx, u.ID)
	if err != nil || got == nil || got.Name != "Bob" {
		t.Fatalf("GetProfile = %+v, %v", got, err)
	}
}
