package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/medical-scheduling/internal/auth"
	"github.com/spec-kit/medical-scheduling/internal/config"
	"github.com/spec-kit/medical-scheduling/internal/domain"
	"github.com/spec-kit/medical-scheduling/internal/repository"
	apperrors "github.com/spec-kit/medical-scheduling/pkg/util"
)

func newAuth(t *testing.T) (*AuthService, repository.UserRepository) {
	t.Helper()
	users := repository.NewMemoryUserRepository()
	cfg := config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4}
	return NewAuthService(cfg, AuthDependencies{UserRepo: users}), users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuth(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, " Doc@Example.com ", "s3cret-pass", "doctor")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.User.Email != "doc@example.com" || reg.User.Role != domain.RoleDoctor {
		t.Fatalf("unexpected user %+v", reg.User)
	}
	if reg.User.PasswordHash == "s3cret-pass" {
		t.Fatalf("password must be hashed")
	}

	identity, err := svc.Validate(ctx, reg.Token.Value)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if identity.Subject != reg.User.ID || identity.Role != domain.RoleDoctor {
		t.Fatalf("unexpected identity %+v", identity)
	}

	login, err := svc.Login(ctx, "doc@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Fatalf("login returned another user")
	}
	if !login.Token.ExpiresAt.After(time.Now()) {
		t.Fatalf("token should expire in the future")
	}
}

func TestRegisterDefaultsToPatient(t *testing.T) {
	svc, _ := newAuth(t)
	reg, err := svc.Register(context.Background(), "p@example.com", "s3cret-pass", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.User.Role != domain.RolePatient {
		t.Fatalf("expected PATIENT, got %s", reg.User.Role)
	}
}

func TestRegisterRejects(t *testing.T) {
	svc, _ := newAuth(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "a@example.com", "s3cret-pass", "ADMIN"); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("unknown role: expected VALIDATION_FAILED, got %v", err)
	}
	if _, err := svc.Register(ctx, "a@example.com", "s3cret-pass", domain.RolePatient); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "A@example.com", "other-pass", domain.RolePatient); !apperrors.IsCode(err, "CONFLICT") {
		t.Fatalf("duplicate email: expected CONFLICT, got %v", err)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	svc, users := newAuth(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "a@example.com", "s3cret-pass", domain.RolePatient); err != nil {
		t.Fatalf("register: %v", err)
	}
	hash, _ := auth.HashPassword("disabled-pass", 4)
	_ = users.Create(ctx, &domain.User{ID: "off", Email: "off@example.com", PasswordHash: hash, Role: domain.RolePatient})

	cases := map[string][2]string{
		"unknown email":  {"nobody@example.com", "s3cret-pass"},
		"wrong password": {"a@example.com", "nope"},
		"disabled":       {"off@example.com", "disabled-pass"},
	}
	for name, creds := range cases {
		_, err := svc.Login(ctx, creds[0], creds[1])
		domainErr := apperrors.ToDomainError(err)
		if domainErr == nil || domainErr.Code != "UNAUTHORIZED" || domainErr.Message != "invalid credentials" {
			t.Fatalf("%s: expected uniform UNAUTHORIZED, got %v", name, err)
		}
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc, _ := newAuth(t)
	if _, err := svc.Validate(context.Background(), "not-a-token"); !apperrors.IsCode(err, "UNAUTHORIZED") {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestGetUser(t *testing.T) {
	svc, _ := newAuth(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, "a@example.com", "s3cret-pass", domain.RolePatient)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	user, err := svc.GetUser(ctx, reg.User.ID)
	if err != nil || user.Email != "a@example.com" {
		t.Fatalf("get user: %v %+v", err, user)
	}
	if _, err := svc.GetUser(ctx, "missing"); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
