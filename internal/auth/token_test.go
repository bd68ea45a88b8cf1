package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/medical-scheduling/internal/domain"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestGenerateAndVerify(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tm := NewTokenManager("secret", time.Hour).WithClock(fixedClock(now))

	tok, err := tm.GenerateToken("user-1", "doc@example.com", domain.RoleDoctor)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !tok.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("unexpected expiry %s", tok.ExpiresAt)
	}

	id, err := tm.Verify(context.Background(), tok.Value)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Subject != "user-1" || id.Role != domain.RoleDoctor {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestVerifyRejects(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tm := NewTokenManager("secret", time.Hour).WithClock(fixedClock(now))
	valid, err := tm.GenerateToken("user-1", "p@example.com", domain.RolePatient)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	otherKey, _ := NewTokenManager("other-secret", time.Hour).WithClock(fixedClock(now)).
		GenerateToken("user-1", "p@example.com", domain.RolePatient)
	unknownRole, _ := tm.GenerateToken("user-1", "p@example.com", domain.Role("ADMIN"))
	noSubject, _ := tm.GenerateToken("", "p@example.com", domain.RolePatient)

	noneAlg := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Role: domain.RoleDoctor,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	noneToken, err := noneAlg.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	cases := map[string]string{
		"garbage":         "not-a-token",
		"empty":           "",
		"tampered role":   tamperRole(t, valid.Value, "DOCTOR"),
		"foreign key":     otherKey.Value,
		"unknown role":    unknownRole.Value,
		"missing subject": noSubject.Value,
		"alg none":        noneToken,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := tm.Verify(context.Background(), raw); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerifyExpired(t *testing.T) {
	issued := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tm := NewTokenManager("secret", 30*time.Minute).WithClock(fixedClock(issued))
	tok, err := tm.GenerateToken("user-1", "", domain.RolePatient)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	later := tm.WithClock(fixedClock(issued.Add(31 * time.Minute)))
	if _, err := later.Verify(context.Background(), tok.Value); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestVerifyCanceledContext(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	tok, err := tm.GenerateToken("user-1", "", domain.RolePatient)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tm.Verify(ctx, tok.Value); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected done context to be treated as invalid, got %v", err)
	}
}

// tamperRole rewrites the role claim in the payload while keeping the
// original signature.
func tamperRole(t *testing.T, token, role string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	forged := strings.Replace(string(payload), `"role":"PATIENT"`, `"role":"`+role+`"`, 1)
	if forged == string(payload) {
		t.Fatalf("role claim not found in %s", payload)
	}
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))
	return strings.Join(parts, ".")
}
