package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestToDomainError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"domain error passes through", NewConflict("slot taken", nil), "CONFLICT", http.StatusConflict},
		{"wrapped domain error", fmt.Errorf("wrap: %w", NewForbidden("nope")), "FORBIDDEN", http.StatusForbidden},
		{"fiber error", fiber.NewError(http.StatusNotFound, "Cannot GET /x"), "NOT_FOUND", http.StatusNotFound},
		{"plain error", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToDomainError(tc.err)
			if got.Code != tc.code || got.HTTPStatus != tc.status {
				t.Fatalf("got %s/%d, want %s/%d", got.Code, got.HTTPStatus, tc.code, tc.status)
			}
		})
	}
	if ToDomainError(nil) != nil {
		t.Fatalf("nil error should map to nil")
	}
}

func TestValidateStruct(t *testing.T) {
	type payload struct {
		DoctorID string `json:"doctorId" validate:"required"`
		Email    string `json:"email" validate:"omitempty,email"`
	}

	if err := ValidateStruct(payload{DoctorID: "d-1"}); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	err := ValidateStruct(payload{Email: "not-an-email"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "VALIDATION_FAILED" {
		t.Fatalf("unexpected code %s", domainErr.Code)
	}
	if domainErr.Details["doctorId"] != "required" {
		t.Errorf("expected doctorId=required, got %v", domainErr.Details)
	}
	if domainErr.Details["email"] != "email" {
		t.Errorf("expected email=email, got %v", domainErr.Details)
	}
}
