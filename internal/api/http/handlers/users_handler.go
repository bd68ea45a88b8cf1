package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/medical-scheduling/internal/api/dto"
	"github.com/spec-kit/medical-scheduling/internal/domain"
	"github.com/spec-kit/medical-scheduling/internal/service"
	apperrors "github.com/spec-kit/medical-scheduling/pkg/util"
)

// UsersHandler exposes registration, login and token validation.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler creates handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Register POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := apperrors.ValidateStruct(req); err != nil {
		return err
	}
	result, err := h.auth.Register(c.UserContext(), req.Email, req.Password, domain.Role(req.Role))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": authResponse(result)})
}

// Login POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := apperrors.ValidateStruct(req); err != nil {
		return err
	}
	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authResponse(result)})
}

// Validate POST /auth/validate. The token comes from the body or, for
// direct internal calls, from a bearer header.
func (h *UsersHandler) Validate(c *fiber.Ctx) error {
	var req dto.TokenValidateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		if header := c.Get(fiber.HeaderAuthorization); len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			token = strings.TrimSpace(header[7:])
		}
	}

	identity, err := h.auth.Validate(c.UserContext(), token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"data": dto.TokenValidateResponse{Valid: false}})
	}
	return c.JSON(fiber.Map{"data": dto.TokenValidateResponse{
		Valid:   true,
		Subject: identity.Subject,
		Role:    identity.Role,
	}})
}

// GetUser GET /auth/users/:id.
func (h *UsersHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.auth.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

func authResponse(result *service.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     result.Token.Value,
		ExpiresAt: result.Token.ExpiresAt,
		User:      dto.NewUserResponse(result.User),
	}
}
