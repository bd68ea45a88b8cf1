package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/medical-scheduling/internal/domain"
	apperrors "github.com/spec-kit/medical-scheduling/pkg/util"
)

// RequireRoleIfIdentified rejects an identified caller whose role is not in
// allowed. Anonymous callers pass through. Run after OptionalTrustedIdentity.
func RequireRoleIfIdentified(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		id, ok := IdentityFromFiber(c)
		if !ok {
			return c.Next()
		}
		if _, exists := allowedSet[id.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
