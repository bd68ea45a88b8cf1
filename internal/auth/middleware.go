package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/medical-scheduling/internal/domain"
	apperrors "github.com/spec-kit/medical-scheduling/pkg/util"
)

// Trusted headers written by the gateway after verification. They are only
// meaningful on the internal side of the gateway.
const (
	HeaderSubject = "X-User-Id"
	HeaderRole    = "X-User-Role"
)

// TrustedHeaders lists every header the gateway owns.
var TrustedHeaders = []string{HeaderSubject, HeaderRole}

const identityKey = "trusted_identity"

type identityCtxKey struct{}

// WithIdentity attaches a verified identity to ctx.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext returns the identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(domain.Identity)
	return id, ok
}

// IdentityFromHeaders reads the trusted headers. The role is compared
// case-insensitively; an unknown role is kept verbatim so role gates reject it.
func IdentityFromHeaders(subject, role string) (domain.Identity, bool) {
	subject = strings.TrimSpace(subject)
	role = strings.TrimSpace(role)
	if subject == "" || role == "" {
		return domain.Identity{}, false
	}
	if parsed, ok := domain.ParseRole(role); ok {
		return domain.Identity{Subject: subject, Role: parsed}, true
	}
	return domain.Identity{Subject: subject, Role: domain.Role(strings.ToUpper(role))}, true
}

// RequireTrustedIdentity loads the identity the gateway forwarded. A request
// without it did not come through the gateway and is rejected.
func RequireTrustedIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := IdentityFromHeaders(c.Get(HeaderSubject), c.Get(HeaderRole))
		if !ok {
			return apperrors.NewUnauthorized("missing trusted identity")
		}
		c.Locals(identityKey, id)
		c.SetUserContext(WithIdentity(c.UserContext(), id))
		return c.Next()
	}
}

// OptionalTrustedIdentity loads the identity when the gateway forwarded one.
func OptionalTrustedIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id, ok := IdentityFromHeaders(c.Get(HeaderSubject), c.Get(HeaderRole)); ok {
			c.Locals(identityKey, id)
			c.SetUserContext(WithIdentity(c.UserContext(), id))
		}
		return c.Next()
	}
}

// IdentityFromFiber retrieves the identity loaded by the middlewares above.
func IdentityFromFiber(c *fiber.Ctx) (domain.Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return domain.Identity{}, false
	}
	id, ok := val.(domain.Identity)
	return id, ok
}
