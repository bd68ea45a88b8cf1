package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/spec-kit/medical-scheduling/internal/auth"
	"github.com/spec-kit/medical-scheduling/internal/domain"
	"github.com/spec-kit/medical-scheduling/internal/observability"
	apperrors "github.com/spec-kit/medical-scheduling/pkg/util"
)

// unauthenticatedMessage is the single message for every credential failure.
const unauthenticatedMessage = "invalid or missing credentials"

// Verifier checks a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (domain.Identity, error)
}

// Gateway is the trust boundary: it verifies the bearer token once and
// forwards the request with the trusted identity headers instead.
type Gateway struct {
	verifier      Verifier
	verifyTimeout time.Duration
	routes        routeTable
	logger        *zap.Logger
}

// New builds a gateway over the given routes.
func New(verifier Verifier, verifyTimeout time.Duration, routes []Route, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		verifier:      verifier,
		verifyTimeout: verifyTimeout,
		routes:        newRouteTable(routes),
		logger:        logger,
	}
}

// Handle routes, authenticates and forwards one request.
func (g *Gateway) Handle(c *fiber.Ctx) error {
	route, ok := g.routes.match(c.Path())
	if !ok {
		return apperrors.NewNotFound("route", map[string]any{"path": c.Path()})
	}
	if err := g.authenticate(c, route.Access); err != nil {
		return err
	}
	if id := observability.RequestIDFrom(c); id != "" {
		c.Request().Header.Set(fiber.HeaderXRequestID, id)
	}
	return route.Target.Forward(c)
}

// authenticate rewrites the inbound request in place. Client supplied
// trusted headers never survive, and the Authorization header is never
// forwarded.
func (g *Gateway) authenticate(c *fiber.Ctx, access Access) error {
	headers := &c.Request().Header
	for _, name := range auth.TrustedHeaders {
		headers.Del(name)
	}

	// preflight carries no payload
	if c.Method() == fiber.MethodOptions {
		return nil
	}

	credential := utils.CopyString(c.Get(fiber.HeaderAuthorization))
	headers.Del(fiber.HeaderAuthorization)

	if credential == "" {
		if access == AccessProtected {
			return unauthenticated(c)
		}
		return nil
	}
	if access == AccessPublic {
		return nil
	}

	token, ok := bearerToken(credential)
	if !ok {
		return unauthenticated(c)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), g.verifyTimeout)
	identity, err := g.verifier.Verify(ctx, token)
	cancel()
	if err != nil {
		g.logger.Debug("credential rejected",
			zap.String("request_id", observability.RequestIDFrom(c)),
			zap.String("path", c.Path()),
			zap.Error(err))
		return unauthenticated(c)
	}

	headers.Set(auth.HeaderSubject, identity.Subject)
	headers.Set(auth.HeaderRole, string(identity.Role))
	return nil
}

func bearerToken(credential string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(credential), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

func unauthenticated(c *fiber.Ctx) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return apperrors.NewUnauthorized(unauthenticatedMessage)
}
