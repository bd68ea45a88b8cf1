package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/medical-scheduling/internal/auth"
	apperrors "github.com/spec-kit/medical-scheduling/pkg/util"
)

var errUpstreamStatus = errors.New("upstream returned server error")

// UpstreamOptions tunes forwarding to one backend.
type UpstreamOptions struct {
	Timeout     time.Duration
	MaxFailures int
	OpenFor     time.Duration
}

// Upstream forwards requests to one backend behind a circuit breaker.
type Upstream struct {
	name    string
	baseURL string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewUpstream creates a forwarder for baseURL (scheme://host:port).
func NewUpstream(name, baseURL string, opts UpstreamOptions, logger *zap.Logger) *Upstream {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxFailures := opts.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	u := &Upstream{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: opts.Timeout,
		logger:  logger,
	}
	u.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("upstream circuit state changed",
				zap.String("upstream", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return u
}

// Forward proxies the request. Backend 5xx responses are passed through but
// count against the breaker; transport failures and an open circuit become
// 503.
func (u *Upstream) Forward(c *fiber.Ctx) error {
	target := u.baseURL + c.OriginalURL()

	_, err := u.breaker.Execute(func() (interface{}, error) {
		var err error
		if u.timeout > 0 {
			err = proxy.DoTimeout(c, target, u.timeout)
		} else {
			err = proxy.Do(c, target)
		}
		if err != nil {
			return nil, err
		}
		if c.Response().StatusCode() >= fiber.StatusInternalServerError {
			return nil, errUpstreamStatus
		}
		return nil, nil
	})

	// identity headers never travel back out
	for _, name := range auth.TrustedHeaders {
		c.Response().Header.Del(name)
	}

	switch {
	case err == nil, errors.Is(err, errUpstreamStatus):
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return apperrors.NewServiceUnavailable(u.name+" temporarily unavailable", err)
	default:
		u.logger.Error("upstream request failed", zap.String("upstream", u.name), zap.Error(err))
		return apperrors.NewServiceUnavailable(u.name+" unavailable", err)
	}
}

// Ping fails while the circuit is open so readiness reflects the backend.
func (u *Upstream) Ping(context.Context) error {
	if u.breaker.State() == gobreaker.StateOpen {
		return errors.New("circuit open")
	}
	return nil
}

// State reports the breaker state.
func (u *Upstream) State() gobreaker.State {
	return u.breaker.State()
}
