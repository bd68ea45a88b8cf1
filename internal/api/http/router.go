package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/medical-scheduling/internal/api/http/handlers"
	"github.com/spec-kit/medical-scheduling/internal/auth"
	"github.com/spec-kit/medical-scheduling/internal/domain"
)

// RegisterHealthRoutes wires probes and metrics.
func RegisterHealthRoutes(app fiber.Router, health *handlers.HealthHandler) {
	app.Get("/health/live", health.Live)
	app.Get("/health/ready", health.Ready)
	app.Get("/health/metrics", health.Metrics)
}

// RegisterSchedulerRoutes wires the appointment API. Every route needs the
// identity forwarded by the gateway.
func RegisterSchedulerRoutes(app fiber.Router, appointments *handlers.AppointmentsHandler) {
	group := app.Group("/appointments", auth.RequireTrustedIdentity())
	group.Post("/", appointments.Create)
	group.Get("/", appointments.List)
	group.Get("/doctor/:doctorId/upcoming", appointments.Upcoming)
	group.Get("/:id", appointments.Get)
	group.Put("/:id", appointments.Update)
	group.Post("/:id/cancel", appointments.Cancel)
	group.Delete("/:id", appointments.Delete)
}

// RegisterAuthRoutes wires the token service API.
func RegisterAuthRoutes(app fiber.Router, users *handlers.UsersHandler) {
	group := app.Group("/auth")
	group.Post("/register", auth.OptionalTrustedIdentity(), auth.RequireRoleIfIdentified(domain.RoleDoctor), users.Register)
	group.Post("/login", users.Login)
	group.Post("/validate", users.Validate)
	group.Get("/users/:id", auth.RequireTrustedIdentity(), users.GetUser)
}
