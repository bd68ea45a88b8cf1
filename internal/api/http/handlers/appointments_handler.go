package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/medical-scheduling/internal/api/dto"
	"github.com/spec-kit/medical-scheduling/internal/auth"
	"github.com/spec-kit/medical-scheduling/internal/domain"
	"github.com/spec-kit/medical-scheduling/internal/service"
	apperrors "github.com/spec-kit/medical-scheduling/pkg/util"
)

// AppointmentsHandler exposes the scheduler over HTTP.
type AppointmentsHandler struct {
	service *service.SchedulingService
}

// NewAppointmentsHandler constructs handler.
func NewAppointmentsHandler(scheduling *service.SchedulingService) *AppointmentsHandler {
	return &AppointmentsHandler{service: scheduling}
}

// Create POST /appointments.
func (h *AppointmentsHandler) Create(c *fiber.Ctx) error {
	caller, ok := auth.IdentityFromFiber(c)
	if !ok {
		return apperrors.NewUnauthorized("missing trusted identity")
	}
	var req dto.CreateAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := apperrors.ValidateStruct(req); err != nil {
		return err
	}

	appt, err := h.service.Create(c.UserContext(), caller, service.AppointmentInput{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		DateTime:  *req.DateTime,
		Status:    domain.AppointmentStatus(req.Status),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppointmentResponse(appt)})
}

// List GET /appointments.
func (h *AppointmentsHandler) List(c *fiber.Ctx) error {
	filter := service.AppointmentListFilter{
		Limit:  parseInt(c.Query("limit"), 0),
		Offset: parseInt(c.Query("offset"), 0),
	}
	if doctorID := strings.TrimSpace(c.Query("doctorId")); doctorID != "" {
		filter.DoctorID = &doctorID
	}
	if patientID := strings.TrimSpace(c.Query("patientId")); patientID != "" {
		filter.PatientID = &patientID
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, ok := domain.ParseAppointmentStatus(part)
			if !ok {
				return apperrors.NewValidationError("invalid status filter", map[string]any{"status": part})
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	appts, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppointmentList(appts)})
}

// Get GET /appointments/:id.
func (h *AppointmentsHandler) Get(c *fiber.Ctx) error {
	appt, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppointmentResponse(appt)})
}

// Update PUT /appointments/:id.
func (h *AppointmentsHandler) Update(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromFiber(c)
	var req dto.UpdateAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := apperrors.ValidateStruct(req); err != nil {
		return err
	}

	patch := service.AppointmentPatch{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		DateTime:  req.DateTime,
	}
	if req.Status != nil {
		status := domain.AppointmentStatus(*req.Status)
		patch.Status = &status
	}

	appt, err := h.service.Update(c.UserContext(), caller, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppointmentResponse(appt)})
}

// Cancel POST /appointments/:id/cancel.
func (h *AppointmentsHandler) Cancel(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromFiber(c)
	appt, err := h.service.Cancel(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppointmentResponse(appt)})
}

// Delete DELETE /appointments/:id.
func (h *AppointmentsHandler) Delete(c *fiber.Ctx) error {
	caller, _ := auth.IdentityFromFiber(c)
	if err := h.service.Delete(c.UserContext(), caller, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Upcoming GET /appointments/doctor/:doctorId/upcoming.
func (h *AppointmentsHandler) Upcoming(c *fiber.Ctx) error {
	appts, err := h.service.ListUpcomingForDoctor(c.UserContext(), c.Params("doctorId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAppointmentList(appts)})
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return fallback
	}
	return val
}
