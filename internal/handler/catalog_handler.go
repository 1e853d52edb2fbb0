package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/service"
	"github.com/noah-isme/school-records-api/internal/utils"
)

// GradeHandler exposes grade endpoints.
type GradeHandler struct {
	service service.GradeService
	logger  zerolog.Logger
}

// NewGradeHandler constructs the handler.
func NewGradeHandler(service service.GradeService, logger zerolog.Logger) *GradeHandler {
	return &GradeHandler{
		service: service,
		logger:  logger.With().Str("component", "grade_handler").Logger(),
	}
}

// Register attaches grade routes to the router group.
func (h *GradeHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *GradeHandler) list(c *fiber.Ctx) error {
	grades, err := h.service.List(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "Failed to fetch grades")
	}
	return utils.SendSuccess(c, "grades", grades)
}

func (h *GradeHandler) create(c *fiber.Ctx) error {
	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	grade, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to create grade")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "grade created", grade)
}

func (h *GradeHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	grade, err := h.service.Rename(c.UserContext(), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to update grade")
	}
	return utils.SendSuccess(c, "grade updated", grade)
}

func (h *GradeHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, err, "Failed to delete grade")
	}
	return utils.SendSuccess(c, "grade deleted", nil)
}

// SubjectHandler exposes subject endpoints.
type SubjectHandler struct {
	service service.SubjectService
	logger  zerolog.Logger
}

// NewSubjectHandler constructs the handler.
func NewSubjectHandler(service service.SubjectService, logger zerolog.Logger) *SubjectHandler {
	return &SubjectHandler{
		service: service,
		logger:  logger.With().Str("component", "subject_handler").Logger(),
	}
}

// Register attaches subject routes to the router group.
func (h *SubjectHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *SubjectHandler) list(c *fiber.Ctx) error {
	subjects, err := h.service.List(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "Failed to fetch subjects")
	}
	return utils.SendSuccess(c, "subjects", subjects)
}

func (h *SubjectHandler) create(c *fiber.Ctx) error {
	var payload dto.SubjectRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	subject, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to create subject")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "subject created", subject)
}

func (h *SubjectHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubjectRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	subject, err := h.service.Rename(c.UserContext(), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to update subject")
	}
	return utils.SendSuccess(c, "subject updated", subject)
}

func (h *SubjectHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, err, "Failed to delete subject")
	}
	return utils.SendSuccess(c, "subject deleted", nil)
}

// QuarterHandler exposes quarter endpoints.
type QuarterHandler struct {
	service service.QuarterService
	logger  zerolog.Logger
}

// NewQuarterHandler constructs the handler.
func NewQuarterHandler(service service.QuarterService, logger zerolog.Logger) *QuarterHandler {
	return &QuarterHandler{
		service: service,
		logger:  logger.With().Str("component", "quarter_handler").Logger(),
	}
}

// Register attaches quarter routes to the router group.
func (h *QuarterHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Delete("/:id", h.delete)
}

func (h *QuarterHandler) list(c *fiber.Ctx) error {
	quarters, err := h.service.List(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "Failed to fetch quarters")
	}
	return utils.SendSuccess(c, "quarters", quarters)
}

func (h *QuarterHandler) create(c *fiber.Ctx) error {
	var payload dto.QuarterCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	quarter, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to create quarter")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "quarter created", quarter)
}

func (h *QuarterHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, err, "Failed to delete quarter")
	}
	return utils.SendSuccess(c, "quarter deleted", nil)
}
