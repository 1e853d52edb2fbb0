package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/service"
	"github.com/noah-isme/school-records-api/internal/utils"
)

const defaultOptionsLimit = 2000

// StudentHandler exposes student endpoints for the admin panel and the
// public results lookup.
type StudentHandler struct {
	service service.StudentService
	logger  zerolog.Logger
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(service service.StudentService, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		service: service,
		logger:  logger.With().Str("component", "student_handler").Logger(),
	}
}

// Results serves the public per-student projection.
func (h *StudentHandler) Results(c *fiber.Ctx) error {
	id := studentIDParam(c)
	results, err := h.service.Results(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to fetch student results")
	}
	return utils.SendSuccess(c, "student results", results)
}

// Register attaches admin routes to the router group.
func (h *StudentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/options", h.options)
	router.Post("", h.create)
	router.Post("/import", h.importRoster)
	router.Get("/:id", h.detail)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *StudentHandler) listRequest(c *fiber.Ctx) (dto.StudentListRequest, error) {
	studyYearID, err := parseQueryUint(c, "studyYearId")
	if err != nil {
		return dto.StudentListRequest{}, err
	}
	gradeID, err := parseQueryUint(c, "gradeId")
	if err != nil {
		return dto.StudentListRequest{}, err
	}
	return dto.StudentListRequest{
		Search:      strings.TrimSpace(c.Query("search")),
		StudyYearID: studyYearID,
		GradeID:     gradeID,
	}, nil
}

func (h *StudentHandler) list(c *fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	students, err := h.service.List(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to fetch students")
	}
	return utils.SendSuccess(c, "students", students)
}

func (h *StudentHandler) options(c *fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "limit must be a number")
	}
	if limit <= 0 {
		limit = defaultOptionsLimit
	}
	req.Limit = limit

	options, err := h.service.Options(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to fetch student options")
	}
	return utils.SendSuccess(c, "student options", options)
}

func (h *StudentHandler) detail(c *fiber.Ctx) error {
	student, err := h.service.Detail(c.UserContext(), studentIDParam(c))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to fetch student")
	}
	return utils.SendSuccess(c, "student", student)
}

func (h *StudentHandler) create(c *fiber.Ctx) error {
	var payload dto.StudentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	student, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to create student")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student created", student)
}

func (h *StudentHandler) update(c *fiber.Ctx) error {
	var payload dto.StudentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	student, err := h.service.Update(c.UserContext(), studentIDParam(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to update student")
	}
	return utils.SendSuccess(c, "student updated", student)
}

func (h *StudentHandler) delete(c *fiber.Ctx) error {
	force := false
	if raw := strings.TrimSpace(c.Query("force")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "force must be true or false")
		}
		force = parsed
	}

	result, err := h.service.Delete(c.UserContext(), studentIDParam(c), force, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to delete student")
	}
	return utils.SendSuccess(c, result.Message, result)
}

func (h *StudentHandler) importRoster(c *fiber.Ctx) error {
	var payload dto.StudentImportRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	result, err := h.service.Import(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to import students")
	}
	return utils.SendSuccess(c, result.Message, result)
}
