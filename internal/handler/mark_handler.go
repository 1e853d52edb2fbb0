package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/service"
	"github.com/noah-isme/school-records-api/internal/utils"
)

// MarkHandler exposes quarterly mark endpoints.
type MarkHandler struct {
	service service.MarkService
	logger  zerolog.Logger
}

// NewMarkHandler constructs the handler.
func NewMarkHandler(service service.MarkService, logger zerolog.Logger) *MarkHandler {
	return &MarkHandler{
		service: service,
		logger:  logger.With().Str("component", "mark_handler").Logger(),
	}
}

// Register attaches mark routes to the router group.
func (h *MarkHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Post("/bulk", h.bulk)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *MarkHandler) list(c *fiber.Ctx) error {
	req := dto.MarkListRequest{
		StudentID: strings.TrimSpace(c.Query("studentId")),
		Search:    strings.TrimSpace(c.Query("search")),
	}

	var err error
	for key, target := range map[string]*uint{
		"subjectId":   &req.SubjectID,
		"quarterId":   &req.QuarterID,
		"gradeId":     &req.GradeID,
		"studyYearId": &req.StudyYearID,
	} {
		if *target, err = parseQueryUint(c, key); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
	}

	marks, err := h.service.List(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to fetch marks")
	}
	return utils.SendSuccess(c, "marks", marks)
}

func (h *MarkHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	mark, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to fetch mark")
	}
	return utils.SendSuccess(c, "mark", mark)
}

func (h *MarkHandler) create(c *fiber.Ctx) error {
	var payload dto.MarkCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	mark, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to create mark")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "mark created", mark)
}

func (h *MarkHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.MarkUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	mark, err := h.service.UpdateScore(c.UserContext(), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to update mark")
	}
	return utils.SendSuccess(c, "mark updated", mark)
}

func (h *MarkHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, err, "Failed to delete mark")
	}
	return utils.SendSuccess(c, "mark deleted", nil)
}

// bulk responds with the bare {updated, errors} shape. Rejected rows do not
// fail the request.
func (h *MarkHandler) bulk(c *fiber.Ctx) error {
	var payload dto.MarkBulkRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	result, err := h.service.BulkUpsert(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to upsert marks")
	}
	return c.Status(fiber.StatusOK).JSON(result)
}
