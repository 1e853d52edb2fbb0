package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/service"
	"github.com/noah-isme/school-records-api/internal/utils"
)

// MonitoringHandler exposes monthly monitoring endpoints.
type MonitoringHandler struct {
	service service.MonitoringService
	logger  zerolog.Logger
}

// NewMonitoringHandler constructs the handler.
func NewMonitoringHandler(service service.MonitoringService, logger zerolog.Logger) *MonitoringHandler {
	return &MonitoringHandler{
		service: service,
		logger:  logger.With().Str("component", "monitoring_handler").Logger(),
	}
}

// Register attaches monitoring routes to the router group.
func (h *MonitoringHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/summary", h.summary)
	router.Post("", h.create)
	router.Post("/bulk", h.bulk)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *MonitoringHandler) listRequest(c *fiber.Ctx) (dto.MonitoringListRequest, error) {
	studyYearID, err := parseQueryUint(c, "studyYearId")
	if err != nil {
		return dto.MonitoringListRequest{}, err
	}
	gradeID, err := parseQueryUint(c, "gradeId")
	if err != nil {
		return dto.MonitoringListRequest{}, err
	}
	return dto.MonitoringListRequest{
		StudyYearID: studyYearID,
		GradeID:     gradeID,
		Search:      strings.TrimSpace(c.Query("search")),
		Month:       strings.TrimSpace(c.Query("month")),
	}, nil
}

func (h *MonitoringHandler) list(c *fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	entries, err := h.service.List(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to fetch monitoring entries")
	}
	return utils.SendSuccess(c, "monitoring entries", entries)
}

func (h *MonitoringHandler) summary(c *fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.service.Summary(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to summarise monitoring entries")
	}
	return utils.SendSuccess(c, "monitoring summary", summary)
}

func (h *MonitoringHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	entry, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to fetch monitoring entry")
	}
	return utils.SendSuccess(c, "monitoring entry", entry)
}

func (h *MonitoringHandler) create(c *fiber.Ctx) error {
	var payload dto.MonitoringCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	entry, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to save monitoring entry")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "monitoring entry saved", entry)
}

func (h *MonitoringHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.MonitoringUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	entry, err := h.service.Update(c.UserContext(), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to update monitoring entry")
	}
	return utils.SendSuccess(c, "monitoring entry updated", entry)
}

func (h *MonitoringHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, err, "Failed to delete monitoring entry")
	}
	return utils.SendSuccess(c, "monitoring entry deleted", nil)
}

func (h *MonitoringHandler) bulk(c *fiber.Ctx) error {
	var payload dto.MonitoringBulkRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	result, err := h.service.BulkUpsert(c.UserContext(), payload, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to upsert monitoring entries")
	}
	return c.Status(fiber.StatusOK).JSON(result)
}
