package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/service"
	"github.com/noah-isme/school-records-api/internal/utils"
)

// StudyYearHandler exposes study year endpoints including the rollover.
type StudyYearHandler struct {
	years    service.StudyYearService
	rollover service.RolloverService
	logger   zerolog.Logger
}

// NewStudyYearHandler constructs the handler.
func NewStudyYearHandler(years service.StudyYearService, rollover service.RolloverService, logger zerolog.Logger) *StudyYearHandler {
	return &StudyYearHandler{
		years:    years,
		rollover: rollover,
		logger:   logger.With().Str("component", "study_year_handler").Logger(),
	}
}

// RegisterPublic attaches the unauthenticated listing.
func (h *StudyYearHandler) RegisterPublic(router fiber.Router) {
	router.Get("", h.list)
}

// Register attaches admin routes to the router group.
func (h *StudyYearHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/rollover", h.rolloverYear)
}

func (h *StudyYearHandler) list(c *fiber.Ctx) error {
	years, err := h.years.List(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err, "Failed to fetch study years")
	}
	return utils.SendSuccess(c, "study years", years)
}

func (h *StudyYearHandler) create(c *fiber.Ctx) error {
	var payload dto.StudyYearCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	year, err := h.years.Create(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to create study year")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "study year created", year)
}

func (h *StudyYearHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.StudyYearUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	year, err := h.years.Update(c.UserContext(), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to update study year")
	}
	return utils.SendSuccess(c, "study year updated", year)
}

func (h *StudyYearHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.years.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, err, "Failed to delete study year")
	}
	return utils.SendSuccess(c, "study year deleted", nil)
}

// rolloverYear responds with the bare summary, not the envelope.
func (h *StudyYearHandler) rolloverYear(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RolloverRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	result, err := h.rollover.Rollover(c.UserContext(), id, payload, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to rollover year")
	}

	requestLogger(h.logger, c).Info().
		Uint("source_year_id", id).
		Uint("new_year_id", result.NewYear.ID).
		Int("students_moved", result.StudentsMoved).
		Msg("study year rolled over")
	return c.Status(fiber.StatusCreated).JSON(result)
}
