package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/service"
	"github.com/noah-isme/school-records-api/internal/utils"
)

// AdminAuthHandler exposes admin account endpoints.
type AdminAuthHandler struct {
	service service.AdminAuthService
	logger  zerolog.Logger
}

// NewAdminAuthHandler constructs the handler.
func NewAdminAuthHandler(service service.AdminAuthService, logger zerolog.Logger) *AdminAuthHandler {
	return &AdminAuthHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_auth_handler").Logger(),
	}
}

// RegisterPublic attaches the unauthenticated account routes.
func (h *AdminAuthHandler) RegisterPublic(router fiber.Router) {
	router.Post("/register", h.register)
	router.Post("/login", h.login)
}

func (h *AdminAuthHandler) register(c *fiber.Ctx) error {
	var payload dto.AdminRegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	admin, err := h.service.Register(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to register admin")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "admin registered", admin)
}

func (h *AdminAuthHandler) login(c *fiber.Ctx) error {
	var payload dto.AdminLoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, invalidPayloadMessage)
	}

	result, err := h.service.Login(c.UserContext(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "Failed to login")
	}
	return utils.SendSuccess(c, result.Message, result)
}

// Profile returns the admin behind the verified token.
func (h *AdminAuthHandler) Profile(c *fiber.Ctx) error {
	admin, err := h.service.Profile(c.UserContext(), userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "Failed to fetch profile")
	}
	return utils.SendSuccess(c, "admin profile", admin)
}

// ActivityHandler exposes the audit trail.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register attaches activity log routes to the router group.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	if page <= 0 {
		page = 1
	}

	pageSize, err := parseQueryInt(c, "pageSize")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	if pageSize <= 0 {
		pageSize = 25
	} else if pageSize > 200 {
		pageSize = 200
	}

	response, err := h.service.List(c.UserContext(), dto.ActivityListRequest{
		Page:       page,
		PageSize:   pageSize,
		Action:     strings.TrimSpace(c.Query("action")),
		EntityType: strings.TrimSpace(c.Query("entityType")),
	})
	if err != nil {
		return respondError(c, h.logger, err, "Failed to list activity logs")
	}
	return utils.SendSuccess(c, "activity logs", response)
}
