package handler

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/school-records-api/internal/middleware"
	"github.com/noah-isme/school-records-api/internal/service"
	"github.com/noah-isme/school-records-api/internal/utils"
)

const invalidPayloadMessage = "Invalid JSON payload"

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

// parseQueryUint reads an optional numeric filter; blank means unset.
func parseQueryUint(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.New(key + " must be a number")
	}
	return uint(parsed), nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

// studentIDParam returns the percent-decoded, trimmed student id segment.
func studentIDParam(c *fiber.Ctx) string {
	raw := c.Params("id")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return strings.TrimSpace(raw)
}

func userIDFromContext(c *fiber.Ctx) uint {
	if id, ok := c.Locals(middleware.LocalUserID).(uint); ok {
		return id
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if role, ok := c.Locals(middleware.LocalUserRole).(string); ok {
		return role
	}
	return ""
}

func activityActorFromContext(c *fiber.Ctx) service.ActivityActor {
	return service.ActivityActor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

var knownErrors = []struct {
	err     error
	status  int
	message string
}{
	{service.ErrStudyYearNotFound, fiber.StatusNotFound, "Study year not found"},
	{service.ErrGradeNotFound, fiber.StatusNotFound, "Grade not found"},
	{service.ErrSubjectNotFound, fiber.StatusNotFound, "Subject not found"},
	{service.ErrQuarterNotFound, fiber.StatusNotFound, "Quarter not found"},
	{service.ErrStudentNotFound, fiber.StatusNotFound, "Student not found"},
	{service.ErrMarkNotFound, fiber.StatusNotFound, "Mark not found"},
	{service.ErrMonitoringNotFound, fiber.StatusNotFound, "Monitoring entry not found"},
	{service.ErrAdminNotFound, fiber.StatusNotFound, "Admin not found"},
	{service.ErrStudyYearInUse, fiber.StatusConflict, "Study year has quarters, students or monitoring entries"},
	{service.ErrGradeInUse, fiber.StatusConflict, "Grade has students"},
	{service.ErrSubjectInUse, fiber.StatusConflict, "Subject is used by marks or monitoring entries"},
	{service.ErrQuarterInUse, fiber.StatusConflict, "Quarter has marks"},
	{service.ErrGradeExists, fiber.StatusConflict, "Grade with this name already exists"},
	{service.ErrSubjectExists, fiber.StatusConflict, "Subject with this name already exists"},
	{service.ErrAdminExists, fiber.StatusBadRequest, "Username or email already registered"},
	{service.ErrInvalidCredentials, fiber.StatusUnauthorized, "Invalid credentials"},
}

// respondError maps service errors onto HTTP responses. Anything unknown is
// logged and answered with a 500 carrying fallback.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	var inputErr *service.InputError
	if errors.As(err, &inputErr) {
		if len(inputErr.Details) > 0 {
			return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, inputErr.Message, inputErr.Details)
		}
		return utils.SendError(c, fiber.StatusBadRequest, inputErr.Message)
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	}

	var hasResults *service.StudentHasResultsError
	if errors.As(err, &hasResults) {
		return utils.SendConflict(c,
			"Student has marks or monitoring entries",
			"STUDENT_HAS_RESULTS",
			fiber.Map{"marks": hasResults.Marks, "monitorings": hasResults.Monitorings},
			"Retry with force=true to delete the student together with their results",
		)
	}

	for _, known := range knownErrors {
		if errors.Is(err, known.err) {
			return utils.SendError(c, known.status, known.message)
		}
	}

	requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg(fallback)
	return utils.SendError(c, fiber.StatusInternalServerError, fallback)
}
