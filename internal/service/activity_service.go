package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/models"
	"github.com/noah-isme/school-records-api/internal/repository"
)

// Audit actions recorded by the services.
const (
	ActionYearRolledOver     = "years.rollover"
	ActionMarksImported      = "marks.bulk_upsert"
	ActionMonitoringImported = "monitoring.bulk_upsert"
	ActionStudentsImported   = "students.import"
	ActionStudentDeleted     = "students.delete"
)

// ActivityActor represents the authenticated actor performing an admin action.
type ActivityActor struct {
	ID   uint
	Role string
}

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	ActorID    uint
	ActorRole  string
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]interface{}
}

// ActivityRecorder defines behaviour for recording activity logs.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error)
}

// ActivityService exposes methods to query and persist activity logs.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return dto.ActivityResponse{}, fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return dto.ActivityResponse{}, fmt.Errorf("entity type is required")
	}

	model := models.ActivityLog{
		ActorID:    entry.ActorID,
		ActorRole:  normalizeRole(entry.ActorRole),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:   strings.TrimSpace(entry.EntityID),
		Metadata:   sanitizeMetadata(entry.Metadata),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", model.Action).Msg("failed to persist activity log")
		return dto.ActivityResponse{}, err
	}

	return dto.NewActivityResponse(model), nil
}

func (s *activityService) List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	entries, total, err := s.repo.List(ctx, repository.ActivityLogFilter{
		Page:       page,
		PageSize:   pageSize,
		Action:     strings.ToLower(strings.TrimSpace(req.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(req.EntityType)),
	})
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	items := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewActivityResponse(entry))
	}

	return dto.ActivityListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

// recordActivity writes an audit entry without failing the caller; the
// write it describes has already been committed.
func recordActivity(ctx context.Context, recorder ActivityRecorder, logger zerolog.Logger, entry ActivityEntry) {
	if recorder == nil {
		return
	}
	if _, err := recorder.Record(ctx, entry); err != nil {
		logger.Warn().Err(err).Str("action", entry.Action).Msg("activity log not recorded")
	}
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "password") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}
