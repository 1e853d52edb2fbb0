package service

import (
	"context"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/models"
	"github.com/noah-isme/school-records-api/internal/repository"
	"github.com/noah-isme/school-records-api/internal/utils"
)

// StudyYearService manages academic years.
type StudyYearService interface {
	List(ctx context.Context) ([]dto.StudyYearResponse, error)
	Create(ctx context.Context, req dto.StudyYearCreateRequest) (dto.StudyYearResponse, error)
	Update(ctx context.Context, id uint, req dto.StudyYearUpdateRequest) (dto.StudyYearResponse, error)
	Delete(ctx context.Context, id uint) error
}

type studyYearService struct {
	repo   repository.StudyYearRepository
	policy *bluemonday.Policy
	logger zerolog.Logger
}

// NewStudyYearService constructs the study year service.
func NewStudyYearService(repo repository.StudyYearRepository, logger zerolog.Logger) StudyYearService {
	return &studyYearService{
		repo:   repo,
		policy: bluemonday.StrictPolicy(),
		logger: logger.With().Str("component", "study_year_service").Logger(),
	}
}

func (s *studyYearService) List(ctx context.Context) ([]dto.StudyYearResponse, error) {
	years, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]dto.StudyYearResponse, 0, len(years))
	for _, year := range years {
		result = append(result, dto.NewStudyYearResponse(year))
	}
	return result, nil
}

func (s *studyYearService) Create(ctx context.Context, req dto.StudyYearCreateRequest) (dto.StudyYearResponse, error) {
	name := cleanText(s.policy, req.Name)
	start, startErr := utils.ParseDate(req.StartDate)
	end, endErr := utils.ParseDate(req.EndDate)
	if name == "" || startErr != nil || endErr != nil || start.After(end) {
		return dto.StudyYearResponse{}, invalidInput("Invalid name or dates")
	}

	year := models.StudyYear{Name: name, StartDate: start, EndDate: end}
	if err := s.repo.Create(ctx, &year); err != nil {
		return dto.StudyYearResponse{}, err
	}

	s.logger.Info().Uint("study_year_id", year.ID).Str("name", year.Name).Msg("study year created")
	return dto.NewStudyYearResponse(year), nil
}

func (s *studyYearService) Update(ctx context.Context, id uint, req dto.StudyYearUpdateRequest) (dto.StudyYearResponse, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.StudyYearResponse{}, mapNotFound(err, ErrStudyYearNotFound)
	}

	updates := map[string]interface{}{}
	if req.Name.Set {
		name := cleanText(s.policy, req.Name.Value)
		if req.Name.Null || name == "" {
			return dto.StudyYearResponse{}, invalidInput("Invalid name or dates")
		}
		updates["name"] = name
	}

	start, end := current.StartDate, current.EndDate
	parseField := func(field dto.Optional[string], column string, target *time.Time) error {
		if !field.Set {
			return nil
		}
		if field.Null {
			return invalidInput("Invalid name or dates")
		}
		parsed, err := utils.ParseDate(field.Value)
		if err != nil {
			return invalidInput("Invalid name or dates")
		}
		*target = parsed
		updates[column] = parsed
		return nil
	}
	if err := parseField(req.StartDate, "start_date", &start); err != nil {
		return dto.StudyYearResponse{}, err
	}
	if err := parseField(req.EndDate, "end_date", &end); err != nil {
		return dto.StudyYearResponse{}, err
	}
	if start.After(end) {
		return dto.StudyYearResponse{}, invalidInput("Invalid name or dates")
	}

	if len(updates) == 0 {
		return dto.NewStudyYearResponse(current), nil
	}

	year, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return dto.StudyYearResponse{}, mapNotFound(err, ErrStudyYearNotFound)
	}
	return dto.NewStudyYearResponse(year), nil
}

func (s *studyYearService) Delete(ctx context.Context, id uint) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return mapNotFound(err, ErrStudyYearNotFound)
	}

	deps, err := s.repo.CountDependents(ctx, id)
	if err != nil {
		return err
	}
	if deps.Any() {
		return ErrStudyYearInUse
	}

	return mapNotFound(s.repo.Delete(ctx, id), ErrStudyYearNotFound)
}
