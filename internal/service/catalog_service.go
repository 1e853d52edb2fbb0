package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/models"
	"github.com/noah-isme/school-records-api/internal/repository"
	"github.com/noah-isme/school-records-api/internal/utils"
)

// GradeService manages class levels.
type GradeService interface {
	List(ctx context.Context) ([]dto.GradeResponse, error)
	Create(ctx context.Context, req dto.GradeRequest) (models.Grade, error)
	Rename(ctx context.Context, id uint, req dto.GradeRequest) (models.Grade, error)
	Delete(ctx context.Context, id uint) error
}

type gradeService struct {
	repo   repository.GradeRepository
	cache  StudentResultsCache
	policy *bluemonday.Policy
	logger zerolog.Logger
}

// NewGradeService constructs the grade service. Renames and deletes flush the
// student results cache, which embeds grade names.
func NewGradeService(repo repository.GradeRepository, cache StudentResultsCache, logger zerolog.Logger) GradeService {
	if cache == nil {
		cache = noopStudentResultsCache{}
	}
	return &gradeService{
		repo:   repo,
		cache:  cache,
		policy: bluemonday.StrictPolicy(),
		logger: logger.With().Str("component", "grade_service").Logger(),
	}
}

func (s *gradeService) List(ctx context.Context) ([]dto.GradeResponse, error) {
	grades, err := s.repo.ListWithCounts(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]dto.GradeResponse, 0, len(grades))
	for _, grade := range grades {
		result = append(result, dto.GradeResponse{ID: grade.ID, Name: grade.Name, StudentCount: grade.StudentCount})
	}
	return result, nil
}

func (s *gradeService) Create(ctx context.Context, req dto.GradeRequest) (models.Grade, error) {
	name := cleanText(s.policy, req.Name)
	if name == "" {
		return models.Grade{}, invalidInput("Name is required")
	}

	grade := models.Grade{Name: name}
	if err := s.repo.Create(ctx, &grade); err != nil {
		if isDuplicateKey(err) {
			return models.Grade{}, ErrGradeExists
		}
		return models.Grade{}, err
	}
	return grade, nil
}

func (s *gradeService) Rename(ctx context.Context, id uint, req dto.GradeRequest) (models.Grade, error) {
	name := cleanText(s.policy, req.Name)
	if name == "" {
		return models.Grade{}, invalidInput("Name is required")
	}

	grade, err := s.repo.Rename(ctx, id, name)
	if err != nil {
		if isDuplicateKey(err) {
			return models.Grade{}, ErrGradeExists
		}
		return models.Grade{}, mapNotFound(err, ErrGradeNotFound)
	}
	s.cache.InvalidateAll(ctx)
	return grade, nil
}

func (s *gradeService) Delete(ctx context.Context, id uint) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return mapNotFound(err, ErrGradeNotFound)
	}

	students, err := s.repo.CountStudents(ctx, id)
	if err != nil {
		return err
	}
	if students > 0 {
		return ErrGradeInUse
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapNotFound(err, ErrGradeNotFound)
	}
	s.cache.InvalidateAll(ctx)
	return nil
}

// SubjectService manages taught subjects.
type SubjectService interface {
	List(ctx context.Context) ([]models.Subject, error)
	Create(ctx context.Context, req dto.SubjectRequest) (models.Subject, error)
	Rename(ctx context.Context, id uint, req dto.SubjectRequest) (models.Subject, error)
	Delete(ctx context.Context, id uint) error
}

type subjectService struct {
	repo   repository.SubjectRepository
	cache  StudentResultsCache
	policy *bluemonday.Policy
}

// NewSubjectService constructs the subject service.
func NewSubjectService(repo repository.SubjectRepository, cache StudentResultsCache) SubjectService {
	if cache == nil {
		cache = noopStudentResultsCache{}
	}
	return &subjectService{repo: repo, cache: cache, policy: bluemonday.StrictPolicy()}
}

func (s *subjectService) List(ctx context.Context) ([]models.Subject, error) {
	return s.repo.List(ctx)
}

func (s *subjectService) Create(ctx context.Context, req dto.SubjectRequest) (models.Subject, error) {
	name := cleanText(s.policy, req.Name)
	if name == "" {
		return models.Subject{}, invalidInput("Name is required")
	}

	subject := models.Subject{Name: name}
	if err := s.repo.Create(ctx, &subject); err != nil {
		if isDuplicateKey(err) {
			return models.Subject{}, ErrSubjectExists
		}
		return models.Subject{}, err
	}
	return subject, nil
}

func (s *subjectService) Rename(ctx context.Context, id uint, req dto.SubjectRequest) (models.Subject, error) {
	name := cleanText(s.policy, req.Name)
	if name == "" {
		return models.Subject{}, invalidInput("Name is required")
	}

	subject, err := s.repo.Rename(ctx, id, name)
	if err != nil {
		if isDuplicateKey(err) {
			return models.Subject{}, ErrSubjectExists
		}
		return models.Subject{}, mapNotFound(err, ErrSubjectNotFound)
	}
	s.cache.InvalidateAll(ctx)
	return subject, nil
}

func (s *subjectService) Delete(ctx context.Context, id uint) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return mapNotFound(err, ErrSubjectNotFound)
	}

	marks, monitorings, err := s.repo.CountResults(ctx, id)
	if err != nil {
		return err
	}
	if marks > 0 || monitorings > 0 {
		return ErrSubjectInUse
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapNotFound(err, ErrSubjectNotFound)
	}
	s.cache.InvalidateAll(ctx)
	return nil
}

// QuarterService manages terms inside study years.
type QuarterService interface {
	List(ctx context.Context) ([]dto.QuarterResponse, error)
	Create(ctx context.Context, req dto.QuarterCreateRequest) (dto.QuarterResponse, error)
	Delete(ctx context.Context, id uint) error
}

type quarterService struct {
	quarters repository.QuarterRepository
	years    repository.StudyYearRepository
	policy   *bluemonday.Policy
}

// NewQuarterService constructs the quarter service.
func NewQuarterService(quarters repository.QuarterRepository, years repository.StudyYearRepository) QuarterService {
	return &quarterService{quarters: quarters, years: years, policy: bluemonday.StrictPolicy()}
}

func (s *quarterService) List(ctx context.Context) ([]dto.QuarterResponse, error) {
	quarters, err := s.quarters.List(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]dto.QuarterResponse, 0, len(quarters))
	for _, quarter := range quarters {
		result = append(result, dto.NewQuarterResponse(quarter))
	}
	return result, nil
}

func (s *quarterService) Create(ctx context.Context, req dto.QuarterCreateRequest) (dto.QuarterResponse, error) {
	name := cleanText(s.policy, req.Name)
	if name == "" || req.StudyYearID == 0 {
		return dto.QuarterResponse{}, invalidInput("Name and studyYearId are required")
	}

	year, err := s.years.GetByID(ctx, req.StudyYearID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuarterResponse{}, invalidInput("Study year not found")
		}
		return dto.QuarterResponse{}, err
	}

	start, err := optionalDate(req.StartDate)
	if err != nil {
		return dto.QuarterResponse{}, err
	}
	end, err := optionalDate(req.EndDate)
	if err != nil {
		return dto.QuarterResponse{}, err
	}
	if start != nil && end != nil && start.After(*end) {
		return dto.QuarterResponse{}, invalidInput("startDate must not be after endDate")
	}

	quarter := models.Quarter{Name: name, StudyYearID: year.ID, StartDate: start, EndDate: end}
	if err := s.quarters.Create(ctx, &quarter); err != nil {
		return dto.QuarterResponse{}, err
	}
	quarter.StudyYear = &year
	return dto.NewQuarterResponse(quarter), nil
}

func (s *quarterService) Delete(ctx context.Context, id uint) error {
	if _, err := s.quarters.GetByID(ctx, id); err != nil {
		return mapNotFound(err, ErrQuarterNotFound)
	}

	marks, err := s.quarters.CountMarks(ctx, id)
	if err != nil {
		return err
	}
	if marks > 0 {
		return ErrQuarterInUse
	}

	return mapNotFound(s.quarters.Delete(ctx, id), ErrQuarterNotFound)
}

func optionalDate(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := utils.ParseDate(*value)
	if err != nil {
		return nil, invalidInput("Invalid quarter dates")
	}
	return &parsed, nil
}
