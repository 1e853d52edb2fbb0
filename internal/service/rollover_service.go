package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/models"
	"github.com/noah-isme/school-records-api/internal/observability"
	"github.com/noah-isme/school-records-api/internal/repository"
	"github.com/noah-isme/school-records-api/internal/utils"
)

// DefaultGraduateAt is the grade number from which students leave the school.
const DefaultGraduateAt = 11

// RolloverService opens a new study year from an existing one.
type RolloverService interface {
	Rollover(ctx context.Context, sourceYearID uint, req dto.RolloverRequest, actor ActivityActor) (dto.RolloverResponse, error)
}

type rolloverService struct {
	store    repository.RolloverStore
	cache    StudentResultsCache
	events   EventPublisher
	activity ActivityRecorder
	policy   *bluemonday.Policy
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewRolloverService constructs the rollover orchestrator.
func NewRolloverService(store repository.RolloverStore, cache StudentResultsCache, events EventPublisher, activity ActivityRecorder, logger zerolog.Logger) RolloverService {
	if cache == nil {
		cache = noopStudentResultsCache{}
	}
	if events == nil {
		events = noopEventPublisher{}
	}
	return &rolloverService{
		store:    store,
		cache:    cache,
		events:   events,
		activity: activity,
		policy:   bluemonday.StrictPolicy(),
		logger:   logger.With().Str("component", "rollover_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/school-records-api/internal/service/rollover"),
	}
}

type rolloverPlan struct {
	year    models.StudyYear
	options dto.RolloverOptions
}

func (s *rolloverService) plan(req dto.RolloverRequest) (rolloverPlan, error) {
	name := cleanText(s.policy, req.Name)
	start, startErr := utils.ParseDate(req.StartDate)
	end, endErr := utils.ParseDate(req.EndDate)
	if name == "" || startErr != nil || endErr != nil || start.After(end) {
		return rolloverPlan{}, invalidInput("Invalid name or dates")
	}

	graduateAt := float64(DefaultGraduateAt)
	if raw, isString := req.GraduateAt.(string); req.GraduateAt != nil && !(isString && strings.TrimSpace(raw) == "") {
		parsed, ok := utils.CoerceNumber(req.GraduateAt)
		if !ok {
			return rolloverPlan{}, invalidInput("graduateAt must be a number")
		}
		graduateAt = parsed
	}

	return rolloverPlan{
		year: models.StudyYear{Name: name, StartDate: start, EndDate: end},
		options: dto.RolloverOptions{
			MoveStudents:    flagEnabled(req.MoveStudents),
			IncrementGrades: flagEnabled(req.IncrementGrades),
			CopyQuarters:    flagEnabled(req.CopyQuarters),
			GraduateAt:      graduateAt,
		},
	}, nil
}

func (s *rolloverService) Rollover(ctx context.Context, sourceYearID uint, req dto.RolloverRequest, actor ActivityActor) (dto.RolloverResponse, error) {
	plan, err := s.plan(req)
	if err != nil {
		observability.Rollovers().WithLabelValues("invalid").Inc()
		return dto.RolloverResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "years.rollover", trace.WithAttributes(
		attribute.Int64("rollover.source_year_id", int64(sourceYearID)),
		attribute.Bool("rollover.move_students", plan.options.MoveStudents),
		attribute.Bool("rollover.increment_grades", plan.options.IncrementGrades),
		attribute.Bool("rollover.copy_quarters", plan.options.CopyQuarters),
	))
	defer span.End()

	resp := dto.RolloverResponse{Message: "Rollover completed", Options: plan.options}
	newYear := plan.year

	err = s.store.Run(ctx, func(tx repository.RolloverTx) error {
		resp.QuartersCopied, resp.StudentsMoved, resp.StudentsGradeIncremented, resp.GraduatesSkipped = 0, 0, 0, 0
		newYear = plan.year

		source, err := tx.LoadStudyYear(sourceYearID)
		if err != nil {
			return mapNotFound(err, ErrStudyYearNotFound)
		}

		var roster []models.Student
		if plan.options.MoveStudents {
			if roster, err = tx.LoadRoster(source.ID); err != nil {
				return err
			}
		}

		if err := tx.CreateStudyYear(&newYear); err != nil {
			return err
		}

		if plan.options.CopyQuarters && len(source.Quarters) > 0 {
			quarters := make([]models.Quarter, 0, len(source.Quarters))
			for _, quarter := range source.Quarters {
				quarters = append(quarters, models.Quarter{
					Name:        quarter.Name,
					StudyYearID: newYear.ID,
					StartDate:   shiftOneYear(quarter.StartDate),
					EndDate:     shiftOneYear(quarter.EndDate),
				})
			}
			if err := tx.CreateQuarters(quarters); err != nil {
				return err
			}
			newYear.Quarters = quarters
			resp.QuartersCopied = len(quarters)
		}

		// Promoted grade per source grade, valid for this rollover only.
		promoted := map[uint]uint{}
		for _, student := range roster {
			if student.Grade != nil {
				if number, ok := utils.ParseFirstNumber(student.Grade.Name); ok && float64(number) >= plan.options.GraduateAt {
					resp.GraduatesSkipped++
					continue
				}
			}

			gradeID := student.GradeID
			if plan.options.IncrementGrades && student.Grade != nil {
				next, ok := utils.IncrementFirstNumberInText(student.Grade.Name)
				if ok && next != student.Grade.Name {
					id, cached := promoted[student.Grade.ID]
					if !cached {
						grade, err := tx.FindOrCreateGrade(next)
						if err != nil {
							return err
						}
						id = grade.ID
						promoted[student.Grade.ID] = id
					}
					gradeID = &id
					resp.StudentsGradeIncremented++
				}
			}

			if err := tx.MoveStudent(student.ID, newYear.ID, gradeID); err != nil {
				return err
			}
			resp.StudentsMoved++
		}

		return nil
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrStudyYearNotFound) {
			span.SetStatus(codes.Error, "source year not found")
			observability.Rollovers().WithLabelValues("not_found").Inc()
			return dto.RolloverResponse{}, err
		}
		span.SetStatus(codes.Error, "rollover failed")
		observability.Rollovers().WithLabelValues("failed").Inc()
		s.logger.Error().Err(err).Uint("source_year_id", sourceYearID).Msg("rollover rolled back")
		return dto.RolloverResponse{}, err
	}

	resp.NewYear = dto.NewStudyYearResponse(newYear)

	observability.Rollovers().WithLabelValues("completed").Inc()
	observability.RolloverStudents().WithLabelValues("moved").Add(float64(resp.StudentsMoved))
	observability.RolloverStudents().WithLabelValues("promoted").Add(float64(resp.StudentsGradeIncremented))
	observability.RolloverStudents().WithLabelValues("graduated").Add(float64(resp.GraduatesSkipped))
	span.SetAttributes(
		attribute.Int64("rollover.new_year_id", int64(newYear.ID)),
		attribute.Int("rollover.students_moved", resp.StudentsMoved),
	)
	span.SetStatus(codes.Ok, "completed")

	if resp.StudentsMoved > 0 {
		s.cache.InvalidateAll(ctx)
	}

	s.logger.Info().
		Uint("source_year_id", sourceYearID).
		Uint("new_year_id", newYear.ID).
		Int("quarters_copied", resp.QuartersCopied).
		Int("students_moved", resp.StudentsMoved).
		Int("students_promoted", resp.StudentsGradeIncremented).
		Int("graduates_skipped", resp.GraduatesSkipped).
		Msg("study year rolled over")

	summary := map[string]interface{}{
		"sourceYearId":             sourceYearID,
		"newYearId":                newYear.ID,
		"quartersCopied":           resp.QuartersCopied,
		"studentsMoved":            resp.StudentsMoved,
		"studentsGradeIncremented": resp.StudentsGradeIncremented,
		"graduatesSkipped":         resp.GraduatesSkipped,
	}
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     ActionYearRolledOver,
		EntityType: "study_year",
		EntityID:   strconv.FormatUint(uint64(newYear.ID), 10),
		Metadata:   summary,
	})
	s.events.Publish(ctx, SubjectYearRolledOver, summary)

	return resp, nil
}

func shiftOneYear(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	shifted := value.AddDate(1, 0, 0)
	return &shifted
}
