package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/models"
	"github.com/noah-isme/school-records-api/internal/repository"
	"github.com/noah-isme/school-records-api/internal/utils"
)

// MarkService manages quarterly marks.
type MarkService interface {
	List(ctx context.Context, req dto.MarkListRequest) ([]models.Mark, error)
	Get(ctx context.Context, id uint) (models.Mark, error)
	Create(ctx context.Context, req dto.MarkCreateRequest) (models.Mark, error)
	UpdateScore(ctx context.Context, id uint, req dto.MarkUpdateRequest) (models.Mark, error)
	Delete(ctx context.Context, id uint) error
	BulkUpsert(ctx context.Context, req dto.MarkBulkRequest, actor ActivityActor) (dto.BulkUpsertResponse, error)
}

// MarkDependencies groups the collaborators of the mark service.
type MarkDependencies struct {
	Marks     repository.MarkRepository
	Students  repository.StudentRepository
	Subjects  repository.SubjectRepository
	Quarters  repository.QuarterRepository
	Cache     StudentResultsCache
	Events    EventPublisher
	Activity  ActivityRecorder
	Validator *validator.Validate
	ChunkSize int
}

type markService struct {
	deps   MarkDependencies
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewMarkService constructs the mark service.
func NewMarkService(deps MarkDependencies, logger zerolog.Logger) MarkService {
	if deps.Cache == nil {
		deps.Cache = noopStudentResultsCache{}
	}
	if deps.Events == nil {
		deps.Events = noopEventPublisher{}
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.ChunkSize <= 0 {
		deps.ChunkSize = DefaultBulkChunkSize
	}
	return &markService{
		deps:   deps,
		logger: logger.With().Str("component", "mark_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/school-records-api/internal/service/marks"),
	}
}

func (s *markService) List(ctx context.Context, req dto.MarkListRequest) ([]models.Mark, error) {
	return s.deps.Marks.List(ctx, repository.MarkFilter{
		StudentID:   req.StudentID,
		SubjectID:   req.SubjectID,
		QuarterID:   req.QuarterID,
		GradeID:     req.GradeID,
		StudyYearID: req.StudyYearID,
		Search:      req.Search,
	})
}

func (s *markService) Get(ctx context.Context, id uint) (models.Mark, error) {
	mark, err := s.deps.Marks.GetByID(ctx, id)
	return mark, mapNotFound(err, ErrMarkNotFound)
}

func (s *markService) Create(ctx context.Context, req dto.MarkCreateRequest) (models.Mark, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return models.Mark{}, err
	}

	invalidRef := invalidInput("Invalid student, subject, or quarter reference")

	student, err := s.deps.Students.GetByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Mark{}, invalidRef
		}
		return models.Mark{}, err
	}
	if _, err := s.deps.Subjects.GetByID(ctx, req.SubjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Mark{}, invalidRef
		}
		return models.Mark{}, err
	}
	quarter, err := s.deps.Quarters.GetByID(ctx, req.QuarterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Mark{}, invalidRef
		}
		return models.Mark{}, err
	}
	if quarter.StudyYearID != student.StudyYearID {
		return models.Mark{}, invalidInput("Quarter belongs to a different study year than the student")
	}

	mark := models.Mark{
		StudentID: student.ID,
		SubjectID: req.SubjectID,
		QuarterID: req.QuarterID,
		Score:     *req.Score,
	}
	if err := s.deps.Marks.Create(ctx, &mark); err != nil {
		if isDuplicateKey(err) {
			return models.Mark{}, invalidInput("Mark already exists for this student, subject and quarter")
		}
		return models.Mark{}, err
	}

	s.deps.Cache.Invalidate(ctx, student.ID)
	return s.Get(ctx, mark.ID)
}

func (s *markService) UpdateScore(ctx context.Context, id uint, req dto.MarkUpdateRequest) (models.Mark, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return models.Mark{}, err
	}

	mark, err := s.deps.Marks.UpdateScore(ctx, id, *req.Score)
	if err != nil {
		return models.Mark{}, mapNotFound(err, ErrMarkNotFound)
	}

	s.deps.Cache.Invalidate(ctx, mark.StudentID)
	return mark, nil
}

func (s *markService) Delete(ctx context.Context, id uint) error {
	mark, err := s.deps.Marks.GetByID(ctx, id)
	if err != nil {
		return mapNotFound(err, ErrMarkNotFound)
	}
	if err := s.deps.Marks.Delete(ctx, id); err != nil {
		return mapNotFound(err, ErrMarkNotFound)
	}

	s.deps.Cache.Invalidate(ctx, mark.StudentID)
	return nil
}

type markRow struct {
	bulkRow
	quarterID uint
}

func (s *markService) BulkUpsert(ctx context.Context, req dto.MarkBulkRequest, actor ActivityActor) (dto.BulkUpsertResponse, error) {
	if len(req.Entries) == 0 {
		return dto.BulkUpsertResponse{}, invalidInput("Entries array is required")
	}
	yearFilter, err := utils.ParseScopeID(req.StudyYearID)
	if err != nil {
		return dto.BulkUpsertResponse{}, invalidInput("studyYearId must be a number")
	}
	gradeFilter, err := utils.ParseScopeID(req.GradeID)
	if err != nil {
		return dto.BulkUpsertResponse{}, invalidInput("gradeId must be a number")
	}

	ctx, span := s.tracer.Start(ctx, "marks.bulk_upsert", trace.WithAttributes(
		attribute.Int("bulk.entries", len(req.Entries)),
	))
	defer span.End()

	rows := make([]markRow, 0, len(req.Entries))
	for i, entry := range req.Entries {
		r := markRow{bulkRow: bulkRow{row: i + 1}}
		var ok bool
		if r.studentID, ok = utils.CoerceString(entry.StudentID); !ok {
			r.shapeError = "studentId is required"
			rows = append(rows, r)
			continue
		}
		subjectID, subjectOK := utils.CoerceID(entry.SubjectID)
		quarterID, quarterOK := utils.CoerceID(entry.QuarterID)
		if !subjectOK || !quarterOK {
			r.shapeError = "subjectId and quarterId are required numbers"
			rows = append(rows, r)
			continue
		}
		r.subjectID, r.quarterID = subjectID, quarterID
		if r.score, ok = utils.CoerceNumber(entry.Score); !ok {
			r.shapeError = "score must be a number"
		}
		rows = append(rows, r)
	}

	refs, quarters, err := s.loadReferences(ctx, rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reference preload failed")
		return dto.BulkUpsertResponse{}, err
	}

	accepted, rowErrors := reconcileRows(rows, func(r markRow) (models.Mark, string) {
		student, rejection := checkStudent(refs, r.bulkRow, gradeFilter)
		if rejection != "" {
			return models.Mark{}, rejection
		}
		quarter, ok := quarters[r.quarterID]
		if !ok {
			return models.Mark{}, fmt.Sprintf("quarter %d not found", r.quarterID)
		}
		if yearFilter != nil && quarter.StudyYearID != *yearFilter {
			return models.Mark{}, fmt.Sprintf("quarter %d not in selected study year", r.quarterID)
		}
		if student.StudyYearID != quarter.StudyYearID {
			return models.Mark{}, fmt.Sprintf("student \"%s\" is in another study year", r.studentID)
		}
		if _, ok := refs.subjects[r.subjectID]; !ok {
			return models.Mark{}, fmt.Sprintf("subject %d not found", r.subjectID)
		}
		return models.Mark{
			StudentID: r.studentID,
			SubjectID: r.subjectID,
			QuarterID: r.quarterID,
			Score:     r.score,
		}, ""
	})
	touched := make([]string, 0, len(accepted))
	for _, mark := range accepted {
		touched = append(touched, mark.StudentID)
	}

	recordBulkOutcome(bulkKindMarks, len(accepted), len(rowErrors))
	span.SetAttributes(
		attribute.Int("bulk.accepted", len(accepted)),
		attribute.Int("bulk.rejected", len(rowErrors)),
	)

	updated, err := commitChunks(ctx, s.tracer, s.logger, bulkKindMarks, accepted, s.deps.ChunkSize, s.deps.Marks.UpsertChunk)
	touched = uniqueStrings(touched)
	if updated > 0 {
		s.deps.Cache.Invalidate(ctx, touched...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chunk commit failed")
		return dto.BulkUpsertResponse{}, err
	}

	s.logger.Info().
		Int("entries", len(req.Entries)).
		Int("updated", updated).
		Int("rejected", len(rowErrors)).
		Msg("marks bulk upsert completed")

	summary := map[string]interface{}{
		"entries":  len(req.Entries),
		"updated":  updated,
		"rejected": len(rowErrors),
	}
	if yearFilter != nil {
		summary["studyYearId"] = *yearFilter
	}
	if gradeFilter != nil {
		summary["gradeId"] = *gradeFilter
	}
	entityID := ""
	if yearFilter != nil {
		entityID = strconv.FormatUint(uint64(*yearFilter), 10)
	}
	recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     ActionMarksImported,
		EntityType: "mark",
		EntityID:   entityID,
		Metadata:   summary,
	})
	s.deps.Events.Publish(ctx, SubjectMarksImported, summary)
	span.SetStatus(codes.Ok, "completed")

	return dto.BulkUpsertResponse{Updated: updated, Errors: rowErrors}, nil
}

func (s *markService) loadReferences(ctx context.Context, rows []markRow) (bulkReferences, map[uint]models.Quarter, error) {
	refs, err := loadBulkReferences(ctx, s.deps.Students, s.deps.Subjects, rows)
	if err != nil {
		return refs, nil, err
	}
	quarters, err := preload(ctx,
		validKeys(rows, func(r markRow) uint { return r.quarterID }),
		s.deps.Quarters.FindByIDs,
		func(q models.Quarter) uint { return q.ID },
	)
	return refs, quarters, err
}
