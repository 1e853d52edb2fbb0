package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const unknownSubjectName = "Unknown subject"

// MonitoringService manages monthly monitoring scores.
type MonitoringService interface {
	List(ctx context.Context, req dto.MonitoringListRequest) ([]models.Monitoring, error)
	Summary(ctx context.Context, req dto.MonitoringListRequest) (dto.MonitoringSummaryResponse, error)
	Get(ctx context.Context, id uint) (models.Monitoring, error)
	Create(ctx context.Context, req dto.MonitoringCreateRequest) (models.Monitoring, error)
	Update(ctx context.Context, id uint, req dto.MonitoringUpdateRequest) (models.Monitoring, error)
	Delete(ctx context.Context, id uint) error
	BulkUpsert(ctx context.Context, req dto.MonitoringBulkRequest, actor ActivityActor) (dto.BulkUpsertResponse, error)
}

// MonitoringDependencies groups the collaborators of the monitoring service.
type MonitoringDependencies struct {
	Monitorings repository.MonitoringRepository
	Students    repository.StudentRepository
	Subjects    repository.SubjectRepository
	StudyYears  repository.StudyYearRepository
	Cache       StudentResultsCache
	Events      EventPublisher
	Activity    ActivityRecorder
	Validator   *validator.Validate
	ChunkSize   int
}

type monitoringService struct {
	deps   MonitoringDependencies
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewMonitoringService constructs the monitoring service.
func NewMonitoringService(deps MonitoringDependencies, logger zerolog.Logger) MonitoringService {
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
	return &monitoringService{
		deps:   deps,
		logger: logger.With().Str("component", "monitoring_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/school-records-api/internal/service/monitoring"),
	}
}

func monitoringFilter(req dto.MonitoringListRequest) repository.MonitoringFilter {
	filter := repository.MonitoringFilter{
		StudyYearID: req.StudyYearID,
		GradeID:     req.GradeID,
		Search:      req.Search,
	}
	if month, ok := utils.NormalizeMonth(req.Month); ok {
		filter.Month = month
	}
	return filter
}

func (s *monitoringService) List(ctx context.Context, req dto.MonitoringListRequest) ([]models.Monitoring, error) {
	return s.deps.Monitorings.List(ctx, monitoringFilter(req))
}

func (s *monitoringService) Summary(ctx context.Context, req dto.MonitoringListRequest) (dto.MonitoringSummaryResponse, error) {
	totals, groups, err := s.deps.Monitorings.Summarize(ctx, monitoringFilter(req))
	if err != nil {
		return dto.MonitoringSummaryResponse{}, err
	}

	subjectIDs := make([]uint, 0, len(groups))
	for _, group := range groups {
		subjectIDs = append(subjectIDs, group.SubjectID)
	}
	subjects, err := preload(ctx, subjectIDs, s.deps.Subjects.FindByIDs, func(subject models.Subject) uint { return subject.ID })
	if err != nil {
		return dto.MonitoringSummaryResponse{}, err
	}

	bySubject := make([]dto.MonitoringSubjectSummary, 0, len(groups))
	for _, group := range groups {
		name := unknownSubjectName
		if subject, ok := subjects[group.SubjectID]; ok {
			name = subject.Name
		}
		bySubject = append(bySubject, dto.MonitoringSubjectSummary{
			SubjectID:    group.SubjectID,
			SubjectName:  name,
			AverageScore: group.AverageScore,
			Entries:      group.Entries,
		})
	}

	return dto.MonitoringSummaryResponse{
		TotalEntries:   totals.Total,
		OverallAverage: totals.Average,
		BySubject:      bySubject,
	}, nil
}

func (s *monitoringService) Get(ctx context.Context, id uint) (models.Monitoring, error) {
	entry, err := s.deps.Monitorings.GetByID(ctx, id)
	return entry, mapNotFound(err, ErrMonitoringNotFound)
}

// Create stores a monthly score, replacing the score of an existing entry
// with the same student, subject, study year and month.
func (s *monitoringService) Create(ctx context.Context, req dto.MonitoringCreateRequest) (models.Monitoring, error) {
	month, monthOK := utils.NormalizeMonth(req.Month)
	studentID := strings.TrimSpace(req.StudentID)
	if !monthOK || studentID == "" {
		return models.Monitoring{}, invalidInput("month and studentId are required")
	}
	if req.SubjectID == 0 || req.StudyYearID == 0 {
		return models.Monitoring{}, invalidInput("subjectId and studyYearId are required")
	}
	if req.Score == nil {
		return models.Monitoring{}, invalidInput("score must be a number")
	}
	req.StudentID = studentID
	if err := s.deps.Validator.Struct(req); err != nil {
		return models.Monitoring{}, err
	}

	student, err := s.deps.Students.GetByID(ctx, studentID)
	if err != nil {
		return models.Monitoring{}, mapNotFound(err, ErrStudentNotFound)
	}
	year, err := s.deps.StudyYears.GetByID(ctx, req.StudyYearID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Monitoring{}, invalidInput("Study year not found")
		}
		return models.Monitoring{}, err
	}
	if student.StudyYearID != year.ID {
		return models.Monitoring{}, invalidInput("Student belongs to a different study year")
	}
	if err := s.ensureSubject(ctx, req.SubjectID); err != nil {
		return models.Monitoring{}, err
	}
	if !utils.IsMonthWithinStudyYear(month, year.StartDate, year.EndDate) {
		return models.Monitoring{}, invalidInput("month is outside the selected study year range")
	}

	stored, err := s.deps.Monitorings.Upsert(ctx, &models.Monitoring{
		StudentID:   studentID,
		SubjectID:   req.SubjectID,
		StudyYearID: year.ID,
		Month:       month,
		Score:       *req.Score,
	})
	if err != nil {
		return models.Monitoring{}, err
	}

	s.deps.Cache.Invalidate(ctx, studentID)
	return stored, nil
}

func (s *monitoringService) Update(ctx context.Context, id uint, req dto.MonitoringUpdateRequest) (models.Monitoring, error) {
	current, err := s.deps.Monitorings.GetByID(ctx, id)
	if err != nil {
		return models.Monitoring{}, mapNotFound(err, ErrMonitoringNotFound)
	}

	updates := map[string]interface{}{}
	month := current.Month
	if req.Month.Set {
		normalized, ok := utils.NormalizeMonth(req.Month.Value)
		if req.Month.Null || !ok {
			return models.Monitoring{}, invalidInput("month must be a non-empty string")
		}
		month = normalized
		updates["month"] = normalized
	}
	if req.Score.Set {
		if req.Score.Null {
			return models.Monitoring{}, invalidInput("score must be a number")
		}
		updates["score"] = req.Score.Value
	}
	if req.SubjectID.Present() && req.SubjectID.Value > 0 && req.SubjectID.Value != current.SubjectID {
		if err := s.ensureSubject(ctx, req.SubjectID.Value); err != nil {
			return models.Monitoring{}, err
		}
		updates["subject_id"] = req.SubjectID.Value
	}

	yearID := current.StudyYearID
	if req.StudyYearID.Present() && req.StudyYearID.Value > 0 && req.StudyYearID.Value != current.StudyYearID {
		student, err := s.deps.Students.GetByID(ctx, current.StudentID)
		if err != nil {
			return models.Monitoring{}, mapNotFound(err, ErrStudentNotFound)
		}
		if student.StudyYearID != req.StudyYearID.Value {
			return models.Monitoring{}, invalidInput("Student belongs to a different study year")
		}
		yearID = req.StudyYearID.Value
		updates["study_year_id"] = yearID
	}

	if _, ok := updates["month"]; ok || yearID != current.StudyYearID {
		year, err := s.deps.StudyYears.GetByID(ctx, yearID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Monitoring{}, invalidInput("Study year not found")
			}
			return models.Monitoring{}, err
		}
		if !utils.IsMonthWithinStudyYear(month, year.StartDate, year.EndDate) {
			return models.Monitoring{}, invalidInput("month is outside the study year range")
		}
	}

	if len(updates) == 0 {
		return current, nil
	}

	updated, err := s.deps.Monitorings.Update(ctx, id, updates)
	if err != nil {
		if isDuplicateKey(err) {
			return models.Monitoring{}, invalidInput("A monitoring entry already exists for this student, subject and month")
		}
		return models.Monitoring{}, mapNotFound(err, ErrMonitoringNotFound)
	}

	s.deps.Cache.Invalidate(ctx, current.StudentID)
	return updated, nil
}

func (s *monitoringService) Delete(ctx context.Context, id uint) error {
	entry, err := s.deps.Monitorings.GetByID(ctx, id)
	if err != nil {
		return mapNotFound(err, ErrMonitoringNotFound)
	}
	if err := s.deps.Monitorings.Delete(ctx, id); err != nil {
		return mapNotFound(err, ErrMonitoringNotFound)
	}

	s.deps.Cache.Invalidate(ctx, entry.StudentID)
	return nil
}

func (s *monitoringService) ensureSubject(ctx context.Context, id uint) error {
	if _, err := s.deps.Subjects.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalidInput("Subject not found")
		}
		return err
	}
	return nil
}

type monitoringRow struct {
	bulkRow
	studyYearID uint
	month       string
}

func (s *monitoringService) BulkUpsert(ctx context.Context, req dto.MonitoringBulkRequest, actor ActivityActor) (dto.BulkUpsertResponse, error) {
	if len(req.Entries) == 0 {
		return dto.BulkUpsertResponse{}, invalidInput("Entries array is required")
	}
	gradeFilter, err := utils.ParseScopeID(req.GradeID)
	if err != nil {
		return dto.BulkUpsertResponse{}, invalidInput("gradeId must be a number")
	}

	ctx, span := s.tracer.Start(ctx, "monitoring.bulk_upsert", trace.WithAttributes(
		attribute.Int("bulk.entries", len(req.Entries)),
	))
	defer span.End()

	rows := make([]monitoringRow, 0, len(req.Entries))
	for i, entry := range req.Entries {
		r := monitoringRow{bulkRow: bulkRow{row: i + 1}}
		var ok bool
		if r.studentID, ok = utils.CoerceString(entry.StudentID); !ok {
			r.shapeError = "studentId is required"
			rows = append(rows, r)
			continue
		}
		subjectID, subjectOK := utils.CoerceID(entry.SubjectID)
		yearID, yearOK := utils.CoerceID(entry.StudyYearID)
		month, monthOK := utils.NormalizeMonth(entry.Month)
		if !subjectOK || !yearOK || !monthOK {
			r.shapeError = "subjectId, studyYearId, and month are required"
			rows = append(rows, r)
			continue
		}
		r.subjectID, r.studyYearID, r.month = subjectID, yearID, month
		if r.score, ok = utils.CoerceNumber(entry.Score); !ok {
			r.shapeError = "score must be a number"
		}
		rows = append(rows, r)
	}

	refs, years, err := s.loadReferences(ctx, rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reference preload failed")
		return dto.BulkUpsertResponse{}, err
	}

	accepted, rowErrors := reconcileRows(rows, func(r monitoringRow) (models.Monitoring, string) {
		student, rejection := checkStudent(refs, r.bulkRow, gradeFilter)
		if rejection != "" {
			return models.Monitoring{}, rejection
		}
		year, ok := years[r.studyYearID]
		if !ok {
			return models.Monitoring{}, fmt.Sprintf("study year %d not found", r.studyYearID)
		}
		if student.StudyYearID != year.ID {
			return models.Monitoring{}, fmt.Sprintf("student \"%s\" is in another study year", r.studentID)
		}
		if _, ok := refs.subjects[r.subjectID]; !ok {
			return models.Monitoring{}, fmt.Sprintf("subject %d not found", r.subjectID)
		}
		if !utils.IsMonthWithinStudyYear(r.month, year.StartDate, year.EndDate) {
			return models.Monitoring{}, fmt.Sprintf("month \"%s\" is outside the study year range", r.month)
		}
		return models.Monitoring{
			StudentID:   r.studentID,
			SubjectID:   r.subjectID,
			StudyYearID: r.studyYearID,
			Month:       r.month,
			Score:       r.score,
		}, ""
	})
	touched := make([]string, 0, len(accepted))
	for _, entry := range accepted {
		touched = append(touched, entry.StudentID)
	}

	recordBulkOutcome(bulkKindMonitoring, len(accepted), len(rowErrors))
	span.SetAttributes(
		attribute.Int("bulk.accepted", len(accepted)),
		attribute.Int("bulk.rejected", len(rowErrors)),
	)

	updated, err := commitChunks(ctx, s.tracer, s.logger, bulkKindMonitoring, accepted, s.deps.ChunkSize, s.deps.Monitorings.UpsertChunk)
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
		Msg("monitoring bulk upsert completed")

	summary := map[string]interface{}{
		"entries":  len(req.Entries),
		"updated":  updated,
		"rejected": len(rowErrors),
	}
	if gradeFilter != nil {
		summary["gradeId"] = *gradeFilter
	}
	recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     ActionMonitoringImported,
		EntityType: "monitoring",
		Metadata:   summary,
	})
	s.deps.Events.Publish(ctx, SubjectMonitoringImported, summary)
	span.SetStatus(codes.Ok, "completed")

	return dto.BulkUpsertResponse{Updated: updated, Errors: rowErrors}, nil
}

func (s *monitoringService) loadReferences(ctx context.Context, rows []monitoringRow) (bulkReferences, map[uint]models.StudyYear, error) {
	refs, err := loadBulkReferences(ctx, s.deps.Students, s.deps.Subjects, rows)
	if err != nil {
		return refs, nil, err
	}
	years, err := preload(ctx,
		validKeys(rows, func(r monitoringRow) uint { return r.studyYearID }),
		s.deps.StudyYears.FindByIDs,
		func(y models.StudyYear) uint { return y.ID },
	)
	return refs, years, err
}
