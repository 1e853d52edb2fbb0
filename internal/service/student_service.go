package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/models"
	"github.com/noah-isme/school-records-api/internal/repository"
	"github.com/noah-isme/school-records-api/internal/utils"
)

const defaultStudentOptionLimit = 2000

// StudentService manages the student roster and the public results view.
type StudentService interface {
	List(ctx context.Context, req dto.StudentListRequest) ([]dto.StudentResponse, error)
	Options(ctx context.Context, req dto.StudentListRequest) ([]dto.StudentOption, error)
	Detail(ctx context.Context, id string) (dto.StudentDetailResponse, error)
	Results(ctx context.Context, id string) (dto.StudentResultsResponse, error)
	Create(ctx context.Context, req dto.StudentCreateRequest) (dto.StudentResponse, error)
	Update(ctx context.Context, id string, req dto.StudentUpdateRequest) (dto.StudentResponse, error)
	Delete(ctx context.Context, id string, force bool, actor ActivityActor) (dto.StudentDeleteResponse, error)
	Import(ctx context.Context, req dto.StudentImportRequest, actor ActivityActor) (dto.StudentImportResponse, error)
}

// StudentDependencies groups the collaborators of the student service.
type StudentDependencies struct {
	Students    repository.StudentRepository
	Grades      repository.GradeRepository
	StudyYears  repository.StudyYearRepository
	Marks       repository.MarkRepository
	Monitorings repository.MonitoringRepository
	Cache       StudentResultsCache
	Events      EventPublisher
	Activity    ActivityRecorder
	Validator   *validator.Validate
}

type studentService struct {
	deps   StudentDependencies
	policy *bluemonday.Policy
	logger zerolog.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(deps StudentDependencies, logger zerolog.Logger) StudentService {
	if deps.Cache == nil {
		deps.Cache = noopStudentResultsCache{}
	}
	if deps.Events == nil {
		deps.Events = noopEventPublisher{}
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	return &studentService{
		deps:   deps,
		policy: bluemonday.StrictPolicy(),
		logger: logger.With().Str("component", "student_service").Logger(),
	}
}

func (s *studentService) List(ctx context.Context, req dto.StudentListRequest) ([]dto.StudentResponse, error) {
	students, err := s.deps.Students.List(ctx, repository.StudentFilter{
		Search:      req.Search,
		StudyYearID: req.StudyYearID,
		GradeID:     req.GradeID,
		Limit:       req.Limit,
	})
	if err != nil {
		return nil, err
	}

	result := make([]dto.StudentResponse, 0, len(students))
	for _, student := range students {
		result = append(result, dto.NewStudentResponse(student))
	}
	return result, nil
}

func (s *studentService) Options(ctx context.Context, req dto.StudentListRequest) ([]dto.StudentOption, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultStudentOptionLimit
	}
	students, err := s.deps.Students.List(ctx, repository.StudentFilter{
		Search:      req.Search,
		StudyYearID: req.StudyYearID,
		GradeID:     req.GradeID,
		Limit:       limit,
	})
	if err != nil {
		return nil, err
	}

	options := make([]dto.StudentOption, 0, len(students))
	for _, student := range students {
		options = append(options, dto.NewStudentOption(student))
	}
	return options, nil
}

func (s *studentService) Detail(ctx context.Context, id string) (dto.StudentDetailResponse, error) {
	student, err := s.deps.Students.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return dto.StudentDetailResponse{}, mapNotFound(err, ErrStudentNotFound)
	}

	marks, err := s.deps.Marks.ListForStudentYear(ctx, student.ID, student.StudyYearID)
	if err != nil {
		return dto.StudentDetailResponse{}, err
	}
	monitorings, err := s.deps.Monitorings.ListForStudentYear(ctx, student.ID, student.StudyYearID)
	if err != nil {
		return dto.StudentDetailResponse{}, err
	}

	return dto.StudentDetailResponse{
		StudentResponse: dto.NewStudentResponse(student),
		Marks:           marks,
		Monitorings:     monitorings,
	}, nil
}

// Results builds the public view of a student's current study year.
func (s *studentService) Results(ctx context.Context, id string) (dto.StudentResultsResponse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return dto.StudentResultsResponse{}, ErrStudentNotFound
	}
	if cached, ok := s.deps.Cache.Get(ctx, id); ok {
		return cached, nil
	}

	student, err := s.deps.Students.GetByID(ctx, id)
	if err != nil {
		return dto.StudentResultsResponse{}, mapNotFound(err, ErrStudentNotFound)
	}

	marks, err := s.deps.Marks.ListForStudentYear(ctx, student.ID, student.StudyYearID)
	if err != nil {
		return dto.StudentResultsResponse{}, err
	}
	monitorings, err := s.deps.Monitorings.ListForStudentYear(ctx, student.ID, student.StudyYearID)
	if err != nil {
		return dto.StudentResultsResponse{}, err
	}

	result := dto.StudentResultsResponse{
		ID:          student.ID,
		FullName:    student.FullName,
		Quarters:    groupMarksByQuarter(marks),
		Monitorings: groupMonitoringBySubject(monitorings),
	}
	if student.Grade != nil {
		name := student.Grade.Name
		result.GradeName = &name
	}
	if student.StudyYear != nil {
		result.StudyYearName = student.StudyYear.Name
	}

	s.deps.Cache.Set(ctx, student.ID, result)
	return result, nil
}

func groupMarksByQuarter(marks []models.Mark) []dto.QuarterResults {
	type bucket struct {
		quarter models.Quarter
		scores  []dto.SubjectScore
	}
	buckets := map[uint]*bucket{}
	order := make([]uint, 0)

	for _, mark := range marks {
		b, ok := buckets[mark.QuarterID]
		if !ok {
			b = &bucket{quarter: models.Quarter{ID: mark.QuarterID}}
			if mark.Quarter != nil {
				b.quarter = *mark.Quarter
			}
			buckets[mark.QuarterID] = b
			order = append(order, mark.QuarterID)
		}
		subjectName := unknownSubjectName
		if mark.Subject != nil {
			subjectName = mark.Subject.Name
		}
		b.scores = append(b.scores, dto.SubjectScore{SubjectName: subjectName, Score: mark.Score})
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := buckets[order[i]].quarter, buckets[order[j]].quarter
		switch {
		case a.StartDate != nil && b.StartDate != nil && !a.StartDate.Equal(*b.StartDate):
			return a.StartDate.Before(*b.StartDate)
		case a.StartDate != nil && b.StartDate == nil:
			return true
		case a.StartDate == nil && b.StartDate != nil:
			return false
		}
		return a.ID < b.ID
	})

	result := make([]dto.QuarterResults, 0, len(order))
	for _, id := range order {
		b := buckets[id]
		result = append(result, dto.QuarterResults{
			QuarterID:   id,
			QuarterName: b.quarter.Name,
			Subjects:    b.scores,
		})
	}
	return result
}

// groupMonitoringBySubject keeps the incoming order, which is by subject name.
func groupMonitoringBySubject(entries []models.Monitoring) []dto.SubjectMonitoring {
	index := map[uint]int{}
	result := make([]dto.SubjectMonitoring, 0)

	for _, entry := range entries {
		position, ok := index[entry.SubjectID]
		if !ok {
			name := unknownSubjectName
			if entry.Subject != nil {
				name = entry.Subject.Name
			}
			result = append(result, dto.SubjectMonitoring{SubjectID: entry.SubjectID, SubjectName: name})
			position = len(result) - 1
			index[entry.SubjectID] = position
		}
		result[position].Entries = append(result[position].Entries, dto.MonthlyScore{Month: entry.Month, Score: entry.Score})
	}
	return result
}

func (s *studentService) Create(ctx context.Context, req dto.StudentCreateRequest) (dto.StudentResponse, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.FullName = cleanText(s.policy, req.FullName)
	if req.ID == "" || req.FullName == "" || req.StudyYearID == 0 {
		return dto.StudentResponse{}, invalidInput("id, fullName, and studyYearId are required")
	}
	if err := s.deps.Validator.Struct(req); err != nil {
		return dto.StudentResponse{}, err
	}

	exists, err := s.deps.Students.Exists(ctx, req.ID)
	if err != nil {
		return dto.StudentResponse{}, err
	}
	if exists {
		return dto.StudentResponse{}, invalidInput("Student with this ID already exists")
	}

	if err := s.ensureStudyYear(ctx, req.StudyYearID); err != nil {
		return dto.StudentResponse{}, err
	}
	if req.GradeID != nil {
		if err := s.ensureGrade(ctx, *req.GradeID); err != nil {
			return dto.StudentResponse{}, err
		}
	}

	student := models.Student{
		ID:          req.ID,
		FullName:    req.FullName,
		GradeID:     req.GradeID,
		StudyYearID: req.StudyYearID,
	}
	if err := s.deps.Students.Create(ctx, &student); err != nil {
		if isDuplicateKey(err) {
			return dto.StudentResponse{}, invalidInput("Student with this ID already exists")
		}
		return dto.StudentResponse{}, err
	}

	created, err := s.deps.Students.GetByID(ctx, student.ID)
	if err != nil {
		return dto.StudentResponse{}, err
	}
	return dto.NewStudentResponse(created), nil
}

func (s *studentService) Update(ctx context.Context, id string, req dto.StudentUpdateRequest) (dto.StudentResponse, error) {
	current, err := s.deps.Students.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return dto.StudentResponse{}, mapNotFound(err, ErrStudentNotFound)
	}

	updates := map[string]interface{}{}
	if req.ID.Set {
		newID := strings.TrimSpace(req.ID.Value)
		if req.ID.Null || newID == "" {
			return dto.StudentResponse{}, invalidInput("id must be a non-empty string")
		}
		if len(newID) > 64 {
			return dto.StudentResponse{}, invalidInput("id must be at most 64 characters")
		}
		if newID != current.ID {
			exists, err := s.deps.Students.Exists(ctx, newID)
			if err != nil {
				return dto.StudentResponse{}, err
			}
			if exists {
				return dto.StudentResponse{}, invalidInput("Student with this ID already exists")
			}
			updates["id"] = newID
		}
	}

	if req.FullName.Set {
		name := cleanText(s.policy, req.FullName.Value)
		if req.FullName.Null || name == "" {
			return dto.StudentResponse{}, invalidInput("fullName must be a non-empty string")
		}
		updates["full_name"] = name
	}

	if req.GradeID.Set {
		gradeID, err := utils.ParseScopeID(req.GradeID.Value)
		if err != nil {
			return dto.StudentResponse{}, invalidInput("gradeId must be a number")
		}
		if gradeID != nil {
			if err := s.ensureGrade(ctx, *gradeID); err != nil {
				return dto.StudentResponse{}, err
			}
		}
		updates["grade_id"] = gradeID
	}

	if len(updates) == 0 {
		return dto.NewStudentResponse(current), nil
	}

	updated, err := s.deps.Students.Update(ctx, current.ID, updates)
	if err != nil {
		if isDuplicateKey(err) {
			return dto.StudentResponse{}, invalidInput("Student with this ID already exists")
		}
		return dto.StudentResponse{}, mapNotFound(err, ErrStudentNotFound)
	}

	s.deps.Cache.Invalidate(ctx, current.ID, updated.ID)
	return dto.NewStudentResponse(updated), nil
}

func (s *studentService) Delete(ctx context.Context, id string, force bool, actor ActivityActor) (dto.StudentDeleteResponse, error) {
	student, err := s.deps.Students.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return dto.StudentDeleteResponse{}, mapNotFound(err, ErrStudentNotFound)
	}

	counts, err := s.deps.Students.CountResults(ctx, student.ID)
	if err != nil {
		return dto.StudentDeleteResponse{}, err
	}
	if !force && (counts.Marks > 0 || counts.Monitorings > 0) {
		return dto.StudentDeleteResponse{}, &StudentHasResultsError{Marks: counts.Marks, Monitorings: counts.Monitorings}
	}

	removed, err := s.deps.Students.DeleteWithResults(ctx, student.ID)
	if err != nil {
		return dto.StudentDeleteResponse{}, mapNotFound(err, ErrStudentNotFound)
	}
	s.deps.Cache.Invalidate(ctx, student.ID)

	if removed.Marks > 0 || removed.Monitorings > 0 {
		recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     ActionStudentDeleted,
			EntityType: "student",
			EntityID:   student.ID,
			Metadata: map[string]interface{}{
				"fullName":    student.FullName,
				"marks":       removed.Marks,
				"monitorings": removed.Monitorings,
			},
		})
	}

	return dto.StudentDeleteResponse{
		Message: "Student deleted",
		Removed: dto.RemovedResults{Marks: removed.Marks, Monitorings: removed.Monitorings},
	}, nil
}

type importRow struct {
	id       string
	fullName string
	gradeID  *uint
}

func (s *studentService) Import(ctx context.Context, req dto.StudentImportRequest, actor ActivityActor) (dto.StudentImportResponse, error) {
	yearID, err := utils.ParseScopeID(req.StudyYearID)
	if err != nil {
		return dto.StudentImportResponse{}, invalidInput("studyYearId must be a number")
	}
	if yearID == nil || *yearID == 0 {
		return dto.StudentImportResponse{}, invalidInput("studyYearId is required")
	}
	if len(req.Entries) == 0 {
		return dto.StudentImportResponse{}, invalidInput("entries array is required")
	}
	batchGrade, err := utils.ParseScopeID(req.GradeID)
	if err != nil {
		return dto.StudentImportResponse{}, invalidInput("gradeId must be a number")
	}

	resp := dto.StudentImportResponse{Message: "Students imported", Total: len(req.Entries)}

	rows := make([]importRow, 0, len(req.Entries))
	positions := map[string]int{}
	for _, entry := range req.Entries {
		id, idOK := utils.CoerceString(entry.ID)
		name, nameOK := utils.CoerceString(entry.FullName)
		if nameOK {
			name = cleanText(s.policy, name)
		}
		if !idOK || !nameOK || name == "" || len(id) > 64 {
			resp.Invalid++
			continue
		}

		gradeID := batchGrade
		if own, err := utils.ParseScopeID(entry.GradeID); err != nil {
			return dto.StudentImportResponse{}, invalidInput("Invalid gradeId for student %s", id)
		} else if own != nil {
			gradeID = own
		}

		row := importRow{id: id, fullName: name, gradeID: gradeID}
		if position, seen := positions[id]; seen {
			rows[position] = row
			resp.DuplicatesMerged++
			continue
		}
		positions[id] = len(rows)
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return dto.StudentImportResponse{}, &InputError{
			Message: "No valid students found in payload",
			Details: map[string]interface{}{"invalidCount": resp.Invalid},
		}
	}

	if err := s.ensureStudyYear(ctx, *yearID); err != nil {
		return dto.StudentImportResponse{}, err
	}

	gradeIDs := make([]uint, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.id)
		if row.gradeID != nil {
			gradeIDs = append(gradeIDs, *row.gradeID)
		}
	}
	gradeIDs = uniqueUints(gradeIDs)
	if err := s.ensureGrades(ctx, gradeIDs); err != nil {
		return dto.StudentImportResponse{}, err
	}

	known, err := preload(ctx, ids, s.deps.Students.FindByIDs, func(student models.Student) string { return student.ID })
	if err != nil {
		return dto.StudentImportResponse{}, err
	}

	updateExisting := parseLooseBool(req.UpdateExisting)
	create := make([]models.Student, 0, len(rows))
	update := make([]models.Student, 0)
	refreshed := make([]string, 0)
	for _, row := range rows {
		student := models.Student{ID: row.id, FullName: row.fullName, GradeID: row.gradeID, StudyYearID: *yearID}
		if _, ok := known[row.id]; !ok {
			create = append(create, student)
			continue
		}
		if !updateExisting {
			resp.SkippedExisting++
			continue
		}
		update = append(update, student)
		refreshed = append(refreshed, row.id)
	}

	resp.Created, resp.Updated, err = s.deps.Students.ImportRoster(ctx, *yearID, create, update)
	if err != nil {
		return dto.StudentImportResponse{}, err
	}
	s.deps.Cache.Invalidate(ctx, refreshed...)

	s.logger.Info().
		Uint("study_year_id", *yearID).
		Int("created", resp.Created).
		Int("updated", resp.Updated).
		Int("skipped_existing", resp.SkippedExisting).
		Int("invalid", resp.Invalid).
		Msg("student roster imported")

	summary := map[string]interface{}{
		"studyYearId":      *yearID,
		"total":            resp.Total,
		"created":          resp.Created,
		"updated":          resp.Updated,
		"skippedExisting":  resp.SkippedExisting,
		"duplicatesMerged": resp.DuplicatesMerged,
		"invalid":          resp.Invalid,
	}
	recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     ActionStudentsImported,
		EntityType: "study_year",
		EntityID:   strconv.FormatUint(uint64(*yearID), 10),
		Metadata:   summary,
	})
	s.deps.Events.Publish(ctx, SubjectStudentsImported, summary)

	return resp, nil
}

func (s *studentService) ensureStudyYear(ctx context.Context, id uint) error {
	if _, err := s.deps.StudyYears.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalidInput("Study year not found")
		}
		return err
	}
	return nil
}

func (s *studentService) ensureGrade(ctx context.Context, id uint) error {
	if _, err := s.deps.Grades.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalidInput("Grade not found")
		}
		return err
	}
	return nil
}

func (s *studentService) ensureGrades(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := preload(ctx, ids, s.deps.Grades.FindByIDs, func(grade models.Grade) uint { return grade.ID })
	if err != nil {
		return err
	}

	missing := make([]string, 0)
	sorted := append([]uint(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		if _, ok := found[id]; !ok {
			missing = append(missing, fmt.Sprint(id))
		}
	}
	if len(missing) > 0 {
		return invalidInput("Unknown grade ids: %s", strings.Join(missing, ", "))
	}
	return nil
}
