package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/models"
)

func seedResults(t *testing.T, s school, svc services) {
	t.Helper()
	ctx := context.Background()
	for _, m := range []dto.MarkCreateRequest{
		{StudentID: "S-1", SubjectID: s.math.ID, QuarterID: s.q2.ID},
		{StudentID: "S-1", SubjectID: s.history.ID, QuarterID: s.q1.ID},
		{StudentID: "S-1", SubjectID: s.math.ID, QuarterID: s.q1.ID},
	} {
		score := 4.0
		m.Score = &score
		_, err := svc.marks.Create(ctx, m)
		require.NoError(t, err)
	}
	for _, month := range []string{"2024-10", "2024-09"} {
		score := 5.0
		_, err := svc.monitoring.Create(ctx, dto.MonitoringCreateRequest{
			StudentID: "S-1", SubjectID: s.math.ID, StudyYearID: s.year.ID, Month: month, Score: &score,
		})
		require.NoError(t, err)
	}
	score := 3.0
	_, err := svc.monitoring.Create(ctx, dto.MonitoringCreateRequest{
		StudentID: "S-1", SubjectID: s.history.ID, StudyYearID: s.year.ID, Month: "2024-11", Score: &score,
	})
	require.NoError(t, err)
}

func TestStudentResultsGroupsCurrentYear(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)
	seedResults(t, s, svc)

	oldMark := models.Mark{StudentID: "S-1", SubjectID: s.math.ID, QuarterID: s.oldQ.ID, Score: 2}
	require.NoError(t, db.Omit(clause.Associations).Create(&oldMark).Error)

	results, err := svc.students.Results(context.Background(), " S-1 ")
	require.NoError(t, err)
	require.Equal(t, "S-1", results.ID)
	require.Equal(t, "Ali Valiyev", results.FullName)
	require.NotNil(t, results.GradeName)
	require.Equal(t, "5-A", *results.GradeName)
	require.Equal(t, "2024-2025", results.StudyYearName)

	require.Len(t, results.Quarters, 2)
	require.Equal(t, s.q1.ID, results.Quarters[0].QuarterID)
	require.Equal(t, []dto.SubjectScore{{SubjectName: "History", Score: 4}, {SubjectName: "Math", Score: 4}}, results.Quarters[0].Subjects)
	require.Equal(t, s.q2.ID, results.Quarters[1].QuarterID)

	require.Len(t, results.Monitorings, 2)
	require.Equal(t, "History", results.Monitorings[0].SubjectName)
	require.Equal(t, "Math", results.Monitorings[1].SubjectName)
	require.Equal(t, []dto.MonthlyScore{{Month: "2024-09", Score: 5}, {Month: "2024-10", Score: 5}}, results.Monitorings[1].Entries)

	_, err = svc.students.Results(context.Background(), "GHOST")
	require.ErrorIs(t, err, ErrStudentNotFound)
	_, err = svc.students.Results(context.Background(), "  ")
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestGroupMarksByQuarterPutsUndatedQuartersLast(t *testing.T) {
	early := day(2024, 9, 1)
	late := day(2024, 11, 1)
	marks := []models.Mark{
		{QuarterID: 3, Score: 1, Quarter: &models.Quarter{ID: 3, Name: "Undated"}},
		{QuarterID: 2, Score: 2, Quarter: &models.Quarter{ID: 2, Name: "Late", StartDate: &late}},
		{QuarterID: 1, Score: 3, Quarter: &models.Quarter{ID: 1, Name: "Early", StartDate: &early}},
		{QuarterID: 9, Score: 4},
	}

	grouped := groupMarksByQuarter(marks)
	names := make([]string, 0, len(grouped))
	for _, q := range grouped {
		names = append(names, q.QuarterName)
	}
	require.Equal(t, []string{"Early", "Late", "Undated", ""}, names)
	require.Equal(t, unknownSubjectName, grouped[3].Subjects[0].SubjectName)
}

func TestStudentDeleteRequiresForceWhenResultsExist(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)
	seedResults(t, s, svc)
	ctx := context.Background()

	_, err := svc.students.Delete(ctx, "S-1", false, ActivityActor{ID: 1, Role: "admin"})
	var conflict *StudentHasResultsError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, int64(3), conflict.Marks)
	require.Equal(t, int64(3), conflict.Monitorings)

	resp, err := svc.students.Delete(ctx, "S-1", true, ActivityActor{ID: 1, Role: "admin"})
	require.NoError(t, err)
	require.Equal(t, dto.RemovedResults{Marks: 3, Monitorings: 3}, resp.Removed)
	require.Len(t, svc.activity.entries, 1)
	require.Equal(t, ActionStudentDeleted, svc.activity.entries[0].Action)

	var marks int64
	require.NoError(t, db.Model(&models.Mark{}).Count(&marks).Error)
	require.Zero(t, marks)

	plain, err := svc.students.Delete(ctx, "S-3", false, ActivityActor{})
	require.NoError(t, err)
	require.Equal(t, "Student deleted", plain.Message)
	require.Len(t, svc.activity.entries, 1)

	_, err = svc.students.Delete(ctx, "S-3", false, ActivityActor{})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestStudentCreateValidatesReferences(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)
	ctx := context.Background()

	_, err := svc.students.Create(ctx, dto.StudentCreateRequest{ID: "S-9", FullName: "<p></p>", StudyYearID: s.year.ID})
	requireInputError(t, err, "id, fullName, and studyYearId are required")

	_, err = svc.students.Create(ctx, dto.StudentCreateRequest{ID: "S-1", FullName: "Twin", StudyYearID: s.year.ID})
	requireInputError(t, err, "Student with this ID already exists")

	_, err = svc.students.Create(ctx, dto.StudentCreateRequest{ID: "S-9", FullName: "New", StudyYearID: 404})
	requireInputError(t, err, "Study year not found")

	missing := uint(404)
	_, err = svc.students.Create(ctx, dto.StudentCreateRequest{ID: "S-9", FullName: "New", StudyYearID: s.year.ID, GradeID: &missing})
	requireInputError(t, err, "Grade not found")

	created, err := svc.students.Create(ctx, dto.StudentCreateRequest{ID: " S-9 ", FullName: "New <b>Pupil</b>", StudyYearID: s.year.ID, GradeID: &s.grade5.ID})
	require.NoError(t, err)
	require.Equal(t, "S-9", created.ID)
	require.Equal(t, "New Pupil", created.FullName)
	require.NotNil(t, created.Grade)
	require.Equal(t, "5-A", created.Grade.Name)
	require.Equal(t, "2024-2025", created.StudyYearName)
}

func TestStudentUpdateDistinguishesNullFromAbsent(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)
	ctx := context.Background()

	_, err := svc.students.Update(ctx, "S-1", dto.StudentUpdateRequest{ID: dto.Null[string]()})
	requireInputError(t, err, "id must be a non-empty string")

	_, err = svc.students.Update(ctx, "S-1", dto.StudentUpdateRequest{FullName: dto.Some("  ")})
	requireInputError(t, err, "fullName must be a non-empty string")

	_, err = svc.students.Update(ctx, "S-1", dto.StudentUpdateRequest{GradeID: dto.Some[interface{}]("top")})
	requireInputError(t, err, "gradeId must be a number")

	_, err = svc.students.Update(ctx, "S-1", dto.StudentUpdateRequest{ID: dto.Some("S-2")})
	requireInputError(t, err, "Student with this ID already exists")

	unchanged, err := svc.students.Update(ctx, "S-1", dto.StudentUpdateRequest{FullName: dto.Some("Ali V.")})
	require.NoError(t, err)
	require.Equal(t, "Ali V.", unchanged.FullName)
	require.NotNil(t, unchanged.GradeID)
	require.Equal(t, s.grade5.ID, *unchanged.GradeID)

	cleared, err := svc.students.Update(ctx, "S-1", dto.StudentUpdateRequest{GradeID: dto.Null[interface{}]()})
	require.NoError(t, err)
	require.Nil(t, cleared.GradeID)

	regraded, err := svc.students.Update(ctx, "S-1", dto.StudentUpdateRequest{GradeID: dto.Some[interface{}](float64(s.grade11.ID))})
	require.NoError(t, err)
	require.Equal(t, s.grade11.ID, *regraded.GradeID)

	renamed, err := svc.students.Update(ctx, "S-3", dto.StudentUpdateRequest{ID: dto.Some("S-30")})
	require.NoError(t, err)
	require.Equal(t, "S-30", renamed.ID)
	require.Contains(t, svc.cache.invalidated, "S-3")
	require.Contains(t, svc.cache.invalidated, "S-30")

	_, err = svc.students.Update(ctx, "S-3", dto.StudentUpdateRequest{FullName: dto.Some("Gone")})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestStudentImportMergesDuplicatesAndSkipsExisting(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)
	ctx := context.Background()

	resp, err := svc.students.Import(ctx, dto.StudentImportRequest{
		StudyYearID: float64(s.year.ID),
		GradeID:     float64(s.grade5.ID),
		Entries: []dto.StudentImportEntry{
			{ID: "S-10", FullName: "First Draft"},
			{ID: float64(1001), FullName: "Numeric Id", GradeID: float64(s.grade11.ID)},
			{ID: "S-10", FullName: "Final Name"},
			{ID: "", FullName: "No Id"},
			{ID: "S-1", FullName: "Ali Renamed"},
		},
	}, ActivityActor{ID: 2, Role: "admin"})
	require.NoError(t, err)
	require.Equal(t, dto.StudentImportResponse{
		Message:          "Students imported",
		Total:            5,
		Created:          2,
		SkippedExisting:  1,
		DuplicatesMerged: 1,
		Invalid:          1,
	}, resp)

	var merged models.Student
	require.NoError(t, db.First(&merged, "id = ?", "S-10").Error)
	require.Equal(t, "Final Name", merged.FullName)
	require.Equal(t, s.grade5.ID, *merged.GradeID)

	var numeric models.Student
	require.NoError(t, db.First(&numeric, "id = ?", "1001").Error)
	require.Equal(t, s.grade11.ID, *numeric.GradeID)

	var ali models.Student
	require.NoError(t, db.First(&ali, "id = ?", "S-1").Error)
	require.Equal(t, "Ali Valiyev", ali.FullName)

	require.Len(t, svc.events.events, 1)
	require.Equal(t, SubjectStudentsImported, svc.events.events[0].subject)
}

func TestStudentImportUpdatesExistingWhenAsked(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)

	resp, err := svc.students.Import(context.Background(), dto.StudentImportRequest{
		StudyYearID:    float64(s.year.ID),
		UpdateExisting: "yes",
		Entries:        []dto.StudentImportEntry{{ID: "S-OLD", FullName: "Zafar Returned"}},
	}, ActivityActor{})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Updated)
	require.Zero(t, resp.Created)

	var returned models.Student
	require.NoError(t, db.First(&returned, "id = ?", "S-OLD").Error)
	require.Equal(t, s.year.ID, returned.StudyYearID)
	require.Equal(t, "Zafar Returned", returned.FullName)
	require.Nil(t, returned.GradeID)
	require.Equal(t, []string{"S-OLD"}, svc.cache.invalidated)
}

func TestStudentImportHandlesLargeRoster(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)

	const roster = 33000
	entries := make([]dto.StudentImportEntry, 0, roster+1)
	for i := 0; i < roster; i++ {
		entries = append(entries, dto.StudentImportEntry{ID: fmt.Sprintf("N-%05d", i), FullName: "New Pupil"})
	}
	entries = append(entries, dto.StudentImportEntry{ID: "S-1", FullName: "Ali Valiyev"})

	resp, err := svc.students.Import(context.Background(), dto.StudentImportRequest{
		StudyYearID: float64(s.year.ID),
		Entries:     entries,
	}, ActivityActor{})
	require.NoError(t, err)
	require.Equal(t, roster, resp.Created)
	require.Equal(t, 1, resp.SkippedExisting)
}

func TestStudentImportRejectsBadPayloads(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)
	ctx := context.Background()
	year := float64(s.year.ID)
	one := []dto.StudentImportEntry{{ID: "S-50", FullName: "Someone"}}

	_, err := svc.students.Import(ctx, dto.StudentImportRequest{StudyYearID: "2024", Entries: one}, ActivityActor{})
	requireInputError(t, err, "Study year not found")

	_, err = svc.students.Import(ctx, dto.StudentImportRequest{StudyYearID: "x", Entries: one}, ActivityActor{})
	requireInputError(t, err, "studyYearId must be a number")

	_, err = svc.students.Import(ctx, dto.StudentImportRequest{Entries: one}, ActivityActor{})
	requireInputError(t, err, "studyYearId is required")

	_, err = svc.students.Import(ctx, dto.StudentImportRequest{StudyYearID: year}, ActivityActor{})
	requireInputError(t, err, "entries array is required")

	_, err = svc.students.Import(ctx, dto.StudentImportRequest{StudyYearID: year, GradeID: "?", Entries: one}, ActivityActor{})
	requireInputError(t, err, "gradeId must be a number")

	_, err = svc.students.Import(ctx, dto.StudentImportRequest{StudyYearID: year, Entries: []dto.StudentImportEntry{{ID: "S-51", FullName: "A", GradeID: "abc"}}}, ActivityActor{})
	requireInputError(t, err, "Invalid gradeId for student S-51")

	_, err = svc.students.Import(ctx, dto.StudentImportRequest{StudyYearID: year, Entries: []dto.StudentImportEntry{{ID: "S-52"}, {FullName: "B"}}}, ActivityActor{})
	requireInputError(t, err, "No valid students found in payload")
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	require.Equal(t, 2, inputErr.Details["invalidCount"])

	_, err = svc.students.Import(ctx, dto.StudentImportRequest{StudyYearID: year, Entries: []dto.StudentImportEntry{
		{ID: "S-53", FullName: "C", GradeID: float64(88)},
		{ID: "S-54", FullName: "D", GradeID: float64(77)},
	}}, ActivityActor{})
	requireInputError(t, err, "Unknown grade ids: 77, 88")
}
