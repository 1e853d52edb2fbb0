package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/models"
)

func strPtr(v string) *string {
	return &v
}

func TestGradeLifecycle(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)
	ctx := context.Background()

	grades, err := svc.grades.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []dto.GradeResponse{
		{ID: s.grade11.ID, Name: "11-B", StudentCount: 1},
		{ID: s.grade5.ID, Name: "5-A", StudentCount: 2},
	}, grades)

	_, err = svc.grades.Create(ctx, dto.GradeRequest{Name: " <script></script> "})
	requireInputError(t, err, "Name is required")

	_, err = svc.grades.Create(ctx, dto.GradeRequest{Name: "5-A"})
	require.ErrorIs(t, err, ErrGradeExists)

	created, err := svc.grades.Create(ctx, dto.GradeRequest{Name: "7-C"})
	require.NoError(t, err)

	_, err = svc.grades.Rename(ctx, created.ID, dto.GradeRequest{Name: "11-B"})
	require.ErrorIs(t, err, ErrGradeExists)
	_, err = svc.grades.Rename(ctx, 999, dto.GradeRequest{Name: "8-D"})
	require.ErrorIs(t, err, ErrGradeNotFound)

	require.Zero(t, svc.cache.flushed)

	renamed, err := svc.grades.Rename(ctx, created.ID, dto.GradeRequest{Name: "7-D"})
	require.NoError(t, err)
	require.Equal(t, "7-D", renamed.Name)
	require.Equal(t, 1, svc.cache.flushed)

	require.ErrorIs(t, svc.grades.Delete(ctx, s.grade5.ID), ErrGradeInUse)
	require.Equal(t, 1, svc.cache.flushed)
	require.NoError(t, svc.grades.Delete(ctx, created.ID))
	require.Equal(t, 2, svc.cache.flushed)
	require.ErrorIs(t, svc.grades.Delete(ctx, created.ID), ErrGradeNotFound)
}

func TestSubjectRenameFlushesResultsCache(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)
	ctx := context.Background()

	_, err := svc.subjects.Rename(ctx, s.math.ID, dto.SubjectRequest{Name: "History"})
	require.ErrorIs(t, err, ErrSubjectExists)
	require.Zero(t, svc.cache.flushed)

	renamed, err := svc.subjects.Rename(ctx, s.math.ID, dto.SubjectRequest{Name: "Algebra"})
	require.NoError(t, err)
	require.Equal(t, "Algebra", renamed.Name)
	require.Equal(t, 1, svc.cache.flushed)

	spare, err := svc.subjects.Create(ctx, dto.SubjectRequest{Name: "Art"})
	require.NoError(t, err)
	require.NoError(t, svc.subjects.Delete(ctx, spare.ID))
	require.Equal(t, 2, svc.cache.flushed)
}

func TestSubjectDeleteBlockedByResults(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)
	ctx := context.Background()

	entry := models.Monitoring{StudentID: "S-1", SubjectID: s.history.ID, StudyYearID: s.year.ID, Month: "2024-10", Score: 4}
	require.NoError(t, db.Omit(clause.Associations).Create(&entry).Error)

	_, err := svc.subjects.Create(ctx, dto.SubjectRequest{Name: "Math"})
	require.ErrorIs(t, err, ErrSubjectExists)

	art, err := svc.subjects.Create(ctx, dto.SubjectRequest{Name: "Art"})
	require.NoError(t, err)

	subjects, err := svc.subjects.List(ctx)
	require.NoError(t, err)
	require.Len(t, subjects, 3)

	require.ErrorIs(t, svc.subjects.Delete(ctx, s.history.ID), ErrSubjectInUse)
	require.NoError(t, svc.subjects.Delete(ctx, s.math.ID))
	require.NoError(t, svc.subjects.Delete(ctx, art.ID))
	require.ErrorIs(t, svc.subjects.Delete(ctx, art.ID), ErrSubjectNotFound)
}

func TestQuarterCreateValidatesYearAndDates(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)
	ctx := context.Background()

	_, err := svc.quarters.Create(ctx, dto.QuarterCreateRequest{Name: "Q3"})
	requireInputError(t, err, "Name and studyYearId are required")

	_, err = svc.quarters.Create(ctx, dto.QuarterCreateRequest{Name: "Q3", StudyYearID: 404})
	requireInputError(t, err, "Study year not found")

	_, err = svc.quarters.Create(ctx, dto.QuarterCreateRequest{Name: "Q3", StudyYearID: s.year.ID, StartDate: strPtr("someday")})
	requireInputError(t, err, "Invalid quarter dates")

	_, err = svc.quarters.Create(ctx, dto.QuarterCreateRequest{Name: "Q3", StudyYearID: s.year.ID, StartDate: strPtr("2025-03-31"), EndDate: strPtr("2025-01-08")})
	requireInputError(t, err, "startDate must not be after endDate")

	quarter, err := svc.quarters.Create(ctx, dto.QuarterCreateRequest{Name: "Q3", StudyYearID: s.year.ID, StartDate: strPtr("2025-01-08"), EndDate: strPtr("")})
	require.NoError(t, err)
	require.Equal(t, "2024-2025", quarter.StudyYearName)
	require.NotNil(t, quarter.StartDate)
	require.Nil(t, quarter.EndDate)

	mark := models.Mark{StudentID: "S-1", SubjectID: s.math.ID, QuarterID: s.q1.ID, Score: 5}
	require.NoError(t, db.Omit(clause.Associations).Create(&mark).Error)

	require.ErrorIs(t, svc.quarters.Delete(ctx, s.q1.ID), ErrQuarterInUse)
	require.NoError(t, svc.quarters.Delete(ctx, quarter.ID))
	require.ErrorIs(t, svc.quarters.Delete(ctx, quarter.ID), ErrQuarterNotFound)
}

func TestStudyYearLifecycle(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)
	ctx := context.Background()

	_, err := svc.years.Create(ctx, dto.StudyYearCreateRequest{Name: "2026-2027", StartDate: "2027-06-01", EndDate: "2026-09-01"})
	requireInputError(t, err, "Invalid name or dates")

	created, err := svc.years.Create(ctx, dto.StudyYearCreateRequest{Name: "2026-2027", StartDate: "2026-09-01", EndDate: "2027-05-31"})
	require.NoError(t, err)
	require.Empty(t, created.Quarters)

	_, err = svc.years.Update(ctx, created.ID, dto.StudyYearUpdateRequest{EndDate: dto.Some("2026-01-01")})
	requireInputError(t, err, "Invalid name or dates")
	_, err = svc.years.Update(ctx, created.ID, dto.StudyYearUpdateRequest{Name: dto.Null[string]()})
	requireInputError(t, err, "Invalid name or dates")

	updated, err := svc.years.Update(ctx, created.ID, dto.StudyYearUpdateRequest{Name: dto.Some("2026/27"), EndDate: dto.Some("2027-06-15")})
	require.NoError(t, err)
	require.Equal(t, "2026/27", updated.Name)
	require.True(t, updated.EndDate.Equal(day(2027, 6, 15)))

	_, err = svc.years.Update(ctx, 999, dto.StudyYearUpdateRequest{Name: dto.Some("x")})
	require.ErrorIs(t, err, ErrStudyYearNotFound)

	years, err := svc.years.List(ctx)
	require.NoError(t, err)
	require.Len(t, years, 3)

	require.ErrorIs(t, svc.years.Delete(ctx, s.oldYear.ID), ErrStudyYearInUse)
	require.NoError(t, svc.years.Delete(ctx, created.ID))
	require.ErrorIs(t, svc.years.Delete(ctx, created.ID), ErrStudyYearNotFound)
}
