package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/models"
	"github.com/noah-isme/school-records-api/internal/repository"
)

func TestRolloverMovesPromotesAndSkipsGraduates(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)

	classmate := models.Student{ID: "S-4", FullName: "Aziza Rustamova", GradeID: &s.grade5.ID, StudyYearID: s.year.ID}
	require.NoError(t, db.Omit("Grade", "StudyYear").Create(&classmate).Error)

	resp, err := svc.rollover.Rollover(context.Background(), s.year.ID, dto.RolloverRequest{
		Name:      " <b>2025-2026</b> ",
		StartDate: "2025-09-02",
		EndDate:   "2026-05-31",
	}, ActivityActor{ID: 3, Role: "admin"})
	require.NoError(t, err)

	require.Equal(t, "Rollover completed", resp.Message)
	require.Equal(t, "2025-2026", resp.NewYear.Name)
	require.Equal(t, 2, resp.QuartersCopied)
	require.Equal(t, 3, resp.StudentsMoved)
	require.Equal(t, 2, resp.StudentsGradeIncremented)
	require.Equal(t, 1, resp.GraduatesSkipped)
	require.Equal(t, dto.RolloverOptions{MoveStudents: true, IncrementGrades: true, CopyQuarters: true, GraduateAt: 11}, resp.Options)

	require.Len(t, resp.NewYear.Quarters, 2)
	require.NotNil(t, resp.NewYear.Quarters[0].StartDate)
	require.True(t, resp.NewYear.Quarters[0].StartDate.Equal(day(2025, 9, 2)))
	require.True(t, resp.NewYear.Quarters[1].EndDate.Equal(day(2025, 12, 27)))

	var promoted []models.Grade
	require.NoError(t, db.Where("name = ?", "6-A").Find(&promoted).Error)
	require.Len(t, promoted, 1)

	var ali, classmateAfter, senior, ungraded models.Student
	require.NoError(t, db.First(&ali, "id = ?", "S-1").Error)
	require.NoError(t, db.First(&classmateAfter, "id = ?", "S-4").Error)
	require.NoError(t, db.First(&senior, "id = ?", "S-2").Error)
	require.NoError(t, db.First(&ungraded, "id = ?", "S-3").Error)

	require.Equal(t, resp.NewYear.ID, ali.StudyYearID)
	require.Equal(t, promoted[0].ID, *ali.GradeID)
	require.Equal(t, promoted[0].ID, *classmateAfter.GradeID)
	require.Equal(t, s.year.ID, senior.StudyYearID)
	require.Equal(t, s.grade11.ID, *senior.GradeID)
	require.Equal(t, resp.NewYear.ID, ungraded.StudyYearID)
	require.Nil(t, ungraded.GradeID)

	require.Equal(t, 1, svc.cache.flushed)
	require.Len(t, svc.events.events, 1)
	require.Equal(t, SubjectYearRolledOver, svc.events.events[0].subject)
	require.Len(t, svc.activity.entries, 1)
	require.Equal(t, ActionYearRolledOver, svc.activity.entries[0].Action)
}

func TestRolloverReusesExistingPromotedGrade(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)

	existing := models.Grade{Name: "6-A"}
	require.NoError(t, db.Create(&existing).Error)

	resp, err := svc.rollover.Rollover(context.Background(), s.year.ID, dto.RolloverRequest{
		Name:       "2025-2026",
		StartDate:  "2025-09-01",
		EndDate:    "2026-05-31",
		GraduateAt: float64(12),
	}, ActivityActor{})
	require.NoError(t, err)
	require.Zero(t, resp.GraduatesSkipped)
	require.Equal(t, 3, resp.StudentsMoved)

	var ali, senior models.Student
	require.NoError(t, db.First(&ali, "id = ?", "S-1").Error)
	require.NoError(t, db.First(&senior, "id = ?", "S-2").Error)
	require.Equal(t, existing.ID, *ali.GradeID)

	var twelfth models.Grade
	require.NoError(t, db.Where("name = ?", "12-B").First(&twelfth).Error)
	require.Equal(t, twelfth.ID, *senior.GradeID)
}

func TestRolloverHonoursDisabledFlags(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)

	resp, err := svc.rollover.Rollover(context.Background(), s.year.ID, dto.RolloverRequest{
		Name:            "2025-2026",
		StartDate:       "2025-09-01T00:00:00Z",
		EndDate:         "2026-05-31",
		MoveStudents:    false,
		IncrementGrades: "false",
		CopyQuarters:    float64(0),
		GraduateAt:      "",
	}, ActivityActor{})
	require.NoError(t, err)
	require.Zero(t, resp.QuartersCopied)
	require.Zero(t, resp.StudentsMoved)
	require.Empty(t, resp.NewYear.Quarters)
	require.Equal(t, float64(DefaultGraduateAt), resp.Options.GraduateAt)
	require.Zero(t, svc.cache.flushed)

	var ali models.Student
	require.NoError(t, db.First(&ali, "id = ?", "S-1").Error)
	require.Equal(t, s.year.ID, ali.StudyYearID)
}

func TestRolloverKeepsGradesWhenIncrementDisabled(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)

	resp, err := svc.rollover.Rollover(context.Background(), s.year.ID, dto.RolloverRequest{
		Name:            "2025-2026",
		StartDate:       "2025-09-01",
		EndDate:         "2026-05-31",
		IncrementGrades: false,
	}, ActivityActor{})
	require.NoError(t, err)
	require.Equal(t, 2, resp.StudentsMoved)
	require.Zero(t, resp.StudentsGradeIncremented)

	var ali models.Student
	require.NoError(t, db.First(&ali, "id = ?", "S-1").Error)
	require.Equal(t, resp.NewYear.ID, ali.StudyYearID)
	require.Equal(t, s.grade5.ID, *ali.GradeID)
}

func TestRolloverRejectsInvalidInput(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	svc := newServices(db, 0)
	ctx := context.Background()

	cases := []struct {
		name    string
		req     dto.RolloverRequest
		message string
	}{
		{"blank name", dto.RolloverRequest{Name: "<i></i>", StartDate: "2025-09-01", EndDate: "2026-05-31"}, "Invalid name or dates"},
		{"bad date", dto.RolloverRequest{Name: "Next", StartDate: "soon", EndDate: "2026-05-31"}, "Invalid name or dates"},
		{"reversed dates", dto.RolloverRequest{Name: "Next", StartDate: "2026-09-01", EndDate: "2026-05-31"}, "Invalid name or dates"},
		{"graduateAt text", dto.RolloverRequest{Name: "Next", StartDate: "2025-09-01", EndDate: "2026-05-31", GraduateAt: "eleven"}, "graduateAt must be a number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.rollover.Rollover(ctx, s.year.ID, tc.req, ActivityActor{})
			requireInputError(t, err, tc.message)
		})
	}

	var count int64
	require.NoError(t, db.Model(&models.StudyYear{}).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestRolloverUnknownSourceYear(t *testing.T) {
	db := newTestDB(t)
	seedSchool(t, db)
	svc := newServices(db, 0)

	_, err := svc.rollover.Rollover(context.Background(), 999, dto.RolloverRequest{
		Name: "Next", StartDate: "2025-09-01", EndDate: "2026-05-31",
	}, ActivityActor{})
	require.ErrorIs(t, err, ErrStudyYearNotFound)
	require.Empty(t, svc.events.events)
}

type failingMoveStore struct {
	inner repository.RolloverStore
}

func (s failingMoveStore) Run(ctx context.Context, fn func(tx repository.RolloverTx) error) error {
	return s.inner.Run(ctx, func(tx repository.RolloverTx) error {
		return fn(failingMoveTx{RolloverTx: tx})
	})
}

type failingMoveTx struct {
	repository.RolloverTx
}

func (failingMoveTx) MoveStudent(string, uint, *uint) error {
	return errors.New("disk full")
}

func TestRolloverRollsBackOnFailure(t *testing.T) {
	db := newTestDB(t)
	s := seedSchool(t, db)
	cache := &recordingCache{}
	events := &recordingPublisher{}
	svc := NewRolloverService(failingMoveStore{inner: repository.NewRolloverStore(db)}, cache, events, nil, testLogger())

	_, err := svc.Rollover(context.Background(), s.year.ID, dto.RolloverRequest{
		Name: "2025-2026", StartDate: "2025-09-01", EndDate: "2026-05-31",
	}, ActivityActor{})
	require.EqualError(t, err, "disk full")

	var years, grades, quarters int64
	require.NoError(t, db.Model(&models.StudyYear{}).Count(&years).Error)
	require.NoError(t, db.Model(&models.Grade{}).Count(&grades).Error)
	require.NoError(t, db.Model(&models.Quarter{}).Count(&quarters).Error)
	require.Equal(t, int64(2), years)
	require.Equal(t, int64(2), grades)
	require.Equal(t, int64(3), quarters)
	require.Zero(t, cache.flushed)
	require.Empty(t, events.events)
}

func TestFlagEnabledOnlyExplicitFalseDisables(t *testing.T) {
	for _, value := range []interface{}{nil, true, "true", "yes", float64(1), "", "maybe"} {
		require.True(t, flagEnabled(value), "%#v", value)
	}
	for _, value := range []interface{}{false, "false", " FALSE ", "0", "no", "off", float64(0)} {
		require.False(t, flagEnabled(value), "%#v", value)
	}
}
