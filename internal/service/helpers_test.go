package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/school-records-api/internal/database"
	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/models"
	"github.com/noah-isme/school-records-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	db.Logger = logger.Default.LogMode(logger.Silent)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

type school struct {
	year     models.StudyYear
	oldYear  models.StudyYear
	q1       models.Quarter
	q2       models.Quarter
	oldQ     models.Quarter
	grade5   models.Grade
	grade11  models.Grade
	math     models.Subject
	history  models.Subject
	ali      models.Student
	senior   models.Student
	ungraded models.Student
	oldPupil models.Student
}

// seedSchool creates a current year (2024-09-02..2025-05-31) with two
// quarters and three students, plus a previous year with one student.
func seedSchool(t *testing.T, db *gorm.DB) school {
	t.Helper()
	s := school{
		year:    models.StudyYear{Name: "2024-2025", StartDate: day(2024, 9, 2), EndDate: day(2025, 5, 31)},
		oldYear: models.StudyYear{Name: "2023-2024", StartDate: day(2023, 9, 1), EndDate: day(2024, 5, 31)},
		grade5:  models.Grade{Name: "5-A"},
		grade11: models.Grade{Name: "11-B"},
		math:    models.Subject{Name: "Math"},
		history: models.Subject{Name: "History"},
	}
	require.NoError(t, db.Create(&s.year).Error)
	require.NoError(t, db.Create(&s.oldYear).Error)
	require.NoError(t, db.Create(&s.grade5).Error)
	require.NoError(t, db.Create(&s.grade11).Error)
	require.NoError(t, db.Create(&s.math).Error)
	require.NoError(t, db.Create(&s.history).Error)

	q1Start, q1End := day(2024, 9, 2), day(2024, 10, 31)
	q2Start, q2End := day(2024, 11, 4), day(2024, 12, 27)
	oldStart := day(2023, 9, 1)
	s.q1 = models.Quarter{Name: "Q1", StudyYearID: s.year.ID, StartDate: &q1Start, EndDate: &q1End}
	s.q2 = models.Quarter{Name: "Q2", StudyYearID: s.year.ID, StartDate: &q2Start, EndDate: &q2End}
	s.oldQ = models.Quarter{Name: "Q1", StudyYearID: s.oldYear.ID, StartDate: &oldStart}
	require.NoError(t, db.Omit("StudyYear").Create(&s.q1).Error)
	require.NoError(t, db.Omit("StudyYear").Create(&s.q2).Error)
	require.NoError(t, db.Omit("StudyYear").Create(&s.oldQ).Error)

	s.ali = models.Student{ID: "S-1", FullName: "Ali Valiyev", GradeID: &s.grade5.ID, StudyYearID: s.year.ID}
	s.senior = models.Student{ID: "S-2", FullName: "Bobur Karimov", GradeID: &s.grade11.ID, StudyYearID: s.year.ID}
	s.ungraded = models.Student{ID: "S-3", FullName: "Dilnoza Ahmedova", StudyYearID: s.year.ID}
	s.oldPupil = models.Student{ID: "S-OLD", FullName: "Zafar Old", GradeID: &s.grade5.ID, StudyYearID: s.oldYear.ID}
	for _, student := range []*models.Student{&s.ali, &s.senior, &s.ungraded, &s.oldPupil} {
		require.NoError(t, db.Omit("Grade", "StudyYear").Create(student).Error)
	}
	return s
}

type recordedEvent struct {
	subject string
	data    interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{subject: subject, data: data})
}

type recordingActivity struct {
	entries []ActivityEntry
}

func (r *recordingActivity) Record(_ context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	r.entries = append(r.entries, entry)
	return dto.ActivityResponse{Action: entry.Action}, nil
}

type recordingCache struct {
	noopStudentResultsCache
	invalidated []string
	flushed     int
}

func (c *recordingCache) Invalidate(_ context.Context, ids ...string) {
	c.invalidated = append(c.invalidated, ids...)
}

func (c *recordingCache) InvalidateAll(context.Context) {
	c.flushed++
}

type services struct {
	marks      MarkService
	monitoring MonitoringService
	students   StudentService
	rollover   RolloverService
	years      StudyYearService
	grades     GradeService
	subjects   SubjectService
	quarters   QuarterService
	events     *recordingPublisher
	activity   *recordingActivity
	cache      *recordingCache
}

func newServices(db *gorm.DB, chunkSize int) services {
	events := &recordingPublisher{}
	activity := &recordingActivity{}
	cache := &recordingCache{}

	studentsRepo := repository.NewStudentRepository(db)
	subjectsRepo := repository.NewSubjectRepository(db)
	quartersRepo := repository.NewQuarterRepository(db)
	yearsRepo := repository.NewStudyYearRepository(db)
	gradesRepo := repository.NewGradeRepository(db)
	marksRepo := repository.NewMarkRepository(db)
	monitoringRepo := repository.NewMonitoringRepository(db)

	return services{
		marks: NewMarkService(MarkDependencies{
			Marks:     marksRepo,
			Students:  studentsRepo,
			Subjects:  subjectsRepo,
			Quarters:  quartersRepo,
			Cache:     cache,
			Events:    events,
			Activity:  activity,
			ChunkSize: chunkSize,
		}, testLogger()),
		monitoring: NewMonitoringService(MonitoringDependencies{
			Monitorings: monitoringRepo,
			Students:    studentsRepo,
			Subjects:    subjectsRepo,
			StudyYears:  yearsRepo,
			Cache:       cache,
			Events:      events,
			Activity:    activity,
			ChunkSize:   chunkSize,
		}, testLogger()),
		students: NewStudentService(StudentDependencies{
			Students:    studentsRepo,
			Grades:      gradesRepo,
			StudyYears:  yearsRepo,
			Marks:       marksRepo,
			Monitorings: monitoringRepo,
			Cache:       cache,
			Events:      events,
			Activity:    activity,
		}, testLogger()),
		rollover: NewRolloverService(repository.NewRolloverStore(db), cache, events, activity, testLogger()),
		years:    NewStudyYearService(yearsRepo, testLogger()),
		grades:   NewGradeService(gradesRepo, cache, testLogger()),
		subjects: NewSubjectService(subjectsRepo, cache),
		quarters: NewQuarterService(quartersRepo, yearsRepo),
		events:   events,
		activity: activity,
		cache:    cache,
	}
}

func messages(errs []dto.BulkRowError) []string {
	result := make([]string, 0, len(errs))
	for _, e := range errs {
		result = append(result, e.Message)
	}
	return result
}

func requireInputError(t *testing.T, err error, message string) {
	t.Helper()
	require.Error(t, err)
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	require.Equal(t, message, inputErr.Message)
}
