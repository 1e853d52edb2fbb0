package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/school-records-api/internal/models"
)

// RolloverTx is the set of writes a rollover performs. Every call runs inside
// the transaction opened by RolloverStore.Run.
type RolloverTx interface {
	LoadStudyYear(id uint) (models.StudyYear, error)
	LoadRoster(studyYearID uint) ([]models.Student, error)
	CreateStudyYear(year *models.StudyYear) error
	CreateQuarters(quarters []models.Quarter) error
	FindOrCreateGrade(name string) (models.Grade, error)
	MoveStudent(studentID string, studyYearID uint, gradeID *uint) error
}

// RolloverStore runs a rollover atomically.
type RolloverStore interface {
	Run(ctx context.Context, fn func(tx RolloverTx) error) error
}

type rolloverStore struct {
	db *gorm.DB
}

// NewRolloverStore constructs the rollover store.
func NewRolloverStore(db *gorm.DB) RolloverStore {
	return &rolloverStore{db: db}
}

func (s *rolloverStore) Run(ctx context.Context, fn func(tx RolloverTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&rolloverTx{tx: tx})
	})
}

type rolloverTx struct {
	tx *gorm.DB
}

func (t *rolloverTx) LoadStudyYear(id uint) (models.StudyYear, error) {
	var year models.StudyYear
	err := t.tx.Preload("Quarters", orderedQuarters).First(&year, id).Error
	return year, err
}

func (t *rolloverTx) LoadRoster(studyYearID uint) ([]models.Student, error) {
	var students []models.Student
	err := t.tx.Preload("Grade").
		Where("study_year_id = ?", studyYearID).
		Order("full_name ASC, id ASC").
		Find(&students).Error
	return students, err
}

func (t *rolloverTx) CreateStudyYear(year *models.StudyYear) error {
	return t.tx.Omit(clause.Associations).Create(year).Error
}

func (t *rolloverTx) CreateQuarters(quarters []models.Quarter) error {
	if len(quarters) == 0 {
		return nil
	}
	return t.tx.Omit(clause.Associations).CreateInBatches(&quarters, 100).Error
}

func (t *rolloverTx) FindOrCreateGrade(name string) (models.Grade, error) {
	var grade models.Grade
	err := t.tx.Where("name = ?", name).First(&grade).Error
	if err == nil {
		return grade, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Grade{}, err
	}

	grade = models.Grade{Name: name}
	if err := t.tx.Create(&grade).Error; err != nil {
		return models.Grade{}, err
	}
	return grade, nil
}

func (t *rolloverTx) MoveStudent(studentID string, studyYearID uint, gradeID *uint) error {
	return t.tx.Model(&models.Student{}).
		Where("id = ?", studentID).
		Updates(map[string]interface{}{
			"study_year_id": studyYearID,
			"grade_id":      gradeID,
		}).Error
}
