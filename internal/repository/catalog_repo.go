package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/school-records-api/internal/models"
)

// GradeWithCount is a grade plus the number of students assigned to it.
type GradeWithCount struct {
	models.Grade
	StudentCount int64
}

// GradeRepository exposes persistence helpers for grades.
type GradeRepository interface {
	ListWithCounts(ctx context.Context) ([]GradeWithCount, error)
	GetByID(ctx context.Context, id uint) (models.Grade, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.Grade, error)
	Create(ctx context.Context, grade *models.Grade) error
	Rename(ctx context.Context, id uint, name string) (models.Grade, error)
	Delete(ctx context.Context, id uint) error
	CountStudents(ctx context.Context, id uint) (int64, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository constructs the grade repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) ListWithCounts(ctx context.Context) ([]GradeWithCount, error) {
	var grades []GradeWithCount
	err := r.db.WithContext(ctx).
		Model(&models.Grade{}).
		Select("grades.*, (SELECT COUNT(*) FROM students WHERE students.grade_id = grades.id) AS student_count").
		Order("grades.name ASC").
		Scan(&grades).Error
	return grades, err
}

func (r *gradeRepository) GetByID(ctx context.Context, id uint) (models.Grade, error) {
	var grade models.Grade
	err := r.db.WithContext(ctx).First(&grade, id).Error
	return grade, err
}

func (r *gradeRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.Grade, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var grades []models.Grade
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&grades).Error
	return grades, err
}

func (r *gradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Create(grade).Error
}

func (r *gradeRepository) Rename(ctx context.Context, id uint, name string) (models.Grade, error) {
	result := r.db.WithContext(ctx).Model(&models.Grade{}).Where("id = ?", id).Update("name", name)
	if result.Error != nil {
		return models.Grade{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Grade{}, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *gradeRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Grade{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gradeRepository) CountStudents(ctx context.Context, id uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Student{}).Where("grade_id = ?", id).Count(&count).Error
	return count, err
}

// SubjectRepository exposes persistence helpers for subjects.
type SubjectRepository interface {
	List(ctx context.Context) ([]models.Subject, error)
	GetByID(ctx context.Context, id uint) (models.Subject, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Rename(ctx context.Context, id uint, name string) (models.Subject, error)
	Delete(ctx context.Context, id uint) error
	CountResults(ctx context.Context, id uint) (marks int64, monitorings int64, err error)
}

type subjectRepository struct {
	db *gorm.DB
}

// NewSubjectRepository constructs the subject repository.
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db}
}

func (r *subjectRepository) List(ctx context.Context) ([]models.Subject, error) {
	var subjects []models.Subject
	err := r.db.WithContext(ctx).Order("name ASC").Find(&subjects).Error
	return subjects, err
}

func (r *subjectRepository) GetByID(ctx context.Context, id uint) (models.Subject, error) {
	var subject models.Subject
	err := r.db.WithContext(ctx).First(&subject, id).Error
	return subject, err
}

func (r *subjectRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var subjects []models.Subject
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&subjects).Error
	return subjects, err
}

func (r *subjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	return r.db.WithContext(ctx).Create(subject).Error
}

func (r *subjectRepository) Rename(ctx context.Context, id uint, name string) (models.Subject, error) {
	result := r.db.WithContext(ctx).Model(&models.Subject{}).Where("id = ?", id).Update("name", name)
	if result.Error != nil {
		return models.Subject{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Subject{}, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *subjectRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Subject{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *subjectRepository) CountResults(ctx context.Context, id uint) (int64, int64, error) {
	var marks, monitorings int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Mark{}).Where("subject_id = ?", id).Count(&marks).Error; err != nil {
		return 0, 0, err
	}
	if err := db.Model(&models.Monitoring{}).Where("subject_id = ?", id).Count(&monitorings).Error; err != nil {
		return 0, 0, err
	}
	return marks, monitorings, nil
}

// QuarterRepository exposes persistence helpers for quarters.
type QuarterRepository interface {
	List(ctx context.Context) ([]models.Quarter, error)
	GetByID(ctx context.Context, id uint) (models.Quarter, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.Quarter, error)
	Create(ctx context.Context, quarter *models.Quarter) error
	Delete(ctx context.Context, id uint) error
	CountMarks(ctx context.Context, id uint) (int64, error)
}

type quarterRepository struct {
	db *gorm.DB
}

// NewQuarterRepository constructs the quarter repository.
func NewQuarterRepository(db *gorm.DB) QuarterRepository {
	return &quarterRepository{db: db}
}

func (r *quarterRepository) List(ctx context.Context) ([]models.Quarter, error) {
	var quarters []models.Quarter
	err := r.db.WithContext(ctx).Preload("StudyYear").Order("id DESC").Find(&quarters).Error
	return quarters, err
}

func (r *quarterRepository) GetByID(ctx context.Context, id uint) (models.Quarter, error) {
	var quarter models.Quarter
	err := r.db.WithContext(ctx).Preload("StudyYear").First(&quarter, id).Error
	return quarter, err
}

func (r *quarterRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.Quarter, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var quarters []models.Quarter
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&quarters).Error
	return quarters, err
}

func (r *quarterRepository) Create(ctx context.Context, quarter *models.Quarter) error {
	return r.db.WithContext(ctx).Create(quarter).Error
}

func (r *quarterRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Quarter{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *quarterRepository) CountMarks(ctx context.Context, id uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Mark{}).Where("quarter_id = ?", id).Count(&count).Error
	return count, err
}
