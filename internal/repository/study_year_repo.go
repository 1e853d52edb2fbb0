package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/school-records-api/internal/models"
)

// StudyYearDependents counts rows that keep a study year from being deleted.
type StudyYearDependents struct {
	Quarters    int64
	Students    int64
	Monitorings int64
}

// Any reports whether anything references the year.
func (d StudyYearDependents) Any() bool {
	return d.Quarters > 0 || d.Students > 0 || d.Monitorings > 0
}

// StudyYearRepository exposes persistence helpers for study years.
type StudyYearRepository interface {
	List(ctx context.Context) ([]models.StudyYear, error)
	GetByID(ctx context.Context, id uint) (models.StudyYear, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.StudyYear, error)
	Create(ctx context.Context, year *models.StudyYear) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.StudyYear, error)
	Delete(ctx context.Context, id uint) error
	CountDependents(ctx context.Context, id uint) (StudyYearDependents, error)
}

type studyYearRepository struct {
	db *gorm.DB
}

// NewStudyYearRepository constructs the study year repository.
func NewStudyYearRepository(db *gorm.DB) StudyYearRepository {
	return &studyYearRepository{db: db}
}

func orderedQuarters(db *gorm.DB) *gorm.DB {
	return db.Order("start_date ASC, id ASC")
}

func (r *studyYearRepository) List(ctx context.Context) ([]models.StudyYear, error) {
	var years []models.StudyYear
	err := r.db.WithContext(ctx).
		Preload("Quarters", orderedQuarters).
		Order("start_date DESC, id DESC").
		Find(&years).Error
	return years, err
}

func (r *studyYearRepository) GetByID(ctx context.Context, id uint) (models.StudyYear, error) {
	var year models.StudyYear
	err := r.db.WithContext(ctx).
		Preload("Quarters", orderedQuarters).
		First(&year, id).Error
	return year, err
}

func (r *studyYearRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.StudyYear, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var years []models.StudyYear
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&years).Error
	return years, err
}

func (r *studyYearRepository) Create(ctx context.Context, year *models.StudyYear) error {
	return r.db.WithContext(ctx).Create(year).Error
}

func (r *studyYearRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.StudyYear, error) {
	result := r.db.WithContext(ctx).Model(&models.StudyYear{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return models.StudyYear{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.StudyYear{}, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *studyYearRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.StudyYear{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *studyYearRepository) CountDependents(ctx context.Context, id uint) (StudyYearDependents, error) {
	var deps StudyYearDependents
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.Quarter{}).Where("study_year_id = ?", id).Count(&deps.Quarters).Error; err != nil {
		return deps, err
	}
	if err := db.Model(&models.Student{}).Where("study_year_id = ?", id).Count(&deps.Students).Error; err != nil {
		return deps, err
	}
	if err := db.Model(&models.Monitoring{}).Where("study_year_id = ?", id).Count(&deps.Monitorings).Error; err != nil {
		return deps, err
	}
	return deps, nil
}
