package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/school-records-api/internal/models"
)

// MarkFilter narrows mark listings.
type MarkFilter struct {
	StudentID   string
	SubjectID   uint
	QuarterID   uint
	GradeID     uint
	StudyYearID uint
	Search      string
}

// MarkRepository exposes persistence helpers for marks.
type MarkRepository interface {
	List(ctx context.Context, filter MarkFilter) ([]models.Mark, error)
	GetByID(ctx context.Context, id uint) (models.Mark, error)
	Create(ctx context.Context, mark *models.Mark) error
	UpdateScore(ctx context.Context, id uint, score float64) (models.Mark, error)
	Delete(ctx context.Context, id uint) error
	ListForStudentYear(ctx context.Context, studentID string, studyYearID uint) ([]models.Mark, error)
	UpsertChunk(ctx context.Context, rows []models.Mark) (int, error)
}

type markRepository struct {
	db *gorm.DB
}

// NewMarkRepository constructs the mark repository.
func NewMarkRepository(db *gorm.DB) MarkRepository {
	return &markRepository{db: db}
}

func withMarkRelations(query *gorm.DB) *gorm.DB {
	return query.Preload("Student.Grade").Preload("Subject").Preload("Quarter")
}

func (r *markRepository) List(ctx context.Context, filter MarkFilter) ([]models.Mark, error) {
	query := withMarkRelations(r.db.WithContext(ctx).Model(&models.Mark{})).
		Joins("JOIN students ON students.id = marks.student_id")

	if filter.StudentID != "" {
		query = query.Where("marks.student_id = ?", filter.StudentID)
	}
	if filter.SubjectID > 0 {
		query = query.Where("marks.subject_id = ?", filter.SubjectID)
	}
	if filter.QuarterID > 0 {
		query = query.Where("marks.quarter_id = ?", filter.QuarterID)
	}
	if filter.StudyYearID > 0 {
		query = query.Where("students.study_year_id = ?", filter.StudyYearID)
	}
	if filter.GradeID > 0 {
		query = query.Where("students.grade_id = ?", filter.GradeID)
	}
	query = studentSearch(query, filter.Search)

	var marks []models.Mark
	err := query.Order("marks.created_at DESC, marks.id DESC").Find(&marks).Error
	return marks, err
}

func (r *markRepository) GetByID(ctx context.Context, id uint) (models.Mark, error) {
	var mark models.Mark
	err := withMarkRelations(r.db.WithContext(ctx)).First(&mark, id).Error
	return mark, err
}

func (r *markRepository) Create(ctx context.Context, mark *models.Mark) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(mark).Error
}

func (r *markRepository) UpdateScore(ctx context.Context, id uint, score float64) (models.Mark, error) {
	result := r.db.WithContext(ctx).Model(&models.Mark{}).Where("id = ?", id).Update("score", score)
	if result.Error != nil {
		return models.Mark{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Mark{}, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *markRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Mark{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *markRepository) ListForStudentYear(ctx context.Context, studentID string, studyYearID uint) ([]models.Mark, error) {
	var marks []models.Mark
	err := r.db.WithContext(ctx).
		Model(&models.Mark{}).
		Preload("Subject").
		Preload("Quarter").
		Joins("JOIN quarters ON quarters.id = marks.quarter_id").
		Joins("JOIN subjects ON subjects.id = marks.subject_id").
		Where("marks.student_id = ? AND quarters.study_year_id = ?", studentID, studyYearID).
		Order("marks.quarter_id ASC, subjects.name ASC").
		Find(&marks).Error
	return marks, err
}

var markConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "student_id"}, {Name: "subject_id"}, {Name: "quarter_id"}},
	DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
}

// UpsertChunk writes rows one statement at a time inside a single
// transaction. A multi-row upsert cannot touch the same key twice, and
// imports routinely repeat a key; row order decides which score survives.
func (r *markRepository) UpsertChunk(ctx context.Context, rows []models.Mark) (int, error) {
	written := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			row := rows[i]
			if err := tx.Omit(clause.Associations).Clauses(markConflict).Create(&row).Error; err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
