package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/school-records-api/internal/models"
)

// StudentFilter narrows student listings.
type StudentFilter struct {
	Search      string
	StudyYearID uint
	GradeID     uint
	Limit       int
}

// StudentResultCounts counts results attached to a student.
type StudentResultCounts struct {
	Marks       int64
	Monitorings int64
}

// StudentRepository exposes persistence helpers for students.
type StudentRepository interface {
	List(ctx context.Context, filter StudentFilter) ([]models.Student, error)
	GetByID(ctx context.Context, id string) (models.Student, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Student, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, id string, updates map[string]interface{}) (models.Student, error)
	CountResults(ctx context.Context, id string) (StudentResultCounts, error)
	DeleteWithResults(ctx context.Context, id string) (StudentResultCounts, error)
	ImportRoster(ctx context.Context, studyYearID uint, create []models.Student, update []models.Student) (created int, updated int, err error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs the student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) List(ctx context.Context, filter StudentFilter) ([]models.Student, error) {
	query := r.db.WithContext(ctx).Model(&models.Student{}).Preload("Grade")

	if filter.StudyYearID > 0 {
		query = query.Where("students.study_year_id = ?", filter.StudyYearID)
	}
	if filter.GradeID > 0 {
		query = query.Where("students.grade_id = ?", filter.GradeID)
	}
	query = studentSearch(query, filter.Search)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var students []models.Student
	err := query.Order("students.full_name ASC").Find(&students).Error
	return students, err
}

func (r *studentRepository) GetByID(ctx context.Context, id string) (models.Student, error) {
	var student models.Student
	err := r.db.WithContext(ctx).
		Preload("Grade").
		Preload("StudyYear").
		Where("id = ?", id).
		First(&student).Error
	return student, err
}

func (r *studentRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var students []models.Student
	err := r.db.WithContext(ctx).
		Select("id", "grade_id", "study_year_id").
		Where("id IN ?", ids).
		Find(&students).Error
	return students, err
}

func (r *studentRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(student).Error
}

// Update applies column updates. A changed "id" renames the student; results
// follow the new ID through the foreign keys or, where the driver does not
// cascade, through explicit updates in the same transaction.
func (r *studentRepository) Update(ctx context.Context, id string, updates map[string]interface{}) (models.Student, error) {
	targetID := id
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Student{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		newID, ok := updates["id"].(string)
		if !ok || newID == id {
			return nil
		}
		targetID = newID

		if err := tx.Model(&models.Mark{}).Where("student_id = ?", id).Update("student_id", newID).Error; err != nil {
			return err
		}
		return tx.Model(&models.Monitoring{}).Where("student_id = ?", id).Update("student_id", newID).Error
	})
	if err != nil {
		return models.Student{}, err
	}

	return r.GetByID(ctx, targetID)
}

func (r *studentRepository) CountResults(ctx context.Context, id string) (StudentResultCounts, error) {
	var counts StudentResultCounts
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Mark{}).Where("student_id = ?", id).Count(&counts.Marks).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&models.Monitoring{}).Where("student_id = ?", id).Count(&counts.Monitorings).Error; err != nil {
		return counts, err
	}
	return counts, nil
}

func (r *studentRepository) DeleteWithResults(ctx context.Context, id string) (StudentResultCounts, error) {
	var removed StudentResultCounts
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		monitorings := tx.Where("student_id = ?", id).Delete(&models.Monitoring{})
		if monitorings.Error != nil {
			return monitorings.Error
		}
		marks := tx.Where("student_id = ?", id).Delete(&models.Mark{})
		if marks.Error != nil {
			return marks.Error
		}
		student := tx.Where("id = ?", id).Delete(&models.Student{})
		if student.Error != nil {
			return student.Error
		}
		if student.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		removed = StudentResultCounts{Marks: marks.RowsAffected, Monitorings: monitorings.RowsAffected}
		return nil
	})
	return removed, err
}

// ImportRoster creates new students and refreshes existing ones in a single
// transaction. Rows in create that already exist are skipped silently.
func (r *studentRepository) ImportRoster(ctx context.Context, studyYearID uint, create []models.Student, update []models.Student) (int, int, error) {
	created, updated := 0, 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(create) > 0 {
			result := tx.Omit(clause.Associations).
				Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
				CreateInBatches(&create, 500)
			if result.Error != nil {
				return result.Error
			}
			created = int(result.RowsAffected)
		}

		for _, student := range update {
			result := tx.Model(&models.Student{}).Where("id = ?", student.ID).Updates(map[string]interface{}{
				"full_name":     student.FullName,
				"study_year_id": studyYearID,
				"grade_id":      student.GradeID,
			})
			if result.Error != nil {
				return result.Error
			}
			updated += int(result.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}
