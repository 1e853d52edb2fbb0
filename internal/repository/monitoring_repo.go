package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/school-records-api/internal/models"
)

// MonitoringFilter narrows monitoring listings and summaries.
type MonitoringFilter struct {
	StudyYearID uint
	GradeID     uint
	Search      string
	Month       string
}

// MonitoringTotals is the overall aggregate for a filter.
type MonitoringTotals struct {
	Total   int64
	Average *float64
}

// MonitoringSubjectAggregate is the aggregate for one subject.
type MonitoringSubjectAggregate struct {
	SubjectID    uint
	AverageScore *float64
	Entries      int64
}

// MonitoringRepository exposes persistence helpers for monitoring entries.
type MonitoringRepository interface {
	List(ctx context.Context, filter MonitoringFilter) ([]models.Monitoring, error)
	Summarize(ctx context.Context, filter MonitoringFilter) (MonitoringTotals, []MonitoringSubjectAggregate, error)
	GetByID(ctx context.Context, id uint) (models.Monitoring, error)
	Upsert(ctx context.Context, entry *models.Monitoring) (models.Monitoring, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Monitoring, error)
	Delete(ctx context.Context, id uint) error
	ListForStudentYear(ctx context.Context, studentID string, studyYearID uint) ([]models.Monitoring, error)
	UpsertChunk(ctx context.Context, rows []models.Monitoring) (int, error)
}

type monitoringRepository struct {
	db *gorm.DB
}

// NewMonitoringRepository constructs the monitoring repository.
func NewMonitoringRepository(db *gorm.DB) MonitoringRepository {
	return &monitoringRepository{db: db}
}

func withMonitoringRelations(query *gorm.DB) *gorm.DB {
	return query.Preload("Student.Grade").Preload("Subject").Preload("StudyYear")
}

func (r *monitoringRepository) filtered(ctx context.Context, filter MonitoringFilter) *gorm.DB {
	query := r.db.WithContext(ctx).
		Model(&models.Monitoring{}).
		Joins("JOIN students ON students.id = monitorings.student_id")

	if filter.StudyYearID > 0 {
		query = query.Where("monitorings.study_year_id = ?", filter.StudyYearID)
	}
	if filter.Month != "" {
		query = query.Where("monitorings.month = ?", filter.Month)
	}
	if filter.GradeID > 0 {
		query = query.Where("students.grade_id = ?", filter.GradeID)
	}
	return studentSearch(query, filter.Search)
}

func (r *monitoringRepository) List(ctx context.Context, filter MonitoringFilter) ([]models.Monitoring, error) {
	var entries []models.Monitoring
	err := withMonitoringRelations(r.filtered(ctx, filter)).
		Order("monitorings.month ASC, monitorings.id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *monitoringRepository) Summarize(ctx context.Context, filter MonitoringFilter) (MonitoringTotals, []MonitoringSubjectAggregate, error) {
	var totals MonitoringTotals
	if err := r.filtered(ctx, filter).
		Select("COUNT(*) AS total, AVG(monitorings.score) AS average").
		Scan(&totals).Error; err != nil {
		return MonitoringTotals{}, nil, err
	}

	var groups []MonitoringSubjectAggregate
	if err := r.filtered(ctx, filter).
		Select("monitorings.subject_id AS subject_id, AVG(monitorings.score) AS average_score, COUNT(*) AS entries").
		Group("monitorings.subject_id").
		Order("monitorings.subject_id ASC").
		Scan(&groups).Error; err != nil {
		return MonitoringTotals{}, nil, err
	}

	return totals, groups, nil
}

func (r *monitoringRepository) GetByID(ctx context.Context, id uint) (models.Monitoring, error) {
	var entry models.Monitoring
	err := withMonitoringRelations(r.db.WithContext(ctx)).First(&entry, id).Error
	return entry, err
}

var monitoringConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "student_id"}, {Name: "subject_id"}, {Name: "study_year_id"}, {Name: "month"}},
	DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
}

func (r *monitoringRepository) Upsert(ctx context.Context, entry *models.Monitoring) (models.Monitoring, error) {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Clauses(monitoringConflict).Create(entry).Error; err != nil {
		return models.Monitoring{}, err
	}

	var stored models.Monitoring
	err := withMonitoringRelations(db).
		Where("student_id = ? AND subject_id = ? AND study_year_id = ? AND month = ?",
			entry.StudentID, entry.SubjectID, entry.StudyYearID, entry.Month).
		First(&stored).Error
	return stored, err
}

func (r *monitoringRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) (models.Monitoring, error) {
	result := r.db.WithContext(ctx).Model(&models.Monitoring{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return models.Monitoring{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Monitoring{}, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *monitoringRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Monitoring{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *monitoringRepository) ListForStudentYear(ctx context.Context, studentID string, studyYearID uint) ([]models.Monitoring, error) {
	var entries []models.Monitoring
	err := r.db.WithContext(ctx).
		Model(&models.Monitoring{}).
		Preload("Subject").
		Joins("JOIN subjects ON subjects.id = monitorings.subject_id").
		Where("monitorings.student_id = ? AND monitorings.study_year_id = ?", studentID, studyYearID).
		Order("subjects.name ASC, monitorings.month ASC, monitorings.created_at ASC").
		Find(&entries).Error
	return entries, err
}

// UpsertChunk mirrors markRepository.UpsertChunk for monitoring rows.
func (r *monitoringRepository) UpsertChunk(ctx context.Context, rows []models.Monitoring) (int, error) {
	written := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			row := rows[i]
			if err := tx.Omit(clause.Associations).Clauses(monitoringConflict).Create(&row).Error; err != nil {
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
