package models

import "time"

// Mark is a quarterly score. A student has at most one mark per subject and quarter.
type Mark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Score     float64   `gorm:"not null" json:"score"`
	StudentID string    `gorm:"size:64;not null;uniqueIndex:idx_mark_student_subject_quarter,priority:1" json:"studentId"`
	SubjectID uint      `gorm:"not null;uniqueIndex:idx_mark_student_subject_quarter,priority:2" json:"subjectId"`
	QuarterID uint      `gorm:"not null;index;uniqueIndex:idx_mark_student_subject_quarter,priority:3" json:"quarterId"`
	Student   *Student  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student,omitempty"`
	Subject   *Subject  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"subject,omitempty"`
	Quarter   *Quarter  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"quarter,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Monitoring is a monthly score. Month is either YYYY-MM or a legacy free-text label.
type Monitoring struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Month       string     `gorm:"size:32;not null;uniqueIndex:idx_monitoring_natural_key,priority:4" json:"month"`
	Score       float64    `gorm:"not null" json:"score"`
	StudentID   string     `gorm:"size:64;not null;uniqueIndex:idx_monitoring_natural_key,priority:1" json:"studentId"`
	SubjectID   uint       `gorm:"not null;uniqueIndex:idx_monitoring_natural_key,priority:2" json:"subjectId"`
	StudyYearID uint       `gorm:"not null;index;uniqueIndex:idx_monitoring_natural_key,priority:3" json:"studyYearId"`
	Student     *Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student,omitempty"`
	Subject     *Subject   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"subject,omitempty"`
	StudyYear   *StudyYear `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"studyYear,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
