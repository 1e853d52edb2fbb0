package models

import "time"

// Student is identified by an externally issued ID that pupils type into the bot.
type Student struct {
	ID          string     `gorm:"primaryKey;size:64" json:"id"`
	FullName    string     `gorm:"size:255;not null;index" json:"fullName"`
	GradeID     *uint      `gorm:"index" json:"gradeId"`
	StudyYearID uint       `gorm:"not null;index" json:"studyYearId"`
	Grade       *Grade     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"grade,omitempty"`
	StudyYear   *StudyYear `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"studyYear,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
