package models

import "time"

// StudyYear is an academic year. Students belong to exactly one year at a time.
type StudyYear struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	StartDate time.Time `gorm:"not null" json:"startDate"`
	EndDate   time.Time `gorm:"not null" json:"endDate"`
	Quarters  []Quarter `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"quarters,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Quarter is a named term inside a study year. Dates are optional.
type Quarter struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:128;not null" json:"name"`
	StudyYearID uint       `gorm:"not null;index" json:"studyYearId"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	StudyYear   *StudyYear `json:"studyYear,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
