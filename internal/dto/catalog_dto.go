package dto

import (
	"time"

	"github.com/noah-isme/school-records-api/internal/models"
)

// GradeRequest creates or renames a grade.
type GradeRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

// GradeResponse includes how many students currently sit in the grade.
type GradeResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	StudentCount int64  `json:"studentCount"`
}

// SubjectRequest creates or renames a subject.
type SubjectRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

// QuarterCreateRequest adds a quarter to an existing study year.
type QuarterCreateRequest struct {
	Name        string  `json:"name" validate:"required,max=128"`
	StudyYearID uint    `json:"studyYearId" validate:"required"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
}

// QuarterResponse serializes a quarter with its study year name.
type QuarterResponse struct {
	ID            uint       `json:"id"`
	Name          string     `json:"name"`
	StudyYearID   uint       `json:"studyYearId"`
	StudyYearName string     `json:"studyYearName,omitempty"`
	StartDate     *time.Time `json:"startDate"`
	EndDate       *time.Time `json:"endDate"`
}

// NewQuarterResponse converts a quarter model into a DTO.
func NewQuarterResponse(quarter models.Quarter) QuarterResponse {
	resp := QuarterResponse{
		ID:          quarter.ID,
		Name:        quarter.Name,
		StudyYearID: quarter.StudyYearID,
		StartDate:   quarter.StartDate,
		EndDate:     quarter.EndDate,
	}
	if quarter.StudyYear != nil {
		resp.StudyYearName = quarter.StudyYear.Name
	}
	return resp
}
