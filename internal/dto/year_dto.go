package dto

import (
	"time"

	"github.com/noah-isme/school-records-api/internal/models"
)

// StudyYearCreateRequest defines the payload for opening a study year.
type StudyYearCreateRequest struct {
	Name      string `json:"name" validate:"required,max=128"`
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
}

// StudyYearUpdateRequest is a partial update. Dates are strings in any format
// accepted by utils.ParseDate.
type StudyYearUpdateRequest struct {
	Name      Optional[string] `json:"name"`
	StartDate Optional[string] `json:"startDate"`
	EndDate   Optional[string] `json:"endDate"`
}

// QuarterSummary is a quarter nested under its study year.
type QuarterSummary struct {
	ID        uint       `json:"id"`
	Name      string     `json:"name"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

// StudyYearResponse serializes a study year with its quarters.
type StudyYearResponse struct {
	ID        uint             `json:"id"`
	Name      string           `json:"name"`
	StartDate time.Time        `json:"startDate"`
	EndDate   time.Time        `json:"endDate"`
	Quarters  []QuarterSummary `json:"quarters"`
}

// NewStudyYearResponse converts a study year model into a DTO.
func NewStudyYearResponse(year models.StudyYear) StudyYearResponse {
	quarters := make([]QuarterSummary, 0, len(year.Quarters))
	for _, quarter := range year.Quarters {
		quarters = append(quarters, QuarterSummary{
			ID:        quarter.ID,
			Name:      quarter.Name,
			StartDate: quarter.StartDate,
			EndDate:   quarter.EndDate,
		})
	}

	return StudyYearResponse{
		ID:        year.ID,
		Name:      year.Name,
		StartDate: year.StartDate,
		EndDate:   year.EndDate,
		Quarters:  quarters,
	}
}

// RolloverRequest opens a new study year from an existing one. Flags are
// true unless explicitly false ("false", 0, "no" and "off" also count);
// graduateAt defaults to 11.
type RolloverRequest struct {
	Name            string      `json:"name"`
	StartDate       string      `json:"startDate"`
	EndDate         string      `json:"endDate"`
	MoveStudents    interface{} `json:"moveStudents"`
	IncrementGrades interface{} `json:"incrementGrades"`
	CopyQuarters    interface{} `json:"copyQuarters"`
	GraduateAt      interface{} `json:"graduateAt"`
}

// RolloverOptions echoes the effective options after defaults were applied.
type RolloverOptions struct {
	MoveStudents    bool    `json:"moveStudents"`
	IncrementGrades bool    `json:"incrementGrades"`
	CopyQuarters    bool    `json:"copyQuarters"`
	GraduateAt      float64 `json:"graduateAt"`
}

// RolloverResponse summarises a completed rollover.
type RolloverResponse struct {
	Message                  string            `json:"message"`
	NewYear                  StudyYearResponse `json:"newYear"`
	QuartersCopied           int               `json:"quartersCopied"`
	StudentsMoved            int               `json:"studentsMoved"`
	StudentsGradeIncremented int               `json:"studentsGradeIncremented"`
	GraduatesSkipped         int               `json:"graduatesSkipped"`
	Options                  RolloverOptions   `json:"options"`
}
