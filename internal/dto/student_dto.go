package dto

import (
	"time"

	"github.com/noah-isme/school-records-api/internal/models"
)

// StudentListRequest filters the admin student listing.
type StudentListRequest struct {
	Search      string
	StudyYearID uint
	GradeID     uint
	Limit       int
}

// StudentCreateRequest enrols a student in a study year.
type StudentCreateRequest struct {
	ID          string `json:"id" validate:"required,max=64"`
	FullName    string `json:"fullName" validate:"required,max=255"`
	GradeID     *uint  `json:"gradeId"`
	StudyYearID uint   `json:"studyYearId" validate:"required"`
}

// StudentUpdateRequest is a partial update. A null or empty gradeId removes
// the student from their grade; an id different from the current one renames
// the student.
type StudentUpdateRequest struct {
	ID       Optional[string]      `json:"id"`
	FullName Optional[string]      `json:"fullName"`
	GradeID  Optional[interface{}] `json:"gradeId"`
}

// GradeRef is the minimal grade projection embedded in student payloads.
type GradeRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// StudentOption is a lightweight row for admin pickers.
type StudentOption struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullName"`
	StudyYearID uint      `json:"studyYearId"`
	Grade       *GradeRef `json:"grade"`
}

// StudentResponse serializes a student for admin endpoints.
type StudentResponse struct {
	ID            string    `json:"id"`
	FullName      string    `json:"fullName"`
	GradeID       *uint     `json:"gradeId"`
	Grade         *GradeRef `json:"grade"`
	StudyYearID   uint      `json:"studyYearId"`
	StudyYearName string    `json:"studyYearName,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewStudentResponse converts a student model into a DTO.
func NewStudentResponse(student models.Student) StudentResponse {
	resp := StudentResponse{
		ID:          student.ID,
		FullName:    student.FullName,
		GradeID:     student.GradeID,
		StudyYearID: student.StudyYearID,
		CreatedAt:   student.CreatedAt,
	}
	if student.Grade != nil {
		resp.Grade = &GradeRef{ID: student.Grade.ID, Name: student.Grade.Name}
	}
	if student.StudyYear != nil {
		resp.StudyYearName = student.StudyYear.Name
	}
	return resp
}

// NewStudentOption converts a student model into a picker option.
func NewStudentOption(student models.Student) StudentOption {
	option := StudentOption{
		ID:          student.ID,
		FullName:    student.FullName,
		StudyYearID: student.StudyYearID,
	}
	if student.Grade != nil {
		option.Grade = &GradeRef{ID: student.Grade.ID, Name: student.Grade.Name}
	}
	return option
}

// StudentDetailResponse is a student with the results of their current study year.
type StudentDetailResponse struct {
	StudentResponse
	Marks       []models.Mark       `json:"marks"`
	Monitorings []models.Monitoring `json:"monitorings"`
}

// RemovedResults counts results deleted together with a student.
type RemovedResults struct {
	Marks       int64 `json:"marks"`
	Monitorings int64 `json:"monitorings"`
}

// StudentDeleteResponse confirms a student removal.
type StudentDeleteResponse struct {
	Message string         `json:"message"`
	Removed RemovedResults `json:"removed"`
}

// StudentImportEntry is one imported roster row.
type StudentImportEntry struct {
	ID       interface{} `json:"id"`
	FullName interface{} `json:"fullName"`
	GradeID  interface{} `json:"gradeId"`
}

// StudentImportRequest enrols or refreshes a roster for a study year.
type StudentImportRequest struct {
	StudyYearID    interface{}          `json:"studyYearId"`
	GradeID        interface{}          `json:"gradeId"`
	UpdateExisting interface{}          `json:"updateExisting"`
	Entries        []StudentImportEntry `json:"entries"`
}

// StudentImportResponse summarises a roster import.
type StudentImportResponse struct {
	Message          string `json:"message"`
	Total            int    `json:"total"`
	Created          int    `json:"created"`
	Updated          int    `json:"updated"`
	SkippedExisting  int    `json:"skippedExisting"`
	DuplicatesMerged int    `json:"duplicatesMerged"`
	Invalid          int    `json:"invalid"`
}

// SubjectScore is one mark in the public student view.
type SubjectScore struct {
	SubjectName string  `json:"subjectName"`
	Score       float64 `json:"score"`
}

// QuarterResults groups a student's marks by quarter.
type QuarterResults struct {
	QuarterID   uint           `json:"quarterId"`
	QuarterName string         `json:"quarterName"`
	Subjects    []SubjectScore `json:"subjects"`
}

// MonthlyScore is one monitoring score in the public student view.
type MonthlyScore struct {
	Month string  `json:"month"`
	Score float64 `json:"score"`
}

// SubjectMonitoring groups a student's monitoring scores by subject.
type SubjectMonitoring struct {
	SubjectID   uint           `json:"subjectId"`
	SubjectName string         `json:"subjectName"`
	Entries     []MonthlyScore `json:"entries"`
}

// StudentResultsResponse is the public read model consumed by the Telegram bot.
type StudentResultsResponse struct {
	ID            string              `json:"id"`
	FullName      string              `json:"fullName"`
	GradeName     *string             `json:"gradeName"`
	StudyYearName string              `json:"studyYearName"`
	Quarters      []QuarterResults    `json:"quarters"`
	Monitorings   []SubjectMonitoring `json:"monitorings"`
}
