package dto

// MarkListRequest filters the mark listing.
type MarkListRequest struct {
	StudentID   string
	SubjectID   uint
	QuarterID   uint
	GradeID     uint
	StudyYearID uint
	Search      string
}

// MarkCreateRequest records a single mark.
type MarkCreateRequest struct {
	StudentID string   `json:"studentId" validate:"required,max=64"`
	SubjectID uint     `json:"subjectId" validate:"required"`
	QuarterID uint     `json:"quarterId" validate:"required"`
	Score     *float64 `json:"score" validate:"required"`
}

// MarkUpdateRequest changes the score of an existing mark.
type MarkUpdateRequest struct {
	Score *float64 `json:"score" validate:"required"`
}

// MonitoringListRequest filters monitoring listings and summaries.
type MonitoringListRequest struct {
	StudyYearID uint
	GradeID     uint
	Search      string
	Month       string
}

// MonitoringCreateRequest records a monthly score. Month is normalised by the service.
type MonitoringCreateRequest struct {
	StudentID   string      `json:"studentId" validate:"required,max=64"`
	SubjectID   uint        `json:"subjectId" validate:"required"`
	StudyYearID uint        `json:"studyYearId" validate:"required"`
	Month       interface{} `json:"month"`
	Score       *float64    `json:"score" validate:"required"`
}

// MonitoringUpdateRequest is a partial update of a monitoring entry.
type MonitoringUpdateRequest struct {
	Score       Optional[float64] `json:"score"`
	Month       Optional[string]  `json:"month"`
	SubjectID   Optional[uint]    `json:"subjectId"`
	StudyYearID Optional[uint]    `json:"studyYearId"`
}

// MonitoringSubjectSummary aggregates one subject.
type MonitoringSubjectSummary struct {
	SubjectID    uint     `json:"subjectId"`
	SubjectName  string   `json:"subjectName"`
	AverageScore *float64 `json:"averageScore"`
	Entries      int64    `json:"entries"`
}

// MonitoringSummaryResponse aggregates monitoring scores for the current filter.
type MonitoringSummaryResponse struct {
	TotalEntries   int64                      `json:"totalEntries"`
	OverallAverage *float64                   `json:"overallAverage"`
	BySubject      []MonitoringSubjectSummary `json:"bySubject"`
}
