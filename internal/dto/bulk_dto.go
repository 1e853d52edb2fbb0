package dto

// BulkRowError explains why one spreadsheet row was rejected.
type BulkRowError struct {
	Message string `json:"message"`
}

// BulkUpsertResponse is returned by the bulk import endpoints. Row errors do
// not fail the request.
type BulkUpsertResponse struct {
	Updated int            `json:"updated"`
	Errors  []BulkRowError `json:"errors"`
}

// MarkBulkEntry is one imported mark row. Fields stay untyped because
// spreadsheet exports mix numbers and strings; the service coerces them.
type MarkBulkEntry struct {
	StudentID interface{} `json:"studentId"`
	SubjectID interface{} `json:"subjectId"`
	QuarterID interface{} `json:"quarterId"`
	Score     interface{} `json:"score"`
}

// MarkBulkRequest carries imported marks plus optional scope filters.
type MarkBulkRequest struct {
	Entries     []MarkBulkEntry `json:"entries"`
	StudyYearID interface{}     `json:"studyYearId"`
	GradeID     interface{}     `json:"gradeId"`
}

// MonitoringBulkEntry is one imported monitoring row.
type MonitoringBulkEntry struct {
	StudentID   interface{} `json:"studentId"`
	SubjectID   interface{} `json:"subjectId"`
	StudyYearID interface{} `json:"studyYearId"`
	Month       interface{} `json:"month"`
	Score       interface{} `json:"score"`
}

// MonitoringBulkRequest carries imported monitoring rows plus an optional grade filter.
type MonitoringBulkRequest struct {
	Entries []MonitoringBulkEntry `json:"entries"`
	GradeID interface{}           `json:"gradeId"`
}
