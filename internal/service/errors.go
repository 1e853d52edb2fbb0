package service

import (
	"errors"
	"fmt"
)

// Lookup failures surfaced as 404.
var (
	ErrStudyYearNotFound  = errors.New("study year not found")
	ErrGradeNotFound      = errors.New("grade not found")
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrQuarterNotFound    = errors.New("quarter not found")
	ErrStudentNotFound    = errors.New("student not found")
	ErrMarkNotFound       = errors.New("mark not found")
	ErrMonitoringNotFound = errors.New("monitoring not found")
	ErrAdminNotFound      = errors.New("admin not found")
)

// Delete conflicts surfaced as 409.
var (
	ErrStudyYearInUse = errors.New("study year is referenced by quarters, students or monitoring")
	ErrGradeInUse     = errors.New("grade has students")
	ErrSubjectInUse   = errors.New("subject is referenced by results")
	ErrQuarterInUse   = errors.New("quarter is referenced by marks")
)

// ErrInvalidCredentials is returned when a login password does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// InputError is a request problem reported to the caller verbatim with HTTP 400.
type InputError struct {
	Message string
	Details map[string]interface{}
}

func (e *InputError) Error() string {
	return e.Message
}

func invalidInput(format string, args ...interface{}) error {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

// StudentHasResultsError blocks a non-forced student delete.
type StudentHasResultsError struct {
	Marks       int64
	Monitorings int64
}

func (e *StudentHasResultsError) Error() string {
	return fmt.Sprintf("student has %d marks and %d monitoring entries", e.Marks, e.Monitorings)
}

// Uniqueness violations on named catalog entries surfaced as 409.
var (
	ErrGradeExists   = errors.New("grade name already exists")
	ErrSubjectExists = errors.New("subject name already exists")
)

// ErrAdminExists is returned when the username or email is taken.
var ErrAdminExists = errors.New("admin already exists")
