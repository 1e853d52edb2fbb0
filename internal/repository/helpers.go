package repository

import (
	"strings"

	"gorm.io/gorm"
)

func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	if pageSize <= 0 {
		return query
	}
	if page <= 0 {
		page = 1
	}
	return query.Offset((page - 1) * pageSize).Limit(pageSize)
}

// likePattern builds a case-insensitive LIKE pattern; callers compare against LOWER(column).
func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

// studentSearch restricts a query joined with students to a name or ID match.
func studentSearch(query *gorm.DB, search string) *gorm.DB {
	if strings.TrimSpace(search) == "" {
		return query
	}
	like := likePattern(search)
	return query.Where("(LOWER(students.full_name) LIKE ? OR LOWER(students.id) LIKE ?)", like, like)
}
