package dto

import (
	"time"

	"github.com/noah-isme/school-records-api/internal/models"
)

// AdminRegisterRequest creates an admin panel account.
type AdminRegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// AdminLoginRequest authenticates an admin.
type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminResponse serializes an admin without credentials.
type AdminResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewAdminResponse converts an admin model into a DTO.
func NewAdminResponse(admin models.Admin) AdminResponse {
	return AdminResponse{
		ID:        admin.ID,
		Username:  admin.Username,
		Email:     admin.Email,
		CreatedAt: admin.CreatedAt,
	}
}

// AdminLoginResponse carries the issued bearer token.
type AdminLoginResponse struct {
	Message string        `json:"message"`
	Token   string        `json:"token"`
	Admin   AdminResponse `json:"admin"`
}

// ActivityListRequest filters the audit trail.
type ActivityListRequest struct {
	Page       int
	PageSize   int
	Action     string
	EntityType string
}

// ActivityResponse serializes one audit entry.
type ActivityResponse struct {
	ID         uint                   `json:"id"`
	ActorID    uint                   `json:"actorId"`
	ActorRole  string                 `json:"actorRole"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId,omitempty"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// NewActivityResponse converts an activity log model into a DTO.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	metadata := map[string]interface{}{}
	for key, value := range entry.Metadata {
		metadata[key] = value
	}

	return ActivityResponse{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   metadata,
		CreatedAt:  entry.CreatedAt,
	}
}

// ActivityListResponse wraps a paginated audit trail.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}
