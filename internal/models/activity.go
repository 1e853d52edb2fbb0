package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is the audit trail for imports, rollovers and forced deletes.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actorId"`
	ActorRole  string            `gorm:"size:32;not null" json:"actorRole"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null;index" json:"entityType"`
	EntityID   string            `gorm:"size:64" json:"entityId,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"createdAt"`
}
