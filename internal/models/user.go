// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole defines the authorization role carried by a verified identity.
type UserRole string

const (
	// RoleFan is the default role for authenticated supporters.
	RoleFan UserRole = "fan"
	// RoleAdmin marks moderation-capable accounts.
	RoleAdmin UserRole = "admin"
)

// User represents a verified identity in the Terrace application.
// Credential issuance lives in the external auth service; this table only
// mirrors what battle and comment payloads need (id, username, role).
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;not null" json:"username"`
	Role      UserRole       `gorm:"type:varchar(20);not null;default:'fan'" json:"role"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
