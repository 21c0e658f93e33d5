package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Activity types for security-relevant events.
const (
	ActivityLogin           = "login"
	ActivityLogout          = "logout"
	ActivityUserCreated     = "user_created"
	ActivityUserUpdated     = "user_updated"
	ActivityUserDeleted     = "user_deleted"
	ActivityProfileUpdated  = "profile_updated"
	ActivityPasswordChanged = "password_changed"
)

// Activity is an append-only audit record. Rows are never updated or deleted
// by the application; the actor reference may dangle after the acting user is
// removed.
type Activity struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	UUID         string `json:"uuid" gorm:"uniqueIndex"`
	Type         string `json:"type" gorm:"index"`
	Description  string `json:"description" gorm:"type:text"`
	Details      string `json:"details,omitempty" gorm:"type:text"` // JSON-encoded payload
	IPAddress    string `json:"ip_address,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	UserID       uint   `json:"user_id" gorm:"index"` // acting user
	TargetUserID *uint  `json:"target_user_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate generates a UUID for new activity records.
func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.New().String()
	}
	return nil
}
