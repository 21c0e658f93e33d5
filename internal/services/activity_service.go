package services

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/userhub/backend/internal/metrics"
	"github.com/userhub/backend/internal/models"
)

// PageMeta describes pagination for list responses.
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

func pageMeta(total int64, page, limit int) PageMeta {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return PageMeta{Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}

// ActivityInput carries the fields for a new audit record.
type ActivityInput struct {
	Type         string
	Description  string
	UserID       uint
	TargetUserID *uint
	Details      any
	IPAddress    string
	UserAgent    string
}

// ActivityFilter captures the optional query filters for the audit trail.
type ActivityFilter struct {
	Type      string
	UserID    uint
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// ActivityPage is a page of audit records with pagination metadata.
type ActivityPage struct {
	Data []models.Activity `json:"data"`
	Meta PageMeta          `json:"meta"`
}

// ActivityService owns the append-only audit trail.
type ActivityService struct {
	db *gorm.DB
}

// NewActivityService returns an ActivityService using the provided DB.
func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

// Record appends a single audit entry. Records are immutable once stored.
func (s *ActivityService) Record(in ActivityInput) (*models.Activity, error) {
	activity := models.Activity{
		Type:         in.Type,
		Description:  in.Description,
		UserID:       in.UserID,
		TargetUserID: in.TargetUserID,
		IPAddress:    in.IPAddress,
		UserAgent:    in.UserAgent,
	}

	if in.Details != nil {
		raw, err := json.Marshal(in.Details)
		if err != nil {
			return nil, fmt.Errorf("encode activity details: %w", err)
		}
		activity.Details = string(raw)
	}

	if err := s.db.Create(&activity).Error; err != nil {
		return nil, fmt.Errorf("record activity: %w", err)
	}

	metrics.IncActivityRecorded()
	return &activity, nil
}

// List returns audit records visible to the caller. The role gate applies
// before any caller-supplied filter: admins see everything, managers only
// login/logout events, plain users always get an empty page.
func (s *ActivityService) List(filter ActivityFilter, callerRole string, callerID uint) (*ActivityPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	if callerRole == models.RoleUser {
		return &ActivityPage{Data: []models.Activity{}, Meta: pageMeta(0, page, limit)}, nil
	}

	query := s.db.Model(&models.Activity{})
	if callerRole == models.RoleManager {
		query = query.Where("type IN ?", []string{models.ActivityLogin, models.ActivityLogout})
	}

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count activities: %w", err)
	}

	activities := []models.Activity{}
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	return &ActivityPage{Data: activities, Meta: pageMeta(total, page, limit)}, nil
}

// LogLogin records a successful sign-in.
func (s *ActivityService) LogLogin(userID uint, ip, userAgent string) (*models.Activity, error) {
	return s.Record(ActivityInput{
		Type:        models.ActivityLogin,
		Description: "User signed in",
		UserID:      userID,
		IPAddress:   ip,
		UserAgent:   userAgent,
	})
}

// LogLogout records a sign-out.
func (s *ActivityService) LogLogout(userID uint, ip, userAgent string) (*models.Activity, error) {
	return s.Record(ActivityInput{
		Type:        models.ActivityLogout,
		Description: "User signed out",
		UserID:      userID,
		IPAddress:   ip,
		UserAgent:   userAgent,
	})
}

// LogUserCreated records an account created on someone's behalf.
func (s *ActivityService) LogUserCreated(actorID, targetID uint, targetName string) (*models.Activity, error) {
	return s.Record(ActivityInput{
		Type:         models.ActivityUserCreated,
		Description:  fmt.Sprintf("New user created: %s", targetName),
		UserID:       actorID,
		TargetUserID: &targetID,
	})
}

// LogUserUpdated records an admin editing another account.
func (s *ActivityService) LogUserUpdated(actorID, targetID uint, targetName string, changes any) (*models.Activity, error) {
	return s.Record(ActivityInput{
		Type:         models.ActivityUserUpdated,
		Description:  fmt.Sprintf("User updated: %s", targetName),
		UserID:       actorID,
		TargetUserID: &targetID,
		Details:      map[string]any{"changes": changes},
	})
}

// LogUserDeleted records an account removal. The target id is kept even
// though the account row is already gone.
func (s *ActivityService) LogUserDeleted(actorID, targetID uint, targetName string) (*models.Activity, error) {
	return s.Record(ActivityInput{
		Type:         models.ActivityUserDeleted,
		Description:  fmt.Sprintf("User deleted: %s", targetName),
		UserID:       actorID,
		TargetUserID: &targetID,
	})
}

// LogProfileUpdated records a user editing their own profile.
func (s *ActivityService) LogProfileUpdated(userID uint, changes any) (*models.Activity, error) {
	return s.Record(ActivityInput{
		Type:        models.ActivityProfileUpdated,
		Description: "Profile updated",
		UserID:      userID,
		Details:     map[string]any{"changes": changes},
	})
}

// LogPasswordChanged records a password change.
func (s *ActivityService) LogPasswordChanged(userID uint, ip, userAgent string) (*models.Activity, error) {
	return s.Record(ActivityInput{
		Type:        models.ActivityPasswordChanged,
		Description: "Password changed",
		UserID:      userID,
		IPAddress:   ip,
		UserAgent:   userAgent,
	})
}
