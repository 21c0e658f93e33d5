package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/userhub/backend/internal/authz"
	"github.com/userhub/backend/internal/logger"
	"github.com/userhub/backend/internal/models"
)

// inactivityWindow is how long an account may go without a login before it
// counts as inactive.
const inactivityWindow = 30 * 24 * time.Hour

// CreateUserInput carries the fields for a new account.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// GoogleUserInput carries the verified attributes for a Google-provisioned
// account.
type GoogleUserInput struct {
	Name      string
	Email     string
	GoogleID  string
	AvatarURL string
}

// UpdateUserInput is the patch applied to an existing account. Zero values
// mean "leave unchanged"; an empty password is not an error.
type UpdateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	IsActive *bool
}

// UserQuery captures directory listing parameters.
type UserQuery struct {
	Search string
	Role   string
	SortBy string // "name", "createdAt" or "email"
	Order  string // "asc" or "desc"
	Page   int
	Limit  int
}

// UserPage is a page of accounts with pagination metadata.
type UserPage struct {
	Data []models.User `json:"data"`
	Meta PageMeta      `json:"meta"`
}

// UserStats aggregates account counts for the dashboard.
type UserStats struct {
	TotalUsers        int64 `json:"totalUsers"`
	ActiveUsers       int64 `json:"activeUsers"`
	InactiveUsers     int64 `json:"inactiveUsers"`
	AdminUsers        int64 `json:"adminUsers"`
	RegularUsers      int64 `json:"regularUsers"` // managers counted with regular users
	NewUsersThisMonth int64 `json:"newUsersThisMonth"`
}

// UserService owns account lifecycle and enforces the authorization policy.
type UserService struct {
	db         *gorm.DB
	activities *ActivityService
}

// NewUserService returns a UserService using the provided DB and audit trail.
func NewUserService(db *gorm.DB, activities *ActivityService) *UserService {
	return &UserService{db: db, activities: activities}
}

// Create persists a new account. The email pre-check is a convenience; the
// unique index on email is the source of truth under concurrent creates.
// When actor is set the creation is attributed to them in the audit trail.
func (s *UserService) Create(in CreateUserInput, actor *models.User) (*models.User, error) {
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrForbidden, in.Role)
	}
	if role != models.RoleUser && actor != nil && !authz.Can(actor, authz.ActionAssignRole, nil) {
		return nil, fmt.Errorf("%w: only admins may assign elevated roles", ErrForbidden)
	}

	// Emails are stored and compared exactly as given.
	taken, err := s.emailTaken(in.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	user := models.User{
		Name:     in.Name,
		Email:    in.Email,
		Role:     role,
		IsActive: true,
	}
	if in.Password != "" {
		if err := user.SetPassword(in.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if actor != nil {
		if _, err := s.activities.LogUserCreated(actor.ID, user.ID, user.Name); err != nil {
			logger.Log().WithError(err).Warn("failed to record user_created activity")
		}
	}

	return &user, nil
}

// CreateGoogleUser provisions an account from verified Google attributes.
// Google accounts are activated immediately and have no password hash.
func (s *UserService) CreateGoogleUser(in GoogleUserInput) (*models.User, error) {
	taken, err := s.emailTaken(in.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	user := models.User{
		Name:      in.Name,
		Email:     in.Email,
		Role:      models.RoleUser,
		IsActive:  true,
		GoogleID:  in.GoogleID,
		AvatarURL: in.AvatarURL,
	}
	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create google user: %w", err)
	}

	return &user, nil
}

// LinkGoogleAccount merges Google identity fields onto an existing account.
func (s *UserService) LinkGoogleAccount(id uint, googleID, avatarURL string) (*models.User, error) {
	user, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"google_id": googleID}
	if avatarURL != "" {
		updates["avatar_url"] = avatarURL
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("link google account: %w", err)
	}

	return s.GetByID(id)
}

var userSortColumns = map[string]string{
	"name":      "name",
	"email":     "email",
	"createdAt": "created_at",
}

// List returns a page of accounts. Search matches name or email
// case-insensitively; the sort column is whitelisted.
func (s *UserService) List(q UserQuery) (*UserPage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = 10
	}

	column, ok := userSortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(q.Order, "asc") {
		direction = "ASC"
	}

	query := s.db.Model(&models.User{})
	if q.Search != "" {
		pattern := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}
	if q.Role != "" {
		query = query.Where("role = ?", q.Role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	users := []models.User{}
	if err := query.
		Order(column + " " + direction).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return &UserPage{Data: users, Meta: pageMeta(total, page, limit)}, nil
}

// GetByID returns the account or ErrUserNotFound.
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// GetByEmail returns (nil, nil) when no account matches. Only the
// authentication path uses this; it must tell "no such account" apart from
// store failures.
func (s *UserService) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := s.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

// applyUserPatch builds the whitelisted column updates for a patch, plus a
// redacted change summary for the audit trail. Role and active-flag changes
// from non-admin actors are silently dropped, never an error.
func applyUserPatch(target *models.User, patch UpdateUserInput, actorIsAdmin bool) (map[string]any, map[string]any, error) {
	updates := make(map[string]any)
	changes := make(map[string]any)

	if patch.Name != "" && patch.Name != target.Name {
		updates["name"] = patch.Name
		changes["name"] = patch.Name
	}
	if patch.Email != "" && patch.Email != target.Email {
		updates["email"] = patch.Email
		changes["email"] = patch.Email
	}
	if patch.Password != "" {
		var scratch models.User
		if err := scratch.SetPassword(patch.Password); err != nil {
			return nil, nil, fmt.Errorf("hash password: %w", err)
		}
		updates["password_hash"] = scratch.PasswordHash
		changes["password"] = "[redacted]"
	}
	if actorIsAdmin {
		if patch.Role != "" && patch.Role != target.Role {
			updates["role"] = patch.Role
			changes["role"] = patch.Role
		}
		if patch.IsActive != nil && *patch.IsActive != target.IsActive {
			updates["is_active"] = *patch.IsActive
			changes["is_active"] = *patch.IsActive
		}
	}

	return updates, changes, nil
}

// Update applies a patch to an account on behalf of actor and records the
// change in the audit trail.
func (s *UserService) Update(id uint, patch UpdateUserInput, actor *models.User) (*models.User, error) {
	target, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if !authz.Can(actor, authz.ActionUpdateUser, target) {
		return nil, fmt.Errorf("%w: you may only update your own account", ErrForbidden)
	}

	if patch.Role != "" && !models.ValidRole(patch.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrForbidden, patch.Role)
	}

	if patch.Email != "" && patch.Email != target.Email {
		taken, err := s.emailTaken(patch.Email, target.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrEmailTaken
		}
	}

	actorIsAdmin := authz.Can(actor, authz.ActionAssignRole, nil)
	updates, changes, err := applyUserPatch(target, patch, actorIsAdmin)
	if err != nil {
		return nil, err
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.User{}).Where("id = ?", target.ID).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, ErrEmailTaken
			}
			return nil, fmt.Errorf("update user: %w", err)
		}
	}

	updated, err := s.GetByID(target.ID)
	if err != nil {
		return nil, err
	}

	if actor.ID == target.ID {
		if _, err := s.activities.LogProfileUpdated(actor.ID, changes); err != nil {
			logger.Log().WithError(err).Warn("failed to record profile_updated activity")
		}
	} else {
		if _, err := s.activities.LogUserUpdated(actor.ID, target.ID, updated.Name, changes); err != nil {
			logger.Log().WithError(err).Warn("failed to record user_updated activity")
		}
	}

	return updated, nil
}

// Delete removes an account. Only admins may delete, and never themselves.
func (s *UserService) Delete(id uint, actor *models.User) error {
	if !authz.Can(actor, authz.ActionDeleteUser, nil) {
		return fmt.Errorf("%w: only admins may delete users", ErrForbidden)
	}

	target, err := s.GetByID(id)
	if err != nil {
		return err
	}

	if !authz.Can(actor, authz.ActionDeleteUser, target) {
		return fmt.Errorf("%w: cannot delete your own account", ErrForbidden)
	}

	// Name captured before the row disappears.
	targetName := target.Name

	if err := s.db.Delete(target).Error; err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if _, err := s.activities.LogUserDeleted(actor.ID, id, targetName); err != nil {
		logger.Log().WithError(err).Warn("failed to record user_deleted activity")
	}

	return nil
}

// RecordLogin stamps the last-login time and appends the login audit record
// in one call, so no code path can update the timestamp without auditing it.
func (s *UserService) RecordLogin(id uint, ip, userAgent string) error {
	now := time.Now()
	if err := s.db.Model(&models.User{}).Where("id = ?", id).Update("last_login_at", now).Error; err != nil {
		return fmt.Errorf("record login: %w", err)
	}

	if _, err := s.activities.LogLogin(id, ip, userAgent); err != nil {
		logger.Log().WithError(err).Warn("failed to record login activity")
	}

	return nil
}

// Stats returns aggregate account counts. Managers are folded into the
// regular-user bucket so the role counts always sum to the total.
func (s *UserService) Stats() (*UserStats, error) {
	stats := &UserStats{}

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalUsers, s.db.Model(&models.User{})},
		{&stats.ActiveUsers, s.db.Model(&models.User{}).Where("is_active = ?", true)},
		{&stats.AdminUsers, s.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin)},
		{&stats.RegularUsers, s.db.Model(&models.User{}).Where("role IN ?", []string{models.RoleManager, models.RoleUser})},
		{&stats.NewUsersThisMonth, s.db.Model(&models.User{}).Where("created_at >= ?", time.Now().Add(-inactivityWindow))},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("count users: %w", err)
		}
	}

	stats.InactiveUsers = stats.TotalUsers - stats.ActiveUsers
	return stats, nil
}

// FindInactive returns accounts that never logged in or whose last login is
// older than the inactivity window, newest-created first.
func (s *UserService) FindInactive() ([]models.SafeUser, error) {
	cutoff := time.Now().Add(-inactivityWindow)

	users := []models.User{}
	if err := s.db.
		Where("last_login_at IS NULL OR last_login_at < ?", cutoff).
		Order("created_at DESC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("find inactive users: %w", err)
	}

	result := make([]models.SafeUser, len(users))
	for i, u := range users {
		result[i] = u.Safe()
	}
	return result, nil
}

func (s *UserService) emailTaken(email string, excludeID uint) (bool, error) {
	query := s.db.Model(&models.User{}).Where("email = ?", email)
	if excludeID != 0 {
		query = query.Where("id != ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check email availability: %w", err)
	}
	return count > 0, nil
}
