package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/userhub/backend/internal/config"
	"github.com/userhub/backend/internal/logger"
	"github.com/userhub/backend/internal/metrics"
	"github.com/userhub/backend/internal/models"
)

// tokenTTL bounds session tokens. Expiry is a hardening addition on top of
// the id/email/role claims the frontend relies on.
const tokenTTL = 24 * time.Hour

// Claims is the JWT payload for a session token.
type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues and validates session tokens, delegating identity
// checks to the user directory.
type AuthService struct {
	users      *UserService
	activities *ActivityService
	google     GoogleVerifier
	jwtSecret  string
}

// NewAuthService wires the auth flows. google may be nil when Google sign-in
// is not configured.
func NewAuthService(users *UserService, activities *ActivityService, google GoogleVerifier, cfg config.Config) *AuthService {
	return &AuthService{
		users:      users,
		activities: activities,
		google:     google,
		jwtSecret:  cfg.JWTSecret,
	}
}

// Register creates a self-service account. The role is always "user"
// regardless of what the caller asked for.
func (s *AuthService) Register(name, email, password string) (*models.User, error) {
	user, err := s.users.Create(CreateUserInput{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     models.RoleUser,
	}, nil)
	if err != nil {
		return nil, err
	}

	metrics.IncRegistration()
	return user, nil
}

// Login verifies email/password credentials. Unknown email, missing password
// hash and wrong password all fail the same way; a disabled account fails
// with a distinct error. On success the last-login stamp and login audit
// record are written together and a signed token is issued.
func (s *AuthService) Login(email, password, ip, userAgent string) (string, *models.User, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return "", nil, err
	}
	if user == nil || !user.CheckPassword(password) {
		metrics.IncLoginFailure()
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		metrics.IncLoginFailure()
		return "", nil, ErrAccountDisabled
	}

	if err := s.users.RecordLogin(user.ID, ip, userAgent); err != nil {
		return "", nil, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}

	metrics.IncLoginSuccess()

	user, err = s.users.GetByID(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// GoogleLogin verifies a Google ID token, provisions or links the matching
// account, and issues a session token.
func (s *AuthService) GoogleLogin(ctx context.Context, credential, ip, userAgent string) (string, *models.User, error) {
	if s.google == nil {
		return "", nil, fmt.Errorf("%w: google sign-in not configured", ErrInvalidGoogleToken)
	}

	claims, err := s.google.Verify(ctx, credential)
	if err != nil {
		metrics.IncLoginFailure()
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidGoogleToken, err)
	}

	user, err := s.users.GetByEmail(claims.Email)
	if err != nil {
		return "", nil, err
	}

	// Refuse disabled accounts before linking so the rejected attempt
	// leaves no state behind.
	if user != nil && !user.IsActive {
		metrics.IncLoginFailure()
		return "", nil, ErrAccountDisabled
	}

	switch {
	case user == nil:
		user, err = s.users.CreateGoogleUser(GoogleUserInput{
			Name:      claims.Name,
			Email:     claims.Email,
			GoogleID:  claims.Subject,
			AvatarURL: claims.AvatarURL,
		})
		if err != nil {
			return "", nil, err
		}
		logger.WithFields(map[string]interface{}{"email": user.Email}).Info("provisioned account from google sign-in")
	case user.GoogleID == "":
		user, err = s.users.LinkGoogleAccount(user.ID, claims.Subject, claims.AvatarURL)
		if err != nil {
			return "", nil, err
		}
	}

	if err := s.users.RecordLogin(user.ID, ip, userAgent); err != nil {
		return "", nil, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}

	metrics.IncLoginSuccess()

	user, err = s.users.GetByID(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Refresh re-issues a token from an already-authenticated identity. No
// credential re-check and no audit record.
func (s *AuthService) Refresh(user *models.User) (string, error) {
	return s.issueToken(user)
}

// Logout records the sign-out in the audit trail. Tokens are not revocable;
// the client discards its copy.
func (s *AuthService) Logout(userID uint, ip, userAgent string) {
	if _, err := s.activities.LogLogout(userID, ip, userAgent); err != nil {
		logger.Log().WithError(err).Warn("failed to record logout activity")
	}
}

// ChangePassword verifies the old password before setting the new one.
func (s *AuthService) ChangePassword(userID uint, oldPassword, newPassword, ip, userAgent string) error {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	if !user.CheckPassword(oldPassword) {
		return ErrInvalidCredentials
	}
	if err := user.SetPassword(newPassword); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.db.Model(user).Update("password_hash", user.PasswordHash).Error; err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	if _, err := s.activities.LogPasswordChanged(userID, ip, userAgent); err != nil {
		logger.Log().WithError(err).Warn("failed to record password_changed activity")
	}
	return nil
}

// GetUserByID re-hydrates the caller for token-verification middleware.
func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	return s.users.GetByID(id)
}

// ValidateToken parses and verifies a session token.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UUID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
