package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/userhub/backend/internal/config"
	"github.com/userhub/backend/internal/models"
)

func setupAPI(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	router := gin.New()
	cfg := config.Config{Environment: "test", JWTSecret: "test-secret"}
	require.NoError(t, Register(router, db, cfg, nil))
	return router, db
}

func seedUser(t *testing.T, db *gorm.DB, name, email, password, role string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: email, Role: role, IsActive: true}
	require.NoError(t, user.SetPassword(password))
	require.NoError(t, db.Create(user).Error)
	return user
}

func doJSON(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, router *gin.Engine, email, password string) string {
	t.Helper()
	w := doJSON(router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupAPI(t)

	w := doJSON(router, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupAPI(t)

	w := doJSON(router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "userhub_login_success_total")
}

func TestRegisterFlow(t *testing.T) {
	router, _ := setupAPI(t)

	w := doJSON(router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name":     "Ana",
		"email":    "ana@x.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	// The response must never expose credential material.
	assert.NotContains(t, w.Body.String(), "password")
	assert.Contains(t, w.Body.String(), `"role":"user"`)

	// Duplicate email conflicts.
	w = doJSON(router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name":     "Ana Again",
		"email":    "ana@x.com",
		"password": "secret2",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Short password is rejected before the service sees it.
	w = doJSON(router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name":     "Bo",
		"email":    "bo@x.com",
		"password": "abc",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginAndMe(t *testing.T) {
	router, db := setupAPI(t)
	seedUser(t, db, "Ana", "ana@x.com", "secret1", models.RoleUser)

	token := login(t, router, "ana@x.com", "secret1")

	w := doJSON(router, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ana@x.com")
	assert.NotContains(t, w.Body.String(), "password")

	// Bad credentials stay generic.
	w = doJSON(router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    "ana@x.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleGates(t *testing.T) {
	router, db := setupAPI(t)
	seedUser(t, db, "Plain", "plain@x.com", "secret1", models.RoleUser)
	seedUser(t, db, "Manny", "manny@x.com", "secret1", models.RoleManager)

	userToken := login(t, router, "plain@x.com", "secret1")
	managerToken := login(t, router, "manny@x.com", "secret1")

	// Plain users cannot reach directory or report routes.
	for _, path := range []string{"/api/v1/users", "/api/v1/users/stats", "/api/v1/users/inactive"} {
		w := doJSON(router, http.MethodGet, path, userToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}

	// Managers can.
	for _, path := range []string{"/api/v1/users", "/api/v1/users/stats", "/api/v1/users/inactive"} {
		w := doJSON(router, http.MethodGet, path, managerToken, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	// Admin-only mutation routes refuse managers.
	w := doJSON(router, http.MethodPatch, "/api/v1/users/1", managerToken, gin.H{"name": "X"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doJSON(router, http.MethodDelete, "/api/v1/users/1", managerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Unauthenticated requests never get past the token check.
	w = doJSON(router, http.MethodGet, "/api/v1/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestManagerCreatesUsers(t *testing.T) {
	router, db := setupAPI(t)
	seedUser(t, db, "Manny", "manny@x.com", "secret1", models.RoleManager)
	managerToken := login(t, router, "manny@x.com", "secret1")

	w := doJSON(router, http.MethodPost, "/api/v1/users", managerToken, gin.H{
		"name":     "New Hire",
		"email":    "hire@x.com",
		"password": "secret1",
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Managers cannot grant elevated roles.
	w = doJSON(router, http.MethodPost, "/api/v1/users", managerToken, gin.H{
		"name":     "Rogue Admin",
		"email":    "rogue@x.com",
		"password": "secret1",
		"role":     "admin",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSelfUpdateStripsRole(t *testing.T) {
	router, db := setupAPI(t)
	user := seedUser(t, db, "Plain", "plain@x.com", "secret1", models.RoleUser)
	token := login(t, router, "plain@x.com", "secret1")

	w := doJSON(router, http.MethodPatch, "/api/v1/users/me", token, gin.H{
		"name": "Renamed",
		"role": "admin",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got models.User
	require.NoError(t, db.First(&got, user.ID).Error)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, models.RoleUser, got.Role)
}

func TestAdminUpdatesAndDeletes(t *testing.T) {
	router, db := setupAPI(t)
	admin := seedUser(t, db, "Root", "root@x.com", "secret1", models.RoleAdmin)
	target := seedUser(t, db, "Plain", "plain@x.com", "secret1", models.RoleUser)
	adminToken := login(t, router, "root@x.com", "secret1")

	w := doJSON(router, http.MethodPatch, fmt.Sprintf("/api/v1/users/%d", target.ID), adminToken, gin.H{
		"role":      "manager",
		"is_active": false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got models.User
	require.NoError(t, db.First(&got, target.ID).Error)
	assert.Equal(t, models.RoleManager, got.Role)
	assert.False(t, got.IsActive)

	// Admins may not delete themselves.
	w = doJSON(router, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", admin.ID), adminToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", target.ID), adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	err := db.First(&got, target.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Deleting a missing record is a 404.
	w = doJSON(router, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", target.ID), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetByID_NonAdminSeesOnlySelf(t *testing.T) {
	router, db := setupAPI(t)
	seedUser(t, db, "Plain", "plain@x.com", "secret1", models.RoleUser)
	other := seedUser(t, db, "Other", "other@x.com", "secret1", models.RoleUser)
	token := login(t, router, "plain@x.com", "secret1")

	w := doJSON(router, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", other.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	// The lookup is redirected to the caller's own record.
	assert.Contains(t, w.Body.String(), "plain@x.com")
	assert.NotContains(t, w.Body.String(), "other@x.com")
}

func TestActivitiesRoleScoping(t *testing.T) {
	router, db := setupAPI(t)
	seedUser(t, db, "Root", "root@x.com", "secret1", models.RoleAdmin)
	seedUser(t, db, "Manny", "manny@x.com", "secret1", models.RoleManager)
	seedUser(t, db, "Plain", "plain@x.com", "secret1", models.RoleUser)

	adminToken := login(t, router, "root@x.com", "secret1")
	managerToken := login(t, router, "manny@x.com", "secret1")
	userToken := login(t, router, "plain@x.com", "secret1")

	// An admin-created account adds a user_created record to the trail.
	w := doJSON(router, http.MethodPost, "/api/v1/users", adminToken, gin.H{
		"name":     "New Hire",
		"email":    "hire@x.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	type page struct {
		Data []models.Activity `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}

	var adminPage page
	w = doJSON(router, http.MethodGet, "/api/v1/activities", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &adminPage))
	// Three logins plus the creation.
	assert.Equal(t, int64(4), adminPage.Meta.Total)

	var managerPage page
	w = doJSON(router, http.MethodGet, "/api/v1/activities", managerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &managerPage))
	assert.Equal(t, int64(3), managerPage.Meta.Total)
	for _, a := range managerPage.Data {
		assert.Contains(t, []string{models.ActivityLogin, models.ActivityLogout}, a.Type)
	}

	var userPage page
	w = doJSON(router, http.MethodGet, "/api/v1/activities", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &userPage))
	assert.Equal(t, int64(0), userPage.Meta.Total)
	assert.Empty(t, userPage.Data)
}

func TestLogoutRecordsActivity(t *testing.T) {
	router, db := setupAPI(t)
	seedUser(t, db, "Plain", "plain@x.com", "secret1", models.RoleUser)
	token := login(t, router, "plain@x.com", "secret1")

	w := doJSON(router, http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.Activity{}).Where("type = ?", models.ActivityLogout).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestChangePasswordEndpoint(t *testing.T) {
	router, db := setupAPI(t)
	seedUser(t, db, "Plain", "plain@x.com", "secret1", models.RoleUser)
	token := login(t, router, "plain@x.com", "secret1")

	w := doJSON(router, http.MethodPost, "/api/v1/auth/change-password", token, gin.H{
		"old_password": "wrong",
		"new_password": "newsecret",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/auth/change-password", token, gin.H{
		"old_password": "secret1",
		"new_password": "newsecret",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	login(t, router, "plain@x.com", "newsecret")
}

func TestUserListEnvelope(t *testing.T) {
	router, db := setupAPI(t)
	seedUser(t, db, "Root", "root@x.com", "secret1", models.RoleAdmin)
	for i := 0; i < 12; i++ {
		seedUser(t, db, fmt.Sprintf("User %02d", i), fmt.Sprintf("user%02d@x.com", i), "secret1", models.RoleUser)
	}
	token := login(t, router, "root@x.com", "secret1")

	w := doJSON(router, http.MethodGet, "/api/v1/users?page=2&limit=5", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []models.User `json:"data"`
		Meta struct {
			Total      int64 `json:"total"`
			Page       int   `json:"page"`
			Limit      int   `json:"limit"`
			TotalPages int   `json:"totalPages"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(13), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.Page)
	assert.Equal(t, 5, resp.Meta.Limit)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	assert.Len(t, resp.Data, 5)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestGoogleVerify_NotConfigured(t *testing.T) {
	router, _ := setupAPI(t)

	w := doJSON(router, http.MethodPost, "/api/v1/auth/google/verify", "", gin.H{
		"credential": "some-credential",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
