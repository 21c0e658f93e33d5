package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/userhub/backend/internal/api/middleware"
	"github.com/userhub/backend/internal/services"
)

type ActivityHandler struct {
	activities *services.ActivityService
}

func NewActivityHandler(activities *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates.
func parseTimeParam(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

// List returns the audit trail scoped to the caller's role: admins see all
// records, managers only login/logout, plain users an empty page.
func (h *ActivityHandler) List(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	userID, _ := strconv.ParseUint(c.Query("userId"), 10, 32)

	result, err := h.activities.List(services.ActivityFilter{
		Type:      c.Query("type"),
		UserID:    uint(userID),
		StartDate: parseTimeParam(c.Query("startDate")),
		EndDate:   parseTimeParam(c.Query("endDate")),
		Page:      page,
		Limit:     limit,
	}, user.Role, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
