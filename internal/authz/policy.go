package authz

import (
	"github.com/userhub/backend/internal/models"
)

// Action identifies an operation an actor may attempt against the directory.
type Action string

const (
	// ActionUpdateUser covers any field change on an account.
	ActionUpdateUser Action = "update_user"
	// ActionDeleteUser covers account removal.
	ActionDeleteUser Action = "delete_user"
	// ActionAssignRole covers setting a role other than "user".
	ActionAssignRole Action = "assign_role"
	// ActionViewDirectory covers listing and searching accounts.
	ActionViewDirectory Action = "view_directory"
	// ActionViewStats covers aggregate counts and inactive-account reports.
	ActionViewStats Action = "view_stats"
)

// Can is the single authorization gate for the user directory. All role
// comparisons live here so the rules cannot drift between service methods.
//
// target may be nil for actions that do not address a specific account.
func Can(actor *models.User, action Action, target *models.User) bool {
	if actor == nil {
		return false
	}

	switch action {
	case ActionUpdateUser:
		if actor.Role == models.RoleAdmin {
			return true
		}
		// Everyone may edit their own profile.
		return target != nil && target.ID == actor.ID

	case ActionDeleteUser:
		if actor.Role != models.RoleAdmin {
			return false
		}
		// Self-deletion is always rejected, even for admins.
		return target == nil || target.ID != actor.ID

	case ActionAssignRole:
		// Managers may create accounts but never grant elevated roles.
		return actor.Role == models.RoleAdmin

	case ActionViewDirectory, ActionViewStats:
		return actor.Role == models.RoleAdmin || actor.Role == models.RoleManager
	}

	return false
}
