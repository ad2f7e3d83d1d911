package auth

import (
	"fmt"

	"gin-gorm-user-service/internal/domain"
)

type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Action is an operation on a user resource.
type Action int

const (
	ActionRead Action = iota
	ActionUpdate
	ActionList
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionUpdate:
		return "update"
	case ActionList:
		return "list"
	case ActionDelete:
		return "delete"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Decide allows the owner of a resource or an admin.
func Decide(requesterID uint, roles []domain.Role, ownerID uint) Decision {
	if requesterID != 0 && requesterID == ownerID {
		return Allow
	}
	return DecideAdminOnly(roles)
}

func DecideAdminOnly(roles []domain.Role) Decision {
	for _, r := range roles {
		if r == domain.RoleAdmin {
			return Allow
		}
	}
	return Deny
}

// Authorize applies the rule for action and returns domain.ErrForbidden on Deny.
// ownerID is ignored for List and Delete.
func Authorize(p domain.Principal, action Action, ownerID uint) error {
	var d Decision
	switch action {
	case ActionRead, ActionUpdate:
		d = Decide(p.UserID, p.Roles, ownerID)
	case ActionList, ActionDelete:
		d = DecideAdminOnly(p.Roles)
	default:
		d = Deny
	}
	if d == Deny {
		return fmt.Errorf("%w: %s by user %d", domain.ErrForbidden, action, p.UserID)
	}
	return nil
}
