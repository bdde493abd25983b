// Package rbac holds the closed role set and the authorization gate.
// The gate is pure: no I/O, deny is a returned value, never a panic.
package rbac

type Role string
type Action string

const (
	RoleUser      Role = "user"
	RoleEditor    Role = "editor"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

const (
	// ActionRead covers public catalog reads.
	ActionRead Action = "read"
	// ActionInteract covers user-generated content: comments, follows,
	// favourites, lists, tracking.
	ActionInteract Action = "interact"
	// ActionCurate covers writes to reference data and series.
	ActionCurate Action = "curate"
	// ActionModerate covers removing other users' content.
	ActionModerate Action = "moderate"
	// ActionAdmin covers role assignment and account deactivation.
	ActionAdmin Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleModerator:
		return action == ActionRead || action == ActionInteract || action == ActionModerate
	case RoleEditor:
		return action == ActionRead || action == ActionInteract || action == ActionCurate
	case RoleUser:
		return action == ActionRead || action == ActionInteract
	default:
		return false
	}
}

// Any reports whether role is one of the allowed roles. Operations that
// declare an explicit allowed-role set use this instead of Can.
func Any(role Role, allowed ...Role) bool {
	for _, candidate := range allowed {
		if role == candidate {
			return true
		}
	}
	return false
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleEditor, RoleModerator, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}
