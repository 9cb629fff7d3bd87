package access

import "github.com/spec-kit/helpdesk-service/internal/domain"

// AuthorizeRoleChange enforces the last-admin invariant: demoting an admin
// is denied while they are the only admin left. adminCount counts all users
// currently holding ADMIN, including the target before the change. Callers
// must obtain the count inside the same transaction that performs the
// update, or two concurrent demotions can both pass the check.
func AuthorizeRoleChange(target *domain.User, newRole domain.Role, adminCount int) Decision {
	if target == nil {
		return deny(ReasonNotAuthorized)
	}
	if target.Role == domain.RoleAdmin && newRole != domain.RoleAdmin && adminCount <= 1 {
		return deny(ReasonLastAdminProtected)
	}
	return allow()
}
