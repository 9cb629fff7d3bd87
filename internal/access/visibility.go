package access

import "github.com/spec-kit/helpdesk-service/internal/domain"

// CanView reports whether the actor may read the ticket. Admins see every
// ticket, customers see their own, agents see only tickets assigned to
// them. Creating a ticket does not grant an agent visibility; assignment is
// the only path.
func CanView(actor Actor, ticket *domain.Ticket) bool {
	if ticket == nil {
		return false
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleCustomer:
		return ticket.CreatedBy == actor.ID
	case domain.RoleAgent:
		return ticket.IsAssignedTo(actor.ID)
	}
	return false
}

// CanViewComments reports whether the actor may read the ticket's comments.
// Comment visibility is exactly the parent ticket's visibility.
func CanViewComments(actor Actor, ticket *domain.Ticket) bool {
	return CanView(actor, ticket)
}

// CanViewHistory reports whether the actor may read the ticket's status
// history. History visibility is exactly the parent ticket's visibility.
func CanViewHistory(actor Actor, ticket *domain.Ticket) bool {
	return CanView(actor, ticket)
}

// ListScope restricts find-many queries to the tickets the actor may see.
// Exactly one of the fields is set for customers and agents; admins get an
// unrestricted scope.
type ListScope struct {
	CreatedBy  *string
	AssignedTo *string
}

// ScopeFor returns the storage-level predicate matching CanView for the
// actor, so list reads filter in the query instead of per row.
func ScopeFor(actor Actor) ListScope {
	switch actor.Role {
	case domain.RoleCustomer:
		id := actor.ID
		return ListScope{CreatedBy: &id}
	case domain.RoleAgent:
		id := actor.ID
		return ListScope{AssignedTo: &id}
	}
	return ListScope{}
}
