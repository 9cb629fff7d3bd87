package access

import "github.com/spec-kit/helpdesk-service/internal/domain"

// AuthorizeAssignment decides whether the actor may assign the ticket to the
// candidate user. The route guard already restricts assignment to admins;
// the check here is defensive. Reassigning an already-assigned ticket is
// permitted, including tickets that are CLOSED.
func AuthorizeAssignment(actor Actor, ticket *domain.Ticket, candidate *domain.User) Decision {
	if actor.Role != domain.RoleAdmin {
		return deny(ReasonNotAuthorized)
	}
	if candidate == nil {
		return deny(ReasonCandidateNotFound)
	}
	if candidate.Role == domain.RoleCustomer {
		return deny(ReasonCannotAssignCustomer)
	}
	if ticket == nil {
		return deny(ReasonNotAuthorized)
	}
	return allow()
}
