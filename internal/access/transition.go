package access

import "github.com/spec-kit/helpdesk-service/internal/domain"

// roleTransitions is the full status state machine, one literal table per
// role. Admins are handled separately in AuthorizeTransition: they may move
// any ticket to any status, including out of CLOSED.
var roleTransitions = map[domain.Role]map[domain.TicketStatus][]domain.TicketStatus{
	domain.RoleCustomer: {
		domain.TicketStatusOpen:     {domain.TicketStatusClosed},
		domain.TicketStatusResolved: {domain.TicketStatusOpen},
	},
	domain.RoleAgent: {
		domain.TicketStatusOpen:       {domain.TicketStatusInProgress},
		domain.TicketStatusInProgress: {domain.TicketStatusResolved},
		domain.TicketStatusResolved:   {domain.TicketStatusInProgress},
	},
}

func transitionAllowed(role domain.Role, from, to domain.TicketStatus) bool {
	for _, candidate := range roleTransitions[role][from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// AuthorizeTransition decides whether the actor may move the ticket to
// newStatus. Checks run in a fixed order: visibility, idempotence,
// closed-ticket lockdown, then the per-role transition table.
func AuthorizeTransition(actor Actor, ticket *domain.Ticket, newStatus domain.TicketStatus) Decision {
	if !CanView(actor, ticket) {
		return deny(ReasonNotAuthorized)
	}
	if newStatus == ticket.Status {
		return noop()
	}
	if ticket.Status == domain.TicketStatusClosed && actor.Role != domain.RoleAdmin {
		return deny(ReasonClosedRequiresAdmin)
	}

	switch actor.Role {
	case domain.RoleAdmin:
		return allow()
	case domain.RoleCustomer:
		if ticket.CreatedBy != actor.ID {
			return deny(ReasonNotAuthorized)
		}
	case domain.RoleAgent:
		if !ticket.IsAssignedTo(actor.ID) {
			return deny(ReasonNotAuthorized)
		}
	default:
		return deny(ReasonNotAuthorized)
	}

	if !transitionAllowed(actor.Role, ticket.Status, newStatus) {
		return deny(ReasonTransitionNotAllowed)
	}
	return allow()
}
