// Package access implements the ticket access-control and lifecycle engine:
// who may see a ticket, which status transitions each role may perform, who
// may be assigned, and the last-admin invariant. Every function here is a
// pure decision over immutable snapshots; all I/O lives in the callers.
package access

import "github.com/spec-kit/helpdesk-service/internal/domain"

// Actor is the authenticated identity performing an operation, reduced to
// what the engine needs. It is supplied by the auth layer on every request
// and never persisted here.
type Actor struct {
	ID   string
	Role domain.Role
}

// Outcome classifies a decision.
type Outcome int

const (
	// Denied means the operation must not proceed; Decision.Reason says why.
	Denied Outcome = iota
	// Allowed means the operation may proceed.
	Allowed
	// NoOp means the requested change equals the current state. The caller
	// returns the entity unchanged and writes no history.
	NoOp
)

// Reason identifies why a decision denied an operation.
type Reason string

const (
	ReasonNotAuthorized        Reason = "not_authorized_to_access"
	ReasonClosedRequiresAdmin  Reason = "closed_ticket_requires_admin"
	ReasonTransitionNotAllowed Reason = "transition_not_permitted_for_role"
	ReasonCannotAssignCustomer Reason = "cannot_assign_to_customer"
	ReasonCandidateNotFound    Reason = "candidate_not_found"
	ReasonLastAdminProtected   Reason = "last_admin_protected"
)

// Decision is the result of an authorization check.
type Decision struct {
	Outcome Outcome
	Reason  Reason
}

func allow() Decision {
	return Decision{Outcome: Allowed}
}

func noop() Decision {
	return Decision{Outcome: NoOp}
}

func deny(reason Reason) Decision {
	return Decision{Outcome: Denied, Reason: reason}
}
