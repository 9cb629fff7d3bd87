package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// ValidTicketStatus reports whether s is a known status value.
func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketTag categorizes the kind of request.
type TicketTag string

const (
	TicketTagBug         TicketTag = "BUG"
	TicketTagFeature     TicketTag = "FEATURE"
	TicketTagQuestion    TicketTag = "QUESTION"
	TicketTagImprovement TicketTag = "IMPROVEMENT"
)

// ValidTicketTag reports whether t is a known tag value.
func ValidTicketTag(t TicketTag) bool {
	switch t {
	case TicketTagBug, TicketTagFeature, TicketTagQuestion, TicketTagImprovement:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. AssignedTo is nil until an
// admin assigns the ticket, and never references a CUSTOMER account.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Status      TicketStatus
	Tag         TicketTag
	CreatedBy   string
	AssignedTo  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsAssignedTo reports whether the ticket is currently assigned to userID.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}
